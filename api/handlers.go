package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/foliostoreco/folio/pkg/extract"
	"github.com/foliostoreco/folio/pkg/ingest"
)

// ErrorResponse is the JSON body returned for any failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// UploadResponse confirms a successful ingestion.
type UploadResponse struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	Chunks     int    `json:"chunks"`
}

// QueryRequest is the body of a query call.
type QueryRequest struct {
	Query               string   `json:"query"`
	TopK                int      `json:"top_k,omitempty"`
	SimilarityThreshold *float32 `json:"similarity_threshold,omitempty"`
}

// QueryHit is one search result.
type QueryHit struct {
	Title    string         `json:"title"`
	Content  string         `json:"content"`
	Score    float32        `json:"score"`
	Metadata map[string]any `json:"metadata"`
}

// QueryResponse carries a query's hits, or the reason there are none.
type QueryResponse struct {
	Results []QueryHit `json:"results"`
	Count   int        `json:"count"`
	Reason  string     `json:"reason,omitempty"`
}

// DeleteResponse confirms a document deletion.
type DeleteResponse struct {
	DocumentID    string `json:"document_id"`
	ChunksDeleted int    `json:"chunks_deleted"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleUpload accepts a PDF as the "file" field of a multipart form,
// extracts its text, and ingests it under a fresh document ID.
func (s *Server) handleUpload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "multipart field 'file' required"})
	}

	if fileHeader.Size > s.config.MaxUploadBytes {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(ErrorResponse{
			Error: fmt.Sprintf("file exceeds %d byte limit", s.config.MaxUploadBytes),
		})
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if !isPDF(contentType, fileHeader.Filename) {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "only PDF uploads are supported"})
	}

	f, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to read upload"})
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to read upload"})
	}
	if len(data) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "uploaded file is empty"})
	}

	text, err := s.extractor.Extract(c.Context(), bytes.NewReader(data), int64(len(data)))
	if err != nil {
		if errors.Is(err, extract.ErrNoText) {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "document contains no extractable text"})
		}
		s.logger.Error("text extraction failed",
			zap.String("filename", fileHeader.Filename),
			zap.Error(err),
		)
		return c.Status(fiber.StatusUnprocessableEntity).JSON(ErrorResponse{Error: "failed to extract text from document"})
	}

	documentID := uuid.NewString()
	meta := ingest.DocumentMetadata{
		Filename:    fileHeader.Filename,
		ContentType: "application/pdf",
		Size:        fileHeader.Size,
	}

	if err := s.service.Ingest(c.Context(), documentID, text, meta); err != nil {
		s.logger.Error("ingestion failed",
			zap.String("document_id", documentID),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to ingest document"})
	}

	doc, _ := s.service.DocumentByID(documentID)
	return c.JSON(UploadResponse{
		DocumentID: documentID,
		Filename:   fileHeader.Filename,
		Chunks:     doc.ChunkCount,
	})
}

// handleQuery answers a semantic search over the ingested documents.
func (s *Server) handleQuery(c *fiber.Ctx) error {
	var req QueryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if strings.TrimSpace(req.Query) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "query text required"})
	}

	threshold := float32(ingest.DefaultThreshold)
	if req.SimilarityThreshold != nil {
		threshold = *req.SimilarityThreshold
	}

	result, err := s.service.Query(c.Context(), req.Query, req.TopK, threshold)
	if err != nil {
		s.logger.Error("query failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "query failed"})
	}

	hits := make([]QueryHit, 0, len(result.Results))
	for _, r := range result.Results {
		hits = append(hits, QueryHit{
			Title:   r.Metadata.Filename,
			Content: r.Text,
			Score:   r.Score,
			Metadata: map[string]any{
				"source":      fmt.Sprintf("Part %d of %d", r.Metadata.ChunkIndex+1, r.Metadata.TotalChunks),
				"document_id": r.Metadata.DocumentID,
				"chunk_index": r.Metadata.ChunkIndex,
				"filename":    r.Metadata.Filename,
			},
		})
	}

	return c.JSON(QueryResponse{
		Results: hits,
		Count:   len(hits),
		Reason:  result.Reason,
	})
}

// handleListDocuments returns the registry's view of ingested documents.
func (s *Server) handleListDocuments(c *fiber.Ctx) error {
	docs := s.service.Documents()
	return c.JSON(map[string]any{
		"count":     len(docs),
		"documents": docs,
	})
}

// handleDeleteDocument removes a document and all its chunks.
func (s *Server) handleDeleteDocument(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "document id required"})
	}

	count, err := s.service.DeleteDocument(c.Context(), id)
	if err != nil {
		s.logger.Error("document deletion failed",
			zap.String("document_id", id),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to delete document"})
	}
	if count == 0 {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "document not found"})
	}

	return c.JSON(DeleteResponse{
		DocumentID:    id,
		ChunksDeleted: count,
	})
}

// handleDebug returns the service's operational snapshot.
func (s *Server) handleDebug(c *fiber.Ctx) error {
	info, err := s.service.Debug(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to collect debug info"})
	}
	return c.JSON(info)
}

// isPDF accepts an upload by declared content type, falling back to the
// filename extension when the client sent a generic type.
func isPDF(contentType, filename string) bool {
	if strings.HasPrefix(contentType, "application/pdf") {
		return true
	}
	if contentType == "" || contentType == "application/octet-stream" {
		return strings.HasSuffix(strings.ToLower(filename), ".pdf")
	}
	return false
}
