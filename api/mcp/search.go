package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/foliostoreco/folio/pkg/ingest"
)

var (
	searchToolName    = "search"
	searchDescription = "Search over ingested documents using semantic search. Returns the most relevant document chunks for the query text."
)

// SearchInput represents the input arguments for the search tool.
type SearchInput struct {
	Query               string   `json:"query" jsonschema:"the search query text to find relevant document chunks"`
	TopK                int      `json:"top_k,omitempty" jsonschema:"number of results to return (default: 3)"`
	SimilarityThreshold *float32 `json:"similarity_threshold,omitempty" jsonschema:"minimum similarity score a result must clear (default: 0.1)"`
}

// SearchResult represents a single search result.
type SearchResult struct {
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	Score      float32 `json:"score"`
	Source     string  `json:"source"`
	DocumentID string  `json:"document_id"`
}

// SearchOutput represents the output of the search tool.
type SearchOutput struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
	Count   int            `json:"count"`
	Reason  string         `json:"reason,omitempty"`
}

// handleSearch processes a search request.
func (s *Server) handleSearch(ctx context.Context, req *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	logger := s.config.Logger

	topK := input.TopK
	if topK <= 0 {
		topK = ingest.DefaultK
	}
	threshold := float32(ingest.DefaultThreshold)
	if input.SimilarityThreshold != nil {
		threshold = *input.SimilarityThreshold
	}

	logger.Debug("MCP search request",
		zap.Int("topK", topK),
		zap.Float32("threshold", threshold),
	)

	result, err := s.config.Service.Query(ctx, input.Query, topK, threshold)
	if err != nil {
		logger.Error("failed to run search", zap.Error(err))
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Failed to run search: %v", err)},
			},
		}, SearchOutput{}, nil
	}

	searchResults := make([]SearchResult, 0, len(result.Results))
	for _, r := range result.Results {
		searchResults = append(searchResults, SearchResult{
			Title:      r.Metadata.Filename,
			Content:    r.Text,
			Score:      r.Score,
			Source:     fmt.Sprintf("Part %d of %d", r.Metadata.ChunkIndex+1, r.Metadata.TotalChunks),
			DocumentID: r.Metadata.DocumentID,
		})
	}

	output := SearchOutput{
		Query:   input.Query,
		Results: searchResults,
		Count:   len(searchResults),
		Reason:  result.Reason,
	}

	// Serialize the structured output as JSON for the text field
	// Per MCP spec: tools returning structured content should also return
	// serialized JSON in a TextContent block for backwards compatibility
	jsonBytes, err := json.Marshal(output)
	if err != nil {
		logger.Error("failed to marshal search output", zap.Error(err))
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Failed to serialize results: %v", err)},
			},
		}, SearchOutput{}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, output, nil
}
