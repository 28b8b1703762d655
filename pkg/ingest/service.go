// Package ingest orchestrates the chunk/embed/store pipeline and is the
// single entry point the HTTP layer consumes.
package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/foliostoreco/folio/pkg/chunker"
	"github.com/foliostoreco/folio/pkg/embeddings"
	"github.com/foliostoreco/folio/pkg/registry"
	"github.com/foliostoreco/folio/pkg/utils"
	"github.com/foliostoreco/folio/pkg/vector"
)

const (
	// DefaultK is the number of results a query returns when the caller
	// doesn't say.
	DefaultK = 3

	// DefaultThreshold is the minimum similarity a query result must
	// clear when the caller doesn't say.
	DefaultThreshold = 0.1
)

// Query reasons surfaced to the caller when a search comes back empty.
const (
	// ReasonNoDocuments means the index holds no chunks at all.
	ReasonNoDocuments = "no documents have been ingested"

	// ReasonNoMatches means chunks exist but none cleared the
	// similarity threshold.
	ReasonNoMatches = "no relevant matches found"
)

// Notifier receives write notifications for debounced backups and
// reports backup status. Satisfied by syncer.Scheduler.
type Notifier interface {
	NotifyWrite(ctx context.Context)
	Status() (lastBackup time.Time, pending bool)
}

// DocumentMetadata describes the uploaded source of an ingested text.
type DocumentMetadata struct {
	Filename    string
	ContentType string
	Size        int64
}

// QueryResult carries a query's hits, or the reason there are none.
type QueryResult struct {
	Results []vector.ScoredChunk
	Reason  string
}

// DebugInfo is the service's operational snapshot.
type DebugInfo struct {
	DocumentCount   int          `json:"document_count"`
	ChunkCount      int          `json:"chunk_count"`
	CollectionCount int          `json:"collection_count"`
	BackupStatus    BackupStatus `json:"backup_status"`
	StorageInfo     StorageInfo  `json:"storage_info"`
}

// BackupStatus reports the durability side of DebugInfo.
type BackupStatus struct {
	LastBackupTime *time.Time `json:"last_backup_time"`
	PendingBackup  bool       `json:"pending_backup"`
}

// StorageInfo reports where the index lives.
type StorageInfo struct {
	IndexDir string `json:"index_dir"`
}

// Service orchestrates chunking, embedding, insertion, search, and
// write-triggered backups.
type Service struct {
	// mu serializes index writes. The embedded store does not tolerate
	// two uploads interleaving at the file level.
	mu sync.Mutex

	embedder      embeddings.Embedder
	index         vector.Driver
	registry      *registry.Registry
	notifier      Notifier
	maxChunkWords int
	indexDir      string
	logger        *zap.Logger
}

// Config holds the service's collaborators.
type Config struct {
	// Embedder turns text into vectors.
	Embedder embeddings.Embedder

	// Index stores chunks and answers similarity queries.
	Index vector.Driver

	// Registry tracks which documents exist.
	Registry *registry.Registry

	// Notifier triggers debounced backups after writes. Optional: nil
	// disables durability notifications.
	Notifier Notifier

	// MaxChunkWords bounds chunk size. Zero selects the chunker default.
	MaxChunkWords int

	// IndexDir is reported in debug info.
	IndexDir string
}

// NewService creates the ingestion/query service.
func NewService(cfg Config, logger *zap.Logger) (*Service, error) {
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if cfg.Index == nil {
		return nil, fmt.Errorf("vector index is required")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("document registry is required")
	}

	maxWords := cfg.MaxChunkWords
	if maxWords <= 0 {
		maxWords = chunker.DefaultMaxWords
	}

	return &Service{
		embedder:      cfg.Embedder,
		index:         cfg.Index,
		registry:      cfg.Registry,
		notifier:      cfg.Notifier,
		maxChunkWords: maxWords,
		indexDir:      cfg.IndexDir,
		logger:        logger,
	}, nil
}

// Ingest chunks the text, embeds each chunk in index order, stores the
// chunks, and registers the document. Re-ingesting an existing document
// ID replaces its chunk set wholesale. An embedding failure leaves the
// index and registry untouched and triggers no backup.
func (s *Service) Ingest(ctx context.Context, documentID, text string, meta DocumentMetadata) error {
	if documentID == "" {
		return fmt.Errorf("document ID is required")
	}
	if text == "" {
		return fmt.Errorf("document %s has no text to ingest", documentID)
	}

	pieces := chunker.Split(text, s.maxChunkWords)
	if len(pieces) == 0 {
		return fmt.Errorf("document %s has no text to ingest", documentID)
	}
	createdAt := time.Now().UTC()

	// One embedding call per chunk, sequential in chunk-index order.
	// Parallelizing would trade predictable provider rate-limit behavior
	// for throughput.
	chunks := make([]vector.Chunk, 0, len(pieces))
	for i, piece := range pieces {
		embedding, err := s.embedder.Embed(ctx, piece)
		if err != nil {
			return fmt.Errorf("embedding chunk %d of document %s: %w",
				i, documentID, redactText(err, piece))
		}

		s.logger.Debug("embedded chunk",
			zap.String("chunk_id", vector.ChunkID(documentID, i)),
			zap.String("preview", utils.Truncate(piece, 80)),
		)

		chunks = append(chunks, vector.Chunk{
			ID:        vector.ChunkID(documentID, i),
			Text:      piece,
			Embedding: embedding,
			Metadata: vector.Metadata{
				DocumentID:  documentID,
				ChunkIndex:  i,
				TotalChunks: len(pieces),
				Filename:    meta.Filename,
				ContentType: meta.ContentType,
				Size:        meta.Size,
				CreatedAt:   createdAt,
			},
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Re-ingesting an existing document ID is a replace: clear the old
	// chunk set first, or a shorter replacement would leave the old
	// higher-index chunks behind.
	removed, err := s.index.DeleteByDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("clearing existing chunks for document %s: %w", documentID, err)
	}
	if removed > 0 {
		s.registry.Remove(documentID)
		s.logger.Info("replacing document",
			zap.String("document_id", documentID),
			zap.Int("chunks_removed", removed),
		)
	}

	if err := s.index.Add(ctx, chunks); err != nil {
		return fmt.Errorf("inserting chunks for document %s: %w", documentID, err)
	}

	s.registry.Put(registry.Document{
		ID:          documentID,
		Filename:    meta.Filename,
		ContentType: meta.ContentType,
		Size:        meta.Size,
		ChunkCount:  len(chunks),
		CreatedAt:   createdAt,
	})

	s.logger.Info("ingested document",
		zap.String("document_id", documentID),
		zap.String("filename", meta.Filename),
		zap.Int("chunks", len(chunks)),
	)

	if s.notifier != nil {
		s.notifier.NotifyWrite(ctx)
	}

	return nil
}

// Query embeds the text once and searches the index. An empty result is
// not an error: the reason distinguishes an empty index from nothing
// clearing the threshold. Errors never carry the raw query text.
func (s *Service) Query(ctx context.Context, text string, k int, threshold float32) (QueryResult, error) {
	if text == "" {
		return QueryResult{}, fmt.Errorf("query text is required")
	}
	if k <= 0 {
		k = DefaultK
	}

	total, err := s.index.Count(ctx)
	if err != nil {
		return QueryResult{}, fmt.Errorf("counting chunks: %w", err)
	}
	if total == 0 {
		return QueryResult{Reason: ReasonNoDocuments}, nil
	}

	embedding, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return QueryResult{}, fmt.Errorf("embedding query: %w", redactText(err, text))
	}

	results, err := s.index.Search(ctx, embedding, k, threshold)
	if err != nil {
		return QueryResult{}, fmt.Errorf("searching index: %w", redactText(err, text))
	}
	if len(results) == 0 {
		return QueryResult{Reason: ReasonNoMatches}, nil
	}

	s.logger.Debug("query answered",
		zap.Int("results", len(results)),
		zap.Float32("threshold", threshold),
	)

	return QueryResult{Results: results}, nil
}

// DeleteDocument removes a document's chunks from the index and the
// document from the registry, returning how many chunks were removed.
// Deleting an unknown document returns zero without error.
func (s *Service) DeleteDocument(ctx context.Context, documentID string) (int, error) {
	if documentID == "" {
		return 0, fmt.Errorf("document ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	count, err := s.index.DeleteByDocument(ctx, documentID)
	if err != nil {
		return 0, fmt.Errorf("deleting document %s: %w", documentID, err)
	}

	s.registry.Remove(documentID)

	s.logger.Info("deleted document",
		zap.String("document_id", documentID),
		zap.Int("chunks_removed", count),
	)

	if count > 0 && s.notifier != nil {
		s.notifier.NotifyWrite(ctx)
	}

	return count, nil
}

// DocumentByID returns the registry's view of one document.
func (s *Service) DocumentByID(id string) (registry.Document, bool) {
	return s.registry.Get(id)
}

// Documents returns the registry's current view, newest first.
func (s *Service) Documents() []registry.Document {
	return s.registry.Snapshot()
}

// Debug returns the service's operational snapshot.
func (s *Service) Debug(ctx context.Context) (DebugInfo, error) {
	chunkCount, err := s.index.Count(ctx)
	if err != nil {
		return DebugInfo{}, fmt.Errorf("counting chunks: %w", err)
	}

	info := DebugInfo{
		DocumentCount:   s.registry.Len(),
		ChunkCount:      chunkCount,
		CollectionCount: 1,
		StorageInfo:     StorageInfo{IndexDir: s.indexDir},
	}

	if s.notifier != nil {
		last, pending := s.notifier.Status()
		if !last.IsZero() {
			info.BackupStatus.LastBackupTime = &last
		}
		info.BackupStatus.PendingBackup = pending
	}

	return info, nil
}
