// Package sqlitevec provides a SQLite-backed vector driver using sqlite-vec.
//
// The whole index lives in one database file, which is what makes the
// durability story possible: the syncer mirrors that file set to a remote
// object store without knowing anything about its contents.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/foliostoreco/folio/pkg/vector"
)

// overFetchFactor is how many times k the KNN query requests, leaving room
// for threshold filtering to discard low-similarity hits.
const overFetchFactor = 3

// SQLiteVecDriver implements vector.Driver using SQLite with sqlite-vec.
type SQLiteVecDriver struct {
	db         *sql.DB
	path       string
	dimensions uint
	logger     *zap.Logger
}

// Config holds configuration for the SQLite vec driver.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string

	// Dimensions is the number of dimensions for the embedding vectors.
	Dimensions uint
}

// NewSQLiteVecDriver creates a new SQLite vector driver backed by sqlite-vec.
func NewSQLiteVecDriver(c Config, logger *zap.Logger) (*SQLiteVecDriver, error) {
	// enable connection to have sqlite-vec extension
	sqlite_vec.Auto()

	if c.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}

	dimensions := c.Dimensions
	if dimensions == 0 {
		return nil, fmt.Errorf("sqlite-vec embedding dimensions cannot be 0, must be configured")
	}

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Verify sqlite-vec is loaded
	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec not available: %w", err)
	}

	// Create the chunk table. vec0 virtual tables use integer rowids, so
	// chunk IDs and document metadata live here, keyed to the vec0 table
	// by rowid.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS chunks (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			chunk_id TEXT NOT NULL UNIQUE,
			document_id TEXT NOT NULL DEFAULT '',
			chunk_index INTEGER NOT NULL DEFAULT 0,
			total_chunks INTEGER NOT NULL DEFAULT 0,
			filename TEXT NOT NULL DEFAULT '',
			content_type TEXT NOT NULL DEFAULT '',
			size INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL DEFAULT '',
			text TEXT NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating chunks table: %w", err)
	}

	if _, err := db.Exec(
		`CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id)`,
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating document index: %w", err)
	}

	// Create the vec0 virtual table for vector storage and KNN queries.
	// The distance metric is fixed for the table's lifetime; changing it
	// requires a full rebuild.
	createVec := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS chunk_embeddings USING vec0(embedding float[%d] distance_metric=cosine)`,
		dimensions,
	)
	if _, err := db.Exec(createVec); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating vec0 table: %w", err)
	}

	logger.Info("sqlite-vec vector driver initialized",
		zap.String("db_path", c.DBPath),
		zap.Uint("dimensions", dimensions),
		zap.String("vec_version", vecVersion),
	)

	return &SQLiteVecDriver{
		db:         db,
		path:       c.DBPath,
		dimensions: dimensions,
		logger:     logger,
	}, nil
}

// Path returns the database file path the driver was opened with.
func (d *SQLiteVecDriver) Path() string {
	return d.path
}

// serializeFloat32 converts a float32 slice to a little-endian byte slice
// suitable for sqlite-vec BLOB format.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// Add stores chunks with their embeddings in a single transaction.
// A chunk with the same ID as an existing one replaces it.
func (d *SQLiteVecDriver) Add(ctx context.Context, chunks []vector.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	// Validate before opening the transaction so a bad chunk can never
	// leave a partial batch behind.
	for _, c := range chunks {
		if c.ID == "" {
			return fmt.Errorf("chunk with empty ID")
		}
		if c.Text == "" {
			return fmt.Errorf("chunk %s has empty text", c.ID)
		}
		if uint(len(c.Embedding)) != d.dimensions {
			return fmt.Errorf("%w: chunk %s has %d dimensions, store expects %d",
				vector.ErrDimensionMismatch, c.ID, len(c.Embedding), d.dimensions)
		}
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, c := range chunks {
		embBlob := serializeFloat32(c.Embedding)

		// Check if the chunk already exists
		var existingRowID int64
		err = tx.QueryRowContext(ctx,
			`SELECT rowid FROM chunks WHERE chunk_id = ?`, c.ID,
		).Scan(&existingRowID)

		switch err {
		case nil:
			// Chunk exists — update text, metadata, and embedding
			if _, err := tx.ExecContext(ctx,
				`UPDATE chunks SET document_id = ?, chunk_index = ?, total_chunks = ?,
					filename = ?, content_type = ?, size = ?, created_at = ?, text = ?
				 WHERE rowid = ?`,
				c.Metadata.DocumentID, c.Metadata.ChunkIndex, c.Metadata.TotalChunks,
				c.Metadata.Filename, c.Metadata.ContentType, c.Metadata.Size,
				formatTime(c.Metadata.CreatedAt), c.Text, existingRowID,
			); err != nil {
				return fmt.Errorf("updating chunk %s: %w", c.ID, err)
			}

			// Update embedding in vec0 table via DELETE + INSERT
			// (vec0 does not support UPDATE)
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM chunk_embeddings WHERE rowid = ?`, existingRowID,
			); err != nil {
				return fmt.Errorf("deleting old embedding for chunk %s: %w", c.ID, err)
			}

			if _, err := tx.ExecContext(ctx,
				`INSERT INTO chunk_embeddings(rowid, embedding) VALUES (?, ?)`,
				existingRowID, embBlob,
			); err != nil {
				return fmt.Errorf("re-inserting embedding for chunk %s: %w", c.ID, err)
			}
		case sql.ErrNoRows:
			// New chunk — insert into the chunks table first to get the rowid
			result, err := tx.ExecContext(ctx,
				`INSERT INTO chunks(chunk_id, document_id, chunk_index, total_chunks,
					filename, content_type, size, created_at, text)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				c.ID, c.Metadata.DocumentID, c.Metadata.ChunkIndex, c.Metadata.TotalChunks,
				c.Metadata.Filename, c.Metadata.ContentType, c.Metadata.Size,
				formatTime(c.Metadata.CreatedAt), c.Text,
			)
			if err != nil {
				return fmt.Errorf("inserting chunk %s: %w", c.ID, err)
			}

			rowID, err := result.LastInsertId()
			if err != nil {
				return fmt.Errorf("getting rowid for chunk %s: %w", c.ID, err)
			}

			// Insert embedding into vec0 table with matching rowid
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO chunk_embeddings(rowid, embedding) VALUES (?, ?)`,
				rowID, embBlob,
			); err != nil {
				return fmt.Errorf("inserting embedding for chunk %s: %w", c.ID, err)
			}
		default:
			return fmt.Errorf("checking for existing chunk %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("added chunks to sqlite-vec",
		zap.Int("count", len(chunks)),
	)

	return nil
}

// Search finds up to k chunks by cosine similarity to the embedding.
// The KNN query over-fetches k*3 rows so low-similarity hits can be
// discarded without starving the result set; survivors are re-sorted by
// similarity descending and truncated to k.
func (d *SQLiteVecDriver) Search(ctx context.Context, embedding []float32, k int, threshold float32) ([]vector.ScoredChunk, error) {
	if k <= 0 {
		k = 3
	}
	if uint(len(embedding)) != d.dimensions {
		return nil, fmt.Errorf("%w: query has %d dimensions, store expects %d",
			vector.ErrDimensionMismatch, len(embedding), d.dimensions)
	}

	queryBlob := serializeFloat32(embedding)

	rows, err := d.db.QueryContext(ctx, `
		SELECT
			c.chunk_id,
			c.document_id,
			c.chunk_index,
			c.total_chunks,
			c.filename,
			c.content_type,
			c.size,
			c.created_at,
			c.text,
			ce.distance
		FROM chunk_embeddings ce
		INNER JOIN chunks c ON c.rowid = ce.rowid
		WHERE ce.embedding MATCH ?
			AND ce.k = ?
		ORDER BY ce.distance
	`, queryBlob, k*overFetchFactor)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	var results []vector.ScoredChunk
	for rows.Next() {
		var (
			sc        vector.ScoredChunk
			createdAt string
			distance  float64
		)
		if err := rows.Scan(
			&sc.ID,
			&sc.Metadata.DocumentID,
			&sc.Metadata.ChunkIndex,
			&sc.Metadata.TotalChunks,
			&sc.Metadata.Filename,
			&sc.Metadata.ContentType,
			&sc.Metadata.Size,
			&createdAt,
			&sc.Text,
			&distance,
		); err != nil {
			return nil, fmt.Errorf("scanning query result: %w", err)
		}

		sc.Metadata.CreatedAt = parseTime(createdAt)
		restoreDocumentID(&sc.Chunk)

		// Cosine distance to similarity score
		sc.Score = float32(1.0 - distance)
		if sc.Score < threshold {
			continue
		}

		results = append(results, sc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating query results: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > k {
		results = results[:k]
	}

	d.logger.Debug("queried sqlite-vec",
		zap.Int("results", len(results)),
		zap.Float32("threshold", threshold),
	)

	return results, nil
}

// DeleteByDocument removes every chunk belonging to the document. Chunks
// whose metadata lost the document_id are still matched through the
// "_chunk_N" ID suffix, so a recoverable chunk is never stranded.
func (d *SQLiteVecDriver) DeleteByDocument(ctx context.Context, documentID string) (int, error) {
	if documentID == "" {
		return 0, fmt.Errorf("document ID is required")
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT rowid FROM chunks
		 WHERE document_id = ?
			OR (document_id = '' AND chunk_id GLOB ? || '_chunk_*')`,
		documentID, documentID,
	)
	if err != nil {
		return 0, fmt.Errorf("querying rowids for deletion: %w", err)
	}

	var rowIDs []int64
	for rows.Next() {
		var rowID int64
		if err := rows.Scan(&rowID); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scanning rowid: %w", err)
		}
		rowIDs = append(rowIDs, rowID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterating rowids: %w", err)
	}

	for _, rowID := range rowIDs {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM chunk_embeddings WHERE rowid = ?`, rowID,
		); err != nil {
			return 0, fmt.Errorf("deleting embedding rowid %d: %w", rowID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM chunks WHERE rowid = ?`, rowID,
		); err != nil {
			return 0, fmt.Errorf("deleting chunk rowid %d: %w", rowID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("deleted document chunks from sqlite-vec",
		zap.String("document_id", documentID),
		zap.Int("count", len(rowIDs)),
	)

	return len(rowIDs), nil
}

// Count returns the total number of stored chunks.
func (d *SQLiteVecDriver) Count(ctx context.Context) (int, error) {
	var n int
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}

// Scan iterates all chunk metadata in insertion order without loading
// embeddings. Used for the startup registry rebuild.
func (d *SQLiteVecDriver) Scan(ctx context.Context, fn func(chunkID string, meta vector.Metadata) error) error {
	rows, err := d.db.QueryContext(ctx, `
		SELECT chunk_id, document_id, chunk_index, total_chunks,
			filename, content_type, size, created_at
		FROM chunks
		ORDER BY rowid
	`)
	if err != nil {
		return fmt.Errorf("scanning chunks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			chunkID   string
			meta      vector.Metadata
			createdAt string
		)
		if err := rows.Scan(
			&chunkID,
			&meta.DocumentID,
			&meta.ChunkIndex,
			&meta.TotalChunks,
			&meta.Filename,
			&meta.ContentType,
			&meta.Size,
			&createdAt,
		); err != nil {
			return fmt.Errorf("scanning chunk metadata: %w", err)
		}
		meta.CreatedAt = parseTime(createdAt)

		if err := fn(chunkID, meta); err != nil {
			return err
		}
	}

	return rows.Err()
}

// Close releases resources held by the driver.
func (d *SQLiteVecDriver) Close() error {
	return d.db.Close()
}

// restoreDocumentID back-fills a missing document ID from the chunk ID's
// canonical suffix so an identifiable chunk is never dropped.
func restoreDocumentID(c *vector.Chunk) {
	if c.Metadata.DocumentID != "" {
		return
	}
	if docID, ok := vector.DocumentIDFromChunkID(c.ID); ok {
		c.Metadata.DocumentID = docID
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
