// Package api provides the HTTP server for uploading, querying, and
// managing documents.
package api

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string

	// MaxUploadBytes caps the size of an uploaded document. Zero
	// selects DefaultMaxUploadBytes.
	MaxUploadBytes int64
}

// DefaultMaxUploadBytes is the upload cap applied when none is
// configured.
const DefaultMaxUploadBytes = 50 * 1024 * 1024
