package api

import (
	"net/http"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/foliostoreco/folio/pkg/extract"
	"github.com/foliostoreco/folio/pkg/ingest"
)

// Server is the API server for uploading, querying, and managing
// documents.
type Server struct {
	config    Config
	service   *ingest.Service
	extractor extract.Extractor
	logger    *zap.Logger
	app       *fiber.App
}

// NewServer creates a new API server. The MCP handler is optional; nil
// disables the /mcp endpoint.
func NewServer(config Config, service *ingest.Service, extractor extract.Extractor, mcpHandler http.Handler, logger *zap.Logger) *Server {
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = DefaultMaxUploadBytes
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		BodyLimit:             int(config.MaxUploadBytes) + 1024*1024,
	})

	s := &Server{
		config:    config,
		service:   service,
		extractor: extractor,
		logger:    logger,
		app:       app,
	}

	app.Get("/ping", s.handlePing)
	app.Post("/upload", s.handleUpload)
	app.Post("/query", s.handleQuery)
	app.Get("/documents", s.handleListDocuments)
	app.Delete("/documents/:id", s.handleDeleteDocument)
	app.Get("/debug", s.handleDebug)

	if mcpHandler != nil {
		app.All("/mcp", adaptor.HTTPHandler(mcpHandler))
	}

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
