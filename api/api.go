package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/loom/pkg/pipeline"
)

// Server is the API server for a running loom pipeline.
type Server struct {
	config Config
	pipe   *pipeline.Pipeline
	logger *slog.Logger
	app    *fiber.App
}

// NewServer creates a new API server. The pipeline is injected so the server
// shares the same single-flight lock as the file watcher and CLI triggers.
// mcpHandler is optional; when non-nil it is mounted at /mcp.
func NewServer(config Config, pipe *pipeline.Pipeline, mcpHandler http.Handler, logger *slog.Logger) (*Server, error) {
	if pipe == nil {
		return nil, errors.New("pipeline is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		pipe:   pipe,
		logger: logger,
		app:    app,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/memory", s.handleGetMemory)
	app.Get("/state", s.handleGetState)
	app.Patch("/settings", s.handlePatchSettings)
	app.Post("/update", s.handleUpdate)
	app.Post("/refresh", s.handleRefresh)

	if mcpHandler != nil {
		app.All("/mcp", adaptor.HTTPHandler(mcpHandler))
	}

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
