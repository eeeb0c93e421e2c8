package api

import (
	"net"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"go.uber.org/zap"

	"github.com/papercomputeco/chatrelay/pkg/storage"
)

// Server is the API server for querying relayed turns.
type Server struct {
	config Config
	storer storage.Driver
	logger *zap.Logger
	app    *fiber.App
}

// NewServer creates a new API server.
// The storer is injected to allow sharing with the relay when both run in
// one process.
func NewServer(config Config, storer storage.Driver, logger *zap.Logger) *Server {
	if config.MaxListLimit <= 0 {
		config.MaxListLimit = defaultMaxListLimit
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	s := &Server{
		config: config,
		storer: storer,
		logger: logger,
		app:    app,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/stats", s.handleStats)
	app.Get("/turns", s.handleListTurns)
	app.Get("/turns/:id", s.handleGetTurn)

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// RunWithListener starts the API server using the provided listener.
func (s *Server) RunWithListener(listener net.Listener) error {
	s.logger.Info("starting API server",
		zap.String("listen", listener.Addr().String()),
	)
	return s.app.Listener(listener)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
