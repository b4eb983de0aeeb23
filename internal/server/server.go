package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spliteth/spliteth/internal/apperr"
	"github.com/spliteth/spliteth/internal/config"
	"github.com/spliteth/spliteth/internal/routes"
)

const baseTimeout = 30 * time.Second

// Server wraps the Fiber application and shared dependencies.
type Server struct {
	app *fiber.App
	cfg config.Config
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
// Writes may wait on transaction inclusion, so the write timeout grows with
// the configured inclusion timeout.
func New(deps routes.Deps) (*Server, error) {
	cfg := deps.Cfg
	writeTimeout := baseTimeout
	if cfg.WaitForActivation || cfg.WaitForSplit {
		writeTimeout += 2 * cfg.TxWaitTimeout
	}
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  baseTimeout,
		WriteTimeout: writeTimeout,
		ErrorHandler: apperr.Handler(deps.Logger),
	})

	if err := routes.Setup(app, deps); err != nil {
		return nil, err
	}

	return &Server{app: app, cfg: cfg}, nil
}

// App exposes the underlying Fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Address())
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
