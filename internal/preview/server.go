// Package preview serves the rendered video surface and session state over local HTTP,
// for watching the rover feed from a browser next to the terminal dashboard.
package preview

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Crys266/IoT-Project/internal/model"
	"github.com/Crys266/IoT-Project/internal/render"
	"github.com/Crys266/IoT-Project/internal/status"
	"github.com/gorilla/mux"
)

// Frames is the rendered surface.
type Frames interface {
	Snapshot() (*image.RGBA, render.FrameInfo)
	Stats() render.Stats
}

// Telemetry is the telemetry cache.
type Telemetry interface {
	Current() model.SystemStatus
	Updated() time.Time
}

// StatusLine is the status reporter.
type StatusLine interface {
	Current() status.Line
}

// Channel exposes the controller channel state.
type Channel interface {
	State() model.ConnectionState
}

// Sources are the read-only views the preview serves.
type Sources struct {
	Frames    Frames
	Telemetry Telemetry
	Status    StatusLine
	Channel   Channel
}

// Server is the preview HTTP server.
type Server struct {
	src          Sources
	logger       *slog.Logger
	router       *mux.Router
	streamPeriod time.Duration
	server       *http.Server
}

// New builds the server and its routes.
func New(src Sources, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{src: src, logger: logger, router: mux.NewRouter(), streamPeriod: 100 * time.Millisecond}
	s.registerRoutes()
	return s
}

// Handler returns the router, for embedding or tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start launches the web server and blocks until stopped.
func (s *Server) Start(addr string) error {
	if addr == "" {
		s.logger.Info("preview server not started (empty address)")
		return nil
	}
	addr = strings.TrimPrefix(addr, "http://")
	addr = strings.TrimPrefix(addr, "https://")
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.logger.Info("preview listening", "addr", addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("preview server: %w", err)
	}
	return nil
}

// Shutdown stops the server gracefully; open streams end with ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
