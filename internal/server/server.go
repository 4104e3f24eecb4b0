// Package server exposes crop sessions over WebSocket. Each connection owns
// one Cropper: the client opens an image, streams gestures and menu actions,
// asks for previews and finally accepts or cancels.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/menta2k/image-cropper/pkg/cropper"
	"github.com/menta2k/image-cropper/pkg/geom"
	"github.com/menta2k/image-cropper/pkg/processing"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	cfg    Config
	logger *slog.Logger
}

// NewServer creates a session server, filling unset configuration.
func NewServer(cfg Config) *Server {
	if cfg.View.IsEmpty() {
		cfg.View = geom.IntSize{Width: 1080, Height: 1080}
	}
	if cfg.Processor == nil {
		cfg.Processor = processing.NewProcessor()
	}
	if cfg.Format == "" {
		cfg.Format = processing.FormatJPEG
	}
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 32
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{cfg: cfg, logger: logger}
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/ws", s.sessionWebSocketHandler)
	mux.Handle(s.cfg.MetricsPath, promhttp.Handler())
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting crop server", "addr", addr, "metrics", s.cfg.MetricsPath)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Starting graceful shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("Graceful shutdown completed")
	return nil
}

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:  "healthy",
		Version: s.cfg.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Error("Failed to encode health response", "error", err)
	}
}

// newCropper builds the per connection Cropper, reporting back through sess.
func (s *Server) newCropper(sess *session) *cropper.Cropper {
	return cropper.New(
		cropper.WithStyle(s.cfg.Style),
		cropper.WithLogger(sess.logger),
		cropper.WithStatusHook(sess.onStatus),
		cropper.WithSessionHook(sess.onSession),
		cropper.WithResultHook(sess.onResult),
	)
}
