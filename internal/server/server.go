// Package server provides the HTTP server for codescan: the scanner control
// API, the preview stream and the live result feed.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ayusman/codescan/internal/dispatch"
	"github.com/ayusman/codescan/internal/preview"
	"github.com/ayusman/codescan/internal/server/api"
	"github.com/ayusman/codescan/internal/store"
)

// Feed delivers result batches to subscribers.
type Feed interface {
	Subscribe(fn func(dispatch.Batch)) (cancel func())
}

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	Session   api.Session
	Surface   *preview.Surface
	Feed      Feed
	Plugins   api.PluginLookup
	// StreamFPS caps the MJPEG preview rate.
	StreamFPS int
	Metrics   bool
	Logger    *slog.Logger
}

// Server is the HTTP front end of the scanner host.
type Server struct {
	config  Config
	log     *slog.Logger
	mux     *http.ServeMux
	start   time.Time
	results *ResultsHandler
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	s := &Server{
		config: config,
		log:    config.Logger.With("component", "server"),
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Store != nil {
		bindings := api.NewBindingHandler(s.config.Store, s.config.Plugins)
		s.mux.Handle("/api/bindings", bindings)
		s.mux.Handle("/api/bindings/", bindings)

		scans := api.NewScanHandler(s.config.Store)
		s.mux.Handle("/api/scans", scans)
		s.mux.Handle("/api/scans/", scans)
	}

	if s.config.Session != nil {
		ctrl := api.NewScannerHandler(s.config.Session)
		s.mux.Handle("/api/scanner", ctrl)
		s.mux.Handle("/api/scanner/", ctrl)
	}

	if s.config.Surface != nil {
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Surface, s.config.StreamFPS))
		s.mux.HandleFunc("/api/preview.jpg", s.handleSnapshot)
	}

	if s.config.Feed != nil {
		s.results = NewResultsHandler(s.config.Feed, s.log)
		s.mux.Handle("/api/results", s.results)
	}

	if s.config.Metrics {
		s.mux.Handle("/metrics", promhttp.Handler())
	}

	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if s.config.Session != nil {
		response["scanner"] = s.config.Session.Scanner().State().String()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// handleSnapshot serves the latest preview frame.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	frame := s.config.Surface.Snapshot()
	if frame == nil {
		http.Error(w, "No preview available", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(frame)
}

// Close disconnects result feed clients.
func (s *Server) Close() {
	if s.results != nil {
		s.results.Close()
	}
}

// ShutdownTimeout bounds how long Serve waits for requests in flight.
const ShutdownTimeout = 5 * time.Second

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return s.Serve(context.Background(), addr)
}

// Serve runs the HTTP server until ctx is cancelled, then shuts it down.
func (s *Server) Serve(ctx context.Context, addr string) error {
	// Streams end with the base context instead of holding up Shutdown.
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	s.Close()
	cancelBase()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
