// Package server exposes the tracker over HTTP: REST endpoints for state,
// settings and calibrations, a WebSocket stream of smoothed state, an MJPEG
// preview and Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/calibration"
	"github.com/ayusman/mudra/internal/server/api"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/tracking"
)

const shutdownTimeout = 5 * time.Second

// Config holds the server configuration. App, when set, supplies Tracker,
// Controls, Calibrator, Preview and Metrics; fields set explicitly win.
type Config struct {
	StaticDir string
	App       *app.App

	Tracker    *tracking.Tracker
	Controls   api.Controls
	Calibrator api.Calibrator
	Store      *store.Store
	Preview    JPEGSource
	Metrics    http.Handler

	// Tracking is the tracker configuration; its calibration is restored
	// when the active calibration is deleted.
	Tracking tracking.Config
	// TickRate is the WebSocket render loop rate in Hz.
	TickRate int
	Logger   *zap.Logger
}

func (c *Config) fromApp() {
	a := c.App
	if a == nil {
		return
	}
	if c.Tracker == nil {
		c.Tracker = a.Tracker()
	}
	if c.Controls == nil {
		c.Controls = a
	}
	if c.Calibrator == nil {
		c.Calibrator = a
	}
	if c.Preview == nil {
		c.Preview = a.Preview()
	}
	if c.Metrics == nil {
		c.Metrics = a.Metrics().Handler()
	}
}

// Server represents the HTTP server for the mudra application.
type Server struct {
	config   Config
	log      *zap.Logger
	mux      *http.ServeMux
	start    time.Time
	tracking *TrackingHandler
}

// New creates a new Server with the given configuration. Close releases
// the WebSocket render loop.
func New(config Config) *Server {
	config.fromApp()
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.Tracking == (tracking.Config{}) {
		config.Tracking = tracking.DefaultConfig()
	}

	s := &Server{
		config: config,
		log:    config.Logger.Named("server"),
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	cfg := s.config

	s.mux.HandleFunc("/api/health", s.handleHealth)

	calibrations := api.NewCalibrationHandler(api.CalibrationConfig{
		Store:    cfg.Store,
		Trainer:  calibration.NewTrainer(cfg.Tracking.MinScale),
		Target:   cfg.Calibrator,
		Fallback: cfg.Tracking.Calibration,
		Logger:   cfg.Logger,
	})
	s.mux.Handle("/api/calibrations", calibrations)
	s.mux.Handle("/api/calibrations/", calibrations)

	s.mux.Handle("/api/settings", api.NewSettingsHandler(cfg.Store, cfg.Controls, cfg.Logger))

	if cfg.Tracker != nil {
		s.mux.Handle("/api/state", api.NewStateHandler(cfg.Tracker))

		s.tracking = NewTrackingHandler(cfg.Tracker, cfg.TickRate, cfg.Logger)
		s.mux.Handle("/api/tracking", s.tracking)
	}

	if cfg.Preview != nil {
		s.mux.Handle("/api/preview", NewStreamHandler(cfg.Preview))
	}

	if cfg.Metrics != nil {
		s.mux.Handle("/metrics", cfg.Metrics)
	}

	// Serve static files if StaticDir is configured
	if cfg.StaticDir != "" {
		fs := http.FileServer(http.Dir(cfg.StaticDir))
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

	response := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// Tracking returns the WebSocket stream handler, nil without a tracker.
func (s *Server) Tracking() *TrackingHandler {
	return s.tracking
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
// Streaming requests see their context cancelled with ctx.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.log.Info("http server stopped")
	return nil
}

// Close stops the WebSocket render loop and disconnects its clients.
func (s *Server) Close() {
	if s.tracking != nil {
		s.tracking.Close()
	}
}
