// Package app wires the camera, landmark detector, tracker, preview and
// metrics into the running capture pipeline.
package app

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/metrics"
	"github.com/ayusman/mudra/internal/preview"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/tracking"
)

// Config holds the application's component settings.
type Config struct {
	Camera   capture.Config
	Detector detector.Config
	Tracking tracking.Config
	Preview  preview.Config
	Platform tracking.Platform
	// Store, when set, supplies persisted settings and calibrations.
	Store  *store.Store
	Logger *zap.Logger
}

// Option overrides a component New would otherwise build.
type Option func(*App)

// WithCamera replaces the device camera.
func WithCamera(c capture.Camera) Option {
	return func(a *App) { a.camera = c }
}

// WithDetector replaces the MediaPipe detector.
func WithDetector(d detector.Detector) Option {
	return func(a *App) { a.detector = d }
}

// App is the running hand tracking pipeline.
type App struct {
	config   Config
	log      *zap.Logger
	camera   capture.Camera
	detector detector.Detector
	tracker  *tracking.Tracker
	renderer *preview.Renderer
	metrics  *metrics.Recorder

	enabled bool
	mu      sync.RWMutex
	stopCh  chan struct{}
	doneCh  chan struct{}

	// procMu is held for each pipeline step, so no frame is in flight once
	// SetEnabled(false) returns.
	procMu sync.Mutex
}

// New builds the pipeline. Detection starts disabled; call SetEnabled and
// Start. A missing MediaPipe service is returned as an error rather than
// silently producing empty frames.
func New(config Config, opts ...Option) (*App, error) {
	log := config.Logger
	if log == nil {
		log = zap.NewNop()
	}

	tracker, err := tracking.New(config.Tracking, log)
	if err != nil {
		return nil, fmt.Errorf("tracker: %w", err)
	}
	if config.Platform != "" {
		tracker.SetPlatform(config.Platform)
	}

	a := &App{
		config:   config,
		log:      log.Named("app"),
		tracker:  tracker,
		renderer: preview.NewRenderer(config.Preview, log),
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.camera == nil {
		a.camera = capture.NewCamera(config.Camera, log)
	}
	if a.detector == nil {
		mp, err := detector.NewMediaPipeDetector(config.Detector, log)
		if err != nil {
			a.renderer.Close()
			return nil, fmt.Errorf("hand detector: %w", err)
		}
		a.detector = mp
	}

	a.metrics = metrics.NewRecorder(tracker.Openness)
	tracker.Subscribe(a.metrics)
	tracker.SetPreviewer(a.renderer)

	return a, nil
}

// Restore applies persisted settings: the camera backdrop toggle, the
// tracking toggle and the active calibration. Without a store it does
// nothing.
func (a *App) Restore() error {
	s := a.config.Store
	if s == nil {
		return nil
	}

	show, err := s.Settings().GetBool(store.SettingShowCamera, true)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	a.tracker.SetShowCamera(show)

	enabled, err := s.Settings().GetBool(store.SettingEnabled, true)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	a.SetEnabled(enabled)

	cal, err := s.Calibrations().Active()
	switch {
	case errors.Is(err, store.ErrNotFound):
		a.log.Info("no active calibration, using defaults")
	case err != nil:
		return fmt.Errorf("load calibration: %w", err)
	default:
		if err := a.ApplyCalibration(tracking.Calibration{ClosedRatio: cal.ClosedRatio, OpenRatio: cal.OpenRatio}); err != nil {
			return fmt.Errorf("apply calibration %q: %w", cal.Name, err)
		}
	}
	return nil
}

// SetEnabled turns frame ingestion on or off. Disabling publishes one empty
// frame so the tracker drops its target instead of holding a stale pose.
func (a *App) SetEnabled(enabled bool) {
	a.procMu.Lock()
	defer a.procMu.Unlock()

	a.mu.Lock()
	was := a.enabled
	a.enabled = enabled
	a.mu.Unlock()

	if was && !enabled {
		a.tracker.Process(detector.Result{})
	}
	if was != enabled {
		a.log.Info("tracking toggled", zap.Bool("enabled", enabled))
	}
}

// IsEnabled reports whether frames are being ingested.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// ShowCamera reports whether the preview draws the camera frame.
func (a *App) ShowCamera() bool {
	return a.tracker.ShowCamera()
}

// SetShowCamera toggles the preview's camera backdrop.
func (a *App) SetShowCamera(show bool) {
	a.tracker.SetShowCamera(show)
}

// ApplyCalibration installs an openness range on the tracker.
func (a *App) ApplyCalibration(cal tracking.Calibration) error {
	return a.tracker.SetCalibration(cal)
}

// Start opens the camera and launches the capture loop. A camera that fails
// to open is reported to the caller; there is no retry.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return nil
	}

	if err := a.camera.Open(); err != nil {
		return fmt.Errorf("start capture: %w", err)
	}

	a.stopCh = make(chan struct{})
	a.doneCh = make(chan struct{})
	go a.runPipeline(a.stopCh, a.doneCh)

	a.log.Info("capture pipeline started", zap.Int("fps", a.camera.FPS()))
	return nil
}

// Running reports whether the capture loop is active.
func (a *App) Running() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.stopCh != nil
}

// Stop halts the capture loop and releases the camera. It is safe to call
// more than once; Start may be called again afterwards.
func (a *App) Stop() {
	a.mu.Lock()
	stopCh, doneCh := a.stopCh, a.doneCh
	a.stopCh, a.doneCh = nil, nil
	a.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	<-doneCh

	if err := a.camera.Close(); err != nil {
		a.log.Warn("error closing camera", zap.Error(err))
	}
	a.log.Info("capture pipeline stopped")
}

// Close stops the pipeline and releases the detector and preview.
func (a *App) Close() error {
	a.Stop()

	var errs []error
	if err := a.detector.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close detector: %w", err))
	}
	if err := a.renderer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close preview: %w", err))
	}
	return errors.Join(errs...)
}

// Tracker returns the tracker consumers read from.
func (a *App) Tracker() *tracking.Tracker {
	return a.tracker
}

// Preview returns the debug preview renderer.
func (a *App) Preview() *preview.Renderer {
	return a.renderer
}

// Metrics returns the Prometheus recorder.
func (a *App) Metrics() *metrics.Recorder {
	return a.metrics
}

// Camera returns the frame source.
func (a *App) Camera() capture.Camera {
	return a.camera
}

// Detector returns the landmark detector.
func (a *App) Detector() detector.Detector {
	return a.detector
}
