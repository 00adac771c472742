package app

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/preview"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/tracking"
)

func newTestApp(t *testing.T, cam capture.Camera, det detector.Detector, st *store.Store) *App {
	t.Helper()

	a, err := New(Config{
		Camera:   capture.Config{FPS: 60},
		Tracking: tracking.DefaultConfig(),
		Preview:  preview.DefaultConfig(),
		Platform: tracking.PlatformMobile,
		Store:    st,
	}, WithCamera(cam), WithDetector(det))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func newFrame(t *testing.T) *gocv.Mat {
	t.Helper()
	m := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { m.Close() })
	return &m
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestNew_InvalidTracking(t *testing.T) {
	cfg := tracking.DefaultConfig()
	cfg.Smoothing = 2

	_, err := New(Config{Tracking: cfg}, WithDetector(detector.NewMockDetector()))
	if err == nil {
		t.Fatal("New() should reject an invalid tracking config")
	}
}

func TestNew_Platform(t *testing.T) {
	a := newTestApp(t, capture.NewMockCamera(nil, true), detector.NewMockDetector(), nil)

	if got := a.Tracker().Platform(); got != tracking.PlatformMobile {
		t.Errorf("Platform() = %q, want mobile", got)
	}
	if a.IsEnabled() {
		t.Error("a new App should start disabled")
	}
}

func TestApp_ProcessFrame(t *testing.T) {
	det := detector.NewMockDetector()
	a := newTestApp(t, capture.NewMockCamera(nil, true), det, nil)
	frame := newFrame(t)

	det.SetHands([]detector.HandLandmarks{detector.OpenPalmLandmarks()})
	if err := a.ProcessFrame(frame); err != nil {
		t.Fatalf("ProcessFrame() error = %v", err)
	}

	tr := a.Tracker()
	if !tr.Detected() {
		t.Fatal("tracker should see the hand")
	}
	if got := tr.TargetOpenness(); got != 1 {
		t.Errorf("TargetOpenness() = %v, want 1", got)
	}
	if a.Preview().Rendered() != 1 {
		t.Errorf("preview should render once per frame, got %d", a.Preview().Rendered())
	}
}

func TestApp_ProcessFrame_DetectErrorDropsFrame(t *testing.T) {
	det := detector.NewMockDetector()
	a := newTestApp(t, capture.NewMockCamera(nil, true), det, nil)
	frame := newFrame(t)

	det.SetHands([]detector.HandLandmarks{detector.OpenPalmLandmarks()})
	if err := a.ProcessFrame(frame); err != nil {
		t.Fatalf("ProcessFrame() error = %v", err)
	}

	boom := errors.New("model crashed")
	det.SetError(boom)
	err := a.ProcessFrame(frame)
	if !errors.Is(err, boom) {
		t.Fatalf("ProcessFrame() error = %v, want %v", err, boom)
	}

	// The failed frame neither clears nor replaces the tracked hand.
	tr := a.Tracker()
	if !tr.Detected() || tr.TargetOpenness() != 1 {
		t.Errorf("tracker state changed on a dropped frame: detected=%v target=%v", tr.Detected(), tr.TargetOpenness())
	}
	if got := tr.Snapshot().Frames; got != 1 {
		t.Errorf("Frames = %d, want 1", got)
	}
}

func TestApp_Start_CameraFailure(t *testing.T) {
	cam := capture.NewMockCamera(nil, true)
	cam.FailOpen(true)
	a := newTestApp(t, cam, detector.NewMockDetector(), nil)

	if err := a.Start(); err == nil {
		t.Fatal("Start() should report the camera failure")
	}
	if a.Running() {
		t.Error("pipeline should not run after a failed Start")
	}
}

func TestApp_Pipeline(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping pipeline test in short mode")
	}

	frame := newFrame(t)
	cam := capture.NewMockCamera([]*gocv.Mat{frame}, true)
	det := detector.NewMockDetector()
	det.SetHands([]detector.HandLandmarks{detector.LeftHand(detector.OpenPalmLandmarks())})

	a := newTestApp(t, cam, det, nil)

	var lost int
	a.Tracker().OnLost(func() { lost++ })

	if err := a.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := a.Start(); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}

	// Disabled: the loop runs but reads nothing.
	time.Sleep(50 * time.Millisecond)
	if cam.Reads() != 0 {
		t.Fatalf("disabled pipeline read %d frames", cam.Reads())
	}

	a.SetEnabled(true)
	waitFor(t, "hand detection", a.Tracker().Detected)

	if got := a.Tracker().Handedness(); got != detector.Left {
		t.Errorf("Handedness() = %q, want Left", got)
	}

	a.SetEnabled(false)
	if a.Tracker().Detected() {
		t.Error("disabling should clear detection")
	}
	if a.Tracker().TargetOpenness() != 0 {
		t.Error("disabling should drop the openness target")
	}
	if lost != 1 {
		t.Errorf("lost fired %d times, want 1", lost)
	}

	a.Stop()
	a.Stop()
	if cam.IsOpen() {
		t.Error("Stop() should close the camera")
	}
	if a.Running() {
		t.Error("Running() after Stop()")
	}
}

func TestApp_Restore(t *testing.T) {
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer st.Close()

	a := newTestApp(t, capture.NewMockCamera(nil, true), detector.NewMockDetector(), st)

	// Nothing stored: defaults.
	if err := a.Restore(); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if !a.Tracker().ShowCamera() || !a.IsEnabled() {
		t.Error("defaults should show the camera and enable tracking")
	}
	if a.Tracker().Calibration() != tracking.DefaultCalibration() {
		t.Error("default calibration expected without an active one")
	}

	cal := &store.Calibration{Name: "desk", ClosedRatio: 0.2, OpenRatio: 0.6}
	if err := st.Calibrations().Create(cal); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := st.Calibrations().Activate(cal.ID); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	st.Settings().SetBool(store.SettingShowCamera, false)
	st.Settings().SetBool(store.SettingEnabled, false)

	if err := a.Restore(); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if a.Tracker().ShowCamera() {
		t.Error("show_camera=false should be restored")
	}
	if a.IsEnabled() {
		t.Error("tracking_enabled=false should be restored")
	}
	want := tracking.Calibration{ClosedRatio: 0.2, OpenRatio: 0.6}
	if got := a.Tracker().Calibration(); got != want {
		t.Errorf("Calibration() = %+v, want %+v", got, want)
	}
}
