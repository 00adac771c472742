package e2e

import (
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/preview"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/server/api"
	"github.com/ayusman/mudra/internal/spatial"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/tracking"
	"github.com/ayusman/mudra/testdata"
)

type harness struct {
	store    *store.Store
	app      *app.App
	detector *detector.MockDetector
	frame    *gocv.Mat
	ts       *httptest.Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "data.db"), nil)
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })

	det := detector.NewMockDetector()
	a, err := app.New(app.Config{
		Tracking: tracking.DefaultConfig(),
		Preview:  preview.DefaultConfig(),
		Store:    s,
	}, app.WithCamera(capture.NewMockCamera(nil, true)), app.WithDetector(det))
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	if err := a.Restore(); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	srv := server.New(server.Config{App: a, Store: s, Tracking: tracking.DefaultConfig(), TickRate: 120})
	t.Cleanup(srv.Close)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	m := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { m.Close() })

	return &harness{store: s, app: a, detector: det, frame: &m, ts: ts}
}

// replay feeds a recorded session through the pipeline frame by frame.
func (h *harness) replay(t *testing.T, name string) *testdata.Session {
	t.Helper()
	session, err := testdata.LoadSession(name)
	if err != nil {
		t.Fatalf("LoadSession(%q) error = %v", name, err)
	}

	for i, res := range session.Results() {
		h.detector.SetHands(res.Hands)
		if err := h.app.ProcessFrame(h.frame); err != nil {
			t.Fatalf("ProcessFrame() frame %d error = %v", i, err)
		}
	}
	return session
}

func (h *harness) get(t *testing.T, path string) []byte {
	t.Helper()
	resp, err := h.ts.Client().Get(h.ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s error = %v", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s status = %d, want %d", path, resp.StatusCode, http.StatusOK)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return body
}

func TestE2E_ReplayOpenClose(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	h := newHarness(t)
	tr := h.app.Tracker()

	var lost int
	tr.OnLost(func() { lost++ })

	var targets []float64
	tr.OnUpdate(func(s tracking.Snapshot) { targets = append(targets, s.TargetOpenness) })

	h.replay(t, "open_close")

	// The hand opens from a fist: the target rises monotonically to 1.
	if len(targets) != 13 {
		t.Fatalf("got %d updates, want 13", len(targets))
	}
	if math.Abs(targets[0]) > 1e-9 {
		t.Errorf("first target = %v, want 0", targets[0])
	}
	for i := 1; i < len(targets); i++ {
		if targets[i] < targets[i-1] {
			t.Errorf("target fell at frame %d: %v < %v", i, targets[i], targets[i-1])
		}
	}
	if last := targets[len(targets)-1]; math.Abs(last-1) > 1e-9 {
		t.Errorf("last target = %v, want 1", last)
	}

	// Then it leaves the frame.
	if lost != 3 {
		t.Errorf("lost fired %d times, want 3", lost)
	}
	if tr.Detected() {
		t.Error("Detected() = true after the hand left")
	}
	if got := tr.Handedness(); got != detector.Right {
		t.Errorf("Handedness() = %q, want it kept as Right", got)
	}
	if got := tr.TargetOpenness(); got != 0 {
		t.Errorf("TargetOpenness() = %v, want 0", got)
	}

	var st api.State
	if err := json.Unmarshal(h.get(t, "/api/state"), &st); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if st.Detected {
		t.Error("state.detected = true, want false")
	}
	if st.Handedness != "Right" {
		t.Errorf("state.handedness = %q, want Right", st.Handedness)
	}
	if st.Frames != 16 {
		t.Errorf("state.frames = %d, want 16", st.Frames)
	}
	if st.Landmarks != nil {
		t.Errorf("state.landmarks = %v, want none", st.Landmarks)
	}

	metrics := string(h.get(t, "/metrics"))
	for _, want := range []string{
		"mudra_frames_total 16",
		"mudra_hand_lost_total 3",
		"mudra_hand_detected 0",
	} {
		if !strings.Contains(metrics, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestE2E_WristRollOrientation(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	h := newHarness(t)
	tr := h.app.Tracker()

	var orientations []tracking.Snapshot
	tr.OnUpdate(func(s tracking.Snapshot) { orientations = append(orientations, s) })

	session := h.replay(t, "wrist_roll")
	if len(orientations) != len(session.Frames) {
		t.Fatalf("got %d updates, want %d", len(orientations), len(session.Frames))
	}

	for i, s := range orientations {
		if !s.HasTargetOrientation {
			t.Fatalf("frame %d has no target orientation", i)
		}
	}
	first := orientations[0].TargetOrientation
	last := orientations[len(orientations)-1].TargetOrientation

	// Six 10° steps in the image plane are a 60° roll.
	if got := spatial.Angle(first, last); math.Abs(got-math.Pi/3) > 0.01 {
		t.Errorf("roll = %v rad, want %v", got, math.Pi/3)
	}
	if got := tr.Handedness(); got != detector.Left {
		t.Errorf("Handedness() = %q, want Left", got)
	}

	// Ticking converges the smoothed orientation onto the last pose.
	for range 300 {
		tr.Update()
	}
	if got := spatial.Angle(tr.Orientation(), last); got >= 1e-3 {
		t.Errorf("orientation still %v rad from the target", got)
	}
}

func TestE2E_CalibrateAndTrack(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	h := newHarness(t)
	client := h.ts.Client()

	session, err := testdata.LoadSession("open_close")
	if err != nil {
		t.Fatalf("LoadSession() error = %v", err)
	}

	sample := func(f testdata.Frame) json.RawMessage {
		data, err := json.Marshal(map[string]any{"landmarks": f.Landmarks, "timestamp": 0})
		if err != nil {
			t.Fatalf("marshal sample: %v", err)
		}
		return data
	}
	// A calibration recorded with a half-closed hand as the "closed" pose.
	body, err := json.Marshal(map[string]any{
		"name":           "half",
		"closed_samples": []json.RawMessage{sample(session.Frames[4])},
		"open_samples":   []json.RawMessage{sample(session.Frames[8]), sample(session.Frames[9])},
	})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	resp, err := client.Post(h.ts.URL+"/api/calibrations", "application/json", strings.NewReader(string(body)))
	if err != nil {
		t.Fatalf("create calibration error = %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		resp.Body.Close()
		t.Fatalf("create status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	var created struct {
		ID string `json:"id"`
	}
	err = json.NewDecoder(resp.Body).Decode(&created)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("decode created calibration: %v", err)
	}

	resp, err = client.Post(h.ts.URL+"/api/calibrations/"+created.ID+"/activate", "application/json", nil)
	if err != nil {
		t.Fatalf("activate error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("activate status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	// Anything at least as closed as the calibrated pose now reads 0.
	var targets []float64
	h.app.Tracker().OnUpdate(func(s tracking.Snapshot) { targets = append(targets, s.TargetOpenness) })
	h.replay(t, "open_close")

	if len(targets) != 13 {
		t.Fatalf("got %d updates, want 13", len(targets))
	}
	for i := 0; i <= 4; i++ {
		if targets[i] != 0 {
			t.Errorf("frame %d target = %v, want 0", i, targets[i])
		}
	}
	if math.Abs(targets[12]-1) > 1e-9 {
		t.Errorf("open palm target = %v, want 1", targets[12])
	}

	// The active calibration survives a restart.
	a2, err := app.New(app.Config{Tracking: tracking.DefaultConfig(), Store: h.store},
		app.WithCamera(capture.NewMockCamera(nil, true)), app.WithDetector(detector.NewMockDetector()))
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}
	defer a2.Close()
	if err := a2.Restore(); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	got := a2.Tracker().Calibration()
	if got != h.app.Tracker().Calibration() {
		t.Errorf("restored calibration = %+v, want %+v", got, h.app.Tracker().Calibration())
	}
	if got == tracking.DefaultCalibration() {
		t.Error("restored calibration is the default")
	}
}

func TestE2E_SettingsToggle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	h := newHarness(t)
	if !h.app.IsEnabled() {
		t.Fatal("tracking should start enabled")
	}

	req, err := http.NewRequest(http.MethodPut, h.ts.URL+"/api/settings",
		strings.NewReader(`{"show_camera": false, "tracking_enabled": false}`))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	resp, err := h.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("PUT /api/settings error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	if h.app.IsEnabled() {
		t.Error("IsEnabled() = true after disabling")
	}
	if h.app.Tracker().ShowCamera() {
		t.Error("ShowCamera() = true after hiding the camera")
	}

	show, err := h.store.Settings().GetBool(store.SettingShowCamera, true)
	if err != nil {
		t.Fatalf("GetBool() error = %v", err)
	}
	if show {
		t.Error("show_camera was not persisted")
	}
}
