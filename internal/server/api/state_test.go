package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/tracking"
)

func newTracker(t *testing.T) *tracking.Tracker {
	t.Helper()
	tr, err := tracking.New(tracking.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("tracking.New() error = %v", err)
	}
	return tr
}

func TestStateHandler(t *testing.T) {
	tr := newTracker(t)
	h := NewStateHandler(tr)

	t.Run("before any frame", func(t *testing.T) {
		rec := do(h, http.MethodGet, "/api/state", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
		}

		var st State
		if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if st.Detected || st.Handedness != "" || st.Openness != 0 {
			t.Errorf("unexpected initial state %+v", st)
		}
		if st.Orientation != (Quaternion{W: 1}) {
			t.Errorf("expected identity orientation, got %+v", st.Orientation)
		}
		if st.TargetOrientation != nil || st.Landmarks != nil {
			t.Error("no target orientation or landmarks before a detection")
		}
		if st.Platform != string(tracking.PlatformDesktop) || !st.ShowCamera {
			t.Errorf("unexpected defaults %+v", st)
		}
	})

	t.Run("after a detection", func(t *testing.T) {
		tr.Process(detector.Result{Hands: []detector.HandLandmarks{detector.OpenPalmLandmarks()}})

		rec := do(h, http.MethodGet, "/api/state", "")
		var st State
		if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if !st.Detected {
			t.Error("expected detected")
		}
		if st.TargetOpenness != 1 {
			t.Errorf("target_openness = %v, want 1", st.TargetOpenness)
		}
		if st.Openness != 0 {
			t.Errorf("reading state must not advance smoothing, openness = %v", st.Openness)
		}
		if st.TargetOrientation == nil {
			t.Error("expected a target orientation")
		}
		if len(st.Landmarks) != detector.NumLandmarks {
			t.Errorf("expected %d landmarks, got %d", detector.NumLandmarks, len(st.Landmarks))
		}
		if st.Frames != 1 {
			t.Errorf("frames = %d, want 1", st.Frames)
		}
	})

	t.Run("only allows GET", func(t *testing.T) {
		rec := do(h, http.MethodPost, "/api/state", "")
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
		}
	})
}

func TestStateHandler_NoSource(t *testing.T) {
	rec := do(NewStateHandler(nil), http.MethodGet, "/api/state", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status %d, got %d", http.StatusServiceUnavailable, rec.Code)
	}
}
