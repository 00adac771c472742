package api

import (
	"net/http"

	"gonum.org/v1/gonum/num/quat"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/spatial"
	"github.com/ayusman/mudra/internal/tracking"
)

// Quaternion is the JSON form of a rotation.
type Quaternion struct {
	W float64 `json:"w"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func toQuaternion(q quat.Number) Quaternion {
	return Quaternion{W: q.Real, X: q.Imag, Y: q.Jmag, Z: q.Kmag}
}

// State is the JSON form of a tracker snapshot. Landmarks are the raw image
// coordinates of the last detected hand.
type State struct {
	Event             string             `json:"event,omitempty"`
	Detected          bool               `json:"detected"`
	Handedness        string             `json:"handedness"`
	Openness          float64            `json:"openness"`
	TargetOpenness    float64            `json:"target_openness"`
	Orientation       Quaternion         `json:"orientation"`
	Euler             spatial.Euler      `json:"euler"`
	TargetOrientation *Quaternion        `json:"target_orientation,omitempty"`
	Landmarks         []detector.Point3D `json:"landmarks,omitempty"`
	Platform          string             `json:"platform"`
	ShowCamera        bool               `json:"show_camera"`
	Frames            uint64             `json:"frames"`
}

// NewState converts a snapshot into its JSON form.
func NewState(s tracking.Snapshot) State {
	st := State{
		Detected:       s.Detected,
		Handedness:     string(s.Handedness),
		Openness:       s.Openness,
		TargetOpenness: s.TargetOpenness,
		Orientation:    toQuaternion(s.Orientation),
		Euler:          spatial.ToEuler(s.Orientation),
		Platform:       string(s.Platform),
		ShowCamera:     s.ShowCamera,
		Frames:         s.Frames,
	}
	if s.HasTargetOrientation {
		q := toQuaternion(s.TargetOrientation)
		st.TargetOrientation = &q
	}
	if s.Landmarks != nil {
		st.Landmarks = append([]detector.Point3D(nil), s.Landmarks.Points[:]...)
	}
	return st
}

// SnapshotSource is anything that can report tracker state.
type SnapshotSource interface {
	Snapshot() tracking.Snapshot
}

// StateHandler handles GET /api/state. It reads the tracker without
// advancing its smoothing.
type StateHandler struct {
	source SnapshotSource
}

// NewStateHandler creates a new StateHandler.
func NewStateHandler(source SnapshotSource) *StateHandler {
	return &StateHandler{source: source}
}

func (h *StateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if h.source == nil {
		writeError(w, http.StatusServiceUnavailable, "tracking is not running")
		return
	}
	writeJSON(w, http.StatusOK, NewState(h.source.Snapshot()))
}
