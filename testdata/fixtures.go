// Package testdata provides recorded landmark sessions for replaying the
// tracking pipeline in tests.
package testdata

import (
	"embed"
	"encoding/json"
	"fmt"

	"github.com/ayusman/mudra/internal/detector"
)

//go:embed sessions/*.json
var sessionsFS embed.FS

// Frame is one detector output in a recorded session. A frame without
// landmarks had no hand in view.
type Frame struct {
	Handedness detector.Handedness `json:"handedness"`
	Landmarks  []detector.Point3D  `json:"landmarks"`
}

// Session is a recorded sequence of detector outputs.
type Session struct {
	Name   string  `json:"name"`
	FPS    int     `json:"fps"`
	Frames []Frame `json:"frames"`
}

// LoadSession loads a session by name, e.g. "open_close".
func LoadSession(name string) (*Session, error) {
	data, err := sessionsFS.ReadFile("sessions/" + name + ".json")
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", name, err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", name, err)
	}
	for i, f := range s.Frames {
		if n := len(f.Landmarks); n != 0 && n != detector.NumLandmarks {
			return nil, fmt.Errorf("session %s frame %d has %d landmarks, expected %d", name, i, n, detector.NumLandmarks)
		}
	}
	return &s, nil
}

// Hands returns the frame as detector output: empty when no hand was seen.
func (f Frame) Hands() []detector.HandLandmarks {
	if len(f.Landmarks) == 0 {
		return nil
	}
	h := detector.HandLandmarks{Handedness: f.Handedness, Score: 1}
	copy(h.Points[:], f.Landmarks)
	return []detector.HandLandmarks{h}
}

// Results returns every frame as a detector.Result without an image.
func (s *Session) Results() []detector.Result {
	out := make([]detector.Result, len(s.Frames))
	for i, f := range s.Frames {
		out[i] = detector.Result{Hands: f.Hands()}
	}
	return out
}
