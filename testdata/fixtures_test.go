package testdata

import (
	"testing"

	"github.com/ayusman/mudra/internal/detector"
)

func TestLoadSession(t *testing.T) {
	tests := []struct {
		name       string
		frames     int
		empty      int
		handedness detector.Handedness
	}{
		{name: "open_close", frames: 16, empty: 3, handedness: detector.Right},
		{name: "wrist_roll", frames: 7, empty: 0, handedness: detector.Left},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := LoadSession(tt.name)
			if err != nil {
				t.Fatalf("LoadSession() error = %v", err)
			}
			if s.FPS != 30 {
				t.Errorf("FPS = %d, want 30", s.FPS)
			}
			if len(s.Frames) != tt.frames {
				t.Fatalf("len(Frames) = %d, want %d", len(s.Frames), tt.frames)
			}

			empty := 0
			for i, res := range s.Results() {
				if len(res.Hands) == 0 {
					empty++
					continue
				}
				if res.Hands[0].Handedness != tt.handedness {
					t.Errorf("frame %d handedness = %q, want %q", i, res.Hands[0].Handedness, tt.handedness)
				}
			}
			if empty != tt.empty {
				t.Errorf("empty frames = %d, want %d", empty, tt.empty)
			}
		})
	}
}

func TestLoadSession_Missing(t *testing.T) {
	if _, err := LoadSession("nope"); err == nil {
		t.Error("expected an error for a missing session")
	}
}
