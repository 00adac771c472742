// Package calibration derives an openness range from recorded closed-fist
// and open-hand poses.
package calibration

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/tracking"
)

// MinSpread is the smallest open/closed ratio gap accepted. Anything tighter
// makes openness jump between 0 and 1 on tracking noise.
const MinSpread = 0.05

var (
	// ErrNoSamples is returned when a pose set is empty or every sample in it
	// was degenerate.
	ErrNoSamples = errors.New("no usable samples")
	// ErrRangeTooNarrow is returned when the two poses are indistinguishable.
	ErrRangeTooNarrow = errors.New("open and closed poses too similar")
)

// Sample is one recorded pose as posted by a client.
type Sample struct {
	Landmarks []detector.Point3D `json:"landmarks"`
	Timestamp int64              `json:"timestamp"`
}

// Trainer turns pose samples into a tracking.Calibration.
type Trainer struct {
	minScale float64
}

// NewTrainer creates a Trainer that skips hands with a palm shorter than
// minScale.
func NewTrainer(minScale float64) *Trainer {
	return &Trainer{minScale: minScale}
}

// Train averages the extension ratio of each pose set and returns the range
// between them.
func (t *Trainer) Train(closed, open []detector.HandLandmarks) (tracking.Calibration, error) {
	closedRatio, err := t.meanRatio(closed)
	if err != nil {
		return tracking.Calibration{}, fmt.Errorf("closed pose: %w", err)
	}
	openRatio, err := t.meanRatio(open)
	if err != nil {
		return tracking.Calibration{}, fmt.Errorf("open pose: %w", err)
	}

	if openRatio-closedRatio < MinSpread {
		return tracking.Calibration{}, fmt.Errorf("%w: closed %.3f, open %.3f", ErrRangeTooNarrow, closedRatio, openRatio)
	}

	cal := tracking.Calibration{ClosedRatio: closedRatio, OpenRatio: openRatio}
	if err := cal.Validate(); err != nil {
		return tracking.Calibration{}, err
	}
	return cal, nil
}

// TrainSamples parses recorded JSON samples and trains on them.
func (t *Trainer) TrainSamples(closed, open []json.RawMessage) (tracking.Calibration, error) {
	closedHands, err := ParseSamples(closed)
	if err != nil {
		return tracking.Calibration{}, fmt.Errorf("closed pose: %w", err)
	}
	openHands, err := ParseSamples(open)
	if err != nil {
		return tracking.Calibration{}, fmt.Errorf("open pose: %w", err)
	}
	return t.Train(closedHands, openHands)
}

// ParseSamples decodes raw samples into landmark sets. Each sample must carry
// exactly 21 landmarks.
func ParseSamples(raw []json.RawMessage) ([]detector.HandLandmarks, error) {
	hands := make([]detector.HandLandmarks, 0, len(raw))
	for i, r := range raw {
		var s Sample
		if err := json.Unmarshal(r, &s); err != nil {
			return nil, fmt.Errorf("failed to parse sample %d: %w", i, err)
		}
		if len(s.Landmarks) != detector.NumLandmarks {
			return nil, fmt.Errorf("sample %d has %d landmarks, expected %d", i, len(s.Landmarks), detector.NumLandmarks)
		}

		var h detector.HandLandmarks
		copy(h.Points[:], s.Landmarks)
		hands = append(hands, h)
	}
	return hands, nil
}

func (t *Trainer) meanRatio(hands []detector.HandLandmarks) (float64, error) {
	var sum float64
	var n int
	for i := range hands {
		r, ok := tracking.ExtensionRatio(&hands[i], t.minScale)
		if !ok {
			continue
		}
		sum += r
		n++
	}
	if n == 0 {
		return 0, ErrNoSamples
	}
	return sum / float64(n), nil
}
