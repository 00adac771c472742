package tracking

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Default tuning values.
const (
	// DefaultSmoothing is the per-tick EMA factor for openness.
	DefaultSmoothing = 0.12
	// DefaultRotationFactor scales the smoothing factor for orientation.
	// Rotation lag is more visible than openness lag, so it tracks faster.
	DefaultRotationFactor = 1.5
	// DefaultMinScale is the shortest palm length, in normalized image units,
	// still treated as a measurable hand.
	DefaultMinScale = 0.001
	// DefaultClosedRatio is the mean extension ratio read as a closed fist.
	DefaultClosedRatio = 0.35
	// DefaultOpenRatio is the mean extension ratio read as a fully open hand.
	DefaultOpenRatio = 0.75
	// DefaultReferenceFrame is the tick interval the smoothing factors are
	// tuned for.
	DefaultReferenceFrame = time.Second / 60
)

// ErrInvalidCalibration is returned for a calibration whose range is empty or inverted.
var ErrInvalidCalibration = errors.New("invalid calibration")

// Calibration maps the mean finger extension ratio onto openness: the closed
// ratio reads as 0 and the open ratio as 1.
type Calibration struct {
	ClosedRatio float64 `yaml:"closed_ratio" json:"closed_ratio"`
	OpenRatio   float64 `yaml:"open_ratio" json:"open_ratio"`
}

// DefaultCalibration returns the empirically chosen fist/open-hand range.
func DefaultCalibration() Calibration {
	return Calibration{ClosedRatio: DefaultClosedRatio, OpenRatio: DefaultOpenRatio}
}

// Validate checks that the range is non-empty and starts at or above zero.
func (c Calibration) Validate() error {
	if c.ClosedRatio < 0 || c.OpenRatio <= c.ClosedRatio {
		return fmt.Errorf("%w: closed %.3f, open %.3f", ErrInvalidCalibration, c.ClosedRatio, c.OpenRatio)
	}
	return nil
}

// Remap linearly maps a mean extension ratio onto [0,1], clamping outside
// the calibrated range.
func (c Calibration) Remap(ratio float64) float64 {
	v := (ratio - c.ClosedRatio) / (c.OpenRatio - c.ClosedRatio)
	switch {
	case v < 0 || math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	}
	return v
}

// Config holds tracker tuning.
type Config struct {
	// Smoothing is the openness EMA factor α applied once per tick.
	Smoothing float64 `yaml:"smoothing"`
	// RotationFactor gives the orientation slerp fraction β = α × RotationFactor.
	RotationFactor float64 `yaml:"rotation_factor"`
	// MinScale is the palm length below which openness reads 0.
	MinScale float64 `yaml:"min_scale"`
	// ReferenceFrame is the tick interval α and β are tuned for; Tick uses
	// it to rescale the factors for other intervals.
	ReferenceFrame time.Duration `yaml:"reference_frame"`

	Calibration Calibration `yaml:"calibration"`
}

// DefaultConfig returns the default tracker tuning.
func DefaultConfig() Config {
	return Config{
		Smoothing:      DefaultSmoothing,
		RotationFactor: DefaultRotationFactor,
		MinScale:       DefaultMinScale,
		ReferenceFrame: DefaultReferenceFrame,
		Calibration:    DefaultCalibration(),
	}
}

// Validate checks the tuning values.
func (c Config) Validate() error {
	if c.Smoothing <= 0 || c.Smoothing > 1 {
		return fmt.Errorf("smoothing must be in (0,1], got %v", c.Smoothing)
	}
	if c.RotationFactor <= 0 {
		return fmt.Errorf("rotation factor must be > 0, got %v", c.RotationFactor)
	}
	if !(c.MinScale > 0) {
		return fmt.Errorf("min scale must be > 0, got %v", c.MinScale)
	}
	if c.ReferenceFrame <= 0 {
		return fmt.Errorf("reference frame must be > 0, got %v", c.ReferenceFrame)
	}
	return c.Calibration.Validate()
}

// rotationSmoothing returns β, capped at 1.
func (c Config) rotationSmoothing() float64 {
	b := c.Smoothing * c.RotationFactor
	if b > 1 {
		return 1
	}
	return b
}
