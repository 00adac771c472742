package detector

import "gocv.io/x/gocv"

// Detector defines the interface for hand landmark detector implementations.
type Detector interface {
	// Detect analyzes a video frame and returns detected hand landmarks,
	// ordered by the detector. Returns an empty slice if no hands are found.
	Detect(frame *gocv.Mat) ([]HandLandmarks, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Result is one frame's detector output as handed to the tracker.
// Only Hands[0] is ever consulted. Image is the source frame and may be nil
// in headless builds; it is owned by the caller.
type Result struct {
	Hands []HandLandmarks
	Image *gocv.Mat
}

// Primary returns the first detected hand, or nil when none was detected.
func (r Result) Primary() *HandLandmarks {
	if len(r.Hands) == 0 {
		return nil
	}
	return &r.Hands[0]
}

// Config holds configuration options for hand detection.
type Config struct {
	// MaxHands is the maximum number of hands to detect. Tracking only ever
	// uses one.
	MaxHands int `yaml:"max_hands"`

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64 `yaml:"min_confidence"`

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64 `yaml:"min_tracking_confidence"`

	// ModelComplexity selects the landmark model tier: 0 lite, 1 full.
	ModelComplexity int `yaml:"model_complexity"`
}

// DefaultConfig returns a Config tracking a single hand on desktop hardware.
func DefaultConfig() Config {
	return ConfigForPlatform(false)
}

// ConfigForPlatform returns the default Config with the model tier chosen
// from a coarse mobile/desktop capability flag.
func ConfigForPlatform(mobile bool) Config {
	complexity := 1
	if mobile {
		complexity = 0
	}
	return Config{
		MaxHands:        1,
		MinConfidence:   0.5,
		MinTrackingConf: 0.5,
		ModelComplexity: complexity,
	}
}
