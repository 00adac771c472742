package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu    sync.Mutex
	hands []HandLandmarks
	err   error
	calls int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by Detect.
func (m *MockDetector) SetHands(hands []HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect has been invoked.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured hands or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.hands, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// OpenPalmLandmarks returns a right hand facing the camera with every finger
// spread, proportioned like a real hand (finger length close to palm length).
func OpenPalmLandmarks() HandLandmarks {
	landmarks := HandLandmarks{
		Handedness: Right,
		Score:      0.95,
	}

	landmarks.Points[Wrist] = Point3D{X: 0.50, Y: 0.80}

	landmarks.Points[ThumbCMC] = Point3D{X: 0.56, Y: 0.76}
	landmarks.Points[ThumbMCP] = Point3D{X: 0.62, Y: 0.70}
	landmarks.Points[ThumbIP] = Point3D{X: 0.67, Y: 0.64}
	landmarks.Points[ThumbTip] = Point3D{X: 0.71, Y: 0.58}

	landmarks.Points[IndexMCP] = Point3D{X: 0.56, Y: 0.61}
	landmarks.Points[IndexPIP] = Point3D{X: 0.58, Y: 0.53}
	landmarks.Points[IndexDIP] = Point3D{X: 0.59, Y: 0.47}
	landmarks.Points[IndexTip] = Point3D{X: 0.60, Y: 0.42}

	landmarks.Points[MiddleMCP] = Point3D{X: 0.50, Y: 0.60}
	landmarks.Points[MiddlePIP] = Point3D{X: 0.50, Y: 0.51}
	landmarks.Points[MiddleDIP] = Point3D{X: 0.50, Y: 0.45}
	landmarks.Points[MiddleTip] = Point3D{X: 0.50, Y: 0.39}

	landmarks.Points[RingMCP] = Point3D{X: 0.45, Y: 0.61}
	landmarks.Points[RingPIP] = Point3D{X: 0.44, Y: 0.53}
	landmarks.Points[RingDIP] = Point3D{X: 0.43, Y: 0.47}
	landmarks.Points[RingTip] = Point3D{X: 0.42, Y: 0.42}

	landmarks.Points[PinkyMCP] = Point3D{X: 0.40, Y: 0.64}
	landmarks.Points[PinkyPIP] = Point3D{X: 0.38, Y: 0.58}
	landmarks.Points[PinkyDIP] = Point3D{X: 0.37, Y: 0.54}
	landmarks.Points[PinkyTip] = Point3D{X: 0.36, Y: 0.50}

	return landmarks
}

// ClosedFistLandmarks returns a right hand with every fingertip folded onto
// its own base joint (thumb onto its IP joint, fingers onto their MCPs).
func ClosedFistLandmarks() HandLandmarks {
	landmarks := OpenPalmLandmarks()
	landmarks.Score = 0.92

	landmarks.Points[ThumbTip] = landmarks.Points[ThumbIP]

	curl := func(mcp, pip, dip, tip int) {
		base := landmarks.Points[mcp]
		landmarks.Points[pip] = Point3D{X: base.X, Y: base.Y - 0.03, Z: -0.04}
		landmarks.Points[dip] = Point3D{X: base.X, Y: base.Y - 0.01, Z: -0.05}
		landmarks.Points[tip] = base
	}
	curl(IndexMCP, IndexPIP, IndexDIP, IndexTip)
	curl(MiddleMCP, MiddlePIP, MiddleDIP, MiddleTip)
	curl(RingMCP, RingPIP, RingDIP, RingTip)
	curl(PinkyMCP, PinkyPIP, PinkyDIP, PinkyTip)

	return landmarks
}

// ThumbsUpLandmarks returns a preset HandLandmarks representing a thumbs up gesture.
// The thumb is extended upward while other fingers are curled, which reads
// as a partially open hand.
func ThumbsUpLandmarks() HandLandmarks {
	landmarks := HandLandmarks{
		Handedness: Right,
		Score:      0.95,
	}

	landmarks.Points[Wrist] = Point3D{X: 0.5, Y: 0.8, Z: 0.0}

	landmarks.Points[ThumbCMC] = Point3D{X: 0.55, Y: 0.75, Z: 0.0}
	landmarks.Points[ThumbMCP] = Point3D{X: 0.58, Y: 0.65, Z: 0.0}
	landmarks.Points[ThumbIP] = Point3D{X: 0.58, Y: 0.50, Z: 0.0}
	landmarks.Points[ThumbTip] = Point3D{X: 0.58, Y: 0.35, Z: 0.0}

	landmarks.Points[IndexMCP] = Point3D{X: 0.55, Y: 0.70, Z: -0.02}
	landmarks.Points[IndexPIP] = Point3D{X: 0.55, Y: 0.68, Z: -0.05}
	landmarks.Points[IndexDIP] = Point3D{X: 0.52, Y: 0.70, Z: -0.04}
	landmarks.Points[IndexTip] = Point3D{X: 0.50, Y: 0.72, Z: -0.02}

	landmarks.Points[MiddleMCP] = Point3D{X: 0.50, Y: 0.68, Z: -0.02}
	landmarks.Points[MiddlePIP] = Point3D{X: 0.50, Y: 0.66, Z: -0.05}
	landmarks.Points[MiddleDIP] = Point3D{X: 0.47, Y: 0.68, Z: -0.04}
	landmarks.Points[MiddleTip] = Point3D{X: 0.45, Y: 0.70, Z: -0.02}

	landmarks.Points[RingMCP] = Point3D{X: 0.45, Y: 0.70, Z: -0.02}
	landmarks.Points[RingPIP] = Point3D{X: 0.45, Y: 0.68, Z: -0.05}
	landmarks.Points[RingDIP] = Point3D{X: 0.42, Y: 0.70, Z: -0.04}
	landmarks.Points[RingTip] = Point3D{X: 0.40, Y: 0.72, Z: -0.02}

	landmarks.Points[PinkyMCP] = Point3D{X: 0.40, Y: 0.72, Z: -0.02}
	landmarks.Points[PinkyPIP] = Point3D{X: 0.40, Y: 0.70, Z: -0.05}
	landmarks.Points[PinkyDIP] = Point3D{X: 0.37, Y: 0.72, Z: -0.04}
	landmarks.Points[PinkyTip] = Point3D{X: 0.35, Y: 0.74, Z: -0.02}

	return landmarks
}

// LeftHand returns a copy of h relabelled as a left hand.
func LeftHand(h HandLandmarks) HandLandmarks {
	h.Handedness = Left
	return h
}
