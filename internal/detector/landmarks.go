// Package detector defines the hand landmark model and the boundary to the
// external landmark detector.
package detector

import "math"

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Handedness is the detector's left/right label, reported from the camera's
// point of view and not corrected for mirroring.
type Handedness string

const (
	// HandednessUnknown is only observed before the first detection.
	HandednessUnknown Handedness = ""
	Left              Handedness = "Left"
	Right             Handedness = "Right"
)

// Valid reports whether h is one of the two labels a detector may report.
func (h Handedness) Valid() bool {
	return h == Left || h == Right
}

// Point3D is a landmark position. X and Y are image-relative in [0,1];
// Z is a relative depth estimate whose scale is set by the detector.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Sub returns p - q.
func (p Point3D) Sub(q Point3D) Point3D {
	return Point3D{X: p.X - q.X, Y: p.Y - q.Y, Z: p.Z - q.Z}
}

// Scale returns p scaled by k.
func (p Point3D) Scale(k float64) Point3D {
	return Point3D{X: p.X * k, Y: p.Y * k, Z: p.Z * k}
}

// HandLandmarks is one hand's 21 landmarks for a single frame. A set is
// replaced wholesale every frame and never mutated in place.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness Handedness            `json:"handedness"`
	Score      float64               `json:"score"`
}

// Distance returns the Euclidean distance between two landmarks.
func Distance(a, b Point3D) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	dz := a.Z - b.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// MinPalmLength is the shortest palm Normalize will scale by.
const MinPalmLength = 1e-10

// PalmLength is the wrist to middle finger MCP distance, the scale reference
// for every distance-invariant measure of the hand.
func (h *HandLandmarks) PalmLength() float64 {
	return Distance(h.Points[Wrist], h.Points[MiddleMCP])
}

// Normalize returns a copy with the wrist at the origin, scaled so that the
// wrist to middle finger MCP distance is 1.0. When that distance is zero the
// copy is only translated.
func (h *HandLandmarks) Normalize() *HandLandmarks {
	if h == nil {
		return nil
	}

	normalized := &HandLandmarks{
		Handedness: h.Handedness,
		Score:      h.Score,
	}

	wrist := h.Points[Wrist]
	for i := 0; i < NumLandmarks; i++ {
		normalized.Points[i] = h.Points[i].Sub(wrist)
	}

	scale := h.PalmLength()
	if scale < MinPalmLength {
		return normalized
	}

	for i := 0; i < NumLandmarks; i++ {
		normalized.Points[i] = normalized.Points[i].Scale(1 / scale)
	}

	return normalized
}

// Scaled returns a copy with every landmark scaled by k about the wrist.
func Scaled(h HandLandmarks, k float64) HandLandmarks {
	out := h
	wrist := h.Points[Wrist]
	for i := 0; i < NumLandmarks; i++ {
		out.Points[i] = Point3D{
			X: wrist.X + (h.Points[i].X-wrist.X)*k,
			Y: wrist.Y + (h.Points[i].Y-wrist.Y)*k,
			Z: wrist.Z + (h.Points[i].Z-wrist.Z)*k,
		}
	}
	return out
}
