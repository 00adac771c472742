package tracking

import (
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/spatial"
)

// fingers pairs each fingertip with the joint its extension is measured
// from. The thumb uses its IP joint, the other fingers their MCP knuckle.
var fingers = [5][2]int{
	{detector.ThumbTip, detector.ThumbIP},
	{detector.IndexTip, detector.IndexMCP},
	{detector.MiddleTip, detector.MiddleMCP},
	{detector.RingTip, detector.RingMCP},
	{detector.PinkyTip, detector.PinkyMCP},
}

// ExtensionRatio returns the mean tip-to-base distance of the five fingers
// divided by the palm length. It reports false when the palm is shorter than
// minScale, where the ratio would be meaningless.
func ExtensionRatio(hand *detector.HandLandmarks, minScale float64) (float64, bool) {
	if hand == nil {
		return 0, false
	}
	if palm := hand.PalmLength(); !(palm >= minScale) || palm < detector.MinPalmLength {
		return 0, false
	}

	// Normalized coordinates put the palm length at 1, so distances there
	// are already ratios.
	n := hand.Normalize()

	var sum float64
	for _, f := range fingers {
		sum += detector.Distance(n.Points[f[0]], n.Points[f[1]])
	}
	return sum / float64(len(fingers)), true
}

// Openness returns the hand's openness in [0,1]: 0 for a closed fist, 1 for
// a fully open hand. A degenerate hand (palm shorter than minScale) reads 0.
func Openness(hand *detector.HandLandmarks, cal Calibration, minScale float64) float64 {
	ratio, ok := ExtensionRatio(hand, minScale)
	if !ok {
		return 0
	}
	return cal.Remap(ratio)
}

// toScene maps a landmark into a camera-facing frame centred on the image:
// x right, y up, z toward the camera.
func toScene(p detector.Point3D) r3.Vec {
	return r3.Vec{X: p.X - 0.5, Y: -(p.Y - 0.5), Z: -p.Z}
}

// OrientationBasis derives the palm frame: up runs from the wrist to the
// middle knuckle, right from the pinky knuckle to the index knuckle, and
// forward is the palm normal.
func OrientationBasis(hand *detector.HandLandmarks) (spatial.Basis, bool) {
	if hand == nil {
		return spatial.Basis{}, false
	}
	wrist := toScene(hand.Points[detector.Wrist])
	index := toScene(hand.Points[detector.IndexMCP])
	pinky := toScene(hand.Points[detector.PinkyMCP])
	middle := toScene(hand.Points[detector.MiddleMCP])

	return spatial.NewBasis(r3.Sub(middle, wrist), r3.Sub(index, pinky))
}

// Orientation returns the hand's rotation from the camera-facing neutral
// pose. It reports false when the knuckles are too degenerate to fix a frame.
func Orientation(hand *detector.HandLandmarks) (quat.Number, bool) {
	b, ok := OrientationBasis(hand)
	if !ok {
		return spatial.Identity, false
	}
	return b.Quaternion(), true
}
