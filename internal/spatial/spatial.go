// Package spatial holds the small amount of rotation math the tracker needs:
// orthonormal bases, basis to quaternion conversion and spherical
// interpolation. Vectors and quaternions are gonum types.
package spatial

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Identity is the camera-facing neutral orientation.
var Identity = quat.Number{Real: 1}

// degenerate is the shortest vector still treated as a direction.
const degenerate = 1e-9

// Basis is a right-handed orthonormal frame.
type Basis struct {
	Right   r3.Vec
	Up      r3.Vec
	Forward r3.Vec
}

// unit normalizes v, reporting false when v is too short to carry a direction.
func unit(v r3.Vec) (r3.Vec, bool) {
	n := r3.Norm(v)
	if !(n >= degenerate) {
		return r3.Vec{}, false
	}
	return r3.Scale(1/n, v), true
}

// NewBasis builds an orthonormal frame from a primary up direction and an
// approximate right direction. Forward is right × up; right is then rebuilt
// as up × forward so noisy, non-perpendicular inputs still give an exact
// orthonormal basis. It returns false if up or right is zero or the two are
// parallel.
func NewBasis(up, right r3.Vec) (Basis, bool) {
	up, ok := unit(up)
	if !ok {
		return Basis{}, false
	}
	right, ok = unit(right)
	if !ok {
		return Basis{}, false
	}
	forward, ok := unit(r3.Cross(right, up))
	if !ok {
		return Basis{}, false
	}
	right, ok = unit(r3.Cross(up, forward))
	if !ok {
		return Basis{}, false
	}
	return Basis{Right: right, Up: up, Forward: forward}, true
}

// Orthonormal reports whether every axis has unit length and the axes are
// pairwise perpendicular, within tol.
func (b Basis) Orthonormal(tol float64) bool {
	near := func(v, want float64) bool { return math.Abs(v-want) <= tol }
	return near(r3.Norm(b.Right), 1) &&
		near(r3.Norm(b.Up), 1) &&
		near(r3.Norm(b.Forward), 1) &&
		near(r3.Dot(b.Right, b.Up), 0) &&
		near(r3.Dot(b.Up, b.Forward), 0) &&
		near(r3.Dot(b.Forward, b.Right), 0)
}

// Quaternion converts the rotation matrix whose columns are (Right, Up,
// Forward) to a unit quaternion with a non-negative real part.
func (b Basis) Quaternion() quat.Number {
	m00, m01, m02 := b.Right.X, b.Up.X, b.Forward.X
	m10, m11, m12 := b.Right.Y, b.Up.Y, b.Forward.Y
	m20, m21, m22 := b.Right.Z, b.Up.Z, b.Forward.Z

	var q quat.Number
	// Branch on the largest diagonal term to keep the square root well away
	// from zero.
	switch trace := m00 + m11 + m22; {
	case trace > 0:
		s := 0.5 / math.Sqrt(trace+1)
		q = quat.Number{
			Real: 0.25 / s,
			Imag: (m21 - m12) * s,
			Jmag: (m02 - m20) * s,
			Kmag: (m10 - m01) * s,
		}
	case m00 > m11 && m00 > m22:
		s := 2 * math.Sqrt(1+m00-m11-m22)
		q = quat.Number{
			Real: (m21 - m12) / s,
			Imag: 0.25 * s,
			Jmag: (m01 + m10) / s,
			Kmag: (m02 + m20) / s,
		}
	case m11 > m22:
		s := 2 * math.Sqrt(1+m11-m00-m22)
		q = quat.Number{
			Real: (m02 - m20) / s,
			Imag: (m01 + m10) / s,
			Jmag: 0.25 * s,
			Kmag: (m12 + m21) / s,
		}
	default:
		s := 2 * math.Sqrt(1+m22-m00-m11)
		q = quat.Number{
			Real: (m10 - m01) / s,
			Imag: (m02 + m20) / s,
			Jmag: (m12 + m21) / s,
			Kmag: 0.25 * s,
		}
	}

	q = Normalize(q)
	if q.Real < 0 {
		q = quat.Scale(-1, q)
	}
	return q
}

// Normalize returns q scaled to unit norm. A zero or non-finite quaternion
// becomes Identity.
func Normalize(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if !(n >= degenerate) || math.IsInf(n, 0) {
		return Identity
	}
	return quat.Scale(1/n, q)
}

// Dot is the four-dimensional dot product of two quaternions.
func Dot(a, b quat.Number) float64 {
	return a.Real*b.Real + a.Imag*b.Imag + a.Jmag*b.Jmag + a.Kmag*b.Kmag
}

// Slerp interpolates from a toward b along the shortest arc by fraction t,
// clamped to [0,1]. Nearly parallel inputs fall back to normalized linear
// interpolation.
func Slerp(a, b quat.Number, t float64) quat.Number {
	switch {
	case t <= 0:
		return Normalize(a)
	case t >= 1:
		return Normalize(b)
	}

	cos := Dot(a, b)
	if cos < 0 {
		b = quat.Scale(-1, b)
		cos = -cos
	}

	if cos > 0.9995 {
		return Normalize(quat.Add(a, quat.Scale(t, quat.Sub(b, a))))
	}

	theta := math.Acos(cos)
	sin := math.Sin(theta)
	wa := math.Sin((1-t)*theta) / sin
	wb := math.Sin(t*theta) / sin
	return Normalize(quat.Add(quat.Scale(wa, a), quat.Scale(wb, b)))
}

// Angle returns the rotation angle in radians between two orientations.
func Angle(a, b quat.Number) float64 {
	d := math.Abs(Dot(Normalize(a), Normalize(b)))
	if d > 1 {
		d = 1
	}
	return 2 * math.Acos(d)
}

// Rotate applies the rotation q to v.
func Rotate(q quat.Number, v r3.Vec) r3.Vec {
	return r3.Rotation(Normalize(q)).Rotate(v)
}

// Euler is an orientation as yaw (about up), pitch (about right) and roll
// (about forward), in radians, applied in yaw-pitch-roll order.
type Euler struct {
	Yaw   float64 `json:"yaw"`
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`
}

// ToEuler decomposes q into yaw, pitch and roll.
func ToEuler(q quat.Number) Euler {
	q = Normalize(q)
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag

	m00 := 1 - 2*(y*y+z*z)
	m02 := 2 * (x*z + w*y)
	m10 := 2 * (x*y + w*z)
	m11 := 1 - 2*(x*x+z*z)
	m12 := 2 * (y*z - w*x)
	m20 := 2 * (x*z - w*y)
	m22 := 1 - 2*(x*x+y*y)

	var e Euler
	e.Pitch = math.Asin(-clamp(m12, -1, 1))
	if math.Abs(m12) < 0.9999999 {
		e.Yaw = math.Atan2(m02, m22)
		e.Roll = math.Atan2(m10, m11)
	} else {
		e.Yaw = math.Atan2(-m20, m00)
	}
	return e
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
