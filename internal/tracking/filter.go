package tracking

import (
	"math"
	"time"
)

// smoothingFactor rescales a factor tuned for one reference interval to an
// elapsed interval dt, so that n short ticks move as far as one long one.
// dt <= 0 means "one reference tick" and returns f unchanged.
func smoothingFactor(f float64, dt, ref time.Duration) float64 {
	if dt <= 0 || ref <= 0 {
		return f
	}
	v := 1 - math.Pow(1-f, float64(dt)/float64(ref))
	switch {
	case v < 0 || math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	}
	return v
}

// approach moves current toward target by fraction f of the gap. The result
// always lies between current and target.
func approach(current, target, f float64) float64 {
	next := current + (target-current)*f
	lo, hi := math.Min(current, target), math.Max(current, target)
	return math.Max(lo, math.Min(hi, next))
}
