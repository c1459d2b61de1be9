// Package interp provides the numeric interpolation used by fades.
package interp

import (
	"math"

	"github.com/dokzlo13/goveed/internal/color"
)

// DefaultSlope is the control point weight that keeps EaseProgress close to linear.
const DefaultSlope = 0.5

// Lerp linearly interpolates between start and end. fraction is not clamped.
func Lerp(start, end, fraction float64) float64 {
	return start*(1-fraction) + end*fraction
}

// Clamp01 limits v to [0, 1].
func Clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// LerpColor interpolates two hex colors channel by channel in RGB space and returns #rrggbb.
// The caller clamps fraction to [0, 1].
func LerpColor(hexA, hexB string, fraction float64) (string, error) {
	a, err := color.HexToRGB(hexA)
	if err != nil {
		return "", err
	}
	b, err := color.HexToRGB(hexB)
	if err != nil {
		return "", err
	}

	return color.RGBToHex(color.RGB{
		R: lerpChannel(a.R, b.R, fraction),
		G: lerpChannel(a.G, b.G, fraction),
		B: lerpChannel(a.B, b.B, fraction),
	}), nil
}

func lerpChannel(a, b uint8, fraction float64) uint8 {
	v := math.Round(Lerp(float64(a), float64(b), fraction))
	return uint8(math.Max(0, math.Min(255, v)))
}

// EaseProgress maps value from the source range [sourceStart, sourceEnd] into the target range
// along a quadratic bezier whose control point sits at
// targetStart + |slope|*(targetEnd-targetStart).
//
// A slope of 0.5 is exactly linear. Smaller slopes pull the control point toward the start
// value (slow start, fast finish); larger slopes pull it toward the end value (fast start,
// slow finish). A zero slope falls back to DefaultSlope.
// Inputs outside the source range clamp to the target endpoint paired with the nearest
// source bound.
func EaseProgress(value, sourceStart, sourceEnd, targetStart, targetEnd, slope float64) float64 {
	if slope == 0 {
		slope = DefaultSlope
	}

	lo := math.Min(sourceStart, sourceEnd)
	hi := math.Max(sourceStart, sourceEnd)
	if value < lo {
		if lo == sourceStart {
			return targetStart
		}
		return targetEnd
	}
	if value > hi {
		if hi == sourceStart {
			return targetStart
		}
		return targetEnd
	}
	if sourceStart == sourceEnd {
		return targetEnd
	}

	// The curve runs from the end point back to the start point, so measure from sourceEnd.
	t := (sourceEnd - value) / (sourceEnd - sourceStart)
	control := targetStart + math.Abs(slope)*(targetEnd-targetStart)

	return targetStart*t*t + control*2*t*(1-t) + targetEnd*(1-t)*(1-t)
}
