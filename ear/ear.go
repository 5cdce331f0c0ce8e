// Package ear computes the eye aspect ratio, the openness metric used to decide
// whether an eye is closed. Values approach 0 as the lids meet and sit roughly
// between 0.15 and 0.4 for an open eye.
package ear

import (
	"image"

	"gonum.org/v1/gonum/floats"

	"drivercam/landmarks"
)

// Result is the openness of one eye. Degenerate is set when the contour has
// zero horizontal span, in which case Value is 0 and must not be used.
type Result struct {
	Value      float64
	Degenerate bool
}

func dist(a, b image.Point) float64 {
	return floats.Distance(
		[]float64{float64(a.X), float64(a.Y)},
		[]float64{float64(b.X), float64(b.Y)},
		2,
	)
}

// Compute returns the eye aspect ratio (|p1-p5| + |p2-p4|) / (2|p0-p3|).
func Compute(c landmarks.EyeContour) Result {
	h := dist(c[0], c[3])
	if h == 0 {
		return Result{Degenerate: true}
	}
	v1 := dist(c[1], c[5])
	v2 := dist(c[2], c[4])
	return Result{Value: (v1 + v2) / (2 * h)}
}

// Combine averages two per-eye results into one frame metric. A degenerate eye
// is left out; ok is false only when neither eye produced a usable value.
func Combine(left, right Result) (metric float64, ok bool) {
	switch {
	case !left.Degenerate && !right.Degenerate:
		return (left.Value + right.Value) / 2, true
	case !left.Degenerate:
		return left.Value, true
	case !right.Degenerate:
		return right.Value, true
	default:
		return 0, false
	}
}
