package landmarks

import (
	"errors"
	"fmt"
	"image"
	"math"
)

// Face mesh topology sizes. The refined mesh adds 10 iris points to the base mesh.
const (
	BaseMeshSize = 468
	FaceMeshSize = 478
)

// ContourLength is the number of points in an eye contour
const ContourLength = 6

var (
	// ErrIndexOutOfRange means a topology index does not exist in the landmark set
	ErrIndexOutOfRange = errors.New("landmark index out of range")
	// ErrTopologyMismatch means the detector returned a set of unexpected size
	ErrTopologyMismatch = errors.New("landmark topology mismatch")
	// ErrInvalidFrameSize means the frame width or height is not positive
	ErrInvalidFrameSize = errors.New("invalid frame size")
)

// Landmark is a detector point with coordinates normalized to the frame (x, y in [0,1]).
// Z is relative depth and is carried through but never interpreted.
type Landmark struct {
	X float64
	Y float64
	Z float64
}

// Set is one face worth of landmarks, indexed by the detector topology
type Set []Landmark

// EyeIndices selects the six topology points that describe one eye, ordered
// outer corner, upper lid (2), inner corner, lower lid (2).
type EyeIndices [ContourLength]int

// EyeContour is an eye outline in pixel space, in EyeIndices order
type EyeContour [ContourLength]image.Point

// Eye selections for the refined face mesh. "Left" is the subject's left eye.
var (
	LeftEye  = EyeIndices{362, 385, 387, 263, 373, 380}
	RightEye = EyeIndices{33, 160, 158, 133, 153, 144}
)

// ToPixel scales a normalized coordinate into a pixel point using round-half-away-from-zero.
func ToPixel(lm Landmark, width, height int) image.Point {
	return image.Point{
		X: int(math.Round(lm.X * float64(width))),
		Y: int(math.Round(lm.Y * float64(height))),
	}
}

// ExtractEye maps the six selected landmarks of one eye into pixel space.
func ExtractEye(set Set, idx EyeIndices, width, height int) (EyeContour, error) {
	var contour EyeContour
	if width <= 0 || height <= 0 {
		return contour, fmt.Errorf("%w: %dx%d", ErrInvalidFrameSize, width, height)
	}
	for i, li := range idx {
		if li < 0 || li >= len(set) {
			return contour, fmt.Errorf("%w: index %d, set has %d points", ErrIndexOutOfRange, li, len(set))
		}
		contour[i] = ToPixel(set[li], width, height)
	}
	return contour, nil
}

// CheckTopology verifies that a detector produced exactly want points.
func CheckTopology(set Set, want int) error {
	if len(set) != want {
		return fmt.Errorf("%w: got %d points, want %d", ErrTopologyMismatch, len(set), want)
	}
	return nil
}

// Polyline returns the contour as a closed outline suitable for drawing:
// outer corner, upper lid, inner corner, lower lid.
func (c EyeContour) Polyline() []image.Point {
	return []image.Point{c[0], c[1], c[2], c[3], c[4], c[5]}
}
