package detection

import (
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"drivercam/pipeline"
)

// Landmarker adapts a LandmarkProvider to the monitoring loop and remembers
// the last face region for drawing.
type Landmarker struct {
	provider LandmarkProvider
	mu       sync.Mutex
	lastFace image.Rectangle
}

// NewLandmarker wraps provider
func NewLandmarker(provider LandmarkProvider) *Landmarker {
	return &Landmarker{provider: provider}
}

// Detect runs landmark inference. The frame size is always reported, even on error.
func (l *Landmarker) Detect(frame gocv.Mat) (pipeline.Input, error) {
	in := pipeline.Input{Width: frame.Cols(), Height: frame.Rows()}

	res, err := l.provider.Detect(frame)
	if err != nil {
		return in, fmt.Errorf("landmark inference: %w", err)
	}
	in.Landmarks = toInput(res).Landmarks

	l.mu.Lock()
	l.lastFace = res.Face
	l.mu.Unlock()
	return in, nil
}

// LastFace returns the face region of the most recent detection, empty when none
func (l *Landmarker) LastFace() image.Rectangle {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastFace
}

func toInput(res *MeshResult) pipeline.Input {
	in := pipeline.Input{Width: res.Width, Height: res.Height}
	if res.Found {
		in.Landmarks = res.Landmarks
	}
	return in
}
