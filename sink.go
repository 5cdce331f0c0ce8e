package main

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"drivercam/alert"
	"drivercam/overlay"
	"drivercam/pipeline"
	"drivercam/statusfeed"
)

// faceLocator reports where the detector last found a face
type faceLocator interface {
	LastFace() image.Rectangle
}

// frameSink draws the overlay, shows the window and publishes status
type frameSink struct {
	window    *gocv.Window // nil when headless
	renderer  *overlay.Renderer
	faces     faceLocator
	feed      *statusfeed.Hub // nil when the status feed is off
	logger    *DebugLogger
	terminal  bool
	sessionID string
	logEvery  int64 // headless progress line interval in frames
	lastLevel alert.Level
}

// Render implements pipeline.Sink. The 'q' key in the window stops the run.
func (s *frameSink) Render(frame gocv.Mat, out pipeline.Output) (bool, error) {
	if s.feed != nil {
		s.feed.Publish(statusfeed.StatusFromOutput(s.sessionID, out))
	}

	if s.window == nil {
		if s.shouldLog(out) {
			debugMsg("FRAME", overlay.Describe(out))
		}
		s.lastLevel = out.Status.Level
		return false, nil
	}

	var history []string
	if s.terminal && s.logger != nil {
		history = s.logger.GetOverlayHistory()
	}
	var face image.Rectangle
	if s.faces != nil {
		face = s.faces.LastFace()
	}
	s.renderer.Render(&frame, out, face, history)

	s.window.IMShow(frame)
	key := s.window.WaitKey(1)
	if key&0xFF == 'q' {
		debugMsg("INFO", "Quit key pressed")
		return true, nil
	}
	return false, nil
}

// shouldLog reports whether a headless frame gets a progress line: every
// level change and every logEvery frames
func (s *frameSink) shouldLog(out pipeline.Output) bool {
	if out.Status.Level != s.lastLevel {
		return true
	}
	return s.logEvery > 0 && out.Frame%s.logEvery == 0
}

func (s *frameSink) Close() error {
	if s.window != nil {
		return s.window.Close()
	}
	return nil
}

func (s *frameSink) String() string {
	mode := "window"
	if s.window == nil {
		mode = "headless"
	}
	return fmt.Sprintf("%s sink (terminal overlay: %v, status feed: %v)", mode, s.terminal, s.feed != nil)
}
