// Package capture opens a camera or video file with OpenCV and hands frames
// to the monitoring loop one at a time.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gocv.io/x/gocv"
)

var (
	// ErrOpen means the source could not be opened; the loop never starts
	ErrOpen = errors.New("capture: cannot open source")
	// ErrNoFrames means the source opened but never delivered a usable frame
	ErrNoFrames = errors.New("capture: no frames")
)

// Global debug function for capture package
var debugMsgFunc func(string, string, ...string)

// SetDebugFunction allows main package to provide debug function
func SetDebugFunction(fn func(string, string, ...string)) {
	debugMsgFunc = fn
}

func debugMsg(component, message string, sessionID ...string) {
	if debugMsgFunc != nil {
		debugMsgFunc(component, message, sessionID...)
	}
}

// Config selects and tunes the frame source. Path wins over Device when set.
type Config struct {
	Device int
	Path   string // video file or stream URL
	// MaxReadFailures is how many consecutive bad reads end a live stream.
	MaxReadFailures int
}

// DefaultConfig reads from the first camera
func DefaultConfig() Config {
	return Config{Device: 0, MaxReadFailures: 5}
}

// Describe names the source for logs
func (c Config) Describe() string {
	if c.Path != "" {
		return c.Path
	}
	return fmt.Sprintf("camera %d", c.Device)
}

// reader is the part of gocv.VideoCapture the source needs
type reader interface {
	Read(m *gocv.Mat) bool
	Close() error
}

// Source delivers frames from a camera or a file. Next reuses one Mat, so a
// frame is only valid until the following call.
type Source struct {
	cfg    Config
	cap    reader
	img    gocv.Mat
	live   bool
	frames int64
	width  int
	height int
}

// Open opens the configured source and reads the first frame to learn its size.
func Open(cfg Config) (*Source, error) {
	var (
		vc  *gocv.VideoCapture
		err error
	)
	live := cfg.Live()
	if cfg.Path == "" {
		vc, err = gocv.VideoCaptureDevice(cfg.Device)
	} else {
		if !isStreamURL(cfg.Path) {
			if _, statErr := os.Stat(cfg.Path); statErr != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrOpen, cfg.Path, statErr)
			}
		}
		vc, err = gocv.VideoCaptureFile(cfg.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrOpen, cfg.Describe(), err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: %s", ErrOpen, cfg.Describe())
	}
	if live {
		// Minimize OpenCV buffer size so each read is the newest frame
		vc.Set(gocv.VideoCaptureBufferSize, 1)
	}

	s := newSource(cfg, vc, live)
	if err := s.probe(); err != nil {
		s.Close()
		return nil, err
	}
	debugMsg("CAPTURE", fmt.Sprintf("Opened %s (%dx%d)", cfg.Describe(), s.width, s.height))
	return s, nil
}

func newSource(cfg Config, r reader, live bool) *Source {
	if cfg.MaxReadFailures <= 0 {
		cfg.MaxReadFailures = DefaultConfig().MaxReadFailures
	}
	return &Source{cfg: cfg, cap: r, img: gocv.NewMat(), live: live}
}

// probe reads frames until one is usable and records its size. That frame is
// handed out by the first Next call.
func (s *Source) probe() error {
	if err := s.read(); err != nil {
		return fmt.Errorf("%w: %s", ErrNoFrames, s.cfg.Describe())
	}
	s.width, s.height = s.img.Cols(), s.img.Rows()
	return nil
}

// read fills s.img with the next valid frame. Empty or non-BGR frames are
// skipped; a failed read ends a file at once and a live stream after
// MaxReadFailures in a row.
func (s *Source) read() error {
	failures := 0
	for {
		if ok := s.cap.Read(&s.img); !ok {
			if !s.live {
				return io.EOF
			}
			failures++
			debugMsg("CAPTURE", fmt.Sprintf("Frame read failed (%d/%d)", failures, s.cfg.MaxReadFailures))
			if failures >= s.cfg.MaxReadFailures {
				return io.EOF
			}
			continue
		}
		if !validFrame(s.img) {
			failures++
			if failures >= s.cfg.MaxReadFailures {
				return io.EOF
			}
			continue
		}
		return nil
	}
}

// Next returns the next frame, or io.EOF when the source is exhausted.
func (s *Source) Next(ctx context.Context) (gocv.Mat, error) {
	if err := ctx.Err(); err != nil {
		return gocv.Mat{}, err
	}
	// the probe frame is still in img
	if s.frames == 0 && s.width > 0 {
		s.frames++
		return s.img, nil
	}
	if err := s.read(); err != nil {
		return gocv.Mat{}, err
	}
	s.frames++
	return s.img, nil
}

// Size returns the frame size learned when the source opened
func (s *Source) Size() (int, int) {
	return s.width, s.height
}

// Frames returns how many frames Next has delivered
func (s *Source) Frames() int64 {
	return s.frames
}

// Close releases the capture device and the frame buffer
func (s *Source) Close() error {
	err := s.cap.Close()
	if cerr := s.img.Close(); err == nil {
		err = cerr
	}
	return err
}

// Live reports whether the source is a camera or a network stream. Live
// sources ride out MaxReadFailures dropped reads before ending.
func (c Config) Live() bool {
	return c.Path == "" || isStreamURL(c.Path)
}

func validFrame(img gocv.Mat) bool {
	return !img.Empty() && img.Type() == gocv.MatTypeCV8UC3 && img.Channels() == 3
}

func isStreamURL(path string) bool {
	for _, scheme := range []string{"rtsp://", "rtmp://", "http://", "https://"} {
		if strings.HasPrefix(strings.ToLower(path), scheme) {
			return true
		}
	}
	return false
}
