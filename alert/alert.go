package alert

import (
	"errors"
	"fmt"
	"image/color"
	"strings"
)

// Level is the graded drowsiness alert
type Level int

const (
	LevelAlert Level = iota
	LevelClosing
	LevelAlarm
)

func (l Level) String() string {
	switch l {
	case LevelAlert:
		return "ALERT"
	case LevelClosing:
		return "CLOSING"
	case LevelAlarm:
		return "ALARM"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

// Severity colors for overlay drawing
var (
	ColorGreen = color.RGBA{0, 255, 0, 255}
	ColorAmber = color.RGBA{255, 165, 0, 255}
	ColorRed   = color.RGBA{255, 0, 0, 255}
)

// Color maps a level to its overlay color: green, amber, red.
func (l Level) Color() color.RGBA {
	switch l {
	case LevelClosing:
		return ColorAmber
	case LevelAlarm:
		return ColorRed
	default:
		return ColorGreen
	}
}

// FaceLostPolicy decides what a frame without a usable metric (no face, or
// no measurable eye) does to the closed-eye counter.
type FaceLostPolicy int

const (
	// FaceLostCountsAsClosed treats a missing face exactly like a closed-eye frame
	FaceLostCountsAsClosed FaceLostPolicy = iota
	// FaceLostHolds leaves the counter where it was
	FaceLostHolds
	// FaceLostResets clears the counter as if the eyes were open
	FaceLostResets
)

var policyNames = map[FaceLostPolicy]string{
	FaceLostCountsAsClosed: "closed",
	FaceLostHolds:          "hold",
	FaceLostResets:         "reset",
}

func (p FaceLostPolicy) String() string {
	if name, ok := policyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("FaceLostPolicy(%d)", int(p))
}

// ParseFaceLostPolicy accepts "closed", "hold" or "reset".
func ParseFaceLostPolicy(s string) (FaceLostPolicy, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for p, name := range policyNames {
		if name == key {
			return p, nil
		}
	}
	return FaceLostCountsAsClosed, fmt.Errorf("unknown face lost policy %q (want closed, hold or reset)", s)
}

// Default thresholds
const (
	DefaultEARThreshold = 0.21
	DefaultAlarmFrames  = 15
)

// Config holds the per-instance thresholds of a Machine
type Config struct {
	EARThreshold float64        // metric below this counts as closed
	AlarmFrames  int            // consecutive closed frames before ALARM
	FaceLost     FaceLostPolicy // handling of frames with no face
}

// DefaultConfig returns the stock thresholds with no-face counted as closed.
func DefaultConfig() Config {
	return Config{
		EARThreshold: DefaultEARThreshold,
		AlarmFrames:  DefaultAlarmFrames,
		FaceLost:     FaceLostCountsAsClosed,
	}
}

var ErrInvalidConfig = errors.New("invalid alert config")

// Validate checks that the thresholds are usable.
func (c Config) Validate() error {
	if c.EARThreshold < 0 {
		return fmt.Errorf("%w: ear threshold must be non-negative, got %f", ErrInvalidConfig, c.EARThreshold)
	}
	if c.AlarmFrames < 1 {
		return fmt.Errorf("%w: alarm frames must be at least 1, got %d", ErrInvalidConfig, c.AlarmFrames)
	}
	if _, ok := policyNames[c.FaceLost]; !ok {
		return fmt.Errorf("%w: unknown face lost policy %d", ErrInvalidConfig, int(c.FaceLost))
	}
	return nil
}

// Observation is one frame of input: an openness metric, a face without a
// usable metric, or nothing.
type Observation struct {
	Metric   float64
	Present  bool // Metric is valid
	FaceSeen bool
}

// Observed wraps a metric for a frame where a face was seen.
func Observed(metric float64) Observation {
	return Observation{Metric: metric, Present: true, FaceSeen: true}
}

// NoFace is the input for a frame where no face was found.
func NoFace() Observation {
	return Observation{}
}

// Unmeasured is the input for a frame where a face was found but neither eye
// gave a usable metric. The counter follows the face-lost policy, the
// face-lost run does not grow.
func Unmeasured() Observation {
	return Observation{FaceSeen: true}
}

// Status is the machine state after one update
type Status struct {
	Level          Level
	Previous       Level
	ClosedFrames   int // current closed-eye counter
	FaceLostFrames int // current run of frames without a face
	Observation    Observation
	AlarmFrames    int
}

// Changed reports whether this update moved the level.
func (s Status) Changed() bool {
	return s.Level != s.Previous
}

// Label is the human-readable status line for the overlay.
func (s Status) Label() string {
	switch {
	case s.Level == LevelAlarm:
		return "DROWSINESS ALERT!"
	case !s.Observation.FaceSeen:
		return "No face detected"
	case s.Level == LevelClosing:
		return fmt.Sprintf("Eyes closing... %d/%d", s.ClosedFrames, s.AlarmFrames)
	default:
		return "Alert"
	}
}

// Machine turns per-frame observations into an alert level using frame-count
// hysteresis. It is not safe for concurrent use.
type Machine struct {
	cfg      Config
	counter  int
	faceLost int
	level    Level
}

// New builds a Machine in the ALERT state.
func New(cfg Config) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Machine{cfg: cfg, level: LevelAlert}, nil
}

// Update applies one frame and returns the resulting status.
func (m *Machine) Update(obs Observation) Status {
	prev := m.level

	if obs.Present {
		m.faceLost = 0
		if obs.Metric < m.cfg.EARThreshold {
			m.counter++
		} else {
			m.counter = 0
		}
	} else {
		if obs.FaceSeen {
			m.faceLost = 0
		} else {
			m.faceLost++
		}
		switch m.cfg.FaceLost {
		case FaceLostCountsAsClosed:
			m.counter++
		case FaceLostResets:
			m.counter = 0
		case FaceLostHolds:
		}
	}

	m.level = m.levelFor(m.counter)

	return Status{
		Level:          m.level,
		Previous:       prev,
		ClosedFrames:   m.counter,
		FaceLostFrames: m.faceLost,
		Observation:    obs,
		AlarmFrames:    m.cfg.AlarmFrames,
	}
}

func (m *Machine) levelFor(counter int) Level {
	switch {
	case counter >= m.cfg.AlarmFrames:
		return LevelAlarm
	case counter > 0:
		return LevelClosing
	default:
		return LevelAlert
	}
}

// Level returns the current level
func (m *Machine) Level() Level { return m.level }
