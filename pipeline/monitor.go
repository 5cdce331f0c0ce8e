package pipeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"drivercam/alert"
	"drivercam/ear"
	"drivercam/landmarks"
	"drivercam/timing"
)

// Global debug function for pipeline package
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

// Input is what the landmark detector reports for one frame.
// Landmarks is nil when no face was found.
type Input struct {
	Landmarks landmarks.Set
	Width     int
	Height    int
}

// FaceFound reports whether the detector returned a face
func (in Input) FaceFound() bool {
	return in.Landmarks != nil
}

// Result is the per-frame output of the signal pipeline
type Result struct {
	Frame     int64
	FaceFound bool
	LeftEye   landmarks.EyeContour
	RightEye  landmarks.EyeContour
	Left      ear.Result
	Right     ear.Result
	Metric    float64
	HasMetric bool
	Status    alert.Status
}

// Timing is the latency snapshot taken after a frame completes
type Timing struct {
	LastLatency    float64 // ms
	AverageLatency float64 // ms, rolling window
	FPS            float64
}

// Output is everything the renderer needs for one frame
type Output struct {
	Result
	Timing Timing
	Texts  []Text
}

// Sample is one frame of the run trace used for reporting
type Sample struct {
	Frame     int64
	Metric    float64
	HasMetric bool
	Level     alert.Level
	LatencyMs float64
}

// Config configures a Monitor
type Config struct {
	Alert alert.Config
	// Topology is the landmark count the detector must deliver; 0 disables the check.
	Topology int
	// TraceLimit caps the number of trace samples kept; 0 disables tracing.
	TraceLimit int
}

// DefaultConfig returns the stock alert thresholds for the refined face mesh
func DefaultConfig() Config {
	return Config{
		Alert:    alert.DefaultConfig(),
		Topology: landmarks.FaceMeshSize,
	}
}

// Option customizes a Monitor
type Option func(*Monitor)

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// WithSessionID fixes the session identifier instead of generating one
func WithSessionID(id string) Option {
	return func(m *Monitor) { m.sessionID = id }
}

// Monitor sequences the per-frame stages and owns the rolling state
// (closed-eye counter and latency window). Not safe for concurrent use.
type Monitor struct {
	cfg       Config
	machine   *alert.Machine
	timing    *timing.Estimator
	now       func() time.Time
	sessionID string
	started   time.Time

	frames        int64
	alarmEpisodes int
	longestClosed int
	faceLostTotal int64

	pending Sample
	trace   []Sample
}

// NewMonitor validates cfg and returns a monitor in the ALERT state.
func NewMonitor(cfg Config, opts ...Option) (*Monitor, error) {
	machine, err := alert.New(cfg.Alert)
	if err != nil {
		return nil, err
	}
	if cfg.Topology < 0 || cfg.TraceLimit < 0 {
		return nil, fmt.Errorf("topology and trace limit must be non-negative")
	}

	m := &Monitor{
		cfg:     cfg,
		machine: machine,
		timing:  timing.NewEstimator(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.sessionID == "" {
		m.sessionID = uuid.NewString()
	}
	m.started = m.now()
	return m, nil
}

// Process runs geometry extraction, the openness estimate and the alert
// update for one frame. The only errors are detector contract violations.
func (m *Monitor) Process(in Input) (Result, error) {
	res := Result{Frame: m.frames, FaceFound: in.FaceFound()}

	obs := alert.NoFace()
	if res.FaceFound {
		if m.cfg.Topology > 0 {
			if err := landmarks.CheckTopology(in.Landmarks, m.cfg.Topology); err != nil {
				return res, err
			}
		}
		var err error
		if res.LeftEye, err = landmarks.ExtractEye(in.Landmarks, landmarks.LeftEye, in.Width, in.Height); err != nil {
			return res, fmt.Errorf("left eye: %w", err)
		}
		if res.RightEye, err = landmarks.ExtractEye(in.Landmarks, landmarks.RightEye, in.Width, in.Height); err != nil {
			return res, fmt.Errorf("right eye: %w", err)
		}

		res.Left = ear.Compute(res.LeftEye)
		res.Right = ear.Compute(res.RightEye)
		if res.Left.Degenerate || res.Right.Degenerate {
			debugMsg("EAR", fmt.Sprintf("Frame %d: degenerate eye contour (left=%v right=%v)",
				m.frames, res.Left.Degenerate, res.Right.Degenerate))
		}
		res.Metric, res.HasMetric = ear.Combine(res.Left, res.Right)
		if res.HasMetric {
			obs = alert.Observed(res.Metric)
		} else {
			obs = alert.Unmeasured()
		}
	}

	res.Status = m.machine.Update(obs)
	m.observe(res)
	return res, nil
}

func (m *Monitor) observe(res Result) {
	m.frames++
	st := res.Status
	if !res.FaceFound {
		m.faceLostTotal++
	}
	if st.ClosedFrames > m.longestClosed {
		m.longestClosed = st.ClosedFrames
	}
	if st.Changed() {
		if st.Level == alert.LevelAlarm {
			m.alarmEpisodes++
		}
		debugMsg("ALERT", fmt.Sprintf("%s -> %s (closed=%d, face lost=%d)",
			st.Previous, st.Level, st.ClosedFrames, st.FaceLostFrames), m.sessionID)
	}
	m.pending = Sample{
		Frame:     res.Frame,
		Metric:    res.Metric,
		HasMetric: res.HasMetric,
		Level:     st.Level,
	}
}

// Complete records the frame's processing latency and returns the updated figures.
func (m *Monitor) Complete(latency time.Duration) Timing {
	m.timing.Record(latency)
	tm := m.Timing()

	if m.cfg.TraceLimit > 0 {
		s := m.pending
		s.LatencyMs = tm.LastLatency
		m.trace = append(m.trace, s)
		if len(m.trace) > m.cfg.TraceLimit {
			m.trace = m.trace[len(m.trace)-m.cfg.TraceLimit:]
		}
	}
	return tm
}

// Timing returns the current latency figures without recording anything
func (m *Monitor) Timing() Timing {
	return Timing{
		LastLatency:    m.timing.LastLatency(),
		AverageLatency: m.timing.AverageLatency(),
		FPS:            m.timing.InstantaneousFPS(),
	}
}

// Trace returns a copy of the retained samples, oldest first
func (m *Monitor) Trace() []Sample {
	out := make([]Sample, len(m.trace))
	copy(out, m.trace)
	return out
}

// Level returns the current alert level
func (m *Monitor) Level() alert.Level { return m.machine.Level() }

// SessionID identifies this monitoring run
func (m *Monitor) SessionID() string { return m.sessionID }

// Config returns the monitor configuration
func (m *Monitor) Config() Config { return m.cfg }

// Summary reports the run so far
func (m *Monitor) Summary() Summary {
	return Summary{
		SessionID:        m.sessionID,
		Frames:           m.frames,
		AverageLatency:   m.timing.AverageLatency(),
		AverageFPS:       m.timing.InstantaneousFPS(),
		RunLatency:       m.timing.RunAverageLatency(),
		AlarmEpisodes:    m.alarmEpisodes,
		LongestClosedRun: m.longestClosed,
		FaceLostFrames:   m.faceLostTotal,
		Started:          m.started,
		Duration:         m.now().Sub(m.started),
	}
}
