package timing

import (
	"time"

	"gonum.org/v1/gonum/stat"
)

// Capacity is the number of recent latency samples kept for the rolling mean
const Capacity = 30

// Window is a fixed-size ring of the most recent latency samples (milliseconds).
// Adding at capacity overwrites the oldest sample.
type Window struct {
	samples [Capacity]float64
	index   int // next write position
	full    bool
}

// Add stores a sample, evicting the oldest one when the window is full.
func (w *Window) Add(ms float64) {
	w.samples[w.index] = ms
	w.index = (w.index + 1) % Capacity
	if w.index == 0 {
		w.full = true
	}
}

// Len returns the number of samples held
func (w *Window) Len() int {
	if w.full {
		return Capacity
	}
	return w.index
}

// Values returns the samples oldest first.
func (w *Window) Values() []float64 {
	n := w.Len()
	out := make([]float64, 0, n)
	if w.full {
		out = append(out, w.samples[w.index:]...)
		out = append(out, w.samples[:w.index]...)
		return out
	}
	return append(out, w.samples[:w.index]...)
}

// Last returns the newest sample, or 0 when empty.
func (w *Window) Last() float64 {
	if w.Len() == 0 {
		return 0
	}
	return w.samples[(w.index+Capacity-1)%Capacity]
}

// Mean returns the arithmetic mean of the window, or 0 when empty.
func (w *Window) Mean() float64 {
	if w.Len() == 0 {
		return 0
	}
	return stat.Mean(w.Values(), nil)
}

// Estimator tracks per-frame processing latency and derives throughput.
// Not safe for concurrent use.
type Estimator struct {
	window Window
	frames int64
	total  float64 // sum of every sample ever recorded, for the run summary
}

// NewEstimator returns an empty estimator
func NewEstimator() *Estimator {
	return &Estimator{}
}

// Record adds one completed frame's latency. Negative durations count as 0.
func (e *Estimator) Record(d time.Duration) {
	e.RecordMillis(float64(d) / float64(time.Millisecond))
}

// RecordMillis adds a latency sample already expressed in milliseconds.
func (e *Estimator) RecordMillis(ms float64) {
	if ms < 0 {
		ms = 0
	}
	e.window.Add(ms)
	e.frames++
	e.total += ms
}

// AverageLatency is the mean of the current window in milliseconds (0 if empty).
func (e *Estimator) AverageLatency() float64 {
	return e.window.Mean()
}

// InstantaneousFPS is 1000 / AverageLatency, or 0 when no time has been measured.
func (e *Estimator) InstantaneousFPS() float64 {
	return FPS(e.AverageLatency())
}

// LastLatency returns the most recent sample in milliseconds
func (e *Estimator) LastLatency() float64 {
	return e.window.Last()
}

// Frames returns how many samples were recorded over the estimator's lifetime
func (e *Estimator) Frames() int64 {
	return e.frames
}

// RunAverageLatency is the mean over every recorded frame, not just the window.
func (e *Estimator) RunAverageLatency() float64 {
	if e.frames == 0 {
		return 0
	}
	return e.total / float64(e.frames)
}

// Window exposes a copy of the current samples, oldest first
func (e *Estimator) Window() []float64 {
	return e.window.Values()
}

// FPS converts an average per-frame latency in milliseconds into frames per second.
func FPS(avgMillis float64) float64 {
	if avgMillis <= 0 {
		return 0
	}
	return 1000 / avgMillis
}
