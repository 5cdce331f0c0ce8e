package timing

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestWindow_Empty(t *testing.T) {
	t.Parallel()

	var w Window
	assert.Zero(t, w.Len())
	assert.Empty(t, w.Values())
	assert.Zero(t, w.Last())
	assert.Zero(t, w.Mean())
}

func TestWindow_PartialFill(t *testing.T) {
	t.Parallel()

	var w Window
	for i := 1; i <= 5; i++ {
		w.Add(float64(i))
	}
	assert.Equal(t, 5, w.Len())
	assert.Equal(t, []float64{1, 2, 3, 4, 5}, w.Values())
	assert.Equal(t, 5.0, w.Last())
	assert.InDelta(t, 3.0, w.Mean(), 1e-12)
}

func TestWindow_EvictsOldest(t *testing.T) {
	t.Parallel()

	for _, n := range []int{Capacity, Capacity + 1, 2*Capacity + 7, 100} {
		var w Window
		for i := 0; i < n; i++ {
			w.Add(float64(i))
		}

		want := make([]float64, 0, Capacity)
		start := n - Capacity
		if start < 0 {
			start = 0
		}
		for i := start; i < n; i++ {
			want = append(want, float64(i))
		}

		assert.Equal(t, Capacity, w.Len(), "n=%d", n)
		if diff := cmp.Diff(want, w.Values()); diff != "" {
			t.Errorf("n=%d window mismatch (-want +got):\n%s", n, diff)
		}
		assert.Equal(t, float64(n-1), w.Last())
	}
}

func TestEstimator_Empty(t *testing.T) {
	t.Parallel()

	e := NewEstimator()
	assert.Zero(t, e.AverageLatency())
	assert.Zero(t, e.InstantaneousFPS())
	assert.Zero(t, e.LastLatency())
	assert.Zero(t, e.RunAverageLatency())
}

func TestEstimator_Record(t *testing.T) {
	t.Parallel()

	e := NewEstimator()
	e.Record(20 * time.Millisecond)
	e.Record(40 * time.Millisecond)

	assert.InDelta(t, 30.0, e.AverageLatency(), 1e-9)
	assert.InDelta(t, 1000.0/30.0, e.InstantaneousFPS(), 1e-9)
	assert.InDelta(t, 40.0, e.LastLatency(), 1e-9)
	assert.Equal(t, int64(2), e.Frames())
}

func TestEstimator_NegativeClampsToZero(t *testing.T) {
	t.Parallel()

	e := NewEstimator()
	e.Record(-5 * time.Millisecond)
	e.RecordMillis(-1)
	assert.Zero(t, e.AverageLatency())
	assert.Zero(t, e.InstantaneousFPS(), "all-zero latency must not divide by zero")
}

func TestEstimator_WindowVersusRunAverage(t *testing.T) {
	t.Parallel()

	e := NewEstimator()
	for i := 0; i < Capacity; i++ {
		e.RecordMillis(100)
	}
	for i := 0; i < Capacity; i++ {
		e.RecordMillis(10)
	}

	assert.InDelta(t, 10.0, e.AverageLatency(), 1e-9)
	assert.InDelta(t, 100.0, e.InstantaneousFPS(), 1e-9)
	assert.InDelta(t, 55.0, e.RunAverageLatency(), 1e-9)
	assert.Len(t, e.Window(), Capacity)
	assert.Equal(t, int64(2*Capacity), e.Frames())
}

func TestFPS(t *testing.T) {
	t.Parallel()

	assert.Zero(t, FPS(0))
	assert.Zero(t, FPS(-3))
	assert.InDelta(t, 25.0, FPS(40), 1e-12)
}
