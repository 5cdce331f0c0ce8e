package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot/plotter"

	"drivercam/alert"
	"drivercam/pipeline"
)

func trace() []pipeline.Sample {
	return []pipeline.Sample{
		{Frame: 0, Metric: 0.30, HasMetric: true, Level: alert.LevelAlert, LatencyMs: 10},
		{Frame: 1, Metric: 0.15, HasMetric: true, Level: alert.LevelClosing, LatencyMs: 11},
		{Frame: 2, HasMetric: false, Level: alert.LevelAlarm, LatencyMs: 12},
		{Frame: 3, Metric: 0.12, HasMetric: true, Level: alert.LevelAlarm, LatencyMs: 9},
	}
}

func TestBuildSeries(t *testing.T) {
	t.Parallel()

	s := BuildSeries(trace())

	wantEAR := plotter.XYs{{X: 0, Y: 0.30}, {X: 1, Y: 0.15}, {X: 3, Y: 0.12}}
	if diff := cmp.Diff(wantEAR, s.EAR); diff != "" {
		t.Errorf("EAR series mismatch (-want +got):\n%s", diff)
	}
	wantAlarm := plotter.XYs{{X: 2, Y: 0}, {X: 3, Y: 0.12}}
	if diff := cmp.Diff(wantAlarm, s.Alarm); diff != "" {
		t.Errorf("alarm series mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, s.Latency, 4)
	assert.Equal(t, 12.0, s.Latency[2].Y)
}

func TestWritePlots(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "run.png")
	paths, err := WritePlots(out, trace(), alert.DefaultEARThreshold)
	require.NoError(t, err)
	require.Len(t, paths, 2)

	for _, p := range paths {
		info, err := os.Stat(p)
		require.NoError(t, err, p)
		assert.Positive(t, info.Size())
	}
	assert.Equal(t, filepath.Join(filepath.Dir(out), "run_latency.png"), paths[1])
}

func TestWritePlots_NoMetric(t *testing.T) {
	t.Parallel()

	samples := []pipeline.Sample{
		{Frame: 0, Level: alert.LevelClosing, LatencyMs: 5},
		{Frame: 1, Level: alert.LevelClosing, LatencyMs: 6},
	}
	_, err := WritePlots(filepath.Join(t.TempDir(), "noface.png"), samples, 0.21)
	assert.NoError(t, err)
}

func TestWritePlots_Empty(t *testing.T) {
	t.Parallel()

	_, err := WritePlots(filepath.Join(t.TempDir(), "x.png"), nil, 0.21)
	assert.ErrorIs(t, err, ErrNoSamples)
}

func TestLatencyPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/tmp/run_latency.png", LatencyPath("/tmp/run.png"))
	assert.Equal(t, "trace_latency.svg", LatencyPath("trace.svg"))
	assert.Equal(t, "trace_latency", LatencyPath("trace"))
}
