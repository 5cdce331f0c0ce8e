package overlay

import (
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drivercam/alert"
	"drivercam/pipeline"
)

func TestLayoutPosition(t *testing.T) {
	t.Parallel()

	l := DefaultLayout()
	assert.Equal(t, image.Pt(10, 30), l.Position(pipeline.AnchorTopLeft, 0, 480))
	assert.Equal(t, image.Pt(10, 60), l.Position(pipeline.AnchorTopLeft, 1, 480))
	assert.Equal(t, image.Pt(10, 460), l.Position(pipeline.AnchorBottomLeft, 0, 480))
	assert.Equal(t, image.Pt(10, 440), l.Position(pipeline.AnchorBottomLeft, 1, 480))

	scale, thick := l.Font(pipeline.AnchorTopLeft)
	assert.Equal(t, 0.7, scale)
	assert.Equal(t, 2, thick)
	scale, thick = l.Font(pipeline.AnchorBottomLeft)
	assert.Equal(t, 0.5, scale)
	assert.Equal(t, 1, thick)
}

func TestLines(t *testing.T) {
	t.Parallel()

	res := pipeline.Result{
		FaceFound: true, Metric: 0.25, HasMetric: true,
		Status: alert.Status{Level: alert.LevelAlert, Observation: alert.Observed(0.25), AlarmFrames: 15},
	}
	texts := pipeline.Annotate(res, pipeline.Timing{LastLatency: 20, FPS: 50})

	lines := Lines(texts)
	require.Len(t, lines, 3)

	assert.Equal(t, "EAR: 0.250", lines[0].Text)
	assert.Equal(t, "Alert", lines[1].Text)
	assert.Equal(t, 1, lines[1].Row)
	assert.Equal(t, "FPS: 50.0 | Latency: 20.0ms", lines[2].Text)
	assert.Equal(t, pipeline.AnchorBottomLeft, lines[2].Anchor)
	assert.Len(t, lines[2].Texts, 2)
}

func TestTruncateAndTail(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))

	h := []string{"a", "b", "c", "d"}
	assert.Equal(t, []string{"c", "d"}, tail(h, 2))
	assert.Equal(t, h, tail(h, 10))
	assert.Equal(t, h, tail(h, 0))
}

func TestFadeAlpha(t *testing.T) {
	t.Parallel()

	hold, fade := 10*time.Second, 4*time.Second
	assert.Equal(t, 1.0, fadeAlpha(0, hold, fade))
	assert.Equal(t, 1.0, fadeAlpha(hold, hold, fade))
	assert.InDelta(t, 0.5, fadeAlpha(12*time.Second, hold, fade), 1e-9)
	assert.Equal(t, 0.0, fadeAlpha(14*time.Second, hold, fade))
	assert.Equal(t, 0.0, fadeAlpha(time.Minute, hold, 0))
}

func TestDescribe(t *testing.T) {
	t.Parallel()

	res := pipeline.Result{
		Frame:  7,
		Status: alert.Status{Level: alert.LevelClosing, ClosedFrames: 1, Observation: alert.NoFace(), AlarmFrames: 15},
	}
	tm := pipeline.Timing{LastLatency: 10, FPS: 100}
	out := pipeline.Output{Result: res, Timing: tm, Texts: pipeline.Annotate(res, tm)}

	assert.Equal(t, "[7] No face detected | FPS: 100.0 | Latency: 10.0ms", Describe(out))
}
