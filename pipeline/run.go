package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"drivercam/landmarks"
)

// Source delivers frames. It returns io.EOF when the stream ends; any other
// error stops the loop.
type Source[F any] interface {
	Next(ctx context.Context) (F, error)
}

// Detector finds facial landmarks in a frame. It must always fill in the
// frame size; a nil Landmarks means no face.
type Detector[F any] interface {
	Detect(frame F) (Input, error)
}

// Sink draws or publishes a processed frame. Returning stop ends the loop normally.
type Sink[F any] interface {
	Render(frame F, out Output) (stop bool, err error)
}

// Run drives the monitor one frame at a time until the source ends, the sink
// asks to stop, ctx is cancelled or the detector breaks its topology contract.
// Latency is measured from frame request to the end of the alert decision,
// before rendering.
func Run[F any](ctx context.Context, src Source[F], det Detector[F], sink Sink[F], mon *Monitor) (Summary, error) {
	for {
		select {
		case <-ctx.Done():
			return mon.Summary(), ctx.Err()
		default:
		}

		start := mon.now()

		frame, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			debugMsg("PIPELINE", "Source exhausted, stopping")
			return mon.Summary(), nil
		}
		if err != nil {
			return mon.Summary(), fmt.Errorf("read frame: %w", err)
		}

		in, err := det.Detect(frame)
		if isContractViolation(err) {
			return mon.Summary(), fmt.Errorf("detect frame %d: %w", mon.frames, err)
		}
		if err != nil {
			// A failed inference is one bad frame, not a broken session.
			debugMsg("DETECT", fmt.Sprintf("Frame %d: detection failed, treating as no face: %v", mon.frames, err))
			in.Landmarks = nil
		}

		res, err := mon.Process(in)
		if err != nil {
			return mon.Summary(), fmt.Errorf("frame %d: %w", res.Frame, err)
		}

		tm := mon.Complete(mon.now().Sub(start))

		stop, err := sink.Render(frame, Output{Result: res, Timing: tm, Texts: Annotate(res, tm)})
		if err != nil {
			return mon.Summary(), fmt.Errorf("render frame %d: %w", res.Frame, err)
		}
		if stop {
			debugMsg("PIPELINE", "Stop requested by sink")
			return mon.Summary(), nil
		}
	}
}

// isContractViolation reports whether a detector error means its output can
// never be used, as opposed to one frame that failed.
func isContractViolation(err error) bool {
	return errors.Is(err, landmarks.ErrTopologyMismatch) || errors.Is(err, landmarks.ErrIndexOutOfRange)
}

// Summary describes a finished (or in-progress) monitoring run
type Summary struct {
	SessionID        string
	Frames           int64
	AverageLatency   float64 // ms, final rolling window
	AverageFPS       float64
	RunLatency       float64 // ms, over every frame
	AlarmEpisodes    int
	LongestClosedRun int
	FaceLostFrames   int64
	Started          time.Time
	Duration         time.Duration
}

// Lines renders the end-of-run report
func (s Summary) Lines() []string {
	return []string{
		fmt.Sprintf("Processed %d frames", s.Frames),
		fmt.Sprintf("Average latency: %.2fms", s.AverageLatency),
		fmt.Sprintf("Average FPS: %.2f", s.AverageFPS),
		fmt.Sprintf("Run latency: %.2fms over %s", s.RunLatency, s.Duration.Round(time.Millisecond)),
		fmt.Sprintf("Alarm episodes: %d (longest closed run %d frames, %d frames without face)",
			s.AlarmEpisodes, s.LongestClosedRun, s.FaceLostFrames),
	}
}
