// Package report renders the per-frame trace of a monitoring run as charts.
package report

import (
	"errors"
	"fmt"
	"image/color"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"drivercam/alert"
	"drivercam/pipeline"
)

// ErrNoSamples is returned when there is nothing to plot
var ErrNoSamples = errors.New("report: no samples")

var (
	earColor       = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 255}
	thresholdColor = color.RGBA{R: 0x99, G: 0x99, B: 0x99, A: 255}
	latencyColor   = color.RGBA{R: 0x2c, G: 0xa0, B: 0x2c, A: 255}
)

// Series splits a trace into chart points: the EAR of every frame that had
// one, the frames that were at ALARM, and the latency of every frame.
type Series struct {
	EAR     plotter.XYs
	Alarm   plotter.XYs
	Latency plotter.XYs
}

// BuildSeries converts trace samples into plot points
func BuildSeries(samples []pipeline.Sample) Series {
	s := Series{
		EAR:     make(plotter.XYs, 0, len(samples)),
		Latency: make(plotter.XYs, 0, len(samples)),
	}
	for _, smp := range samples {
		x := float64(smp.Frame)
		if smp.HasMetric {
			s.EAR = append(s.EAR, plotter.XY{X: x, Y: smp.Metric})
		}
		if smp.Level == alert.LevelAlarm {
			// alarm markers sit on the x axis when the frame had no metric
			y := 0.0
			if smp.HasMetric {
				y = smp.Metric
			}
			s.Alarm = append(s.Alarm, plotter.XY{X: x, Y: y})
		}
		s.Latency = append(s.Latency, plotter.XY{X: x, Y: smp.LatencyMs})
	}
	return s
}

// WritePlots saves the EAR chart to path and the latency chart next to it
// (name suffixed with "_latency"). It returns the paths written.
func WritePlots(path string, samples []pipeline.Sample, threshold float64) ([]string, error) {
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}
	series := BuildSeries(samples)
	first, last := float64(samples[0].Frame), float64(samples[len(samples)-1].Frame)

	pEAR := plot.New()
	pEAR.Title.Text = "Eye Aspect Ratio"
	pEAR.X.Label.Text = "Frame"
	pEAR.Y.Label.Text = "EAR"

	if len(series.EAR) > 0 {
		earLine, err := plotter.NewLine(series.EAR)
		if err != nil {
			return nil, err
		}
		earLine.Color = earColor
		earLine.Width = vg.Points(1)
		pEAR.Add(earLine)
		pEAR.Legend.Add("EAR", earLine)
	}

	thrLine, err := plotter.NewLine(plotter.XYs{{X: first, Y: threshold}, {X: last, Y: threshold}})
	if err != nil {
		return nil, err
	}
	thrLine.Color = thresholdColor
	thrLine.Width = vg.Points(1)
	thrLine.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
	pEAR.Add(thrLine)
	pEAR.Legend.Add(fmt.Sprintf("threshold %.2f", threshold), thrLine)

	if len(series.Alarm) > 0 {
		alarm, err := plotter.NewScatter(series.Alarm)
		if err != nil {
			return nil, err
		}
		alarm.GlyphStyle.Color = alert.ColorRed
		alarm.GlyphStyle.Radius = vg.Points(1.5)
		alarm.GlyphStyle.Shape = draw.CircleGlyph{}
		pEAR.Add(alarm)
		pEAR.Legend.Add("ALARM", alarm)
	}

	pEAR.Legend.Top = true
	pEAR.Legend.Left = false
	pEAR.Legend.XOffs = -10
	pEAR.Legend.YOffs = -10

	pLat := plot.New()
	pLat.Title.Text = "Frame Latency"
	pLat.X.Label.Text = "Frame"
	pLat.Y.Label.Text = "Latency (ms)"

	latLine, err := plotter.NewLine(series.Latency)
	if err != nil {
		return nil, err
	}
	latLine.Color = latencyColor
	latLine.Width = vg.Points(1)
	pLat.Add(latLine)

	latPath := LatencyPath(path)
	if err := pEAR.Save(14*vg.Inch, 6*vg.Inch, path); err != nil {
		return nil, fmt.Errorf("save %s: %w", path, err)
	}
	if err := pLat.Save(14*vg.Inch, 6*vg.Inch, latPath); err != nil {
		return nil, fmt.Errorf("save %s: %w", latPath, err)
	}
	return []string{path, latPath}, nil
}

// LatencyPath derives the latency chart name from the EAR chart name
func LatencyPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_latency" + ext
}
