package pipeline

import (
	"fmt"
	"image/color"
	"strings"

	"drivercam/alert"
)

// Anchor is a position hint for a text payload; pixel layout belongs to the renderer.
type Anchor int

const (
	AnchorTopLeft Anchor = iota
	AnchorBottomLeft
)

// Text is one overlay text payload
type Text struct {
	Label    string
	Value    float64
	HasValue bool
	Format   string // verb for Value, e.g. "%.3f"
	Unit     string
	Anchor   Anchor
	Row      int // line index from the anchor
	Color    color.RGBA
}

var colorWhite = color.RGBA{255, 255, 255, 255}

func (t Text) String() string {
	if !t.HasValue {
		return t.Label
	}
	format := t.Format
	if format == "" {
		format = "%.2f"
	}
	return t.Label + ": " + fmt.Sprintf(format, t.Value) + t.Unit
}

// Annotate builds the overlay text for a frame: the metric and status lines at
// the top, the throughput line at the bottom.
func Annotate(res Result, tm Timing) []Text {
	texts := make([]Text, 0, 4)
	row := 0

	if res.HasMetric {
		texts = append(texts, Text{
			Label: "EAR", Value: res.Metric, HasValue: true, Format: "%.3f",
			Anchor: AnchorTopLeft, Row: row, Color: colorWhite,
		})
		row++
	}

	statusColor := res.Status.Level.Color()
	if !res.Status.Observation.FaceSeen {
		statusColor = alert.ColorRed
	}
	texts = append(texts, Text{
		Label: res.Status.Label(), Anchor: AnchorTopLeft, Row: row, Color: statusColor,
	})

	texts = append(texts,
		Text{Label: "FPS", Value: tm.FPS, HasValue: true, Format: "%.1f", Anchor: AnchorBottomLeft, Color: colorWhite},
		Text{Label: "Latency", Value: tm.LastLatency, HasValue: true, Format: "%.1f", Unit: "ms", Anchor: AnchorBottomLeft, Color: colorWhite},
	)
	return texts
}

// JoinRow joins all payloads sharing an anchor and row into one display line.
func JoinRow(texts []Text, anchor Anchor, row int) string {
	parts := make([]string, 0, len(texts))
	for _, t := range texts {
		if t.Anchor == anchor && t.Row == row {
			parts = append(parts, t.String())
		}
	}
	return strings.Join(parts, " | ")
}
