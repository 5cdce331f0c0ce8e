package overlay

import (
	"image"
	"time"

	"drivercam/pipeline"
)

// Layout holds the pixel placement of the per-frame text
type Layout struct {
	Margin          int // left edge for all text
	TopBaseline     int // baseline of row 0 at the top
	TopLineHeight   int
	BottomOffset    int // distance of the bottom row 0 baseline from the frame bottom
	BottomLineGap   int
	TopScale        float64
	TopThickness    int
	BottomScale     float64
	BottomThickness int
}

// DefaultLayout places the status lines at 30 and 60px and the throughput line
// 20px above the bottom edge.
func DefaultLayout() Layout {
	return Layout{
		Margin:          10,
		TopBaseline:     30,
		TopLineHeight:   30,
		BottomOffset:    20,
		BottomLineGap:   20,
		TopScale:        0.7,
		TopThickness:    2,
		BottomScale:     0.5,
		BottomThickness: 1,
	}
}

// Position returns the text origin for a row at anchor on a frame of height frameH
func (l Layout) Position(anchor pipeline.Anchor, row, frameH int) image.Point {
	switch anchor {
	case pipeline.AnchorBottomLeft:
		return image.Pt(l.Margin, frameH-l.BottomOffset-row*l.BottomLineGap)
	default:
		return image.Pt(l.Margin, l.TopBaseline+row*l.TopLineHeight)
	}
}

// Font returns the scale and thickness for anchor
func (l Layout) Font(anchor pipeline.Anchor) (float64, int) {
	if anchor == pipeline.AnchorBottomLeft {
		return l.BottomScale, l.BottomThickness
	}
	return l.TopScale, l.TopThickness
}

// Line is one rendered line of text with its placement
type Line struct {
	Text   string
	Anchor pipeline.Anchor
	Row    int
	Texts  []pipeline.Text // payloads merged into this line
}

// Lines groups payloads sharing an anchor and row into display lines, in first-seen order.
// Top rows get one payload per line; bottom rows are joined with " | ".
func Lines(texts []pipeline.Text) []Line {
	type key struct {
		anchor pipeline.Anchor
		row    int
	}
	var order []key
	groups := make(map[key][]pipeline.Text)
	for _, t := range texts {
		k := key{t.Anchor, t.Row}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], t)
	}

	lines := make([]Line, 0, len(order))
	for _, k := range order {
		lines = append(lines, Line{
			Text:   pipeline.JoinRow(texts, k.anchor, k.row),
			Anchor: k.anchor,
			Row:    k.row,
			Texts:  groups[k],
		})
	}
	return lines
}

// truncate shortens s to max bytes with a trailing ellipsis
func truncate(s string, max int) string {
	if max <= 3 || len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

// tail returns the last n entries of history
func tail(history []string, n int) []string {
	if n <= 0 || len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

// fadeAlpha is 1 while the terminal is fresh, then ramps to 0 over fade after hold
// has passed since the last alert level change.
func fadeAlpha(sinceChange, hold, fade time.Duration) float64 {
	if sinceChange <= hold {
		return 1
	}
	if fade <= 0 || sinceChange >= hold+fade {
		return 0
	}
	return 1 - float64(sinceChange-hold)/float64(fade)
}
