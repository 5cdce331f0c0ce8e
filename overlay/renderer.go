package overlay

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"time"

	"gocv.io/x/gocv"

	"drivercam/alert"
	"drivercam/landmarks"
	"drivercam/pipeline"
)

// debugMsgFunc is a function that will be set by main package to use unified logging
var debugMsgFunc func(component, message string, sessionID ...string)

// SetDebugFunction allows main package to provide the debug logger
func SetDebugFunction(fn func(component, message string, sessionID ...string)) {
	debugMsgFunc = fn
}

// debugMsg is a wrapper that handles nil checks
func debugMsg(component, message string, sessionID ...string) {
	if debugMsgFunc != nil {
		debugMsgFunc(component, message, sessionID...)
	}
}

// Terminal overlay geometry
const (
	terminalX          = 20
	terminalWidth      = 520
	terminalLineHeight = 14
	terminalMaxLines   = 12
	terminalMaxLineLen = 80
	terminalHold       = 10 * time.Second
	terminalFade       = 3 * time.Second
)

// Renderer draws the per-frame annotations onto the camera frame
type Renderer struct {
	layout        Layout
	animationTime float64 // seconds, for the alarm pulse
	lastFrame     time.Time
	lastLevel     alert.Level
	lastChange    time.Time
	textColor     color.RGBA
	faceColor     color.RGBA
	now           func() time.Time
}

// NewRenderer creates a new overlay renderer
func NewRenderer(layout Layout) *Renderer {
	now := time.Now()
	return &Renderer{
		layout:     layout,
		lastFrame:  now,
		lastChange: now,
		textColor:  color.RGBA{255, 255, 255, 255},
		faceColor:  color.RGBA{0, 150, 255, 180},
		now:        time.Now,
	}
}

// UpdateAnimation advances the animation time for the alarm pulse
func (r *Renderer) UpdateAnimation(deltaTime float64) {
	r.animationTime += deltaTime
	// Keep animation time bounded to prevent float overflow
	if r.animationTime > 1000.0 {
		r.animationTime -= 1000.0
	}
}

// Render draws everything for one frame: face box, eye contours, text and the
// optional debug terminal. history may be nil.
func (r *Renderer) Render(img *gocv.Mat, out pipeline.Output, face image.Rectangle, history []string) {
	now := r.now()
	r.UpdateAnimation(now.Sub(r.lastFrame).Seconds())
	r.lastFrame = now
	if out.Status.Level != r.lastLevel {
		debugMsg("OVERLAY", fmt.Sprintf("Level %s -> %s, terminal refreshed", r.lastLevel, out.Status.Level))
		r.lastLevel = out.Status.Level
		r.lastChange = now
	}

	if !face.Empty() {
		r.DrawFace(img, face, out.Status.Level)
	}
	if out.FaceFound {
		r.DrawEyes(img, out.LeftEye, out.Status.Level)
		r.DrawEyes(img, out.RightEye, out.Status.Level)
	}
	if out.Status.Level == alert.LevelAlarm {
		r.DrawAlarmBorder(img)
	}
	r.DrawTexts(img, out.Texts)
	if history != nil {
		r.DrawDecisionTerminal(img, history)
	}
}

// DrawEyes draws one closed eye contour with a dot on every landmark
func (r *Renderer) DrawEyes(img *gocv.Mat, eye landmarks.EyeContour, level alert.Level) {
	c := level.Color()
	pts := eye.Polyline()
	for i := range pts {
		gocv.Line(img, pts[i], pts[(i+1)%len(pts)], c, 1)
	}
	for _, p := range pts {
		gocv.Circle(img, p, 2, c, -1)
	}
}

// DrawFace draws corner brackets around the region the landmark model looked at
func (r *Renderer) DrawFace(img *gocv.Mat, rect image.Rectangle, level alert.Level) {
	c := r.faceColor
	if level == alert.LevelAlarm {
		c = alert.ColorRed
	}
	length := rect.Dx() / 6
	if length < 8 {
		length = 8
	}
	r.drawCornerBrackets(img, rect, c, 2, length, r.pulse(level))
}

// DrawAlarmBorder frames the whole image in pulsing red
func (r *Renderer) DrawAlarmBorder(img *gocv.Mat) {
	c := alert.ColorRed
	c.A = uint8(255 * r.pulse(alert.LevelAlarm))
	bounds := image.Rect(0, 0, img.Cols()-1, img.Rows()-1)
	gocv.Rectangle(img, bounds, c, 8)
}

// DrawTexts draws the overlay payloads at their anchors
func (r *Renderer) DrawTexts(img *gocv.Mat, texts []pipeline.Text) {
	for _, line := range Lines(texts) {
		scale, thickness := r.layout.Font(line.Anchor)
		pos := r.layout.Position(line.Anchor, line.Row, img.Rows())
		c := r.textColor
		if len(line.Texts) == 1 {
			c = line.Texts[0].Color
		}
		gocv.PutText(img, line.Text, pos, gocv.FontHersheySimplex, scale, c, thickness)
	}
}

// DrawDecisionTerminal draws a terminal-like box with the most recent debug
// messages, under the status lines. It fades out once the alert level has
// been stable for a while.
func (r *Renderer) DrawDecisionTerminal(img *gocv.Mat, history []string) {
	alpha := fadeAlpha(r.now().Sub(r.lastChange), terminalHold, terminalFade)
	if r.lastLevel != alert.LevelAlert {
		alpha = 1
	}
	if alpha <= 0 {
		return
	}

	lines := tail(history, terminalMaxLines)
	top := r.layout.Position(pipeline.AnchorTopLeft, 2, img.Rows()).Y
	height := terminalMaxLines*terminalLineHeight + 10
	rect := image.Rect(terminalX, top, terminalX+terminalWidth, top+height)
	gocv.Rectangle(img, rect, color.RGBA{0, 0, 0, uint8(180 * alpha)}, -1)

	y := top + 14
	if len(lines) == 0 {
		gocv.PutText(img, "No debug messages available...", image.Pt(terminalX+10, y),
			gocv.FontHersheySimplex, 0.4, color.RGBA{128, 128, 128, uint8(128 * alpha)}, 1)
		return
	}
	textColor := color.RGBA{255, 255, 255, uint8(255 * alpha)}
	for _, msg := range lines {
		gocv.PutText(img, truncate(msg, terminalMaxLineLen), image.Pt(terminalX+10, y),
			gocv.FontHersheySimplex, 0.35, textColor, 1)
		y += terminalLineHeight
	}
}

// pulse is the brightness factor for the current animation time; steady outside ALARM
func (r *Renderer) pulse(level alert.Level) float64 {
	if level != alert.LevelAlarm {
		return 1
	}
	return math.Sin(r.animationTime*2*math.Pi*2)*0.3 + 0.7
}

// drawCornerBrackets draws four L-shaped corners around rect
func (r *Renderer) drawCornerBrackets(img *gocv.Mat, rect image.Rectangle, c color.RGBA, thickness, length int, intensity float64) {
	adjusted := c
	adjusted.A = uint8(float64(c.A) * intensity)

	// Top-left corner
	gocv.Line(img, rect.Min, image.Pt(rect.Min.X+length, rect.Min.Y), adjusted, thickness)
	gocv.Line(img, rect.Min, image.Pt(rect.Min.X, rect.Min.Y+length), adjusted, thickness)

	// Top-right corner
	gocv.Line(img, image.Pt(rect.Max.X, rect.Min.Y), image.Pt(rect.Max.X-length, rect.Min.Y), adjusted, thickness)
	gocv.Line(img, image.Pt(rect.Max.X, rect.Min.Y), image.Pt(rect.Max.X, rect.Min.Y+length), adjusted, thickness)

	// Bottom-left corner
	gocv.Line(img, image.Pt(rect.Min.X, rect.Max.Y), image.Pt(rect.Min.X+length, rect.Max.Y), adjusted, thickness)
	gocv.Line(img, image.Pt(rect.Min.X, rect.Max.Y), image.Pt(rect.Min.X, rect.Max.Y-length), adjusted, thickness)

	// Bottom-right corner
	gocv.Line(img, rect.Max, image.Pt(rect.Max.X-length, rect.Max.Y), adjusted, thickness)
	gocv.Line(img, rect.Max, image.Pt(rect.Max.X, rect.Max.Y-length), adjusted, thickness)
}

// Describe is a one-line summary of what Render would draw, for logs in headless mode
func Describe(out pipeline.Output) string {
	s := pipeline.JoinRow(out.Texts, pipeline.AnchorTopLeft, 0)
	if second := pipeline.JoinRow(out.Texts, pipeline.AnchorTopLeft, 1); second != "" {
		s += " | " + second
	}
	bottom := pipeline.JoinRow(out.Texts, pipeline.AnchorBottomLeft, 0)
	return fmt.Sprintf("[%d] %s | %s", out.Frame, s, bottom)
}
