package engine

import "github.com/inamate/rectscene/internal/document"

// Hover highlight style. Not configurable.
const (
	HoverColor     = "#7048e8"
	HoverLineWidth = 3.0
)

// Surface is the subset of a Canvas2D-like context the renderer draws with.
// Transform calls compose with the current transform, and Save/Restore push and
// pop the transform together with the fill, stroke and line width state.
type Surface interface {
	ClearRect(x, y, width, height float64)
	Save()
	Restore()
	Translate(x, y float64)
	Rotate(radians float64)
	SetFillStyle(color string)
	SetStrokeStyle(color string)
	SetLineWidth(width float64)
	FillRect(x, y, width, height float64)
	StrokeRect(x, y, width, height float64)
}

// DrawElement fills the element rotated about its center.
func DrawElement(s Surface, e document.Element) {
	w, h := extents(e)
	s.Save()
	enterLocalFrame(s, e)
	s.SetFillStyle(e.Color)
	s.FillRect(-w/2, -h/2, w, h)
	s.Restore()
}

// DrawHoverBorder strokes the element outline with the hover style.
func DrawHoverBorder(s Surface, e document.Element) {
	w, h := extents(e)
	s.Save()
	enterLocalFrame(s, e)
	s.SetStrokeStyle(HoverColor)
	s.SetLineWidth(HoverLineWidth)
	s.StrokeRect(-w/2, -h/2, w, h)
	s.Restore()
}

// RenderScene clears the canvas and paints elements in order, so later elements
// cover earlier ones, then outlines the hovered element on top of everything.
func RenderScene(s Surface, width, height float64, elements []document.Element, hovered *document.Element) {
	s.ClearRect(0, 0, width, height)
	for _, e := range elements {
		DrawElement(s, e)
	}
	if hovered != nil {
		DrawHoverBorder(s, *hovered)
	}
}

// enterLocalFrame uses the same center as PointInElement.
func enterLocalFrame(s Surface, e document.Element) {
	cx, cy := Center(e)
	s.Translate(cx, cy)
	s.Rotate(e.Rotation)
}

// extents clamps degenerate sizes so they draw as zero-area rectangles.
func extents(e document.Element) (float64, float64) {
	return max(e.Width, 0), max(e.Height, 0)
}
