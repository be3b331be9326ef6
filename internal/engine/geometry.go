package engine

import (
	"math"

	"github.com/inamate/rectscene/internal/document"
)

// Rect is an axis-aligned rectangle in canvas space.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the rotation center of an element. Both hit testing and
// drawing go through here, and neither rounds.
func Center(e document.Element) (float64, float64) {
	return e.X + e.Width/2, e.Y + e.Height/2
}

// LocalTransform maps element-local coordinates (origin at the center, axes
// along the unrotated edges) to canvas coordinates.
func LocalTransform(e document.Element) Matrix2D {
	cx, cy := Center(e)
	return Translate(cx, cy).Multiply(Rotate(e.Rotation))
}

// ToLocal maps a canvas point into the element's local frame. It inverts the
// same transform the renderer applies.
func ToLocal(e document.Element, px, py float64) (float64, float64) {
	return LocalTransform(e).Invert().TransformPoint(px, py)
}

// hitEpsilon absorbs rounding from the inverse rotation so points produced by
// rotating an edge point into canvas space still land on the edge.
const hitEpsilon = 1e-9

// PointInElement reports whether (px, py) lies inside the rotated element.
// Edges count as inside. Elements without positive area are never hit.
func PointInElement(e document.Element, px, py float64) bool {
	if !(e.Width > 0) || !(e.Height > 0) {
		return false
	}
	lx, ly := ToLocal(e, px, py)
	return math.Abs(lx) <= e.Width/2+hitEpsilon && math.Abs(ly) <= e.Height/2+hitEpsilon
}

// HitTest returns the index of the top-most element containing (px, py).
// Later elements are on top, so the scan runs back to front.
func HitTest(elements []document.Element, px, py float64) (int, bool) {
	for i := len(elements) - 1; i >= 0; i-- {
		if PointInElement(elements[i], px, py) {
			return i, true
		}
	}
	return -1, false
}

// RotatedBoundingBox returns the size of the axis-aligned box enclosing a
// width x height rectangle rotated by rotation radians.
func RotatedBoundingBox(rotation, width, height float64) (float64, float64) {
	absCos := math.Abs(math.Cos(rotation))
	absSin := math.Abs(math.Sin(rotation))
	bboxWidth := width*absCos + height*absSin
	bboxHeight := width*absSin + height*absCos
	return bboxWidth, bboxHeight
}

// ClampCenter moves the center of the rectangle at (x, y, width, height) so a
// bounding box of bboxWidth x bboxHeight around it stays inside the canvas.
// When the box is larger than the canvas along an axis the center is pinned to
// the canvas midpoint on that axis.
func ClampCenter(x, y, width, height, bboxWidth, bboxHeight, canvasWidth, canvasHeight float64) (float64, float64) {
	return clampAxis(x+width/2, bboxWidth, canvasWidth), clampAxis(y+height/2, bboxHeight, canvasHeight)
}

func clampAxis(center, extent, canvas float64) float64 {
	if extent > canvas {
		return canvas / 2
	}
	return max(extent/2, min(center, canvas-extent/2))
}

// Bounds returns the canvas-space bounding box of the rotated element.
func Bounds(e document.Element) Rect {
	w, h := max(e.Width, 0), max(e.Height, 0)
	return LocalTransform(e).TransformRect(Rect{X: -w / 2, Y: -h / 2, Width: w, Height: h})
}
