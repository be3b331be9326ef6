package engine

import (
	"image"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/draw"
	"golang.org/x/image/vector"
)

type rasterState struct {
	ctm       Matrix2D
	fill      color.RGBA
	stroke    color.RGBA
	lineWidth float64
}

// RasterSurface is a Surface that rasterizes into an RGBA image. With a scale
// above 1 it renders supersampled and Image downsamples the result.
//
// A RasterSurface is not safe for concurrent use.
type RasterSurface struct {
	width, height int
	scale         float64
	img           *image.RGBA
	rast          *vector.Rasterizer
	state         rasterState
	stack         []rasterState
}

// NewRasterSurface creates a transparent width x height surface. scale values
// below 1 are treated as 1.
func NewRasterSurface(width, height int, scale float64) *RasterSurface {
	width, height = max(width, 1), max(height, 1)
	scale = max(scale, 1)

	pw := int(float64(width) * scale)
	ph := int(float64(height) * scale)
	return &RasterSurface{
		width:  width,
		height: height,
		scale:  scale,
		img:    image.NewRGBA(image.Rect(0, 0, pw, ph)),
		rast:   vector.NewRasterizer(pw, ph),
		state: rasterState{
			ctm:       Scale(scale, scale),
			fill:      color.RGBA{A: 0xff},
			stroke:    color.RGBA{A: 0xff},
			lineWidth: 1,
		},
	}
}

// Image returns the rendered image at the surface's logical size.
func (s *RasterSurface) Image() *image.RGBA {
	if s.scale == 1 {
		return s.img
	}
	out := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	draw.CatmullRom.Scale(out, out.Bounds(), s.img, s.img.Bounds(), draw.Src, nil)
	return out
}

// Fill paints the whole surface with c, ignoring the current transform.
func (s *RasterSurface) Fill(c string) {
	draw.Draw(s.img, s.img.Bounds(), image.NewUniform(ParseColor(c)), image.Point{}, draw.Src)
}

func (s *RasterSurface) ClearRect(x, y, width, height float64) {
	s.polygon(draw.Src, color.RGBA{}, rectCorners(x, y, width, height, false))
}

func (s *RasterSurface) Save() {
	s.stack = append(s.stack, s.state)
}

func (s *RasterSurface) Restore() {
	if len(s.stack) == 0 {
		return
	}
	s.state = s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
}

func (s *RasterSurface) Translate(x, y float64) {
	s.state.ctm = s.state.ctm.Multiply(Translate(x, y))
}

func (s *RasterSurface) Rotate(radians float64) {
	s.state.ctm = s.state.ctm.Multiply(Rotate(radians))
}

func (s *RasterSurface) SetFillStyle(c string)   { s.state.fill = ParseColor(c) }
func (s *RasterSurface) SetStrokeStyle(c string) { s.state.stroke = ParseColor(c) }
func (s *RasterSurface) SetLineWidth(w float64) {
	if w > 0 {
		s.state.lineWidth = w
	}
}

func (s *RasterSurface) FillRect(x, y, width, height float64) {
	if width <= 0 || height <= 0 {
		return
	}
	s.polygon(draw.Over, s.state.fill, rectCorners(x, y, width, height, false))
}

// StrokeRect strokes centered on the rectangle edge with square corners, as a
// ring: the outer outline wound one way and the inner outline the other.
func (s *RasterSurface) StrokeRect(x, y, width, height float64) {
	half := s.state.lineWidth / 2
	outer := rectCorners(x-half, y-half, width+2*half, height+2*half, false)
	if width <= 2*half || height <= 2*half {
		s.polygon(draw.Over, s.state.stroke, outer)
		return
	}
	inner := rectCorners(x+half, y+half, width-2*half, height-2*half, true)
	s.polygon(draw.Over, s.state.stroke, outer, inner)
}

func (s *RasterSurface) polygon(op draw.Op, c color.RGBA, contours ...[4][2]float64) {
	b := s.img.Bounds()
	s.rast.Reset(b.Dx(), b.Dy())
	s.rast.DrawOp = op
	for _, pts := range contours {
		for i, p := range pts {
			x, y := s.state.ctm.TransformPoint(p[0], p[1])
			if i == 0 {
				s.rast.MoveTo(float32(x), float32(y))
			} else {
				s.rast.LineTo(float32(x), float32(y))
			}
		}
		s.rast.ClosePath()
	}
	s.rast.Draw(s.img, b, image.NewUniform(c), image.Point{})
}

func rectCorners(x, y, w, h float64, reverse bool) [4][2]float64 {
	if reverse {
		return [4][2]float64{{x, y}, {x, y + h}, {x + w, y + h}, {x + w, y}}
	}
	return [4][2]float64{{x, y}, {x + w, y}, {x + w, y + h}, {x, y + h}}
}

// ParseColor accepts "#rrggbb" and "#rgb"; anything else paints opaque black.
func ParseColor(s string) color.RGBA {
	c, err := colorful.Hex(s)
	if err != nil {
		return color.RGBA{A: 0xff}
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}
