// Package export renders scenes to images and encodes their rotation
// animation as video.
package export

import (
	"errors"
	"fmt"
	"image"
	"time"

	"golang.org/x/image/draw"

	"github.com/inamate/rectscene/internal/document"
	"github.com/inamate/rectscene/internal/engine"
)

// MaxFrames caps the frames a single export may render.
const MaxFrames = 7200

var ErrTooManyFrames = errors.New("animation too long to export")

type FrameOptions struct {
	// FPS is the output frame rate.
	FPS int
	// SimRate is the rate the animation is stepped at. The rotation speed is
	// per step, so this should match the live frame rate.
	SimRate int
	// Scale supersamples rendering; values below 1 render at 1.
	Scale float64
	Speed float64
	// Background is a "#rrggbb" color; empty keeps the canvas transparent.
	Background string
}

func (o FrameOptions) withDefaults() FrameOptions {
	if o.FPS <= 0 {
		o.FPS = 24
	}
	if o.SimRate <= 0 {
		o.SimRate = 60
	}
	if o.Speed <= 0 {
		o.Speed = engine.DefaultRotationSpeed
	}
	return o
}

// RenderImage rasterizes the scene as it stands.
func RenderImage(data *document.SceneData, width, height int, scale float64, background string) *image.RGBA {
	sc := engine.NewScene(float64(width), float64(height))
	sc.Load(data)
	return renderScene(sc, width, height, scale, background)
}

// RenderFrames plays the scene's rotation animation from its current state
// and calls emit for each output frame, starting with the unrotated scene and
// ending with the final one. It returns the number of frames emitted.
func RenderFrames(data *document.SceneData, width, height int, opts FrameOptions, emit func(i int, img *image.RGBA) error) (int, error) {
	opts = opts.withDefaults()

	sc := engine.NewScene(float64(width), float64(height))
	sc.Load(data)

	if estimate := int(sc.Duration().Seconds()*float64(opts.FPS)) + 2; estimate > MaxFrames {
		return 0, fmt.Errorf("%w: %d frames", ErrTooManyFrames, estimate)
	}

	n := 0
	capture := func() error {
		if err := emit(n, renderScene(sc, width, height, opts.Scale, opts.Background)); err != nil {
			return fmt.Errorf("emit frame %d: %w", n, err)
		}
		n++
		return nil
	}

	if err := capture(); err != nil {
		return n, err
	}

	anim := engine.NewAnimator(sc, opts.Speed)
	start := time.Unix(0, 0)
	if !anim.Start(start) {
		return n, nil
	}

	simStep := time.Second / time.Duration(opts.SimRate)
	outStep := time.Second / time.Duration(opts.FPS)
	next := outStep
	for t := simStep; ; t += simStep {
		running := anim.Frame(start.Add(t))
		if t >= next || !running {
			if err := capture(); err != nil {
				return n, err
			}
			for next <= t {
				next += outStep
			}
		}
		if !running {
			return n, nil
		}
	}
}

func renderScene(sc *engine.Scene, width, height int, scale float64, background string) *image.RGBA {
	surface := engine.NewRasterSurface(width, height, scale)
	engine.RenderScene(surface, float64(width), float64(height), sc.Elements(), nil)
	img := surface.Image()
	if background == "" {
		return img
	}

	out := image.NewRGBA(img.Bounds())
	draw.Draw(out, out.Bounds(), image.NewUniform(engine.ParseColor(background)), image.Point{}, draw.Src)
	draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Over)
	return out
}
