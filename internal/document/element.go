package document

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/inamate/rectscene/internal/typeid"
)

// MinElementSize is the smallest width or height NewElement produces, in pixels.
const MinElementSize = 20

// Element is a single rectangle on the canvas.
//
// X and Y locate the top-left corner of the unrotated rectangle. Rotation is in
// radians and is applied about the center (X+Width/2, Y+Height/2). It is not
// normalized and accumulates freely while animating.
type Element struct {
	ID       string  `json:"id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Color    string  `json:"color"`
	Rotation float64 `json:"rotation"`
}

// NewElement creates a randomly sized, placed, rotated and colored rectangle that
// fits inside a canvasWidth x canvasHeight canvas before rotation.
// A nil rng uses the global source.
func NewElement(rng *rand.Rand, canvasWidth, canvasHeight float64) Element {
	width := randomInt(rng, MinElementSize, max(MinElementSize, floorInt(canvasWidth/2)))
	height := randomInt(rng, MinElementSize, max(MinElementSize, floorInt(canvasHeight/2)))
	x := randomInt(rng, 0, max(0, floorInt(canvasWidth-float64(width))))
	y := randomInt(rng, 0, max(0, floorInt(canvasHeight-float64(height))))
	degrees := randomFloat(rng)*360 - 180

	return Element{
		ID:       typeid.NewElementID(),
		X:        float64(x),
		Y:        float64(y),
		Width:    float64(width),
		Height:   float64(height),
		Color:    RandomColor(rng),
		Rotation: degrees * math.Pi / 180,
	}
}

// RandomColor returns a uniformly random "#rrggbb" color.
func RandomColor(rng *rand.Rand) string {
	return fmt.Sprintf("#%06x", randomInt(rng, 0, 0xffffff))
}

// randomInt returns a uniform integer in [lo, hi]. An inverted range yields lo.
func randomInt(rng *rand.Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	n := hi - lo + 1
	if rng == nil {
		return lo + rand.IntN(n)
	}
	return lo + rng.IntN(n)
}

func randomFloat(rng *rand.Rand) float64 {
	if rng == nil {
		return rand.Float64()
	}
	return rng.Float64()
}

// floorInt floors v, mapping NaN and negative infinity to 0 so range math stays sane.
func floorInt(v float64) int {
	if math.IsNaN(v) || math.IsInf(v, -1) {
		return 0
	}
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(math.Floor(v))
}
