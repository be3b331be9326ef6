package document

import (
	"math"

	"github.com/inamate/rectscene/internal/typeid"
)

// NewSampleScene returns a small fixed scene used for playground sessions and
// the desktop shell's first launch.
func NewSampleScene() *SceneData {
	return &SceneData{
		Elements: []Element{
			{
				ID:       typeid.NewElementID(),
				X:        120,
				Y:        90,
				Width:    220,
				Height:   140,
				Color:    "#4a90d9",
				Rotation: 0,
			},
			{
				ID:       typeid.NewElementID(),
				X:        300,
				Y:        160,
				Width:    160,
				Height:   160,
				Color:    "#e74c3c",
				Rotation: math.Pi / 6,
			},
			{
				ID:       typeid.NewElementID(),
				X:        520,
				Y:        120,
				Width:    90,
				Height:   260,
				Color:    "#2ecc71",
				Rotation: -math.Pi / 4,
			},
		},
		Duration: 3000,
	}
}
