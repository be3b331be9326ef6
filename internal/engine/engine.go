package engine

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/inamate/rectscene/internal/document"
)

// Engine bundles a scene, its animator and a draw command recorder behind a
// string-in/string-out API for the browser bridge and the realtime rooms.
type Engine struct {
	scene    *Scene
	animator *Animator
	recorder *Recorder
	// rendered is the recorder frame last handed out by Render or Tick.
	rendered int
}

// NewEngine creates an engine with an empty width x height scene. A
// non-positive speed uses DefaultRotationSpeed.
func NewEngine(width, height, speed float64) *Engine {
	scene := NewScene(width, height)
	recorder := NewRecorder()
	scene.SetSurface(recorder)
	return &Engine{
		scene:    scene,
		animator: NewAnimator(scene, speed),
		recorder: recorder,
	}
}

// Scene returns the engine's scene.
func (e *Engine) Scene() *Scene { return e.scene }

// Animator returns the engine's animator.
func (e *Engine) Animator() *Animator { return e.animator }

// --- Commands ---

// LoadDocument replaces the scene with validated scene JSON. Invalid input
// leaves the scene untouched. A running animation is cancelled first.
func (e *Engine) LoadDocument(jsonData string) error {
	data, err := document.Decode([]byte(jsonData))
	if err != nil {
		return err
	}
	e.Load(data)
	return nil
}

// Load replaces the scene with already validated data.
func (e *Engine) Load(data *document.SceneData) {
	e.animator.Cancel()
	e.scene.Load(data)
}

// AddElement adds a random element sized for the current canvas.
func (e *Engine) AddElement() document.Element {
	w, h := e.scene.Size()
	return e.scene.AddElement(w, h)
}

// RecolorAt recolors the element under the pointer.
func (e *Engine) RecolorAt(x, y float64) bool { return e.scene.RecolorAt(x, y) }

// SetHover updates the hovered element from a pointer position.
func (e *Engine) SetHover(x, y float64) bool { return e.scene.SetHover(x, y) }

// ClearHover clears the hovered element.
func (e *Engine) ClearHover() bool { return e.scene.ClearHover() }

// Clear cancels any animation and empties the scene.
func (e *Engine) Clear() {
	e.animator.Cancel()
	e.scene.Clear()
}

// Resize changes the canvas size.
func (e *Engine) Resize(width, height float64) { e.scene.Resize(width, height) }

// SetDuration sets the animation length in milliseconds.
func (e *Engine) SetDuration(ms float64) {
	e.scene.SetDuration(document.DurationFromMs(ms))
}

// Play starts the rotation animation at now. It returns false if one is
// already running or the scene is empty.
func (e *Engine) Play(now time.Time) bool { return e.animator.Start(now) }

// Cancel stops the rotation animation.
func (e *Engine) Cancel() bool { return e.animator.Cancel() }

// Tick advances a running animation to now and returns the draw commands of
// any frame drawn since the last Render or Tick, or "" when nothing was
// redrawn. This is called once per animation frame by the host.
func (e *Engine) Tick(now time.Time) string {
	e.animator.Frame(now)
	if e.recorder.Frames() == e.rendered {
		return ""
	}
	e.rendered = e.recorder.Frames()
	result, _ := DrawCommandsToJSON(e.recorder.Commands())
	return result
}

// --- Queries ---

// Render redraws the scene and returns the draw commands as JSON.
func (e *Engine) Render() string {
	e.scene.Redraw()
	e.rendered = e.recorder.Frames()
	result, _ := DrawCommandsToJSON(e.recorder.Commands())
	return result
}

// DrawCommands redraws the scene and returns the draw commands.
func (e *Engine) DrawCommands() []DrawCommand {
	e.scene.Redraw()
	return e.recorder.Commands()
}

// HitTest returns the ID of the top-most element at (x, y), or "".
func (e *Engine) HitTest(x, y float64) string {
	els := e.scene.elements
	if i, ok := HitTest(els, x, y); ok {
		return els[i].ID
	}
	return ""
}

// GetDocument returns the scene as {elements, duration} JSON.
func (e *Engine) GetDocument() string {
	data, err := document.Encode(e.scene.Snapshot())
	if err != nil {
		return "{}"
	}
	return string(data)
}

// PlaybackState is the animation status reported to hosts.
type PlaybackState struct {
	State     string  `json:"state"`
	Playing   bool    `json:"playing"`
	ElapsedMs float64 `json:"elapsedMs"`
	Duration  float64 `json:"duration"`
	Elements  int     `json:"elements"`
	HoveredID string  `json:"hoveredId,omitempty"`
}

// GetPlaybackState returns the playback state at now.
func (e *Engine) GetPlaybackState(now time.Time) PlaybackState {
	return PlaybackState{
		State:     e.animator.State().String(),
		Playing:   e.animator.Running(),
		ElapsedMs: float64(e.animator.Elapsed(now)) / float64(time.Millisecond),
		Duration:  float64(e.scene.Duration()) / float64(time.Millisecond),
		Elements:  e.scene.Len(),
		HoveredID: e.scene.HoveredID(),
	}
}

// GetPlaybackStateJSON returns GetPlaybackState as JSON.
func (e *Engine) GetPlaybackStateJSON(now time.Time) string {
	data, err := json.Marshal(e.GetPlaybackState(now))
	if err != nil {
		return fmt.Sprintf(`{"error":%q}`, err.Error())
	}
	return string(data)
}

// GetSelectionBounds returns the hovered element's canvas bounds as JSON, or
// an empty rect when nothing is hovered.
func (e *Engine) GetSelectionBounds() string {
	var r Rect
	if el, ok := e.scene.Hovered(); ok {
		r = Bounds(el)
	}
	data, _ := json.Marshal(r)
	return string(data)
}
