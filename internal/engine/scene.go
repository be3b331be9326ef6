package engine

import (
	"math/rand/v2"
	"slices"
	"time"

	"github.com/inamate/rectscene/internal/document"
)

// ChangeKind identifies what a Scene mutation touched.
type ChangeKind int

const (
	ChangeAdded ChangeKind = iota
	ChangeRecolored
	ChangeHover
	ChangeRotated
	ChangeCleared
	ChangeLoaded
	ChangeDuration
	ChangeResized
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeAdded:
		return "added"
	case ChangeRecolored:
		return "recolored"
	case ChangeHover:
		return "hover"
	case ChangeRotated:
		return "rotated"
	case ChangeCleared:
		return "cleared"
	case ChangeLoaded:
		return "loaded"
	case ChangeDuration:
		return "duration"
	case ChangeResized:
		return "resized"
	default:
		return "unknown"
	}
}

// Persistent reports whether the change alters saved scene data. Hover is
// view state and is never saved.
func (k ChangeKind) Persistent() bool {
	return k != ChangeHover
}

// PerFrame reports whether the change repeats on every animation frame.
// Hosts that save on change can skip these and save when the animation ends.
func (k ChangeKind) PerFrame() bool {
	return k == ChangeRotated
}

// Change is delivered to listeners after a state-changing operation.
// ElementID is set for single-element changes.
type Change struct {
	Kind      ChangeKind
	ElementID string
}

type listener struct {
	id uint32
	fn func(Change)
}

// ListenerHandle allows removing a registered listener.
type ListenerHandle struct {
	id    uint32
	scene *Scene
}

// Remove unregisters the listener. Removing twice is a no-op.
func (h ListenerHandle) Remove() {
	if h.scene == nil {
		return
	}
	ls := h.scene.listeners
	for i := range ls {
		if ls[i].id == h.id {
			copy(ls[i:], ls[i+1:])
			ls[len(ls)-1] = listener{}
			h.scene.listeners = ls[:len(ls)-1]
			return
		}
	}
}

// Scene owns the ordered element list and the hovered element. The hovered
// element is tracked by ID and is always a member of the list.
//
// A Scene is not safe for concurrent use; hosts with several goroutines must
// serialize calls.
type Scene struct {
	elements  []document.Element
	hoveredID string

	width, height float64
	duration      time.Duration

	surface   Surface
	rng       *rand.Rand
	listeners []listener
	nextID    uint32
}

// NewScene creates an empty scene for a width x height canvas.
func NewScene(width, height float64) *Scene {
	return &Scene{
		elements: []document.Element{},
		width:    width,
		height:   height,
		duration: document.DefaultDurationMs * time.Millisecond,
	}
}

// SetSurface sets where redraws go. A nil surface disables drawing.
func (s *Scene) SetSurface(surface Surface) {
	s.surface = surface
}

// SetRand sets the random source used for new elements and colors.
func (s *Scene) SetRand(rng *rand.Rand) {
	s.rng = rng
}

// Subscribe registers fn to be called after every state change.
func (s *Scene) Subscribe(fn func(Change)) ListenerHandle {
	s.nextID++
	s.listeners = append(s.listeners, listener{id: s.nextID, fn: fn})
	return ListenerHandle{id: s.nextID, scene: s}
}

// Elements returns a copy of the elements in paint order.
func (s *Scene) Elements() []document.Element {
	out := make([]document.Element, len(s.elements))
	copy(out, s.elements)
	return out
}

// Len returns the number of elements.
func (s *Scene) Len() int {
	return len(s.elements)
}

// Element looks up an element by ID.
func (s *Scene) Element(id string) (document.Element, bool) {
	if i := s.indexOf(id); i >= 0 {
		return s.elements[i], true
	}
	return document.Element{}, false
}

// Hovered returns the hovered element, if any.
func (s *Scene) Hovered() (document.Element, bool) {
	if s.hoveredID == "" {
		return document.Element{}, false
	}
	return s.Element(s.hoveredID)
}

// HoveredID returns the hovered element's ID, or "" when nothing is hovered.
func (s *Scene) HoveredID() string {
	return s.hoveredID
}

// Size returns the canvas size.
func (s *Scene) Size() (float64, float64) {
	return s.width, s.height
}

// Duration returns the rotation animation length.
func (s *Scene) Duration() time.Duration {
	return s.duration
}

// SetDuration sets the animation length, raising it to the one second minimum.
func (s *Scene) SetDuration(d time.Duration) {
	d = max(d, document.MinDurationMs*time.Millisecond)
	if d == s.duration {
		return
	}
	s.duration = d
	s.notify(Change{Kind: ChangeDuration})
}

// AddElement appends a random element sized for the given canvas and redraws.
func (s *Scene) AddElement(canvasWidth, canvasHeight float64) document.Element {
	el := document.NewElement(s.rng, canvasWidth, canvasHeight)
	s.elements = append(s.elements, el)
	s.Redraw()
	s.notify(Change{Kind: ChangeAdded, ElementID: el.ID})
	return el
}

// RecolorAt gives the top-most element under (px, py) a new random color.
// It reports whether an element was hit.
func (s *Scene) RecolorAt(px, py float64) bool {
	i, ok := HitTest(s.elements, px, py)
	if !ok {
		return false
	}
	s.elements[i].Color = document.RandomColor(s.rng)
	s.Redraw()
	s.notify(Change{Kind: ChangeRecolored, ElementID: s.elements[i].ID})
	return true
}

// SetHover hovers the top-most element under (px, py), or clears hover when
// nothing is hit. It reports whether the hovered element changed; unchanged
// hover does not redraw.
func (s *Scene) SetHover(px, py float64) bool {
	id := ""
	if i, ok := HitTest(s.elements, px, py); ok {
		id = s.elements[i].ID
	}
	if id == s.hoveredID {
		return false
	}
	s.hoveredID = id
	s.Redraw()
	s.notify(Change{Kind: ChangeHover, ElementID: id})
	return true
}

// ClearHover clears the hovered element, redrawing only if one was set.
func (s *Scene) ClearHover() bool {
	if s.hoveredID == "" {
		return false
	}
	s.hoveredID = ""
	s.Redraw()
	s.notify(Change{Kind: ChangeHover})
	return true
}

// Tick advances every element's rotation by CurrentSpeed and redraws. It
// reports whether the animation is complete.
func (s *Scene) Tick(elapsed, total time.Duration, baseSpeed float64) bool {
	speed := CurrentSpeed(elapsed, total, baseSpeed)
	for i := range s.elements {
		s.elements[i].Rotation += speed
	}
	s.Redraw()
	s.notify(Change{Kind: ChangeRotated})
	return elapsed >= total
}

// Clear removes all elements and the hover together.
func (s *Scene) Clear() {
	s.elements = []document.Element{}
	s.hoveredID = ""
	s.Redraw()
	s.notify(Change{Kind: ChangeCleared})
}

// Load replaces the elements and duration with data. A nil data or element
// list loads an empty scene; a non-positive duration loads the default and a
// short one is raised to the minimum.
func (s *Scene) Load(data *document.SceneData) {
	elements := []document.Element{}
	duration := document.DefaultDurationMs * time.Millisecond
	if data != nil {
		elements = append(elements, data.Elements...)
		duration = max(data.AnimationDuration(), document.MinDurationMs*time.Millisecond)
	}

	s.elements = elements
	s.duration = duration
	s.hoveredID = ""
	s.Redraw()
	s.notify(Change{Kind: ChangeLoaded})
}

// Snapshot returns the scene in its serialized shape.
func (s *Scene) Snapshot() *document.SceneData {
	return &document.SceneData{
		Elements: s.Elements(),
		Duration: float64(s.duration) / float64(time.Millisecond),
	}
}

// Resize changes the canvas size and moves elements so their rotated bounding
// boxes stay on the canvas. Non-positive sizes are ignored.
func (s *Scene) Resize(width, height float64) {
	if !(width > 0) || !(height > 0) {
		return
	}
	s.width, s.height = width, height
	for i := range s.elements {
		el := &s.elements[i]
		bw, bh := RotatedBoundingBox(el.Rotation, el.Width, el.Height)
		cx, cy := ClampCenter(el.X, el.Y, el.Width, el.Height, bw, bh, width, height)
		el.X = cx - el.Width/2
		el.Y = cy - el.Height/2
	}
	s.Redraw()
	s.notify(Change{Kind: ChangeResized})
}

// Redraw renders the whole scene to the surface.
func (s *Scene) Redraw() {
	if s.surface == nil {
		return
	}
	var hovered *document.Element
	if i := s.indexOf(s.hoveredID); i >= 0 {
		hovered = &s.elements[i]
	}
	RenderScene(s.surface, s.width, s.height, s.elements, hovered)
}

func (s *Scene) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i := range s.elements {
		if s.elements[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Scene) notify(c Change) {
	for _, l := range slices.Clone(s.listeners) {
		l.fn(c)
	}
}
