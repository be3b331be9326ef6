package engine

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/inamate/rectscene/internal/document"
)

func newTestScene(elements ...document.Element) (*Scene, *Recorder) {
	s := NewScene(400, 300)
	s.SetRand(rand.New(rand.NewPCG(1, 2)))
	rec := NewRecorder()
	s.SetSurface(rec)
	if len(elements) > 0 {
		s.Load(&document.SceneData{Elements: elements, Duration: 1000})
	}
	return s, rec
}

func TestSceneAddElement(t *testing.T) {
	s, rec := newTestScene()
	var changes []Change
	s.Subscribe(func(c Change) { changes = append(changes, c) })

	el := s.AddElement(400, 300)
	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1", s.Len())
	}
	if got, ok := s.Element(el.ID); !ok || got != el {
		t.Errorf("Element(%q) = %+v, %v", el.ID, got, ok)
	}
	if rec.Frames() != 1 {
		t.Errorf("Frames = %d, want 1", rec.Frames())
	}
	if len(changes) != 1 || changes[0].Kind != ChangeAdded || changes[0].ElementID != el.ID {
		t.Errorf("changes = %+v", changes)
	}
}

func TestSceneRecolorAt(t *testing.T) {
	s, _ := newTestScene(
		document.Element{ID: "bottom", X: 0, Y: 0, Width: 100, Height: 100, Color: "#000000"},
		document.Element{ID: "top", X: 50, Y: 50, Width: 100, Height: 100, Color: "#000000"},
	)

	if !s.RecolorAt(75, 75) {
		t.Fatal("RecolorAt on overlap should hit")
	}
	top, _ := s.Element("top")
	bottom, _ := s.Element("bottom")
	if top.Color == "#000000" {
		t.Error("top element should be recolored")
	}
	if bottom.Color != "#000000" {
		t.Error("bottom element should keep its color")
	}

	if s.RecolorAt(390, 290) {
		t.Error("RecolorAt on empty canvas should miss")
	}
}

func TestSceneHoverRedrawsOnlyOnChange(t *testing.T) {
	s, rec := newTestScene(document.Element{ID: "a", X: 0, Y: 0, Width: 50, Height: 50, Color: "#123456"})
	base := rec.Frames()

	if !s.SetHover(10, 10) {
		t.Fatal("first hover should change")
	}
	if s.SetHover(30, 30) {
		t.Error("hovering the same element again should not change")
	}
	if got := rec.Frames() - base; got != 1 {
		t.Errorf("redraws = %d, want 1", got)
	}
	if s.HoveredID() != "a" {
		t.Errorf("HoveredID = %q, want a", s.HoveredID())
	}

	if !s.SetHover(200, 200) {
		t.Error("moving off the element should clear hover")
	}
	if s.HoveredID() != "" {
		t.Errorf("HoveredID = %q, want empty", s.HoveredID())
	}
	if s.SetHover(210, 210) {
		t.Error("staying off every element should not change")
	}
	if s.ClearHover() {
		t.Error("ClearHover with nothing hovered should not change")
	}
	if got := rec.Frames() - base; got != 2 {
		t.Errorf("redraws = %d, want 2", got)
	}
}

func TestSceneHoverDrawsBorderOnTop(t *testing.T) {
	s, rec := newTestScene(
		document.Element{ID: "a", X: 0, Y: 0, Width: 50, Height: 50, Color: "#111111"},
		document.Element{ID: "b", X: 100, Y: 0, Width: 50, Height: 50, Color: "#222222"},
	)
	s.SetHover(10, 10)
	cmds := rec.Commands()
	if cmds[len(cmds)-2].Op != OpStrokeRect {
		t.Errorf("second-to-last op = %s, want strokeRect", cmds[len(cmds)-2].Op)
	}
}

func TestSceneClear(t *testing.T) {
	s, _ := newTestScene(document.Element{ID: "a", Width: 50, Height: 50})
	s.SetHover(10, 10)
	s.Clear()
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0", s.Len())
	}
	if _, ok := s.Hovered(); ok {
		t.Error("Clear should drop hover")
	}
}

func TestSceneLoad(t *testing.T) {
	s, _ := newTestScene(document.Element{ID: "a", Width: 50, Height: 50})
	s.SetHover(10, 10)

	s.Load(&document.SceneData{
		Elements: []document.Element{{ID: "x", Width: 20, Height: 20}},
		Duration: 2500,
	})
	if s.Len() != 1 || s.Elements()[0].ID != "x" {
		t.Errorf("elements = %+v", s.Elements())
	}
	if s.Duration() != 2500*time.Millisecond {
		t.Errorf("Duration = %v, want 2.5s", s.Duration())
	}
	if s.HoveredID() != "" {
		t.Error("Load should drop hover")
	}

	s.Load(nil)
	if s.Len() != 0 || s.Duration() != time.Second {
		t.Errorf("Load(nil): Len = %d, Duration = %v", s.Len(), s.Duration())
	}
}

func TestSceneSnapshotIsCopy(t *testing.T) {
	s, _ := newTestScene(document.Element{ID: "a", Width: 50, Height: 50, Color: "#000000"})
	snap := s.Snapshot()
	snap.Elements[0].Color = "#ffffff"
	if el, _ := s.Element("a"); el.Color != "#000000" {
		t.Error("mutating a snapshot changed the scene")
	}
	if snap.Duration != 1000 {
		t.Errorf("Duration = %v, want 1000", snap.Duration)
	}
}

func TestSceneSetDuration(t *testing.T) {
	s, _ := newTestScene()
	calls := 0
	s.Subscribe(func(c Change) {
		if c.Kind == ChangeDuration {
			calls++
		}
	})

	s.SetDuration(200 * time.Millisecond)
	if s.Duration() != time.Second {
		t.Errorf("Duration = %v, want minimum 1s", s.Duration())
	}
	if calls != 0 {
		t.Errorf("clamped to unchanged value: calls = %d, want 0", calls)
	}
	s.SetDuration(4 * time.Second)
	if s.Duration() != 4*time.Second || calls != 1 {
		t.Errorf("Duration = %v, calls = %d", s.Duration(), calls)
	}
}

func TestSceneResizeKeepsElementsOnCanvas(t *testing.T) {
	s, _ := newTestScene(
		document.Element{ID: "a", X: 350, Y: 250, Width: 40, Height: 40},
		document.Element{ID: "b", X: 10, Y: 10, Width: 300, Height: 20, Rotation: math.Pi / 2},
	)
	s.Resize(200, 150)

	if w, h := s.Size(); w != 200 || h != 150 {
		t.Fatalf("Size = %v x %v", w, h)
	}
	a, _ := s.Element("a")
	if a.X != 160 || a.Y != 110 {
		t.Errorf("a = (%v, %v), want (160, 110)", a.X, a.Y)
	}
	// b's rotated box is 20 x 300, taller than the canvas: pinned to the
	// vertical midpoint.
	b, _ := s.Element("b")
	cx, cy := Center(b)
	if math.Abs(cy-75) > 1e-9 {
		t.Errorf("b center y = %v, want 75", cy)
	}
	if math.Abs(cx-160) > 1e-9 {
		t.Errorf("b center x = %v, want 160", cx)
	}

	s.Resize(0, 100)
	if w, _ := s.Size(); w != 200 {
		t.Error("non-positive resize should be ignored")
	}
}

func TestSceneListenerRemove(t *testing.T) {
	s, _ := newTestScene()
	calls := 0
	h := s.Subscribe(func(Change) { calls++ })
	s.AddElement(400, 300)
	h.Remove()
	h.Remove()
	s.AddElement(400, 300)
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestChangeKindPersistent(t *testing.T) {
	if ChangeHover.Persistent() {
		t.Error("hover should not be persistent")
	}
	for _, k := range []ChangeKind{ChangeAdded, ChangeRecolored, ChangeRotated, ChangeCleared, ChangeLoaded, ChangeDuration, ChangeResized} {
		if !k.Persistent() {
			t.Errorf("%s should be persistent", k)
		}
	}
}

func TestAnimationFramesAreOnlyPerFrameChanges(t *testing.T) {
	s, _ := newTestScene(document.Element{ID: "a", X: 10, Y: 10, Width: 40, Height: 40, Color: "#123456"})
	a := NewAnimator(s, 0)

	saves := 0
	s.Subscribe(func(c Change) {
		if c.Kind.Persistent() && !c.Kind.PerFrame() {
			saves++
		}
	})
	a.OnComplete(func() { saves++ })

	start := time.Unix(0, 0)
	a.Start(start)
	for ms := 16; ms <= 1000; ms += 16 {
		a.Frame(start.Add(time.Duration(ms) * time.Millisecond))
	}
	a.Frame(start.Add(time.Second))
	if saves != 1 {
		t.Errorf("saves = %d, want one at completion", saves)
	}
	if ChangeRecolored.PerFrame() || !ChangeRotated.PerFrame() {
		t.Error("only rotation should be a per-frame change")
	}
}
