package collab

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/inamate/rectscene/internal/document"
)

func msg(t *testing.T, msgType string, payload any) *Message {
	t.Helper()
	m := &Message{Type: msgType}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatal(err)
		}
		m.Payload = data
	}
	return m
}

func newState(t *testing.T) (*SceneState, *int) {
	t.Helper()
	persisted := 0
	data := &document.SceneData{
		Elements: []document.Element{{ID: "a", X: 0, Y: 0, Width: 50, Height: 50, Color: "#111111"}},
		Duration: 1000,
	}
	return NewSceneState(data, 400, 300, 0, func() { persisted++ }), &persisted
}

func decodeDoc(t *testing.T, m *Message) DocSyncPayload {
	t.Helper()
	if m == nil || m.Type != TypeDocSync {
		t.Fatalf("message = %+v, want doc.sync", m)
	}
	var p DocSyncPayload
	if err := json.Unmarshal(m.Payload, &p); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestApplyElementAdd(t *testing.T) {
	s, persisted := newState(t)
	out, err := s.Apply(msg(t, TypeElementAdd, nil), true, time.Now())
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out.Frame == nil || out.Frame.Type != TypeFrame {
		t.Errorf("Frame = %+v", out.Frame)
	}
	doc := decodeDoc(t, out.Doc)
	if len(doc.Elements) != 2 || doc.Version != 1 {
		t.Errorf("doc = %d elements v%d, want 2 elements v1", len(doc.Elements), doc.Version)
	}
	if *persisted != 1 {
		t.Errorf("persisted = %d, want 1", *persisted)
	}
}

func TestApplyViewerIsReadOnly(t *testing.T) {
	s, persisted := newState(t)
	for _, m := range []*Message{
		msg(t, TypeElementAdd, nil),
		msg(t, TypePointerDown, PointerPayload{X: 10, Y: 10}),
		msg(t, TypeSceneClear, nil),
		msg(t, TypeAnimationPlay, nil),
	} {
		if _, err := s.Apply(m, false, time.Now()); !errors.Is(err, ErrReadOnly) {
			t.Errorf("%s: err = %v, want ErrReadOnly", m.Type, err)
		}
	}
	if *persisted != 0 {
		t.Errorf("persisted = %d, want 0", *persisted)
	}

	out, err := s.Apply(msg(t, TypePointerMove, PointerPayload{X: 10, Y: 10}), false, time.Now())
	if err != nil || out.Frame == nil {
		t.Errorf("viewer hover: out = %+v, err = %v", out, err)
	}
}

func TestApplyHoverOnlyFramesOnChange(t *testing.T) {
	s, persisted := newState(t)
	now := time.Now()

	out, _ := s.Apply(msg(t, TypePointerMove, PointerPayload{X: 10, Y: 10}), true, now)
	if out.Frame == nil {
		t.Fatal("first hover should produce a frame")
	}
	first := out.Frame.Seq

	out, _ = s.Apply(msg(t, TypePointerMove, PointerPayload{X: 20, Y: 20}), true, now)
	if out.Frame != nil {
		t.Error("same hovered element should not produce a frame")
	}

	out, _ = s.Apply(msg(t, TypePointerLeave, nil), true, now)
	if out.Frame == nil || out.Frame.Seq <= first {
		t.Errorf("leave frame = %+v, want a newer frame", out.Frame)
	}
	if out.Doc != nil || *persisted != 0 {
		t.Error("hover must not touch the saved scene")
	}
}

func TestApplyRecolor(t *testing.T) {
	s, _ := newState(t)
	out, err := s.Apply(msg(t, TypePointerDown, PointerPayload{X: 25, Y: 25}), true, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	doc := decodeDoc(t, out.Doc)
	if doc.Elements[0].Color == "#111111" {
		t.Error("element should be recolored")
	}

	out, _ = s.Apply(msg(t, TypePointerDown, PointerPayload{X: 300, Y: 200}), true, time.Now())
	if out.Frame != nil || out.Doc != nil {
		t.Error("a miss should change nothing")
	}
}

func TestApplyInvalid(t *testing.T) {
	s, _ := newState(t)
	cases := []*Message{
		{Type: TypePointerMove},
		{Type: TypeSceneDuration, Payload: json.RawMessage(`"long"`)},
		msg(t, TypeSceneResize, ResizePayload{Width: 0, Height: 100}),
	}
	for _, m := range cases {
		if _, err := s.Apply(m, true, time.Now()); !errors.Is(err, ErrInvalidPayload) {
			t.Errorf("%s: err = %v, want ErrInvalidPayload", m.Type, err)
		}
	}
	if _, err := s.Apply(&Message{Type: "scene.explode"}, true, time.Now()); !errors.Is(err, ErrUnknownType) {
		t.Errorf("unknown type err = %v", err)
	}
}

func TestApplyDurationAndResize(t *testing.T) {
	s, _ := newState(t)
	out, err := s.Apply(msg(t, TypeSceneDuration, DurationPayload{Duration: 500}), true, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if doc := decodeDoc(t, out.Doc); doc.Duration != 1000 {
		t.Errorf("duration = %v, want the 1000ms minimum", doc.Duration)
	}

	if _, err := s.Apply(msg(t, TypeSceneResize, ResizePayload{Width: 30, Height: 30}), true, time.Now()); err != nil {
		t.Fatal(err)
	}
	if w, h := s.Size(); w != 30 || h != 30 {
		t.Errorf("Size = %v x %v", w, h)
	}
}

func TestAnimationLifecycle(t *testing.T) {
	s, persisted := newState(t)
	start := time.Unix(1000, 0)

	out, err := s.Apply(msg(t, TypeAnimationPlay, nil), true, start)
	if err != nil || !out.Started {
		t.Fatalf("play: out = %+v, err = %v", out, err)
	}
	driver := out.Driver
	out, _ = s.Apply(msg(t, TypeAnimationPlay, nil), true, start)
	if out.Started {
		t.Error("second play should not start another animation")
	}

	out, running := s.Frame(start.Add(16*time.Millisecond), driver)
	if !running || out.Frame == nil || out.Doc != nil {
		t.Fatalf("mid frame: running = %v, out = %+v", running, out)
	}

	out, running = s.Frame(start.Add(time.Second), driver)
	if running {
		t.Fatal("animation should finish at its duration")
	}
	if out.Doc == nil || out.Animation == nil {
		t.Errorf("final frame should carry doc and animation state: %+v", out)
	}
	if *persisted < 2 {
		t.Errorf("persisted = %d, want saves for rotation and completion", *persisted)
	}

	if _, running = s.Frame(start.Add(2*time.Second), driver); running {
		t.Error("idle state should not run frames")
	}
}

func TestAnimationCancel(t *testing.T) {
	s, _ := newState(t)
	start := time.Unix(1000, 0)
	play, _ := s.Apply(msg(t, TypeAnimationPlay, nil), true, start)
	s.Frame(start.Add(16*time.Millisecond), play.Driver)

	out, err := s.Apply(msg(t, TypeAnimationCancel, nil), true, start.Add(20*time.Millisecond))
	if err != nil || !out.Stopped {
		t.Fatalf("cancel: out = %+v, err = %v", out, err)
	}
	doc := decodeDoc(t, out.Doc)
	if doc.Elements[0].Rotation == 0 {
		t.Error("cancel should keep the rotation reached so far")
	}
}

func TestPlayAfterCompletionGetsNewDriver(t *testing.T) {
	s, _ := newState(t)
	start := time.Unix(1000, 0)

	first, _ := s.Apply(msg(t, TypeAnimationPlay, nil), true, start)
	if _, running := s.Frame(start.Add(time.Second), first.Driver); running {
		t.Fatal("first animation should have completed")
	}

	// The old driver may still be winding down when the next play arrives.
	next := start.Add(time.Second + time.Millisecond)
	second, err := s.Apply(msg(t, TypeAnimationPlay, nil), true, next)
	if err != nil || !second.Started {
		t.Fatalf("play after completion: out = %+v, err = %v", second, err)
	}
	if second.Driver == first.Driver {
		t.Fatal("a new animation should get a new driver")
	}
	if _, running := s.Frame(next.Add(16*time.Millisecond), first.Driver); running {
		t.Error("stale driver should not advance the new animation")
	}
	out, running := s.Frame(next.Add(16*time.Millisecond), second.Driver)
	if !running || out.Frame == nil {
		t.Errorf("new driver: running = %v, out = %+v", running, out)
	}
}

func TestCancelThenPlayRetiresOldDriver(t *testing.T) {
	s, _ := newState(t)
	start := time.Unix(1000, 0)

	first, _ := s.Apply(msg(t, TypeAnimationPlay, nil), true, start)
	s.Apply(msg(t, TypeAnimationCancel, nil), true, start.Add(5*time.Millisecond))
	second, _ := s.Apply(msg(t, TypeAnimationPlay, nil), true, start.Add(10*time.Millisecond))
	if !second.Started {
		t.Fatal("play after cancel should start")
	}
	if _, running := s.Frame(start.Add(20*time.Millisecond), first.Driver); running {
		t.Error("cancelled animation's driver should stop")
	}
	if _, running := s.Frame(start.Add(20*time.Millisecond), second.Driver); !running {
		t.Error("current driver should keep running")
	}
}

func TestLoadStopsAnimation(t *testing.T) {
	s, _ := newState(t)
	start := time.Unix(1000, 0)
	s.Apply(msg(t, TypeAnimationPlay, nil), true, start)

	out := s.Load(document.NewEmptyScene(), start)
	if !out.Stopped {
		t.Error("Load should stop a running animation")
	}
	if doc := decodeDoc(t, out.Doc); len(doc.Elements) != 0 {
		t.Errorf("elements = %d, want 0", len(doc.Elements))
	}
}

func TestSync(t *testing.T) {
	s, _ := newState(t)
	msgs := s.Sync(time.Now())
	want := []string{TypeDocSync, TypeFrame, TypeAnimationState}
	if len(msgs) != len(want) {
		t.Fatalf("got %d messages", len(msgs))
	}
	for i, m := range msgs {
		if m.Type != want[i] {
			t.Errorf("message %d = %s, want %s", i, m.Type, want[i])
		}
	}
}

func TestPresenceManager(t *testing.T) {
	pm := NewPresenceManager()
	if pm.StateMessage() != nil {
		t.Error("empty presence should produce no state message")
	}
	cursor := &CursorPos{X: 1, Y: 2}
	pm.Update("u1", &PresencePayload{Cursor: cursor})
	cursor.X = 99
	if got := pm.GetAll()["u1"].Cursor.X; got != 1 {
		t.Errorf("stored cursor X = %v, want 1", got)
	}
	if m := pm.StateMessage(); m == nil || m.Type != TypePresenceState {
		t.Errorf("StateMessage = %+v", m)
	}
	pm.Remove("u1")
	if pm.Len() != 0 {
		t.Errorf("Len = %d, want 0", pm.Len())
	}
}
