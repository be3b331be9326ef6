package collab

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/inamate/rectscene/internal/document"
	"github.com/inamate/rectscene/internal/engine"
)

var (
	ErrReadOnly       = errors.New("read-only session")
	ErrUnknownType    = errors.New("unknown message type")
	ErrInvalidPayload = errors.New("invalid payload")
)

// Outcome lists what a room must broadcast after applying a message. Nil
// fields mean nothing changed.
type Outcome struct {
	Frame     *Message
	Doc       *Message
	Animation *Message
	// Started is set when an animation began and needs a frame driver.
	// Driver identifies that animation; Frame only advances it for the
	// matching driver.
	Started bool
	Driver  int64
	// Stopped is set when a running animation was cancelled.
	Stopped bool
}

// SceneState holds the authoritative scene for a room. All access to the
// engine goes through its mutex.
type SceneState struct {
	mu       sync.Mutex
	engine   *engine.Engine
	seq      int64
	version  int64
	driver   int64
	finished bool
}

// NewSceneState loads data into a fresh engine. onPersist is called, with
// the state locked, after every change that alters saved scene data and
// when an animation completes.
func NewSceneState(data *document.SceneData, width, height, speed float64, onPersist func()) *SceneState {
	s := &SceneState{engine: engine.NewEngine(width, height, speed)}
	s.engine.Load(data)
	s.engine.Scene().Subscribe(func(c engine.Change) {
		if c.Kind.Persistent() && onPersist != nil {
			onPersist()
		}
	})
	s.engine.Animator().OnComplete(func() {
		s.finished = true
		if onPersist != nil {
			onPersist()
		}
	})
	return s
}

// Apply runs one client message against the scene. Viewers may only move
// the pointer.
func (s *SceneState) Apply(msg *Message, editable bool, now time.Time) (*Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !editable && msg.Type != TypePointerMove && msg.Type != TypePointerLeave {
		return nil, ErrReadOnly
	}

	out := &Outcome{}
	switch msg.Type {
	case TypePointerMove:
		var p PointerPayload
		if err := decodePayload(msg, &p); err != nil {
			return nil, err
		}
		if s.engine.SetHover(p.X, p.Y) {
			out.Frame = s.frameLocked()
		}

	case TypePointerLeave:
		if s.engine.ClearHover() {
			out.Frame = s.frameLocked()
		}

	case TypePointerDown:
		var p PointerPayload
		if err := decodePayload(msg, &p); err != nil {
			return nil, err
		}
		if s.engine.RecolorAt(p.X, p.Y) {
			out.Frame = s.frameLocked()
			out.Doc = s.docLocked()
		}

	case TypeElementAdd:
		s.engine.AddElement()
		out.Frame = s.frameLocked()
		out.Doc = s.docLocked()

	case TypeSceneClear:
		stopped := s.engine.Animator().Running()
		s.engine.Clear()
		out.Frame = s.frameLocked()
		out.Doc = s.docLocked()
		if stopped {
			s.driver++
			out.Stopped = true
			out.Animation = s.animationLocked(now)
		}

	case TypeSceneDuration:
		var p DurationPayload
		if err := decodePayload(msg, &p); err != nil {
			return nil, err
		}
		s.engine.SetDuration(p.Duration)
		out.Doc = s.docLocked()

	case TypeSceneResize:
		var p ResizePayload
		if err := decodePayload(msg, &p); err != nil {
			return nil, err
		}
		if !(p.Width > 0) || !(p.Height > 0) {
			return nil, fmt.Errorf("%w: size must be positive", ErrInvalidPayload)
		}
		s.engine.Resize(p.Width, p.Height)
		out.Frame = s.frameLocked()
		out.Doc = s.docLocked()

	case TypeAnimationPlay:
		if s.engine.Play(now) {
			s.finished = false
			s.driver++
			out.Started = true
			out.Driver = s.driver
			out.Animation = s.animationLocked(now)
		}

	case TypeAnimationCancel:
		if s.engine.Cancel() {
			s.driver++
			out.Stopped = true
			out.Animation = s.animationLocked(now)
			out.Doc = s.docLocked()
		}

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, msg.Type)
	}
	return out, nil
}

// Frame advances the animation started for driver to now. running is false
// once that animation has completed, was cancelled or was replaced by a newer
// one; a completed animation also yields the final document and animation
// state.
func (s *SceneState) Frame(now time.Time, driver int64) (out *Outcome, running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if driver != s.driver || !s.engine.Animator().Running() {
		return &Outcome{}, false
	}
	s.engine.Animator().Frame(now)
	out = &Outcome{Frame: s.frameLocked()}
	if s.finished {
		s.finished = false
		out.Doc = s.docLocked()
		out.Animation = s.animationLocked(now)
		return out, false
	}
	return out, true
}

// Load replaces the scene, cancelling any animation.
func (s *SceneState) Load(data *document.SceneData, now time.Time) *Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	stopped := s.engine.Animator().Running()
	if stopped {
		s.driver++
	}
	s.engine.Load(data)
	out := &Outcome{Frame: s.frameLocked(), Doc: s.docLocked(), Stopped: stopped}
	if stopped {
		out.Animation = s.animationLocked(now)
	}
	return out
}

// Snapshot returns the scene in its saved shape.
func (s *SceneState) Snapshot() *document.SceneData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Scene().Snapshot()
}

// Size returns the canvas size.
func (s *SceneState) Size() (float64, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Scene().Size()
}

// Sync returns the messages a newly joined client needs: the document, the
// current frame and the animation state.
func (s *SceneState) Sync(now time.Time) []*Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return []*Message{
		s.docMessageLocked(),
		s.frameMessageLocked(),
		s.animationLocked(now),
	}
}

func (s *SceneState) frameLocked() *Message {
	s.seq++
	return s.frameMessageLocked()
}

func (s *SceneState) frameMessageLocked() *Message {
	msg := newMessage(TypeFrame, FramePayload{
		Commands:  s.engine.DrawCommands(),
		HoveredID: s.engine.Scene().HoveredID(),
	})
	msg.Seq = s.seq
	return msg
}

func (s *SceneState) docLocked() *Message {
	s.version++
	return s.docMessageLocked()
}

func (s *SceneState) docMessageLocked() *Message {
	snap := s.engine.Scene().Snapshot()
	msg := newMessage(TypeDocSync, DocSyncPayload{
		Elements: snap.Elements,
		Duration: snap.Duration,
		Version:  s.version,
	})
	msg.Seq = s.version
	return msg
}

func (s *SceneState) animationLocked(now time.Time) *Message {
	st := s.engine.GetPlaybackState(now)
	return newMessage(TypeAnimationState, AnimationPayload{
		State:     st.State,
		ElapsedMs: st.ElapsedMs,
		Duration:  st.Duration,
	})
}

func decodePayload(msg *Message, v any) error {
	if len(msg.Payload) == 0 {
		return fmt.Errorf("%w: %s needs a payload", ErrInvalidPayload, msg.Type)
	}
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}
