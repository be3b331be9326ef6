package collab

import (
	"encoding/json"

	"github.com/inamate/rectscene/internal/document"
	"github.com/inamate/rectscene/internal/engine"
)

type Message struct {
	Type     string          `json:"type"`
	SceneID  string          `json:"sceneId,omitempty"`
	ClientID string          `json:"clientId,omitempty"`
	UserID   string          `json:"userId,omitempty"`
	Seq      int64           `json:"seq,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

type PresencePayload struct {
	Cursor      *CursorPos `json:"cursor,omitempty"`
	DisplayName string     `json:"displayName,omitempty"`
	Editable    bool       `json:"editable,omitempty"`
}

type CursorPos struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type PresenceStatePayload struct {
	Presences map[string]*PresencePayload `json:"presences"`
}

type PresenceJoinPayload struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

type PresenceLeavePayload struct {
	UserID string `json:"userId"`
}

// PointerPayload carries canvas coordinates for pointer.move and pointer.down.
type PointerPayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DurationPayload is the scene.duration payload, in milliseconds.
type DurationPayload struct {
	Duration float64 `json:"duration"`
}

type ResizePayload struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type WelcomePayload struct {
	ClientID string  `json:"clientId"`
	UserID   string  `json:"userId"`
	SceneID  string  `json:"sceneId"`
	Editable bool    `json:"editable"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
}

// DocSyncPayload is the saved shape of the scene plus its room version.
type DocSyncPayload struct {
	Elements []document.Element `json:"elements"`
	Duration float64            `json:"duration"`
	Version  int64              `json:"version"`
}

// FramePayload is one frame of draw commands, replayed on a 2D canvas.
type FramePayload struct {
	Commands  []engine.DrawCommand `json:"commands"`
	HoveredID string               `json:"hoveredId,omitempty"`
}

type AnimationPayload struct {
	State     string  `json:"state"`
	ElapsedMs float64 `json:"elapsedMs"`
	Duration  float64 `json:"duration"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

const (
	// Client -> server
	TypePointerMove     = "pointer.move"
	TypePointerDown     = "pointer.down"
	TypePointerLeave    = "pointer.leave"
	TypeElementAdd      = "element.add"
	TypeSceneClear      = "scene.clear"
	TypeSceneDuration   = "scene.duration"
	TypeSceneResize     = "scene.resize"
	TypeAnimationPlay   = "animation.play"
	TypeAnimationCancel = "animation.cancel"

	// Presence, both directions
	TypePresenceUpdate = "presence.update"
	TypePresenceState  = "presence.state"
	TypePresenceJoin   = "presence.join"
	TypePresenceLeave  = "presence.leave"

	// Server -> client
	TypeWelcome        = "welcome"
	TypeDocSync        = "doc.sync"
	TypeFrame          = "frame"
	TypeAnimationState = "animation.state"
	TypeError          = "error"
)

func newMessage(msgType string, payload any) *Message {
	data, err := json.Marshal(payload)
	if err != nil {
		data = nil
	}
	return &Message{Type: msgType, Payload: data}
}
