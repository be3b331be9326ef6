package collab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/inamate/rectscene/internal/document"
	"github.com/inamate/rectscene/internal/store"
)

// LoadedScene is what a room starts from.
type LoadedScene struct {
	Data          *document.SceneData
	Width, Height float64
}

// SceneLoader reads a scene for a room that is being opened.
type SceneLoader func(ctx context.Context, sceneID string) (*LoadedScene, error)

// SceneSaver persists a room's scene.
type SceneSaver func(ctx context.Context, sceneID string, data *document.SceneData) error

type HubOptions struct {
	Load SceneLoader
	Save SceneSaver
	// FrameInterval is the animation frame period. Defaults to 1/60s.
	FrameInterval time.Duration
	// SaveDelay is the debounce before a changed scene is saved.
	SaveDelay     time.Duration
	RotationSpeed float64
}

type Room struct {
	sceneID  string
	clients  map[string]*Client // clientID -> client
	presence *PresenceManager
	state    *SceneState
	saver    *store.Debouncer

	// done closes when the room shuts down and stops its frame drivers.
	done      chan struct{}
	closeOnce sync.Once
}

type Hub struct {
	opts       HubOptions
	mu         sync.RWMutex
	rooms      map[string]*Room // sceneID -> room
	register   chan *Client
	unregister chan *Client
	quit       chan struct{}
	done       chan struct{}
	stopOnce   sync.Once
	now        func() time.Time
}

func NewHub(opts HubOptions) *Hub {
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = time.Second / 60
	}
	return &Hub{
		opts:       opts,
		rooms:      make(map[string]*Room),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		now:        time.Now,
	}
}

func (h *Hub) Run() {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case <-h.quit:
			return
		}
	}
}

// Stop ends the run loop and saves every open room.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.quit)
		<-h.done

		h.mu.Lock()
		rooms := make([]*Room, 0, len(h.rooms))
		for _, room := range h.rooms {
			rooms = append(rooms, room)
		}
		h.mu.Unlock()

		for _, room := range rooms {
			room.shutdown()
			room.saver.Flush()
			room.saver.Stop()
		}
	})
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.quit:
		client.close()
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

// RoomCount returns the number of open rooms.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// Document returns the live scene of an open room.
func (h *Hub) Document(sceneID string) (*document.SceneData, bool) {
	room := h.room(sceneID)
	if room == nil {
		return nil, false
	}
	return room.state.Snapshot(), true
}

// Reload replaces the scene of an open room and pushes it to its clients.
// It reports whether the room was open.
func (h *Hub) Reload(sceneID string, data *document.SceneData) bool {
	room := h.room(sceneID)
	if room == nil {
		return false
	}
	out := room.state.Load(data, h.now())
	h.broadcastOutcome(sceneID, out)
	return true
}

// CloseRoom disconnects every client of a scene without saving it. It
// reports whether the room was open.
func (h *Hub) CloseRoom(sceneID string, reason string) bool {
	h.mu.Lock()
	room, ok := h.rooms[sceneID]
	var clients []*Client
	if ok {
		delete(h.rooms, sceneID)
		for _, c := range room.clients {
			clients = append(clients, c)
		}
	}
	h.mu.Unlock()
	if !ok {
		return false
	}

	room.shutdown()
	room.saver.Stop()
	for _, c := range clients {
		c.Send(newMessage(TypeError, ErrorPayload{Message: reason}))
		c.close()
	}
	slog.Info("room closed", "scene", sceneID, "reason", reason)
	return true
}

func (h *Hub) room(sceneID string) *Room {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[sceneID]
}

func (h *Hub) openRoom(sceneID string) (*Room, error) {
	// Runs on the hub goroutine.
	loaded, err := h.opts.Load(context.Background(), sceneID)
	if err != nil {
		return nil, fmt.Errorf("load scene: %w", err)
	}

	room := &Room{
		sceneID:  sceneID,
		clients:  make(map[string]*Client),
		presence: NewPresenceManager(),
		done:     make(chan struct{}),
	}
	room.saver = store.NewDebouncer(h.opts.SaveDelay, func() {
		h.save(room)
	})
	room.state = NewSceneState(loaded.Data, loaded.Width, loaded.Height, h.opts.RotationSpeed, room.saver.Trigger)
	return room, nil
}

func (h *Hub) save(room *Room) {
	if h.opts.Save == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := h.opts.Save(ctx, room.sceneID, room.state.Snapshot()); err != nil {
		slog.Error("save scene", "scene", room.sceneID, "error", err)
		return
	}
	slog.Debug("scene saved", "scene", room.sceneID)
}

func (h *Hub) addClient(client *Client) {
	h.mu.RLock()
	room, ok := h.rooms[client.SceneID]
	h.mu.RUnlock()

	if !ok {
		var err error
		room, err = h.openRoom(client.SceneID)
		if err != nil {
			slog.Error("open room", "scene", client.SceneID, "error", err)
			client.Send(newMessage(TypeError, ErrorPayload{Message: "scene unavailable"}))
			client.close()
			return
		}
	}

	h.mu.Lock()
	if !ok {
		h.rooms[client.SceneID] = room
	}
	room.clients[client.ClientID] = client
	h.mu.Unlock()

	w, ht := room.state.Size()
	client.Send(newMessage(TypeWelcome, WelcomePayload{
		ClientID: client.ClientID,
		UserID:   client.UserID,
		SceneID:  client.SceneID,
		Editable: client.Editable,
		Width:    w,
		Height:   ht,
	}))
	for _, msg := range room.state.Sync(h.now()) {
		client.Send(msg)
	}

	// Send current presence state to new client
	if stateMsg := room.presence.StateMessage(); stateMsg != nil {
		client.Send(stateMsg)
	}

	joinMsg := newMessage(TypePresenceJoin, PresenceJoinPayload{
		UserID:      client.UserID,
		DisplayName: client.DisplayName,
	})
	joinMsg.UserID = client.UserID
	h.broadcastToRoom(client.SceneID, joinMsg, client.ClientID)

	slog.Info("client joined", "user", client.UserID, "scene", client.SceneID, "editable", client.Editable)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[client.SceneID]
	if !ok || room.clients[client.ClientID] != client {
		h.mu.Unlock()
		client.close()
		return
	}

	delete(room.clients, client.ClientID)
	client.close()
	room.presence.Remove(client.UserID)

	empty := len(room.clients) == 0
	if empty {
		delete(h.rooms, client.SceneID)
	}
	h.mu.Unlock()

	if empty {
		room.shutdown()
		room.saver.Flush()
		room.saver.Stop()
		slog.Info("room closed", "scene", client.SceneID, "reason", "empty")
	} else {
		leaveMsg := newMessage(TypePresenceLeave, PresenceLeavePayload{UserID: client.UserID})
		leaveMsg.UserID = client.UserID
		h.broadcastToRoom(client.SceneID, leaveMsg, "")
	}

	slog.Info("client left", "user", client.UserID, "scene", client.SceneID)
}

func (h *Hub) handleMessage(sender *Client, msg *Message) {
	room := h.room(sender.SceneID)
	if room == nil {
		return
	}

	if msg.Type == TypePresenceUpdate {
		h.handlePresenceUpdate(room, sender, msg)
		return
	}

	out, err := room.state.Apply(msg, sender.Editable, h.now())
	if err != nil {
		if !errors.Is(err, ErrReadOnly) {
			slog.Warn("rejected message", "type", msg.Type, "client", sender.ClientID, "error", err)
		}
		sender.Send(newMessage(TypeError, ErrorPayload{Message: err.Error()}))
		return
	}

	// A cancelled animation's driver notices on its next tick.
	if out.Started {
		go h.runAnimation(room, out.Driver)
	}
	h.broadcastOutcome(sender.SceneID, out)
}

func (h *Hub) handlePresenceUpdate(room *Room, sender *Client, msg *Message) {
	var presence PresencePayload
	if err := json.Unmarshal(msg.Payload, &presence); err != nil {
		slog.Warn("invalid presence payload", "error", err)
		return
	}

	presence.DisplayName = sender.DisplayName
	presence.Editable = sender.Editable
	room.presence.Update(sender.UserID, &presence)

	outMsg := newMessage(TypePresenceUpdate, presence)
	outMsg.UserID = sender.UserID
	h.broadcastToRoom(sender.SceneID, outMsg, sender.ClientID)
}

// runAnimation drives the frames of one animation until it completes, is
// cancelled or replaced, or the room shuts down.
func (h *Hub) runAnimation(room *Room, driver int64) {
	ticker := time.NewTicker(h.opts.FrameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-room.done:
			return
		case <-ticker.C:
			out, running := room.state.Frame(h.now(), driver)
			h.broadcastOutcome(room.sceneID, out)
			if !running {
				return
			}
		}
	}
}

func (r *Room) shutdown() {
	r.closeOnce.Do(func() { close(r.done) })
}

func (h *Hub) broadcastOutcome(sceneID string, out *Outcome) {
	for _, msg := range []*Message{out.Frame, out.Doc, out.Animation} {
		if msg != nil {
			h.broadcastToRoom(sceneID, msg, "")
		}
	}
}

func (h *Hub) broadcastToRoom(sceneID string, msg *Message, excludeClientID string) {
	h.mu.RLock()
	room, ok := h.rooms[sceneID]
	if !ok {
		h.mu.RUnlock()
		return
	}

	clients := make([]*Client, 0, len(room.clients))
	for _, c := range room.clients {
		if c.ClientID != excludeClientID {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.Send(msg)
	}
}
