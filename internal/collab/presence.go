package collab

import (
	"log/slog"
	"sync"
)

// PresenceManager tracks the last reported cursor of each user in a room.
type PresenceManager struct {
	mu        sync.RWMutex
	presences map[string]*PresencePayload // userID -> presence
}

func NewPresenceManager() *PresenceManager {
	return &PresenceManager{
		presences: make(map[string]*PresencePayload),
	}
}

func (pm *PresenceManager) Update(userID string, p *PresencePayload) {
	cp := *p
	if p.Cursor != nil {
		cursor := *p.Cursor
		cp.Cursor = &cursor
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.presences[userID] = &cp
}

func (pm *PresenceManager) Remove(userID string) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	delete(pm.presences, userID)
}

func (pm *PresenceManager) Len() int {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return len(pm.presences)
}

func (pm *PresenceManager) GetAll() map[string]*PresencePayload {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	result := make(map[string]*PresencePayload, len(pm.presences))
	for k, v := range pm.presences {
		result[k] = v
	}
	return result
}

// StateMessage returns a presence.state message, or nil when no one has
// reported a presence yet.
func (pm *PresenceManager) StateMessage() *Message {
	all := pm.GetAll()
	if len(all) == 0 {
		return nil
	}
	msg := newMessage(TypePresenceState, PresenceStatePayload{Presences: all})
	if msg.Payload == nil {
		slog.Error("marshal presence state", "users", len(all))
		return nil
	}
	return msg
}
