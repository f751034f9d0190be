package orchestrator

import (
	"sync"
	"time"
)

// ControllerLiveness is the last known transport state of one controller,
// kept for external health reporting. It never feeds session transitions.
type ControllerLiveness struct {
	RoomID       string    `json:"room_id"`
	ControllerID string    `json:"controller_id"`
	Online       bool      `json:"online"`
	LastSeen     time.Time `json:"last_seen"`
}

type controllerKey struct {
	roomID       string
	controllerID string
}

type livenessTable struct {
	mu      sync.RWMutex
	entries map[controllerKey]ControllerLiveness
}

func newLivenessTable() *livenessTable {
	return &livenessTable{entries: make(map[controllerKey]ControllerLiveness)}
}

// Observe updates a controller's liveness from a heartbeat or status event
func (t *livenessTable) Observe(roomID, controllerID string, online bool, seenAt time.Time) {
	if controllerID == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[controllerKey{roomID: roomID, controllerID: controllerID}] = ControllerLiveness{
		RoomID:       roomID,
		ControllerID: controllerID,
		Online:       online,
		LastSeen:     seenAt,
	}
}

// Snapshot returns a copy of all tracked controllers
func (t *livenessTable) Snapshot() []ControllerLiveness {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]ControllerLiveness, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	return out
}

// Get returns the liveness entry for one controller
func (t *livenessTable) Get(roomID, controllerID string) (ControllerLiveness, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[controllerKey{roomID: roomID, controllerID: controllerID}]
	return e, ok
}
