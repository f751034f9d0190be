// Package session holds the game session model and its in-memory repository.
// A session is one play-through of a room by a team; the orchestrator mutates
// it in response to domain events.
package session

import (
	"time"

	"github.com/AaronLay10/snere-rewrite/event"
)

// Status is the lifecycle state of a game session
type Status string

// Session lifecycle states
const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusHalted    Status = "halted"
	StatusCompleted Status = "completed"
)

// Valid reports whether the status is a known lifecycle state
func (s Status) Valid() bool {
	switch s {
	case StatusIdle, StatusRunning, StatusPaused, StatusHalted, StatusCompleted:
		return true
	}
	return false
}

// IsActive reports whether the session still owns its room. Exactly one
// active session is allowed per room.
func (s Status) IsActive() bool {
	return s == StatusRunning || s == StatusPaused
}

// IsTerminal reports whether the session can no longer transition
func (s Status) IsTerminal() bool {
	return s == StatusHalted || s == StatusCompleted
}

// DeviceKey identifies a device within a session's state snapshots
type DeviceKey struct {
	ControllerID string `json:"controller_id"`
	DeviceID     string `json:"device_id"`
}

// DeviceSnapshot is the latest known state for one device and the origin
// timestamp of the event that produced it. A newer event fully replaces the
// snapshot; payloads are never merged.
type DeviceSnapshot struct {
	State     event.DeviceState `json:"state"`
	Timestamp time.Time         `json:"timestamp"`
}

// Session is one game play-through of a room
type Session struct {
	SessionID    string                       `json:"session_id"`
	RoomID       string                       `json:"room_id"`
	TeamName     string                       `json:"team_name,omitempty"`
	PlayerCount  int                          `json:"player_count,omitempty"`
	Status       Status                       `json:"status"`
	PuzzleStates map[string]bool              `json:"puzzle_states"`
	DeviceStates map[DeviceKey]DeviceSnapshot `json:"-"`
	CreatedAt    time.Time                    `json:"created_at"`
}

// State returns the latest snapshot payload for a device. The second return
// is false when the session has never seen the device.
func (s *Session) State(controllerID, deviceID string) (event.DeviceState, bool) {
	snap, ok := s.DeviceStates[DeviceKey{ControllerID: controllerID, DeviceID: deviceID}]
	if !ok {
		return nil, false
	}
	return snap.State, true
}

// SetDeviceState replaces the snapshot for a device. Last write wins by
// arrival order regardless of the embedded timestamp.
func (s *Session) SetDeviceState(controllerID, deviceID string, state event.DeviceState, ts time.Time) {
	if s.DeviceStates == nil {
		s.DeviceStates = make(map[DeviceKey]DeviceSnapshot)
	}
	s.DeviceStates[DeviceKey{ControllerID: controllerID, DeviceID: deviceID}] = DeviceSnapshot{
		State:     state,
		Timestamp: ts,
	}
}

// MarkSolved marks a puzzle solved and reports whether this call flipped it.
// Solving is monotonic: a solved puzzle never becomes unsolved.
func (s *Session) MarkSolved(puzzleID string) bool {
	if s.PuzzleStates == nil {
		s.PuzzleStates = make(map[string]bool)
	}
	if s.PuzzleStates[puzzleID] {
		return false
	}
	s.PuzzleStates[puzzleID] = true
	return true
}

// Solved reports whether a puzzle is marked solved
func (s *Session) Solved(puzzleID string) bool {
	return s.PuzzleStates[puzzleID]
}

// AllSolved reports whether every tracked puzzle is solved. A session with no
// puzzles never completes through solving.
func (s *Session) AllSolved() bool {
	if len(s.PuzzleStates) == 0 {
		return false
	}
	for _, solved := range s.PuzzleStates {
		if !solved {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the session
func (s *Session) Clone() *Session {
	clone := *s
	if s.PuzzleStates != nil {
		clone.PuzzleStates = make(map[string]bool, len(s.PuzzleStates))
		for k, v := range s.PuzzleStates {
			clone.PuzzleStates[k] = v
		}
	}
	if s.DeviceStates != nil {
		clone.DeviceStates = make(map[DeviceKey]DeviceSnapshot, len(s.DeviceStates))
		for k, v := range s.DeviceStates {
			clone.DeviceStates[k] = DeviceSnapshot{
				State:     v.State.Clone(),
				Timestamp: v.Timestamp,
			}
		}
	}
	return &clone
}
