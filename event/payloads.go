package event

import "encoding/json"

// StateChangedPayload is the payload of a device_state_changed event. Raw
// preserves the original hardware payload for debugging and replay.
type StateChangedPayload struct {
	NewState DeviceState     `json:"new_state"`
	Raw      json.RawMessage `json:"raw,omitempty"`
}

// PuzzleSolvedPayload is the payload of a puzzle_solved event
type PuzzleSolvedPayload struct {
	SessionID  string `json:"session_id"`
	PuzzleID   string `json:"puzzle_id"`
	PuzzleName string `json:"puzzle_name,omitempty"`
}

// SceneAdvancedPayload is the payload of a scene_advanced event
type SceneAdvancedPayload struct {
	SessionID string `json:"session_id"`
	Scene     string `json:"scene"`
}

// SessionPayload is the payload of session lifecycle events
// (session_started, session_paused, session_resumed, session_halted,
// session_completed)
type SessionPayload struct {
	SessionID   string `json:"session_id"`
	TeamName    string `json:"team_name,omitempty"`
	PlayerCount int    `json:"player_count,omitempty"`
	Reason      string `json:"reason,omitempty"`
}
