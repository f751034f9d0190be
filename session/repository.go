package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository errors
var (
	// ErrActiveSessionExists is returned when a room already has a running
	// or paused session. Callers surface it upstream; it is a legitimate
	// rejection for a duplicate start request.
	ErrActiveSessionExists = errors.New("room already has an active session")

	// ErrSessionNotFound is returned for lookups of unknown session IDs
	ErrSessionNotFound = errors.New("session not found")

	// ErrNoActiveSession is returned when a room has no running or paused
	// session to operate on
	ErrNoActiveSession = errors.New("no active session for room")
)

// Repository is an in-memory store of game sessions keyed by session ID and
// by room ID. It enforces the single-active-session-per-room invariant and
// applies mutations atomically: a failed mutation leaves the stored session
// untouched.
type Repository struct {
	mu       sync.RWMutex
	sessions map[string]*Session // by session ID
	byRoom   map[string]string   // room ID -> active session ID
}

// NewRepository creates an empty session repository
func NewRepository() *Repository {
	return &Repository{
		sessions: make(map[string]*Session),
		byRoom:   make(map[string]string),
	}
}

// Create starts a new running session for a room. puzzleIDs seeds the puzzle
// state map with every puzzle unsolved. Returns ErrActiveSessionExists if the
// room already has a running or paused session.
func (r *Repository) Create(roomID, teamName string, playerCount int, puzzleIDs []string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if activeID, ok := r.byRoom[roomID]; ok {
		if existing, found := r.sessions[activeID]; found && existing.Status.IsActive() {
			return nil, fmt.Errorf("room %q: %w", roomID, ErrActiveSessionExists)
		}
		// Stale index entry for a finished session
		delete(r.byRoom, roomID)
	}

	puzzles := make(map[string]bool, len(puzzleIDs))
	for _, id := range puzzleIDs {
		puzzles[id] = false
	}

	s := &Session{
		SessionID:    uuid.NewString(),
		RoomID:       roomID,
		TeamName:     teamName,
		PlayerCount:  playerCount,
		Status:       StatusRunning,
		PuzzleStates: puzzles,
		DeviceStates: make(map[DeviceKey]DeviceSnapshot),
		CreatedAt:    time.Now().UTC(),
	}

	r.sessions[s.SessionID] = s
	r.byRoom[roomID] = s.SessionID
	return s.Clone(), nil
}

// Get returns a copy of a session by ID
func (r *Repository) Get(sessionID string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %q: %w", sessionID, ErrSessionNotFound)
	}
	return s.Clone(), nil
}

// GetByRoom returns a copy of the room's active session
func (r *Repository) GetByRoom(roomID string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, err := r.activeLocked(roomID)
	if err != nil {
		return nil, err
	}
	return s.Clone(), nil
}

// List returns copies of all stored sessions
func (r *Repository) List() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.Clone())
	}
	return out
}

// Delete removes a session. The room index entry is cleared when it points at
// the deleted session.
func (r *Repository) Delete(sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session %q: %w", sessionID, ErrSessionNotFound)
	}
	delete(r.sessions, sessionID)
	if r.byRoom[s.RoomID] == sessionID {
		delete(r.byRoom, s.RoomID)
	}
	return nil
}

// Mutate applies fn to the room's active session atomically. fn receives a
// working copy; the copy replaces the stored session only when fn returns
// nil, so a failed mutation never leaves a partial update behind.
func (r *Repository) Mutate(roomID string, fn func(*Session) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.activeLocked(roomID)
	if err != nil {
		return err
	}

	working := s.Clone()
	if err := fn(working); err != nil {
		return err
	}

	r.sessions[working.SessionID] = working
	return nil
}

// activeLocked resolves the room's active session. Caller holds the lock.
func (r *Repository) activeLocked(roomID string) (*Session, error) {
	activeID, ok := r.byRoom[roomID]
	if !ok {
		return nil, fmt.Errorf("room %q: %w", roomID, ErrNoActiveSession)
	}
	s, ok := r.sessions[activeID]
	if !ok {
		return nil, fmt.Errorf("room %q: %w", roomID, ErrNoActiveSession)
	}
	return s, nil
}
