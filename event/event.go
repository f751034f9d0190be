// Package event defines the Domain Event envelope shared by every producer
// and consumer on the event bus.
//
// An Event is immutable after construction: New assigns the event ID and
// timestamp, and consumers treat the envelope as read-only. Identity is the
// event_id; at-least-once delivery means the same event_id may be seen more
// than once, and consumers deduplicate on it.
package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DomainSubject is the single event bus subject all Domain Events ride on
const DomainSubject = "sentient.events.domain"

// Type identifies what a Domain Event describes
type Type string

// Event types produced by the gateway
const (
	TypeDeviceStateChanged  Type = "device_state_changed"
	TypeControllerHeartbeat Type = "controller_heartbeat"
	TypeControllerOnline    Type = "controller_online"
	TypeControllerOffline   Type = "controller_offline"
)

// Event types produced by the orchestrator
const (
	TypePuzzleSolved     Type = "puzzle_solved"
	TypeSceneAdvanced    Type = "scene_advanced"
	TypeSessionStarted   Type = "session_started"
	TypeSessionPaused    Type = "session_paused"
	TypeSessionResumed   Type = "session_resumed"
	TypeSessionHalted    Type = "session_halted"
	TypeSessionCompleted Type = "session_completed"
)

// TypeEmergencyStop is published by external operator tooling
const TypeEmergencyStop Type = "emergency_stop_triggered"

var knownTypes = map[Type]struct{}{
	TypeDeviceStateChanged:  {},
	TypeControllerHeartbeat: {},
	TypeControllerOnline:    {},
	TypeControllerOffline:   {},
	TypePuzzleSolved:        {},
	TypeSceneAdvanced:       {},
	TypeSessionStarted:      {},
	TypeSessionPaused:       {},
	TypeSessionResumed:      {},
	TypeSessionHalted:       {},
	TypeSessionCompleted:    {},
	TypeEmergencyStop:       {},
}

// Valid reports whether the type is one of the known event types
func (t Type) Valid() bool {
	_, ok := knownTypes[t]
	return ok
}

// Event is the canonical envelope published on the domain events subject
type Event struct {
	EventID      string          `json:"event_id"`
	Type         Type            `json:"type"`
	RoomID       string          `json:"room_id"`
	ControllerID string          `json:"controller_id,omitempty"`
	DeviceID     string          `json:"device_id,omitempty"`
	Payload      json.RawMessage `json:"payload"`
	Timestamp    time.Time       `json:"timestamp"`
	Metadata     map[string]any  `json:"metadata,omitempty"`
}

// Option configures optional envelope fields at construction
type Option func(*Event)

// WithControllerID sets the originating controller
func WithControllerID(id string) Option {
	return func(e *Event) { e.ControllerID = id }
}

// WithDeviceID sets the originating device
func WithDeviceID(id string) Option {
	return func(e *Event) { e.DeviceID = id }
}

// WithTimestamp overrides the construction-time timestamp, typically with a
// payload-supplied time
func WithTimestamp(ts time.Time) Option {
	return func(e *Event) {
		if !ts.IsZero() {
			e.Timestamp = ts.UTC()
		}
	}
}

// WithSource sets metadata.source to the producing component name
func WithSource(source string) Option {
	return func(e *Event) { e.Metadata["source"] = source }
}

// WithMetadata sets an arbitrary metadata key
func WithMetadata(key string, value any) Option {
	return func(e *Event) { e.Metadata[key] = value }
}

// New builds an Event with a fresh event ID and the current UTC time. The
// payload is serialized once here so later consumers see a stable byte form.
func New(typ Type, roomID string, payload any, opts ...Option) (*Event, error) {
	if !typ.Valid() {
		return nil, fmt.Errorf("unknown event type %q", typ)
	}
	if roomID == "" {
		return nil, fmt.Errorf("event type %q requires a room id", typ)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload for %q: %w", typ, err)
	}

	e := &Event{
		EventID:   uuid.NewString(),
		Type:      typ,
		RoomID:    roomID,
		Payload:   raw,
		Timestamp: time.Now().UTC(),
		Metadata:  make(map[string]any),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Validate checks the envelope invariants on a received event
func (e *Event) Validate() error {
	if e == nil {
		return fmt.Errorf("nil event")
	}
	if e.EventID == "" {
		return fmt.Errorf("event missing event_id")
	}
	if !e.Type.Valid() {
		return fmt.Errorf("event %s has unknown type %q", e.EventID, e.Type)
	}
	if e.RoomID == "" {
		return fmt.Errorf("event %s missing room_id", e.EventID)
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("event %s missing timestamp", e.EventID)
	}
	return nil
}

// DecodePayload unmarshals the payload into v
func (e *Event) DecodePayload(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("event %s has empty payload", e.EventID)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}

// Unmarshal parses a wire envelope and validates it
func Unmarshal(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}
