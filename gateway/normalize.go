package gateway

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/AaronLay10/snere-rewrite/event"
	"github.com/AaronLay10/snere-rewrite/pkg/timestamp"
	"github.com/AaronLay10/snere-rewrite/topic"
)

// rawStatePayload is the wire shape published by controllers on the state
// channel
type rawStatePayload struct {
	V            int               `json:"v"`
	Type         string            `json:"type"`
	ControllerID string            `json:"controller_id"`
	DeviceID     string            `json:"device_id"`
	State        event.DeviceState `json:"state"`
	Timestamp    any               `json:"timestamp"`
}

// normalizeState maps a state-channel message to a device_state_changed
// event. The original payload rides along under payload.raw.
func (s *Service) normalizeState(addr topic.Address, subject string, data []byte, receivedAt time.Time) (*event.Event, error) {
	var raw rawStatePayload
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	return event.New(event.TypeDeviceStateChanged, addr.RoomID,
		event.StateChangedPayload{NewState: raw.State, Raw: json.RawMessage(data)},
		event.WithControllerID(addr.ControllerID),
		event.WithDeviceID(addr.DeviceID),
		event.WithTimestamp(s.eventTime(raw.Timestamp, receivedAt)),
		event.WithSource(serviceName),
		event.WithMetadata("origin_topic", subject),
	)
}

// normalizeHeartbeat maps a heartbeat message to a controller_heartbeat
// event with the payload passed through untouched
func (s *Service) normalizeHeartbeat(addr topic.Address, subject string, data []byte, receivedAt time.Time) (*event.Event, error) {
	return event.New(event.TypeControllerHeartbeat, addr.RoomID, passthrough(data),
		event.WithControllerID(addr.ControllerID),
		event.WithTimestamp(payloadTime(data, receivedAt)),
		event.WithSource(serviceName),
		event.WithMetadata("origin_topic", subject),
	)
}

// normalizeStatus maps a status message to controller_online or
// controller_offline depending on what the payload reports
func (s *Service) normalizeStatus(addr topic.Address, subject string, data []byte, receivedAt time.Time) (*event.Event, error) {
	typ := event.TypeControllerOffline
	if statusOnline(data) {
		typ = event.TypeControllerOnline
	}
	return event.New(typ, addr.RoomID, passthrough(data),
		event.WithControllerID(addr.ControllerID),
		event.WithTimestamp(payloadTime(data, receivedAt)),
		event.WithSource(serviceName),
		event.WithMetadata("origin_topic", subject),
	)
}

// eventTime prefers a parseable payload-supplied timestamp over receipt time
func (s *Service) eventTime(raw any, receivedAt time.Time) time.Time {
	if raw == nil {
		return receivedAt
	}
	ms := timestamp.Parse(raw)
	if ms == 0 {
		return receivedAt
	}
	return timestamp.FromUnixMs(ms)
}

// payloadTime extracts a timestamp field from an arbitrary JSON payload,
// falling back to receipt time
func payloadTime(data []byte, receivedAt time.Time) time.Time {
	var probe struct {
		Timestamp any `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &probe); err != nil || probe.Timestamp == nil {
		return receivedAt
	}
	ms := timestamp.Parse(probe.Timestamp)
	if ms == 0 {
		return receivedAt
	}
	return timestamp.FromUnixMs(ms)
}

// passthrough preserves a raw payload as-is when it is valid JSON, otherwise
// wraps it so the envelope still marshals
func passthrough(data []byte) any {
	if json.Valid(data) && len(data) > 0 {
		return json.RawMessage(data)
	}
	return map[string]string{"raw": string(data)}
}

// statusOnline inspects a status payload for an online indication. Offline
// is the safe default for anything unrecognized.
func statusOnline(data []byte) bool {
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err == nil {
		if s, ok := payload["status"].(string); ok {
			return strings.EqualFold(s, "online")
		}
		if b, ok := payload["online"].(bool); ok {
			return b
		}
		return false
	}
	return strings.EqualFold(strings.TrimSpace(strings.Trim(string(data), `"`)), "online")
}
