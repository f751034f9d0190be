// Package topic encodes and decodes the hardware bus subject hierarchy.
//
// Controllers publish on dot-separated subjects under the "sentient" root:
//
//	sentient.room.{room}.controller.{controller}.device.{device}.state
//	sentient.room.{room}.controller.{controller}.heartbeat
//	sentient.room.{room}.controller.{controller}.status
//	sentient.system.register.controller
//	sentient.system.register.device
//
// Decode is strict: anything that does not match one of these shapes exactly
// is rejected with ErrMalformedTopic. Identifiers must be non-empty and must
// not contain subject metacharacters, so a decoded Address always re-encodes
// to the original subject.
package topic

import (
	"errors"
	"fmt"
	"strings"
)

const root = "sentient"

// ErrMalformedTopic indicates a subject that does not match any known shape
var ErrMalformedTopic = errors.New("malformed topic")

// Channel identifies which kind of hardware message a subject carries
type Channel int

const (
	// ChannelState carries device state reports
	ChannelState Channel = iota
	// ChannelHeartbeat carries controller liveness pings
	ChannelHeartbeat
	// ChannelStatus carries controller online/offline announcements
	ChannelStatus
	// ChannelRegister carries controller and device registration requests
	ChannelRegister
)

// String returns the subject segment for the channel
func (c Channel) String() string {
	switch c {
	case ChannelState:
		return "state"
	case ChannelHeartbeat:
		return "heartbeat"
	case ChannelStatus:
		return "status"
	case ChannelRegister:
		return "register"
	default:
		return "unknown"
	}
}

// RegisterKind distinguishes the two registration subjects
type RegisterKind int

const (
	// RegisterNone applies to non-registration channels
	RegisterNone RegisterKind = iota
	// RegisterController is a controller registration
	RegisterController
	// RegisterDevice is a device registration
	RegisterDevice
)

// Address is the decoded form of a hardware subject. Registration subjects
// carry no room or controller identifiers; all other channels carry RoomID
// and ControllerID, and ChannelState additionally carries DeviceID.
type Address struct {
	RoomID       string
	ControllerID string
	DeviceID     string
	Channel      Channel
	Register     RegisterKind
}

// Decode parses a subject into an Address. Returns ErrMalformedTopic for
// anything outside the known hierarchy.
func Decode(subject string) (Address, error) {
	parts := strings.Split(subject, ".")
	if len(parts) < 4 || parts[0] != root {
		return Address{}, fmt.Errorf("%w: %q", ErrMalformedTopic, subject)
	}

	if parts[1] == "system" {
		if len(parts) != 4 || parts[2] != "register" {
			return Address{}, fmt.Errorf("%w: %q", ErrMalformedTopic, subject)
		}
		switch parts[3] {
		case "controller":
			return Address{Channel: ChannelRegister, Register: RegisterController}, nil
		case "device":
			return Address{Channel: ChannelRegister, Register: RegisterDevice}, nil
		default:
			return Address{}, fmt.Errorf("%w: %q", ErrMalformedTopic, subject)
		}
	}

	if parts[1] != "room" || len(parts) < 6 || parts[3] != "controller" {
		return Address{}, fmt.Errorf("%w: %q", ErrMalformedTopic, subject)
	}

	roomID, controllerID := parts[2], parts[4]
	if !validSegment(roomID) || !validSegment(controllerID) {
		return Address{}, fmt.Errorf("%w: %q", ErrMalformedTopic, subject)
	}

	switch len(parts) {
	case 6:
		var ch Channel
		switch parts[5] {
		case "heartbeat":
			ch = ChannelHeartbeat
		case "status":
			ch = ChannelStatus
		default:
			return Address{}, fmt.Errorf("%w: %q", ErrMalformedTopic, subject)
		}
		return Address{RoomID: roomID, ControllerID: controllerID, Channel: ch}, nil

	case 8:
		if parts[5] != "device" || parts[7] != "state" {
			return Address{}, fmt.Errorf("%w: %q", ErrMalformedTopic, subject)
		}
		deviceID := parts[6]
		if !validSegment(deviceID) {
			return Address{}, fmt.Errorf("%w: %q", ErrMalformedTopic, subject)
		}
		return Address{RoomID: roomID, ControllerID: controllerID, DeviceID: deviceID, Channel: ChannelState}, nil

	default:
		return Address{}, fmt.Errorf("%w: %q", ErrMalformedTopic, subject)
	}
}

// Encode renders an Address back to its subject string. Returns an error if
// the address is incomplete for its channel.
func Encode(a Address) (string, error) {
	if a.Channel == ChannelRegister {
		switch a.Register {
		case RegisterController:
			return root + ".system.register.controller", nil
		case RegisterDevice:
			return root + ".system.register.device", nil
		default:
			return "", fmt.Errorf("%w: register kind not set", ErrMalformedTopic)
		}
	}

	if !validSegment(a.RoomID) || !validSegment(a.ControllerID) {
		return "", fmt.Errorf("%w: missing or invalid identifiers", ErrMalformedTopic)
	}

	switch a.Channel {
	case ChannelState:
		if !validSegment(a.DeviceID) {
			return "", fmt.Errorf("%w: missing device id", ErrMalformedTopic)
		}
		return fmt.Sprintf("%s.room.%s.controller.%s.device.%s.state", root, a.RoomID, a.ControllerID, a.DeviceID), nil
	case ChannelHeartbeat:
		return fmt.Sprintf("%s.room.%s.controller.%s.heartbeat", root, a.RoomID, a.ControllerID), nil
	case ChannelStatus:
		return fmt.Sprintf("%s.room.%s.controller.%s.status", root, a.RoomID, a.ControllerID), nil
	default:
		return "", fmt.Errorf("%w: unknown channel", ErrMalformedTopic)
	}
}

// StatePattern returns the wildcard subscription subject for device state
func StatePattern() string {
	return root + ".room.*.controller.*.device.*.state"
}

// HeartbeatPattern returns the wildcard subscription subject for heartbeats
func HeartbeatPattern() string {
	return root + ".room.*.controller.*.heartbeat"
}

// StatusPattern returns the wildcard subscription subject for controller status
func StatusPattern() string {
	return root + ".room.*.controller.*.status"
}

// RegisterControllerSubject returns the controller registration subject
func RegisterControllerSubject() string {
	return root + ".system.register.controller"
}

// RegisterDeviceSubject returns the device registration subject
func RegisterDeviceSubject() string {
	return root + ".system.register.device"
}

func validSegment(s string) bool {
	if s == "" {
		return false
	}
	return !strings.ContainsAny(s, ".*> \t")
}
