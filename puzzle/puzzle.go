// Package puzzle defines declarative solve conditions and their evaluator.
// Evaluation is pure: the same condition against the same device states
// always yields the same answer, so it can run on every incoming event.
package puzzle

import (
	"encoding/json"
	"fmt"

	"github.com/AaronLay10/snere-rewrite/event"
)

// States provides read access to the latest device state snapshots visible
// to a room. The second return is false for devices never seen.
type States interface {
	State(controllerID, deviceID string) (event.DeviceState, bool)
}

// Condition is a node in a solve condition tree
type Condition interface {
	// Evaluate reports whether the condition holds for the given states.
	// Unknown devices and missing fields evaluate false, never panic.
	Evaluate(states States) bool

	// References reports whether the condition reads the given device
	References(controllerID, deviceID string) bool
}

// Definition binds a puzzle ID to its solve condition. Loaded from static
// config at session start and never mutated at runtime.
type Definition struct {
	PuzzleID  string
	Name      string
	Condition Condition
}

// FieldEquals is a leaf condition: a named field of one device's latest
// state must equal a literal value.
type FieldEquals struct {
	ControllerID string `json:"controller_id"`
	DeviceID     string `json:"device_id"`
	Field        string `json:"field"`
	Equals       any    `json:"equals"`
}

// Evaluate implements Condition
func (c FieldEquals) Evaluate(states States) bool {
	if states == nil {
		return false
	}
	state, ok := states.State(c.ControllerID, c.DeviceID)
	if !ok {
		return false
	}
	value, ok := state.Get(c.Field)
	if !ok {
		return false
	}
	return valuesEqual(value, c.Equals)
}

// References implements Condition
func (c FieldEquals) References(controllerID, deviceID string) bool {
	return c.ControllerID == controllerID && c.DeviceID == deviceID
}

// AllOf holds when every child holds. An empty AllOf never holds.
type AllOf []Condition

// Evaluate implements Condition
func (c AllOf) Evaluate(states States) bool {
	if len(c) == 0 {
		return false
	}
	for _, child := range c {
		if !child.Evaluate(states) {
			return false
		}
	}
	return true
}

// References implements Condition
func (c AllOf) References(controllerID, deviceID string) bool {
	for _, child := range c {
		if child.References(controllerID, deviceID) {
			return true
		}
	}
	return false
}

// AnyOf holds when at least one child holds
type AnyOf []Condition

// Evaluate implements Condition
func (c AnyOf) Evaluate(states States) bool {
	for _, child := range c {
		if child.Evaluate(states) {
			return true
		}
	}
	return false
}

// References implements Condition
func (c AnyOf) References(controllerID, deviceID string) bool {
	for _, child := range c {
		if child.References(controllerID, deviceID) {
			return true
		}
	}
	return false
}

// valuesEqual compares a state value against a condition literal. Both sides
// usually come from JSON, so numbers are compared as float64 regardless of
// the Go type they decoded into.
func valuesEqual(a, b any) bool {
	if af, aok := asFloat(a); aok {
		bf, bok := asFloat(b)
		return bok && af == bf
	}
	switch av := a.(type) {
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case nil:
		return b == nil
	default:
		return false
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// conditionJSON is the wire shape of a condition node. Exactly one of the
// three forms must be populated.
type conditionJSON struct {
	AllOf []json.RawMessage `json:"all_of,omitempty"`
	AnyOf []json.RawMessage `json:"any_of,omitempty"`

	ControllerID string          `json:"controller_id,omitempty"`
	DeviceID     string          `json:"device_id,omitempty"`
	Field        string          `json:"field,omitempty"`
	Equals       json.RawMessage `json:"equals,omitempty"`
}

// Parse decodes a condition tree from its JSON form
func Parse(raw json.RawMessage) (Condition, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty condition")
	}

	var node conditionJSON
	if err := json.Unmarshal(raw, &node); err != nil {
		return nil, fmt.Errorf("parse condition: %w", err)
	}

	switch {
	case node.AllOf != nil:
		children, err := parseChildren(node.AllOf)
		if err != nil {
			return nil, err
		}
		return AllOf(children), nil

	case node.AnyOf != nil:
		children, err := parseChildren(node.AnyOf)
		if err != nil {
			return nil, err
		}
		return AnyOf(children), nil

	case node.ControllerID != "" || node.DeviceID != "":
		if node.ControllerID == "" || node.DeviceID == "" || node.Field == "" {
			return nil, fmt.Errorf("leaf condition requires controller_id, device_id and field")
		}
		var equals any
		if len(node.Equals) > 0 {
			if err := json.Unmarshal(node.Equals, &equals); err != nil {
				return nil, fmt.Errorf("parse condition equals value: %w", err)
			}
		}
		return FieldEquals{
			ControllerID: node.ControllerID,
			DeviceID:     node.DeviceID,
			Field:        node.Field,
			Equals:       equals,
		}, nil

	default:
		return nil, fmt.Errorf("condition must be a leaf, all_of or any_of")
	}
}

func parseChildren(raws []json.RawMessage) ([]Condition, error) {
	if len(raws) == 0 {
		return nil, fmt.Errorf("composite condition has no children")
	}
	children := make([]Condition, 0, len(raws))
	for i, raw := range raws {
		child, err := Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("child %d: %w", i, err)
		}
		children = append(children, child)
	}
	return children, nil
}
