package event

// DeviceState is the opaque key-value state a device reports. Hardware types
// are not modeled individually; puzzle conditions and operator tooling read
// fields through the typed accessors, which tolerate missing keys and
// JSON-decoded numeric widening.
type DeviceState map[string]any

// Bool returns the named field as a bool
func (s DeviceState) Bool(field string) (bool, bool) {
	v, ok := s[field]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// Number returns the named field as a float64. JSON decoding yields float64
// for all numbers; int values from in-process construction are widened.
func (s DeviceState) Number(field string) (float64, bool) {
	v, ok := s[field]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// String returns the named field as a string
func (s DeviceState) String(field string) (string, bool) {
	v, ok := s[field]
	if !ok {
		return "", false
	}
	str, ok := v.(string)
	return str, ok
}

// Get returns the raw field value
func (s DeviceState) Get(field string) (any, bool) {
	v, ok := s[field]
	return v, ok
}

// Clone returns a shallow copy of the state map
func (s DeviceState) Clone() DeviceState {
	if s == nil {
		return nil
	}
	out := make(DeviceState, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
