// Package timestamp provides tolerant Unix-millisecond timestamp handling.
//
// Hardware controllers report timestamps in whatever shape their firmware
// produces (RFC3339 strings, unix seconds, unix milliseconds, floats), so the
// canonical representation everywhere else in the system is int64 milliseconds
// since the Unix epoch (UTC). A value of 0 means "not set".
package timestamp

import (
	"fmt"
	"strconv"
	"time"
)

// Now returns the current time as Unix milliseconds.
func Now() int64 {
	return time.Now().UnixMilli()
}

// ToUnixMs converts a time.Time to Unix milliseconds.
func ToUnixMs(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// FromUnixMs converts Unix milliseconds to time.Time.
// Returns zero time if timestamp is 0.
func FromUnixMs(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// Format converts Unix milliseconds to an RFC3339 string for display.
// Returns empty string if timestamp is 0.
func Format(ms int64) string {
	if ms == 0 {
		return ""
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

// Parse converts various timestamp formats to Unix milliseconds.
// Supports:
//   - int64/int/int32 (assumed milliseconds if > 1e12, otherwise seconds)
//   - float64 (same heuristic)
//   - string (RFC3339 or a numeric unix timestamp)
//   - time.Time and *time.Time
//   - nil (returns 0)
//
// Returns 0 for invalid input or parsing errors.
func Parse(input any) int64 {
	if input == nil {
		return 0
	}

	switch v := input.(type) {
	case int64:
		if v == 0 {
			return 0
		}
		// 1e12 ms is September 2001; any plausible seconds value is below it
		if v > 1e12 {
			return v
		}
		return v * 1000

	case float64:
		if v == 0 {
			return 0
		}
		if v > 1e12 {
			return int64(v)
		}
		return int64(v * 1000)

	case int:
		return Parse(int64(v))

	case int32:
		return Parse(int64(v))

	case string:
		if v == "" {
			return 0
		}
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return ToUnixMs(t)
		}
		if ts, err := strconv.ParseInt(v, 10, 64); err == nil {
			return Parse(ts)
		}
		if ts, err := strconv.ParseFloat(v, 64); err == nil {
			return Parse(ts)
		}
		return 0

	case time.Time:
		return ToUnixMs(v)

	case *time.Time:
		if v == nil {
			return 0
		}
		return ToUnixMs(*v)

	default:
		return 0
	}
}

// IsZero checks if a timestamp is unset.
func IsZero(ms int64) bool {
	return ms == 0
}

// Since returns the duration since the given timestamp.
// Returns 0 if timestamp is zero.
func Since(ms int64) time.Duration {
	if ms == 0 {
		return 0
	}
	return time.Since(time.UnixMilli(ms))
}

// Between returns the duration between two timestamps.
// Returns 0 if either timestamp is zero.
func Between(start, end int64) time.Duration {
	if start == 0 || end == 0 {
		return 0
	}
	return time.UnixMilli(end).Sub(time.UnixMilli(start))
}

// Validate checks that a timestamp is non-negative and not absurdly far in
// the future (past year 3000 indicates a unit confusion upstream).
func Validate(ms int64) error {
	if ms < 0 {
		return fmt.Errorf("timestamp cannot be negative: %d", ms)
	}
	if ms > 32503680000000 {
		return fmt.Errorf("timestamp too far in future: %d", ms)
	}
	return nil
}
