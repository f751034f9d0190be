package timestamp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParse_Formats(t *testing.T) {
	rfc := "2025-06-01T12:00:00Z"
	want := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC).UnixMilli()

	tests := []struct {
		name  string
		input any
		want  int64
	}{
		{"nil", nil, 0},
		{"empty string", "", 0},
		{"rfc3339", rfc, want},
		{"unix seconds int64", int64(1748779200), 1748779200000},
		{"unix millis int64", int64(1748779200000), 1748779200000},
		{"unix seconds float", float64(1748779200), 1748779200000},
		{"unix seconds string", "1748779200", 1748779200000},
		{"unix millis string", "1748779200000", 1748779200000},
		{"garbage string", "not a time", 0},
		{"unsupported type", struct{}{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.input))
		})
	}
}

func TestParse_TimeTypes(t *testing.T) {
	now := time.Now()
	assert.Equal(t, now.UnixMilli(), Parse(now))
	assert.Equal(t, now.UnixMilli(), Parse(&now))

	var nilTime *time.Time
	assert.Equal(t, int64(0), Parse(nilTime))
	assert.Equal(t, int64(0), Parse(time.Time{}))
}

func TestRoundTrip(t *testing.T) {
	ms := Now()
	assert.Equal(t, ms, ToUnixMs(FromUnixMs(ms)))
	assert.True(t, FromUnixMs(0).IsZero())
	assert.Equal(t, int64(0), ToUnixMs(time.Time{}))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "", Format(0))
	ms := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC).UnixMilli()
	assert.Equal(t, "2025-06-01T12:00:00Z", Format(ms))
}

func TestBetween(t *testing.T) {
	start := int64(1000)
	end := int64(4500)
	assert.Equal(t, 3500*time.Millisecond, Between(start, end))
	assert.Equal(t, time.Duration(0), Between(0, end))
	assert.Equal(t, time.Duration(0), Between(start, 0))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(0))
	assert.NoError(t, Validate(Now()))
	assert.Error(t, Validate(-1))
	assert.Error(t, Validate(40000000000000))
}
