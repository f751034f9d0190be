package health

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusPredicates(t *testing.T) {
	assert.True(t, NewHealthy("gateway", "ok").IsHealthy())
	assert.True(t, NewUnhealthy("gateway", "down").IsUnhealthy())
	assert.True(t, NewDegraded("gateway", "slow").IsDegraded())
	assert.False(t, NewDegraded("gateway", "slow").Healthy)
}

func TestWithSubStatus_DoesNotAlias(t *testing.T) {
	base := NewHealthy("system", "ok")
	a := base.WithSubStatus(NewHealthy("gateway", "ok"))
	b := base.WithSubStatus(NewUnhealthy("orchestrator", "down"))

	assert.Len(t, a.SubStatuses, 1)
	assert.Len(t, b.SubStatuses, 1)
	assert.Equal(t, "gateway", a.SubStatuses[0].Component)
	assert.Equal(t, "orchestrator", b.SubStatuses[0].Component)
	assert.Empty(t, base.SubStatuses)
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name string
		subs []Status
		want string
	}{
		{"empty is healthy", nil, "healthy"},
		{"all healthy", []Status{NewHealthy("a", ""), NewHealthy("b", "")}, "healthy"},
		{"one degraded", []Status{NewHealthy("a", ""), NewDegraded("b", "")}, "degraded"},
		{"unhealthy wins", []Status{NewDegraded("a", ""), NewUnhealthy("b", "")}, "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Aggregate("system", tt.subs)
			assert.Equal(t, tt.want, got.Status)
			assert.Len(t, got.SubStatuses, len(tt.subs))
		})
	}
}

func TestSanitizeMessage(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"nats url", "dial nats://10.0.0.5:4222 failed", "dial [URL] failed"},
		{"http url", "POST https://registry.local/internal failed", "POST [URL] failed"},
		{"unix path", "open /etc/snere/config.json failed", "open [PATH] failed"},
		{"ip and port", "connect 192.168.1.100:8080 refused", "connect [IP][PORT] refused"},
		{"credential", "auth failed: token=abc123", "auth failed: [REDACTED]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeMessage(tt.input))
		})
	}
}

func TestFromError(t *testing.T) {
	s := FromError("gateway", nil)
	assert.True(t, s.IsHealthy())

	s = FromError("gateway", errors.New("connect nats://10.0.0.5:4222 refused"))
	assert.True(t, s.IsUnhealthy())
	assert.NotContains(t, s.Message, "nats://")
	assert.Contains(t, s.Message, "[URL]")
}
