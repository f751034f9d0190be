package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseService_Lifecycle(t *testing.T) {
	svc := NewBaseService("test-service")
	assert.Equal(t, "test-service", svc.Name())
	assert.Equal(t, StatusStopped, svc.Status())

	require.NoError(t, svc.Start(context.Background()))
	assert.Equal(t, StatusRunning, svc.Status())

	// Idempotent start
	require.NoError(t, svc.Start(context.Background()))
	assert.Equal(t, StatusRunning, svc.Status())

	require.NoError(t, svc.Stop(time.Second))
	assert.Equal(t, StatusStopped, svc.Status())
	assert.False(t, svc.IsHealthy())

	// Idempotent stop
	require.NoError(t, svc.Stop(time.Second))
}

func TestBaseService_ContextCancellationStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	svc := NewBaseService("ctx-service")

	require.NoError(t, svc.Start(ctx))
	assert.Equal(t, StatusRunning, svc.Status())

	cancel()

	assert.Eventually(t, func() bool {
		return svc.Status() == StatusStopped
	}, time.Second, 10*time.Millisecond)
}

func TestBaseService_HealthCheck(t *testing.T) {
	checkErr := errors.New("dependency down")
	failing := false

	svc := NewBaseService("hc-service",
		WithHealthInterval(10*time.Millisecond),
		WithHealthCheck(func() error {
			if failing {
				return checkErr
			}
			return nil
		}),
	)

	require.NoError(t, svc.Start(context.Background()))
	defer svc.Stop(time.Second)

	assert.Eventually(t, svc.IsHealthy, time.Second, 10*time.Millisecond)

	failing = true
	assert.Eventually(t, func() bool { return !svc.IsHealthy() }, time.Second, 10*time.Millisecond)

	info := svc.GetStatus()
	assert.Greater(t, info.FailedHealthChecks, int64(0))
}

func TestBaseService_HealthStatusMapping(t *testing.T) {
	svc := NewBaseService("map-service", WithHealthInterval(0))

	assert.True(t, svc.Health().IsUnhealthy(), "stopped service is unhealthy")

	require.NoError(t, svc.Start(context.Background()))
	defer svc.Stop(time.Second)

	// Running but healthy flag not yet set: Health reflects lifecycle only
	// once the healthy flag is in place
	svc.healthy.Store(true)
	assert.True(t, svc.Health().IsHealthy())

	svc.healthy.Store(false)
	assert.True(t, svc.Health().IsUnhealthy())
}

func TestBaseService_RecordActivity(t *testing.T) {
	svc := NewBaseService("activity-service")
	require.NoError(t, svc.Start(context.Background()))
	defer svc.Stop(time.Second)

	svc.RecordActivity()
	svc.RecordActivity()

	info := svc.GetStatus()
	assert.Equal(t, int64(2), info.EventsProcessed)
	assert.False(t, info.LastActivity.IsZero())
	assert.GreaterOrEqual(t, info.Uptime, time.Duration(0))
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "stopped", StatusStopped.String())
	assert.Equal(t, "starting", StatusStarting.String())
	assert.Equal(t, "running", StatusRunning.String())
	assert.Equal(t, "stopping", StatusStopping.String())
	assert.Equal(t, "unknown", Status(9).String())
}
