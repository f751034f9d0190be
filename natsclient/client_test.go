package natsclient

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestNewClient(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	assert.NoError(t, err)

	assert.NotNil(t, client)
	assert.Equal(t, "nats://localhost:4222", client.URL())
	assert.Equal(t, StatusDisconnected, client.Status())
	assert.False(t, client.IsHealthy())
}

func TestCircuitBreaker_OpensAfterFailures(t *testing.T) {
	client, err := NewClient("nats://invalid:4222")
	assert.NoError(t, err)

	// Below the threshold the circuit stays closed
	for i := 0; i < 4; i++ {
		client.recordFailure()
	}
	assert.NotEqual(t, StatusCircuitOpen, client.Status())

	client.recordFailure()
	assert.Equal(t, StatusCircuitOpen, client.Status())
	assert.Equal(t, int32(5), client.Failures())
}

func TestCircuitBreaker_Reset(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	assert.NoError(t, err)

	for i := 0; i < 5; i++ {
		client.recordFailure()
	}
	assert.Equal(t, StatusCircuitOpen, client.Status())

	client.resetCircuit()
	assert.Equal(t, int32(0), client.Failures())
	assert.NotEqual(t, StatusCircuitOpen, client.Status())
}

func TestCircuitBreaker_ExponentialBackoff(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	assert.NoError(t, err)

	assert.Equal(t, time.Second, client.Backoff())

	for i := 0; i < 5; i++ {
		client.recordFailure()
	}
	assert.Equal(t, 2*time.Second, client.Backoff())

	for i := 0; i < 5; i++ {
		client.recordFailure()
	}
	assert.Equal(t, 4*time.Second, client.Backoff())

	// Caps at the configured maximum
	for i := 0; i < 20; i++ {
		for j := 0; j < 5; j++ {
			client.recordFailure()
		}
	}
	assert.LessOrEqual(t, client.Backoff(), time.Minute)
}

func TestIsHealthy(t *testing.T) {
	tests := []struct {
		name     string
		status   ConnectionStatus
		expected bool
	}{
		{"connected is healthy", StatusConnected, true},
		{"disconnected is not healthy", StatusDisconnected, false},
		{"connecting is not healthy", StatusConnecting, false},
		{"reconnecting is not healthy", StatusReconnecting, false},
		{"circuit open is not healthy", StatusCircuitOpen, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient("nats://localhost:4222")
			assert.NoError(t, err)
			client.setStatus(tt.status)
			assert.Equal(t, tt.expected, client.IsHealthy())
		})
	}
}

func TestConnectionStatus_String(t *testing.T) {
	assert.Equal(t, "disconnected", StatusDisconnected.String())
	assert.Equal(t, "connecting", StatusConnecting.String())
	assert.Equal(t, "connected", StatusConnected.String())
	assert.Equal(t, "reconnecting", StatusReconnecting.String())
	assert.Equal(t, "circuit_open", StatusCircuitOpen.String())
	assert.Equal(t, "unknown", ConnectionStatus(42).String())
}

func TestConcurrentSafety(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	assert.NoError(t, err)

	var wg sync.WaitGroup
	iterations := 100

	wg.Add(3)
	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			client.setStatus(StatusConnecting)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			client.setStatus(StatusConnected)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			_ = client.Status()
		}
	}()

	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			client.recordFailure()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			client.resetCircuit()
		}
	}()

	wg.Wait()

	status := client.Status()
	assert.Contains(t, []ConnectionStatus{
		StatusDisconnected,
		StatusConnecting,
		StatusConnected,
		StatusReconnecting,
		StatusCircuitOpen,
	}, status)
}

func TestWaitForConnection(t *testing.T) {
	t.Run("times out when not connected", func(t *testing.T) {
		client, err := NewClient("nats://localhost:4222")
		assert.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		err = client.WaitForConnection(ctx)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "timeout")
	})

	t.Run("returns immediately when connected", func(t *testing.T) {
		client, err := NewClient("nats://localhost:4222")
		assert.NoError(t, err)
		client.setStatus(StatusConnected)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		start := time.Now()
		err = client.WaitForConnection(ctx)
		assert.NoError(t, err)
		assert.Less(t, time.Since(start), 100*time.Millisecond)
	})

	t.Run("returns when becomes connected", func(t *testing.T) {
		client, err := NewClient("nats://localhost:4222")
		assert.NoError(t, err)

		go func() {
			time.Sleep(50 * time.Millisecond)
			client.setStatus(StatusConnected)
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		err = client.WaitForConnection(ctx)
		assert.NoError(t, err)
		assert.Equal(t, StatusConnected, client.Status())
	})
}

func TestOperationsWhenNotConnected(t *testing.T) {
	client, err := NewClient("nats://invalid-host:4222")
	assert.NoError(t, err)
	ctx := context.Background()

	err = client.Publish(ctx, "test.subject", []byte("data"))
	assert.Equal(t, ErrNotConnected, err)

	err = client.Subscribe(ctx, "test.subject", func(_ context.Context, _ string, _ []byte) {})
	assert.Equal(t, ErrNotConnected, err)

	_, err = client.RTT()
	assert.Equal(t, ErrNotConnected, err)

	// Close succeeds even when never connected
	assert.NoError(t, client.Close(ctx))
}

func TestConnect_CircuitOpenRejected(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	assert.NoError(t, err)

	for i := 0; i < 5; i++ {
		client.recordFailure()
	}
	require.Equal(t, StatusCircuitOpen, client.Status())

	err = client.Connect(context.Background())
	assert.Equal(t, ErrCircuitOpen, err)
}

func TestConnectionOptions(t *testing.T) {
	client, err := NewClient("nats://localhost:4222",
		WithMaxReconnects(10),
		WithReconnectWait(5*time.Second),
		WithName("hardware-bus"),
	)
	assert.NoError(t, err)

	opts := client.ConnectionOptions()
	assert.NotNil(t, opts)

	assert.Equal(t, 10, client.MaxReconnects())
	assert.Equal(t, 5*time.Second, client.ReconnectWait())
}

func TestGetStatus(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	assert.NoError(t, err)

	for i := 0; i < 3; i++ {
		client.recordFailure()
	}

	status := client.GetStatus()
	assert.NotNil(t, status)
	assert.Equal(t, int32(3), status.FailureCount)
	assert.Equal(t, StatusDisconnected, status.Status)
	assert.NotZero(t, status.LastFailureTime)

	client.resetCircuit()
	status = client.GetStatus()
	assert.Equal(t, int32(0), status.FailureCount)
}

func TestPublishSubscribe_RealServer(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	natsContainer, natsURL := startTestNATSContainer(ctx, t)
	defer natsContainer.Terminate(ctx)

	client, err := NewClient(natsURL,
		WithMaxReconnects(0), // No reconnects in tests
	)
	require.NoError(t, err)

	err = client.Connect(ctx)
	require.NoError(t, err)
	defer client.Close(ctx)

	assert.True(t, client.IsHealthy())

	received := make(chan []byte, 1)
	subjects := make(chan string, 1)
	err = client.Subscribe(ctx, "sentient.room.*.controller.*.heartbeat",
		func(_ context.Context, subject string, data []byte) {
			subjects <- subject
			received <- data
		})
	require.NoError(t, err)

	err = client.Publish(ctx, "sentient.room.vault.controller.c1.heartbeat", []byte(`{"uptime":1}`))
	require.NoError(t, err)

	select {
	case data := <-received:
		assert.Equal(t, []byte(`{"uptime":1}`), data)
		assert.Equal(t, "sentient.room.vault.controller.c1.heartbeat", <-subjects)
	case <-time.After(time.Second):
		t.Fatal("Message not received")
	}
}

// Helper to start a NATS container for integration tests
func startTestNATSContainer(ctx context.Context, t *testing.T) (testcontainers.Container, string) {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "nats:2.11.7-alpine",
		ExposedPorts: []string{"4222/tcp"},
		WaitingFor:   wait.ForListeningPort("4222/tcp"),
	}

	natsContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := natsContainer.Host(ctx)
	require.NoError(t, err)

	port, err := natsContainer.MappedPort(ctx, "4222")
	require.NoError(t, err)

	natsURL := fmt.Sprintf("nats://%s:%s", host, port.Port())
	return natsContainer, natsURL
}
