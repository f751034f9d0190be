package gateway

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AaronLay10/snere-rewrite/errors"
	"github.com/AaronLay10/snere-rewrite/topic"
)

type capturedRequest struct {
	path  string
	token string
	body  string
}

func newCaptureServer(t *testing.T, status int) (*httptest.Server, func() []capturedRequest) {
	t.Helper()
	var mu sync.Mutex
	var requests []capturedRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		requests = append(requests, capturedRequest{
			path:  r.URL.Path,
			token: r.Header.Get(internalTokenHeader),
			body:  string(body),
		})
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)

	return srv, func() []capturedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]capturedRequest(nil), requests...)
	}
}

func TestRegistryClient_RegisterController(t *testing.T) {
	srv, captured := newCaptureServer(t, http.StatusOK)
	client := NewRegistryClient(srv.URL, "secret-token", time.Second, nil)

	err := client.RegisterController(context.Background(), []byte(`{"controller_id": "ctrl_1"}`))
	require.NoError(t, err)

	reqs := captured()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/internal/controllers/register", reqs[0].path)
	assert.Equal(t, "secret-token", reqs[0].token)
	assert.JSONEq(t, `{"controller_id": "ctrl_1"}`, reqs[0].body)
}

func TestRegistryClient_RegisterDevice(t *testing.T) {
	srv, captured := newCaptureServer(t, http.StatusCreated)
	client := NewRegistryClient(srv.URL, "secret-token", time.Second, nil)

	err := client.RegisterDevice(context.Background(), []byte(`{"device_id": "door_sensor"}`))
	require.NoError(t, err)

	reqs := captured()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/internal/devices/register", reqs[0].path)
}

func TestRegistryClient_NonSuccessIsRejected(t *testing.T) {
	srv, _ := newCaptureServer(t, http.StatusForbidden)
	client := NewRegistryClient(srv.URL, "wrong-token", time.Second, nil)

	err := client.RegisterController(context.Background(), []byte(`{}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrRegistryRejected)
	assert.True(t, errors.IsTransient(err))
}

func TestRegistryClient_NetworkFailure(t *testing.T) {
	client := NewRegistryClient("http://127.0.0.1:1", "token", 200*time.Millisecond, nil)

	err := client.RegisterController(context.Background(), []byte(`{}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrRegistryUnreachable)
	assert.True(t, errors.IsTransient(err))
}

func TestGateway_ForwardsRegistrations(t *testing.T) {
	srv, captured := newCaptureServer(t, http.StatusOK)

	bus := newFakeBus()
	pub := &fakePublisher{}
	svc := New(bus, pub, NewRegistryClient(srv.URL, "tok", time.Second, nil), nil)
	require.NoError(t, svc.Start(context.Background()))
	defer svc.Stop(time.Second)

	bus.deliver(topic.RegisterControllerSubject(), []byte(`{"controller_id": "ctrl_1"}`))
	bus.deliver(topic.RegisterDeviceSubject(), []byte(`{"device_id": "d1"}`))

	require.Eventually(t, func() bool { return len(captured()) == 2 }, time.Second, 5*time.Millisecond)

	reqs := captured()
	assert.Equal(t, "/internal/controllers/register", reqs[0].path)
	assert.Equal(t, "/internal/devices/register", reqs[1].path)

	// Registrations are forwarded, never republished as domain events
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, pub.count())
}

func TestGateway_RegistrationFailureIsDropped(t *testing.T) {
	srv, captured := newCaptureServer(t, http.StatusInternalServerError)

	bus := newFakeBus()
	pub := &fakePublisher{}
	svc := New(bus, pub, NewRegistryClient(srv.URL, "tok", time.Second, nil), nil)
	require.NoError(t, svc.Start(context.Background()))
	defer svc.Stop(time.Second)

	bus.deliver(topic.RegisterControllerSubject(), []byte(`{"controller_id": "c1"}`))

	// The attempt happened exactly once and the loop keeps running
	require.Eventually(t, func() bool { return len(captured()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, captured(), 1)
	assert.Zero(t, pub.count())
}
