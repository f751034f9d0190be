package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/AaronLay10/snere-rewrite/errors"
)

const (
	controllerRegisterPath = "/internal/controllers/register"
	deviceRegisterPath     = "/internal/devices/register"
	internalTokenHeader    = "X-Internal-Token"

	defaultRegistryTimeout = 5 * time.Second
)

// RegistryClient forwards hardware registration announcements to the external
// registry service. The registry is idempotent: re-registering an ID updates
// rather than duplicates, so the hardware side retries on its own schedule
// and the gateway never does.
type RegistryClient struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *slog.Logger
}

// NewRegistryClient creates a registry client. A zero timeout falls back to
// the default.
func NewRegistryClient(baseURL, token string, timeout time.Duration, logger *slog.Logger) *RegistryClient {
	if timeout <= 0 {
		timeout = defaultRegistryTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RegistryClient{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With("component", "registry-client"),
	}
}

// RegisterController forwards a controller announcement payload
func (c *RegistryClient) RegisterController(ctx context.Context, payload []byte) error {
	return c.post(ctx, controllerRegisterPath, payload)
}

// RegisterDevice forwards a device announcement payload
func (c *RegistryClient) RegisterDevice(ctx context.Context, payload []byte) error {
	return c.post(ctx, deviceRegisterPath, payload)
}

func (c *RegistryClient) post(ctx context.Context, path string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return errors.WrapInvalid(err, "RegistryClient", "post", "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(internalTokenHeader, c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.WrapTransient(
			fmt.Errorf("%w: %w", errors.ErrRegistryUnreachable, err),
			"RegistryClient", "post", "forward registration")
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.WrapTransient(
			fmt.Errorf("%w: status %d", errors.ErrRegistryRejected, resp.StatusCode),
			"RegistryClient", "post", "forward registration")
	}
	return nil
}
