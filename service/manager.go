package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AaronLay10/snere-rewrite/health"
)

// Manager starts registered services in registration order and stops them in
// reverse, so consumers come up before producers and drain after them.
type Manager struct {
	logger   *slog.Logger
	services map[string]Service
	order    []string
	mu       sync.RWMutex
}

// NewManager creates a service manager
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		logger:   logger.With("component", "service-manager"),
		services: make(map[string]Service),
	}
}

// Register adds a service. Registration order determines start order.
func (m *Manager) Register(svc Service) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := svc.Name()
	if _, exists := m.services[name]; exists {
		return fmt.Errorf("service %q already registered", name)
	}
	m.services[name] = svc
	m.order = append(m.order, name)
	return nil
}

// Get returns a registered service by name
func (m *Manager) Get(name string) (Service, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	svc, ok := m.services[name]
	return svc, ok
}

// StartAll starts every service in registration order. On the first failure
// it stops the services already started, in reverse, and returns the error.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.RLock()
	order := make([]string, len(m.order))
	copy(order, m.order)
	m.mu.RUnlock()

	var started []string
	for _, name := range order {
		svc := m.services[name]
		m.logger.Info("starting service", "service", name)
		if err := svc.Start(ctx); err != nil {
			m.logger.Error("service failed to start", "service", name, "error", err)
			for i := len(started) - 1; i >= 0; i-- {
				if stopErr := m.services[started[i]].Stop(5 * time.Second); stopErr != nil {
					m.logger.Error("rollback stop failed", "service", started[i], "error", stopErr)
				}
			}
			return fmt.Errorf("start service %q: %w", name, err)
		}
		started = append(started, name)
	}
	return nil
}

// StopAll stops every service in reverse registration order. All services
// are attempted; the first error is returned.
func (m *Manager) StopAll(timeout time.Duration) error {
	m.mu.RLock()
	order := make([]string, len(m.order))
	copy(order, m.order)
	m.mu.RUnlock()

	var firstErr error
	for i := len(order) - 1; i >= 0; i-- {
		name := order[i]
		m.logger.Info("stopping service", "service", name)
		if err := m.services[name].Stop(timeout); err != nil {
			m.logger.Error("service failed to stop", "service", name, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("stop service %q: %w", name, err)
			}
		}
	}
	return firstErr
}

// Health aggregates the health of all registered services
func (m *Manager) Health() health.Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	subs := make([]health.Status, 0, len(m.order))
	for _, name := range m.order {
		subs = append(subs, m.services[name].Health())
	}
	return health.Aggregate("system", subs)
}
