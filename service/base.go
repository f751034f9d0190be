// Package service provides base functionality and common patterns for the
// platform's long-running services: lifecycle state, health monitoring, and
// standard status reporting.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AaronLay10/snere-rewrite/health"
	"github.com/AaronLay10/snere-rewrite/metric"
	"github.com/AaronLay10/snere-rewrite/natsclient"
)

// Status represents the current status of a service
type Status int

// Possible service statuses
const (
	StatusStopped Status = iota
	StatusStarting
	StatusRunning
	StatusStopping
)

// String returns the string representation of Status
func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusStarting:
		return "starting"
	case StatusRunning:
		return "running"
	case StatusStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Info holds runtime information for a service
type Info struct {
	Name               string        `json:"name"`
	Status             Status        `json:"status"`
	Uptime             time.Duration `json:"uptime"`
	StartTime          time.Time     `json:"start_time"`
	EventsProcessed    int64         `json:"events_processed"`
	LastActivity       time.Time     `json:"last_activity"`
	HealthChecks       int64         `json:"health_checks"`
	FailedHealthChecks int64         `json:"failed_health_checks"`
}

// HealthCheckFunc defines a custom health check function
type HealthCheckFunc func() error

// Option is a functional option for configuring BaseService
type Option func(*BaseService)

// BaseService provides common functionality for all services. Concrete
// services embed it and layer their own Start/Stop on top.
type BaseService struct {
	name            string
	nats            *natsclient.Client
	metricsRegistry *metric.MetricsRegistry
	logger          *slog.Logger

	status    atomic.Value // Status
	startTime atomic.Value // time.Time
	healthy   atomic.Bool

	eventsProcessed    atomic.Int64
	healthChecks       atomic.Int64
	failedHealthChecks atomic.Int64
	lastActivity       atomic.Value // time.Time

	healthCheckFunc HealthCheckFunc

	healthTicker   *time.Ticker
	healthInterval time.Duration

	onHealthChange func(bool)

	done      chan struct{}
	waitGroup sync.WaitGroup
	mu        sync.RWMutex
}

// NewBaseService creates a new base service using functional options
func NewBaseService(name string, opts ...Option) *BaseService {
	service := &BaseService{
		name:           name,
		healthInterval: 30 * time.Second,
		logger:         slog.Default().With("service", name),
	}

	for _, opt := range opts {
		opt(service)
	}

	service.status.Store(StatusStopped)
	if service.metricsRegistry != nil {
		service.metricsRegistry.CoreMetrics().RecordServiceStatus(name, int(StatusStopped))
	}
	service.startTime.Store(time.Time{})
	service.lastActivity.Store(time.Time{})

	return service
}

// WithNATS sets the NATS client whose connectivity feeds the default health check
func WithNATS(client *natsclient.Client) Option {
	return func(s *BaseService) {
		s.nats = client
	}
}

// WithMetrics sets the metrics registry for the service
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(s *BaseService) {
		s.metricsRegistry = registry
	}
}

// WithLogger sets a custom logger for the service
func WithLogger(logger *slog.Logger) Option {
	return func(s *BaseService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithHealthCheck sets a custom health check function
func WithHealthCheck(fn HealthCheckFunc) Option {
	return func(s *BaseService) {
		s.healthCheckFunc = fn
	}
}

// WithHealthInterval sets the health check interval
func WithHealthInterval(interval time.Duration) Option {
	return func(s *BaseService) {
		s.healthInterval = interval
	}
}

// OnHealthChange sets a callback for health state changes
func OnHealthChange(fn func(bool)) Option {
	return func(s *BaseService) {
		s.onHealthChange = fn
	}
}

// Name returns the service name
func (s *BaseService) Name() string {
	return s.name
}

// Logger returns the service's structured logger
func (s *BaseService) Logger() *slog.Logger {
	return s.logger
}

// Status returns the current service status
func (s *BaseService) Status() Status {
	return s.status.Load().(Status)
}

// IsHealthy returns whether the service is healthy
func (s *BaseService) IsHealthy() bool {
	return s.healthy.Load()
}

// Health returns the standard health status for the service
func (s *BaseService) Health() health.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.healthy.Load() && s.Status() == StatusRunning {
		failedChecks := s.failedHealthChecks.Load()
		message := fmt.Sprintf("Service is unhealthy (failed checks: %d)", failedChecks)
		return health.NewUnhealthy(s.name, message)
	}

	switch s.Status() {
	case StatusRunning:
		return health.NewHealthy(s.name, "Service operating normally")
	case StatusStarting:
		return health.NewDegraded(s.name, "Service is starting")
	case StatusStopping:
		return health.NewDegraded(s.name, "Service is stopping")
	case StatusStopped:
		return health.NewUnhealthy(s.name, "Service is stopped")
	default:
		return health.NewUnhealthy(s.name, fmt.Sprintf("Unknown status: %v", s.Status()))
	}
}

// Start starts the service
func (s *BaseService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	currentStatus := s.Status()
	if currentStatus == StatusRunning || currentStatus == StatusStarting {
		return nil
	}

	s.status.Store(StatusStarting)
	if s.metricsRegistry != nil {
		s.metricsRegistry.CoreMetrics().RecordServiceStatus(s.name, int(StatusStarting))
	}

	s.done = make(chan struct{})

	startTime := time.Now()
	s.startTime.Store(startTime)
	s.lastActivity.Store(startTime)

	if s.healthInterval > 0 {
		s.healthTicker = time.NewTicker(s.healthInterval)
		s.waitGroup.Add(1)
		go s.healthMonitor()

		// Initial check after startup settles
		go func() {
			time.Sleep(200 * time.Millisecond)
			s.performHealthCheck()
		}()
	}

	s.waitGroup.Add(1)
	go s.contextMonitor(ctx)

	s.status.Store(StatusRunning)
	if s.metricsRegistry != nil {
		s.metricsRegistry.CoreMetrics().RecordServiceStatus(s.name, int(StatusRunning))
	}
	return nil
}

// Stop stops the service gracefully
func (s *BaseService) Stop(timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	currentStatus := s.Status()
	if currentStatus == StatusStopped || currentStatus == StatusStopping {
		return nil
	}

	s.status.Store(StatusStopping)
	if s.metricsRegistry != nil {
		s.metricsRegistry.CoreMetrics().RecordServiceStatus(s.name, int(StatusStopping))
	}

	if s.done != nil {
		select {
		case <-s.done:
		default:
			close(s.done)
		}
	}

	if s.healthTicker != nil {
		s.healthTicker.Stop()
	}

	if timeout == 0 {
		timeout = 5 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.waitGroup.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		// Timeout, force shutdown
	}

	s.status.Store(StatusStopped)
	if s.metricsRegistry != nil {
		s.metricsRegistry.CoreMetrics().RecordServiceStatus(s.name, int(StatusStopped))
	}
	s.healthy.Store(false)

	return nil
}

// SetHealthCheck sets a custom health check function
func (s *BaseService) SetHealthCheck(fn HealthCheckFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthCheckFunc = fn
}

// RecordActivity bumps the processed counter and activity timestamp
func (s *BaseService) RecordActivity() {
	s.eventsProcessed.Add(1)
	s.lastActivity.Store(time.Now())
}

// GetStatus returns the current service information
func (s *BaseService) GetStatus() Info {
	startTime := s.startTime.Load().(time.Time)
	lastActivity := s.lastActivity.Load().(time.Time)

	uptime := time.Duration(0)
	if !startTime.IsZero() && s.Status() == StatusRunning {
		uptime = time.Since(startTime)
	}

	return Info{
		Name:               s.name,
		Status:             s.Status(),
		Uptime:             uptime,
		StartTime:          startTime,
		EventsProcessed:    s.eventsProcessed.Load(),
		LastActivity:       lastActivity,
		HealthChecks:       s.healthChecks.Load(),
		FailedHealthChecks: s.failedHealthChecks.Load(),
	}
}

// RegisterMetrics allows services to register their own domain-specific
// metrics. Concrete services override this.
func (s *BaseService) RegisterMetrics(_ metric.MetricsRegistrar) error {
	return nil
}

func (s *BaseService) healthMonitor() {
	defer s.waitGroup.Done()

	for {
		select {
		case <-s.done:
			return
		case <-s.healthTicker.C:
			s.performHealthCheck()
		}
	}
}

func (s *BaseService) performHealthCheck() {
	s.healthChecks.Add(1)

	var err error

	if s.healthCheckFunc != nil {
		err = s.healthCheckFunc()
	}

	if err == nil && s.nats != nil && !s.nats.IsHealthy() {
		err = natsclient.ErrNotConnected
	}

	wasHealthy := s.healthy.Load()
	isHealthy := err == nil

	if err != nil {
		s.failedHealthChecks.Add(1)
	}

	s.healthy.Store(isHealthy)
	if s.metricsRegistry != nil {
		s.metricsRegistry.CoreMetrics().RecordHealthStatus(s.name, isHealthy)
	}

	if wasHealthy != isHealthy && s.onHealthChange != nil {
		go s.onHealthChange(isHealthy)
	}
}

func (s *BaseService) contextMonitor(ctx context.Context) {
	defer s.waitGroup.Done()

	select {
	case <-ctx.Done():
		s.performGracefulShutdown()
	case <-s.done:
		return
	}
}

func (s *BaseService) performGracefulShutdown() {
	for range 100 {
		current := s.status.Load().(Status)
		if current != StatusRunning {
			return
		}
		if s.status.CompareAndSwap(current, StatusStopping) {
			break
		}
		time.Sleep(time.Microsecond)
	}

	if s.healthTicker != nil {
		s.healthTicker.Stop()
	}

	s.status.Store(StatusStopped)
	if s.metricsRegistry != nil {
		s.metricsRegistry.CoreMetrics().RecordServiceStatus(s.name, int(StatusStopped))
	}
	s.healthy.Store(false)
}

// Service interface defines the contract for all services
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(timeout time.Duration) error
	Status() Status
	IsHealthy() bool
	GetStatus() Info
	Health() health.Status
	RegisterMetrics(registrar metric.MetricsRegistrar) error
}
