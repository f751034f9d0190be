// Package metric provides Prometheus metrics for the platform. A single
// MetricsRegistry backs one scrape endpoint; services register their own
// collectors alongside the core platform metrics defined here.
package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the platform-level metrics shared by every service
type Metrics struct {
	// Service metrics
	ServiceStatus      *prometheus.GaugeVec
	ProcessingDuration *prometheus.HistogramVec
	ErrorsTotal        *prometheus.CounterVec
	HealthCheckStatus  *prometheus.GaugeVec

	// Ingestion metrics
	EventsIngested *prometheus.CounterVec
	EventsDropped  *prometheus.CounterVec
	Registrations  *prometheus.CounterVec

	// Domain event metrics
	EventsPublished *prometheus.CounterVec
	EventsConsumed  *prometheus.CounterVec

	// Orchestration metrics
	SessionsActive prometheus.Gauge
	PuzzlesSolved  *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all platform metrics
func NewMetrics() *Metrics {
	return &Metrics{
		ServiceStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "snere",
				Subsystem: "service",
				Name:      "status",
				Help:      "Service status (0=stopped, 1=starting, 2=running, 3=stopping, 4=failed)",
			},
			[]string{"service"},
		),

		ProcessingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "snere",
				Subsystem: "processing",
				Name:      "duration_seconds",
				Help:      "Message processing duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"service", "operation"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "snere",
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of errors",
			},
			[]string{"service", "type"},
		),

		HealthCheckStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "snere",
				Subsystem: "health",
				Name:      "status",
				Help:      "Health check status (0=unhealthy, 1=healthy)",
			},
			[]string{"service"},
		),

		EventsIngested: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "snere",
				Subsystem: "gateway",
				Name:      "ingested_total",
				Help:      "Hardware messages ingested by channel",
			},
			[]string{"channel"},
		),

		EventsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "snere",
				Subsystem: "gateway",
				Name:      "dropped_total",
				Help:      "Hardware messages dropped by reason",
			},
			[]string{"channel", "reason"},
		),

		Registrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "snere",
				Subsystem: "gateway",
				Name:      "registrations_total",
				Help:      "Registration forwards by kind and outcome",
			},
			[]string{"kind", "status"},
		),

		EventsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "snere",
				Subsystem: "events",
				Name:      "published_total",
				Help:      "Domain events published by producing service and type",
			},
			[]string{"service", "type"},
		),

		EventsConsumed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "snere",
				Subsystem: "events",
				Name:      "consumed_total",
				Help:      "Domain events consumed by service, type and outcome",
			},
			[]string{"service", "type", "status"},
		),

		SessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "snere",
				Subsystem: "orchestrator",
				Name:      "sessions_active",
				Help:      "Game sessions currently in a non-terminal state",
			},
		),

		PuzzlesSolved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "snere",
				Subsystem: "orchestrator",
				Name:      "puzzles_solved_total",
				Help:      "Puzzles solved by room",
			},
			[]string{"room"},
		),
	}
}

// RecordServiceStatus updates service status metric
func (c *Metrics) RecordServiceStatus(service string, status int) {
	c.ServiceStatus.WithLabelValues(service).Set(float64(status))
}

// RecordProcessingDuration records processing time
func (c *Metrics) RecordProcessingDuration(service, operation string, duration time.Duration) {
	c.ProcessingDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
}

// RecordError increments the error counter
func (c *Metrics) RecordError(service, errorType string) {
	c.ErrorsTotal.WithLabelValues(service, errorType).Inc()
}

// RecordHealthStatus updates health check status
func (c *Metrics) RecordHealthStatus(service string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	c.HealthCheckStatus.WithLabelValues(service).Set(value)
}

// RecordIngested increments the ingested message counter for a channel
func (c *Metrics) RecordIngested(channel string) {
	c.EventsIngested.WithLabelValues(channel).Inc()
}

// RecordDropped increments the dropped message counter
func (c *Metrics) RecordDropped(channel, reason string) {
	c.EventsDropped.WithLabelValues(channel, reason).Inc()
}

// RecordRegistration increments the registration forward counter
func (c *Metrics) RecordRegistration(kind, status string) {
	c.Registrations.WithLabelValues(kind, status).Inc()
}

// RecordEventPublished increments the published event counter
func (c *Metrics) RecordEventPublished(service, eventType string) {
	c.EventsPublished.WithLabelValues(service, eventType).Inc()
}

// RecordEventConsumed increments the consumed event counter
func (c *Metrics) RecordEventConsumed(service, eventType, status string) {
	c.EventsConsumed.WithLabelValues(service, eventType, status).Inc()
}

// RecordSessionsActive sets the active session gauge
func (c *Metrics) RecordSessionsActive(n int) {
	c.SessionsActive.Set(float64(n))
}

// RecordPuzzleSolved increments the solved puzzle counter for a room
func (c *Metrics) RecordPuzzleSolved(room string) {
	c.PuzzlesSolved.WithLabelValues(room).Inc()
}
