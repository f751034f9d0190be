package natsclient

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/AaronLay10/snere-rewrite/metric"
)

// connectionMetrics tracks per-client connection health. Each client
// registers under its own name so the hardware and event buses report
// separately on one scrape endpoint.
type connectionMetrics struct {
	status     prometheus.Gauge
	failures   prometheus.Counter
	reconnects prometheus.Counter
	published  *prometheus.CounterVec
	received   *prometheus.CounterVec
}

func newConnectionMetrics(registry *metric.MetricsRegistry, clientName string) (*connectionMetrics, error) {
	prefix := "snere_nats_" + clientName

	m := &connectionMetrics{
		status: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "_connection_status",
			Help: "Connection status (0=disconnected 1=connecting 2=connected 3=reconnecting 4=circuit_open)",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_connection_failures_total",
			Help: "Total connection failures",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_reconnects_total",
			Help: "Total successful reconnections",
		}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_published_total",
			Help: "Messages published by subject",
		}, []string{"subject"}),
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_received_total",
			Help: "Messages received by subscription subject",
		}, []string{"subject"}),
	}

	if err := registry.RegisterGauge(clientName, prefix+"_connection_status", m.status); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(clientName, prefix+"_connection_failures_total", m.failures); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(clientName, prefix+"_reconnects_total", m.reconnects); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(clientName, prefix+"_published_total", m.published); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(clientName, prefix+"_received_total", m.received); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *connectionMetrics) recordStatus(status ConnectionStatus) {
	m.status.Set(float64(status))
}

func (m *connectionMetrics) recordFailure() {
	m.failures.Inc()
}

func (m *connectionMetrics) recordReconnect() {
	m.reconnects.Inc()
}

func (m *connectionMetrics) recordPublished(subject string) {
	m.published.WithLabelValues(subject).Inc()
}

func (m *connectionMetrics) recordReceived(subject string) {
	m.received.WithLabelValues(subject).Inc()
}
