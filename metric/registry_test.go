package metric

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsRegistry(t *testing.T) {
	registry := NewMetricsRegistry()
	require.NotNil(t, registry)
	assert.NotNil(t, registry.PrometheusRegistry())
	assert.NotNil(t, registry.CoreMetrics())
}

func TestRegisterCounter(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_counter_total",
		Help: "test counter",
	})

	err := registry.RegisterCounter("gateway", "test_counter_total", counter)
	require.NoError(t, err)

	// Same key is rejected
	err = registry.RegisterCounter("gateway", "test_counter_total", counter)
	assert.Error(t, err)
}

func TestRegisterGauge_DistinctServices(t *testing.T) {
	registry := NewMetricsRegistry()

	g1 := prometheus.NewGauge(prometheus.GaugeOpts{Name: "depth_one", Help: "h"})
	g2 := prometheus.NewGauge(prometheus.GaugeOpts{Name: "depth_two", Help: "h"})

	require.NoError(t, registry.RegisterGauge("gateway", "depth_one", g1))
	require.NoError(t, registry.RegisterGauge("orchestrator", "depth_two", g2))
}

func TestUnregister(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "removable_total",
		Help: "test counter",
	})
	require.NoError(t, registry.RegisterCounter("gateway", "removable_total", counter))

	assert.True(t, registry.Unregister("gateway", "removable_total"))
	assert.False(t, registry.Unregister("gateway", "removable_total"))

	// Can register again after unregistering
	assert.NoError(t, registry.RegisterCounter("gateway", "removable_total", counter))
}

func TestCoreMetrics_Record(t *testing.T) {
	registry := NewMetricsRegistry()
	m := registry.CoreMetrics()

	m.RecordServiceStatus("gateway", 2)
	m.RecordIngested("state")
	m.RecordDropped("state", "malformed_topic")
	m.RecordRegistration("controller", "forwarded")
	m.RecordEventPublished("gateway", "device_state_changed")
	m.RecordEventConsumed("orchestrator", "device_state_changed", "success")
	m.RecordSessionsActive(3)
	m.RecordPuzzleSolved("vault")
	m.RecordHealthStatus("gateway", true)
	m.RecordError("gateway", "publish")

	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["snere_gateway_ingested_total"])
	assert.True(t, names["snere_gateway_dropped_total"])
	assert.True(t, names["snere_events_published_total"])
	assert.True(t, names["snere_orchestrator_sessions_active"])
	assert.True(t, names["snere_orchestrator_puzzles_solved_total"])
}

func TestHandler_ServesMetrics(t *testing.T) {
	registry := NewMetricsRegistry()
	registry.CoreMetrics().RecordSessionsActive(1)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	registry.Handler().ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "snere_orchestrator_sessions_active 1")
}
