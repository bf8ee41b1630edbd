package observability

import (
	"context"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kadirpekel/maestro/pkg/config"
)

// Manager owns the lifecycle of tracing and metrics for the process.
type Manager struct {
	cfg *config.ObservabilityConfig

	mu      sync.RWMutex
	tracer  *Tracer
	metrics Metrics
}

// NewManager builds an uninitialized manager. A nil config means
// everything stays disabled.
func NewManager(cfg *config.ObservabilityConfig) *Manager {
	return &Manager{cfg: cfg, metrics: NoopMetrics()}
}

// Initialize starts the configured exporters and installs the global
// metrics recorder.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cfg == nil {
		return nil
	}

	tracer, err := NewTracer(ctx, &m.cfg.Tracing)
	if err != nil {
		return err
	}
	m.tracer = tracer

	metrics, err := InitMetrics(&m.cfg.Metrics)
	if err != nil {
		return err
	}
	if metrics != nil {
		m.metrics = metrics
		SetGlobalMetrics(metrics)
	}
	return nil
}

// Tracer returns the configured tracer, possibly nil (nil is safe to
// use).
func (m *Manager) Tracer() *Tracer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tracer
}

// Metrics returns the active recorder, never nil.
func (m *Manager) Metrics() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metrics
}

// MetricsEnabled reports whether the metrics endpoint should be served.
func (m *Manager) MetricsEnabled() bool {
	return m.cfg != nil && m.cfg.Metrics.Enabled
}

// MetricsEndpoint returns the configured path for the metrics handler.
func (m *Manager) MetricsEndpoint() string {
	if m.cfg == nil || m.cfg.Metrics.Endpoint == "" {
		return "/metrics"
	}
	return m.cfg.Metrics.Endpoint
}

// MetricsHandler serves the default Prometheus registry, which the OTel
// bridge feeds.
func (m *Manager) MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// Shutdown flushes pending telemetry.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tracer.Shutdown(ctx)
}
