package observability

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records the counters and histograms of the run pipeline.
type Metrics interface {
	RecordAgentRun(ctx context.Context, agent, mode string, duration time.Duration, err error)
	RecordToolExecution(ctx context.Context, tool string, duration time.Duration, err error)
	RecordLLMCall(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, err error)
	RecordHTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration)
}

var (
	metricsMu     sync.RWMutex
	globalMetrics Metrics = noopMetrics{}
)

// SetGlobalMetrics installs the process-wide recorder.
func SetGlobalMetrics(m Metrics) {
	if m == nil {
		m = noopMetrics{}
	}
	metricsMu.Lock()
	defer metricsMu.Unlock()
	globalMetrics = m
}

// GetGlobalMetrics returns the process-wide recorder. It is never nil;
// before initialization it is a no-op.
func GetGlobalMetrics() Metrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return globalMetrics
}

// PrometheusMetrics implements Metrics on OTel instruments exported
// through the Prometheus bridge.
type PrometheusMetrics struct {
	agentDuration    metric.Float64Histogram
	agentRunsTotal   metric.Int64Counter
	agentErrorsTotal metric.Int64Counter

	toolDuration    metric.Float64Histogram
	toolCallsTotal  metric.Int64Counter
	toolErrorsTotal metric.Int64Counter

	llmDuration     metric.Float64Histogram
	llmInputTokens  metric.Int64Counter
	llmOutputTokens metric.Int64Counter
	llmErrorsTotal  metric.Int64Counter

	httpDuration      metric.Float64Histogram
	httpRequestsTotal metric.Int64Counter
}

func (m *PrometheusMetrics) RecordAgentRun(ctx context.Context, agent, mode string, duration time.Duration, err error) {
	if m == nil || m.agentDuration == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("agent", agent),
		attribute.String("mode", mode),
	)
	m.agentDuration.Record(ctx, duration.Seconds(), attrs)
	m.agentRunsTotal.Add(ctx, 1, attrs)
	if err != nil {
		m.agentErrorsTotal.Add(ctx, 1, attrs)
	}
}

func (m *PrometheusMetrics) RecordToolExecution(ctx context.Context, tool string, duration time.Duration, err error) {
	if m == nil || m.toolDuration == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("tool", tool))
	m.toolDuration.Record(ctx, duration.Seconds(), attrs)
	m.toolCallsTotal.Add(ctx, 1, attrs)
	if err != nil {
		m.toolErrorsTotal.Add(ctx, 1, attrs)
	}
}

func (m *PrometheusMetrics) RecordLLMCall(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, err error) {
	if m == nil || m.llmDuration == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("model", model))
	m.llmDuration.Record(ctx, duration.Seconds(), attrs)
	m.llmInputTokens.Add(ctx, int64(inputTokens), attrs)
	m.llmOutputTokens.Add(ctx, int64(outputTokens), attrs)
	if err != nil {
		m.llmErrorsTotal.Add(ctx, 1, attrs)
	}
}

func (m *PrometheusMetrics) RecordHTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	if m == nil || m.httpDuration == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status", status),
	)
	m.httpDuration.Record(ctx, duration.Seconds(), attrs)
	m.httpRequestsTotal.Add(ctx, 1, attrs)
}

// noopMetrics discards everything.
type noopMetrics struct{}

func (noopMetrics) RecordAgentRun(context.Context, string, string, time.Duration, error) {}
func (noopMetrics) RecordToolExecution(context.Context, string, time.Duration, error)    {}
func (noopMetrics) RecordLLMCall(context.Context, string, time.Duration, int, int, error) {
}
func (noopMetrics) RecordHTTPRequest(context.Context, string, string, int, time.Duration) {}

// NoopMetrics returns a recorder that discards everything.
func NoopMetrics() Metrics { return noopMetrics{} }
