package observability

import (
	"fmt"

	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kadirpekel/maestro/pkg/config"
)

// InitMetrics wires OTel instruments into the default Prometheus registry.
// Returns nil when metrics are disabled. Instrument names are prefixed
// with the configured namespace.
func InitMetrics(cfg *config.MetricsConfig) (*PrometheusMetrics, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	promExporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(promExporter),
	)
	meter := meterProvider.Meter(DefaultServiceName)

	ns := cfg.Namespace
	if ns == "" {
		ns = DefaultServiceName
	}
	m := &PrometheusMetrics{}

	m.agentDuration, err = meter.Float64Histogram(
		ns+"_agent_run_duration_seconds",
		metric.WithDescription("Agent run duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent duration histogram: %w", err)
	}
	m.agentRunsTotal, err = meter.Int64Counter(
		ns+"_agent_runs_total",
		metric.WithDescription("Total agent runs"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent runs counter: %w", err)
	}
	m.agentErrorsTotal, err = meter.Int64Counter(
		ns+"_agent_errors_total",
		metric.WithDescription("Total agent runs that ended in error"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent errors counter: %w", err)
	}

	m.toolDuration, err = meter.Float64Histogram(
		ns+"_tool_execution_duration_seconds",
		metric.WithDescription("Tool execution duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool duration histogram: %w", err)
	}
	m.toolCallsTotal, err = meter.Int64Counter(
		ns+"_tool_calls_total",
		metric.WithDescription("Total tool calls"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool calls counter: %w", err)
	}
	m.toolErrorsTotal, err = meter.Int64Counter(
		ns+"_tool_errors_total",
		metric.WithDescription("Total failed tool calls"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool errors counter: %w", err)
	}

	m.llmDuration, err = meter.Float64Histogram(
		ns+"_llm_request_duration_seconds",
		metric.WithDescription("LLM request duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm duration histogram: %w", err)
	}
	m.llmInputTokens, err = meter.Int64Counter(
		ns+"_llm_tokens_input_total",
		metric.WithDescription("Total input tokens sent to the LLM"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm input tokens counter: %w", err)
	}
	m.llmOutputTokens, err = meter.Int64Counter(
		ns+"_llm_tokens_output_total",
		metric.WithDescription("Total output tokens from the LLM"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm output tokens counter: %w", err)
	}
	m.llmErrorsTotal, err = meter.Int64Counter(
		ns+"_llm_errors_total",
		metric.WithDescription("Total LLM errors"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm errors counter: %w", err)
	}

	m.httpDuration, err = meter.Float64Histogram(
		ns+"_http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http duration histogram: %w", err)
	}
	m.httpRequestsTotal, err = meter.Int64Counter(
		ns+"_http_requests_total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http requests counter: %w", err)
	}

	return m, nil
}
