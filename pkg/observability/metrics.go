package observability

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// The exporter registers collectors with the process-global Prometheus
// registry, which tolerates exactly one registration per metric family.
// Config reloads therefore reuse the first instrument set.
var (
	promMu   sync.Mutex
	promInst *PrometheusMetrics
)

// InitMetrics builds the Prometheus-backed instrument set. The exporter
// registers with the default Prometheus registry, so promhttp.Handler()
// serves everything recorded here. A disabled config yields a nil-safe
// zero-value recorder.
func InitMetrics(ctx context.Context, cfg MetricsConfig) (*PrometheusMetrics, error) {
	if !cfg.Enabled {
		return &PrometheusMetrics{}, nil
	}

	promMu.Lock()
	defer promMu.Unlock()
	if promInst != nil {
		return promInst, nil
	}

	promExporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(promExporter),
	)

	meter := meterProvider.Meter("baton")

	m := &PrometheusMetrics{}

	if m.taskDuration, err = meter.Float64Histogram(
		"baton_task_duration_seconds",
		metric.WithDescription("Workflow task duration in seconds"),
	); err != nil {
		return nil, fmt.Errorf("failed to create task duration histogram: %w", err)
	}

	if m.taskRunsTotal, err = meter.Int64Counter(
		"baton_task_runs_total",
		metric.WithDescription("Total workflow tasks executed"),
	); err != nil {
		return nil, fmt.Errorf("failed to create task runs counter: %w", err)
	}

	if m.taskErrorsTotal, err = meter.Int64Counter(
		"baton_task_errors_total",
		metric.WithDescription("Total workflow task failures"),
	); err != nil {
		return nil, fmt.Errorf("failed to create task errors counter: %w", err)
	}

	if m.agentDuration, err = meter.Float64Histogram(
		"baton_agent_call_duration_seconds",
		metric.WithDescription("Agent call duration in seconds"),
	); err != nil {
		return nil, fmt.Errorf("failed to create agent duration histogram: %w", err)
	}

	if m.agentCallsTotal, err = meter.Int64Counter(
		"baton_agent_calls_total",
		metric.WithDescription("Total agent calls"),
	); err != nil {
		return nil, fmt.Errorf("failed to create agent calls counter: %w", err)
	}

	if m.agentErrorsTotal, err = meter.Int64Counter(
		"baton_agent_errors_total",
		metric.WithDescription("Total agent errors"),
	); err != nil {
		return nil, fmt.Errorf("failed to create agent errors counter: %w", err)
	}

	if m.agentTokensTotal, err = meter.Int64Counter(
		"baton_agent_tokens_used_total",
		metric.WithDescription("Total tokens used by agents"),
	); err != nil {
		return nil, fmt.Errorf("failed to create agent tokens counter: %w", err)
	}

	if m.toolDuration, err = meter.Float64Histogram(
		"baton_tool_execution_duration_seconds",
		metric.WithDescription("Tool execution duration in seconds"),
	); err != nil {
		return nil, fmt.Errorf("failed to create tool duration histogram: %w", err)
	}

	if m.toolCallsTotal, err = meter.Int64Counter(
		"baton_tool_calls_total",
		metric.WithDescription("Total tool calls"),
	); err != nil {
		return nil, fmt.Errorf("failed to create tool calls counter: %w", err)
	}

	if m.toolErrorsTotal, err = meter.Int64Counter(
		"baton_tool_errors_total",
		metric.WithDescription("Total tool errors"),
	); err != nil {
		return nil, fmt.Errorf("failed to create tool errors counter: %w", err)
	}

	if m.retriesTotal, err = meter.Int64Counter(
		"baton_reasoning_retries_total",
		metric.WithDescription("Total reasoning retries after malformed model output"),
	); err != nil {
		return nil, fmt.Errorf("failed to create retries counter: %w", err)
	}

	if m.denialsTotal, err = meter.Int64Counter(
		"baton_tool_denials_total",
		metric.WithDescription("Total tool calls denied at the confirmation gate"),
	); err != nil {
		return nil, fmt.Errorf("failed to create denials counter: %w", err)
	}

	if m.truncationsTotal, err = meter.Int64Counter(
		"baton_tool_truncations_total",
		metric.WithDescription("Total tool outputs truncated to the size cap"),
	); err != nil {
		return nil, fmt.Errorf("failed to create truncations counter: %w", err)
	}

	if m.llmDuration, err = meter.Float64Histogram(
		"baton_llm_request_duration_seconds",
		metric.WithDescription("LLM request duration in seconds"),
	); err != nil {
		return nil, fmt.Errorf("failed to create llm duration histogram: %w", err)
	}

	if m.llmInputTokens, err = meter.Int64Counter(
		"baton_llm_tokens_input_total",
		metric.WithDescription("Total input tokens sent to LLM"),
	); err != nil {
		return nil, fmt.Errorf("failed to create llm input tokens counter: %w", err)
	}

	if m.llmOutputTokens, err = meter.Int64Counter(
		"baton_llm_tokens_output_total",
		metric.WithDescription("Total output tokens from LLM"),
	); err != nil {
		return nil, fmt.Errorf("failed to create llm output tokens counter: %w", err)
	}

	if m.llmErrorsTotal, err = meter.Int64Counter(
		"baton_llm_errors_total",
		metric.WithDescription("Total LLM errors"),
	); err != nil {
		return nil, fmt.Errorf("failed to create llm errors counter: %w", err)
	}

	if m.httpDuration, err = meter.Float64Histogram(
		"baton_http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
	); err != nil {
		return nil, fmt.Errorf("failed to create http duration histogram: %w", err)
	}

	if m.httpRequestsTotal, err = meter.Int64Counter(
		"baton_http_requests_total",
		metric.WithDescription("Total HTTP requests served"),
	); err != nil {
		return nil, fmt.Errorf("failed to create http requests counter: %w", err)
	}

	if m.httpResponseBytes, err = meter.Int64Counter(
		"baton_http_response_bytes_total",
		metric.WithDescription("Total HTTP response bytes"),
	); err != nil {
		return nil, fmt.Errorf("failed to create http response bytes counter: %w", err)
	}

	promInst = m
	return m, nil
}
