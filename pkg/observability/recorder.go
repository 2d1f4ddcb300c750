package observability

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	globalMetrics Metrics
	metricsMu     sync.RWMutex
)

type Metrics interface {
	RecordTaskRun(ctx context.Context, step int, duration time.Duration, err error)
	RecordAgentCall(ctx context.Context, duration time.Duration, tokens int, err error)
	RecordToolExecution(ctx context.Context, tool string, duration time.Duration, err error)
	RecordRetry(ctx context.Context, kind string)
	RecordDenial(ctx context.Context, tool string)
	RecordTruncation(ctx context.Context, tool string)
	RecordLLMCall(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, err error)
	RecordHTTPRequest(ctx context.Context, method, route string, status int, duration time.Duration, size int)
}

// PrometheusMetrics records onto OTel instruments. The zero value is a
// valid recorder that drops everything, so callers never need nil checks
// on individual instruments.
type PrometheusMetrics struct {
	taskDuration    metric.Float64Histogram
	taskRunsTotal   metric.Int64Counter
	taskErrorsTotal metric.Int64Counter

	agentDuration    metric.Float64Histogram
	agentCallsTotal  metric.Int64Counter
	agentErrorsTotal metric.Int64Counter
	agentTokensTotal metric.Int64Counter

	toolDuration    metric.Float64Histogram
	toolCallsTotal  metric.Int64Counter
	toolErrorsTotal metric.Int64Counter

	retriesTotal     metric.Int64Counter
	denialsTotal     metric.Int64Counter
	truncationsTotal metric.Int64Counter

	llmDuration     metric.Float64Histogram
	llmInputTokens  metric.Int64Counter
	llmOutputTokens metric.Int64Counter
	llmErrorsTotal  metric.Int64Counter

	httpDuration      metric.Float64Histogram
	httpRequestsTotal metric.Int64Counter
	httpResponseBytes metric.Int64Counter
}

func (m *PrometheusMetrics) RecordTaskRun(ctx context.Context, step int, duration time.Duration, err error) {
	if m == nil || m.taskDuration == nil || m.taskRunsTotal == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("step", strconv.Itoa(step)),
	}

	m.taskDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.taskRunsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))

	if err != nil && m.taskErrorsTotal != nil {
		m.taskErrorsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func (m *PrometheusMetrics) RecordAgentCall(ctx context.Context, duration time.Duration, tokens int, err error) {
	if m == nil || m.agentDuration == nil || m.agentCallsTotal == nil {
		return
	}

	m.agentDuration.Record(ctx, duration.Seconds())
	m.agentCallsTotal.Add(ctx, 1)

	if tokens > 0 && m.agentTokensTotal != nil {
		m.agentTokensTotal.Add(ctx, int64(tokens))
	}

	if err != nil && m.agentErrorsTotal != nil {
		m.agentErrorsTotal.Add(ctx, 1)
	}
}

func (m *PrometheusMetrics) RecordToolExecution(ctx context.Context, tool string, duration time.Duration, err error) {
	if m == nil || m.toolDuration == nil || m.toolCallsTotal == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("tool", tool),
	}

	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.toolCallsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))

	if err != nil && m.toolErrorsTotal != nil {
		m.toolErrorsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordRetry counts one reasoning retry after unusable model output.
func (m *PrometheusMetrics) RecordRetry(ctx context.Context, kind string) {
	if m == nil || m.retriesTotal == nil {
		return
	}
	m.retriesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordDenial counts one tool call rejected at the confirmation gate.
func (m *PrometheusMetrics) RecordDenial(ctx context.Context, tool string) {
	if m == nil || m.denialsTotal == nil {
		return
	}
	m.denialsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("tool", tool)))
}

// RecordTruncation counts one tool output cut to the size cap.
func (m *PrometheusMetrics) RecordTruncation(ctx context.Context, tool string) {
	if m == nil || m.truncationsTotal == nil {
		return
	}
	m.truncationsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("tool", tool)))
}

func (m *PrometheusMetrics) RecordLLMCall(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, err error) {
	if m == nil || m.llmDuration == nil || m.llmInputTokens == nil || m.llmOutputTokens == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("model", model),
	}

	m.llmDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.llmInputTokens.Add(ctx, int64(inputTokens), metric.WithAttributes(attrs...))
	m.llmOutputTokens.Add(ctx, int64(outputTokens), metric.WithAttributes(attrs...))

	if err != nil && m.llmErrorsTotal != nil {
		m.llmErrorsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func (m *PrometheusMetrics) RecordHTTPRequest(ctx context.Context, method, route string, status int, duration time.Duration, size int) {
	if m == nil || m.httpDuration == nil || m.httpRequestsTotal == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.String("status", strconv.Itoa(status)),
	}

	m.httpDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.httpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))

	if m.httpResponseBytes != nil {
		m.httpResponseBytes.Add(ctx, int64(size), metric.WithAttributes(attrs...))
	}
}

func SetGlobalMetrics(m Metrics) {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	globalMetrics = m
}

func GetGlobalMetrics() Metrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return globalMetrics
}
