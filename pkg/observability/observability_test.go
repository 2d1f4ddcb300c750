package observability

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMetricsRecordingNilSafe(t *testing.T) {
	ctx := context.Background()

	metrics := &PrometheusMetrics{}

	metrics.RecordTaskRun(ctx, 1, 300*time.Millisecond, nil)
	metrics.RecordTaskRun(ctx, 2, 100*time.Millisecond, errors.New("boom"))
	metrics.RecordAgentCall(ctx, 100*time.Millisecond, 150, nil)
	metrics.RecordAgentCall(ctx, 200*time.Millisecond, 200, errors.New("boom"))
	metrics.RecordToolExecution(ctx, "grep_search", 50*time.Millisecond, nil)
	metrics.RecordToolExecution(ctx, "write_file", 100*time.Millisecond, errors.New("boom"))
	metrics.RecordRetry(ctx, "json_error")
	metrics.RecordDenial(ctx, "execute_command")
	metrics.RecordTruncation(ctx, "read_file")
	metrics.RecordLLMCall(ctx, "deepseek-chat", 500*time.Millisecond, 100, 50, nil)
	metrics.RecordLLMCall(ctx, "deepseek-reasoner", 600*time.Millisecond, 150, 75, errors.New("boom"))
}

func TestInitMetricsDisabled(t *testing.T) {
	m, err := InitMetrics(context.Background(), MetricsConfig{Enabled: false})
	if err != nil {
		t.Fatalf("InitMetrics() error = %v", err)
	}
	if m == nil {
		t.Fatal("InitMetrics() returned nil recorder")
	}

	// Zero-value recorder must accept calls without instruments.
	m.RecordLLMCall(context.Background(), "deepseek-chat", time.Second, 10, 5, nil)
}

func TestInitGlobalTracerDisabled(t *testing.T) {
	tp, err := InitGlobalTracer(context.Background(), TracerConfig{Enabled: false})
	if err != nil {
		t.Fatalf("InitGlobalTracer() error = %v", err)
	}

	_, span := tp.Tracer("test").Start(context.Background(), "test_span")
	defer span.End()

	if span.SpanContext().IsValid() {
		t.Error("disabled tracer should produce non-recording spans")
	}
}

func TestGlobalMetrics(t *testing.T) {
	ctx := context.Background()

	_ = GetGlobalMetrics()

	recorder := &PrometheusMetrics{}
	SetGlobalMetrics(recorder)

	retrieved := GetGlobalMetrics()
	if retrieved == nil {
		t.Error("expected non-nil metrics after SetGlobalMetrics")
	}

	retrieved.RecordAgentCall(ctx, 100*time.Millisecond, 50, nil)
}

func TestManagerDisabled(t *testing.T) {
	mgr := NewManager(Config{})

	if err := mgr.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	tracer := mgr.GetTracer("test")
	_, span := tracer.Start(context.Background(), "noop")
	span.End()

	if mgr.GetMetrics() == nil {
		t.Error("expected metrics recorder even when disabled")
	}

	if err := mgr.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
}
