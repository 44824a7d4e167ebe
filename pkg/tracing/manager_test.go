package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestManager() (*Manager, *tracetest.SpanRecorder) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	return NewManager(tp.Tracer("test")), sr
}

func TestWithSpanSuccess(t *testing.T) {
	m, sr := newTestManager()

	err := m.WithSpan(context.Background(), "list_tasks", []attribute.KeyValue{Project("P-1")}, func(ctx context.Context) error {
		return nil
	})
	if err != nil {
		t.Fatalf("WithSpan: %v", err)
	}

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("got %d ended spans, want 1", len(spans))
	}
	span := spans[0]
	if span.Name() != "list_tasks" {
		t.Errorf("span name = %q", span.Name())
	}
	if span.Status().Code == codes.Error {
		t.Errorf("status = %v, want non-error", span.Status())
	}

	attrs := span.Attributes()
	var sawOp, sawProject bool
	for _, kv := range attrs {
		if kv.Key == KeyOperationName && kv.Value.AsString() == "list_tasks" {
			sawOp = true
		}
		if kv.Key == KeyProjectID && kv.Value.AsString() == "P-1" {
			sawProject = true
		}
	}
	if !sawOp || !sawProject {
		t.Errorf("missing expected attributes: %v", attrs)
	}
}

func TestWithSpanFailureEndsAndRecords(t *testing.T) {
	m, sr := newTestManager()
	boom := errors.New("column not found")

	err := m.WithSpan(context.Background(), "move_task", nil, func(ctx context.Context) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want the original failure", err)
	}

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("span must end on the failure path, got %d ended", len(spans))
	}
	span := spans[0]
	if span.Status().Code != codes.Error {
		t.Errorf("status = %v, want Error", span.Status().Code)
	}
	if span.Status().Description != "column not found" {
		t.Errorf("status description = %q", span.Status().Description)
	}

	var sawException bool
	for _, ev := range span.Events() {
		if ev.Name == "exception" {
			sawException = true
		}
	}
	if !sawException {
		t.Error("no exception event recorded on the span")
	}
}

func TestAmbientHelpersInsideSpan(t *testing.T) {
	m, sr := newTestManager()

	_ = m.WithSpan(context.Background(), "enriched", nil, func(ctx context.Context) error {
		SetSpanAttributes(ctx, Task("T-9"))
		AddSpanEvent(ctx, "cache.miss", attribute.String("key", "board:P-1"))
		RecordException(ctx, errors.New("transient"), KeyErrorKind.String("transient"))
		SetSpanStatus(ctx, codes.Ok, "")
		return nil
	})

	span := sr.Ended()[0]
	var sawTask bool
	for _, kv := range span.Attributes() {
		if kv.Key == KeyTaskID && kv.Value.AsString() == "T-9" {
			sawTask = true
		}
	}
	if !sawTask {
		t.Error("SetSpanAttributes did not reach the ambient span")
	}

	var sawMiss, sawException bool
	for _, ev := range span.Events() {
		switch ev.Name {
		case "cache.miss":
			sawMiss = true
		case "exception":
			sawException = true
		}
	}
	if !sawMiss {
		t.Error("AddSpanEvent did not reach the ambient span")
	}
	if !sawException {
		t.Error("RecordException did not reach the ambient span")
	}
	if span.Status().Code != codes.Ok {
		t.Errorf("status = %v, want Ok", span.Status().Code)
	}
}

func TestAmbientHelpersWithoutSpanAreSafe(t *testing.T) {
	ctx := context.Background()

	// All of these hit otel's no-op span and must not panic.
	if CurrentSpan(ctx) == nil {
		t.Fatal("CurrentSpan returned nil, want a no-op span")
	}
	SetSpanAttributes(ctx, Task("T-1"))
	AddSpanEvent(ctx, "ignored")
	RecordException(ctx, errors.New("ignored"))
	SetSpanStatus(ctx, codes.Error, "ignored")
}

func TestEndedSpanIgnoresMutation(t *testing.T) {
	m, sr := newTestManager()

	ctx, span := m.StartSpan(context.Background(), "short")
	span.End()

	// Recording has stopped: these must all be silent no-ops.
	SetSpanAttributes(ctx, Task("T-late"))
	AddSpanEvent(ctx, "late.event")
	span.SetStatus(codes.Error, "late")

	ended := sr.Ended()[0]
	for _, kv := range ended.Attributes() {
		if kv.Key == KeyTaskID {
			t.Error("attribute applied after End")
		}
	}
	for _, ev := range ended.Events() {
		if ev.Name == "late.event" {
			t.Error("event applied after End")
		}
	}
}

func TestMeasureAddsDurationAndStatus(t *testing.T) {
	m, sr := newTestManager()

	_ = m.Measure(context.Background(), "measured.ok", func(ctx context.Context) error { return nil })
	err := m.Measure(context.Background(), "measured.fail", func(ctx context.Context) error {
		return errors.New("nope")
	})
	if err == nil {
		t.Fatal("Measure must propagate the failure")
	}

	byName := map[string]string{}
	for _, span := range sr.Ended() {
		for _, kv := range span.Attributes() {
			if kv.Key == KeyOperationStatus {
				byName[span.Name()] = kv.Value.AsString()
			}
		}
		var sawDuration bool
		for _, kv := range span.Attributes() {
			if kv.Key == KeyOperationDurationMs {
				sawDuration = true
			}
		}
		if !sawDuration {
			t.Errorf("span %s missing duration attribute", span.Name())
		}
	}
	if byName["measured.ok"] != "success" {
		t.Errorf("measured.ok status = %q", byName["measured.ok"])
	}
	if byName["measured.fail"] != "error" {
		t.Errorf("measured.fail status = %q", byName["measured.fail"])
	}
}
