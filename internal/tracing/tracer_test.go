package tracing

import (
	"context"
	"errors"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNewProviderDisabledIsNoop(t *testing.T) {
	p, err := NewProvider(Config{Enabled: false})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	if p.Enabled() {
		t.Fatal("expected disabled provider")
	}
	_, span := p.Tracer().Start(context.Background(), "op")
	if span.IsRecording() {
		t.Fatal("noop span must not record")
	}
	span.End()
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestNewProviderRejectsUnknownExporter(t *testing.T) {
	if _, err := NewProvider(Config{Enabled: true, Exporter: "carrier-pigeon"}); err == nil {
		t.Fatal("expected error for unknown exporter")
	}
}

func TestNewProviderEnabledWithoutExporter(t *testing.T) {
	p, err := NewProvider(Config{Enabled: true, Exporter: "none"})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })
	if !p.Enabled() {
		t.Fatal("expected enabled provider")
	}
	_, span := p.Tracer().Start(context.Background(), "op")
	if !span.IsRecording() {
		t.Fatal("expected recording span")
	}
	span.End()
}

func TestEndSpanRecordsError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	_, span := tp.Tracer("test").Start(context.Background(), "failing")
	EndSpan(span, errors.New("boom"))

	ended := recorder.Ended()
	if len(ended) != 1 {
		t.Fatalf("expected 1 ended span, got %d", len(ended))
	}
	if ended[0].Status().Description != "boom" {
		t.Fatalf("expected error status, got %+v", ended[0].Status())
	}
	if len(ended[0].Events()) == 0 {
		t.Fatal("expected recorded error event")
	}
}
