package tracer

import (
	"context"
	"testing"

	"wattwise/internal/infra/config"
)

func TestSetupDisabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.TracerConfig{Enabled: false})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}

	// Span helpers must work against the noop provider.
	ctx, span := StartSpan(context.Background(), "test.span")
	if ctx == nil {
		t.Fatal("nil context from StartSpan")
	}
	SetOK(span)
	span.End()
}

func TestSetupUnsupportedExporter(t *testing.T) {
	_, err := Setup(context.Background(), config.TracerConfig{Enabled: true, Exporter: "jaeger"})
	if err == nil {
		t.Fatal("expected error for unsupported exporter")
	}
}
