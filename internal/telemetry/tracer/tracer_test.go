package tracer

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSetup_NoopWithoutEndpoint(t *testing.T) {
	shutdown, err := Setup(context.Background(), "catpanel-test", Config{})
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := shutdown(ctx); err != nil {
		t.Errorf("noop shutdown error = %v", err)
	}
}

func TestSetup_WithEndpoint(t *testing.T) {
	prev := otel.GetTracerProvider()
	defer otel.SetTracerProvider(prev)

	// Non-routable address; nothing is exported before shutdown.
	shutdown, err := Setup(context.Background(), "catpanel-test", Config{Endpoint: "http://192.0.2.1:4318", SampleRatio: 0.5})
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if _, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); !ok {
		t.Error("global provider not replaced")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown error = %v", err)
	}
}

func TestStartEnd(t *testing.T) {
	prev := otel.GetTracerProvider()
	defer otel.SetTracerProvider(prev)

	rec := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))

	_, span := Start(context.Background(), "load", attribute.String("scheme", "https"))
	End(span, errors.New("boom"))

	_, ok := Start(context.Background(), "load")
	End(ok, nil)

	spans := rec.Ended()
	if len(spans) != 2 {
		t.Fatalf("ended spans = %d, want 2", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("failed span status = %v", spans[0].Status().Code)
	}
	if spans[1].Status().Code == codes.Error {
		t.Error("successful span marked as error")
	}
	if spans[0].InstrumentationScope().Name != Name {
		t.Errorf("scope = %q", spans[0].InstrumentationScope().Name)
	}

	var found bool
	for _, kv := range spans[0].Attributes() {
		if kv.Key == "scheme" && kv.Value.AsString() == "https" {
			found = true
		}
	}
	if !found {
		t.Error("scheme attribute missing")
	}
}
