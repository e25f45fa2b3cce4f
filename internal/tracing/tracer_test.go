package tracing

import (
	"context"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInitTracerWithoutEndpointIsNoop(t *testing.T) {
	tp, err := InitTracer(context.Background(), "canteen-test", "test", "")
	if err != nil {
		t.Fatalf("init tracer: %v", err)
	}
	if _, ok := tp.(*sdktrace.TracerProvider); ok {
		t.Fatal("expected no SDK provider without an endpoint")
	}
	if err := Shutdown(context.Background(), tp); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestInitTracerWithEndpoint(t *testing.T) {
	ctx := context.Background()
	tp, err := InitTracer(ctx, "canteen-test", "test", "http://127.0.0.1:14268/api/traces")
	if err != nil {
		t.Fatalf("init tracer: %v", err)
	}
	if _, ok := tp.(*sdktrace.TracerProvider); !ok {
		t.Fatalf("expected SDK provider, got %T", tp)
	}
	_ = Shutdown(ctx, tp)
}
