package observability

import (
	"context"
	"io"
	"log/slog"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSetup_DefaultEndpoint(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Endpoint:    "", // empty should use default
		Environment: "test",
		ServiceName: "test-service",
		SampleRatio: 1.0,
	}

	ctx := context.Background()
	shutdown := Setup(ctx, cfg, testLogger())
	if shutdown == nil {
		t.Fatal("Setup() returned nil shutdown")
	}

	// No spans were recorded; shutdown must flush cleanly.
	if err := shutdown(ctx); err != nil {
		t.Errorf("shutdown() error = %v", err)
	}
}

func TestSetup_CollectorUnavailable_GracefulDegradation(t *testing.T) {
	t.Parallel()

	// Point at a collector that does not exist. Setup must not fail;
	// spans will fail to export silently.
	cfg := Config{
		Endpoint:    "localhost:1",
		Environment: "test",
		ServiceName: "graceful-test",
	}

	ctx := context.Background()
	shutdown := Setup(ctx, cfg, testLogger())
	if shutdown == nil {
		t.Fatal("Setup() returned nil shutdown")
	}
	if err := shutdown(ctx); err != nil {
		t.Errorf("shutdown() error = %v", err)
	}
}

func TestDefaultEndpoint_Value(t *testing.T) {
	t.Parallel()

	if DefaultEndpoint != "localhost:4318" {
		t.Errorf("DefaultEndpoint = %q", DefaultEndpoint)
	}
}
