package telemetry

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/harrison/fixloop/internal/supervisor"
)

func TestInit_DisabledIsNoop(t *testing.T) {
	before := otel.GetTracerProvider()

	shutdown, err := Init(context.Background(), Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if otel.GetTracerProvider() != before {
		t.Fatalf("disabled telemetry must not replace the global provider")
	}
}

func TestInit_RequiresServiceName(t *testing.T) {
	_, err := Init(context.Background(), Config{Enabled: true})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		raw      string
		endpoint string
		insecure bool
	}{
		{"", "127.0.0.1:4318", true},
		{"http://collector:4318", "collector:4318", true},
		{"https://otel.example.com", "otel.example.com", false},
		{"collector:4318", "collector:4318", false},
	}

	for _, tt := range tests {
		endpoint, insecure, err := parseEndpoint(tt.raw)
		if err != nil {
			t.Fatalf("parseEndpoint(%q): %v", tt.raw, err)
		}
		if endpoint != tt.endpoint || insecure != tt.insecure {
			t.Errorf("parseEndpoint(%q) = (%q, %v), want (%q, %v)", tt.raw, endpoint, insecure, tt.endpoint, tt.insecure)
		}
	}
}

func TestNewTracerProviderWithExporter_EmitsSpans(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()

	tp, shutdown, err := newTracerProviderWithExporter(exp, Config{ServiceName: "fixloop", ServiceVersion: "test"})
	if err != nil {
		t.Fatalf("new tracer provider: %v", err)
	}

	_, sp := tp.Tracer("test").Start(context.Background(), "executor.task")
	sp.End()

	if err := tp.ForceFlush(context.Background()); err != nil {
		t.Fatalf("force flush: %v", err)
	}

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name != "executor.task" {
		t.Fatalf("unexpected span name: %q", spans[0].Name)
	}

	found := false
	for _, kv := range spans[0].Resource.Attributes() {
		if kv.Key == attribute.Key("service.name") && kv.Value.AsString() == "fixloop" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected resource to include service.name=fixloop")
	}

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

type okRunner struct{}

func (okRunner) Run(ctx context.Context, dir, name string, args []string, timeout time.Duration) (supervisor.Launch, error) {
	return supervisor.Launch{Stdout: "ok"}, nil
}

func TestGlobalProviderReceivesSupervisorSpans(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp, shutdown, err := newTracerProviderWithExporter(exp, Config{ServiceName: "fixloop"})
	if err != nil {
		t.Fatalf("new tracer provider: %v", err)
	}
	defer shutdown(context.Background())

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	sup := supervisor.New(okRunner{}, 0, nil)
	if _, err := sup.Execute(context.Background(), supervisor.Invocation{Dir: ".", CommandLine: "dotnet build", MaxRetries: 1}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if err := tp.ForceFlush(context.Background()); err != nil {
		t.Fatalf("force flush: %v", err)
	}

	spans := exp.GetSpans()
	if len(spans) == 0 {
		t.Fatalf("expected supervisor span")
	}
	if spans[0].Name != "supervisor.execute" {
		t.Errorf("unexpected span name: %q", spans[0].Name)
	}
}
