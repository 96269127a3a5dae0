package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
)

func TestSetup_Disabled(t *testing.T) {
	tel, err := Setup(context.Background(), Config{})
	if err != nil || tel != nil {
		t.Fatalf("Setup = %v, %v; want nil, nil", tel, err)
	}
	if err := tel.Shutdown(context.Background()); err != nil {
		t.Errorf("nil Shutdown: %v", err)
	}
}

func TestSetup_Enabled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	tel, err := Setup(context.Background(), Config{Endpoint: srv.URL + "/", ServiceName: "qa-mcp-test", ServiceVersion: "test"})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if tel == nil {
		t.Fatal("expected telemetry when an endpoint is set")
	}

	_, span := otel.Tracer("test").Start(context.Background(), "span")
	if !span.SpanContext().IsValid() {
		t.Error("expected a recording tracer provider")
	}
	span.End()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tel.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestParseHeaders(t *testing.T) {
	got := parseHeaders(" Authorization = Bearer x ,x-team=qa,broken,=v")
	if len(got) != 2 || got["Authorization"] != "Bearer x" || got["x-team"] != "qa" {
		t.Errorf("parseHeaders = %v", got)
	}
	if len(parseHeaders("")) != 0 {
		t.Error("empty input should yield no headers")
	}
}
