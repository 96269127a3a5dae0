package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/qa-mcp/internal/apperr"
	"github.com/HendryAvila/qa-mcp/internal/rag"
	"github.com/HendryAvila/qa-mcp/internal/ticket"
	"github.com/HendryAvila/qa-mcp/internal/weather"
)

// ─── Helpers ─────────────────────────────────────────────────────────────────

func makeReq(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(r *mcp.CallToolResult) string {
	if r == nil || len(r.Content) == 0 {
		return ""
	}
	for _, c := range r.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

// toolErr decodes an error result and fails the test if r is not one.
func toolErr(t *testing.T, r *mcp.CallToolResult) apperr.ToolError {
	t.Helper()
	if r == nil || !r.IsError {
		t.Fatalf("expected error result, got %q", resultText(r))
	}
	var te apperr.ToolError
	if err := json.Unmarshal([]byte(resultText(r)), &te); err != nil {
		t.Fatalf("error result is not JSON: %v (%q)", err, resultText(r))
	}
	return te
}

type stubGenerator struct {
	out *rag.Output
	err error
}

func (s stubGenerator) GenerateForFeatures(context.Context, string) (*rag.Output, error) {
	return s.out, s.err
}

func (s stubGenerator) GenerateForTicket(context.Context, string) (*rag.Output, error) {
	return s.out, s.err
}

type stubWeather struct {
	lat, lon float64
}

func (s *stubWeather) Alerts(_ context.Context, state string) ([]weather.Alert, error) {
	if state == "XX" {
		return nil, apperr.New(apperr.UpstreamUnavailable, "nws down")
	}
	return []weather.Alert{{Event: "Flood Watch", AreaDesc: "Austin", Severity: "Severe"}}, nil
}

func (s *stubWeather) Forecast(_ context.Context, lat, lon float64) ([]weather.Period, error) {
	s.lat, s.lon = lat, lon
	return []weather.Period{{Name: "Tonight", Temperature: 55, TemperatureUnit: "F"}}, nil
}

type stubIngester struct {
	max int
	err error
}

func (s *stubIngester) Sources() []ticket.Source { return []ticket.Source{ticket.SourceJira} }

func (s *stubIngester) Ingest(_ context.Context, source, _ string, maxItems int) (*rag.IngestResult, error) {
	s.max = maxItems
	if s.err != nil {
		return nil, s.err
	}
	return &rag.IngestResult{Source: ticket.SourceJira, Fetched: 3, Ingested: 2,
		Skipped: []rag.Skipped{{TicketID: "QA-3", Reason: "embedding failed"}}}, nil
}

// ─── greet / add ─────────────────────────────────────────────────────────────

func TestGreetTool(t *testing.T) {
	tool := NewGreetTool("sse")
	res, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{"name": "Ada"}))
	if err != nil {
		t.Fatal(err)
	}
	if got := resultText(res); got != "Hello, Ada! Welcome to the SSE server." {
		t.Errorf("got %q", got)
	}

	res, _ = tool.Handle(context.Background(), makeReq(map[string]interface{}{}))
	if te := toolErr(t, res); te.Kind != apperr.InvalidInput {
		t.Errorf("kind = %s", te.Kind)
	}
}

func TestAddTool(t *testing.T) {
	tool := NewAddTool()
	tests := []struct {
		args map[string]interface{}
		want string
	}{
		{map[string]interface{}{"a": float64(2), "b": float64(3)}, "The sum of 2 and 3 is 5."},
		{map[string]interface{}{"a": float64(-4), "b": float64(0)}, "The sum of -4 and 0 is -4."},
	}
	for _, tt := range tests {
		res, err := tool.Handle(context.Background(), makeReq(tt.args))
		if err != nil {
			t.Fatal(err)
		}
		if got := resultText(res); got != tt.want {
			t.Errorf("got %q, want %q", got, tt.want)
		}
	}

	for _, args := range []map[string]interface{}{
		{"a": float64(1)},
		{"a": 1.5, "b": float64(1)},
		{"a": "one", "b": float64(1)},
	} {
		res, _ := tool.Handle(context.Background(), makeReq(args))
		if te := toolErr(t, res); te.Kind != apperr.InvalidInput {
			t.Errorf("%v: kind = %s", args, te.Kind)
		}
	}
}

// ─── weather ─────────────────────────────────────────────────────────────────

func TestAlertsTool(t *testing.T) {
	tool := NewAlertsTool(&stubWeather{})
	res, _ := tool.Handle(context.Background(), makeReq(map[string]interface{}{"state": "TX"}))
	if !strings.Contains(resultText(res), "Event: Flood Watch") {
		t.Errorf("got %q", resultText(res))
	}

	res, _ = tool.Handle(context.Background(), makeReq(map[string]interface{}{"state": "XX"}))
	if te := toolErr(t, res); te.Kind != apperr.UpstreamUnavailable {
		t.Errorf("kind = %s", te.Kind)
	}
}

func TestForecastTool(t *testing.T) {
	w := &stubWeather{}
	tool := NewForecastTool(w)
	res, _ := tool.Handle(context.Background(), makeReq(map[string]interface{}{"latitude": 30.27, "longitude": -97.74}))
	if !strings.Contains(resultText(res), "Tonight") {
		t.Errorf("got %q", resultText(res))
	}
	if w.lat != 30.27 || w.lon != -97.74 {
		t.Errorf("coordinates = %v,%v", w.lat, w.lon)
	}

	res, _ = tool.Handle(context.Background(), makeReq(map[string]interface{}{"latitude": 30.27}))
	if te := toolErr(t, res); te.Kind != apperr.InvalidInput {
		t.Errorf("kind = %s", te.Kind)
	}
}

// ─── BDD ─────────────────────────────────────────────────────────────────────

func TestFeaturesTool(t *testing.T) {
	out := &rag.Output{SourceDescription: "login", Scenarios: []string{"Scenario: a", "Scenario: b"}}
	tool := NewFeaturesTool(stubGenerator{out: out})

	res, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{"description": "login"}))
	if err != nil {
		t.Fatal(err)
	}
	var got rag.Output
	if err := json.Unmarshal([]byte(resultText(res)), &got); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	if got.SourceDescription != "login" || len(got.Scenarios) != 2 {
		t.Errorf("got %+v", got)
	}
	if !strings.Contains(resultText(res), `"source_description"`) {
		t.Error("expected source_description field")
	}
}

func TestFeaturesTool_Errors(t *testing.T) {
	res, _ := NewFeaturesTool(stubGenerator{}).Handle(context.Background(), makeReq(map[string]interface{}{"description": "  "}))
	if te := toolErr(t, res); te.Kind != apperr.InvalidInput {
		t.Errorf("kind = %s", te.Kind)
	}

	gen := stubGenerator{err: apperr.Stage(rag.StageGenerate, apperr.New(apperr.UpstreamUnavailable, "model down"))}
	res, err := NewFeaturesTool(gen).Handle(context.Background(), makeReq(map[string]interface{}{"description": "x"}))
	if err != nil {
		t.Fatalf("domain failures must not be Go errors: %v", err)
	}
	te := toolErr(t, res)
	if te.Kind != apperr.GenerationFailed || te.Stage != rag.StageGenerate || te.Message == "" {
		t.Errorf("got %+v", te)
	}
}

func TestTicketTool(t *testing.T) {
	res, _ := NewTicketTool(stubGenerator{err: apperr.New(apperr.TicketNotFound, "nope")}).
		Handle(context.Background(), makeReq(map[string]interface{}{"ticket_id": "missing-id"}))
	if te := toolErr(t, res); te.Kind != apperr.TicketNotFound {
		t.Errorf("kind = %s", te.Kind)
	}

	res, _ = NewTicketTool(stubGenerator{out: &rag.Output{Scenarios: []string{"Scenario: x"}}}).
		Handle(context.Background(), makeReq(map[string]interface{}{"ticket_id": "QA-1"}))
	if res.IsError || !strings.Contains(resultText(res), "Scenario: x") {
		t.Errorf("got %q", resultText(res))
	}
}

// ─── ingest / stats ──────────────────────────────────────────────────────────

func TestIngestTool(t *testing.T) {
	in := &stubIngester{}
	tool := NewIngestTool(in)

	res, _ := tool.Handle(context.Background(), makeReq(map[string]interface{}{"source": "jira", "query": "login"}))
	if res.IsError {
		t.Fatalf("unexpected error: %s", resultText(res))
	}
	if in.max != DefaultMaxItems {
		t.Errorf("max_items default = %d", in.max)
	}
	var got rag.IngestResult
	if err := json.Unmarshal([]byte(resultText(res)), &got); err != nil {
		t.Fatal(err)
	}
	if got.Ingested != 2 || len(got.Skipped) != 1 {
		t.Errorf("got %+v", got)
	}

	_, _ = tool.Handle(context.Background(), makeReq(map[string]interface{}{"source": "jira", "max_items": float64(3)}))
	if in.max != 3 {
		t.Errorf("max_items = %d", in.max)
	}

	res, _ = tool.Handle(context.Background(), makeReq(map[string]interface{}{"query": "x"}))
	if te := toolErr(t, res); te.Kind != apperr.InvalidInput {
		t.Errorf("kind = %s", te.Kind)
	}

	in.err = apperr.New(apperr.MalformedQuery, "bad jql")
	res, _ = tool.Handle(context.Background(), makeReq(map[string]interface{}{"source": "jira"}))
	if te := toolErr(t, res); te.Kind != apperr.MalformedQuery {
		t.Errorf("kind = %s", te.Kind)
	}
}

func TestIngestTool_DefinitionListsSources(t *testing.T) {
	def := NewIngestTool(&stubIngester{}).Definition()
	data, err := json.Marshal(def)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"JIRA"`) {
		t.Errorf("source enum missing from schema: %s", data)
	}
}

type stubStats struct{}

func (stubStats) Stats(context.Context) (rag.Stats, error) {
	return rag.Stats{Records: 12, Dimensions: 384, Embedder: "hash", Backend: "sqlite"}, nil
}

func TestStatsTool(t *testing.T) {
	res, _ := NewStatsTool(stubStats{}).Handle(context.Background(), makeReq(nil))
	if !strings.Contains(resultText(res), `"records": 12`) {
		t.Errorf("got %q", resultText(res))
	}
}

func TestInstrument(t *testing.T) {
	called := false
	h := Instrument("greet", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		called = true
		return mcp.NewToolResultText("ok"), nil
	})
	res, err := h(context.Background(), makeReq(nil))
	if err != nil || !called || resultText(res) != "ok" {
		t.Errorf("Instrument changed the result: %v %q", err, resultText(res))
	}
}
