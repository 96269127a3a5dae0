package ragclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/HendryAvila/qa-mcp/internal/apperr"
	"github.com/HendryAvila/qa-mcp/internal/connector"
	"github.com/HendryAvila/qa-mcp/internal/embedder"
	"github.com/HendryAvila/qa-mcp/internal/llm"
	"github.com/HendryAvila/qa-mcp/internal/rag"
	"github.com/HendryAvila/qa-mcp/internal/ragservice"
	"github.com/HendryAvila/qa-mcp/internal/ticket"
	"github.com/HendryAvila/qa-mcp/internal/vectorstore"
)

type cannedLLM struct{}

func (cannedLLM) Model() string { return "canned" }
func (cannedLLM) Generate(context.Context, llm.Prompt) (string, error) {
	return "Scenario: one\n  Given a\n\nScenario: two\n  Given b", nil
}

// newService starts a real RAG service over a memory store.
func newService(t *testing.T) *Client {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	store := vectorstore.NewMemory(64)
	if err := store.Connect(ctx); err != nil {
		t.Fatal(err)
	}
	emb := embedder.NewHash(64)
	reg := connector.NewRegistry(&connector.Static{Src: ticket.SourceJira, Tickets: []ticket.Ticket{
		{ID: "QA-1", Title: "Login", Description: "Sign in with email", Source: ticket.SourceJira},
		{ID: "QA-2", Title: "Logout", Description: "Sign out from the menu", Source: ticket.SourceJira},
	}})
	h, err := rag.NewHandler(rag.Config{Embedder: emb, Store: store, LLM: cannedLLM{}, Registry: reg})
	if err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(ragservice.NewRouter(ragservice.Config{
		Generator: h,
		Ingester:  rag.NewIngester(reg, emb, store, 0),
		Stats:     h,
	}))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL+"/", nil)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestRoundTrip(t *testing.T) {
	c := newService(t)
	ctx := context.Background()

	res, err := c.Ingest(ctx, "jira", "", 10)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Ingested != 2 || res.Source != ticket.SourceJira {
		t.Errorf("unexpected ingest result: %+v", res)
	}

	out, err := c.GenerateForFeatures(ctx, "sign in & stay signed in")
	if err != nil {
		t.Fatalf("GenerateForFeatures: %v", err)
	}
	if out.SourceDescription != "sign in & stay signed in" || len(out.Scenarios) != 2 {
		t.Errorf("unexpected output: %+v", out)
	}

	out, err = c.GenerateForTicket(ctx, "QA-2")
	if err != nil {
		t.Fatalf("GenerateForTicket: %v", err)
	}
	if len(out.Context) != 1 || out.Context[0] != "QA-1" {
		t.Errorf("context = %v, want [QA-1]", out.Context)
	}

	status, records, err := c.Health(ctx)
	if err != nil || status != "ok" || records != 2 {
		t.Errorf("Health = %q, %d, %v", status, records, err)
	}
}

func TestRoundTrip_Errors(t *testing.T) {
	c := newService(t)
	ctx := context.Background()

	if _, err := c.GenerateForTicket(ctx, "NOPE-1"); !apperr.Is(err, apperr.TicketNotFound) {
		t.Errorf("expected TicketNotFound, got %v", err)
	}
	if _, err := c.GenerateForFeatures(ctx, " "); !apperr.Is(err, apperr.InvalidInput) {
		t.Errorf("expected InvalidInput, got %v", err)
	}
	if _, err := c.Ingest(ctx, "gitlab", "", 5); !apperr.Is(err, apperr.InvalidInput) {
		t.Errorf("expected InvalidInput, got %v", err)
	}
}

func TestUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.GenerateForFeatures(context.Background(), "x"); !apperr.Is(err, apperr.UpstreamUnavailable) {
		t.Errorf("expected UpstreamUnavailable, got %v", err)
	}
}

func TestNonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	c, _ := New(srv.URL, nil)
	if _, err := c.GenerateForTicket(context.Background(), "QA-1"); !apperr.Is(err, apperr.UpstreamUnavailable) {
		t.Errorf("expected UpstreamUnavailable, got %v", err)
	}
}

func TestNew_InvalidURL(t *testing.T) {
	for _, u := range []string{"", "localhost:8090", "://"} {
		if _, err := New(u, nil); err == nil {
			t.Errorf("New(%q): expected error", u)
		}
	}
}
