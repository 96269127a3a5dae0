package connector

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/HendryAvila/qa-mcp/internal/apperr"
	"github.com/HendryAvila/qa-mcp/internal/ticket"
)

func sampleTickets(n int) []ticket.Ticket {
	out := make([]ticket.Ticket, n)
	for i := range out {
		out[i] = ticket.Ticket{
			ID:     string(rune('A' + i)),
			Title:  "checkout flow",
			Source: ticket.SourceJira,
		}
	}
	return out
}

func TestStatic_Truncates(t *testing.T) {
	c := &Static{Src: ticket.SourceJira, Tickets: sampleTickets(10)}
	got, err := c.FetchTickets(context.Background(), "", 3)
	if err != nil {
		t.Fatalf("FetchTickets: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 tickets, got %d", len(got))
	}
	if got[0].ID != "A" || got[2].ID != "C" {
		t.Errorf("expected fetch order preserved, got %s..%s", got[0].ID, got[2].ID)
	}
}

func TestStatic_RejectsNonPositiveLimit(t *testing.T) {
	c := &Static{Src: ticket.SourceJira}
	for _, limit := range []int{0, -1} {
		_, err := c.FetchTickets(context.Background(), "", limit)
		if !apperr.Is(err, apperr.InvalidInput) {
			t.Errorf("limit %d: expected InvalidInput, got %v", limit, err)
		}
	}
}

func TestRegistry_FindTicket(t *testing.T) {
	jira := &Static{Src: ticket.SourceJira, Tickets: []ticket.Ticket{{ID: "PROJ-1", Title: "a"}}}
	ado := &Static{Src: ticket.SourceAzureDevOps, Tickets: []ticket.Ticket{{ID: "42", Title: "b"}}}
	r := NewRegistry(jira, ado)

	got, err := r.FindTicket(context.Background(), "42")
	if err != nil {
		t.Fatalf("FindTicket: %v", err)
	}
	if got.Title != "b" {
		t.Errorf("expected azure ticket, got %+v", got)
	}

	_, err = r.FindTicket(context.Background(), "missing")
	if !apperr.Is(err, apperr.TicketNotFound) {
		t.Errorf("expected TicketNotFound, got %v", err)
	}
}

func TestRegistry_FindTicket_StopsOnUpstreamFailure(t *testing.T) {
	broken := &Static{Src: ticket.SourceJira, Err: apperr.New(apperr.UpstreamUnavailable, "down")}
	ok := &Static{Src: ticket.SourceGitLab, Tickets: []ticket.Ticket{{ID: "x"}}}
	r := NewRegistry(broken, ok)

	_, err := r.FindTicket(context.Background(), "x")
	if !apperr.Is(err, apperr.UpstreamUnavailable) {
		t.Errorf("expected UpstreamUnavailable, got %v", err)
	}
}

func TestRegistry_RegisterReplaces(t *testing.T) {
	r := NewRegistry(&Static{Src: ticket.SourceJira}, &Static{Src: ticket.SourceJira, Tickets: sampleTickets(1)})
	if r.Len() != 1 {
		t.Fatalf("expected 1 connector, got %d", r.Len())
	}
	c, _ := r.Get(ticket.SourceJira)
	if len(c.(*Static).Tickets) != 1 {
		t.Error("expected later registration to win")
	}
}

func TestHTTPClient_StatusMapping(t *testing.T) {
	tests := []struct {
		status   int
		notFound apperr.Kind
		want     apperr.Kind
	}{
		{http.StatusBadRequest, "", apperr.MalformedQuery},
		{http.StatusUnauthorized, "", apperr.UpstreamUnavailable},
		{http.StatusInternalServerError, "", apperr.UpstreamUnavailable},
		{http.StatusNotFound, "", apperr.UpstreamUnavailable},
		{http.StatusNotFound, apperr.TicketNotFound, apperr.TicketNotFound},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			_, _ = w.Write([]byte(`{"errorMessages":["nope"]}`))
		}))
		c := NewHTTPClient(HTTPConfig{BaseURL: srv.URL, RequestsPerSecond: 100})
		err := c.Do(context.Background(), Request{Path: "/x", NotFound: tt.notFound}, nil)
		srv.Close()

		if got := apperr.KindOf(err); got != tt.want {
			t.Errorf("status %d: kind = %q, want %q", tt.status, got, tt.want)
		}
		if StatusCode(err) != tt.status {
			t.Errorf("status %d: StatusCode() = %d", tt.status, StatusCode(err))
		}
	}
}

func TestHTTPClient_BasicAuthAndDecode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "me@example.com" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"name":"ok"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(HTTPConfig{BaseURL: srv.URL + "/", Username: "me@example.com", Password: "secret"})
	var out struct {
		Name string `json:"name"`
	}
	if err := c.Do(context.Background(), Request{Path: "/x"}, &out); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if out.Name != "ok" {
		t.Errorf("Name = %q", out.Name)
	}
}

func TestHTTPClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewHTTPClient(HTTPConfig{BaseURL: url})
	err := c.Do(context.Background(), Request{Path: "/x"}, nil)
	if !apperr.Is(err, apperr.UpstreamUnavailable) {
		t.Errorf("expected UpstreamUnavailable, got %v", err)
	}
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		t.Error("expected transport error to be normalized")
	}
}

func TestHTTPClient_Cancelled(t *testing.T) {
	c := NewHTTPClient(HTTPConfig{BaseURL: "http://127.0.0.1:1"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.Do(ctx, Request{Path: "/x"}, nil)
	if !apperr.Is(err, apperr.Cancelled) {
		t.Errorf("expected Cancelled, got %v", err)
	}
}
