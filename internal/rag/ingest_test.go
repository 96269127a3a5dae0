package rag

import (
	"context"
	"fmt"
	"testing"

	"github.com/HendryAvila/qa-mcp/internal/apperr"
	"github.com/HendryAvila/qa-mcp/internal/ticket"
)

func TestIngest_PartialFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.emb.failOn = "Shopping cart"

	res, err := f.ingester.Ingest(context.Background(), "JIRA", "", 5)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Fetched != 5 || res.Ingested != 4 {
		t.Errorf("fetched=%d ingested=%d, want 5/4", res.Fetched, res.Ingested)
	}
	if len(res.Skipped) != 1 || res.Skipped[0].TicketID != "QA-3" || res.Skipped[0].Reason == "" {
		t.Errorf("unexpected skipped: %+v", res.Skipped)
	}
	if n, _ := f.store.Count(context.Background()); n != 4 {
		t.Errorf("store holds %d records, want 4", n)
	}
}

func TestIngest_Idempotent(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.ingestAll(t)

	f.static.Tickets[0].Description = "Users sign in with a passkey"
	if _, err := f.ingester.Ingest(ctx, "jira", "", len(corpus)); err != nil {
		t.Fatal(err)
	}

	if n, _ := f.store.Count(ctx); n != len(corpus) {
		t.Errorf("store holds %d records, want %d", n, len(corpus))
	}
	rec, err := f.store.Get(ctx, "QA-1")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Text != "Login page\nUsers sign in with a passkey" {
		t.Errorf("second ingestion should win, got %q", rec.Text)
	}
	if rec.Metadata["source"] != "JIRA" || rec.Metadata["title"] != "Login page" {
		t.Errorf("unexpected metadata: %v", rec.Metadata)
	}
}

func TestIngest_DuplicateIDs(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.static.Tickets = []ticket.Ticket{
		{ID: "QA-1", Title: "Login page", Description: "Users sign in with email", Source: ticket.SourceJira},
		{ID: "QA-2", Title: "Logout", Description: "Users sign out", Source: ticket.SourceJira},
		{ID: "QA-1", Title: "Login page", Description: "Users sign in with a passkey", Source: ticket.SourceJira},
	}

	res, err := f.ingester.Ingest(ctx, "jira", "", 10)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Fetched != 3 || res.Ingested != 2 {
		t.Errorf("fetched=%d ingested=%d, want 3/2", res.Fetched, res.Ingested)
	}
	if n, _ := f.store.Count(ctx); n != 2 {
		t.Errorf("store holds %d records, want 2", n)
	}
	rec, err := f.store.Get(ctx, "QA-1")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Text != "Login page\nUsers sign in with a passkey" {
		t.Errorf("last duplicate should win, got %q", rec.Text)
	}
}

func TestIngest_Truncation(t *testing.T) {
	f := newFixture(t, nil)
	f.static.Tickets = nil
	for i := 1; i <= 10; i++ {
		f.static.Tickets = append(f.static.Tickets, ticket.Ticket{
			ID: fmt.Sprintf("BIG-%d", i), Title: fmt.Sprintf("Ticket number %d", i), Source: ticket.SourceJira,
		})
	}

	res, err := f.ingester.Ingest(context.Background(), "jira", "", 3)
	if err != nil {
		t.Fatal(err)
	}
	if res.Fetched != 3 || res.Ingested != 3 {
		t.Errorf("fetched=%d ingested=%d, want 3/3", res.Fetched, res.Ingested)
	}
}

func TestIngest_InvalidInput(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	tests := []struct {
		source string
		max    int
	}{
		{"bugzilla", 5},
		{"gitlab", 5},
		{"jira", 0},
		{"jira", -1},
	}
	for _, tt := range tests {
		if _, err := f.ingester.Ingest(ctx, tt.source, "", tt.max); !apperr.Is(err, apperr.InvalidInput) {
			t.Errorf("Ingest(%q, %d): expected InvalidInput, got %v", tt.source, tt.max, err)
		}
	}
}

func TestIngest_ConnectorError(t *testing.T) {
	f := newFixture(t, nil)
	f.static.Err = apperr.New(apperr.MalformedQuery, "bad jql")
	if _, err := f.ingester.Ingest(context.Background(), "jira", "project = (", 5); !apperr.Is(err, apperr.MalformedQuery) {
		t.Errorf("expected MalformedQuery, got %v", err)
	}
}

func TestIngest_Cancelled(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.ingester.Ingest(ctx, "jira", "", 5); !apperr.Is(err, apperr.Cancelled) {
		t.Errorf("expected Cancelled, got %v", err)
	}
	if n, _ := f.store.Count(context.Background()); n != 0 {
		t.Errorf("cancelled ingestion stored %d records", n)
	}
}

func TestIngest_SkipsBlankTickets(t *testing.T) {
	f := newFixture(t, nil)
	f.static.Tickets = []ticket.Ticket{
		{ID: "E-1", Title: "  ", Source: ticket.SourceJira},
		{ID: "E-2", Title: "Real ticket", Source: ticket.SourceJira},
	}
	res, err := f.ingester.Ingest(context.Background(), "jira", "", 5)
	if err != nil {
		t.Fatal(err)
	}
	if res.Ingested != 1 || len(res.Skipped) != 1 || res.Skipped[0].TicketID != "E-1" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestMetadataOf(t *testing.T) {
	md := metadataOf(ticket.Ticket{
		Title:  "t",
		Source: ticket.SourceGitLab,
		RawMetadata: map[string]any{
			"status": "open",
			"iid":    int64(7),
			"labels": []string{"a"},
			"empty":  "",
		},
	})
	if md["status"] != "open" || md["iid"] != "7" || md["source"] != "GITLAB" {
		t.Errorf("unexpected metadata: %v", md)
	}
	if _, ok := md["labels"]; ok {
		t.Error("non-scalar fields must be dropped")
	}
	if _, ok := md["empty"]; ok {
		t.Error("empty strings must be dropped")
	}
}
