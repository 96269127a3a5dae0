// Package connector fetches work items from issue trackers and normalizes
// them into ticket.Ticket records.
//
// Concrete trackers live in subpackages (jira, azuredevops, gitlab). They
// are constructed explicitly and handed to a Registry, which the RAG
// handler and the ingestion pipeline receive at construction time.
package connector

import (
	"context"
	"strings"

	"github.com/HendryAvila/qa-mcp/internal/apperr"
	"github.com/HendryAvila/qa-mcp/internal/ticket"
)

// Connector is an issue tracker client.
//
// FetchTickets never returns more than limit tickets. Errors are classified
// as MalformedQuery, UpstreamUnavailable, Cancelled, InvalidInput or Unknown.
// FetchTicket reports TicketNotFound when the tracker has no such item or
// the id is not in this tracker's format.
type Connector interface {
	Source() ticket.Source
	FetchTickets(ctx context.Context, query string, limit int) ([]ticket.Ticket, error)
	FetchTicket(ctx context.Context, id string) (ticket.Ticket, error)
}

// ValidateLimit rejects non-positive limits.
func ValidateLimit(limit int) error {
	if limit < 1 {
		return apperr.New(apperr.InvalidInput, "limit must be a positive integer, got %d", limit)
	}
	return nil
}

// Truncate caps tickets at limit.
func Truncate(tickets []ticket.Ticket, limit int) []ticket.Ticket {
	if len(tickets) > limit {
		return tickets[:limit]
	}
	return tickets
}

// ─── Registry ────────────────────────────────────────────────────────────────

// Registry maps sources to their configured connector.
type Registry struct {
	order []ticket.Source
	bySrc map[ticket.Source]Connector
}

// NewRegistry registers the given connectors. A later connector for the
// same source replaces an earlier one.
func NewRegistry(connectors ...Connector) *Registry {
	r := &Registry{bySrc: make(map[ticket.Source]Connector)}
	for _, c := range connectors {
		r.Register(c)
	}
	return r
}

// Register adds or replaces the connector for c.Source().
func (r *Registry) Register(c Connector) {
	src := c.Source()
	if _, exists := r.bySrc[src]; !exists {
		r.order = append(r.order, src)
	}
	r.bySrc[src] = c
}

// Get returns the connector for src.
func (r *Registry) Get(src ticket.Source) (Connector, bool) {
	c, ok := r.bySrc[src]
	return c, ok
}

// Sources lists registered sources in registration order.
func (r *Registry) Sources() []ticket.Source {
	out := make([]ticket.Source, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered connectors.
func (r *Registry) Len() int { return len(r.order) }

// FindTicket asks each connector in registration order for id and returns
// the first match. Any failure other than TicketNotFound stops the search.
func (r *Registry) FindTicket(ctx context.Context, id string) (ticket.Ticket, error) {
	for _, src := range r.order {
		t, err := r.bySrc[src].FetchTicket(ctx, id)
		if err == nil {
			return t, nil
		}
		if apperr.Is(err, apperr.TicketNotFound) {
			continue
		}
		return ticket.Ticket{}, err
	}
	return ticket.Ticket{}, apperr.New(apperr.TicketNotFound, "ticket %q not found in any configured tracker", id)
}

// ─── Static ──────────────────────────────────────────────────────────────────

// Static serves a fixed set of tickets. It backs tests and offline demos.
type Static struct {
	Src     ticket.Source
	Tickets []ticket.Ticket
	// Err, when set, is returned by every call.
	Err error
}

// Source implements Connector.
func (s *Static) Source() ticket.Source { return s.Src }

// FetchTickets returns tickets whose title or description contains query
// (case-insensitive). An empty query matches everything.
func (s *Static) FetchTickets(ctx context.Context, query string, limit int) ([]ticket.Ticket, error) {
	if err := ValidateLimit(limit); err != nil {
		return nil, err
	}
	if err := apperr.FromContext(ctx); err != nil {
		return nil, err
	}
	if s.Err != nil {
		return nil, s.Err
	}

	q := strings.ToLower(strings.TrimSpace(query))
	var out []ticket.Ticket
	for _, t := range s.Tickets {
		if q == "" ||
			strings.Contains(strings.ToLower(t.Title), q) ||
			strings.Contains(strings.ToLower(t.Description), q) {
			out = append(out, t)
		}
	}
	return Truncate(out, limit), nil
}

// FetchTicket implements Connector.
func (s *Static) FetchTicket(ctx context.Context, id string) (ticket.Ticket, error) {
	if err := apperr.FromContext(ctx); err != nil {
		return ticket.Ticket{}, err
	}
	if s.Err != nil {
		return ticket.Ticket{}, s.Err
	}
	for _, t := range s.Tickets {
		if t.ID == id {
			return t, nil
		}
	}
	return ticket.Ticket{}, apperr.New(apperr.TicketNotFound, "ticket %q not found", id)
}
