package rag

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/HendryAvila/qa-mcp/internal/apperr"
	"github.com/HendryAvila/qa-mcp/internal/connector"
	"github.com/HendryAvila/qa-mcp/internal/embedder"
	"github.com/HendryAvila/qa-mcp/internal/ticket"
	"github.com/HendryAvila/qa-mcp/internal/vectorstore"
)

// DefaultIngestConcurrency bounds parallel embedding calls.
const DefaultIngestConcurrency = 4

// IngestResult summarizes one ingestion run.
type IngestResult struct {
	Source   ticket.Source `json:"source"`
	Fetched  int           `json:"fetched"`
	Ingested int           `json:"ingested"`
	Skipped  []Skipped     `json:"skipped,omitempty"`
}

// Skipped is a fetched ticket that was not stored.
type Skipped struct {
	TicketID string `json:"ticket_id"`
	Reason   string `json:"reason"`
}

// Ingester pulls tickets from a tracker into the vector store.
type Ingester struct {
	registry    *connector.Registry
	embedder    embedder.Embedder
	store       vectorstore.Store
	concurrency int
	tracer      trace.Tracer
}

// NewIngester returns an Ingester. concurrency <= 0 uses the default.
func NewIngester(registry *connector.Registry, e embedder.Embedder, s vectorstore.Store, concurrency int) *Ingester {
	if concurrency <= 0 {
		concurrency = DefaultIngestConcurrency
	}
	if registry == nil {
		registry = connector.NewRegistry()
	}
	return &Ingester{
		registry:    registry,
		embedder:    e,
		store:       s,
		concurrency: concurrency,
		tracer:      otel.Tracer(tracerName),
	}
}

// Sources lists the trackers available for ingestion.
func (in *Ingester) Sources() []ticket.Source { return in.registry.Sources() }

// Ingest fetches up to maxItems tickets matching query from source, embeds
// them and stores them in one batch. A ticket that cannot be embedded is
// reported in Skipped; stored tickets keep fetch order.
func (in *Ingester) Ingest(ctx context.Context, source, query string, maxItems int) (*IngestResult, error) {
	src, err := ticket.ParseSource(source)
	if err != nil {
		return nil, apperr.Wrap(apperr.InvalidInput, err, "")
	}
	conn, ok := in.registry.Get(src)
	if !ok {
		return nil, apperr.New(apperr.InvalidInput, "source %s is not configured", src)
	}
	if err := connector.ValidateLimit(maxItems); err != nil {
		return nil, err
	}

	ctx, span := in.tracer.Start(ctx, "rag.ingest", trace.WithAttributes(
		attribute.String("source", string(src)),
		attribute.Int("max_items", maxItems)))
	defer span.End()

	start := time.Now()

	tickets, err := conn.FetchTickets(ctx, query, maxItems)
	if err != nil {
		return nil, endSpan(span, err)
	}

	records, skipped, err := in.embedAll(ctx, tickets)
	if err != nil {
		return nil, endSpan(span, err)
	}

	stored := 0
	if len(records) > 0 {
		stored, err = in.store.Upsert(ctx, records)
		if err != nil {
			return nil, endSpan(span, err)
		}
	}

	span.SetAttributes(
		attribute.Int("fetched", len(tickets)),
		attribute.Int("ingested", stored),
		attribute.Int("skipped", len(skipped)))
	slog.InfoContext(ctx, "tickets ingested",
		"source", src,
		"fetched", len(tickets),
		"ingested", stored,
		"skipped", len(skipped),
		"duration_ms", time.Since(start).Milliseconds())

	return &IngestResult{
		Source:   src,
		Fetched:  len(tickets),
		Ingested: stored,
		Skipped:  skipped,
	}, nil
}

func (in *Ingester) embedAll(ctx context.Context, tickets []ticket.Ticket) ([]vectorstore.Record, []Skipped, error) {
	vectors := make([][]float32, len(tickets))
	reasons := make([]string, len(tickets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.concurrency)
	for i, t := range tickets {
		g.Go(func() error {
			text := ticket.CombinedText(t)
			if text == "" {
				reasons[i] = "ticket has no title or description"
				return nil
			}
			vec, err := in.embedder.Embed(gctx, text)
			if err != nil {
				if apperr.Is(err, apperr.Cancelled) {
					return err
				}
				reasons[i] = apperr.ToToolError(err).Message
				slog.WarnContext(gctx, "ticket skipped during ingestion", "ticket_id", t.ID, "error", err)
				return nil
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if err := apperr.FromContext(ctx); err != nil {
		return nil, nil, err
	}

	// A tracker can page the same ticket twice when it is edited mid-fetch.
	// The batch keeps one record per id: first position, last content.
	var (
		records []vectorstore.Record
		skipped []Skipped
		pos     = make(map[string]int, len(tickets))
	)
	for i, t := range tickets {
		if vectors[i] == nil {
			skipped = append(skipped, Skipped{TicketID: t.ID, Reason: reasons[i]})
			continue
		}
		rec := vectorstore.Record{
			TicketID: t.ID,
			Vector:   vectors[i],
			Text:     ticket.CombinedText(t),
			Metadata: metadataOf(t),
		}
		if j, dup := pos[t.ID]; dup {
			records[j] = rec
			continue
		}
		pos[t.ID] = len(records)
		records = append(records, rec)
	}
	return records, skipped, nil
}

// metadataOf keeps source, title and the scalar tracker fields.
func metadataOf(t ticket.Ticket) map[string]string {
	md := map[string]string{
		"source": string(t.Source),
		"title":  t.Title,
	}
	for k, v := range t.RawMetadata {
		switch val := v.(type) {
		case string:
			if val != "" {
				md[k] = val
			}
		case int, int64, float64, bool:
			md[k] = fmt.Sprint(val)
		}
	}
	return md
}
