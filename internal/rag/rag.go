// Package rag implements retrieval-augmented BDD generation over the
// ingested ticket corpus, and the ingestion flow that builds that corpus.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/HendryAvila/qa-mcp/internal/apperr"
	"github.com/HendryAvila/qa-mcp/internal/cache"
	"github.com/HendryAvila/qa-mcp/internal/connector"
	"github.com/HendryAvila/qa-mcp/internal/embedder"
	"github.com/HendryAvila/qa-mcp/internal/llm"
	"github.com/HendryAvila/qa-mcp/internal/ticket"
	"github.com/HendryAvila/qa-mcp/internal/vectorstore"
)

const tracerName = "github.com/HendryAvila/qa-mcp/internal/rag"

// Pipeline stages reported on GenerationFailed errors.
const (
	StageEmbed    = "embed"
	StageRetrieve = "retrieve"
	StageGenerate = "generate"
	StageParse    = "parse"
	StageLookup   = "lookup"
)

// DefaultTopK is the number of context tickets retrieved per request.
const DefaultTopK = 5

// Output is the result of one generation request.
type Output struct {
	SourceDescription string   `json:"source_description"`
	Scenarios         []string `json:"scenarios"`
	// Context lists the ticket ids used as grounding, most similar first.
	Context []string `json:"context,omitempty"`
	Cached  bool     `json:"cached,omitempty"`
}

// Generator produces BDD scenarios. Both the local Handler and the
// remote proxy client implement it.
type Generator interface {
	GenerateForFeatures(ctx context.Context, description string) (*Output, error)
	GenerateForTicket(ctx context.Context, ticketID string) (*Output, error)
}

// Stats describes the local corpus.
type Stats struct {
	Records    int    `json:"records"`
	Dimensions int    `json:"dimensions"`
	Embedder   string `json:"embedder"`
	Backend    string `json:"backend"`
	Model      string `json:"model,omitempty"`
}

// Config wires a Handler. Cache and Registry are optional.
type Config struct {
	Embedder embedder.Embedder
	Store    vectorstore.Store
	LLM      llm.Client
	Cache    cache.Cache
	Registry *connector.Registry
	TopK     int
}

// Handler is the local Generator.
type Handler struct {
	embedder embedder.Embedder
	store    vectorstore.Store
	llm      llm.Client
	cache    cache.Cache
	registry *connector.Registry
	topK     int
	tracer   trace.Tracer
}

// NewHandler validates cfg and returns a Handler.
func NewHandler(cfg Config) (*Handler, error) {
	if cfg.Embedder == nil || cfg.Store == nil || cfg.LLM == nil {
		return nil, fmt.Errorf("rag: embedder, store and llm are required")
	}
	if cfg.Embedder.Dimensions() != cfg.Store.Dimensions() {
		return nil, apperr.New(apperr.DimensionMismatch,
			"embedder %s produces %d dimensions, store expects %d",
			cfg.Embedder.Name(), cfg.Embedder.Dimensions(), cfg.Store.Dimensions())
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	registry := cfg.Registry
	if registry == nil {
		registry = connector.NewRegistry()
	}
	return &Handler{
		embedder: cfg.Embedder,
		store:    cfg.Store,
		llm:      cfg.LLM,
		cache:    cfg.Cache,
		registry: registry,
		topK:     topK,
		tracer:   otel.Tracer(tracerName),
	}, nil
}

// GenerateForFeatures writes scenarios for a free-text feature description,
// grounded on the most similar stored tickets.
func (h *Handler) GenerateForFeatures(ctx context.Context, description string) (*Output, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, apperr.New(apperr.InvalidInput, "description must not be empty")
	}

	ctx, span := h.tracer.Start(ctx, "rag.generate_for_features")
	defer span.End()

	out, err := h.generate(ctx, description, "")
	return out, endSpan(span, err)
}

// GenerateForTicket writes scenarios for a ticket. The ticket text comes
// from the store, or from the configured trackers when it has not been
// ingested yet. The ticket itself is never part of its own context.
func (h *Handler) GenerateForTicket(ctx context.Context, ticketID string) (*Output, error) {
	ticketID = strings.TrimSpace(ticketID)
	if ticketID == "" {
		return nil, apperr.New(apperr.InvalidInput, "ticket_id must not be empty")
	}

	ctx, span := h.tracer.Start(ctx, "rag.generate_for_ticket",
		trace.WithAttributes(attribute.String("ticket.id", ticketID)))
	defer span.End()

	seed, err := h.lookup(ctx, ticketID)
	if err != nil {
		return nil, endSpan(span, err)
	}

	out, err := h.generate(ctx, seed, ticketID)
	return out, endSpan(span, err)
}

func (h *Handler) lookup(ctx context.Context, ticketID string) (string, error) {
	rec, err := h.store.Get(ctx, ticketID)
	if err == nil {
		return rec.Text, nil
	}
	if !apperr.Is(err, apperr.TicketNotFound) {
		return "", apperr.Stage(StageLookup, err)
	}

	t, err := h.registry.FindTicket(ctx, ticketID)
	if err != nil {
		if apperr.Is(err, apperr.TicketNotFound) {
			return "", err
		}
		return "", apperr.Stage(StageLookup, err)
	}

	text := ticket.CombinedText(t)
	if text == "" {
		return "", apperr.Stage(StageLookup, apperr.New(apperr.EmptyInput, "ticket %q has no title or description", ticketID))
	}
	slog.InfoContext(ctx, "ticket fetched from tracker for generation", "ticket_id", ticketID, "source", t.Source)
	return text, nil
}

// generate runs embed, retrieve, generate and parse for seed. exclude,
// when set, is dropped from the retrieved context.
func (h *Handler) generate(ctx context.Context, seed, exclude string) (*Output, error) {
	start := time.Now()

	vec, err := h.embed(ctx, seed)
	if err != nil {
		return nil, err
	}

	hits, err := h.retrieve(ctx, vec, exclude)
	if err != nil {
		return nil, err
	}

	prompt := buildPrompt(seed, hits)

	text, cached, err := h.complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	scenarios := splitScenarios(text)
	if len(scenarios) == 0 {
		return nil, apperr.Stage(StageParse, apperr.New(apperr.GenerationFailed, "model output contained no scenarios"))
	}

	ids := make([]string, len(hits))
	for i, hit := range hits {
		ids[i] = hit.TicketID
	}

	slog.InfoContext(ctx, "bdd scenarios generated",
		"scenarios", len(scenarios),
		"context_tickets", len(hits),
		"cached", cached,
		"duration_ms", time.Since(start).Milliseconds())

	return &Output{
		SourceDescription: seed,
		Scenarios:         scenarios,
		Context:           ids,
		Cached:            cached,
	}, nil
}

func (h *Handler) embed(ctx context.Context, text string) ([]float32, error) {
	ctx, span := h.tracer.Start(ctx, "rag.embed",
		trace.WithAttributes(attribute.String("embedder", h.embedder.Name())))
	defer span.End()

	vec, err := h.embedder.Embed(ctx, text)
	if err != nil {
		return nil, endSpan(span, apperr.Stage(StageEmbed, err))
	}
	return vec, nil
}

func (h *Handler) retrieve(ctx context.Context, vec []float32, exclude string) ([]vectorstore.Result, error) {
	ctx, span := h.tracer.Start(ctx, "rag.retrieve",
		trace.WithAttributes(attribute.Int("top_k", h.topK)))
	defer span.End()

	k := h.topK
	if exclude != "" {
		k++
	}
	hits, err := h.store.Query(ctx, vec, k)
	if err != nil {
		return nil, endSpan(span, apperr.Stage(StageRetrieve, err))
	}

	out := hits[:0]
	for _, hit := range hits {
		if hit.TicketID == exclude {
			continue
		}
		out = append(out, hit)
	}
	if len(out) > h.topK {
		out = out[:h.topK]
	}
	span.SetAttributes(attribute.Int("hits", len(out)))
	return out, nil
}

// complete returns the model output for p, consulting the cache first.
// Cache failures are logged and never fail the request.
func (h *Handler) complete(ctx context.Context, p llm.Prompt) (string, bool, error) {
	ctx, span := h.tracer.Start(ctx, "rag.generate",
		trace.WithAttributes(attribute.String("model", h.llm.Model())))
	defer span.End()

	var key string
	if h.cache != nil {
		key = cache.Key(h.llm.Model(), p.System, p.User)
		if text, ok, err := h.cache.Get(ctx, key); err != nil {
			slog.WarnContext(ctx, "generation cache read failed", "error", err)
		} else if ok {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return text, true, nil
		}
	}

	text, err := h.llm.Generate(ctx, p)
	if err != nil {
		return "", false, endSpan(span, apperr.Stage(StageGenerate, err))
	}

	if h.cache != nil && len(splitScenarios(text)) > 0 {
		if err := h.cache.Set(ctx, key, text); err != nil {
			slog.WarnContext(ctx, "generation cache write failed", "error", err)
		}
	}
	return text, false, nil
}

// Stats reports corpus size and the active backends.
func (h *Handler) Stats(ctx context.Context) (Stats, error) {
	n, err := h.store.Count(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Records:    n,
		Dimensions: h.store.Dimensions(),
		Embedder:   h.embedder.Name(),
		Backend:    h.store.Backend(),
		Model:      h.llm.Model(),
	}, nil
}

func endSpan(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("error.kind", string(apperr.KindOf(err))))
	}
	return err
}
