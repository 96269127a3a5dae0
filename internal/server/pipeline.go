package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/HendryAvila/qa-mcp/internal/cache"
	"github.com/HendryAvila/qa-mcp/internal/config"
	"github.com/HendryAvila/qa-mcp/internal/connector"
	"github.com/HendryAvila/qa-mcp/internal/connector/azuredevops"
	"github.com/HendryAvila/qa-mcp/internal/connector/gitlab"
	"github.com/HendryAvila/qa-mcp/internal/connector/jira"
	"github.com/HendryAvila/qa-mcp/internal/embedder"
	"github.com/HendryAvila/qa-mcp/internal/llm"
	"github.com/HendryAvila/qa-mcp/internal/rag"
	"github.com/HendryAvila/qa-mcp/internal/vectorstore"
)

// Corpus is the ingestion side of the pipeline: trackers, embedder and a
// connected vector store.
type Corpus struct {
	Registry *connector.Registry
	Embedder embedder.Embedder
	Store    vectorstore.Store
	Ingester *rag.Ingester
}

// Close releases the vector store.
func (c *Corpus) Close() error {
	return c.Store.Close()
}

// Pipeline is a Corpus plus the generation side.
type Pipeline struct {
	*Corpus
	Handler *rag.Handler
	cache   cache.Cache
}

// Close releases the cache and the vector store.
func (p *Pipeline) Close() error {
	var errs []error
	if p.cache != nil {
		errs = append(errs, p.cache.Close())
	}
	errs = append(errs, p.Corpus.Close())
	return errors.Join(errs...)
}

// BuildRegistry registers a connector for every tracker with credentials.
func BuildRegistry(cfg config.Config) (*connector.Registry, error) {
	reg := connector.NewRegistry()

	if cfg.JiraEnabled() {
		c, err := jira.New(cfg.Jira)
		if err != nil {
			return nil, fmt.Errorf("jira connector: %w", err)
		}
		reg.Register(c)
	}
	if cfg.AzureDevOpsEnabled() {
		c, err := azuredevops.New(cfg.AzureDevOps)
		if err != nil {
			return nil, fmt.Errorf("azure devops connector: %w", err)
		}
		reg.Register(c)
	}
	if cfg.GitLabEnabled() {
		c, err := gitlab.New(cfg.GitLab)
		if err != nil {
			return nil, fmt.Errorf("gitlab connector: %w", err)
		}
		reg.Register(c)
	}

	if reg.Len() == 0 {
		slog.Warn("no issue tracker configured; ingestion and ticket lookup are unavailable")
	}
	return reg, nil
}

// OpenCorpus builds the trackers and embedder and connects the store.
func OpenCorpus(ctx context.Context, cfg config.Config) (*Corpus, error) {
	reg, err := BuildRegistry(cfg)
	if err != nil {
		return nil, err
	}

	emb, err := embedder.New(cfg.Embedder)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	storeCfg := cfg.VectorStore
	storeCfg.Dimensions = emb.Dimensions()
	store, err := vectorstore.Open(storeCfg)
	if err != nil {
		return nil, fmt.Errorf("opening vector store: %w", err)
	}
	if err := store.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connecting vector store: %w", err)
	}

	slog.InfoContext(ctx, "ticket corpus ready",
		"store", store.Backend(),
		"embedder", emb.Name(),
		"dimensions", emb.Dimensions(),
		"trackers", reg.Sources())

	return &Corpus{
		Registry: reg,
		Embedder: emb,
		Store:    store,
		Ingester: rag.NewIngester(reg, emb, store, 0),
	}, nil
}

// BuildPipeline opens the corpus and wires the model, cache and handler.
// A generation cache that cannot be reached is skipped with a warning.
func BuildPipeline(ctx context.Context, cfg config.Config) (*Pipeline, error) {
	if err := cfg.RequireLLM(); err != nil {
		return nil, err
	}

	corpus, err := OpenCorpus(ctx, cfg)
	if err != nil {
		return nil, err
	}

	model, err := llm.New(cfg.LLM)
	if err != nil {
		_ = corpus.Close()
		return nil, fmt.Errorf("creating llm client: %w", err)
	}

	var genCache cache.Cache
	if cfg.Cache.Enabled() {
		rc, err := cache.NewRedis(ctx, cfg.Cache.RedisURL, cfg.Cache.TTL)
		if err != nil {
			slog.WarnContext(ctx, "generation cache disabled", "error", err)
		} else {
			genCache = rc
		}
	}

	handler, err := rag.NewHandler(rag.Config{
		Embedder: corpus.Embedder,
		Store:    corpus.Store,
		LLM:      model,
		Cache:    genCache,
		Registry: corpus.Registry,
		TopK:     cfg.RAG.TopK,
	})
	if err != nil {
		if genCache != nil {
			_ = genCache.Close()
		}
		_ = corpus.Close()
		return nil, err
	}

	return &Pipeline{Corpus: corpus, Handler: handler, cache: genCache}, nil
}
