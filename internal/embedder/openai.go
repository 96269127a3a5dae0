package embedder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/HendryAvila/qa-mcp/internal/apperr"
)

// OpenAIConfig configures the OpenAI-compatible embeddings backend.
type OpenAIConfig struct {
	APIKey string
	// BaseURL points at any OpenAI-compatible endpoint (Gemini, Ollama, ...).
	BaseURL    string
	Model      string
	Dimensions int
}

// OpenAI embeds text through the embeddings endpoint.
type OpenAI struct {
	client openai.Client
	model  string
	dims   int
}

// NewOpenAI creates an OpenAI embedder. SDK retries are disabled.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embedder: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = 1536
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAI{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
		dims:   cfg.Dimensions,
	}, nil
}

func (e *OpenAI) Dimensions() int { return e.dims }
func (e *OpenAI) Name() string    { return "openai:" + e.model }

// Embed implements Embedder.
func (e *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	text = normalizeText(text)
	if text == "" {
		return nil, emptyInput()
	}

	start := time.Now()
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input:      openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model:      openai.EmbeddingModel(e.model),
		Dimensions: openai.Int(int64(e.dims)),
	})
	if err != nil {
		return nil, classifyOpenAI(ctx, err)
	}
	if len(resp.Data) == 0 {
		return nil, apperr.New(apperr.UpstreamUnavailable, "embeddings response had no data")
	}

	slog.DebugContext(ctx, "embedding created",
		"model", e.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", resp.Usage.PromptTokens)

	raw := resp.Data[0].Embedding
	out := make([]float32, len(raw))
	for i, v := range raw {
		out[i] = float32(v)
	}
	if err := checkVector(e.Name(), out, e.dims); err != nil {
		return nil, err
	}
	return out, nil
}

func classifyOpenAI(ctx context.Context, err error) error {
	if ctxErr := apperr.FromContext(ctx); ctxErr != nil {
		return ctxErr
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusBadRequest, http.StatusUnprocessableEntity:
			return apperr.Wrap(apperr.InvalidInput, err, "embeddings request rejected")
		}
		return apperr.Wrap(apperr.UpstreamUnavailable, err, "embeddings request failed")
	}
	return apperr.Wrap(apperr.UpstreamUnavailable, err, "embeddings endpoint unreachable")
}
