// Package llm wraps a chat completion model behind a stateless
// prompt-in, text-out client.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/HendryAvila/qa-mcp/internal/apperr"
)

// Client generates text for a prompt.
type Client interface {
	Generate(ctx context.Context, p Prompt) (string, error)
	Model() string
}

// Prompt is one system + user turn.
type Prompt struct {
	System string
	User   string
}

// Config configures the OpenAI-compatible client.
type Config struct {
	APIKey string
	// BaseURL selects any OpenAI-compatible endpoint, e.g.
	// https://generativelanguage.googleapis.com/v1beta/openai/ for Gemini.
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature *float64
}

type client struct {
	openai      openai.Client
	model       string
	maxTokens   int
	temperature *float64
}

// New creates a Client. SDK retries are disabled: a generation call is
// expensive and not safe to repeat blindly.
func New(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}

	return &client{
		openai:      openai.NewClient(opts...),
		model:       model,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
	}, nil
}

func (c *client) Model() string { return c.model }

// Generate implements Client.
func (c *client) Generate(ctx context.Context, p Prompt) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if p.System != "" {
		messages = append(messages, openai.SystemMessage(p.System))
	}
	messages = append(messages, openai.UserMessage(p.User))

	params := openai.ChatCompletionNewParams{
		Model:     c.model,
		Messages:  messages,
		MaxTokens: openai.Int(int64(c.maxTokens)),
	}
	if c.temperature != nil {
		params.Temperature = openai.Float(*c.temperature)
	}

	start := time.Now()
	resp, err := c.openai.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classify(ctx, err)
	}

	if len(resp.Choices) == 0 {
		return "", apperr.New(apperr.UpstreamUnavailable, "model returned no choices")
	}

	slog.DebugContext(ctx, "llm generation completed",
		"model", c.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"finish_reason", resp.Choices[0].FinishReason)

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", apperr.New(apperr.UpstreamUnavailable, "model returned empty content")
	}
	return content, nil
}

func classify(ctx context.Context, err error) error {
	if ctxErr := apperr.FromContext(ctx); ctxErr != nil {
		return ctxErr
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusBadRequest {
			return apperr.Wrap(apperr.InvalidInput, err, "model rejected the prompt")
		}
		return apperr.Wrap(apperr.UpstreamUnavailable, err, "model call failed")
	}
	return apperr.Wrap(apperr.UpstreamUnavailable, err, "model unreachable")
}
