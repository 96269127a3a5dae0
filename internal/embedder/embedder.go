// Package embedder turns text into fixed-dimension vectors.
//
// Every backend is deterministic for identical input and fails with
// EmptyInput on whitespace-only text. Returned vectors are checked:
// never empty, never NaN or Inf, always Dimensions() long.
package embedder

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/HendryAvila/qa-mcp/internal/apperr"
)

// Embedder converts text to a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Name() string
}

// Config selects and configures a backend.
type Config struct {
	// Provider is "hash" (default) or "openai".
	Provider   string
	Dimensions int
	Model      string
	APIKey     string
	BaseURL    string
}

// New builds the configured Embedder.
func New(cfg Config) (Embedder, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "hash":
		return NewHash(cfg.Dimensions), nil
	case "openai":
		e, err := NewOpenAI(OpenAIConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})
		if err != nil {
			return nil, err
		}
		return e, nil
	}
	return nil, fmt.Errorf("embedder: unknown provider %q", cfg.Provider)
}

// normalizeText collapses runs of whitespace and trims the ends.
func normalizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func emptyInput() error {
	return apperr.New(apperr.EmptyInput, "text is empty after normalization")
}

// checkVector enforces the output contract shared by all backends.
func checkVector(name string, v []float32, dims int) error {
	if len(v) == 0 {
		return apperr.New(apperr.Unknown, "%s: returned an empty vector", name)
	}
	if len(v) != dims {
		return apperr.New(apperr.DimensionMismatch, "%s: returned %d dimensions, want %d", name, len(v), dims)
	}
	for i, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return apperr.New(apperr.Unknown, "%s: non-finite value at index %d", name, i)
		}
	}
	return nil
}
