package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"classified", New(NotReady, "store not connected"), NotReady},
		{"wrapped classified", fmt.Errorf("query: %w", New(DimensionMismatch, "got 3")), DimensionMismatch},
		{"canceled", context.Canceled, Cancelled},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), Cancelled},
		{"plain", errors.New("boom"), Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStage(t *testing.T) {
	err := Stage("embed", New(UpstreamUnavailable, "connection refused"))
	if err.Kind != GenerationFailed {
		t.Fatalf("Kind = %q, want GenerationFailed", err.Kind)
	}
	if err.Stage != "embed" {
		t.Errorf("Stage = %q, want embed", err.Stage)
	}
	if err.Message != "connection refused" {
		t.Errorf("Message = %q, want original message", err.Message)
	}
	if !errors.Is(err, New(UpstreamUnavailable, "")) {
		t.Error("expected cause to stay reachable through errors.Is")
	}
}

func TestStage_CancelledWins(t *testing.T) {
	err := Stage("generate", fmt.Errorf("openai: %w", context.Canceled))
	if err.Kind != Cancelled {
		t.Errorf("Kind = %q, want Cancelled", err.Kind)
	}
}

func TestToToolError(t *testing.T) {
	te := ToToolError(Stage("parse", errors.New("no scenarios in model output")))
	if te.Kind != GenerationFailed || te.Stage != "parse" {
		t.Errorf("unexpected tool error: %+v", te)
	}
	if te.Message != "no scenarios in model output" {
		t.Errorf("Message = %q", te.Message)
	}

	plain := ToToolError(errors.New("disk full"))
	if plain.Kind != Unknown || plain.Message != "disk full" {
		t.Errorf("unexpected tool error for plain error: %+v", plain)
	}
}

func TestFromContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	if err := FromContext(ctx); err != nil {
		t.Fatalf("expected nil for live context, got %v", err)
	}
	cancel()
	if !Is(FromContext(ctx), Cancelled) {
		t.Error("expected Cancelled for done context")
	}
}
