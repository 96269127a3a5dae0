package prompts

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// StatusPrompt handles the qa-status MCP prompt.
type StatusPrompt struct{}

func NewStatusPrompt() *StatusPrompt { return &StatusPrompt{} }

// Definition returns the MCP prompt definition for registration.
func (p *StatusPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("qa-status",
		mcp.WithPromptDescription(
			"Check how much ticket context is available for BDD generation and what to ingest next.",
		),
	)
}

// Handle processes the qa-status prompt request.
func (p *StatusPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "QA corpus status",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(
					"Read the `qa://store/status` resource (or call `rag_stats`).\n\n" +
						"Then:\n" +
						"1. Tell me how many tickets are stored and which backends are in use\n" +
						"2. If the store is empty, suggest an `ingest_tickets` call for one of the configured trackers\n" +
						"3. Remind me that generation still works with an empty store, only without ticket context",
				),
			},
		},
	}, nil
}
