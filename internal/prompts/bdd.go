// Package prompts implements the MCP prompts offered to the host.
package prompts

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// BDDPrompt handles the bdd-from-feature MCP prompt. It walks the host
// through generating and reviewing scenarios for a feature.
type BDDPrompt struct{}

func NewBDDPrompt() *BDDPrompt { return &BDDPrompt{} }

// Definition returns the MCP prompt definition for registration.
func (p *BDDPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("bdd-from-feature",
		mcp.WithPromptDescription(
			"Generate BDD scenarios for a feature, grounded on similar tickets, and review them for gaps.",
		),
		mcp.WithArgument("description",
			mcp.ArgumentDescription("Feature description to write scenarios for"),
			mcp.RequiredArgument(),
		),
	)
}

// Handle processes the bdd-from-feature prompt request.
func (p *BDDPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	description := strings.TrimSpace(req.Params.Arguments["description"])
	if description == "" {
		return nil, fmt.Errorf("argument 'description' is required")
	}

	return &mcp.GetPromptResult{
		Description: "BDD scenarios from a feature description",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"Call `generate_bdd_for_features` with this description:\n\n%s\n\n"+
						"Then:\n"+
						"1. Show the scenarios as a single Gherkin feature file\n"+
						"2. List the related tickets that were used as context\n"+
						"3. Point out behaviour the description implies but no scenario covers\n"+
						"4. If the tool returns an error, explain its kind and what I should fix",
					description,
				)),
			},
		},
	}, nil
}
