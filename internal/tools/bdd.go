package tools

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/qa-mcp/internal/rag"
)

// ─── generate_bdd_for_features ──────────────────────────────────────────────

type FeaturesParams struct {
	Description string `json:"description"`
}

// FeaturesTool generates BDD scenarios from a feature description.
type FeaturesTool struct {
	generator rag.Generator
}

func NewFeaturesTool(g rag.Generator) *FeaturesTool { return &FeaturesTool{generator: g} }

// Definition returns the MCP tool definition for registration.
func (t *FeaturesTool) Definition() mcp.Tool {
	return mcp.NewTool("generate_bdd_for_features",
		mcp.WithDescription(
			"Generate BDD scenarios in Gherkin for a feature description. "+
				"Scenarios are grounded on the most similar tickets already ingested from the issue trackers. "+
				"Returns JSON with source_description and scenarios.",
		),
		mcp.WithString("description",
			mcp.Required(),
			mcp.Description("Free-text description of the feature to cover"),
		),
	)
}

// Handle processes the generate_bdd_for_features tool call.
func (t *FeaturesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p FeaturesParams
	if res := bind(req, &p); res != nil {
		return res, nil
	}
	if strings.TrimSpace(p.Description) == "" {
		return invalid("'description' is required"), nil
	}
	out, err := t.generator.GenerateForFeatures(ctx, p.Description)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(out)
}

// ─── generate_bdd_for_ticket_id ─────────────────────────────────────────────

type TicketParams struct {
	TicketID string `json:"ticket_id"`
}

// TicketTool generates BDD scenarios for an existing tracker ticket.
type TicketTool struct {
	generator rag.Generator
}

func NewTicketTool(g rag.Generator) *TicketTool { return &TicketTool{generator: g} }

// Definition returns the MCP tool definition for registration.
func (t *TicketTool) Definition() mcp.Tool {
	return mcp.NewTool("generate_bdd_for_ticket_id",
		mcp.WithDescription(
			"Generate BDD scenarios in Gherkin for a ticket. "+
				"The ticket is read from the ingested corpus, or fetched from the configured trackers. "+
				"Returns JSON with source_description and scenarios.",
		),
		mcp.WithString("ticket_id",
			mcp.Required(),
			mcp.Description("Tracker ticket id, e.g. PROJ-12 (Jira), 4711 (Azure DevOps) or group/project#12 (GitLab)"),
		),
	)
}

// Handle processes the generate_bdd_for_ticket_id tool call.
func (t *TicketTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p TicketParams
	if res := bind(req, &p); res != nil {
		return res, nil
	}
	if strings.TrimSpace(p.TicketID) == "" {
		return invalid("'ticket_id' is required"), nil
	}
	out, err := t.generator.GenerateForTicket(ctx, p.TicketID)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(out)
}
