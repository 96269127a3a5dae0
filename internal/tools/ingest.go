package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/qa-mcp/internal/rag"
	"github.com/HendryAvila/qa-mcp/internal/ticket"
)

// DefaultMaxItems is the ingest_tickets max_items default.
const DefaultMaxItems = 20

// Ingester runs ticket ingestion.
type Ingester interface {
	Ingest(ctx context.Context, source, query string, maxItems int) (*rag.IngestResult, error)
	Sources() []ticket.Source
}

type IngestParams struct {
	Source   string   `json:"source"`
	Query    string   `json:"query"`
	MaxItems *float64 `json:"max_items"`
}

// IngestTool pulls tickets from a tracker into the vector store.
type IngestTool struct {
	ingester Ingester
}

func NewIngestTool(in Ingester) *IngestTool { return &IngestTool{ingester: in} }

// Definition returns the MCP tool definition for registration. The
// source enum lists only the configured trackers.
func (t *IngestTool) Definition() mcp.Tool {
	sources := make([]string, 0, len(t.ingester.Sources()))
	for _, s := range t.ingester.Sources() {
		sources = append(sources, string(s))
	}

	sourceOpts := []mcp.PropertyOption{
		mcp.Required(),
		mcp.Description("Tracker to ingest from: " + strings.Join(sources, ", ")),
	}
	if len(sources) > 0 {
		sourceOpts = append(sourceOpts, mcp.Enum(sources...))
	}

	return mcp.NewTool("ingest_tickets",
		mcp.WithDescription(
			"Fetch tickets from an issue tracker, embed them and store them for retrieval. "+
				"Re-ingesting a ticket replaces its previous version.",
		),
		mcp.WithString("source", sourceOpts...),
		mcp.WithString("query",
			mcp.Description("Tracker query: JQL for Jira, WIQL or title text for Azure DevOps, search text for GitLab"),
		),
		mcp.WithNumber("max_items",
			mcp.Description(fmt.Sprintf("Maximum tickets to ingest (default: %d)", DefaultMaxItems)),
		),
	)
}

// Handle processes the ingest_tickets tool call.
func (t *IngestTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p IngestParams
	if res := bind(req, &p); res != nil {
		return res, nil
	}
	if strings.TrimSpace(p.Source) == "" {
		return invalid("'source' is required"), nil
	}
	maxItems := DefaultMaxItems
	if p.MaxItems != nil {
		n, ok := asInt(*p.MaxItems)
		if !ok {
			return invalid("'max_items' must be an integer, got %v", *p.MaxItems), nil
		}
		maxItems = int(n)
	}

	res, err := t.ingester.Ingest(ctx, p.Source, p.Query, maxItems)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(res)
}
