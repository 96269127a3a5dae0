package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/qa-mcp/internal/rag"
)

// StatsProvider reports corpus statistics.
type StatsProvider interface {
	Stats(ctx context.Context) (rag.Stats, error)
}

// StatsTool reports the size and configuration of the ticket corpus.
type StatsTool struct {
	stats StatsProvider
}

func NewStatsTool(s StatsProvider) *StatsTool { return &StatsTool{stats: s} }

// Definition returns the MCP tool definition for registration.
func (t *StatsTool) Definition() mcp.Tool {
	return mcp.NewTool("rag_stats",
		mcp.WithDescription("Show how many tickets are stored for retrieval, and which embedder, vector store and model are in use."),
	)
}

// Handle processes the rag_stats tool call.
func (t *StatsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := t.stats.Stats(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(st)
}
