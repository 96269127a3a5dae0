// Package resources implements the read-only MCP resources.
package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/qa-mcp/internal/apperr"
	"github.com/HendryAvila/qa-mcp/internal/rag"
)

// StatusURI addresses the corpus status resource.
const StatusURI = "qa://store/status"

// StatsProvider reports corpus statistics.
type StatsProvider interface {
	Stats(ctx context.Context) (rag.Stats, error)
}

// Handler serves the resources.
type Handler struct {
	stats StatsProvider
	mode  string
}

// NewHandler creates a resource Handler. stats may be nil in proxy mode.
func NewHandler(stats StatsProvider, mode string) *Handler {
	return &Handler{stats: stats, mode: mode}
}

// StatusResource returns the MCP resource definition for corpus status.
func (h *Handler) StatusResource() mcp.Resource {
	return mcp.NewResource(
		StatusURI,
		"QA Store Status",
		mcp.WithResourceDescription("Ticket corpus size, embedder, vector store backend and model"),
		mcp.WithMIMEType("application/json"),
	)
}

type status struct {
	Mode string `json:"mode"`
	*rag.Stats
	Error *apperr.ToolError `json:"error,omitempty"`
}

// HandleStatus returns the corpus status as JSON. Store failures are
// reported inside the document.
func (h *Handler) HandleStatus(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	doc := status{Mode: h.mode}
	if h.stats != nil {
		st, err := h.stats.Stats(ctx)
		if err != nil {
			te := apperr.ToToolError(err)
			doc.Error = &te
		} else {
			doc.Stats = &st
		}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling status: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
