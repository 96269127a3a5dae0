// Package server wires all MCP components and creates the server instance.
//
// This is the composition root: it builds the concrete pipeline for the
// configured RAG mode and injects it into the tools, prompts and resources.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/HendryAvila/qa-mcp/internal/config"
	"github.com/HendryAvila/qa-mcp/internal/prompts"
	"github.com/HendryAvila/qa-mcp/internal/rag"
	"github.com/HendryAvila/qa-mcp/internal/ragclient"
	"github.com/HendryAvila/qa-mcp/internal/resources"
	"github.com/HendryAvila/qa-mcp/internal/tools"
	"github.com/HendryAvila/qa-mcp/internal/weather"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Name is the MCP server name reported to clients.
const Name = "qa-mcp"

// Transport names passed to New.
const (
	TransportStdio = "stdio"
	TransportSSE   = "sse"
)

// New creates the MCP server with every tool, prompt and resource for the
// configured mode registered.
//
// In local mode the RAG pipeline runs in process and a missing model key or
// an unreachable vector store is a startup error. In proxy mode generation
// is forwarded to RAG_SERVICE_URL and the corpus tools are not offered.
//
// The returned cleanup function releases the pipeline and must be called
// on shutdown. It is always non-nil.
func New(ctx context.Context, cfg config.Config, transport string) (*server.MCPServer, func(), error) {
	var (
		generator rag.Generator
		stats     resources.StatsProvider
		pipeline  *Pipeline
	)

	switch cfg.Mode {
	case config.ModeProxy:
		client, err := ragclient.New(cfg.RAG.ServiceURL, nil)
		if err != nil {
			return nil, noop, err
		}
		generator = client
		slog.InfoContext(ctx, "forwarding generation to rag service", "url", client.BaseURL())
	default:
		p, err := BuildPipeline(ctx, cfg)
		if err != nil {
			return nil, noop, fmt.Errorf("building rag pipeline: %w", err)
		}
		pipeline = p
		generator = p.Handler
		stats = p.Handler
	}

	cleanup := noop
	if pipeline != nil {
		cleanup = func() {
			if err := pipeline.Close(); err != nil {
				slog.Warn("closing rag pipeline", "error", err)
			}
		}
	}

	s := server.NewMCPServer(
		Name,
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions(cfg.Mode)),
	)

	// --- Utility tools ---

	addTool(s, tools.NewGreetTool(transport))
	addTool(s, tools.NewAddTool())

	forecasts := weather.New(cfg.Weather)
	addTool(s, tools.NewAlertsTool(forecasts))
	addTool(s, tools.NewForecastTool(forecasts))

	// --- BDD generation ---

	addTool(s, tools.NewFeaturesTool(generator))
	addTool(s, tools.NewTicketTool(generator))

	// --- Corpus tools (local mode only) ---

	if pipeline != nil {
		addTool(s, tools.NewIngestTool(pipeline.Ingester))
		addTool(s, tools.NewStatsTool(pipeline.Handler))
	}

	// --- Prompts ---

	bddPrompt := prompts.NewBDDPrompt()
	s.AddPrompt(bddPrompt.Definition(), bddPrompt.Handle)

	statusPrompt := prompts.NewStatusPrompt()
	s.AddPrompt(statusPrompt.Definition(), statusPrompt.Handle)

	// --- Resources ---

	resourceHandler := resources.NewHandler(stats, string(cfg.Mode))
	s.AddResource(resourceHandler.StatusResource(), resourceHandler.HandleStatus)

	return s, cleanup, nil
}

type tool interface {
	Definition() mcp.Tool
	Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

func addTool(s *server.MCPServer, t tool) {
	def := t.Definition()
	s.AddTool(def, server.ToolHandlerFunc(tools.Instrument(def.Name, t.Handle)))
}

// noop is the cleanup returned when nothing needs releasing.
func noop() {}

func serverInstructions(mode config.Mode) string {
	var b strings.Builder
	b.WriteString(`You have access to qa-mcp, a QA assistant that writes BDD scenarios in Gherkin.

## BDD generation
- generate_bdd_for_features: pass a free-text feature description. Related
  tickets from the corpus are retrieved and used as context.
- generate_bdd_for_ticket_id: pass a tracker ticket id (PROJ-12, 4711,
  group/project#12). The ticket itself is the feature description.

Both return JSON with "source_description" and "scenarios", one Gherkin
scenario per entry. Present the scenarios to the user verbatim.

## Errors
Failed calls return JSON {"kind": "...", "message": "..."}. On InvalidInput
fix the arguments. On TicketNotFound ask the user to check the id or ingest
the ticket first. On UpstreamUnavailable the call may be retried later.
`)

	if mode != config.ModeProxy {
		b.WriteString(`
## Ticket corpus
- ingest_tickets: pull tickets from JIRA, AZURE_DEVOPS or GITLAB with a
  tracker query (JQL, WIQL or a search string) and store them for retrieval.
- rag_stats: how many tickets are stored and which embedder and model are used.
Suggest ingest_tickets when rag_stats reports an empty corpus.
`)
	}

	b.WriteString(`
## Other tools
greet, add, get_alerts (US state code) and get_forecast (latitude, longitude).
`)
	return b.String()
}
