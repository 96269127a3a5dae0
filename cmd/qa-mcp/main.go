// qa-mcp: BDD scenario generation MCP server
//
// Exposes QA tools over the Model Context Protocol. Scenarios are
// generated by a language model grounded on related tickets retrieved
// from Jira, Azure DevOps or GitLab.
//
// Usage:
//
//	qa-mcp serve          # MCP server on stdio
//	qa-mcp serve-sse      # MCP server on SSE
//	qa-mcp rag-service    # RAG HTTP API for proxy-mode servers
//	qa-mcp ingest         # load tickets into the vector store
//	qa-mcp call           # call a tool on a running MCP server
//	qa-mcp version
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/qa-mcp/internal/config"
	"github.com/HendryAvila/qa-mcp/internal/logging"
	qaserver "github.com/HendryAvila/qa-mcp/internal/server"
	"github.com/HendryAvila/qa-mcp/internal/telemetry"
	"github.com/HendryAvila/qa-mcp/internal/updater"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "qa-mcp",
		Short: "QA assistant MCP server that generates BDD scenarios",
		Long: `qa-mcp exposes QA tools over the Model Context Protocol.

BDD scenarios are generated by a language model grounded on related
tickets ingested from Jira, Azure DevOps or GitLab. Configuration is
read from the environment and an optional .env file.`,
		Version:       qaserver.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newServeCmd(),
		newServeSSECmd(),
		newRAGServiceCmd(),
		newIngestCmd(),
		newCallCmd(),
		newVersionCmd(),
	)
	return root
}

// bootstrap loads configuration and installs telemetry and logging. The
// returned shutdown flushes telemetry and is always non-nil.
func bootstrap(ctx context.Context) (config.Config, func(), error) {
	cfg, err := config.Load(qaserver.Version)
	if err != nil {
		return config.Config{}, func() {}, fmt.Errorf("loading config: %w", err)
	}

	// Telemetry comes first: the logger bridges to its provider.
	tel, err := telemetry.Setup(ctx, cfg.OTel)
	if err != nil {
		return config.Config{}, func() {}, fmt.Errorf("initializing telemetry: %w", err)
	}

	logging.Setup(cfg.Log)
	if tel != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	}

	shutdown := func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(sctx); err != nil {
			slog.ErrorContext(sctx, "otel shutdown error", "error", err)
		}
	}
	return cfg, shutdown, nil
}

// checkForUpdates logs when a newer release exists. Failures are only
// logged at debug level.
func checkForUpdates(ctx context.Context, cfg config.Config) {
	if !cfg.CheckUpdates {
		return
	}
	res, err := updater.New(updater.Config{}, cfg.Version).Check(ctx, cfg.Version)
	if err != nil {
		slog.DebugContext(ctx, "update check failed", "error", err)
		return
	}
	if res.UpdateAvailable {
		slog.InfoContext(ctx, "a newer qa-mcp release is available",
			"current", res.CurrentVersion,
			"latest", res.LatestVersion,
			"url", res.ReleaseURL)
	}
}

func newVersionCmd() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "qa-mcp v%s\n", qaserver.Version)
			if !check {
				return nil
			}

			res, err := updater.New(updater.Config{}, qaserver.Version).Check(cmd.Context(), qaserver.Version)
			if err != nil {
				return fmt.Errorf("checking for updates: %w", err)
			}
			if res.UpdateAvailable {
				fmt.Fprintf(cmd.OutOrStdout(), "Update available: v%s\n%s\n", res.LatestVersion, res.ReleaseURL)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "You are on the latest release.")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "check GitHub for a newer release")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
