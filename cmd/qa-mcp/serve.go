package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/HendryAvila/qa-mcp/internal/logging"
	qaserver "github.com/HendryAvila/qa-mcp/internal/server"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server on stdio",
		Long: `Start the MCP server on the stdio transport.

Add it to your MCP host configuration:

  {
    "mcpServers": {
      "qa-mcp": {
        "command": "qa-mcp",
        "args": ["serve"]
      }
    }
  }`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, shutdown, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer shutdown()

			ctx = logging.WithFields(ctx, logging.Fields{Transport: qaserver.TransportStdio})
			s, cleanup, err := qaserver.New(ctx, cfg, qaserver.TransportStdio)
			if err != nil {
				return fmt.Errorf("creating server: %w", err)
			}
			defer cleanup()

			// Logs go to stderr so they never interleave with the
			// protocol on stdout.
			go checkForUpdates(ctx, cfg)

			slog.InfoContext(ctx, "mcp server listening on stdio", "mode", cfg.Mode, "version", qaserver.Version)
			stdio := server.NewStdioServer(s)
			if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("serving stdio: %w", err)
			}
			return nil
		},
	}
}

func newServeSSECmd() *cobra.Command {
	var addr, baseURL string

	cmd := &cobra.Command{
		Use:   "serve-sse",
		Short: "Start the MCP server on the SSE transport",
		Long: `Start the MCP server on the HTTP server-sent events transport.

Clients connect to <base-url>/sse and post messages to <base-url>/message.
Defaults come from SSE_ADDR and SSE_BASE_URL.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, shutdown, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer shutdown()

			if addr != "" {
				cfg.SSE.Addr = addr
			}
			if baseURL != "" {
				cfg.SSE.BaseURL = baseURL
			}

			ctx = logging.WithFields(ctx, logging.Fields{Transport: qaserver.TransportSSE})
			s, cleanup, err := qaserver.New(ctx, cfg, qaserver.TransportSSE)
			if err != nil {
				return fmt.Errorf("creating server: %w", err)
			}
			defer cleanup()

			go checkForUpdates(ctx, cfg)

			sse := server.NewSSEServer(s, server.WithBaseURL(cfg.SSE.BaseURL))
			errCh := make(chan error, 1)
			go func() {
				slog.InfoContext(ctx, "mcp server listening on sse",
					"addr", cfg.SSE.Addr,
					"base_url", cfg.SSE.BaseURL,
					"mode", cfg.Mode)
				errCh <- sse.Start(cfg.SSE.Addr)
			}()

			return waitAndShutdown(ctx, errCh, sse.Shutdown)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from SSE_ADDR)")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "public base URL advertised to clients (default from SSE_BASE_URL)")
	return cmd
}

// waitAndShutdown blocks until the listener fails or ctx is cancelled, then
// gives in-flight requests a few seconds to finish.
func waitAndShutdown(ctx context.Context, errCh <-chan error, stop func(context.Context) error) error {
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := stop(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
