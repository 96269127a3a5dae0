package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/HendryAvila/qa-mcp/internal/ragservice"
	qaserver "github.com/HendryAvila/qa-mcp/internal/server"
)

func newRAGServiceCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "rag-service",
		Short: "Serve the RAG pipeline over HTTP for proxy-mode MCP servers",
		Long: `Run the retrieval and generation pipeline as an HTTP service.

MCP servers started with RAG_MODE=proxy forward generation requests here,
so several servers can share one ticket corpus and one model key.

Endpoints:
  GET  /generate-bdd-for-features?description=...
  GET  /generate-bdd-for-ticket?ticket_id=...
  POST /ingest   {"source": "JIRA", "query": "...", "max_items": 20}
  GET  /healthz`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, shutdown, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer shutdown()

			if addr != "" {
				cfg.RAG.ServiceAddr = addr
			}

			pipeline, err := qaserver.BuildPipeline(ctx, cfg)
			if err != nil {
				return fmt.Errorf("building rag pipeline: %w", err)
			}
			defer func() {
				if err := pipeline.Close(); err != nil {
					slog.Warn("closing rag pipeline", "error", err)
				}
			}()

			gin.SetMode(gin.ReleaseMode)
			router := ragservice.NewRouter(ragservice.Config{
				Generator:   pipeline.Handler,
				Ingester:    pipeline.Ingester,
				Stats:       pipeline.Handler,
				ServiceName: cfg.OTel.ServiceName,
				Tracing:     cfg.OTel.Enabled(),
			})

			srv := &http.Server{
				Addr:              cfg.RAG.ServiceAddr,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				slog.InfoContext(ctx, "rag service listening", "addr", srv.Addr)
				errCh <- srv.ListenAndServe()
			}()

			return waitAndShutdown(ctx, errCh, srv.Shutdown)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from RAG_SERVICE_ADDR)")
	return cmd
}
