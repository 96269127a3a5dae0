package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/qa-mcp/internal/config"
	"github.com/HendryAvila/qa-mcp/internal/ragclient"
	qaserver "github.com/HendryAvila/qa-mcp/internal/server"
	"github.com/HendryAvila/qa-mcp/internal/tools"
)

func newIngestCmd() *cobra.Command {
	var (
		source   string
		query    string
		maxItems int
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load tickets from an issue tracker into the vector store",
		Long: `Fetch tickets from a tracker, embed them and store them for retrieval.

In proxy mode the request is sent to the RAG service instead.

Examples:
  qa-mcp ingest --source jira --query "project = SHOP AND updated >= -30d"
  qa-mcp ingest --source azure_devops --query checkout --max-items 50
  qa-mcp ingest --source gitlab --query refund`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, shutdown, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer shutdown()

			if cfg.Mode == config.ModeProxy {
				client, err := ragclient.New(cfg.RAG.ServiceURL, nil)
				if err != nil {
					return err
				}
				res, err := client.Ingest(ctx, source, query, maxItems)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			}

			corpus, err := qaserver.OpenCorpus(ctx, cfg)
			if err != nil {
				return err
			}
			defer corpus.Close()

			res, err := corpus.Ingester.Ingest(ctx, source, query, maxItems)
			if err != nil {
				return fmt.Errorf("ingesting from %s: %w", source, err)
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "tracker: jira, azure_devops or gitlab")
	cmd.Flags().StringVar(&query, "query", "", "tracker query (JQL, WIQL or search text)")
	cmd.Flags().IntVar(&maxItems, "max-items", tools.DefaultMaxItems, "maximum number of tickets to ingest")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}
