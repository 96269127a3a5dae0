package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cobra"

	qaserver "github.com/HendryAvila/qa-mcp/internal/server"
)

func newCallCmd() *cobra.Command {
	var (
		sseURL  string
		command string
		argsRaw string
		list    bool
	)

	cmd := &cobra.Command{
		Use:   "call [tool]",
		Short: "List or call tools on an MCP server",
		Long: `Connect to an MCP server as a client, either by launching it over stdio
or by attaching to its SSE endpoint, then list its tools or call one.

Examples:
  qa-mcp call --list --sse http://localhost:8080/sse
  qa-mcp call greet --args '{"name":"Ada"}'
  qa-mcp call generate_bdd_for_features --args '{"description":"Password reset by email"}'
  qa-mcp call add --command "qa-mcp serve" --args '{"a":2,"b":3}'`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !list && len(args) == 0 {
				return errors.New("name a tool to call, or pass --list")
			}

			var toolArgs map[string]any
			if argsRaw != "" {
				if err := json.Unmarshal([]byte(argsRaw), &toolArgs); err != nil {
					return fmt.Errorf("parsing --args: %w", err)
				}
			}

			ctx := cmd.Context()
			c, err := dial(ctx, sseURL, command)
			if err != nil {
				return err
			}
			defer c.Close()

			out := cmd.OutOrStdout()
			if list {
				return listTools(ctx, c, out)
			}
			return callTool(ctx, c, out, args[0], toolArgs)
		},
	}
	cmd.Flags().StringVar(&sseURL, "sse", "", "SSE endpoint of a running server, e.g. http://localhost:8080/sse")
	cmd.Flags().StringVar(&command, "command", "", "server command to launch over stdio (default: this binary with \"serve\")")
	cmd.Flags().StringVar(&argsRaw, "args", "", "tool arguments as a JSON object")
	cmd.Flags().BoolVar(&list, "list", false, "list the server's tools and their input schemas")
	return cmd
}

// dial connects and initializes a client over SSE when sseURL is set,
// otherwise over stdio by launching command.
func dial(ctx context.Context, sseURL, command string) (*client.Client, error) {
	var (
		c   *client.Client
		err error
	)
	if sseURL != "" {
		c, err = client.NewSSEMCPClient(sseURL)
		if err != nil {
			return nil, fmt.Errorf("creating sse client: %w", err)
		}
		if err := c.Start(ctx); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("connecting to %s: %w", sseURL, err)
		}
	} else {
		name, args, err := serverCommand(command)
		if err != nil {
			return nil, err
		}
		c, err = client.NewStdioMCPClient(name, os.Environ(), args...)
		if err != nil {
			return nil, fmt.Errorf("launching %s: %w", name, err)
		}
	}

	init := mcp.InitializeRequest{}
	init.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	init.Params.ClientInfo = mcp.Implementation{Name: "qa-mcp-call", Version: qaserver.Version}
	if _, err := c.Initialize(ctx, init); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("initializing session: %w", err)
	}
	return c, nil
}

func serverCommand(command string) (string, []string, error) {
	if command != "" {
		fields := strings.Fields(command)
		if len(fields) == 0 {
			return "", nil, errors.New("--command is blank")
		}
		return fields[0], fields[1:], nil
	}
	self, err := os.Executable()
	if err != nil {
		return "", nil, fmt.Errorf("locating qa-mcp binary: %w", err)
	}
	return self, []string{"serve"}, nil
}

func listTools(ctx context.Context, c *client.Client, out io.Writer) error {
	res, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return fmt.Errorf("listing tools: %w", err)
	}
	for _, t := range res.Tools {
		fmt.Fprintf(out, "%s\n  %s\n", t.Name, t.Description)
		schema, err := json.MarshalIndent(t.InputSchema, "  ", "  ")
		if err == nil {
			fmt.Fprintf(out, "  %s\n", schema)
		}
		fmt.Fprintln(out)
	}
	return nil
}

func callTool(ctx context.Context, c *client.Client, out io.Writer, name string, args map[string]any) error {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	res, err := c.CallTool(ctx, req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", name, err)
	}
	for _, content := range res.Content {
		if tc, ok := content.(mcp.TextContent); ok {
			fmt.Fprintln(out, tc.Text)
		}
	}
	if res.IsError {
		return fmt.Errorf("%s returned an error result", name)
	}
	return nil
}
