package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// GreetParams are the greet arguments.
type GreetParams struct {
	Name string `json:"name"`
}

// GreetTool greets a user by name, naming the transport it was reached on.
type GreetTool struct {
	transport string
}

// NewGreetTool creates a GreetTool for the given transport ("stdio", "sse").
func NewGreetTool(transport string) *GreetTool {
	return &GreetTool{transport: strings.ToUpper(transport)}
}

// Definition returns the MCP tool definition for registration.
func (t *GreetTool) Definition() mcp.Tool {
	return mcp.NewTool("greet",
		mcp.WithDescription("Greet a user by name."),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Name of the person to greet"),
		),
	)
}

// Handle processes the greet tool call.
func (t *GreetTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p GreetParams
	if res := bind(req, &p); res != nil {
		return res, nil
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return invalid("'name' is required"), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Hello, %s! Welcome to the %s server.", name, t.transport)), nil
}
