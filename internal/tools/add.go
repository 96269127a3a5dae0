package tools

import (
	"context"
	"fmt"
	"math"

	"github.com/mark3labs/mcp-go/mcp"
)

// AddParams are the add arguments. Pointers distinguish a missing
// argument from zero.
type AddParams struct {
	A *float64 `json:"a"`
	B *float64 `json:"b"`
}

// AddTool adds two integers.
type AddTool struct{}

func NewAddTool() *AddTool { return &AddTool{} }

// Definition returns the MCP tool definition for registration.
func (t *AddTool) Definition() mcp.Tool {
	return mcp.NewTool("add",
		mcp.WithDescription("Add two integers."),
		mcp.WithNumber("a", mcp.Required(), mcp.Description("First integer")),
		mcp.WithNumber("b", mcp.Required(), mcp.Description("Second integer")),
	)
}

// Handle processes the add tool call.
func (t *AddTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p AddParams
	if res := bind(req, &p); res != nil {
		return res, nil
	}
	if p.A == nil || p.B == nil {
		return invalid("'a' and 'b' are required"), nil
	}
	a, ok := asInt(*p.A)
	if !ok {
		return invalid("'a' must be an integer, got %v", *p.A), nil
	}
	b, ok := asInt(*p.B)
	if !ok {
		return invalid("'b' must be an integer, got %v", *p.B), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("The sum of %d and %d is %d.", a, b, a+b)), nil
}

// asInt accepts whole numbers within the int64 range that can be added
// without overflow.
func asInt(v float64) (int64, bool) {
	if v != math.Trunc(v) || math.Abs(v) > 1<<52 {
		return 0, false
	}
	return int64(v), true
}
