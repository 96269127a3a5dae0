// Package tools implements the MCP tool handlers.
//
// Each tool is a struct holding its injected dependencies, with a
// Definition() that declares the schema once and a Handle() for calls.
// Domain failures are reported as error results whose text is the JSON
// object {"kind": ..., "message": ...}; a Go error is returned only for
// faults in the server itself.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/qa-mcp/internal/apperr"
	"github.com/HendryAvila/qa-mcp/internal/logging"
)

// Handler is the mcp-go tool handler signature.
type Handler func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)

// Instrument tags ctx with a request id and the tool name, and logs the
// outcome of every call.
func Instrument(name string, next Handler) Handler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx = logging.WithFields(ctx, logging.Fields{RequestID: uuid.NewString(), Tool: name})
		start := time.Now()

		res, err := next(ctx, req)

		attrs := []any{"duration_ms", time.Since(start).Milliseconds()}
		switch {
		case err != nil:
			slog.ErrorContext(ctx, "tool call failed", append(attrs, "error", err)...)
		case res != nil && res.IsError:
			slog.WarnContext(ctx, "tool call returned an error result", attrs...)
		default:
			slog.InfoContext(ctx, "tool call completed", attrs...)
		}
		return res, err
	}
}

// errorResult converts err into a structured error result.
func errorResult(err error) *mcp.CallToolResult {
	te := apperr.ToToolError(err)
	data, mErr := json.Marshal(te)
	if mErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf(`{"kind":%q,"message":%q}`, te.Kind, te.Message))
	}
	return mcp.NewToolResultError(string(data))
}

// invalid is errorResult for an InvalidInput failure.
func invalid(format string, args ...any) *mcp.CallToolResult {
	return errorResult(apperr.New(apperr.InvalidInput, format, args...))
}

// jsonResult renders v as indented JSON text.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// bind decodes the call arguments into params.
func bind(req mcp.CallToolRequest, params any) *mcp.CallToolResult {
	if err := req.BindArguments(params); err != nil {
		return invalid("invalid arguments: %v", err)
	}
	return nil
}
