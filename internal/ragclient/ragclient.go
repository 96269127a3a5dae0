// Package ragclient is a rag.Generator that forwards requests to a remote
// RAG service.
package ragclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/HendryAvila/qa-mcp/internal/apperr"
	"github.com/HendryAvila/qa-mcp/internal/logging"
	"github.com/HendryAvila/qa-mcp/internal/rag"
)

// DefaultTimeout bounds a single generation round-trip.
const DefaultTimeout = 120 * time.Second

// Client calls the RAG service HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Client for baseURL. A nil httpClient uses DefaultTimeout.
func New(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("ragclient: invalid service url %q", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{baseURL: u.String(), httpClient: httpClient}, nil
}

// BaseURL returns the service address.
func (c *Client) BaseURL() string { return c.baseURL }

// GenerateForFeatures implements rag.Generator.
func (c *Client) GenerateForFeatures(ctx context.Context, description string) (*rag.Output, error) {
	if strings.TrimSpace(description) == "" {
		return nil, apperr.New(apperr.InvalidInput, "description must not be empty")
	}
	var out rag.Output
	q := url.Values{"description": {description}}
	if err := c.do(ctx, http.MethodGet, "/generate-bdd-for-features?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateForTicket implements rag.Generator.
func (c *Client) GenerateForTicket(ctx context.Context, ticketID string) (*rag.Output, error) {
	if strings.TrimSpace(ticketID) == "" {
		return nil, apperr.New(apperr.InvalidInput, "ticket_id must not be empty")
	}
	var out rag.Output
	q := url.Values{"ticket_id": {ticketID}}
	if err := c.do(ctx, http.MethodGet, "/generate-bdd-for-ticket?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ingest asks the service to ingest tickets into its store.
func (c *Client) Ingest(ctx context.Context, source, query string, maxItems int) (*rag.IngestResult, error) {
	body, err := json.Marshal(map[string]any{"source": source, "query": query, "max_items": maxItems})
	if err != nil {
		return nil, fmt.Errorf("ragclient: encode ingest request: %w", err)
	}
	var out rag.IngestResult
	if err := c.do(ctx, http.MethodPost, "/ingest", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health returns the service status and, when reported, its record count.
func (c *Client) Health(ctx context.Context) (status string, records int, err error) {
	var out struct {
		Status  string `json:"status"`
		Records int    `json:"records"`
	}
	if err := c.do(ctx, http.MethodGet, "/healthz", nil, &out); err != nil {
		return "", 0, err
	}
	return out.Status, out.Records, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return apperr.Wrap(apperr.Unknown, err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := logging.FieldsFrom(ctx).RequestID; id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := apperr.FromContext(ctx); ctxErr != nil {
			return ctxErr
		}
		return apperr.Wrap(apperr.UpstreamUnavailable, err, "rag service unreachable")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return apperr.Wrap(apperr.UpstreamUnavailable, err, "read rag service response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, data)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperr.Wrap(apperr.UpstreamUnavailable, err, "decode rag service response")
	}

	slog.DebugContext(ctx, "rag service call completed", "method", method, "path", req.URL.Path, "status", resp.StatusCode)
	return nil
}

// decodeError re-raises a {kind, stage, message} body under its own kind.
// Bodies without a kind become UpstreamUnavailable.
func decodeError(status int, data []byte) error {
	var te apperr.ToolError
	if err := json.Unmarshal(data, &te); err == nil && te.Kind != "" {
		return &apperr.Error{Kind: te.Kind, Stage: te.Stage, Message: te.Message}
	}
	msg := strings.TrimSpace(string(data))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return apperr.New(apperr.UpstreamUnavailable, "rag service returned %d: %s", status, msg)
}
