package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/HendryAvila/qa-mcp/internal/apperr"
)

// HTTPConfig configures an HTTPClient.
type HTTPConfig struct {
	BaseURL string
	// Username and Password are sent as HTTP basic auth when Password is set.
	Username string
	Password string
	// RequestsPerSecond throttles outgoing calls. Zero means 5.
	RequestsPerSecond float64
	Timeout           time.Duration
	UserAgent         string
	// Transport overrides the http.Client transport (tests).
	Transport http.RoundTripper
}

// HTTPClient is a rate-limited JSON client shared by the REST connectors.
// It never retries.
type HTTPClient struct {
	cfg     HTTPConfig
	http    *http.Client
	limiter *rate.Limiter
}

// NewHTTPClient creates an HTTPClient, applying defaults.
func NewHTTPClient(cfg HTTPConfig) *HTTPClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "qa-mcp"
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	return &HTTPClient{
		cfg: cfg,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: cfg.Transport,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
	}
}

// Request describes one API call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	// ContentType defaults to application/json when Body is set.
	ContentType string
	// Accept defaults to application/json.
	Accept string
	// NotFound is the kind reported for a 404. Defaults to UpstreamUnavailable.
	NotFound apperr.Kind
}

// Do executes req and decodes a 2xx JSON body into out (when non-nil).
//
// Status mapping: 400 -> MalformedQuery, 404 -> req.NotFound, any other
// non-2xx -> UpstreamUnavailable. Network failures are UpstreamUnavailable
// and context errors are Cancelled.
func (c *HTTPClient) Do(ctx context.Context, req Request, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctxErr := apperr.FromContext(ctx); ctxErr != nil {
			return ctxErr
		}
		return apperr.Wrap(apperr.Unknown, err, "rate limiter")
	}

	u := c.cfg.BaseURL + req.Path
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		raw, err := json.Marshal(req.Body)
		if err != nil {
			return apperr.Wrap(apperr.Unknown, err, "encode request body")
		}
		body = bytes.NewReader(raw)
	}

	if req.Method == "" {
		req.Method = http.MethodGet
	}
	method := req.Method
	httpReq, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return apperr.Wrap(apperr.Unknown, err, "build request")
	}
	accept := req.Accept
	if accept == "" {
		accept = "application/json"
	}
	httpReq.Header.Set("Accept", accept)
	httpReq.Header.Set("User-Agent", c.cfg.UserAgent)
	if body != nil {
		ct := req.ContentType
		if ct == "" {
			ct = "application/json"
		}
		httpReq.Header.Set("Content-Type", ct)
	}
	if c.cfg.Password != "" {
		httpReq.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctxErr := apperr.FromContext(ctx); ctxErr != nil {
			return ctxErr
		}
		return apperr.Wrap(apperr.UpstreamUnavailable, err, "%s %s", method, req.Path)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		if ctxErr := apperr.FromContext(ctx); ctxErr != nil {
			return ctxErr
		}
		return apperr.Wrap(apperr.UpstreamUnavailable, err, "read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp.StatusCode, data, req)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperr.Wrap(apperr.Unknown, err, "decode %s response", req.Path)
	}
	return nil
}

func statusError(code int, body []byte, req Request) error {
	detail := strings.TrimSpace(string(body))
	if len(detail) > 300 {
		detail = detail[:300] + "..."
	}
	cause := &StatusError{Code: code, Body: detail}

	kind := apperr.UpstreamUnavailable
	switch code {
	case http.StatusBadRequest:
		kind = apperr.MalformedQuery
	case http.StatusNotFound:
		if req.NotFound != "" {
			kind = req.NotFound
		}
	}
	return apperr.Wrap(kind, cause, "%s %s", req.Method, req.Path)
}

// StatusError is the cause attached to non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.Code)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

// StatusCode extracts the HTTP status from err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}
