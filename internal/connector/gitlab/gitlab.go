// Package gitlab implements a GitLab issues connector on top of the
// official client-go SDK.
package gitlab

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	gitlab "gitlab.com/gitlab-org/api/client-go"
	"golang.org/x/time/rate"

	"github.com/HendryAvila/qa-mcp/internal/apperr"
	"github.com/HendryAvila/qa-mcp/internal/connector"
	"github.com/HendryAvila/qa-mcp/internal/ticket"
)

// maxPerPage is the API's page size cap.
const maxPerPage = 100

// Config holds GitLab connection settings.
type Config struct {
	// BaseURL is the instance URL without /api/v4. Empty means gitlab.com.
	BaseURL string
	Token   string
	// Project is the default project path (group/project) or numeric id.
	Project           string
	RequestsPerSecond float64
}

// Connector fetches GitLab issues from one project.
type Connector struct {
	cfg    Config
	client *gitlab.Client
}

// New builds a Connector. SDK retries are disabled.
func New(cfg Config) (*Connector, error) {
	if cfg.Token == "" {
		return nil, errors.New("gitlab: token is required")
	}
	if cfg.Project == "" {
		return nil, errors.New("gitlab: project is required")
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}

	opts := []gitlab.ClientOptionFunc{
		gitlab.WithoutRetries(),
		gitlab.WithCustomLimiter(rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)),
		gitlab.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, gitlab.WithBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")+"/api/v4"))
	}
	client, err := gitlab.NewClient(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("gitlab: create client: %w", err)
	}
	return &Connector{cfg: cfg, client: client}, nil
}

// Source implements connector.Connector.
func (c *Connector) Source() ticket.Source { return ticket.SourceGitLab }

// FetchTickets searches issue titles and descriptions in the configured
// project, newest update first.
func (c *Connector) FetchTickets(ctx context.Context, query string, limit int) ([]ticket.Ticket, error) {
	if err := connector.ValidateLimit(limit); err != nil {
		return nil, err
	}

	opts := &gitlab.ListProjectIssuesOptions{
		OrderBy: gitlab.Ptr("updated_at"),
		Sort:    gitlab.Ptr("desc"),
		ListOptions: gitlab.ListOptions{
			Page: 1,
		},
	}
	setPageSize(&opts.PerPage, min(limit, maxPerPage))
	if q := strings.TrimSpace(query); q != "" {
		opts.Search = gitlab.Ptr(q)
	}

	var out []ticket.Ticket
	for len(out) < limit {
		issues, resp, err := c.client.Issues.ListProjectIssues(c.cfg.Project, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, classify(ctx, err, apperr.UpstreamUnavailable)
		}
		for _, is := range issues {
			if is != nil {
				out = append(out, toTicket(c.cfg.Project, is))
			}
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return connector.Truncate(out, limit), nil
}

// FetchTicket loads an issue by "project#iid" or "#iid" (configured project).
func (c *Connector) FetchTicket(ctx context.Context, id string) (ticket.Ticket, error) {
	project, iid, ok := c.parseID(id)
	if !ok {
		return ticket.Ticket{}, apperr.New(apperr.TicketNotFound, "%q is not a GitLab issue reference", id)
	}

	is, _, err := c.client.Issues.GetIssue(project, iid, nil, gitlab.WithContext(ctx))
	if err != nil {
		return ticket.Ticket{}, classify(ctx, err, apperr.TicketNotFound)
	}
	return toTicket(project, is), nil
}

func (c *Connector) parseID(id string) (string, int64, bool) {
	project, num, found := strings.Cut(strings.TrimSpace(id), "#")
	if !found {
		return "", 0, false
	}
	iid, err := strconv.ParseInt(num, 10, 64)
	if err != nil || iid < 1 {
		return "", 0, false
	}
	if project == "" {
		project = c.cfg.Project
	}
	return project, iid, true
}

// setPageSize assigns n to a pagination field whatever its integer width.
func setPageSize[T ~int | ~int64](field *T, n int) { *field = T(n) }

func toTicket(project string, is *gitlab.Issue) ticket.Ticket {
	meta := map[string]any{
		"state":   is.State,
		"web_url": is.WebURL,
	}
	if len(is.Labels) > 0 {
		meta["labels"] = []string(is.Labels)
	}
	if is.UpdatedAt != nil {
		meta["updated_at"] = is.UpdatedAt.Format(time.RFC3339)
	}
	if is.Author != nil {
		meta["author"] = is.Author.Username
	}
	return ticket.Ticket{
		ID:          fmt.Sprintf("%s#%d", project, is.IID),
		Title:       is.Title,
		Description: is.Description,
		Source:      ticket.SourceGitLab,
		RawMetadata: meta,
	}
}

// classify maps SDK errors onto the taxonomy. notFound is the kind given
// to 404 responses.
func classify(ctx context.Context, err error, notFound apperr.Kind) error {
	if ctxErr := apperr.FromContext(ctx); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, gitlab.ErrNotFound) {
		return apperr.Wrap(notFound, err, "gitlab")
	}
	var errResp *gitlab.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		switch code := errResp.Response.StatusCode; {
		case code == http.StatusBadRequest:
			return apperr.Wrap(apperr.MalformedQuery, err, "gitlab")
		case code == http.StatusNotFound:
			return apperr.Wrap(notFound, err, "gitlab")
		}
	}
	return apperr.Wrap(apperr.UpstreamUnavailable, err, "gitlab")
}
