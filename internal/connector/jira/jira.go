// Package jira implements a Jira Cloud connector over the REST v3 API.
package jira

import (
	"context"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/HendryAvila/qa-mcp/internal/apperr"
	"github.com/HendryAvila/qa-mcp/internal/connector"
	"github.com/HendryAvila/qa-mcp/internal/ticket"
)

const searchFields = "summary,description,status,issuetype,priority,labels,updated"

var (
	issueKeyRe = regexp.MustCompile(`^[A-Z][A-Z0-9_]*-[0-9]+$`)
	// jqlHint spots queries that are already JQL rather than free text.
	jqlHint = regexp.MustCompile(`(?i)(\s(=|!=|~|!~|>=|<=|>|<)\s|\s(and|or)\s|^order by|\sorder by\s|\sin\s*\(|\bis\s+(not\s+)?empty\b)`)
)

// Connector fetches Jira issues.
type Connector struct {
	cfg    Config
	client *connector.HTTPClient
}

// New validates cfg and builds a Connector.
func New(cfg Config) (*Connector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Connector{
		cfg: cfg,
		client: connector.NewHTTPClient(connector.HTTPConfig{
			BaseURL:           cfg.BaseURL,
			Username:          cfg.Email,
			Password:          cfg.APIToken,
			RequestsPerSecond: cfg.RequestsPerSecond,
		}),
	}, nil
}

// Source implements connector.Connector.
func (c *Connector) Source() ticket.Source { return ticket.SourceJira }

// FetchTickets runs query as JQL (free text is wrapped into a text search)
// and pages until limit issues are collected or results run out.
func (c *Connector) FetchTickets(ctx context.Context, query string, limit int) ([]ticket.Ticket, error) {
	if err := connector.ValidateLimit(limit); err != nil {
		return nil, err
	}

	jql := c.buildJQL(query)
	var (
		out       []ticket.Ticket
		pageToken string
		startAt   int
	)
	for len(out) < limit {
		pageSize := min(c.cfg.PageSize, limit-len(out))
		q := url.Values{
			"jql":        {jql},
			"maxResults": {strconv.Itoa(pageSize)},
			"fields":     {searchFields},
		}
		if pageToken != "" {
			q.Set("nextPageToken", pageToken)
		} else if startAt > 0 {
			q.Set("startAt", strconv.Itoa(startAt))
		}

		var page searchResult
		if err := c.client.Do(ctx, connector.Request{Path: "/rest/api/3/search/jql", Query: q}, &page); err != nil {
			return nil, err
		}
		for _, is := range page.Issues {
			out = append(out, toTicket(is))
		}

		startAt += len(page.Issues)
		if len(page.Issues) == 0 || page.IsLast {
			break
		}
		if page.NextPageToken != "" {
			pageToken = page.NextPageToken
			continue
		}
		if page.Total == 0 || startAt >= page.Total {
			break
		}
	}
	return connector.Truncate(out, limit), nil
}

// FetchTicket loads one issue by key (e.g. PROJ-12).
func (c *Connector) FetchTicket(ctx context.Context, id string) (ticket.Ticket, error) {
	key := strings.ToUpper(strings.TrimSpace(id))
	if !issueKeyRe.MatchString(key) {
		return ticket.Ticket{}, apperr.New(apperr.TicketNotFound, "%q is not a Jira issue key", id)
	}

	var is issue
	err := c.client.Do(ctx, connector.Request{
		Path:     "/rest/api/3/issue/" + url.PathEscape(key),
		Query:    url.Values{"fields": {searchFields}},
		NotFound: apperr.TicketNotFound,
	}, &is)
	if err != nil {
		return ticket.Ticket{}, err
	}
	return toTicket(is), nil
}

// buildJQL passes JQL through and turns free text into a text search.
func (c *Connector) buildJQL(query string) string {
	query = strings.TrimSpace(query)
	if query != "" && jqlHint.MatchString(query) {
		return query
	}

	var clauses []string
	if c.cfg.Project != "" {
		clauses = append(clauses, "project = "+quote(c.cfg.Project))
	}
	if query != "" {
		clauses = append(clauses, "text ~ "+quote(query))
	}
	jql := strings.Join(clauses, " AND ")
	if jql == "" {
		return "ORDER BY updated DESC"
	}
	return jql + " ORDER BY updated DESC"
}

func quote(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}

func toTicket(is issue) ticket.Ticket {
	meta := map[string]any{
		"jira_id": is.ID,
		"self":    is.Self,
	}
	f := is.Fields
	if f.Status != nil {
		meta["status"] = f.Status.Name
	}
	if f.IssueType != nil {
		meta["issue_type"] = f.IssueType.Name
	}
	if f.Priority != nil {
		meta["priority"] = f.Priority.Name
	}
	if len(f.Labels) > 0 {
		meta["labels"] = f.Labels
	}
	if f.Updated != "" {
		meta["updated"] = f.Updated
	}
	return ticket.Ticket{
		ID:          is.Key,
		Title:       is.Fields.Summary,
		Description: descriptionText(is.Fields.Description),
		Source:      ticket.SourceJira,
		RawMetadata: meta,
	}
}
