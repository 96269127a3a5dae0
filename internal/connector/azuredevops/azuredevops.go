// Package azuredevops implements an Azure DevOps Boards connector using
// WIQL queries and the work item batch API.
package azuredevops

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/HendryAvila/qa-mcp/internal/apperr"
	"github.com/HendryAvila/qa-mcp/internal/connector"
	"github.com/HendryAvila/qa-mcp/internal/ticket"
)

const (
	apiVersion = "7.1"
	// batchSize is the work item API's per-call id limit.
	batchSize = 200
)

var itemFields = []string{
	"System.Title",
	"System.Description",
	"System.State",
	"System.WorkItemType",
	"System.Tags",
	"System.ChangedDate",
	"Microsoft.VSTS.Common.AcceptanceCriteria",
}

// Config holds Azure DevOps connection settings.
type Config struct {
	// OrgURL is the organization URL, e.g. https://dev.azure.com/contoso.
	OrgURL  string
	Project string
	// PAT is a personal access token with Work Items (Read) scope.
	PAT               string
	RequestsPerSecond float64
}

// Validate checks required fields.
func (c Config) Validate() error {
	switch {
	case c.OrgURL == "":
		return errors.New("azuredevops: org url is required")
	case c.Project == "":
		return errors.New("azuredevops: project is required")
	case c.PAT == "":
		return errors.New("azuredevops: personal access token is required")
	}
	return nil
}

// Connector fetches Azure DevOps work items.
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
			BaseURL:           cfg.OrgURL,
			Password:          cfg.PAT,
			RequestsPerSecond: cfg.RequestsPerSecond,
		}),
	}, nil
}

// Source implements connector.Connector.
func (c *Connector) Source() ticket.Source { return ticket.SourceAzureDevOps }

type wiqlResult struct {
	WorkItems []struct {
		ID int `json:"id"`
	} `json:"workItems"`
}

type workItem struct {
	ID     int            `json:"id"`
	URL    string         `json:"url"`
	Fields map[string]any `json:"fields"`
}

type workItemList struct {
	Count int        `json:"count"`
	Value []workItem `json:"value"`
}

// FetchTickets runs query as WIQL when it starts with SELECT, otherwise
// as a title search inside the configured project.
func (c *Connector) FetchTickets(ctx context.Context, query string, limit int) ([]ticket.Ticket, error) {
	if err := connector.ValidateLimit(limit); err != nil {
		return nil, err
	}

	var ids wiqlResult
	err := c.client.Do(ctx, connector.Request{
		Method: "POST",
		Path:   c.projectPath("/_apis/wit/wiql"),
		Query:  url.Values{"api-version": {apiVersion}, "$top": {strconv.Itoa(limit)}},
		Body:   map[string]string{"query": buildWIQL(query)},
	}, &ids)
	if err != nil {
		return nil, err
	}

	all := make([]int, 0, len(ids.WorkItems))
	for _, w := range ids.WorkItems {
		all = append(all, w.ID)
	}
	if len(all) > limit {
		all = all[:limit]
	}

	out := make([]ticket.Ticket, 0, len(all))
	for start := 0; start < len(all); start += batchSize {
		end := min(start+batchSize, len(all))
		var page workItemList
		err := c.client.Do(ctx, connector.Request{
			Path: c.projectPath("/_apis/wit/workitems"),
			Query: url.Values{
				"ids":         {joinIDs(all[start:end])},
				"fields":      {strings.Join(itemFields, ",")},
				"api-version": {apiVersion},
			},
		}, &page)
		if err != nil {
			return nil, err
		}
		for _, w := range page.Value {
			out = append(out, toTicket(w))
		}
	}
	return connector.Truncate(out, limit), nil
}

// FetchTicket loads one work item by numeric id.
func (c *Connector) FetchTicket(ctx context.Context, id string) (ticket.Ticket, error) {
	id = strings.TrimSpace(id)
	if _, err := strconv.Atoi(id); err != nil {
		return ticket.Ticket{}, apperr.New(apperr.TicketNotFound, "%q is not an Azure DevOps work item id", id)
	}

	var w workItem
	err := c.client.Do(ctx, connector.Request{
		Path:     c.projectPath("/_apis/wit/workitems/" + id),
		Query:    url.Values{"fields": {strings.Join(itemFields, ",")}, "api-version": {apiVersion}},
		NotFound: apperr.TicketNotFound,
	}, &w)
	if err != nil {
		return ticket.Ticket{}, err
	}
	return toTicket(w), nil
}

func (c *Connector) projectPath(p string) string {
	return "/" + url.PathEscape(c.cfg.Project) + p
}

// buildWIQL passes WIQL through and turns free text into a title search.
func buildWIQL(query string) string {
	query = strings.TrimSpace(query)
	if strings.HasPrefix(strings.ToUpper(query), "SELECT") {
		return query
	}
	wiql := "SELECT [System.Id] FROM WorkItems WHERE [System.TeamProject] = @project"
	if query != "" {
		wiql += " AND [System.Title] CONTAINS '" + strings.ReplaceAll(query, "'", "''") + "'"
	}
	return wiql + " ORDER BY [System.ChangedDate] DESC"
}

func joinIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

func toTicket(w workItem) ticket.Ticket {
	str := func(k string) string {
		s, _ := w.Fields[k].(string)
		return s
	}

	desc := htmlToText(str("System.Description"))
	if ac := htmlToText(str("Microsoft.VSTS.Common.AcceptanceCriteria")); ac != "" {
		desc = strings.TrimSpace(desc + "\n\nAcceptance criteria:\n" + ac)
	}

	meta := map[string]any{"url": w.URL}
	for key, name := range map[string]string{
		"System.State":        "state",
		"System.WorkItemType": "work_item_type",
		"System.Tags":         "tags",
		"System.ChangedDate":  "changed_date",
	} {
		if v := str(key); v != "" {
			meta[name] = v
		}
	}

	return ticket.Ticket{
		ID:          strconv.Itoa(w.ID),
		Title:       str("System.Title"),
		Description: desc,
		Source:      ticket.SourceAzureDevOps,
		RawMetadata: meta,
	}
}

// htmlToText flattens the HTML that Boards stores in rich text fields.
func htmlToText(h string) string {
	if strings.TrimSpace(h) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(h))
	if err != nil {
		return strings.TrimSpace(h)
	}
	doc.Find("script, style").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, li, h1, h2, h3, h4, h5, h6, tr").AppendHtml("\n")

	lines := strings.Split(doc.Text(), "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
