package jira

import (
	"encoding/json"
	"strings"
)

// ─── Config ──────────────────────────────────────────────────────────────────

// Config holds Jira Cloud connection settings.
type Config struct {
	// BaseURL is the site URL, e.g. https://yoursite.atlassian.net.
	BaseURL  string
	Email    string
	APIToken string
	// Project optionally scopes plain-text searches to one project key.
	Project string
	// PageSize is the maxResults sent per search call (Jira caps it at 100).
	PageSize          int
	RequestsPerSecond float64
}

// DefaultPageSize is the default and maximum Jira page size.
const DefaultPageSize = 100

// Validate checks required fields and clamps PageSize.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return &ValidationError{Field: "base_url", Message: "required"}
	}
	if c.Email == "" {
		return &ValidationError{Field: "email", Message: "required"}
	}
	if c.APIToken == "" {
		return &ValidationError{Field: "api_token", Message: "required"}
	}
	if c.PageSize <= 0 || c.PageSize > DefaultPageSize {
		c.PageSize = DefaultPageSize
	}
	return nil
}

// ValidationError reports a bad config field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "jira: " + e.Field + ": " + e.Message
}

// ─── API types ───────────────────────────────────────────────────────────────

type searchResult struct {
	Issues        []issue `json:"issues"`
	NextPageToken string  `json:"nextPageToken,omitempty"`
	IsLast        bool    `json:"isLast,omitempty"`
	StartAt       int     `json:"startAt,omitempty"`
	Total         int     `json:"total,omitempty"`
}

type issue struct {
	ID     string      `json:"id"`
	Key    string      `json:"key"`
	Self   string      `json:"self"`
	Fields issueFields `json:"fields"`
}

type issueFields struct {
	Summary     string          `json:"summary"`
	Description json.RawMessage `json:"description,omitempty"`
	Status      *named          `json:"status,omitempty"`
	IssueType   *named          `json:"issuetype,omitempty"`
	Priority    *named          `json:"priority,omitempty"`
	Labels      []string        `json:"labels,omitempty"`
	Updated     string          `json:"updated,omitempty"`
}

type named struct {
	Name string `json:"name"`
}

// adfNode is a node of an Atlassian Document Format tree.
type adfNode struct {
	Type    string    `json:"type"`
	Text    string    `json:"text,omitempty"`
	Content []adfNode `json:"content,omitempty"`
}

// adfBlocks end with a newline when flattened.
var adfBlocks = map[string]bool{
	"paragraph":  true,
	"heading":    true,
	"listItem":   true,
	"codeBlock":  true,
	"blockquote": true,
	"rule":       true,
	"tableRow":   true,
}

// descriptionText flattens a v3 description into plain text. Descriptions
// may be ADF documents, plain strings (v2-style) or null.
func descriptionText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var doc adfNode
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ""
	}
	var b strings.Builder
	writeADF(&b, doc)
	return strings.TrimSpace(collapseBlankLines(b.String()))
}

func writeADF(b *strings.Builder, n adfNode) {
	switch n.Type {
	case "text":
		b.WriteString(n.Text)
		return
	case "hardBreak":
		b.WriteByte('\n')
		return
	}
	for _, c := range n.Content {
		writeADF(b, c)
	}
	if adfBlocks[n.Type] {
		b.WriteByte('\n')
	}
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	blank := false
	for _, l := range lines {
		l = strings.TrimRight(l, " \t")
		if l == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, l)
	}
	return strings.Join(out, "\n")
}
