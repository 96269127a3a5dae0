// Package ticket defines the canonical work item record that every
// connector normalizes into.
package ticket

import (
	"fmt"
	"strings"
)

// Source identifies the issue tracker a ticket came from.
type Source string

const (
	SourceJira        Source = "JIRA"
	SourceAzureDevOps Source = "AZURE_DEVOPS"
	SourceGitLab      Source = "GITLAB"
)

// Sources lists every known source in registry order.
var Sources = []Source{SourceJira, SourceAzureDevOps, SourceGitLab}

// ParseSource accepts the canonical name or a lowercase alias
// ("jira", "azure", "azure_devops", "ado", "gitlab").
func ParseSource(s string) (Source, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "JIRA":
		return SourceJira, nil
	case "AZURE_DEVOPS", "AZURE-DEVOPS", "AZURE", "ADO":
		return SourceAzureDevOps, nil
	case "GITLAB":
		return SourceGitLab, nil
	}
	return "", fmt.Errorf("unknown ticket source %q", s)
}

// Ticket is a work item fetched from a tracker. Identity is (Source, ID).
type Ticket struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Source      Source         `json:"source"`
	RawMetadata map[string]any `json:"raw_metadata,omitempty"`
}

// CombinedText is the text that gets embedded for a ticket: the trimmed
// title, a newline, then the trimmed description. A blank description
// yields the title alone. Changing this rule changes every stored vector.
func CombinedText(t Ticket) string {
	title := strings.TrimSpace(t.Title)
	desc := strings.TrimSpace(t.Description)
	if desc == "" {
		return title
	}
	if title == "" {
		return desc
	}
	return title + "\n" + desc
}
