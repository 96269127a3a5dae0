// Package updater checks GitHub Releases for a newer qa-mcp version.
//
// The check is best effort: "serve" runs it in the background and only
// logs the outcome, "version --check" reports it.
package updater

import (
	"context"
	"strings"
	"time"

	"github.com/HendryAvila/qa-mcp/internal/connector"
)

const (
	// DefaultRepo is the repository whose releases are checked.
	DefaultRepo = "HendryAvila/qa-mcp"
	// DefaultAPIURL is the GitHub REST API root.
	DefaultAPIURL = "https://api.github.com"

	checkTimeout = 10 * time.Second
)

// Config configures a Checker.
type Config struct {
	APIURL string
	Repo   string
}

// Release holds the fields of a GitHub release that the check reads.
type Release struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

// Result is the outcome of a version check.
type Result struct {
	CurrentVersion  string `json:"current_version"`
	LatestVersion   string `json:"latest_version,omitempty"`
	UpdateAvailable bool   `json:"update_available"`
	ReleaseURL      string `json:"release_url,omitempty"`
}

// Checker queries the latest release.
type Checker struct {
	repo string
	http *connector.HTTPClient
}

// New creates a Checker with defaults applied.
func New(cfg Config, currentVersion string) *Checker {
	base := cfg.APIURL
	if base == "" {
		base = DefaultAPIURL
	}
	repo := cfg.Repo
	if repo == "" {
		repo = DefaultRepo
	}
	return &Checker{
		repo: repo,
		http: connector.NewHTTPClient(connector.HTTPConfig{
			BaseURL:   base,
			Timeout:   checkTimeout,
			UserAgent: "qa-mcp/" + currentVersion,
		}),
	}
}

// Check compares currentVersion against the latest release. Development
// builds never report an update.
func (c *Checker) Check(ctx context.Context, currentVersion string) (*Result, error) {
	result := &Result{CurrentVersion: normalizeVersion(currentVersion)}

	var release Release
	err := c.http.Do(ctx, connector.Request{
		Path:   "/repos/" + c.repo + "/releases/latest",
		Accept: "application/vnd.github+json",
	}, &release)
	if err != nil {
		return result, err
	}

	result.LatestVersion = normalizeVersion(release.TagName)
	result.ReleaseURL = release.HTMLURL
	result.UpdateAvailable = isNewer(result.CurrentVersion, result.LatestVersion)
	return result, nil
}

// normalizeVersion strips the leading "v" from version strings.
func normalizeVersion(v string) string {
	return strings.TrimPrefix(v, "v")
}

// isNewer returns true if latest is a higher version than current.
// Pre-release and build suffixes are ignored.
func isNewer(current, latest string) bool {
	if current == "" || latest == "" || current == "dev" {
		return false
	}

	currentParts := strings.Split(current, ".")
	latestParts := strings.Split(latest, ".")

	for len(currentParts) < 3 {
		currentParts = append(currentParts, "0")
	}
	for len(latestParts) < 3 {
		latestParts = append(latestParts, "0")
	}

	for i := range 3 {
		c := parseIntSafe(currentParts[i])
		l := parseIntSafe(latestParts[i])
		if l != c {
			return l > c
		}
	}
	return false
}

// parseIntSafe reads the leading digits of s, returning 0 when there are none.
func parseIntSafe(s string) int {
	n := 0
	for _, ch := range s {
		if ch < '0' || ch > '9' {
			break
		}
		n = n*10 + int(ch-'0')
	}
	return n
}
