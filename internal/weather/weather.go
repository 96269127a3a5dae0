// Package weather is a small National Weather Service client backing the
// get_alerts and get_forecast tools.
package weather

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/HendryAvila/qa-mcp/internal/apperr"
	"github.com/HendryAvila/qa-mcp/internal/connector"
)

// DefaultBaseURL is the public NWS API.
const DefaultBaseURL = "https://api.weather.gov"

// ForecastPeriods is the number of periods returned by Forecast.
const ForecastPeriods = 5

const geoJSON = "application/geo+json"

var stateRe = regexp.MustCompile(`^[A-Z]{2}$`)

// Config configures a Client.
type Config struct {
	BaseURL string
	// UserAgent is required by the NWS API terms of service.
	UserAgent string
}

// Client fetches alerts and forecasts.
type Client struct {
	baseURL string
	http    *connector.HTTPClient
}

// New creates a Client.
func New(cfg Config) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{
		baseURL: base,
		http: connector.NewHTTPClient(connector.HTTPConfig{
			BaseURL:   base,
			UserAgent: cfg.UserAgent,
		}),
	}
}

// ─── API types ──────────────────────────────────────────────────────────────

// Alert is one active weather alert.
type Alert struct {
	Event       string `json:"event"`
	AreaDesc    string `json:"areaDesc"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	Instruction string `json:"instruction"`
}

// Period is one forecast period.
type Period struct {
	Name             string `json:"name"`
	Temperature      int    `json:"temperature"`
	TemperatureUnit  string `json:"temperatureUnit"`
	WindSpeed        string `json:"windSpeed"`
	WindDirection    string `json:"windDirection"`
	DetailedForecast string `json:"detailedForecast"`
}

type alertsResponse struct {
	Features []struct {
		Properties Alert `json:"properties"`
	} `json:"features"`
}

type pointsResponse struct {
	Properties struct {
		Forecast string `json:"forecast"`
	} `json:"properties"`
}

type forecastResponse struct {
	Properties struct {
		Periods []Period `json:"periods"`
	} `json:"properties"`
}

// ─── Operations ─────────────────────────────────────────────────────────────

// Alerts returns the active alerts for a two-letter US state code.
func (c *Client) Alerts(ctx context.Context, state string) ([]Alert, error) {
	state = strings.ToUpper(strings.TrimSpace(state))
	if !stateRe.MatchString(state) {
		return nil, apperr.New(apperr.InvalidInput, "state must be a two-letter US state code, got %q", state)
	}

	var resp alertsResponse
	err := c.http.Do(ctx, connector.Request{
		Path:   "/alerts/active",
		Query:  url.Values{"area": {state}},
		Accept: geoJSON,
	}, &resp)
	if err != nil {
		return nil, err
	}

	alerts := make([]Alert, 0, len(resp.Features))
	for _, f := range resp.Features {
		alerts = append(alerts, f.Properties)
	}
	return alerts, nil
}

// Forecast returns the next ForecastPeriods periods for a location.
func (c *Client) Forecast(ctx context.Context, latitude, longitude float64) ([]Period, error) {
	if latitude < -90 || latitude > 90 || longitude < -180 || longitude > 180 {
		return nil, apperr.New(apperr.InvalidInput, "coordinates out of range: %v,%v", latitude, longitude)
	}

	var points pointsResponse
	err := c.http.Do(ctx, connector.Request{
		Path:     fmt.Sprintf("/points/%.4f,%.4f", latitude, longitude),
		Accept:   geoJSON,
		NotFound: apperr.InvalidInput,
	}, &points)
	if err != nil {
		return nil, err
	}

	path, err := c.relative(points.Properties.Forecast)
	if err != nil {
		return nil, err
	}

	var forecast forecastResponse
	if err := c.http.Do(ctx, connector.Request{Path: path, Accept: geoJSON}, &forecast); err != nil {
		return nil, err
	}

	periods := forecast.Properties.Periods
	if len(periods) > ForecastPeriods {
		periods = periods[:ForecastPeriods]
	}
	return periods, nil
}

// relative turns the absolute forecast URL from /points into a path on
// the configured API host.
func (c *Client) relative(forecastURL string) (string, error) {
	if forecastURL == "" {
		return "", apperr.New(apperr.UpstreamUnavailable, "no forecast available for this location")
	}
	if !strings.HasPrefix(forecastURL, c.baseURL+"/") {
		return "", apperr.New(apperr.UpstreamUnavailable, "unexpected forecast url %q", forecastURL)
	}
	return strings.TrimPrefix(forecastURL, c.baseURL), nil
}

// ─── Formatting ─────────────────────────────────────────────────────────────

// FormatAlerts renders alerts as text blocks separated by "---".
func FormatAlerts(state string, alerts []Alert) string {
	if len(alerts) == 0 {
		return fmt.Sprintf("No active alerts for %s.", strings.ToUpper(state))
	}
	blocks := make([]string, len(alerts))
	for i, a := range alerts {
		instruction := a.Instruction
		if instruction == "" {
			instruction = "No specific instructions provided"
		}
		blocks[i] = fmt.Sprintf("Event: %s\nArea: %s\nSeverity: %s\nDescription: %s\nInstructions: %s",
			orUnknown(a.Event), orUnknown(a.AreaDesc), orUnknown(a.Severity),
			strings.TrimSpace(a.Description), strings.TrimSpace(instruction))
	}
	return strings.Join(blocks, "\n---\n")
}

// FormatForecast renders forecast periods as text blocks.
func FormatForecast(periods []Period) string {
	if len(periods) == 0 {
		return "No forecast periods returned."
	}
	blocks := make([]string, len(periods))
	for i, p := range periods {
		blocks[i] = fmt.Sprintf("%s:\nTemperature: %d°%s\nWind: %s %s\nForecast: %s",
			p.Name, p.Temperature, p.TemperatureUnit, p.WindSpeed, p.WindDirection, p.DetailedForecast)
	}
	return strings.Join(blocks, "\n---\n")
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Unknown"
	}
	return s
}
