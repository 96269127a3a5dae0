package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/qa-mcp/internal/weather"
)

// WeatherService is the subset of weather.Client the weather tools use.
type WeatherService interface {
	Alerts(ctx context.Context, state string) ([]weather.Alert, error)
	Forecast(ctx context.Context, latitude, longitude float64) ([]weather.Period, error)
}

// ─── get_alerts ─────────────────────────────────────────────────────────────

type AlertsParams struct {
	State string `json:"state"`
}

// AlertsTool lists active weather alerts for a US state.
type AlertsTool struct {
	weather WeatherService
}

func NewAlertsTool(w WeatherService) *AlertsTool { return &AlertsTool{weather: w} }

// Definition returns the MCP tool definition for registration.
func (t *AlertsTool) Definition() mcp.Tool {
	return mcp.NewTool("get_alerts",
		mcp.WithDescription("Get active weather alerts for a US state from the National Weather Service."),
		mcp.WithString("state",
			mcp.Required(),
			mcp.Description("Two-letter US state code, e.g. CA or NY"),
		),
	)
}

// Handle processes the get_alerts tool call.
func (t *AlertsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p AlertsParams
	if res := bind(req, &p); res != nil {
		return res, nil
	}
	alerts, err := t.weather.Alerts(ctx, p.State)
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(weather.FormatAlerts(p.State, alerts)), nil
}

// ─── get_forecast ───────────────────────────────────────────────────────────

type ForecastParams struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// ForecastTool returns the upcoming forecast for a location.
type ForecastTool struct {
	weather WeatherService
}

func NewForecastTool(w WeatherService) *ForecastTool { return &ForecastTool{weather: w} }

// Definition returns the MCP tool definition for registration.
func (t *ForecastTool) Definition() mcp.Tool {
	return mcp.NewTool("get_forecast",
		mcp.WithDescription("Get the weather forecast for a US location (next 5 periods)."),
		mcp.WithNumber("latitude", mcp.Required(), mcp.Description("Latitude of the location")),
		mcp.WithNumber("longitude", mcp.Required(), mcp.Description("Longitude of the location")),
	)
}

// Handle processes the get_forecast tool call.
func (t *ForecastTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p ForecastParams
	if res := bind(req, &p); res != nil {
		return res, nil
	}
	if p.Latitude == nil || p.Longitude == nil {
		return invalid("'latitude' and 'longitude' are required"), nil
	}
	periods, err := t.weather.Forecast(ctx, *p.Latitude, *p.Longitude)
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(weather.FormatForecast(periods)), nil
}
