// Package config loads process configuration from the environment, with an
// optional .env file in the working directory.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/HendryAvila/qa-mcp/internal/connector/azuredevops"
	"github.com/HendryAvila/qa-mcp/internal/connector/gitlab"
	"github.com/HendryAvila/qa-mcp/internal/connector/jira"
	"github.com/HendryAvila/qa-mcp/internal/embedder"
	"github.com/HendryAvila/qa-mcp/internal/llm"
	"github.com/HendryAvila/qa-mcp/internal/logging"
	"github.com/HendryAvila/qa-mcp/internal/telemetry"
	"github.com/HendryAvila/qa-mcp/internal/vectorstore"
	"github.com/HendryAvila/qa-mcp/internal/weather"
)

// Mode selects how BDD generation is served.
type Mode string

const (
	// ModeLocal runs the RAG pipeline in process.
	ModeLocal Mode = "local"
	// ModeProxy forwards generation to a remote RAG service.
	ModeProxy Mode = "proxy"
)

type Config struct {
	Version string
	Mode    Mode
	DataDir string
	// CheckUpdates runs a background release check when serving.
	CheckUpdates bool

	RAG         RAGConfig
	SSE         SSEConfig
	Jira        jira.Config
	AzureDevOps azuredevops.Config
	GitLab      gitlab.Config
	VectorStore vectorstore.Config
	Embedder    embedder.Config
	LLM         llm.Config
	Cache       CacheConfig
	Weather     weather.Config
	Log         logging.Config
	OTel        telemetry.Config
}

type RAGConfig struct {
	ServiceURL  string
	ServiceAddr string
	TopK        int
}

type SSEConfig struct {
	Addr    string
	BaseURL string
}

type CacheConfig struct {
	RedisURL string
	TTL      time.Duration
}

// Enabled reports whether a Redis URL is configured.
func (c CacheConfig) Enabled() bool { return c.RedisURL != "" }

// Load reads the environment. A .env file, when present, fills variables
// that are not already set.
func Load(version string) (Config, error) {
	_ = godotenv.Load()

	if version == "" {
		version = "dev"
	}

	home, _ := os.UserHomeDir()
	dataDir := expandHome(getEnv("DATA_DIR", filepath.Join(home, ".qa-mcp")), home)
	rps := getEnvFloat("CONNECTOR_RPS", 5)
	llmKey := firstNonEmpty(os.Getenv("LLM_API_KEY"), os.Getenv("GEMINI_API_KEY"), os.Getenv("OPENAI_API_KEY"))
	provider := strings.ToLower(getEnv("EMBEDDER", "hash"))
	temperature := getEnvFloat("LLM_TEMPERATURE", 0.2)

	cfg := Config{
		Version: version,
		Mode:    Mode(strings.ToLower(getEnv("RAG_MODE", string(ModeLocal)))),
		DataDir: dataDir,

		CheckUpdates: getEnvBool("QA_MCP_UPDATE_CHECK", true),
		RAG: RAGConfig{
			ServiceURL:  getEnv("RAG_SERVICE_URL", "http://localhost:8090"),
			ServiceAddr: getEnv("RAG_SERVICE_ADDR", ":8090"),
			TopK:        getEnvInt("RAG_TOP_K", 5),
		},
		SSE: SSEConfig{
			Addr:    getEnv("SSE_ADDR", ":8080"),
			BaseURL: getEnv("SSE_BASE_URL", "http://localhost:8080"),
		},
		Jira: jira.Config{
			BaseURL:           os.Getenv("JIRA_BASE_URL"),
			Email:             os.Getenv("JIRA_EMAIL"),
			APIToken:          os.Getenv("JIRA_API_TOKEN"),
			Project:           os.Getenv("JIRA_PROJECT"),
			RequestsPerSecond: rps,
		},
		AzureDevOps: azuredevops.Config{
			OrgURL:            os.Getenv("AZURE_DEVOPS_ORG_URL"),
			Project:           os.Getenv("AZURE_DEVOPS_PROJECT"),
			PAT:               os.Getenv("AZURE_DEVOPS_PAT"),
			RequestsPerSecond: rps,
		},
		GitLab: gitlab.Config{
			BaseURL:           getEnv("GITLAB_BASE_URL", "https://gitlab.com"),
			Token:             os.Getenv("GITLAB_TOKEN"),
			Project:           os.Getenv("GITLAB_PROJECT"),
			RequestsPerSecond: rps,
		},
		VectorStore: vectorstore.Config{
			URI:        getEnv("VECTOR_STORE_URI", "sqlite://"),
			Database:   getEnv("VECTOR_STORE_DATABASE", "qa-mcp.db"),
			Collection: getEnv("VECTOR_STORE_COLLECTION", "ticket_embeddings"),
			DataDir:    dataDir,
		},
		Embedder: embedder.Config{
			Provider:   provider,
			Dimensions: getEnvInt("EMBEDDING_DIMENSIONS", defaultDimensions(provider)),
			Model:      getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			APIKey:     firstNonEmpty(os.Getenv("EMBEDDING_API_KEY"), llmKey),
			BaseURL:    firstNonEmpty(os.Getenv("EMBEDDING_BASE_URL"), os.Getenv("LLM_BASE_URL")),
		},
		LLM: llm.Config{
			APIKey:      llmKey,
			BaseURL:     os.Getenv("LLM_BASE_URL"),
			Model:       getEnv("LLM_MODEL", "gpt-4o-mini"),
			MaxTokens:   getEnvInt("LLM_MAX_TOKENS", 2048),
			Temperature: &temperature,
		},
		Cache: CacheConfig{
			RedisURL: os.Getenv("REDIS_URL"),
			TTL:      getEnvDuration("GENERATION_CACHE_TTL", 24*time.Hour),
		},
		Weather: weather.Config{
			BaseURL:   getEnv("WEATHER_API_BASE_URL", weather.DefaultBaseURL),
			UserAgent: getEnv("WEATHER_USER_AGENT", "qa-mcp/"+version),
		},
		Log: logging.Config{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		OTel: telemetry.Config{
			Endpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
			Headers:        os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "qa-mcp"),
			ServiceVersion: version,
		},
	}
	cfg.VectorStore.Dimensions = cfg.Embedder.Dimensions
	cfg.Log.OTel = cfg.OTel.Enabled()
	cfg.Log.ServiceName = cfg.OTel.ServiceName

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error

	switch c.Mode {
	case ModeLocal, ModeProxy:
	default:
		errs = append(errs, fmt.Errorf("RAG_MODE must be %q or %q, got %q", ModeLocal, ModeProxy, c.Mode))
	}
	if c.Mode == ModeProxy {
		if u, err := url.Parse(c.RAG.ServiceURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("RAG_SERVICE_URL must be an absolute URL, got %q", c.RAG.ServiceURL))
		}
	}
	if c.RAG.TopK < 1 {
		errs = append(errs, fmt.Errorf("RAG_TOP_K must be >= 1, got %d", c.RAG.TopK))
	}

	if err := allOrNothing("JIRA_BASE_URL", c.Jira.BaseURL, "JIRA_EMAIL", c.Jira.Email, "JIRA_API_TOKEN", c.Jira.APIToken); err != nil {
		errs = append(errs, err)
	}
	if err := allOrNothing("AZURE_DEVOPS_ORG_URL", c.AzureDevOps.OrgURL, "AZURE_DEVOPS_PROJECT", c.AzureDevOps.Project, "AZURE_DEVOPS_PAT", c.AzureDevOps.PAT); err != nil {
		errs = append(errs, err)
	}
	if err := allOrNothing("GITLAB_TOKEN", c.GitLab.Token, "GITLAB_PROJECT", c.GitLab.Project); err != nil {
		errs = append(errs, err)
	}

	switch c.Embedder.Provider {
	case "hash":
	case "openai":
		if c.Embedder.APIKey == "" {
			errs = append(errs, errors.New("EMBEDDER=openai requires EMBEDDING_API_KEY or an LLM key"))
		}
	default:
		errs = append(errs, fmt.Errorf("EMBEDDER must be hash or openai, got %q", c.Embedder.Provider))
	}
	if c.Embedder.Dimensions < 1 {
		errs = append(errs, fmt.Errorf("EMBEDDING_DIMENSIONS must be >= 1, got %d", c.Embedder.Dimensions))
	}
	if c.LLM.MaxTokens < 1 {
		errs = append(errs, fmt.Errorf("LLM_MAX_TOKENS must be >= 1, got %d", c.LLM.MaxTokens))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// RequireLLM reports a fatal error when generation runs locally without a
// model key.
func (c Config) RequireLLM() error {
	if c.LLM.APIKey == "" {
		return errors.New("config: local generation requires LLM_API_KEY (or GEMINI_API_KEY / OPENAI_API_KEY)")
	}
	return nil
}

// JiraEnabled reports whether Jira credentials are configured.
func (c Config) JiraEnabled() bool { return c.Jira.BaseURL != "" }

// AzureDevOpsEnabled reports whether Azure DevOps credentials are configured.
func (c Config) AzureDevOpsEnabled() bool { return c.AzureDevOps.OrgURL != "" }

// GitLabEnabled reports whether GitLab credentials are configured.
func (c Config) GitLabEnabled() bool { return c.GitLab.Token != "" }

// ─── Helpers ─────────────────────────────────────────────────────────────────

// allOrNothing takes name/value pairs and fails when only some are set.
func allOrNothing(pairs ...string) error {
	var set, missing []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] != "" {
			set = append(set, pairs[i])
		} else {
			missing = append(missing, pairs[i])
		}
	}
	if len(set) > 0 && len(missing) > 0 {
		return fmt.Errorf("%s set but missing %s", strings.Join(set, ", "), strings.Join(missing, ", "))
	}
	return nil
}

func defaultDimensions(provider string) int {
	if provider == "openai" {
		return 1536
	}
	return embedder.DefaultHashDimensions
}

func expandHome(path, home string) string {
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
