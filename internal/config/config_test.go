package config

import (
	"strings"
	"testing"
	"time"
)

var envKeys = []string{
	"RAG_MODE", "RAG_SERVICE_URL", "RAG_SERVICE_ADDR", "RAG_TOP_K", "SSE_ADDR", "SSE_BASE_URL",
	"JIRA_BASE_URL", "JIRA_EMAIL", "JIRA_API_TOKEN", "JIRA_PROJECT",
	"AZURE_DEVOPS_ORG_URL", "AZURE_DEVOPS_PROJECT", "AZURE_DEVOPS_PAT",
	"GITLAB_BASE_URL", "GITLAB_TOKEN", "GITLAB_PROJECT", "CONNECTOR_RPS",
	"VECTOR_STORE_URI", "VECTOR_STORE_DATABASE", "VECTOR_STORE_COLLECTION", "DATA_DIR",
	"EMBEDDER", "EMBEDDING_MODEL", "EMBEDDING_DIMENSIONS", "EMBEDDING_API_KEY", "EMBEDDING_BASE_URL",
	"LLM_API_KEY", "GEMINI_API_KEY", "OPENAI_API_KEY", "LLM_BASE_URL", "LLM_MODEL", "LLM_MAX_TOKENS", "LLM_TEMPERATURE",
	"REDIS_URL", "GENERATION_CACHE_TTL", "WEATHER_API_BASE_URL", "WEATHER_USER_AGENT",
	"LOG_LEVEL", "LOG_FORMAT", "OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_HEADERS", "OTEL_SERVICE_NAME",
	"QA_MCP_UPDATE_CHECK",
}

// cleanEnv blanks every variable Load reads so the host environment
// cannot leak into a test.
func cleanEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
	t.Chdir(t.TempDir())
}

func TestLoad_Defaults(t *testing.T) {
	cleanEnv(t)
	t.Setenv("DATA_DIR", "/tmp/qa")

	cfg, err := Load("1.2.3")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != ModeLocal {
		t.Errorf("Mode = %q", cfg.Mode)
	}
	if cfg.RAG.TopK != 5 || cfg.RAG.ServiceURL != "http://localhost:8090" || cfg.RAG.ServiceAddr != ":8090" {
		t.Errorf("RAG = %+v", cfg.RAG)
	}
	if cfg.SSE.Addr != ":8080" {
		t.Errorf("SSE.Addr = %q", cfg.SSE.Addr)
	}
	if cfg.VectorStore.URI != "sqlite://" || cfg.VectorStore.DataDir != "/tmp/qa" || cfg.VectorStore.Collection != "ticket_embeddings" {
		t.Errorf("VectorStore = %+v", cfg.VectorStore)
	}
	if cfg.Embedder.Provider != "hash" || cfg.Embedder.Dimensions != 384 || cfg.VectorStore.Dimensions != 384 {
		t.Errorf("Embedder = %+v", cfg.Embedder)
	}
	if cfg.LLM.Model != "gpt-4o-mini" || cfg.LLM.MaxTokens != 2048 || *cfg.LLM.Temperature != 0.2 {
		t.Errorf("LLM = %+v", cfg.LLM)
	}
	if cfg.Cache.Enabled() || cfg.Cache.TTL != 24*time.Hour {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if cfg.Weather.UserAgent != "qa-mcp/1.2.3" {
		t.Errorf("Weather.UserAgent = %q", cfg.Weather.UserAgent)
	}
	if cfg.JiraEnabled() || cfg.AzureDevOpsEnabled() || cfg.GitLabEnabled() {
		t.Error("no tracker should be enabled by default")
	}
	if cfg.OTel.Enabled() || cfg.Log.OTel {
		t.Error("telemetry should be off by default")
	}
	if err := cfg.RequireLLM(); err == nil {
		t.Error("RequireLLM should fail without a key")
	}
	if !cfg.CheckUpdates {
		t.Error("update check should be on by default")
	}
}

func TestLoad_UpdateCheckOff(t *testing.T) {
	cleanEnv(t)
	t.Setenv("QA_MCP_UPDATE_CHECK", "false")

	cfg, err := Load("1.2.3")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CheckUpdates {
		t.Error("QA_MCP_UPDATE_CHECK=false should disable the check")
	}
}

func TestLoad_Overrides(t *testing.T) {
	cleanEnv(t)
	t.Setenv("RAG_MODE", "PROXY")
	t.Setenv("RAG_SERVICE_URL", "http://rag:9000")
	t.Setenv("RAG_TOP_K", "8")
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("EMBEDDER", "openai")
	t.Setenv("GITLAB_TOKEN", "glpat")
	t.Setenv("GITLAB_PROJECT", "qa/app")
	t.Setenv("GENERATION_CACHE_TTL", "90m")
	t.Setenv("REDIS_URL", "redis://localhost:6379/1")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://otel:4318")
	t.Setenv("DATA_DIR", "~/qa-data")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != ModeProxy || cfg.RAG.TopK != 8 {
		t.Errorf("Mode=%q TopK=%d", cfg.Mode, cfg.RAG.TopK)
	}
	if cfg.LLM.APIKey != "g-key" || cfg.Embedder.APIKey != "g-key" {
		t.Errorf("key fallback failed: llm=%q embedder=%q", cfg.LLM.APIKey, cfg.Embedder.APIKey)
	}
	if cfg.Embedder.Dimensions != 1536 {
		t.Errorf("openai default dimensions = %d", cfg.Embedder.Dimensions)
	}
	if !cfg.GitLabEnabled() || cfg.GitLab.BaseURL != "https://gitlab.com" {
		t.Errorf("GitLab = %+v", cfg.GitLab)
	}
	if !cfg.Cache.Enabled() || cfg.Cache.TTL != 90*time.Minute {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if !cfg.Log.OTel || cfg.OTel.ServiceVersion != "dev" {
		t.Errorf("OTel wiring: log=%v version=%q", cfg.Log.OTel, cfg.OTel.ServiceVersion)
	}
	if strings.HasPrefix(cfg.DataDir, "~") {
		t.Errorf("DataDir not expanded: %q", cfg.DataDir)
	}
	if err := cfg.RequireLLM(); err != nil {
		t.Errorf("RequireLLM: %v", err)
	}
}

func TestLoad_FatalErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"partial jira", map[string]string{"JIRA_BASE_URL": "https://x.atlassian.net", "JIRA_EMAIL": "a@b.c"}, "JIRA_API_TOKEN"},
		{"partial azure", map[string]string{"AZURE_DEVOPS_PAT": "pat"}, "AZURE_DEVOPS_ORG_URL"},
		{"gitlab token without project", map[string]string{"GITLAB_TOKEN": "glpat"}, "GITLAB_PROJECT"},
		{"bad mode", map[string]string{"RAG_MODE": "hybrid"}, "RAG_MODE"},
		{"proxy bad url", map[string]string{"RAG_MODE": "proxy", "RAG_SERVICE_URL": "localhost"}, "RAG_SERVICE_URL"},
		{"bad top k", map[string]string{"RAG_TOP_K": "0"}, "RAG_TOP_K"},
		{"openai embedder without key", map[string]string{"EMBEDDER": "openai"}, "EMBEDDER=openai"},
		{"unknown embedder", map[string]string{"EMBEDDER": "bert"}, "EMBEDDER"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("test")
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %s", err, tt.want)
			}
		})
	}
}

func TestAllOrNothing(t *testing.T) {
	if err := allOrNothing("A", "", "B", ""); err != nil {
		t.Errorf("none set: %v", err)
	}
	if err := allOrNothing("A", "1", "B", "2"); err != nil {
		t.Errorf("all set: %v", err)
	}
	if err := allOrNothing("A", "1", "B", ""); err == nil {
		t.Error("partial: expected error")
	}
}
