package config

import (
	"strings"
	"testing"
)

const sampleYAML = `
http:
  port: 9090
agents:
  backend: bedrock
  deep_research:
    agent_id: DR-FROM-FILE
    alias_id: DR-ALIAS
  search_web:
    agent_id: SW-FROM-FILE
    alias_id: SW-ALIAS
orchestration:
  fanout_concurrency: 4
cache:
  enabled: false
tools:
  tavily:
    max_results: 8
`

func TestParse_FileValues(t *testing.T) {
	cfg, err := parse([]byte(sampleYAML), map[string]string{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTP.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.HTTP.Port)
	}
	if got := cfg.Agents.Research.Identity(); got.AgentID != "DR-FROM-FILE" || got.AliasID != "DR-ALIAS" {
		t.Errorf("unexpected research identity: %+v", got)
	}
	if cfg.Orchestration.FanoutConcurrency != 4 {
		t.Errorf("expected fanout_concurrency=4, got %d", cfg.Orchestration.FanoutConcurrency)
	}
	if cfg.Tools.Tavily.MaxResults != 8 {
		t.Errorf("expected tavily max_results=8, got %d", cfg.Tools.Tavily.MaxResults)
	}
}

func TestParse_EnvOverlay(t *testing.T) {
	environ := map[string]string{
		"DEEP_RESEARCH_AGENT_ID":       "DR-ENV",
		"DEEP_RESEARCH_AGENT_ALIAS_ID": "DR-ALIAS-ENV",
		"SEARCH_WEB_AGENT_ID":          "SW-ENV",
		"TAVILY_API_KEY":               "tvly-123",
		"FC_API_KEY":                   "fc-123",
		"API_KEYS":                     "k1,k2",
	}

	cfg, err := parse([]byte(sampleYAML), environ)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Agents.Research.AgentID != "DR-ENV" || cfg.Agents.Research.AliasID != "DR-ALIAS-ENV" {
		t.Errorf("env must override research identity, got %+v", cfg.Agents.Research)
	}
	if cfg.Agents.Search.AgentID != "SW-ENV" {
		t.Errorf("env must override search agent id, got %q", cfg.Agents.Search.AgentID)
	}
	if cfg.Agents.Search.AliasID != "SW-ALIAS" {
		t.Errorf("unset env must keep file value, got %q", cfg.Agents.Search.AliasID)
	}
	if cfg.Tools.Tavily.APIKey != "tvly-123" || cfg.Tools.Firecrawl.APIKey != "fc-123" {
		t.Errorf("tool keys not loaded from env: %+v", cfg.Tools)
	}
	if strings.Join(cfg.Auth.APIKeys, "|") != "k1|k2" {
		t.Errorf("unexpected api keys: %v", cfg.Auth.APIKeys)
	}
}

func TestParse_NoFileEnvOnly(t *testing.T) {
	cfg, err := parse(nil, map[string]string{"SEARCH_WEB_AGENT_ALIAS_ID": "TSTALIASID"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Agents.Search.AliasID != "TSTALIASID" {
		t.Errorf("expected alias from env, got %q", cfg.Agents.Search.AliasID)
	}
	if cfg.Agents.Backend != BackendBedrock {
		t.Errorf("expected default backend %q, got %q", BackendBedrock, cfg.Agents.Backend)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := Config{HTTP: HTTPConfig{Port: 70000}, Agents: AgentsConfig{Backend: BackendBedrock}}

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_UnknownBackend(t *testing.T) {
	cfg := Config{HTTP: HTTPConfig{Port: 8080}, Agents: AgentsConfig{Backend: "grpc"}}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for unknown backend")
	}
	expected := `agents.backend must be "bedrock", "openai" or "sse", got "grpc"`
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_BackendRequirements(t *testing.T) {
	tests := []struct {
		name    string
		agents  AgentsConfig
		wantErr bool
	}{
		{"bedrock", AgentsConfig{Backend: BackendBedrock}, false},
		{"openai without endpoint", AgentsConfig{Backend: BackendOpenAI}, true},
		{"openai with key", AgentsConfig{Backend: BackendOpenAI, OpenAI: OpenAIConfig{APIKey: "sk"}}, false},
		{"sse without url", AgentsConfig{Backend: BackendSSE}, true},
		{"sse with url", AgentsConfig{Backend: BackendSSE, SSE: SSEConfig{BaseURL: "http://localhost:7070"}}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Config{HTTP: HTTPConfig{Port: 8080}, Agents: tc.agents}
			err := cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("wantErr=%v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestValidate_CacheEnabledWithoutAddrs(t *testing.T) {
	cfg := Config{
		HTTP:   HTTPConfig{Port: 8080},
		Agents: AgentsConfig{Backend: BackendBedrock},
		Cache:  CacheConfig{Enabled: true, Driver: "valkey"},
	}

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for enabled cache without addrs")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.Port != 8080 {
		t.Errorf("expected Port=8080, got %d", cfg.HTTP.Port)
	}
	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.Agents.Region != "ap-northeast-1" {
		t.Errorf("expected Region=ap-northeast-1, got %q", cfg.Agents.Region)
	}
	if cfg.Orchestration.DefaultMaxIterations != 3 {
		t.Errorf("expected DefaultMaxIterations=3, got %d", cfg.Orchestration.DefaultMaxIterations)
	}
	if cfg.Orchestration.FanoutConcurrency != 1 {
		t.Errorf("expected FanoutConcurrency=1, got %d", cfg.Orchestration.FanoutConcurrency)
	}
	if cfg.Orchestration.Refine {
		t.Error("refinement must be off by default")
	}
	if cfg.Tools.Tavily.MaxResults != 5 || cfg.Tools.Tavily.SearchDepth != "advanced" {
		t.Errorf("unexpected tavily defaults: %+v", cfg.Tools.Tavily)
	}
	if cfg.Tools.Firecrawl.Limit != 3 || cfg.Tools.Firecrawl.TimeoutMS != 15000 {
		t.Errorf("unexpected firecrawl defaults: %+v", cfg.Tools.Firecrawl)
	}
	if cfg.Tools.Sales.RequestPage != "trend" || cfg.Tools.Sales.TopN != 10 {
		t.Errorf("unexpected sales defaults: %+v", cfg.Tools.Sales)
	}
	if cfg.Cache.KeyPrefix != "deepresearch:" {
		t.Errorf("expected KeyPrefix='deepresearch:', got %q", cfg.Cache.KeyPrefix)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:          HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Orchestration: OrchestrationConfig{StreamTimeoutSec: 15, FanoutConcurrency: 3},
		Cache:         CacheConfig{KeyPrefix: "custom:", TTLSec: 60},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.WriteTimeoutSec != 60 {
		t.Errorf("expected WriteTimeoutSec=60, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.Orchestration.StreamTimeoutSec != 15 {
		t.Errorf("expected StreamTimeoutSec=15, got %d", cfg.Orchestration.StreamTimeoutSec)
	}
	if cfg.Orchestration.FanoutConcurrency != 3 {
		t.Errorf("expected FanoutConcurrency=3, got %d", cfg.Orchestration.FanoutConcurrency)
	}
	if cfg.Cache.KeyPrefix != "custom:" || cfg.Cache.TTLSec != 60 {
		t.Errorf("cache overridden: %+v", cfg.Cache)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("DR_TEST_REGION", "us-west-2")

	got := string(expandEnvVars([]byte("a: ${DR_TEST_REGION}\nb: ${DR_TEST_UNSET:-fallback}\nc: ${DR_TEST_UNSET}")))
	want := "a: us-west-2\nb: fallback\nc: "
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestApplyDefaults_WriteTimeoutCoversRun(t *testing.T) {
	cfg := Config{Orchestration: OrchestrationConfig{RunTimeoutSec: 900}}
	cfg.ApplyDefaults()

	if cfg.HTTP.WriteTimeoutSec <= cfg.Orchestration.RunTimeoutSec {
		t.Errorf("write timeout %d must exceed run timeout %d", cfg.HTTP.WriteTimeoutSec, cfg.Orchestration.RunTimeoutSec)
	}

	cfg = Config{}
	cfg.ApplyDefaults()
	if cfg.Orchestration.RunTimeoutSec != 600 || cfg.HTTP.WriteTimeoutSec != 610 {
		t.Errorf("unexpected defaults: run=%d write=%d", cfg.Orchestration.RunTimeoutSec, cfg.HTTP.WriteTimeoutSec)
	}
}

func TestValidate_WriteTimeoutBelowRunTimeout(t *testing.T) {
	cfg := Config{
		HTTP:          HTTPConfig{Port: 8080, WriteTimeoutSec: 300},
		Agents:        AgentsConfig{Backend: BackendBedrock},
		Orchestration: OrchestrationConfig{RunTimeoutSec: 600},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error when the connection would close before the run ends")
	}
	expected := "http.write_timeout_sec (300) must exceed orchestration.run_timeout_sec (600)"
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestParse_RunTimeoutFromEnv(t *testing.T) {
	cfg, err := parse([]byte(sampleYAML), map[string]string{"RUN_TIMEOUT_SEC": "120"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Orchestration.RunTimeoutSec != 120 || cfg.HTTP.WriteTimeoutSec != 130 {
		t.Errorf("unexpected timeouts: run=%d write=%d", cfg.Orchestration.RunTimeoutSec, cfg.HTTP.WriteTimeoutSec)
	}
}
