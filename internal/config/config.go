package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/caarlos0/env/v9"
	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/deepresearch/internal/domain"
)

// writeTimeoutMarginSec leaves time to write the 504 of a run that hit its deadline.
const writeTimeoutMarginSec = 10

// Config holds the deepresearch configuration.
type Config struct {
	HTTP          HTTPConfig          `yaml:"http"`
	Logging       LoggingConfig       `yaml:"logging"`
	Auth          AuthConfig          `yaml:"auth"`
	Agents        AgentsConfig        `yaml:"agents"`
	Orchestration OrchestrationConfig `yaml:"orchestration"`
	Cache         CacheConfig         `yaml:"cache"`
	Tools         ToolsConfig         `yaml:"tools"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys" env:"API_KEYS"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port" env:"PORT"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// Agent backends.
const (
	BackendBedrock = "bedrock"
	BackendOpenAI  = "openai"
	BackendSSE     = "sse"
)

// AgentsConfig selects the agent backend and the two agents a research run talks to.
type AgentsConfig struct {
	Backend     string       `yaml:"backend" env:"AGENT_BACKEND"` // bedrock, openai, sse (default: bedrock)
	Region      string       `yaml:"region" env:"AWS_REGION"`
	EnableTrace bool         `yaml:"enable_trace" env:"AGENT_ENABLE_TRACE"`
	Research    AgentConfig  `yaml:"deep_research" envPrefix:"DEEP_RESEARCH_"`
	Search      AgentConfig  `yaml:"search_web" envPrefix:"SEARCH_WEB_"`
	OpenAI      OpenAIConfig `yaml:"openai"`
	SSE         SSEConfig    `yaml:"sse"`
}

// AgentConfig identifies one remote agent.
type AgentConfig struct {
	AgentID string `yaml:"agent_id" env:"AGENT_ID"`
	AliasID string `yaml:"alias_id" env:"AGENT_ALIAS_ID"`
}

// Identity converts the config into a domain identity.
func (a AgentConfig) Identity() domain.AgentIdentity {
	return domain.AgentIdentity{AgentID: a.AgentID, AliasID: a.AliasID}
}

// OpenAIConfig configures the OpenAI-compatible backend.
// The agent id is used as the model, the alias id selects a system prompt from Profiles.
type OpenAIConfig struct {
	APIKey   string            `yaml:"api_key" env:"OPENAI_API_KEY"`
	BaseURL  string            `yaml:"base_url" env:"OPENAI_BASE_URL"`
	Profiles map[string]string `yaml:"profiles"`
}

// SSEConfig configures the HTTP agent gateway backend.
type SSEConfig struct {
	BaseURL string `yaml:"base_url" env:"AGENT_GATEWAY_URL"`
	APIKey  string `yaml:"api_key" env:"AGENT_GATEWAY_API_KEY"`
}

// OrchestrationConfig tunes a research run.
type OrchestrationConfig struct {
	DefaultMaxIterations int  `yaml:"default_max_iterations"`
	Refine               bool `yaml:"refine" env:"RESEARCH_REFINE"`
	StreamTimeoutSec     int  `yaml:"stream_timeout_sec" env:"STREAM_TIMEOUT_SEC"`
	// RunTimeoutSec bounds a whole run. A sequential run makes up to
	// (queries+1) calls of stream_timeout_sec each, so this is the real cap.
	RunTimeoutSec     int `yaml:"run_timeout_sec" env:"RUN_TIMEOUT_SEC"`
	FanoutConcurrency int `yaml:"fanout_concurrency" env:"FANOUT_CONCURRENCY"` // 1 = sequential
}

// CacheConfig holds the search outcome cache settings.
type CacheConfig struct {
	Enabled          bool     `yaml:"enabled" env:"CACHE_ENABLED"`
	Driver           string   `yaml:"driver"` // redis, valkey (default: valkey)
	Addrs            []string `yaml:"addrs" env:"CACHE_ADDRS"`
	Password         string   `yaml:"password" env:"CACHE_PASSWORD"`
	TTLSec           int      `yaml:"ttl_sec"`
	KeyPrefix        string   `yaml:"key_prefix"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// ToolsConfig holds the settings of the tool handlers agents call.
type ToolsConfig struct {
	HTTPTimeoutSec int             `yaml:"http_timeout_sec"`
	Tavily         TavilyConfig    `yaml:"tavily"`
	Firecrawl      FirecrawlConfig `yaml:"firecrawl"`
	Sales          SalesConfig     `yaml:"sales"`
}

// TavilyConfig configures the Tavily web search tool.
type TavilyConfig struct {
	APIKey      string `yaml:"api_key" env:"TAVILY_API_KEY"`
	BaseURL     string `yaml:"base_url"`
	MaxResults  int    `yaml:"max_results"`
	SearchDepth string `yaml:"search_depth"`
}

// FirecrawlConfig configures the Firecrawl web search tool.
type FirecrawlConfig struct {
	APIKey    string `yaml:"api_key" env:"FC_API_KEY"`
	BaseURL   string `yaml:"base_url"`
	Limit     int    `yaml:"limit"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

// SalesConfig configures the shop sales data tool.
type SalesConfig struct {
	Endpoint    string `yaml:"endpoint" env:"SALES_API_ENDPOINT"`
	Cookie      string `yaml:"cookie" env:"SALES_API_COOKIE"`
	RequestPage string `yaml:"request_page"`
	TopN        int    `yaml:"top_n"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod, lambda),
// then overlays environment variables. The lambda environment may run without a file.
func Load(envName string) (Config, error) {
	configPath := findConfigPath(envName)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		if !(errors.Is(err, os.ErrNotExist) && envName == "lambda") {
			return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
		}
		data = nil
	}

	return parse(data, nil)
}

// parse builds a Config from YAML data. environ overrides the process environment
// for the env overlay when non-nil.
func parse(data []byte, environ map[string]string) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("failed to apply environment: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(envName string) Config {
	cfg, err := Load(envName)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
// Inside AWS Lambda it defaults to "lambda".
func GetEnv() string {
	if e := os.Getenv("ENV"); e != "" {
		return e
	}
	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		return "lambda"
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port <= 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}

	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Agents.Backend == "" {
		c.Agents.Backend = BackendBedrock
	}
	if c.Agents.Region == "" {
		c.Agents.Region = "ap-northeast-1"
	}
	if c.Orchestration.DefaultMaxIterations <= 0 {
		c.Orchestration.DefaultMaxIterations = 3
	}
	if c.Orchestration.StreamTimeoutSec <= 0 {
		c.Orchestration.StreamTimeoutSec = 120
	}
	if c.Orchestration.FanoutConcurrency <= 0 {
		c.Orchestration.FanoutConcurrency = 1
	}
	if c.Orchestration.RunTimeoutSec <= 0 {
		c.Orchestration.RunTimeoutSec = 600
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		// /v1/research holds the connection for the whole run
		c.HTTP.WriteTimeoutSec = c.Orchestration.RunTimeoutSec + writeTimeoutMarginSec
	}
	if c.Cache.Driver == "" {
		c.Cache.Driver = "valkey"
	}
	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = 3600
	}
	if c.Cache.KeyPrefix == "" {
		c.Cache.KeyPrefix = "deepresearch:"
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}
	c.Tools.applyDefaults()
}

func (t *ToolsConfig) applyDefaults() {
	if t.HTTPTimeoutSec <= 0 {
		t.HTTPTimeoutSec = 30
	}
	if t.Tavily.BaseURL == "" {
		t.Tavily.BaseURL = "https://api.tavily.com"
	}
	if t.Tavily.MaxResults <= 0 {
		t.Tavily.MaxResults = 5
	}
	if t.Tavily.SearchDepth == "" {
		t.Tavily.SearchDepth = "advanced"
	}
	if t.Firecrawl.BaseURL == "" {
		t.Firecrawl.BaseURL = "https://api.firecrawl.dev"
	}
	if t.Firecrawl.Limit <= 0 {
		t.Firecrawl.Limit = 3
	}
	if t.Firecrawl.TimeoutMS <= 0 {
		t.Firecrawl.TimeoutMS = 15000
	}
	if t.Sales.RequestPage == "" {
		t.Sales.RequestPage = "trend"
	}
	if t.Sales.TopN <= 0 {
		t.Sales.TopN = 10
	}
}

// Validate checks the configuration for correctness.
// Agent identities are not checked here: an empty identity fails the call that uses it.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Orchestration.RunTimeoutSec > 0 && c.HTTP.WriteTimeoutSec > 0 &&
		c.HTTP.WriteTimeoutSec <= c.Orchestration.RunTimeoutSec {
		return fmt.Errorf("http.write_timeout_sec (%d) must exceed orchestration.run_timeout_sec (%d)",
			c.HTTP.WriteTimeoutSec, c.Orchestration.RunTimeoutSec)
	}
	switch c.Agents.Backend {
	case BackendBedrock:
	case BackendOpenAI:
		if c.Agents.OpenAI.APIKey == "" && c.Agents.OpenAI.BaseURL == "" {
			return fmt.Errorf("agents.openai needs api_key or base_url")
		}
	case BackendSSE:
		if c.Agents.SSE.BaseURL == "" {
			return fmt.Errorf("agents.sse.base_url is required")
		}
	default:
		return fmt.Errorf("agents.backend must be %q, %q or %q, got %q",
			BackendBedrock, BackendOpenAI, BackendSSE, c.Agents.Backend)
	}
	if c.Cache.Enabled {
		if len(c.Cache.Addrs) == 0 {
			return fmt.Errorf("cache.addrs is required when cache is enabled")
		}
		switch c.Cache.Driver {
		case "valkey", "redis":
		default:
			return fmt.Errorf("cache.driver must be \"valkey\" or \"redis\", got %q", c.Cache.Driver)
		}
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(envName string) string {
	filename := fmt.Sprintf("%s.yaml", envName)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
