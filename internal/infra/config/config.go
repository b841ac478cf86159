package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Assistant AssistantConfig `yaml:"assistant"`
	LLM       LLMConfig       `yaml:"llm"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Session   SessionConfig   `yaml:"session"`
	Logger    LoggerConfig    `yaml:"logger"`
	Tracer    TracerConfig    `yaml:"tracer"`
}

// AssistantConfig holds turn-processing behavior settings.
type AssistantConfig struct {
	SystemPrompt string             `yaml:"system_prompt"`
	MaxTokens    int                `yaml:"max_tokens"`
	Timeout      time.Duration      `yaml:"timeout"`
	ContextGuard ContextGuardConfig `yaml:"context_guard"`
}

// ContextGuardConfig controls token-budget trimming of conversation history.
type ContextGuardConfig struct {
	Enabled       bool    `yaml:"enabled"`
	MaxTokens     int     `yaml:"max_tokens"`     // default: 128000
	ReserveTokens int     `yaml:"reserve_tokens"` // default: 1000
	SafetyMargin  float64 `yaml:"safety_margin"`  // default: 0.15
}

// LLMConfig holds LLM provider settings.
type LLMConfig struct {
	DefaultProvider string               `yaml:"default_provider"`
	Providers       []ProviderConfig     `yaml:"providers"`
	Failover        FailoverConfig       `yaml:"failover"`
	CircuitBreaker  CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// FailoverConfig holds provider failover settings. Fallbacks are tried in
// configuration order after the default provider fails.
type FailoverConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Fallbacks []string `yaml:"fallbacks"`
}

// CircuitBreakerConfig holds circuit breaker settings for LLM providers.
type CircuitBreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// PoolConfig holds HTTP connection pool settings for LLM providers.
type PoolConfig struct {
	MaxIdleConns        int           `yaml:"max_idle_conns"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `yaml:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout"`
}

// ProviderConfig holds settings for a single LLM provider.
// Type selects the vendor family: "openai", "anthropic", "legacy",
// "ollama", or "bedrock".
type ProviderConfig struct {
	Name        string        `yaml:"name"`
	Type        string        `yaml:"type"`
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Region      string        `yaml:"region,omitempty"`
	ConnTimeout time.Duration `yaml:"conn_timeout"`
	RespTimeout time.Duration `yaml:"resp_timeout"`
	Pool        PoolConfig    `yaml:"pool"`
}

// GatewayConfig holds remote tool-execution service settings.
type GatewayConfig struct {
	BaseURL        string        `yaml:"base_url"`
	ClientID       string        `yaml:"client_id"`
	ClientSecret   string        `yaml:"client_secret"`
	Timeout        time.Duration `yaml:"timeout"`          // per-call bound, default 10s
	RequestsPerSec float64       `yaml:"requests_per_sec"` // client-side limiter, 0 = unlimited
	ForceMockMode  bool          `yaml:"force_mock_mode"`
	HealthSchedule string        `yaml:"health_schedule"` // cron spec for re-probing, default "@every 1m"
}

// SessionConfig holds conversation store settings.
type SessionConfig struct {
	DBPath string `yaml:"db_path"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
	Endpoint string `yaml:"endpoint"`
}

// defaultDataDir returns the persistent data directory under
// $HOME/.wattwise/data, falling back to "./data".
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}
	return filepath.Join(home, ".wattwise", "data")
}

// defaultSystemPrompt is the renewable-energy consultant persona.
const defaultSystemPrompt = `You are a renewable energy consultant assistant. You help users understand renewable energy technologies (solar, wind, hydro, geothermal, biogas/CBG), analyze project economics, and explore policies and incentives. When data or calculations would help, use the available tools. You can create dashboards for CBG projects, solar farms, wind farms, and hybrid plants.`

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	dataDir := defaultDataDir()
	return &Config{
		Assistant: AssistantConfig{
			SystemPrompt: defaultSystemPrompt,
			MaxTokens:    4096,
			Timeout:      120 * time.Second,
			ContextGuard: ContextGuardConfig{
				Enabled:       false,
				MaxTokens:     128000,
				ReserveTokens: 1000,
				SafetyMargin:  0.15,
			},
		},
		LLM: LLMConfig{
			DefaultProvider: "openai",
		},
		Gateway: GatewayConfig{
			BaseURL:        "http://localhost:8000",
			Timeout:        10 * time.Second,
			HealthSchedule: "@every 1m",
		},
		Session: SessionConfig{
			DBPath: filepath.Join(dataDir, "sessions.db"),
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
	}
}

// Load reads a YAML config file and applies env var overrides. A missing
// file is not an error; defaults plus environment are used instead.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnvOverrides(cfg)
			if err := Validate(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	ApplyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnvOverrides maps WATTWISE_* env vars to config fields.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("WATTWISE_LLM_DEFAULT_PROVIDER"); v != "" {
		cfg.LLM.DefaultProvider = v
	}
	if v := os.Getenv("WATTWISE_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("WATTWISE_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("WATTWISE_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("WATTWISE_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
	if v := os.Getenv("WATTWISE_ASSISTANT_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Assistant.MaxTokens = n
		}
	}
	if v := os.Getenv("WATTWISE_ASSISTANT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Assistant.Timeout = d
		}
	}

	if v := os.Getenv("WATTWISE_GATEWAY_BASE_URL"); v != "" {
		cfg.Gateway.BaseURL = v
	}
	if v := os.Getenv("WATTWISE_GATEWAY_CLIENT_ID"); v != "" {
		cfg.Gateway.ClientID = v
	}
	if v := os.Getenv("WATTWISE_GATEWAY_CLIENT_SECRET"); v != "" {
		cfg.Gateway.ClientSecret = v
	}
	if v := os.Getenv("WATTWISE_GATEWAY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Gateway.Timeout = d
		}
	}
	if v := os.Getenv("WATTWISE_GATEWAY_FORCE_MOCK_MODE"); v == "true" {
		cfg.Gateway.ForceMockMode = true
	}

	if v := os.Getenv("WATTWISE_SESSION_DB_PATH"); v != "" {
		cfg.Session.DBPath = v
	}

	// Per-provider API key overrides: WATTWISE_LLM_PROVIDER_<NAME>_API_KEY
	for i := range cfg.LLM.Providers {
		envKey := fmt.Sprintf("WATTWISE_LLM_PROVIDER_%s_API_KEY",
			strings.ToUpper(cfg.LLM.Providers[i].Name))
		if v := os.Getenv(envKey); v != "" {
			cfg.LLM.Providers[i].APIKey = v
		}
	}
}

// Validate checks the configuration for inconsistencies that would only
// surface later at call time.
func Validate(cfg *Config) error {
	seen := make(map[string]bool, len(cfg.LLM.Providers))
	for _, pc := range cfg.LLM.Providers {
		if pc.Name == "" {
			return fmt.Errorf("provider with empty name")
		}
		if seen[pc.Name] {
			return fmt.Errorf("duplicate provider name %q", pc.Name)
		}
		seen[pc.Name] = true
		switch pc.Type {
		case "", "openai", "anthropic", "legacy", "ollama", "bedrock":
		default:
			return fmt.Errorf("provider %q: unknown type %q", pc.Name, pc.Type)
		}
	}

	if cfg.LLM.Failover.Enabled {
		for _, name := range cfg.LLM.Failover.Fallbacks {
			if !seen[name] {
				return fmt.Errorf("failover fallback %q is not a configured provider", name)
			}
		}
	}

	if cfg.Assistant.ContextGuard.SafetyMargin < 0 || cfg.Assistant.ContextGuard.SafetyMargin > 0.5 {
		return fmt.Errorf("context_guard.safety_margin must be in [0, 0.5]")
	}

	return nil
}
