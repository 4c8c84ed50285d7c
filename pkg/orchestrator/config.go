package orchestrator

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mireles/aibridge/pkg/registry"
)

// Config is the top-level orchestrator configuration. Every field can come
// from YAML; API keys and budget limits fall back to environment variables
// so secrets stay out of config files.
type Config struct {
	OpenAIAPIKey    string `yaml:"openai_api_key"`    //nolint:gosec // configuration field, not a hardcoded secret
	AnthropicAPIKey string `yaml:"anthropic_api_key"` //nolint:gosec
	GoogleAPIKey    string `yaml:"google_api_key"`    //nolint:gosec
	XAIAPIKey       string `yaml:"xai_api_key"`       //nolint:gosec

	DefaultModel    string  `yaml:"default_model"`
	DefaultProvider string  `yaml:"default_provider"`
	Temperature     float64 `yaml:"temperature"`

	DailyBudgetLimit   float64 `yaml:"daily_budget_limit"`
	MonthlyBudgetLimit float64 `yaml:"monthly_budget_limit"`

	EnableCache *bool  `yaml:"enable_cache"` // nil means enabled.
	CacheTTL    string `yaml:"cache_ttl"`    // Duration string, e.g. "1h", "30m".
	CacheDir    string `yaml:"cache_dir"`    // Empty keeps the cache in-process only.

	LedgerPath string `yaml:"ledger_path"` // Empty disables usage tracking and budgets.

	Debug bool `yaml:"debug"`
}

// DefaultConfig returns a Config with the stock defaults applied.
func DefaultConfig() Config {
	return Config{
		DefaultModel: "smart",
		Temperature:  0.7,
	}
}

// LoadConfig reads a YAML file and returns a Config. Environment variables
// referenced as ${VAR} or $VAR in the YAML are expanded before parsing, and
// unset fields fall back to well-known environment variables.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-provided configuration, not user input
	if err != nil {
		return Config{}, fmt.Errorf("orchestrator: load config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	// DefaultModel stays unset here so the AI_DEFAULT_MODEL fallback in
	// ApplyEnv can still take effect.
	cfg := Config{Temperature: 0.7}
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("orchestrator: parse config: %w", err)
	}

	cfg.ApplyEnv()

	return cfg, nil
}

// ApplyEnv fills unset fields from environment variables: provider API keys,
// AI_DEFAULT_MODEL / AI_DEFAULT_PROVIDER, AI_DAILY_BUDGET_LIMIT /
// AI_MONTHLY_BUDGET_LIMIT, and AI_DEBUG.
func (c *Config) ApplyEnv() {
	fallback := func(field *string, env string) {
		if *field == "" {
			*field = os.Getenv(env)
		}
	}
	fallback(&c.OpenAIAPIKey, "OPENAI_API_KEY")
	fallback(&c.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	fallback(&c.GoogleAPIKey, "GOOGLE_API_KEY")
	fallback(&c.XAIAPIKey, "XAI_API_KEY")
	fallback(&c.DefaultModel, "AI_DEFAULT_MODEL")
	fallback(&c.DefaultProvider, "AI_DEFAULT_PROVIDER")

	if c.DailyBudgetLimit == 0 {
		if v, err := strconv.ParseFloat(os.Getenv("AI_DAILY_BUDGET_LIMIT"), 64); err == nil {
			c.DailyBudgetLimit = v
		}
	}
	if c.MonthlyBudgetLimit == 0 {
		if v, err := strconv.ParseFloat(os.Getenv("AI_MONTHLY_BUDGET_LIMIT"), 64); err == nil {
			c.MonthlyBudgetLimit = v
		}
	}

	if !c.Debug {
		switch strings.ToLower(os.Getenv("AI_DEBUG")) {
		case "true", "1", "yes":
			c.Debug = true
		}
	}

	if c.DefaultModel == "" {
		c.DefaultModel = "smart"
	}
}

// CacheEnabled reports whether response caching is on. Unset means on.
func (c Config) CacheEnabled() bool {
	return c.EnableCache == nil || *c.EnableCache
}

// CacheTTLDuration parses the configured cache TTL; zero when unset or
// malformed, letting the cache fall back to its default.
func (c Config) CacheTTLDuration() time.Duration {
	d, err := time.ParseDuration(c.CacheTTL)
	if err != nil {
		return 0
	}
	return d
}

// ActiveProviders returns the provider tags that have an API key, in router
// priority order.
func (c Config) ActiveProviders() []string {
	var active []string
	if c.OpenAIAPIKey != "" {
		active = append(active, registry.ProviderOpenAI)
	}
	if c.AnthropicAPIKey != "" {
		active = append(active, registry.ProviderAnthropic)
	}
	if c.GoogleAPIKey != "" {
		active = append(active, registry.ProviderGoogle)
	}
	if c.XAIAPIKey != "" {
		active = append(active, registry.ProviderXAI)
	}
	return active
}

// Validate checks that the configuration can serve requests.
func (c Config) Validate() error {
	if len(c.ActiveProviders()) == 0 {
		return fmt.Errorf("orchestrator: config: at least one provider API key is required")
	}
	if c.DailyBudgetLimit < 0 || c.MonthlyBudgetLimit < 0 {
		return fmt.Errorf("orchestrator: config: budget limits must be non-negative")
	}
	return nil
}
