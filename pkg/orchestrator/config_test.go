package orchestrator

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mireles/aibridge/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigExpandsEnv(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "sk-from-env")

	path := writeConfig(t, `
openai_api_key: ${TEST_OPENAI_KEY}
default_model: fast
temperature: 0.2
daily_budget_limit: 5.5
cache_ttl: 30m
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "sk-from-env", cfg.OpenAIAPIKey)
	assert.Equal(t, "fast", cfg.DefaultModel)
	assert.InDelta(t, 0.2, cfg.Temperature, 1e-9)
	assert.InDelta(t, 5.5, cfg.DailyBudgetLimit, 1e-9)
	assert.Equal(t, 30*time.Minute, cfg.CacheTTLDuration())
}

func TestLoadConfigEnvFallbacks(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-env")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("XAI_API_KEY", "")
	t.Setenv("AI_DEFAULT_MODEL", "claude-3-5-haiku")
	t.Setenv("AI_MONTHLY_BUDGET_LIMIT", "100")
	t.Setenv("AI_DEBUG", "true")

	cfg, err := LoadConfig(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, "sk-ant-env", cfg.AnthropicAPIKey)
	assert.Equal(t, "claude-3-5-haiku", cfg.DefaultModel)
	assert.InDelta(t, 100.0, cfg.MonthlyBudgetLimit, 1e-9)
	assert.True(t, cfg.Debug)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "load config")
}

func TestConfigYAMLBeatsEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")

	cfg, err := LoadConfig(writeConfig(t, "openai_api_key: sk-yaml\n"))
	require.NoError(t, err)

	assert.Equal(t, "sk-yaml", cfg.OpenAIAPIKey)
}

func TestActiveProvidersOrder(t *testing.T) {
	cfg := Config{AnthropicAPIKey: "a", XAIAPIKey: "x", OpenAIAPIKey: "o"}

	assert.Equal(t, []string{
		registry.ProviderOpenAI,
		registry.ProviderAnthropic,
		registry.ProviderXAI,
	}, cfg.ActiveProviders())
}

func TestCacheEnabledDefault(t *testing.T) {
	assert.True(t, Config{}.CacheEnabled())

	off := false
	assert.False(t, Config{EnableCache: &off}.CacheEnabled())
}

func TestValidateRequiresKey(t *testing.T) {
	assert.Error(t, Config{}.Validate())
	assert.NoError(t, Config{OpenAIAPIKey: "sk"}.Validate())
}

func TestCacheTTLDurationMalformed(t *testing.T) {
	assert.Zero(t, Config{CacheTTL: "soon"}.CacheTTLDuration())
	assert.Zero(t, Config{}.CacheTTLDuration())
}
