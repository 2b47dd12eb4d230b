package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 4, cfg.Executor.Concurrency)
	assert.Equal(t, 5*time.Minute, cfg.Executor.TaskTimeout.Std())
	assert.Equal(t, time.Hour, cfg.Executor.Retention.Std())
	assert.Equal(t, 64, cfg.Executor.EventBuffer)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.True(t, cfg.Browser.IsHeadless())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
  allowed_origins:
    - "chrome-extension://*"
executor:
  concurrency: 2
  task_timeout: 30s
llm:
  model: gpt-4o-mini
browser:
  headless: false
  max_sessions: 2
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, []string{"chrome-extension://*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 2, cfg.Executor.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.Executor.TaskTimeout.Std())
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.False(t, cfg.Browser.IsHeadless())
	assert.Equal(t, 2, cfg.Browser.MaxSessions)

	// Untouched sections keep their defaults.
	assert.Equal(t, time.Hour, cfg.Executor.Retention.Std())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("BROWSERD_ADDR", ":7777")
	t.Setenv("BROWSERD_HEADLESS", "false")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sk-env", cfg.LLM.APIKey)
	assert.Equal(t, ":7777", cfg.Server.Addr)
	assert.False(t, cfg.Browser.IsHeadless())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a mapping")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty addr", func(c *Config) { c.Server.Addr = "" }},
		{"zero concurrency", func(c *Config) { c.Executor.Concurrency = 0 }},
		{"negative timeout", func(c *Config) { c.Executor.TaskTimeout = Duration(-time.Second) }},
		{"zero retention", func(c *Config) { c.Executor.Retention = 0 }},
		{"zero event buffer", func(c *Config) { c.Executor.EventBuffer = 0 }},
		{"empty model", func(c *Config) { c.LLM.Model = "" }},
		{"zero max steps", func(c *Config) { c.LLM.MaxSteps = 0 }},
		{"zero sessions", func(c *Config) { c.Browser.MaxSessions = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
