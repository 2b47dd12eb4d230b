// Package config loads the server configuration from a YAML file with
// environment-variable overrides for deployment secrets.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "30s" parse naturally.
type Duration time.Duration

// UnmarshalYAML accepts Go duration strings ("90s", "5m") and bare integers
// interpreted as seconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}

	var seconds int64
	if err := value.Decode(&seconds); err == nil {
		*d = Duration(time.Duration(seconds) * time.Second)
		return nil
	}
	return fmt.Errorf("invalid duration value on line %d", value.Line)
}

// MarshalYAML renders the duration in Go's string form.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the full server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Executor ExecutorConfig `yaml:"executor"`
	LLM      LLMConfig      `yaml:"llm"`
	Browser  BrowserConfig  `yaml:"browser"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// Addr is the listen address, host:port.
	Addr string `yaml:"addr"`

	// AllowedOrigins are glob patterns for CORS origins ("*" allows all).
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// ExecutorConfig configures task execution.
type ExecutorConfig struct {
	// Concurrency is the maximum number of tasks running at once.
	Concurrency int `yaml:"concurrency"`

	// TaskTimeout bounds a single task's running phase.
	TaskTimeout Duration `yaml:"task_timeout"`

	// Retention is how long terminal task records stay queryable.
	Retention Duration `yaml:"retention"`

	// EventBuffer is the per-subscriber event buffer size.
	EventBuffer int `yaml:"event_buffer"`
}

// LLMConfig configures the model provider.
type LLMConfig struct {
	// Model is the model identifier sent to the provider.
	Model string `yaml:"model"`

	// BaseURL overrides the provider endpoint (OpenAI-compatible proxies).
	BaseURL string `yaml:"base_url"`

	// APIKey authenticates with the provider. Prefer the OPENAI_API_KEY
	// environment variable over committing a key to the config file.
	APIKey string `yaml:"api_key"`

	// MaxSteps bounds the agent's action loop per task.
	MaxSteps int `yaml:"max_steps"`
}

// BrowserConfig configures the browser session pool.
type BrowserConfig struct {
	// Headless controls whether browsers run without a visible window.
	Headless *bool `yaml:"headless"`

	// MaxSessions bounds concurrently open browser sessions.
	MaxSessions int `yaml:"max_sessions"`

	// IdleTimeout is how long an unused session survives.
	IdleTimeout Duration `yaml:"idle_timeout"`
}

// Default returns the configuration used when no file is provided.
func Default() *Config {
	headless := true
	return &Config{
		Server: ServerConfig{
			Addr:           ":8000",
			AllowedOrigins: []string{"*"},
		},
		Executor: ExecutorConfig{
			Concurrency: 4,
			TaskTimeout: Duration(5 * time.Minute),
			Retention:   Duration(time.Hour),
			EventBuffer: 64,
		},
		LLM: LLMConfig{
			Model:    "gpt-4o",
			MaxSteps: 20,
		},
		Browser: BrowserConfig{
			Headless:    &headless,
			MaxSessions: 4,
			IdleTimeout: Duration(5 * time.Minute),
		},
	}
}

// Load reads the YAML file at path on top of the defaults, then applies
// environment overrides. An empty path yields defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv copies recognized environment variables over the loaded values.
func (c *Config) applyEnv() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("BROWSERD_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("BROWSERD_HEADLESS"); v != "" {
		if headless, err := strconv.ParseBool(v); err == nil {
			c.Browser.Headless = &headless
		}
	}
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	if c.Executor.Concurrency < 1 {
		return fmt.Errorf("executor.concurrency must be at least 1, got %d", c.Executor.Concurrency)
	}
	if c.Executor.TaskTimeout <= 0 {
		return fmt.Errorf("executor.task_timeout must be positive, got %s", c.Executor.TaskTimeout.Std())
	}
	if c.Executor.Retention <= 0 {
		return fmt.Errorf("executor.retention must be positive, got %s", c.Executor.Retention.Std())
	}
	if c.Executor.EventBuffer < 1 {
		return fmt.Errorf("executor.event_buffer must be at least 1, got %d", c.Executor.EventBuffer)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model must not be empty")
	}
	if c.LLM.MaxSteps < 1 {
		return fmt.Errorf("llm.max_steps must be at least 1, got %d", c.LLM.MaxSteps)
	}
	if c.Browser.MaxSessions < 1 {
		return fmt.Errorf("browser.max_sessions must be at least 1, got %d", c.Browser.MaxSessions)
	}
	return nil
}

// IsHeadless returns the headless setting, defaulting to true.
func (c *BrowserConfig) IsHeadless() bool {
	if c.Headless == nil {
		return true
	}
	return *c.Headless
}
