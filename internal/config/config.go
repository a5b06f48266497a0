// Package config provides configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the runner configuration.
type Config struct {
	LLM      LLMConfig      `toml:"llm"`
	Verify   VerifyConfig   `toml:"verify"`
	Storage  StorageConfig  `toml:"storage"`
	Vault    VaultConfig    `toml:"vault"`
	Sandbox  SandboxConfig  `toml:"sandbox"`
	Recovery RecoveryConfig `toml:"recovery"`
	Agents   AgentsConfig   `toml:"agents"`
	Output   OutputConfig   `toml:"output"`
	LogLevel string         `toml:"log_level"` // debug|info|warn|error
}

// LLMConfig contains model provider settings.
type LLMConfig struct {
	Model        string `toml:"model"`
	APIKeyEnv    string `toml:"api_key_env"`
	RetryBackoff string `toml:"retry_backoff"` // Max total retry window (default "2m")
}

// VerifyConfig contains verification gate settings.
type VerifyConfig struct {
	Enabled bool   `toml:"enabled"`
	Model   string `toml:"model"` // Falls back to llm.model when empty
}

// StorageConfig contains persistent storage settings.
type StorageConfig struct {
	Path    string `toml:"path"`    // SQLite database path
	Persist bool   `toml:"persist"` // false = in-memory only
}

// VaultConfig bounds previews and inlining.
type VaultConfig struct {
	PreviewChars int `toml:"preview_chars"`
	PreviewItems int `toml:"preview_items"`
	StringLimit  int `toml:"string_limit"`
	InlineLimit  int `toml:"inline_limit"`
}

// SandboxConfig bounds code execution.
type SandboxConfig struct {
	Timeout  string `toml:"timeout"` // e.g. "10s"
	MaxSteps uint64 `toml:"max_steps"`
}

// RecoveryConfig contains silent-recovery settings.
type RecoveryConfig struct {
	Enabled     bool `toml:"enabled"`
	MaxAttempts int  `toml:"max_attempts"` // Diagnostic history bound
}

// AgentsConfig contains sub-agent dispatch settings.
type AgentsConfig struct {
	Timeout   string            `toml:"timeout"` // Default per-call timeout (default "60s")
	Preambles map[string]string `toml:"preambles"`
}

// OutputConfig bounds final-output validation.
type OutputConfig struct {
	MaxBytes   int      `toml:"max_bytes"`
	Disallowed []string `toml:"disallowed"`
}

// New creates a new config with defaults.
func New() *Config {
	return &Config{
		LLM: LLMConfig{
			Model:        "gemini-2.0-flash",
			APIKeyEnv:    "GEMINI_API_KEY",
			RetryBackoff: "2m",
		},
		Verify: VerifyConfig{
			Enabled: true,
		},
		Storage: StorageConfig{
			Path:    "statecraft.db",
			Persist: true,
		},
		Vault: VaultConfig{
			PreviewChars: 200,
			PreviewItems: 10,
			StringLimit:  120,
			InlineLimit:  500,
		},
		Sandbox: SandboxConfig{
			Timeout:  "10s",
			MaxSteps: 500_000,
		},
		Recovery: RecoveryConfig{
			Enabled:     true,
			MaxAttempts: 20,
		},
		Agents: AgentsConfig{
			Timeout: "60s",
		},
		Output: OutputConfig{
			MaxBytes: 1 << 20,
		},
		LogLevel: "info",
	}
}

// Default returns a default configuration.
func Default() *Config {
	return New()
}

// LoadFile loads configuration from a TOML file.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// LoadDefault loads configuration from statecraft.toml in the current
// directory, falling back to defaults when the file does not exist.
func LoadDefault() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}
	path := filepath.Join(cwd, "statecraft.toml")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return New(), nil
	}
	return LoadFile(path)
}

// GetAPIKey returns the API key from the configured environment variable.
func (c *Config) GetAPIKey() string {
	envVar := c.LLM.APIKeyEnv
	if envVar == "" {
		envVar = "GEMINI_API_KEY"
	}
	return os.Getenv(envVar)
}

// VerifyModel returns the verification model, falling back to the main model.
func (c *Config) VerifyModel() string {
	if c.Verify.Model != "" {
		return c.Verify.Model
	}
	return c.LLM.Model
}

// SandboxTimeout parses the sandbox timeout, defaulting to 10 seconds.
func (c *Config) SandboxTimeout() time.Duration {
	return parseDuration(c.Sandbox.Timeout, 10*time.Second)
}

// AgentTimeout parses the default sub-agent timeout, defaulting to 60 seconds.
func (c *Config) AgentTimeout() time.Duration {
	return parseDuration(c.Agents.Timeout, 60*time.Second)
}

// RetryBackoff parses the model retry window, defaulting to 2 minutes.
func (c *Config) RetryBackoff() time.Duration {
	return parseDuration(c.LLM.RetryBackoff, 2*time.Minute)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
