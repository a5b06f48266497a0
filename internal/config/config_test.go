package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewDefaults(t *testing.T) {
	cfg := New()

	if cfg.LLM.Model != "gemini-2.0-flash" {
		t.Errorf("model = %q", cfg.LLM.Model)
	}
	if !cfg.Verify.Enabled || !cfg.Recovery.Enabled {
		t.Error("verification and recovery are on by default")
	}
	if cfg.Vault.InlineLimit != 500 || cfg.Vault.PreviewChars != 200 {
		t.Errorf("vault defaults = %+v", cfg.Vault)
	}
	if cfg.Recovery.MaxAttempts != 20 {
		t.Errorf("max attempts = %d", cfg.Recovery.MaxAttempts)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("log level = %q", cfg.LogLevel)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "statecraft.toml")
	body := `
log_level = "debug"

[llm]
model = "gemini-2.5-pro"

[verify]
enabled = false
model = "gemini-2.0-flash"

[vault]
inline_limit = 1000

[agents]
timeout = "30s"

[agents.preambles]
researcher = "You research."

[output]
disallowed = ["CONFIDENTIAL"]
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.LLM.Model != "gemini-2.5-pro" {
		t.Errorf("model = %q", cfg.LLM.Model)
	}
	if cfg.Verify.Enabled {
		t.Error("verify should be disabled")
	}
	if cfg.Vault.InlineLimit != 1000 {
		t.Errorf("inline limit = %d", cfg.Vault.InlineLimit)
	}
	// Untouched sections keep their defaults.
	if cfg.Vault.PreviewChars != 200 || cfg.Storage.Path != "statecraft.db" {
		t.Error("unset fields should fall back to defaults")
	}
	if cfg.Agents.Preambles["researcher"] != "You research." {
		t.Errorf("preambles = %v", cfg.Agents.Preambles)
	}
	if len(cfg.Output.Disallowed) != 1 || cfg.Output.Disallowed[0] != "CONFIDENTIAL" {
		t.Errorf("disallowed = %v", cfg.Output.Disallowed)
	}
	if cfg.AgentTimeout() != 30*time.Second {
		t.Errorf("agent timeout = %v", cfg.AgentTimeout())
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("missing file must fail")
	}
}

func TestLoadFileMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[llm\nmodel ="), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Error("malformed toml must fail")
	}
}

func TestVerifyModelFallback(t *testing.T) {
	cfg := New()
	if cfg.VerifyModel() != cfg.LLM.Model {
		t.Errorf("empty verify model should fall back, got %q", cfg.VerifyModel())
	}
	cfg.Verify.Model = "other"
	if cfg.VerifyModel() != "other" {
		t.Errorf("verify model = %q", cfg.VerifyModel())
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := New()
	if cfg.SandboxTimeout() != 10*time.Second {
		t.Errorf("sandbox timeout = %v", cfg.SandboxTimeout())
	}
	if cfg.RetryBackoff() != 2*time.Minute {
		t.Errorf("retry backoff = %v", cfg.RetryBackoff())
	}

	cfg.Sandbox.Timeout = "garbage"
	if cfg.SandboxTimeout() != 10*time.Second {
		t.Error("unparseable duration should fall back")
	}
	cfg.Sandbox.Timeout = "-5s"
	if cfg.SandboxTimeout() != 10*time.Second {
		t.Error("non-positive duration should fall back")
	}
	cfg.Sandbox.Timeout = "250ms"
	if cfg.SandboxTimeout() != 250*time.Millisecond {
		t.Errorf("sandbox timeout = %v", cfg.SandboxTimeout())
	}
}

func TestGetAPIKey(t *testing.T) {
	cfg := New()
	cfg.LLM.APIKeyEnv = "STATECRAFT_TEST_KEY"
	t.Setenv("STATECRAFT_TEST_KEY", "secret")
	if cfg.GetAPIKey() != "secret" {
		t.Errorf("key = %q", cfg.GetAPIKey())
	}
}
