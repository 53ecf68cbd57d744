package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reeve.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
models:
  default: gpt-4o
  fallback: gpt-4o-mini
  providers:
    claude-sonnet-4: anthropic
openai:
  baseurl: http://localhost:8080
  api_key: test-key
agent:
  max_iterations: 5
  tool_timeout_sec: 10
memory:
  recent_cap: 20
  semantic_threshold: 0.8
data_dir: /tmp/reeve-test
log_level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Models.Default != "gpt-4o" {
		t.Errorf("Models.Default = %q, want gpt-4o", cfg.Models.Default)
	}
	if cfg.Models.Fallback != "gpt-4o-mini" {
		t.Errorf("Models.Fallback = %q, want gpt-4o-mini", cfg.Models.Fallback)
	}
	if cfg.Models.Providers["claude-sonnet-4"] != "anthropic" {
		t.Errorf("Providers = %v, want claude-sonnet-4 -> anthropic", cfg.Models.Providers)
	}
	if cfg.Agent.MaxIterations != 5 {
		t.Errorf("MaxIterations = %d, want 5", cfg.Agent.MaxIterations)
	}
	if cfg.Agent.ToolTimeout() != 10*time.Second {
		t.Errorf("ToolTimeout = %v, want 10s", cfg.Agent.ToolTimeout())
	}
	if cfg.Memory.RecentCap != 20 {
		t.Errorf("RecentCap = %d, want 20", cfg.Memory.RecentCap)
	}
	if cfg.Memory.SemanticThreshold != 0.8 {
		t.Errorf("SemanticThreshold = %v, want 0.8", cfg.Memory.SemanticThreshold)
	}

	// Unset fields still pick up defaults.
	if cfg.Agent.MaxToolCalls != 15 {
		t.Errorf("MaxToolCalls = %d, want default 15", cfg.Agent.MaxToolCalls)
	}
	if cfg.Memory.ExtractEvery != 4 {
		t.Errorf("ExtractEvery = %d, want default 4", cfg.Memory.ExtractEvery)
	}
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("REEVE_TEST_KEY", "secret-from-env")
	path := writeConfig(t, `
openai:
  api_key: ${REEVE_TEST_KEY}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.OpenAI.APIKey != "secret-from-env" {
		t.Errorf("APIKey = %q, want value from environment", cfg.OpenAI.APIKey)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Agent.MaxIterations != 10 {
		t.Errorf("MaxIterations = %d, want 10", cfg.Agent.MaxIterations)
	}
	if cfg.Agent.MaxToolCalls != 15 {
		t.Errorf("MaxToolCalls = %d, want 15", cfg.Agent.MaxToolCalls)
	}
	if cfg.Agent.MaxPerTool != 5 {
		t.Errorf("MaxPerTool = %d, want 5", cfg.Agent.MaxPerTool)
	}
	if cfg.Agent.ToolTimeout() != 30*time.Second {
		t.Errorf("ToolTimeout = %v, want 30s", cfg.Agent.ToolTimeout())
	}
	if cfg.Agent.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.Agent.MaxRetries)
	}
	if cfg.Agent.RetryBase() != 500*time.Millisecond {
		t.Errorf("RetryBase = %v, want 500ms", cfg.Agent.RetryBase())
	}
	if cfg.Memory.RecentCap != 50 {
		t.Errorf("RecentCap = %d, want 50", cfg.Memory.RecentCap)
	}
	if cfg.Memory.SemanticThreshold != 0.75 {
		t.Errorf("SemanticThreshold = %v, want 0.75", cfg.Memory.SemanticThreshold)
	}
}

func TestFindConfigExplicitMustExist(t *testing.T) {
	if _, err := FindConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("FindConfig with missing explicit path returned nil error")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"info", slog.LevelInfo, false},
		{"trace", LevelTrace, false},
		{"debug", slog.LevelDebug, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"  DEBUG  ", slog.LevelDebug, false},
		{"verbose", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := ParseLogLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLogLevel(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestReplaceLogLevelNames(t *testing.T) {
	attr := slog.Attr{Key: slog.LevelKey, Value: slog.AnyValue(LevelTrace)}
	out := ReplaceLogLevelNames(nil, attr)
	if out.Value.String() != "TRACE" {
		t.Errorf("trace level rendered as %q, want TRACE", out.Value.String())
	}

	info := slog.Attr{Key: slog.LevelKey, Value: slog.AnyValue(slog.LevelInfo)}
	if out := ReplaceLogLevelNames(nil, info); out.Value.Any().(slog.Level) != slog.LevelInfo {
		t.Error("info level was modified")
	}
}
