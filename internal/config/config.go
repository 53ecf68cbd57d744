// Package config handles Reeve configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./reeve.yaml, ~/.config/reeve/reeve.yaml, /etc/reeve/reeve.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"reeve.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "reeve", "reeve.yaml"))
	}

	paths = append(paths, "/etc/reeve/reeve.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all Reeve configuration.
type Config struct {
	Models     ModelsConfig     `yaml:"models"`
	OpenAI     OpenAIConfig     `yaml:"openai"`
	Anthropic  AnthropicConfig  `yaml:"anthropic"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Agent      AgentConfig      `yaml:"agent"`
	Memory     MemoryConfig     `yaml:"memory"`
	DataDir    string           `yaml:"data_dir"`
	LogLevel   string           `yaml:"log_level"`
}

// ModelsConfig defines model routing settings.
type ModelsConfig struct {
	// Default is the primary model used for agent runs.
	Default string `yaml:"default"`
	// Fallback is tried exactly once, without tools, after the primary
	// model exhausts its retries. Empty disables fallback.
	Fallback string `yaml:"fallback"`
	// Providers maps model names to provider names ("openai", "anthropic").
	// Unlisted models go to the default provider.
	Providers map[string]string `yaml:"providers"`
}

// OpenAIConfig defines settings for an OpenAI-compatible chat API.
type OpenAIConfig struct {
	BaseURL string `yaml:"baseurl"` // e.g. https://api.openai.com or a local server
	APIKey  string `yaml:"api_key"`
}

// AnthropicConfig defines Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `yaml:"api_key"`
}

// EmbeddingsConfig defines embedding generation settings.
type EmbeddingsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"`   // Embedding model name (e.g., nomic-embed-text)
	BaseURL string `yaml:"baseurl"` // Ollama-compatible URL
}

// AgentConfig bounds a single agent run.
type AgentConfig struct {
	// MaxIterations caps the number of provider round-trips per run.
	MaxIterations int `yaml:"max_iterations"`
	// MaxToolCalls caps the total tool invocations per run.
	MaxToolCalls int `yaml:"max_tool_calls"`
	// MaxPerTool caps invocations of any single tool per run.
	MaxPerTool int `yaml:"max_per_tool"`
	// ToolTimeoutSec is the per-tool execution deadline in seconds.
	ToolTimeoutSec int `yaml:"tool_timeout_sec"`
	// MaxRetries is the provider retry count before fallback.
	MaxRetries int `yaml:"max_retries"`
	// RetryBaseMs is the initial backoff delay in milliseconds.
	RetryBaseMs int `yaml:"retry_base_ms"`
	// MaxTokens is the per-request completion token ceiling.
	MaxTokens int `yaml:"max_tokens"`
}

// MemoryConfig tunes the layered memory context.
type MemoryConfig struct {
	// RecentCap bounds the per-user recent buffer; oldest entries are
	// trimmed once exceeded.
	RecentCap int `yaml:"recent_cap"`
	// ContextWindow is how many recent entries are injected as history.
	ContextWindow int `yaml:"context_window"`
	// SemanticTopK is how many similarity matches to retrieve.
	SemanticTopK int `yaml:"semantic_top_k"`
	// SemanticThreshold drops matches below this cosine similarity.
	SemanticThreshold float32 `yaml:"semantic_threshold"`
	// ExtractEvery runs fact extraction every Nth appended message.
	ExtractEvery int `yaml:"extract_every"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()

	return cfg, nil
}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero-valued fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.Models.Default == "" {
		c.Models.Default = "gpt-4o-mini"
	}
	if c.OpenAI.BaseURL == "" {
		c.OpenAI.BaseURL = "https://api.openai.com"
	}
	if c.Embeddings.Model == "" {
		c.Embeddings.Model = "nomic-embed-text"
	}
	if c.Embeddings.BaseURL == "" {
		c.Embeddings.BaseURL = "http://localhost:11434"
	}

	if c.Agent.MaxIterations <= 0 {
		c.Agent.MaxIterations = 10
	}
	if c.Agent.MaxToolCalls <= 0 {
		c.Agent.MaxToolCalls = 15
	}
	if c.Agent.MaxPerTool <= 0 {
		c.Agent.MaxPerTool = 5
	}
	if c.Agent.ToolTimeoutSec <= 0 {
		c.Agent.ToolTimeoutSec = 30
	}
	if c.Agent.MaxRetries <= 0 {
		c.Agent.MaxRetries = 3
	}
	if c.Agent.RetryBaseMs <= 0 {
		c.Agent.RetryBaseMs = 500
	}
	if c.Agent.MaxTokens <= 0 {
		c.Agent.MaxTokens = 4096
	}

	if c.Memory.RecentCap <= 0 {
		c.Memory.RecentCap = 50
	}
	if c.Memory.ContextWindow <= 0 {
		c.Memory.ContextWindow = 10
	}
	if c.Memory.SemanticTopK <= 0 {
		c.Memory.SemanticTopK = 5
	}
	if c.Memory.SemanticThreshold <= 0 {
		c.Memory.SemanticThreshold = 0.75
	}
	if c.Memory.ExtractEvery <= 0 {
		c.Memory.ExtractEvery = 4
	}
}

// ToolTimeout returns the per-tool deadline as a duration.
func (c *AgentConfig) ToolTimeout() time.Duration {
	return time.Duration(c.ToolTimeoutSec) * time.Second
}

// RetryBase returns the initial backoff delay as a duration.
func (c *AgentConfig) RetryBase() time.Duration {
	return time.Duration(c.RetryBaseMs) * time.Millisecond
}
