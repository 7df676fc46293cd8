// Package config loads and persists testforge configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all testforge configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Text-generation provider
	LLM LLMConfig `yaml:"llm"`

	// Embedding provider
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Embedding index storage and retrieval defaults
	Index IndexConfig `yaml:"index"`

	// Script synthesis
	Synth SynthConfig `yaml:"synth"`

	// Live page snapshot capture
	Browser BrowserConfig `yaml:"browser"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the text-generation client.
type LLMConfig struct {
	Provider  string `yaml:"provider"` // gemini
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	Timeout   string `yaml:"timeout"`
	MaxTokens int    `yaml:"max_tokens"`
}

// EmbeddingConfig configures the embedding engine.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"` // genai, local
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	TaskType   string `yaml:"task_type"`
	Dimensions int    `yaml:"dimensions"` // used by the local engine
}

// IndexConfig configures the embedding index.
type IndexConfig struct {
	DatabasePath  string  `yaml:"database_path"`
	DefaultTopK   int     `yaml:"default_top_k"`
	MinSimilarity float64 `yaml:"min_similarity"` // tuning constant, 0 disables
}

// SynthConfig configures script synthesis.
type SynthConfig struct {
	SupportChunks int    `yaml:"support_chunks"` // retrieval context per synthesis
	MaxTokens     int    `yaml:"max_tokens"`
	MaxInventory  int    `yaml:"max_inventory"` // locator entries included in prompts
	OutputDir     string `yaml:"output_dir"`
}

// BrowserConfig configures live snapshot capture.
type BrowserConfig struct {
	Headless            bool   `yaml:"headless"`
	Bin                 string `yaml:"bin"`          // browser binary, empty = auto-detect
	DebuggerURL         string `yaml:"debugger_url"` // attach instead of launch
	NavigationTimeoutMs int    `yaml:"navigation_timeout_ms"`
	ViewportWidth       int    `yaml:"viewport_width"`
	ViewportHeight      int    `yaml:"viewport_height"`
}

// LoggingConfig configures the category file logger.
type LoggingConfig struct {
	Enabled    bool            `yaml:"enabled"`
	Level      string          `yaml:"level"` // debug, info, warn, error
	Categories map[string]bool `yaml:"categories"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "testforge",
		Version: "0.3.0",

		LLM: LLMConfig{
			Provider:  "gemini",
			Model:     "gemini-2.0-flash",
			Timeout:   "120s",
			MaxTokens: 2000,
		},

		Embedding: EmbeddingConfig{
			Provider:   "genai",
			Model:      "gemini-embedding-001",
			TaskType:   "SEMANTIC_SIMILARITY",
			Dimensions: 768,
		},

		Index: IndexConfig{
			DatabasePath:  "data/forge.db",
			DefaultTopK:   5,
			MinSimilarity: 0,
		},

		Synth: SynthConfig{
			SupportChunks: 3,
			MaxTokens:     3000,
			MaxInventory:  30,
			OutputDir:     "scripts",
		},

		Browser: BrowserConfig{
			Headless:            true,
			NavigationTimeoutMs: 30000,
			ViewportWidth:       1920,
			ViewportHeight:      1080,
		},

		Logging: LoggingConfig{
			Enabled: false,
			Level:   "info",
		},
	}
}

// Load loads configuration from a YAML file. A missing file returns defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

func (c *Config) applyEnvOverrides() {
	// One Gemini key serves both the generation and embedding clients.
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.Embedding.APIKey = key
	}
	if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		if c.LLM.APIKey == "" {
			c.LLM.APIKey = key
		}
		if c.Embedding.APIKey == "" {
			c.Embedding.APIKey = key
		}
	}

	if path := os.Getenv("FORGE_DB_PATH"); path != "" {
		c.Index.DatabasePath = path
	}
	if level := os.Getenv("FORGE_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
		c.Logging.Enabled = true
	}
}

// ValidProviders lists the supported text-generation providers.
var ValidProviders = []string{"gemini"}

// ValidEmbeddingProviders lists the supported embedding providers.
var ValidEmbeddingProviders = []string{"genai", "local"}

// Validate checks that the configuration can drive the LLM-backed pipelines.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM API key not configured (set GEMINI_API_KEY)")
	}

	validProvider := false
	for _, p := range ValidProviders {
		if c.LLM.Provider == p {
			validProvider = true
			break
		}
	}
	if !validProvider {
		return fmt.Errorf("invalid LLM provider: %s (valid: %v)", c.LLM.Provider, ValidProviders)
	}

	validEmbed := false
	for _, p := range ValidEmbeddingProviders {
		if c.Embedding.Provider == p {
			validEmbed = true
			break
		}
	}
	if !validEmbed {
		return fmt.Errorf("invalid embedding provider: %s (valid: %v)", c.Embedding.Provider, ValidEmbeddingProviders)
	}

	return nil
}

// LLMTimeout returns the LLM timeout as a duration.
func (c *Config) LLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// NavigationTimeout returns the browser navigation timeout.
func (c *Config) NavigationTimeout() time.Duration {
	if c.Browser.NavigationTimeoutMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Browser.NavigationTimeoutMs) * time.Millisecond
}
