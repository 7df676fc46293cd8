// Package llm provides text-generation clients for the generation and
// synthesis pipelines.
package llm

import (
	"context"
	"fmt"
	"time"

	"testforge/internal/logging"
)

// =============================================================================
// CLIENT INTERFACE
// =============================================================================

// Request is a single completion request.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Client defines the interface for text-generation providers.
type Client interface {
	// Complete sends a request and returns the raw completion text.
	Complete(ctx context.Context, req Request) (string, error)

	// Model returns the model identifier in use.
	Model() string
}

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// Config holds client configuration.
type Config struct {
	Provider  string
	APIKey    string
	Model     string
	Timeout   time.Duration
	MaxTokens int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(apiKey string) Config {
	return Config{
		Provider:  "gemini",
		APIKey:    apiKey,
		Model:     "gemini-2.0-flash",
		Timeout:   120 * time.Second,
		MaxTokens: 2000,
	}
}

// =============================================================================
// FACTORY
// =============================================================================

// NewClient creates a text-generation client based on configuration.
func NewClient(cfg Config) (Client, error) {
	logging.LLM("Creating LLM client: provider=%s model=%s", cfg.Provider, cfg.Model)

	switch cfg.Provider {
	case "gemini":
		return NewGeminiClient(cfg)
	default:
		logging.LLMError("Unsupported LLM provider: %s", cfg.Provider)
		return nil, fmt.Errorf("unsupported LLM provider: %s (use 'gemini')", cfg.Provider)
	}
}
