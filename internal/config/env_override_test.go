package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvOverrides_Keys(t *testing.T) {
	t.Run("GEMINI_API_KEY sets both clients", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "gem-key")
		t.Setenv("GOOGLE_API_KEY", "")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "gem-key", cfg.LLM.APIKey)
		assert.Equal(t, "gem-key", cfg.Embedding.APIKey)
	})

	t.Run("GOOGLE_API_KEY is a fallback only", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "")
		t.Setenv("GOOGLE_API_KEY", "goog-key")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "goog-key", cfg.LLM.APIKey)
		assert.Equal(t, "goog-key", cfg.Embedding.APIKey)
	})

	t.Run("GEMINI_API_KEY priority over GOOGLE_API_KEY", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "gem-key")
		t.Setenv("GOOGLE_API_KEY", "goog-key")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "gem-key", cfg.LLM.APIKey)
		assert.Equal(t, "gem-key", cfg.Embedding.APIKey)
	})

	t.Run("GOOGLE_API_KEY does not clobber configured key", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "")
		t.Setenv("GOOGLE_API_KEY", "goog-key")

		cfg := &Config{
			LLM:       LLMConfig{APIKey: "file-key"},
			Embedding: EmbeddingConfig{APIKey: "file-key"},
		}
		cfg.applyEnvOverrides()

		assert.Equal(t, "file-key", cfg.LLM.APIKey)
		assert.Equal(t, "file-key", cfg.Embedding.APIKey)
	})
}

func TestEnvOverrides_PathsAndLogging(t *testing.T) {
	t.Run("Database Path", func(t *testing.T) {
		t.Setenv("FORGE_DB_PATH", "/tmp/test.db")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "/tmp/test.db", cfg.Index.DatabasePath)
	})

	t.Run("Log Level enables logging", func(t *testing.T) {
		t.Setenv("FORGE_LOG_LEVEL", "debug")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.True(t, cfg.Logging.Enabled)
	})
}
