// Package embedding generates vector embeddings for semantic retrieval.
// Supports a local deterministic engine and Google GenAI (cloud).
package embedding

import (
	"context"
	"fmt"
	"math"
	"sort"

	"testforge/internal/logging"
)

// =============================================================================
// EMBEDDING ENGINE INTERFACE
// =============================================================================

// Engine generates vector embeddings for text.
type Engine interface {
	// Embed generates an embedding for a single text
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the dimensionality of embeddings
	Dimensions() int

	// Name returns the engine name
	Name() string
}

// =============================================================================
// EMBEDDING CONFIGURATION
// =============================================================================

// Config holds embedding engine configuration.
type Config struct {
	// Provider: "genai" or "local"
	Provider string `json:"provider"`

	// GenAI configuration
	APIKey string `json:"api_key"`
	Model  string `json:"model"` // Default: "gemini-embedding-001"

	// TaskType for GenAI: "SEMANTIC_SIMILARITY", "RETRIEVAL_QUERY", "RETRIEVAL_DOCUMENT"
	TaskType string `json:"task_type"`

	// Local engine dimensionality
	Dimensions int `json:"dimensions"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Provider:   "genai",
		Model:      "gemini-embedding-001",
		TaskType:   "SEMANTIC_SIMILARITY",
		Dimensions: 768,
	}
}

// =============================================================================
// FACTORY
// =============================================================================

// NewEngine creates an embedding engine based on configuration.
func NewEngine(cfg Config) (Engine, error) {
	timer := logging.StartTimer(logging.CategoryEmbed, "NewEngine")
	defer timer.Stop()

	logging.Embed("Creating embedding engine with provider=%s", cfg.Provider)
	logging.EmbedDebug("Engine config: provider=%s, model=%s, task_type=%s, dimensions=%d",
		cfg.Provider, cfg.Model, cfg.TaskType, cfg.Dimensions)

	var engine Engine
	var err error

	switch cfg.Provider {
	case "genai":
		engine, err = NewGenAIEngine(cfg.APIKey, cfg.Model, cfg.TaskType)
	case "local":
		engine, err = NewLocalEngine(cfg.Dimensions)
	default:
		err = fmt.Errorf("unsupported embedding provider: %s (use 'genai' or 'local')", cfg.Provider)
		logging.Get(logging.CategoryEmbed).Error("Unsupported embedding provider: %s", cfg.Provider)
		return nil, err
	}

	if err != nil {
		logging.Get(logging.CategoryEmbed).Error("Failed to create embedding engine: %v", err)
		return nil, err
	}

	logging.Embed("Embedding engine created: name=%s, dimensions=%d", engine.Name(), engine.Dimensions())
	return engine, nil
}

// =============================================================================
// COSINE SIMILARITY UTILITIES
// =============================================================================

// CosineSimilarity calculates the cosine similarity between two vectors.
// Returns a value between -1 and 1, where 1 means identical.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vectors must have the same length: %d != %d", len(a), len(b))
	}

	var dotProduct, aMagnitude, bMagnitude float64
	for i := 0; i < len(a); i++ {
		dotProduct += float64(a[i] * b[i])
		aMagnitude += float64(a[i] * a[i])
		bMagnitude += float64(b[i] * b[i])
	}

	if aMagnitude == 0 || bMagnitude == 0 {
		return 0, nil
	}

	return dotProduct / (math.Sqrt(aMagnitude) * math.Sqrt(bMagnitude)), nil
}

// SimilarityResult represents a similarity search result.
type SimilarityResult struct {
	Index      int
	Similarity float64
}

// FindTopK returns the indices of the top K most similar corpus vectors to the
// query, by cosine similarity. Vectors with mismatched dimensions are skipped.
func FindTopK(query []float32, corpus [][]float32, k int) ([]SimilarityResult, error) {
	timer := logging.StartTimer(logging.CategoryEmbed, "FindTopK")
	defer timer.Stop()

	if k <= 0 {
		return nil, nil
	}

	logging.EmbedDebug("FindTopK: top %d of %d vectors (query dim=%d)", k, len(corpus), len(query))

	results := make([]SimilarityResult, 0, len(corpus))
	skipped := 0

	for i, vec := range corpus {
		similarity, err := CosineSimilarity(query, vec)
		if err != nil {
			skipped++
			continue
		}
		results = append(results, SimilarityResult{Index: i, Similarity: similarity})
	}

	if skipped > 0 {
		logging.Get(logging.CategoryEmbed).Warn("FindTopK: skipped %d vectors due to dimension mismatch", skipped)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	if len(results) > k {
		results = results[:k]
	}

	return results, nil
}
