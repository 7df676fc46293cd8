package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// =============================================================================
// LOCAL HASH EMBEDDING ENGINE
// =============================================================================

// LocalEngine generates deterministic embeddings by hashing token features
// into a fixed-dimension vector. It needs no network or API key, so it serves
// offline runs and tests. Texts sharing vocabulary produce similar vectors;
// it is not a substitute for a learned embedding model.
type LocalEngine struct {
	dims int
}

// NewLocalEngine creates a local hash embedding engine.
func NewLocalEngine(dims int) (*LocalEngine, error) {
	if dims <= 0 {
		dims = 768
	}
	return &LocalEngine{dims: dims}, nil
}

// Embed generates a deterministic embedding for a single text.
func (e *LocalEngine) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dims)

	for _, token := range tokenize(text) {
		h := fnv.New64a()
		h.Write([]byte(token))
		sum := h.Sum64()

		// Spread each token over a few buckets so collisions do not
		// dominate short texts.
		for i := 0; i < 3; i++ {
			idx := int((sum >> (i * 16)) % uint64(e.dims))
			sign := float32(1)
			if (sum>>(i*16+15))&1 == 1 {
				sign = -1
			}
			vec[idx] += sign
		}
	}

	normalize(vec)
	return vec, nil
}

// EmbedBatch generates embeddings for multiple texts.
func (e *LocalEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = vec
	}
	return embeddings, nil
}

// Dimensions returns the dimensionality of embeddings.
func (e *LocalEngine) Dimensions() int {
	return e.dims
}

// Name returns the engine name.
func (e *LocalEngine) Name() string {
	return fmt.Sprintf("local:%d", e.dims)
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func normalize(vec []float32) {
	var mag float64
	for _, v := range vec {
		mag += float64(v * v)
	}
	if mag == 0 {
		return
	}
	mag = math.Sqrt(mag)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / mag)
	}
}
