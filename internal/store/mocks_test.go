package store

import (
	"context"
	"fmt"

	"testforge/internal/embedding"
)

// MockEngine implements embedding.Engine for testing.
type MockEngine struct {
	EmbedFunc      func(ctx context.Context, text string) ([]float32, error)
	EmbedBatchFunc func(ctx context.Context, texts []string) ([][]float32, error)
	DimensionsFunc func() int
	NameFunc       func() string
}

func (m *MockEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, text)
	}
	return []float32{0.1, 0.2, 0.3, 0.4}, nil
}

func (m *MockEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if m.EmbedBatchFunc != nil {
		return m.EmbedBatchFunc(ctx, texts)
	}
	result := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := m.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		result[i] = vec
	}
	return result, nil
}

func (m *MockEngine) Dimensions() int {
	if m.DimensionsFunc != nil {
		return m.DimensionsFunc()
	}
	return 4
}

func (m *MockEngine) Name() string {
	if m.NameFunc != nil {
		return m.NameFunc()
	}
	return "mock-engine"
}

var _ embedding.Engine = (*MockEngine)(nil)

// fixedVectors returns an engine that maps known texts to fixed vectors.
// Unknown texts get a vector orthogonal to everything in the table's plane.
func fixedVectors(table map[string][]float32) *MockEngine {
	return &MockEngine{
		EmbedFunc: func(_ context.Context, text string) ([]float32, error) {
			if vec, ok := table[text]; ok {
				return vec, nil
			}
			return []float32{0, 0, 0, 1}, nil
		},
	}
}

// MockErrorEngine always returns errors.
type MockErrorEngine struct{}

func (m *MockErrorEngine) Embed(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("mock embed error")
}

func (m *MockErrorEngine) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, fmt.Errorf("mock embed error")
}

func (m *MockErrorEngine) Dimensions() int { return 4 }

func (m *MockErrorEngine) Name() string { return "mock-error-engine" }

var _ embedding.Engine = (*MockErrorEngine)(nil)
