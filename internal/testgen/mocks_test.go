package testgen

import (
	"context"

	"testforge/internal/llm"
	"testforge/internal/store"
)

// MockRetriever implements Retriever with overridable behavior.
type MockRetriever struct {
	QueryFunc func(ctx context.Context, text string, k int, filter *store.QueryFilter) ([]store.RetrievedChunk, error)
}

func (m *MockRetriever) Query(ctx context.Context, text string, k int, filter *store.QueryFilter) ([]store.RetrievedChunk, error) {
	if m.QueryFunc != nil {
		return m.QueryFunc(ctx, text, k, filter)
	}
	return []store.RetrievedChunk{}, nil
}

var _ Retriever = (*MockRetriever)(nil)

// MockClient implements llm.Client and counts calls.
type MockClient struct {
	CompleteFunc func(ctx context.Context, req llm.Request) (string, error)
	Calls        int
	LastRequest  llm.Request
}

func (m *MockClient) Complete(ctx context.Context, req llm.Request) (string, error) {
	m.Calls++
	m.LastRequest = req
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return "[]", nil
}

func (m *MockClient) Model() string { return "mock-model" }

var _ llm.Client = (*MockClient)(nil)

// retrieverOf returns a retriever that always yields one chunk per source,
// with similarity stepping down from 0.9.
func retrieverOf(sources ...string) *MockRetriever {
	return &MockRetriever{
		QueryFunc: func(_ context.Context, _ string, k int, _ *store.QueryFilter) ([]store.RetrievedChunk, error) {
			chunks := make([]store.RetrievedChunk, 0, len(sources))
			for i, src := range sources {
				if i >= k {
					break
				}
				chunks = append(chunks, store.RetrievedChunk{
					Chunk: store.Chunk{
						ID:     src + "-0",
						Text:   "content of " + src,
						Source: src,
						Total:  1,
					},
					Similarity: 0.9 - float64(i)*0.1,
				})
			}
			return chunks, nil
		},
	}
}
