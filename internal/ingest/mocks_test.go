package ingest

import (
	"context"
	"fmt"
	"sync"

	"testforge/internal/store"
)

// RecordingIndex implements Indexer in memory. All accessors lock because
// the watcher calls it from its event-loop goroutine.
type RecordingIndex struct {
	mu         sync.Mutex
	bySource   map[string][]store.Chunk
	deletes    []string
	addCalls   int
	failAdd    error
	failDelete error
}

func (r *RecordingIndex) Add(_ context.Context, chunks []store.Chunk) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAdd != nil {
		return nil, r.failAdd
	}
	if r.bySource == nil {
		r.bySource = make(map[string][]store.Chunk)
	}
	ids := make([]string, 0, len(chunks))
	for i, c := range chunks {
		r.bySource[c.Source] = append(r.bySource[c.Source], c)
		ids = append(ids, fmt.Sprintf("%s-%d", c.Source, i))
	}
	r.addCalls++
	return ids, nil
}

func (r *RecordingIndex) DeleteBySource(_ context.Context, source string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failDelete != nil {
		return 0, r.failDelete
	}
	n := int64(len(r.bySource[source]))
	delete(r.bySource, source)
	r.deletes = append(r.deletes, source)
	return n, nil
}

func (r *RecordingIndex) Count(source string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bySource[source])
}

func (r *RecordingIndex) AddCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addCalls
}

func (r *RecordingIndex) Deletes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.deletes))
	copy(out, r.deletes)
	return out
}

var _ Indexer = (*RecordingIndex)(nil)
