// Package store persists document chunks with their embeddings and serves
// similarity queries over them.
package store

import (
	"fmt"
	"time"
)

// =============================================================================
// CORE TYPES
// =============================================================================

// Chunk is one indexed piece of a source document. ID is assigned by the
// index on insert and is opaque to callers.
type Chunk struct {
	ID        string
	Text      string
	Source    string
	Index     int // position within the source document
	Total     int // chunk count of the source document
	CreatedAt time.Time
}

// RetrievedChunk is a chunk returned from a similarity query.
type RetrievedChunk struct {
	Chunk
	Similarity float64 // 1/(1+distance), in (0, 1]
}

// QueryFilter narrows a query to a subset of the index.
type QueryFilter struct {
	Source string // exact source match, empty = all sources
}

// SourceInfo summarizes one indexed source document.
type SourceInfo struct {
	Source    string
	Chunks    int64
	LastAdded time.Time
}

// Stats describes the state of the index.
type Stats struct {
	Chunks     int64
	Sources    int64
	VectorExt  bool
	EngineName string
	EngineDims int
	DBPath     string
}

// =============================================================================
// ERRORS
// =============================================================================

// RetrievalError wraps failures of index operations. An add that fails leaves
// the index unchanged; the wrapped cause says what went wrong.
type RetrievalError struct {
	Op  string // "add", "query", "clear", "delete"
	Err error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval %s failed: %v", e.Op, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }
