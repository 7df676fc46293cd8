package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"testforge/internal/embedding"
	"testforge/internal/logging"
)

// embedBatchSize bounds the number of texts per embedding call.
const embedBatchSize = 32

// =============================================================================
// ADD
// =============================================================================

// Add embeds the given chunks and inserts them in a single transaction,
// returning the assigned chunk ids in input order. Either every chunk lands
// in the index or none does; an embedding or insert failure leaves the index
// exactly as it was.
func (ix *LocalIndex) Add(ctx context.Context, chunks []Chunk) ([]string, error) {
	timer := logging.StartTimer(logging.CategoryIndex, "Add")
	defer timer.Stop()

	if len(chunks) == 0 {
		return []string{}, nil
	}

	logging.IndexDebug("Add: embedding %d chunks", len(chunks))

	// Embed everything before touching the database so a provider failure
	// cannot strand a half-inserted batch.
	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}
		batch, err := ix.engine.EmbedBatch(ctx, texts)
		if err != nil {
			logging.IndexError("Add: embedding failed: %v", err)
			logging.IndexOp("add", ix.dbPath, 0, false, err.Error())
			return nil, &RetrievalError{Op: "add", Err: err}
		}
		if len(batch) != len(texts) {
			err := fmt.Errorf("engine returned %d embeddings for %d texts", len(batch), len(texts))
			logging.IndexOp("add", ix.dbPath, 0, false, err.Error())
			return nil, &RetrievalError{Op: "add", Err: err}
		}
		vectors = append(vectors, batch...)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		logging.IndexOp("add", ix.dbPath, 0, false, err.Error())
		return nil, &RetrievalError{Op: "add", Err: err}
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO chunks (id, text, source, chunk_index, chunk_total, embedding) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		tx.Rollback()
		logging.IndexOp("add", ix.dbPath, 0, false, err.Error())
		return nil, &RetrievalError{Op: "add", Err: err}
	}
	defer stmt.Close()

	ids := make([]string, 0, len(chunks))
	for i, c := range chunks {
		vecJSON, err := json.Marshal(vectors[i])
		if err != nil {
			tx.Rollback()
			logging.IndexOp("add", ix.dbPath, 0, false, err.Error())
			return nil, &RetrievalError{Op: "add", Err: err}
		}
		total := c.Total
		if total <= 0 {
			total = 1
		}
		id := uuid.NewString()
		if _, err := stmt.ExecContext(ctx, id, c.Text, c.Source, c.Index, total, string(vecJSON)); err != nil {
			tx.Rollback()
			logging.IndexError("Add: insert failed, rolling back: %v", err)
			logging.IndexOp("add", ix.dbPath, 0, false, err.Error())
			return nil, &RetrievalError{Op: "add", Err: err}
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		logging.IndexOp("add", ix.dbPath, 0, false, err.Error())
		return nil, &RetrievalError{Op: "add", Err: err}
	}

	logging.Index("Added %d chunks", len(chunks))
	logging.IndexOp("add", ix.dbPath, len(chunks), true, "")
	return ids, nil
}

// =============================================================================
// QUERY
// =============================================================================

// Query embeds the query text and returns the k most similar chunks,
// ordered by similarity descending. k <= 0 and an empty index both yield an
// empty result. Similarity is 1/(1+distance) with cosine distance, so it
// falls in (0, 1] and 1 means an exact match.
func (ix *LocalIndex) Query(ctx context.Context, query string, k int, filter *QueryFilter) ([]RetrievedChunk, error) {
	timer := logging.StartTimer(logging.CategoryIndex, "Query")
	defer timer.Stop()

	if k <= 0 {
		return []RetrievedChunk{}, nil
	}

	queryVec, err := ix.engine.Embed(ctx, query)
	if err != nil {
		logging.IndexError("Query: embedding failed: %v", err)
		logging.IndexOp("query", query, 0, false, err.Error())
		return nil, &RetrievalError{Op: "query", Err: err}
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	sqlQuery := "SELECT id, text, source, chunk_index, chunk_total, embedding, created_at FROM chunks"
	var args []interface{}
	if filter != nil && filter.Source != "" {
		sqlQuery += " WHERE source = ?"
		args = append(args, filter.Source)
	}
	sqlQuery += " ORDER BY rowid"

	rows, err := ix.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		logging.IndexOp("query", query, 0, false, err.Error())
		return nil, &RetrievalError{Op: "query", Err: err}
	}
	defer rows.Close()

	var results []RetrievedChunk
	skipped := 0

	for rows.Next() {
		var c Chunk
		var vecJSON string
		if err := rows.Scan(&c.ID, &c.Text, &c.Source, &c.Index, &c.Total, &vecJSON, &c.CreatedAt); err != nil {
			skipped++
			continue
		}

		var vec []float32
		if err := json.Unmarshal([]byte(vecJSON), &vec); err != nil {
			skipped++
			continue
		}

		cos, err := embedding.CosineSimilarity(queryVec, vec)
		if err != nil {
			skipped++
			continue
		}

		distance := 1 - cos
		results = append(results, RetrievedChunk{
			Chunk:      c,
			Similarity: 1 / (1 + distance),
		})
	}
	if err := rows.Err(); err != nil {
		logging.IndexOp("query", query, 0, false, err.Error())
		return nil, &RetrievalError{Op: "query", Err: err}
	}
	if skipped > 0 {
		logging.IndexWarn("Query: skipped %d unreadable chunks", skipped)
	}

	// Rows arrive in insertion order, so the stable sort breaks ties oldest-first.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > k {
		results = results[:k]
	}
	if results == nil {
		results = []RetrievedChunk{}
	}

	logging.IndexDebug("Query returned %d chunks (k=%d)", len(results), k)
	logging.IndexOp("query", query, len(results), true, "")
	return results, nil
}

// =============================================================================
// SOURCE MANAGEMENT
// =============================================================================

// DeleteBySource removes every chunk of one source document.
func (ix *LocalIndex) DeleteBySource(ctx context.Context, source string) (int64, error) {
	timer := logging.StartTimer(logging.CategoryIndex, "DeleteBySource")
	defer timer.Stop()

	ix.mu.Lock()
	defer ix.mu.Unlock()

	res, err := ix.db.ExecContext(ctx, "DELETE FROM chunks WHERE source = ?", source)
	if err != nil {
		logging.IndexOp("delete", source, 0, false, err.Error())
		return 0, &RetrievalError{Op: "delete", Err: err}
	}

	removed, _ := res.RowsAffected()
	logging.Index("Deleted %d chunks for source %s", removed, source)
	logging.IndexOp("delete", source, int(removed), true, "")
	return removed, nil
}

// ListSources returns one entry per indexed source, ordered by source name.
func (ix *LocalIndex) ListSources(ctx context.Context) ([]SourceInfo, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	rows, err := ix.db.QueryContext(ctx,
		"SELECT source, COUNT(*), MAX(created_at) FROM chunks GROUP BY source ORDER BY source")
	if err != nil {
		return nil, &RetrievalError{Op: "list", Err: err}
	}
	defer rows.Close()

	var sources []SourceInfo
	for rows.Next() {
		var info SourceInfo
		if err := rows.Scan(&info.Source, &info.Chunks, &info.LastAdded); err != nil {
			continue
		}
		sources = append(sources, info)
	}
	if err := rows.Err(); err != nil {
		return nil, &RetrievalError{Op: "list", Err: err}
	}

	return sources, nil
}
