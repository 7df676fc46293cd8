// Package ingest loads pre-chunked document records into the embedding index
// and keeps the index in sync with chunk files on disk.
package ingest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"testforge/internal/logging"
	"testforge/internal/store"
)

// Indexer is the slice of the embedding index that ingestion needs.
type Indexer interface {
	Add(ctx context.Context, chunks []store.Chunk) ([]string, error)
	DeleteBySource(ctx context.Context, source string) (int64, error)
}

// chunkRecord is the JSONL wire format, one record per line.
type chunkRecord struct {
	Text   string `json:"text"`
	Source string `json:"source,omitempty"`
	Index  int    `json:"index,omitempty"`
	Total  int    `json:"total,omitempty"`
}

// maxLineBytes bounds a single JSONL record; chunks are prompt-sized, so
// anything larger is a malformed file, not a legitimate chunk.
const maxLineBytes = 4 * 1024 * 1024

// ReadChunkFile parses a JSONL chunk file into index-ready chunks. Blank
// lines are skipped; a malformed or empty-text record fails the whole read,
// corrupt input should be fixed rather than half-loaded. Records without a
// source fall back to the file's base name. If no record in the file declares
// a total, positions are assigned sequentially over the whole file.
func ReadChunkFile(path string) ([]store.Chunk, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening chunk file: %w", err)
	}
	defer f.Close()

	fallback := defaultSource(path)
	var chunks []store.Chunk
	declaredTotal := false

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var rec chunkRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("parsing %s line %d: %w", path, lineNo, err)
		}
		if rec.Text == "" {
			return nil, fmt.Errorf("parsing %s line %d: record has no text", path, lineNo)
		}
		if rec.Source == "" {
			rec.Source = fallback
		}
		if rec.Total > 0 {
			declaredTotal = true
		}

		chunks = append(chunks, store.Chunk{
			Text:   rec.Text,
			Source: rec.Source,
			Index:  rec.Index,
			Total:  rec.Total,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if !declaredTotal {
		for i := range chunks {
			chunks[i].Index = i
			chunks[i].Total = len(chunks)
		}
	}

	logging.IngestDebug("Read %d chunks from %s", len(chunks), path)
	return chunks, nil
}

// Sync replaces the indexed chunks of a file with its current contents:
// every source the file mentions is deleted and re-added in one pass, so
// repeated syncs of the same file never duplicate chunks. It returns the
// number of chunks indexed.
func Sync(ctx context.Context, index Indexer, path string) (int, error) {
	start := time.Now()

	chunks, err := ReadChunkFile(path)
	if err != nil {
		logging.IngestFile(path, 0, false, err.Error())
		return 0, err
	}

	sources := distinctSources(chunks)
	if len(sources) == 0 {
		sources = []string{defaultSource(path)}
	}
	for _, src := range sources {
		removed, err := index.DeleteBySource(ctx, src)
		if err != nil {
			logging.IngestFile(path, 0, false, err.Error())
			return 0, err
		}
		if removed > 0 {
			logging.IngestDebug("Replaced %d chunks of source %s", removed, src)
		}
	}

	ids, err := index.Add(ctx, chunks)
	if err != nil {
		logging.IngestFile(path, 0, false, err.Error())
		return 0, err
	}

	logging.Ingest("Indexed %d chunks from %s in %dms", len(ids), path, time.Since(start).Milliseconds())
	logging.IngestFile(path, len(ids), true, "")
	return len(ids), nil
}

// defaultSource is the source name used for records that do not declare one,
// and for removals when the file itself disappears.
func defaultSource(path string) string {
	return filepath.Base(path)
}

// distinctSources lists the sources in first-appearance order.
func distinctSources(chunks []store.Chunk) []string {
	seen := map[string]bool{}
	var sources []string
	for _, c := range chunks {
		if !seen[c.Source] {
			seen[c.Source] = true
			sources = append(sources, c.Source)
		}
	}
	return sources
}
