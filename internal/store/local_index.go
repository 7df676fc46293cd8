package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"testforge/internal/embedding"
	"testforge/internal/logging"
)

// LocalIndex is a SQLite-backed embedding index. Chunks and their vectors live
// in one table; recall is brute-force cosine over the stored vectors, which is
// exact and fast enough at document-collection scale. When the sqlite-vec
// extension is compiled in (build tag sqlite_vec), its availability is
// detected and reported through Stats.
type LocalIndex struct {
	db        *sql.DB
	mu        sync.RWMutex
	dbPath    string
	engine    embedding.Engine
	vectorExt bool
}

// NewLocalIndex opens or creates the index database at path.
// The embedding engine is required; every add and query goes through it.
func NewLocalIndex(path string, engine embedding.Engine) (*LocalIndex, error) {
	timer := logging.StartTimer(logging.CategoryIndex, "NewLocalIndex")
	defer timer.Stop()

	if engine == nil {
		return nil, fmt.Errorf("embedding engine is required")
	}

	logging.Index("Opening index at path: %s (engine=%s)", path, engine.Name())

	if dir := filepath.Dir(path); dir != "" && dir != "." && path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logging.IndexError("Failed to create directory %s: %v", dir, err)
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		logging.IndexError("Failed to open database at %s: %v", path, err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.IndexDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.IndexDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}
	// synchronous=NORMAL is safe under WAL and much faster than FULL.
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.IndexDebug("Failed to set sqlite synchronous=NORMAL: %v", err)
	}

	ix := &LocalIndex{db: db, dbPath: path, engine: engine}
	if err := ix.initialize(); err != nil {
		logging.IndexError("Failed to initialize schema: %v", err)
		db.Close()
		return nil, err
	}

	ix.detectVecExtension()
	if ix.vectorExt {
		logging.Index("sqlite-vec extension detected")
	} else {
		logging.IndexDebug("sqlite-vec extension not available; using brute-force recall")
	}

	logging.Index("Index ready: path=%s engine=%s dims=%d", path, engine.Name(), engine.Dimensions())
	return ix, nil
}

// initialize creates the required tables.
func (ix *LocalIndex) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		text TEXT NOT NULL,
		source TEXT NOT NULL,
		chunk_index INTEGER NOT NULL DEFAULT 0,
		chunk_total INTEGER NOT NULL DEFAULT 1,
		embedding TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source);
	`
	if _, err := ix.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create chunks table: %w", err)
	}
	return nil
}

// detectVecExtension attempts to create a vec0 virtual table to see if
// sqlite-vec is available.
func (ix *LocalIndex) detectVecExtension() {
	if ix.db == nil {
		return
	}
	if _, err := ix.db.Exec("CREATE VIRTUAL TABLE IF NOT EXISTS vec_probe USING vec0(embedding float[4])"); err == nil {
		ix.vectorExt = true
		_, _ = ix.db.Exec("DROP TABLE IF EXISTS vec_probe")
		return
	}
	ix.vectorExt = false
}

// Engine returns the embedding engine backing this index.
func (ix *LocalIndex) Engine() embedding.Engine {
	return ix.engine
}

// Path returns the database path.
func (ix *LocalIndex) Path() string {
	return ix.dbPath
}

// Close closes the database connection.
func (ix *LocalIndex) Close() error {
	logging.Index("Closing index database connection")
	return ix.db.Close()
}

// Clear removes every chunk from the index. No add or query runs concurrently
// with a clear; callers observe either the full index or an empty one.
func (ix *LocalIndex) Clear(ctx context.Context) error {
	timer := logging.StartTimer(logging.CategoryIndex, "Clear")
	defer timer.Stop()

	ix.mu.Lock()
	defer ix.mu.Unlock()

	res, err := ix.db.ExecContext(ctx, "DELETE FROM chunks")
	if err != nil {
		logging.IndexError("Clear failed: %v", err)
		logging.IndexOp("clear", ix.dbPath, 0, false, err.Error())
		return &RetrievalError{Op: "clear", Err: err}
	}

	removed, _ := res.RowsAffected()
	logging.Index("Cleared index: %d chunks removed", removed)
	logging.IndexOp("clear", ix.dbPath, int(removed), true, "")
	return nil
}

// Stats returns index statistics.
func (ix *LocalIndex) Stats(ctx context.Context) (Stats, error) {
	timer := logging.StartTimer(logging.CategoryIndex, "Stats")
	defer timer.Stop()

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	stats := Stats{
		VectorExt:  ix.vectorExt,
		EngineName: ix.engine.Name(),
		EngineDims: ix.engine.Dimensions(),
		DBPath:     ix.dbPath,
	}

	if err := ix.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&stats.Chunks); err != nil {
		return Stats{}, &RetrievalError{Op: "stats", Err: err}
	}
	if err := ix.db.QueryRowContext(ctx, "SELECT COUNT(DISTINCT source) FROM chunks").Scan(&stats.Sources); err != nil {
		return Stats{}, &RetrievalError{Op: "stats", Err: err}
	}

	return stats, nil
}
