// query-index is a standalone inspector for forge index databases. It uses
// the pure-Go sqlite driver so it runs without cgo, straight from source.
//
// Usage:
//
//	go run ./cmd/query-index [db-path] [limit]
package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	_ "modernc.org/sqlite"
)

func main() {
	dbPath := "data/forge.db"
	limit := 10
	if len(os.Args) > 1 {
		dbPath = os.Args[1]
	}
	if len(os.Args) > 2 {
		if n, err := strconv.Atoi(os.Args[2]); err == nil {
			limit = n
		}
	}

	if _, err := os.Stat(dbPath); err != nil {
		fmt.Printf("No index database at %s\n", dbPath)
		os.Exit(1)
	}
	queryDB(dbPath, limit)
}

func queryDB(dbPath string, limit int) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		fmt.Printf("Error opening DB: %v\n", err)
		return
	}
	defer db.Close()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='table'")
	if err != nil {
		fmt.Printf("Error querying tables: %v\n", err)
		return
	}
	var tables []string
	for rows.Next() {
		var name string
		rows.Scan(&name)
		tables = append(tables, name)
	}
	rows.Close()
	fmt.Printf("Tables: %v\n", tables)

	schemaRows, err := db.Query("PRAGMA table_info(chunks)")
	if err != nil {
		fmt.Printf("No chunks table\n")
		return
	}
	fmt.Printf("\nSchema:\n")
	for schemaRows.Next() {
		var cid int
		var name, typ string
		var notNull, pk int
		var dflt interface{}
		schemaRows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk)
		fmt.Printf("  - %s (%s)\n", name, typ)
	}
	schemaRows.Close()

	fmt.Printf("\nSources:\n")
	srcRows, err := db.Query("SELECT source, COUNT(*), MAX(created_at) FROM chunks GROUP BY source ORDER BY source")
	if err != nil {
		fmt.Printf("Error querying sources: %v\n", err)
		return
	}
	for srcRows.Next() {
		var source, lastAdded string
		var count int
		srcRows.Scan(&source, &count, &lastAdded)
		fmt.Printf("  %-40s %5d chunks  (last %s)\n", source, count, lastAdded)
	}
	srcRows.Close()

	fmt.Printf("\nSample chunks:\n")
	fmt.Println("─────────────────────────────────────────────────────────────")
	sampleRows, err := db.Query(
		"SELECT id, source, chunk_index, chunk_total, text, embedding FROM chunks LIMIT ?", limit)
	if err != nil {
		fmt.Printf("Error querying chunks: %v\n", err)
		return
	}
	i := 0
	for sampleRows.Next() {
		var id, source, text, emb string
		var idx, total int
		if err := sampleRows.Scan(&id, &source, &idx, &total, &text, &emb); err != nil {
			fmt.Printf("Scan error: %v\n", err)
			continue
		}
		i++
		if len(text) > 100 {
			text = text[:100] + "..."
		}
		dims := 0
		var vec []float64
		if err := json.Unmarshal([]byte(emb), &vec); err == nil {
			dims = len(vec)
		}
		fmt.Printf("%d. [%s %d/%d] id=%s dims=%d\n   %s\n", i, source, idx+1, total, id[:8], dims, text)
	}
	sampleRows.Close()

	var count int
	db.QueryRow("SELECT COUNT(*) FROM chunks").Scan(&count)
	fmt.Printf("\nTotal chunks: %d\n", count)
}
