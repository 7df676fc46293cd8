package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"testforge/internal/ingest"
	"testforge/internal/store"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file...]",
	Short: "Index pre-chunked JSONL documentation files",
	Long: `Ingest reads JSONL chunk files (one {"text", "source", "index", "total"}
record per line) and indexes every chunk. Re-ingesting a file replaces its
previous chunks instead of duplicating them.`,
	Args: cobra.MinimumNArgs(1),
	RunE: ingestChunks,
}

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Watch a directory and re-index .jsonl files as they change",
	Args:  cobra.ExactArgs(1),
	RunE:  watchDir,
}

var queryCmd = &cobra.Command{
	Use:   "query [text...]",
	Short: "Retrieve the most similar indexed chunks",
	Args:  cobra.MinimumNArgs(1),
	RunE:  queryIndex,
}

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List indexed source documents",
	RunE:  listSources,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics",
	RunE:  showStats,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every chunk from the index",
	RunE:  clearIndex,
}

func init() {
	watchCmd.Flags().Duration("debounce", ingest.DefaultDebounce, "Quiet period before a changed file is re-indexed")

	queryCmd.Flags().IntP("top-k", "k", 0, "Number of chunks to retrieve (0 uses config default)")
	queryCmd.Flags().String("source", "", "Restrict retrieval to one source document")
	queryCmd.Flags().Float64("min-similarity", -1, "Drop results below this similarity (-1 uses config default)")

	clearCmd.Flags().Bool("yes", false, "Confirm deletion")
}

// ingestChunks indexes one or more JSONL chunk files.
func ingestChunks(cmd *cobra.Command, args []string) error {
	ctx, cancel := opContext()
	defer cancel()

	ix, err := openIndex()
	if err != nil {
		return err
	}
	defer ix.Close()

	total := 0
	for _, path := range args {
		logger.Info("Ingesting chunk file", zap.String("path", path))
		n, err := ingest.Sync(ctx, ix, path)
		if err != nil {
			return fmt.Errorf("ingesting %s: %w", path, err)
		}
		fmt.Printf("%s %s (%d chunks)\n", styleSuccess.Render("indexed"), path, n)
		total += n
	}
	if len(args) > 1 {
		fmt.Printf("\n%d chunks indexed from %d files\n", total, len(args))
	}
	return nil
}

// watchDir keeps the index in sync with a chunk directory until interrupted.
func watchDir(cmd *cobra.Command, args []string) error {
	dir := args[0]
	debounce, _ := cmd.Flags().GetDuration("debounce")

	ix, err := openIndex()
	if err != nil {
		return err
	}
	defer ix.Close()

	w, err := ingest.NewWatcher(dir, ix, debounce)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	logger.Info("Watching chunk directory",
		zap.String("dir", dir),
		zap.Duration("debounce", debounce))

	if err := w.Rescan(ctx); err != nil {
		return fmt.Errorf("initial rescan failed: %w", err)
	}
	if err := w.Start(ctx); err != nil {
		return err
	}

	fmt.Printf("Watching %s for .jsonl changes. Press Ctrl+C to stop.\n", dir)
	<-ctx.Done()
	w.Stop()

	stats := w.Stats()
	fmt.Printf("\n%d events, %d syncs, %d chunks indexed, %d removals, %d errors\n",
		stats.Events, stats.Syncs, stats.ChunksIndexed, stats.Removals, stats.Errors)
	return nil
}

// queryIndex retrieves the chunks most similar to the query text.
func queryIndex(cmd *cobra.Command, args []string) error {
	ctx, cancel := opContext()
	defer cancel()

	query := strings.Join(args, " ")
	topK, _ := cmd.Flags().GetInt("top-k")
	source, _ := cmd.Flags().GetString("source")
	minSim, _ := cmd.Flags().GetFloat64("min-similarity")

	if topK <= 0 {
		topK = cfg.Index.DefaultTopK
	}
	if minSim < 0 {
		minSim = cfg.Index.MinSimilarity
	}

	ix, err := openIndex()
	if err != nil {
		return err
	}
	defer ix.Close()

	logger.Info("Querying index",
		zap.String("query", query),
		zap.Int("top_k", topK),
		zap.String("source", source))

	var filter *store.QueryFilter
	if source != "" {
		filter = &store.QueryFilter{Source: source}
	}

	results, err := ix.Query(ctx, query, topK, filter)
	if err != nil {
		return err
	}

	shown := 0
	for _, r := range results {
		if r.Similarity < minSim {
			continue
		}
		shown++
		fmt.Printf("%s %s %s\n",
			styleInfo.Render(fmt.Sprintf("%d.", shown)),
			styleTitle.Render(fmt.Sprintf("%s (chunk %d/%d)", r.Source, r.Index+1, r.Total)),
			similarityBar(r.Similarity))
		fmt.Print(renderMarkdown(r.Text))
		fmt.Println()
	}
	if shown == 0 {
		fmt.Println(styleMuted.Render("no matching chunks"))
	}
	return nil
}

// listSources prints every indexed source document.
func listSources(cmd *cobra.Command, args []string) error {
	ctx, cancel := opContext()
	defer cancel()

	ix, err := openIndex()
	if err != nil {
		return err
	}
	defer ix.Close()

	sources, err := ix.ListSources(ctx)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		fmt.Println(styleMuted.Render("index is empty"))
		return nil
	}

	fmt.Println(styleMuted.Render(fmt.Sprintf("%-40s %8s  %s", "SOURCE", "CHUNKS", "LAST ADDED")))
	for _, s := range sources {
		fmt.Printf("%-40s %8d  %s\n", s.Source, s.Chunks, s.LastAdded.Local().Format(time.DateTime))
	}
	return nil
}

// showStats prints index statistics.
func showStats(cmd *cobra.Command, args []string) error {
	ctx, cancel := opContext()
	defer cancel()

	ix, err := openIndex()
	if err != nil {
		return err
	}
	defer ix.Close()

	stats, err := ix.Stats(ctx)
	if err != nil {
		return err
	}

	fmt.Println(styleTitle.Render("Index"))
	fmt.Printf("  Database:   %s\n", stats.DBPath)
	fmt.Printf("  Chunks:     %d\n", stats.Chunks)
	fmt.Printf("  Sources:    %d\n", stats.Sources)
	fmt.Printf("  Engine:     %s (%d dimensions)\n", stats.EngineName, stats.EngineDims)
	if stats.VectorExt {
		fmt.Printf("  Vector ext: %s\n", styleSuccess.Render("loaded"))
	} else {
		fmt.Printf("  Vector ext: %s\n", styleWarning.Render("unavailable, using linear scan"))
	}
	return nil
}

// clearIndex deletes every chunk after an explicit confirmation flag.
func clearIndex(cmd *cobra.Command, args []string) error {
	yes, _ := cmd.Flags().GetBool("yes")
	if !yes {
		return fmt.Errorf("refusing to clear the index without --yes")
	}

	ctx, cancel := opContext()
	defer cancel()

	ix, err := openIndex()
	if err != nil {
		return err
	}
	defer ix.Close()

	logger.Info("Clearing index", zap.String("db", ix.Path()))
	if err := ix.Clear(ctx); err != nil {
		return err
	}
	fmt.Println(styleSuccess.Render("index cleared"))
	return nil
}
