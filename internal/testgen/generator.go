package testgen

import (
	"context"
	"fmt"
	"time"

	"testforge/internal/llm"
	"testforge/internal/locator"
	"testforge/internal/logging"
	"testforge/internal/store"
)

// Retriever is the slice of the embedding index that generation needs.
type Retriever interface {
	Query(ctx context.Context, text string, k int, filter *store.QueryFilter) ([]store.RetrievedChunk, error)
}

// Generator runs the retrieval-augmented test-case pipeline.
type Generator struct {
	index  Retriever
	client llm.Client
	cfg    Config
}

// NewGenerator wires a generator to an index and a completion client.
// Zero config fields fall back to the defaults.
func NewGenerator(index Retriever, client llm.Client, cfg Config) (*Generator, error) {
	if index == nil {
		return nil, fmt.Errorf("retriever is required")
	}
	if client == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	def := DefaultConfig()
	if cfg.TopK <= 0 {
		cfg.TopK = def.TopK
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.MaxInventory <= 0 {
		cfg.MaxInventory = def.MaxInventory
	}
	return &Generator{index: index, client: client, cfg: cfg}, nil
}

// GenerateTestCases retrieves context for the request, prompts the model,
// and maps the structured response to test cases. Empty retrieval returns an
// empty result without calling the model: an empty-context prompt maximizes
// hallucination risk for no benefit. Retrieval and provider errors surface
// unchanged; unparseable output becomes a *GenerationParseError.
func (g *Generator) GenerateTestCases(ctx context.Context, req Request) (*Result, error) {
	timer := logging.StartTimer(logging.CategoryTestGen, "GenerateTestCases")
	defer timer.Stop()
	start := time.Now()

	logging.TestGen("Generating test cases for query: %q", req.Query)

	k := req.TopK
	if k <= 0 {
		k = g.cfg.TopK
	}

	chunks, err := g.index.Query(ctx, req.Query, k, nil)
	if err != nil {
		logging.TestGenWarn("Retrieval failed: %v", err)
		logging.Generation(req.Query, 0, 0, time.Since(start).Milliseconds(), false, err.Error())
		return nil, err
	}

	if len(chunks) == 0 {
		logging.TestGen("No context retrieved, skipping generation")
		logging.Generation(req.Query, 0, 0, time.Since(start).Milliseconds(), true, "")
		return &Result{TestCases: []TestCase{}, Sources: []store.RetrievedChunk{}}, nil
	}

	inv := locator.Extract(req.Markup)
	system := systemPrompt()
	user := userPrompt(req.Query, chunks, inv, g.cfg.MaxInventory)

	raw, err := g.client.Complete(ctx, llm.Request{
		System:      system,
		Prompt:      user,
		Temperature: g.cfg.Temperature,
		MaxTokens:   g.cfg.MaxTokens,
	})
	if err != nil {
		logging.TestGenWarn("Completion failed: %v", err)
		logging.Generation(req.Query, 0, 0, time.Since(start).Milliseconds(), false, err.Error())
		return nil, err
	}

	records, err := parseRecords(raw)
	if err != nil {
		logging.TestGenWarn("Response not parseable: %v", err)
		logging.Generation(req.Query, 0, 0, time.Since(start).Milliseconds(), false, err.Error())
		return nil, &GenerationParseError{Raw: raw, Err: err}
	}

	cases, warnings := mapRecords(records)
	for _, w := range warnings {
		logging.TestGenWarn("%s", w)
	}

	// Grounding check: a citation outside the retrieved set flags the case,
	// the caller decides whether to suppress it.
	retrieved := make(map[string]bool, len(chunks))
	for _, c := range chunks {
		retrieved[c.Source] = true
	}
	for i := range cases {
		if !retrieved[cases[i].GroundedIn] {
			cases[i].Ungrounded = true
			logging.TestGenWarn("Test case %s cites %q, not among retrieved sources", cases[i].ID, cases[i].GroundedIn)
		}
	}

	result := &Result{TestCases: cases, Sources: chunks, Warnings: warnings}
	logging.TestGen("Generated %d test cases (%d ungrounded, %d dropped)",
		len(cases), result.Ungrounded(), len(warnings))
	logging.Generation(req.Query, len(cases), result.Ungrounded(), time.Since(start).Milliseconds(), true, "")
	return result, nil
}

// Search is retrieval without generation: the top-k chunks above a minimum
// similarity. minSimilarity <= 0 uses the configured cutoff.
func (g *Generator) Search(ctx context.Context, query string, k int, minSimilarity float64) ([]store.RetrievedChunk, error) {
	if k <= 0 {
		k = g.cfg.TopK
	}
	if minSimilarity <= 0 {
		minSimilarity = g.cfg.MinSimilarity
	}

	chunks, err := g.index.Query(ctx, query, k, nil)
	if err != nil {
		return nil, err
	}

	kept := make([]store.RetrievedChunk, 0, len(chunks))
	for _, c := range chunks {
		if c.Similarity >= minSimilarity {
			kept = append(kept, c)
		}
	}
	logging.TestGenDebug("Search %q: %d of %d chunks above similarity %.2f", query, len(kept), len(chunks), minSimilarity)
	return kept, nil
}
