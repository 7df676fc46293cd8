package synth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"testforge/internal/llm"
	"testforge/internal/locator"
	"testforge/internal/logging"
	"testforge/internal/store"
	"testforge/internal/testgen"
)

// Retriever is the slice of the embedding index that synthesis needs.
type Retriever interface {
	Query(ctx context.Context, text string, k int, filter *store.QueryFilter) ([]store.RetrievedChunk, error)
}

// Synthesizer turns test cases into rod scripts and keeps every version
// produced for each test case.
type Synthesizer struct {
	index  Retriever
	client llm.Client
	cfg    Config

	mu       sync.RWMutex
	versions map[string][]*ScriptArtifact // test case id -> artifacts, index = version-1
	current  map[string]int               // test case id -> active version
}

// NewSynthesizer wires a synthesizer to an index and a completion client.
// Zero config fields fall back to the defaults.
func NewSynthesizer(index Retriever, client llm.Client, cfg Config) (*Synthesizer, error) {
	if index == nil {
		return nil, fmt.Errorf("retriever is required")
	}
	if client == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	def := DefaultConfig()
	if cfg.SupportChunks <= 0 {
		cfg.SupportChunks = def.SupportChunks
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.MaxInventory <= 0 {
		cfg.MaxInventory = def.MaxInventory
	}
	return &Synthesizer{
		index:    index,
		client:   client,
		cfg:      cfg,
		versions: make(map[string][]*ScriptArtifact),
		current:  make(map[string]int),
	}, nil
}

// Synthesize produces a new script version for the test case against the
// given page markup. The inventory is extracted fresh on every call so a
// changed page re-validates older assumptions. Retrieval and provider
// errors abort without recording a version; a script that fails validation
// is still recorded and returned, its status carries the verdict.
func (s *Synthesizer) Synthesize(ctx context.Context, tc testgen.TestCase, markup string) (*ScriptArtifact, error) {
	timer := logging.StartTimer(logging.CategorySynth, "Synthesize")
	defer timer.Stop()
	start := time.Now()

	artifact := &ScriptArtifact{
		ID:         uuid.NewString(),
		TestCaseID: tc.ID,
		Status:     StatusPending,
		CreatedAt:  time.Now().UTC(),
	}
	// Batch synthesis interleaves several runs in the log; the artifact id
	// correlates the steps of this one.
	rl := logging.WithRequestID(logging.CategorySynth, artifact.ID)
	rl.Info("Synthesizing script for test case %s", tc.ID)

	query := tc.Scenario
	if query == "" {
		query = tc.Feature
	}
	chunks, err := s.index.Query(ctx, query, s.cfg.SupportChunks, nil)
	if err != nil {
		rl.Warn("Retrieval failed for %s: %v", tc.ID, err)
		logging.Synthesis(tc.ID, string(StatusPending), 0, time.Since(start).Milliseconds(), false, err.Error())
		return nil, err
	}

	inv := locator.Extract(markup)

	artifact.Status = StatusGenerating
	rl.Debug("Test case %s: %s", tc.ID, artifact.Status)

	raw, err := s.client.Complete(ctx, llm.Request{
		System:      systemPrompt(),
		Prompt:      userPrompt(tc, chunks, inv, s.cfg.MaxInventory),
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
	})
	if err != nil {
		rl.Warn("Completion failed for %s: %v", tc.ID, err)
		logging.Synthesis(tc.ID, string(StatusGenerating), 0, time.Since(start).Milliseconds(), false, err.Error())
		return nil, err
	}

	artifact.Code = Clean(raw)
	artifact.Status = StatusGenerated
	rl.Debug("Test case %s: %s (%d bytes)", tc.ID, artifact.Status, len(artifact.Code))

	artifact.Status = StatusValidating
	verdict := Validate(artifact.Code, inv)
	artifact.Status = verdict.Status
	artifact.Errors = verdict.Errors
	artifact.Warnings = verdict.Warnings
	artifact.LocatorsUsed = verdict.Locators

	s.mu.Lock()
	artifact.Version = len(s.versions[tc.ID]) + 1
	s.versions[tc.ID] = append(s.versions[tc.ID], artifact)
	s.current[tc.ID] = artifact.Version
	s.mu.Unlock()

	rl.Info("Test case %s: version %d is %s (%d errors, %d warnings)",
		tc.ID, artifact.Version, artifact.Status, len(artifact.Errors), len(artifact.Warnings))
	logging.Synthesis(tc.ID, string(artifact.Status), artifact.Version, time.Since(start).Milliseconds(), true, "")
	return artifact, nil
}

// SynthesizeBatch runs Synthesize for each test case concurrently, at most
// limit at a time (limit <= 0 means unbounded). The first error cancels the
// remaining work; results keep the order of the input cases.
func (s *Synthesizer) SynthesizeBatch(ctx context.Context, cases []testgen.TestCase, markup string, limit int) ([]*ScriptArtifact, error) {
	logging.Synth("Synthesizing %d test cases (concurrency limit %d)", len(cases), limit)
	results := make([]*ScriptArtifact, len(cases))

	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, tc := range cases {
		g.Go(func() error {
			artifact, err := s.Synthesize(gctx, tc, markup)
			if err != nil {
				return err
			}
			results[i] = artifact
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Versions returns every script version recorded for the test case, oldest
// first. The slice is a copy; the artifacts are shared and must be treated
// as read-only.
func (s *Synthesizer) Versions(testCaseID string) []*ScriptArtifact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.versions[testCaseID]
	out := make([]*ScriptArtifact, len(list))
	copy(out, list)
	return out
}

// Current returns the active script version for the test case.
func (s *Synthesizer) Current(testCaseID string) (*ScriptArtifact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.current[testCaseID]
	if !ok {
		return nil, false
	}
	return s.versions[testCaseID][v-1], true
}

// SetCurrent pins the active version for the test case, e.g. to roll back
// after a regeneration made things worse.
func (s *Synthesizer) SetCurrent(testCaseID string, version int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.versions[testCaseID]
	if version < 1 || version > len(list) {
		return fmt.Errorf("test case %s has no version %d (have %d)", testCaseID, version, len(list))
	}
	s.current[testCaseID] = version
	return nil
}
