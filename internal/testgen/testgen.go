// Package testgen converts a natural-language request plus a markup snapshot
// into test cases grounded in retrieved documentation. Every test case cites
// the source chunk it came from; citations pointing outside the retrieved
// set are flagged, never silently accepted.
package testgen

import (
	"fmt"
	"time"

	"testforge/internal/store"
)

// =============================================================================
// CORE TYPES
// =============================================================================

// TestType classifies the intent of a test case.
type TestType string

const (
	TypePositive TestType = "positive"
	TypeNegative TestType = "negative"
	TypeEdge     TestType = "edge"
	TypeBoundary TestType = "boundary"
)

// TestData is the input/expected pair exercised by a test case.
type TestData struct {
	Input    string `json:"input"`
	Expected string `json:"expected"`
}

// TestCase is one generated test case. Immutable once created.
type TestCase struct {
	ID             string    `json:"id"`
	Feature        string    `json:"feature"`
	Scenario       string    `json:"scenario"`
	Steps          []string  `json:"steps"`
	ExpectedResult string    `json:"expected_result"`
	Data           TestData  `json:"test_data"`
	GroundedIn     string    `json:"grounded_in"`
	Type           TestType  `json:"test_type"`
	Priority       string    `json:"priority"`
	Tags           []string  `json:"tags,omitempty"`
	Ungrounded     bool      `json:"ungrounded,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Request describes one generation call.
type Request struct {
	Query  string
	Markup string // page snapshot; empty skips the inventory prompt section
	TopK   int    // retrieval depth, 0 uses the configured default
}

// Result is the full outcome of one generation call: the cases, the chunks
// they were grounded on, and per-record warnings for anything dropped.
type Result struct {
	TestCases []TestCase
	Sources   []store.RetrievedChunk
	Warnings  []string
}

// Ungrounded returns how many test cases cite a source outside the
// retrieved set.
func (r *Result) Ungrounded() int {
	n := 0
	for _, tc := range r.TestCases {
		if tc.Ungrounded {
			n++
		}
	}
	return n
}

// =============================================================================
// CONFIG
// =============================================================================

// Config tunes the generation pipeline.
type Config struct {
	TopK          int     // chunks retrieved per request
	MaxTokens     int     // completion budget
	Temperature   float64 // 0 for reproducibility
	MinSimilarity float64 // similarity cutoff applied at query time
	MaxInventory  int     // locator entries serialized into the prompt
}

// DefaultConfig returns the standard generation settings.
func DefaultConfig() Config {
	return Config{
		TopK:          5,
		MaxTokens:     2000,
		Temperature:   0,
		MinSimilarity: 0,
		MaxInventory:  30,
	}
}

// =============================================================================
// ERRORS
// =============================================================================

// GenerationParseError means the model output could not be parsed as the
// required JSON array. Raw preserves the full response for diagnosis.
type GenerationParseError struct {
	Raw string
	Err error
}

func (e *GenerationParseError) Error() string {
	return fmt.Sprintf("generation output not parseable: %v", e.Err)
}

func (e *GenerationParseError) Unwrap() error { return e.Err }
