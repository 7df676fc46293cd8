// Package synth turns grounded test cases into browser-automation scripts.
// Each synthesis run walks a fixed state machine and ends in a validation
// verdict; regeneration appends a new version instead of overwriting, so
// every prior artifact stays comparable.
package synth

import (
	"fmt"
	"time"
)

// =============================================================================
// STATE MACHINE
// =============================================================================

// Status is the lifecycle state of a script artifact.
type Status string

const (
	StatusPending           Status = "pending"
	StatusGenerating        Status = "generating"
	StatusGenerated         Status = "generated"
	StatusValidating        Status = "validating"
	StatusValid             Status = "valid"
	StatusValidWithWarnings Status = "valid_with_warnings"
	StatusInvalid           Status = "invalid"
)

// Terminal reports whether the status is a validation verdict.
func (s Status) Terminal() bool {
	switch s {
	case StatusValid, StatusValidWithWarnings, StatusInvalid:
		return true
	}
	return false
}

// =============================================================================
// ARTIFACTS
// =============================================================================

// ScriptArtifact is one synthesized script version plus its validation
// report. Immutable once its status is terminal.
type ScriptArtifact struct {
	ID           string    `json:"id"`
	TestCaseID   string    `json:"test_case_id"`
	Code         string    `json:"code"`
	Status       Status    `json:"status"`
	Errors       []string  `json:"errors,omitempty"`
	Warnings     []string  `json:"warnings,omitempty"`
	LocatorsUsed []string  `json:"locators_used,omitempty"`
	Version      int       `json:"version"`
	CreatedAt    time.Time `json:"created_at"`
}

// Validation is the outcome of the three-stage check on one piece of code.
type Validation struct {
	Status   Status
	Syntax   *SyntaxError // nil when the code parses
	Errors   []string
	Warnings []string
	Locators []string // locator literals referenced by lookup calls
}

// =============================================================================
// CONFIG
// =============================================================================

// Config tunes the synthesis pipeline.
type Config struct {
	SupportChunks int     // context chunks retrieved per synthesis
	MaxTokens     int     // completion budget
	Temperature   float64 // 0 for reproducibility
	MaxInventory  int     // locator entries serialized into the prompt
}

// DefaultConfig returns the standard synthesis settings.
func DefaultConfig() Config {
	return Config{
		SupportChunks: 3,
		MaxTokens:     3000,
		Temperature:   0,
		MaxInventory:  30,
	}
}

// =============================================================================
// ERRORS
// =============================================================================

// SyntaxError pins a parse failure in generated code to a line. It is
// recorded on the artifact, not returned from Synthesize: unparseable output
// is a verdict, not a pipeline failure.
type SyntaxError struct {
	Line   int
	Detail string
}

func (e *SyntaxError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("syntax error at line %d: %s", e.Line, e.Detail)
	}
	return fmt.Sprintf("syntax error: %s", e.Detail)
}
