package testgen

import (
	"strings"
	"testing"
)

func TestExtractJSONArray(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "bare array",
			input: `[{"id": "TC-001"}]`,
			want:  `[{"id": "TC-001"}]`,
		},
		{
			name:  "fenced with language tag",
			input: "```json\n[1, 2, 3]\n```",
			want:  "[1, 2, 3]",
		},
		{
			name:  "fenced without language tag",
			input: "```\n[1]\n```",
			want:  "[1]",
		},
		{
			name:  "prose around the array",
			input: "Here are the test cases:\n[{\"id\": \"a\"}]\nLet me know if you need more.",
			want:  `[{"id": "a"}]`,
		},
		{
			name:  "nested arrays",
			input: `[{"steps": ["one", "two"], "tags": ["x"]}]`,
			want:  `[{"steps": ["one", "two"], "tags": ["x"]}]`,
		},
		{
			name:  "brackets inside string values",
			input: `[{"scenario": "enter [invalid] value", "note": "a \" quote"}]`,
			want:  `[{"scenario": "enter [invalid] value", "note": "a \" quote"}]`,
		},
		{
			name:    "no array at all",
			input:   "I cannot help with that.",
			wantErr: true,
		},
		{
			name:    "empty input",
			input:   "   \n  ",
			wantErr: true,
		},
		{
			name:    "unterminated array",
			input:   `[{"id": "TC-001"`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractJSONArray(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("extractJSONArray(%q) = %q, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("extractJSONArray(%q): %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("extractJSONArray(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseRecords_DecodeError(t *testing.T) {
	// A balanced array that is not valid JSON must fail the decode step.
	_, err := parseRecords(`[this is not json]`)
	if err == nil {
		t.Fatal("expected decode error")
	}
	if !strings.Contains(err.Error(), "decoding") {
		t.Errorf("error %q does not name the decode step", err)
	}
}

func TestNormalizeType(t *testing.T) {
	tests := []struct {
		in   string
		want TestType
	}{
		{"positive", TypePositive},
		{"negative", TypeNegative},
		{"edge", TypeEdge},
		{"boundary", TypeBoundary},
		{"NEGATIVE", TypeNegative},
		{"  edge  ", TypeEdge},
		{"smoke", TypePositive},
		{"", TypePositive},
	}
	for _, tt := range tests {
		if got := normalizeType(tt.in); got != tt.want {
			t.Errorf("normalizeType(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestMapRecords_AllRequiredFieldsEnforced(t *testing.T) {
	records := []generationRecord{
		{ID: "ok", Steps: []string{"s"}, ExpectedResult: "r", GroundedIn: "g"},
		{Steps: []string{"s"}, ExpectedResult: "r", GroundedIn: "g"},
		{ID: "no-steps", ExpectedResult: "r", GroundedIn: "g"},
		{ID: "no-result", Steps: []string{"s"}, GroundedIn: "g"},
		{ID: "no-grounding", Steps: []string{"s"}, ExpectedResult: "r"},
	}

	cases, warnings := mapRecords(records)
	if len(cases) != 1 || cases[0].ID != "ok" {
		t.Fatalf("cases=%+v, want only the complete record", cases)
	}
	if len(warnings) != 4 {
		t.Fatalf("got %d warnings, want 4: %v", len(warnings), warnings)
	}
	for i, needle := range []string{"id", "steps", "expected_result", "grounded_in"} {
		if !strings.Contains(warnings[i], needle) {
			t.Errorf("warning %d = %q, want it to name %s", i, warnings[i], needle)
		}
	}
}
