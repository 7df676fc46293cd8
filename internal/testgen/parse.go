package testgen

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// generationRecord is the wire shape of one model-produced test case.
// Required and optional fields are enumerated here and validated in
// mapRecords; nothing is trusted by shape alone.
type generationRecord struct {
	ID             string   `json:"id"`
	Feature        string   `json:"feature"`
	Scenario       string   `json:"scenario"`
	Steps          []string `json:"steps"`
	ExpectedResult string   `json:"expected_result"`
	TestData       TestData `json:"test_data"`
	GroundedIn     string   `json:"grounded_in"`
	TestType       string   `json:"test_type"`
	Priority       string   `json:"priority"`
	Tags           []string `json:"tags"`
}

// parseRecords pulls the JSON array out of raw model output and decodes it.
func parseRecords(raw string) ([]generationRecord, error) {
	payload, err := extractJSONArray(raw)
	if err != nil {
		return nil, err
	}

	var records []generationRecord
	if err := json.Unmarshal([]byte(payload), &records); err != nil {
		return nil, fmt.Errorf("decoding test-case array: %w", err)
	}
	return records, nil
}

// mapRecords validates each record and converts the survivors to TestCases.
// A record missing a required field is dropped with a warning; the batch
// succeeds partially rather than failing whole.
func mapRecords(records []generationRecord) ([]TestCase, []string) {
	cases := make([]TestCase, 0, len(records))
	var warnings []string

	now := time.Now()
	for i, rec := range records {
		var missing []string
		if rec.ID == "" {
			missing = append(missing, "id")
		}
		if len(rec.Steps) == 0 {
			missing = append(missing, "steps")
		}
		if rec.ExpectedResult == "" {
			missing = append(missing, "expected_result")
		}
		if rec.GroundedIn == "" {
			missing = append(missing, "grounded_in")
		}
		if len(missing) > 0 {
			warnings = append(warnings, fmt.Sprintf("record %d dropped: missing %s", i+1, strings.Join(missing, ", ")))
			continue
		}

		cases = append(cases, TestCase{
			ID:             rec.ID,
			Feature:        rec.Feature,
			Scenario:       rec.Scenario,
			Steps:          rec.Steps,
			ExpectedResult: rec.ExpectedResult,
			Data:           rec.TestData,
			GroundedIn:     rec.GroundedIn,
			Type:           normalizeType(rec.TestType),
			Priority:       rec.Priority,
			Tags:           rec.Tags,
			CreatedAt:      now,
		})
	}
	return cases, warnings
}

// normalizeType maps free-form test_type strings onto the known set,
// defaulting to positive.
func normalizeType(s string) TestType {
	switch TestType(strings.ToLower(strings.TrimSpace(s))) {
	case TypeNegative:
		return TypeNegative
	case TypeEdge:
		return TypeEdge
	case TypeBoundary:
		return TypeBoundary
	default:
		return TypePositive
	}
}

// extractJSONArray finds the first complete JSON array in raw model output,
// stripping a surrounding code fence first when present.
func extractJSONArray(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("empty response")
	}

	candidate := trimmed
	if strings.HasPrefix(trimmed, "```") {
		end := strings.Index(trimmed[3:], "```")
		if end != -1 {
			content := trimmed[3 : 3+end]
			// Drop the language tag line.
			if idx := strings.Index(content, "\n"); idx != -1 {
				content = content[idx+1:]
			}
			candidate = strings.TrimSpace(content)
		}
	}

	if payload, ok := findJSONArray(candidate); ok {
		return payload, nil
	}
	if payload, ok := findJSONArray(trimmed); ok {
		return payload, nil
	}
	return "", fmt.Errorf("no JSON array in response")
}

// findJSONArray scans for a balanced top-level array, tracking string and
// escape state so brackets inside values do not confuse the depth count.
func findJSONArray(input string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(input); i++ {
		ch := input[i]
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' && inString {
			escaped = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch ch {
		case '[':
			if depth == 0 {
				start = i
			}
			depth++
		case ']':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start >= 0 {
				return input[start : i+1], true
			}
		}
	}
	return "", false
}
