package testgen

import (
	"fmt"
	"strings"

	"testforge/internal/locator"
	"testforge/internal/store"
)

// systemPrompt is fixed: generation must be reproducible for identical
// retrieval results.
func systemPrompt() string {
	return `You are an expert QA engineer. You write test cases STRICTLY from provided context documents.

Rules:
- Use ONLY facts stated in the context documents. Never invent features, fields, values, or behavior.
- Every test case MUST cite the context document it is based on in "grounded_in", using the document's source name exactly as given.
- When referring to page elements, use only locators listed in the page inventory.
- Cover positive, negative, edge, and boundary cases where the context supports them.
- Steps are concrete user actions, one action per step.

Return ONLY a JSON array matching the output schema, no additional text.`
}

// userPrompt lays out the retrieved context, the page inventory, the request,
// and the required output schema. Identical inputs produce identical prompts.
func userPrompt(query string, chunks []store.RetrievedChunk, inv *locator.Inventory, maxInventory int) string {
	var sb strings.Builder

	sb.WriteString("## Context Documents\n\n")
	for i, c := range chunks {
		fmt.Fprintf(&sb, "=== Document %d: %s (relevance %.2f) ===\n", i+1, c.Source, c.Similarity)
		sb.WriteString(strings.TrimSpace(c.Text))
		sb.WriteString("\n\n")
	}

	if inv != nil && !inv.Empty() {
		sb.WriteString("## Page Inventory\n\n")
		sb.WriteString(inv.Summary(maxInventory))
		sb.WriteString("\n\n")
	}

	sb.WriteString("## Request\n\n")
	sb.WriteString(strings.TrimSpace(query))
	sb.WriteString("\n\n")

	sb.WriteString("## Output Schema\n\n")
	sb.WriteString("```json\n")
	sb.WriteString(`[
  {
    "id": "TC-001",
    "feature": "short feature name",
    "scenario": "what this test case verifies",
    "steps": ["step 1", "step 2"],
    "expected_result": "observable outcome",
    "test_data": {"input": "...", "expected": "..."},
    "grounded_in": "source document name",
    "test_type": "positive|negative|edge|boundary",
    "priority": "high|medium|low",
    "tags": ["..."]
  }
]`)
	sb.WriteString("\n```\n\n")
	sb.WriteString("Return ONLY the JSON array.")

	return sb.String()
}
