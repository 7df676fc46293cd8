package synth

import (
	"fmt"
	"strings"

	"testforge/internal/locator"
	"testforge/internal/store"
	"testforge/internal/testgen"
)

// systemPrompt is fixed so the same test case and markup always produce the
// same request.
func systemPrompt() string {
	return `You are an expert browser automation engineer. You translate test cases into standalone Go scripts using the rod library.

Rules:
- Use ONLY locators listed in the locator inventory. Never invent selectors.
- Wait explicitly before every interaction: the page must be loaded and the element visible.
- Translate every clause of the expected result into an assertion that prints "PASS: <check>" or "FAIL: <check>".
- One step in the test case becomes one block of interaction code, in order.
- Follow the required structure exactly. Do not add flags, environment lookups, or helper packages.

Return ONLY Go code, no explanations.`
}

// userPrompt lays out the test case, the locator inventory, optional
// supporting context, and the script skeleton the output must follow.
func userPrompt(tc testgen.TestCase, chunks []store.RetrievedChunk, inv *locator.Inventory, maxInventory int) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "## Test Case %s: %s\n\n", tc.ID, tc.Feature)
	sb.WriteString(strings.TrimSpace(tc.Scenario))
	sb.WriteString("\n\n")

	sb.WriteString("## Steps\n\n")
	for i, step := range tc.Steps {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, step)
	}
	sb.WriteString("\n")

	sb.WriteString("## Expected Result\n\n")
	sb.WriteString(strings.TrimSpace(tc.ExpectedResult))
	sb.WriteString("\n\n")

	if tc.Data.Input != "" || tc.Data.Expected != "" {
		sb.WriteString("## Test Data\n\n")
		if tc.Data.Input != "" {
			fmt.Fprintf(&sb, "Input: %s\n", tc.Data.Input)
		}
		if tc.Data.Expected != "" {
			fmt.Fprintf(&sb, "Expected: %s\n", tc.Data.Expected)
		}
		sb.WriteString("\n")
	}

	if inv != nil && !inv.Empty() {
		sb.WriteString("## Locator Inventory\n\n")
		sb.WriteString(inv.Summary(maxInventory))
		sb.WriteString("\n\n")
	}

	if len(chunks) > 0 {
		sb.WriteString("## Supporting Context\n\n")
		for i, c := range chunks {
			fmt.Fprintf(&sb, "=== Document %d: %s (relevance %.2f) ===\n", i+1, c.Source, c.Similarity)
			sb.WriteString(strings.TrimSpace(c.Text))
			sb.WriteString("\n\n")
		}
	}

	sb.WriteString("## Required Structure\n\n")
	sb.WriteString("```go\n")
	sb.WriteString(`package main

import (
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

func main() {
	u := launcher.New().Headless(true).MustLaunch()
	browser := rod.New().ControlURL(u).MustConnect()
	defer browser.MustClose()

	page := browser.MustPage("TARGET_URL")
	page.Timeout(10 * time.Second).MustWaitLoad()

	// Interactions, one block per step, inventory locators only:
	// page.MustElement("#field-id").MustInput("value")
	// page.MustElementR("button", "Visible Text").MustClick()

	// One assertion per expected-result clause:
	// if got == want { fmt.Println("PASS: <check>") } else { fmt.Println("FAIL: <check>") }
}`)
	sb.WriteString("\n```\n\n")
	sb.WriteString("Return ONLY the Go code.")

	return sb.String()
}
