package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"testforge/internal/browser"
	"testforge/internal/testgen"
)

var generateCmd = &cobra.Command{
	Use:   "generate [query...]",
	Short: "Generate grounded test cases from indexed documentation",
	Long: `Generate retrieves the documentation chunks most similar to the query,
extracts the locator inventory from the page markup, and asks the model for
test cases. Every case cites the chunk it came from; citations outside the
retrieved set are flagged as ungrounded.`,
	Args: cobra.MinimumNArgs(1),
	RunE: generateCases,
}

func init() {
	generateCmd.Flags().String("markup", "", "HTML snapshot file of the page under test")
	generateCmd.Flags().String("url", "", "Capture the page markup live instead of reading a file")
	generateCmd.Flags().IntP("top-k", "k", 0, "Chunks retrieved for grounding (0 uses config default)")
	generateCmd.Flags().StringP("out", "o", "", "Write the test cases as JSON to this file")
}

// loadMarkup resolves the page snapshot for a verb: --markup reads a file,
// --url captures the live page. Both empty returns no markup, which skips
// the locator inventory.
func loadMarkup(ctx context.Context, cmd *cobra.Command) (string, error) {
	markupPath, _ := cmd.Flags().GetString("markup")
	url, _ := cmd.Flags().GetString("url")

	if markupPath != "" && url != "" {
		return "", fmt.Errorf("--markup and --url are mutually exclusive")
	}

	if markupPath != "" {
		data, err := os.ReadFile(markupPath)
		if err != nil {
			return "", fmt.Errorf("reading markup: %w", err)
		}
		return string(data), nil
	}

	if url != "" {
		capturer := browser.NewCapturer(browserConfig())
		html, err := capturer.CaptureHTML(ctx, url)
		if err != nil {
			return "", fmt.Errorf("capturing %s: %w", url, err)
		}
		return html, nil
	}

	return "", nil
}

// browserConfig maps the loaded config onto the capture settings.
func browserConfig() browser.Config {
	return browser.Config{
		DebuggerURL:         cfg.Browser.DebuggerURL,
		Bin:                 cfg.Browser.Bin,
		Headless:            cfg.Browser.Headless,
		ViewportWidth:       cfg.Browser.ViewportWidth,
		ViewportHeight:      cfg.Browser.ViewportHeight,
		NavigationTimeoutMs: cfg.Browser.NavigationTimeoutMs,
	}
}

// generateCases runs the retrieval-grounded generation pipeline.
func generateCases(cmd *cobra.Command, args []string) error {
	ctx, cancel := opContext()
	defer cancel()

	query := strings.Join(args, " ")
	topK, _ := cmd.Flags().GetInt("top-k")
	out, _ := cmd.Flags().GetString("out")

	client, err := newClient()
	if err != nil {
		return err
	}

	ix, err := openIndex()
	if err != nil {
		return err
	}
	defer ix.Close()

	markup, err := loadMarkup(ctx, cmd)
	if err != nil {
		return err
	}

	gen, err := testgen.NewGenerator(ix, client, testgen.Config{
		TopK:          cfg.Index.DefaultTopK,
		MaxTokens:     cfg.LLM.MaxTokens,
		Temperature:   0,
		MinSimilarity: cfg.Index.MinSimilarity,
		MaxInventory:  cfg.Synth.MaxInventory,
	})
	if err != nil {
		return err
	}

	logger.Info("Generating test cases",
		zap.String("query", query),
		zap.Int("top_k", topK),
		zap.Bool("markup", markup != ""))

	result, err := gen.GenerateTestCases(ctx, testgen.Request{
		Query:  query,
		Markup: markup,
		TopK:   topK,
	})
	if err != nil {
		return err
	}

	fmt.Print(renderMarkdown(casesMarkdown(query, result)))

	for _, w := range result.Warnings {
		fmt.Println(styleWarning.Render("warning: " + w))
	}
	if n := result.Ungrounded(); n > 0 {
		fmt.Println(styleWarning.Render(fmt.Sprintf("%d case(s) cite sources outside the retrieved set", n)))
	}

	if out != "" {
		data, err := json.MarshalIndent(result.TestCases, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding test cases: %w", err)
		}
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", out, err)
		}
		fmt.Printf("%s %d cases to %s\n", styleSuccess.Render("wrote"), len(result.TestCases), out)
	}
	return nil
}

// casesMarkdown renders a generation result as a markdown report.
func casesMarkdown(query string, result *testgen.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %d test cases for %q\n\n", len(result.TestCases), query)
	fmt.Fprintf(&b, "Grounded on %d retrieved chunks.\n\n", len(result.Sources))

	for _, tc := range result.TestCases {
		fmt.Fprintf(&b, "## %s: %s\n\n", tc.ID, tc.Scenario)
		grounding := fmt.Sprintf("`%s`", tc.GroundedIn)
		if tc.Ungrounded {
			grounding += " **(not in retrieved set)**"
		}
		fmt.Fprintf(&b, "*%s, %s priority*, grounded in %s\n\n", tc.Type, tc.Priority, grounding)
		for i, step := range tc.Steps {
			fmt.Fprintf(&b, "%d. %s\n", i+1, step)
		}
		fmt.Fprintf(&b, "\n**Expected:** %s\n\n", tc.ExpectedResult)
		if tc.Data.Input != "" || tc.Data.Expected != "" {
			fmt.Fprintf(&b, "**Data:** input `%s`, expected `%s`\n\n", tc.Data.Input, tc.Data.Expected)
		}
	}
	return b.String()
}
