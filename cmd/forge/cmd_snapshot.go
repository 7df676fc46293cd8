package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"testforge/internal/browser"
	"testforge/internal/locator"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot [url]",
	Short: "Capture the rendered HTML of a page",
	Long: `Snapshot navigates a headless browser to the URL, waits for the page to
load, and emits the rendered HTML. The snapshot is the markup that generate
and synthesize ground their locators in.`,
	Args: cobra.ExactArgs(1),
	RunE: captureSnapshot,
}

func init() {
	snapshotCmd.Flags().StringP("out", "o", "", "Write the HTML to this file instead of stdout")
	snapshotCmd.Flags().Bool("inventory", false, "Print the extracted locator inventory instead of raw HTML")
}

// captureSnapshot fetches one page snapshot.
func captureSnapshot(cmd *cobra.Command, args []string) error {
	ctx, cancel := opContext()
	defer cancel()

	url := args[0]
	out, _ := cmd.Flags().GetString("out")
	showInventory, _ := cmd.Flags().GetBool("inventory")

	logger.Info("Capturing snapshot", zap.String("url", url))

	capturer := browser.NewCapturer(browserConfig())
	html, err := capturer.CaptureHTML(ctx, url)
	if err != nil {
		return err
	}

	if showInventory {
		inv := locator.Extract(html)
		if inv.Empty() {
			fmt.Println(styleMuted.Render("no interactive elements found"))
			return nil
		}
		fmt.Printf("%s (%d entries)\n\n", styleTitle.Render("Locator inventory"), inv.Count())
		fmt.Println(inv.Summary(0))
		return nil
	}

	if out != "" {
		if err := os.WriteFile(out, []byte(html), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", out, err)
		}
		fmt.Printf("%s %d bytes to %s\n", styleSuccess.Render("wrote"), len(html), out)
		return nil
	}

	fmt.Print(html)
	return nil
}
