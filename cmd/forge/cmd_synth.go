package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"testforge/internal/synth"
	"testforge/internal/testgen"
)

var synthesizeCmd = &cobra.Command{
	Use:   "synthesize",
	Short: "Synthesize rod browser scripts from generated test cases",
	Long: `Synthesize turns test cases into runnable rod scripts. Each script is
validated (syntax, structure, locator coverage) and written next to a
manifest that tracks every version ever produced for a test case. Invalid
scripts are kept too; their validation verdict is part of the record.`,
	RunE: synthesizeScripts,
}

var versionsCmd = &cobra.Command{
	Use:   "versions [test-case-id]",
	Short: "List synthesized script versions from the output manifest",
	Args:  cobra.MaximumNArgs(1),
	RunE:  listVersions,
}

func init() {
	synthesizeCmd.Flags().String("cases", "", "JSON file of test cases (from forge generate -o)")
	synthesizeCmd.Flags().StringSlice("id", nil, "Only synthesize these test case IDs")
	synthesizeCmd.Flags().String("markup", "", "HTML snapshot file of the page under test")
	synthesizeCmd.Flags().String("url", "", "Capture the page markup live instead of reading a file")
	synthesizeCmd.Flags().StringP("out", "o", "", "Script output directory (default from config)")
	synthesizeCmd.Flags().Int("limit", 2, "Concurrent synthesis calls (0 = unbounded)")
	_ = synthesizeCmd.MarkFlagRequired("cases")

	versionsCmd.Flags().StringP("out", "o", "", "Script output directory (default from config)")
}

// =============================================================================
// MANIFEST
// =============================================================================

const manifestName = "manifest.json"

// manifestEntry records one script version on disk. Versions survive across
// runs: a new run for a known test case continues its version sequence.
type manifestEntry struct {
	ID         string    `json:"id"`
	TestCaseID string    `json:"test_case_id"`
	Version    int       `json:"version"`
	Status     string    `json:"status"`
	File       string    `json:"file"`
	Errors     []string  `json:"errors,omitempty"`
	Warnings   []string  `json:"warnings,omitempty"`
	Locators   []string  `json:"locators,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type manifest struct {
	UpdatedAt time.Time       `json:"updated_at"`
	Scripts   []manifestEntry `json:"scripts"`
}

// loadManifest reads the manifest from dir. A missing manifest is empty.
func loadManifest(dir string) (*manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestName))
	if err != nil {
		if os.IsNotExist(err) {
			return &manifest{}, nil
		}
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	return &m, nil
}

func (m *manifest) save(dir string) error {
	m.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, manifestName), data, 0o644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

// maxVersion returns the highest recorded version for a test case, 0 when
// none exists.
func (m *manifest) maxVersion(testCaseID string) int {
	max := 0
	for _, e := range m.Scripts {
		if e.TestCaseID == testCaseID && e.Version > max {
			max = e.Version
		}
	}
	return max
}

// scriptFileName builds the on-disk name for one script version.
func scriptFileName(testCaseID string, version int) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, testCaseID)
	return fmt.Sprintf("%s_v%d.go", safe, version)
}

// =============================================================================
// SYNTHESIZE
// =============================================================================

// synthesizeScripts runs batch synthesis and persists scripts plus manifest.
func synthesizeScripts(cmd *cobra.Command, args []string) error {
	ctx, cancel := opContext()
	defer cancel()

	casesPath, _ := cmd.Flags().GetString("cases")
	ids, _ := cmd.Flags().GetStringSlice("id")
	outDir, _ := cmd.Flags().GetString("out")
	limit, _ := cmd.Flags().GetInt("limit")
	if outDir == "" {
		outDir = cfg.Synth.OutputDir
	}

	cases, err := loadCases(casesPath, ids)
	if err != nil {
		return err
	}

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

	syn, err := synth.NewSynthesizer(ix, client, synth.Config{
		SupportChunks: cfg.Synth.SupportChunks,
		MaxTokens:     cfg.Synth.MaxTokens,
		Temperature:   0,
		MaxInventory:  cfg.Synth.MaxInventory,
	})
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	mf, err := loadManifest(outDir)
	if err != nil {
		return err
	}

	logger.Info("Synthesizing scripts",
		zap.Int("cases", len(cases)),
		zap.Int("limit", limit),
		zap.String("out", outDir))

	artifacts, err := syn.SynthesizeBatch(ctx, cases, markup, limit)
	if err != nil {
		return err
	}

	// The in-process sequence restarts at 1 each run; the pre-run manifest
	// carries the offset from previous runs.
	offsets := make(map[string]int)
	for _, a := range artifacts {
		if _, ok := offsets[a.TestCaseID]; !ok {
			offsets[a.TestCaseID] = mf.maxVersion(a.TestCaseID)
		}
	}

	valid, invalid := 0, 0
	for _, a := range artifacts {
		version := offsets[a.TestCaseID] + a.Version
		name := scriptFileName(a.TestCaseID, version)
		if err := os.WriteFile(filepath.Join(outDir, name), []byte(a.Code), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
		mf.Scripts = append(mf.Scripts, manifestEntry{
			ID:         a.ID,
			TestCaseID: a.TestCaseID,
			Version:    version,
			Status:     string(a.Status),
			File:       name,
			Errors:     a.Errors,
			Warnings:   a.Warnings,
			Locators:   a.LocatorsUsed,
			CreatedAt:  a.CreatedAt,
		})

		detail := ""
		if n := len(a.Errors); n > 0 {
			detail = styleError.Render(fmt.Sprintf("%d error(s)", n))
		} else if n := len(a.Warnings); n > 0 {
			detail = styleWarning.Render(fmt.Sprintf("%d warning(s)", n))
		}
		fmt.Printf("%-12s v%-3d %-22s %s  %s\n",
			a.TestCaseID, version, statusBadge(a.Status), filepath.Join(outDir, name), detail)

		if a.Status == synth.StatusInvalid {
			invalid++
		} else {
			valid++
		}
	}

	if err := mf.save(outDir); err != nil {
		return err
	}

	fmt.Printf("\n%d script(s) written to %s", len(artifacts), outDir)
	if invalid > 0 {
		fmt.Printf(" (%s)", styleWarning.Render(fmt.Sprintf("%d failed validation", invalid)))
	}
	fmt.Println()
	return nil
}

// loadCases reads a generated case file and applies the --id filter.
func loadCases(path string, ids []string) ([]testgen.TestCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading cases: %w", err)
	}
	var cases []testgen.TestCase
	if err := json.Unmarshal(data, &cases); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(cases) == 0 {
		return nil, fmt.Errorf("%s contains no test cases", path)
	}
	if len(ids) == 0 {
		return cases, nil
	}

	byID := make(map[string]testgen.TestCase, len(cases))
	for _, tc := range cases {
		byID[tc.ID] = tc
	}
	selected := make([]testgen.TestCase, 0, len(ids))
	for _, id := range ids {
		tc, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("test case %s not found in %s", id, path)
		}
		selected = append(selected, tc)
	}
	return selected, nil
}

// =============================================================================
// VERSIONS
// =============================================================================

// listVersions renders the manifest grouped by test case.
func listVersions(cmd *cobra.Command, args []string) error {
	outDir, _ := cmd.Flags().GetString("out")
	if outDir == "" {
		outDir = cfg.Synth.OutputDir
	}

	mf, err := loadManifest(outDir)
	if err != nil {
		return err
	}
	if len(mf.Scripts) == 0 {
		fmt.Println(styleMuted.Render("no synthesized scripts in " + outDir))
		return nil
	}

	byCase := make(map[string][]manifestEntry)
	for _, e := range mf.Scripts {
		byCase[e.TestCaseID] = append(byCase[e.TestCaseID], e)
	}

	var testCaseIDs []string
	if len(args) == 1 {
		if _, ok := byCase[args[0]]; !ok {
			return fmt.Errorf("test case %s has no synthesized scripts", args[0])
		}
		testCaseIDs = args
	} else {
		for id := range byCase {
			testCaseIDs = append(testCaseIDs, id)
		}
		sort.Strings(testCaseIDs)
	}

	for _, id := range testCaseIDs {
		entries := byCase[id]
		sort.Slice(entries, func(i, j int) bool { return entries[i].Version < entries[j].Version })

		fmt.Println(styleTitle.Render(id))
		for i, e := range entries {
			marker := ""
			if i == len(entries)-1 {
				marker = styleInfo.Render("  (current)")
			}
			fmt.Printf("  v%-3d %-22s %-24s %s%s\n",
				e.Version, statusBadge(synth.Status(e.Status)), e.File,
				styleMuted.Render(e.CreatedAt.Local().Format(time.DateTime)), marker)
		}
		fmt.Println()
	}
	return nil
}
