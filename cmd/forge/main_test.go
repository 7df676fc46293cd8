package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"testforge/internal/config"
	"testforge/internal/testgen"
)

func TestScriptFileName(t *testing.T) {
	cases := map[string]string{
		"TC-001":      "TC-001_v3.go",
		"login/retry": "login_retry_v3.go",
		"weird id!":   "weird_id__v3.go",
		"TC_2b":       "TC_2b_v3.go",
	}
	for id, want := range cases {
		if got := scriptFileName(id, 3); got != want {
			t.Errorf("scriptFileName(%q) = %q, want %q", id, got, want)
		}
	}
}

func TestManifestRoundTrip(t *testing.T) {
	dir := t.TempDir()

	mf, err := loadManifest(dir)
	if err != nil {
		t.Fatalf("loadManifest on empty dir: %v", err)
	}
	if len(mf.Scripts) != 0 {
		t.Fatalf("expected empty manifest, got %d entries", len(mf.Scripts))
	}
	if mf.maxVersion("TC-001") != 0 {
		t.Fatal("maxVersion on empty manifest should be 0")
	}

	mf.Scripts = append(mf.Scripts,
		manifestEntry{ID: "a", TestCaseID: "TC-001", Version: 1, Status: "invalid", File: "TC-001_v1.go", CreatedAt: time.Now().UTC()},
		manifestEntry{ID: "b", TestCaseID: "TC-001", Version: 2, Status: "valid", File: "TC-001_v2.go", CreatedAt: time.Now().UTC()},
		manifestEntry{ID: "c", TestCaseID: "TC-002", Version: 1, Status: "valid", File: "TC-002_v1.go", CreatedAt: time.Now().UTC()},
	)
	if err := mf.save(dir); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	reloaded, err := loadManifest(dir)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if len(reloaded.Scripts) != 3 {
		t.Fatalf("expected 3 entries after reload, got %d", len(reloaded.Scripts))
	}
	if got := reloaded.maxVersion("TC-001"); got != 2 {
		t.Errorf("maxVersion(TC-001) = %d, want 2", got)
	}
	if got := reloaded.maxVersion("TC-002"); got != 1 {
		t.Errorf("maxVersion(TC-002) = %d, want 1", got)
	}
	if got := reloaded.maxVersion("TC-003"); got != 0 {
		t.Errorf("maxVersion(TC-003) = %d, want 0", got)
	}
}

func TestLoadCases(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cases.json")

	cases := []testgen.TestCase{
		{ID: "TC-001", Feature: "Login", Scenario: "Valid credentials"},
		{ID: "TC-002", Feature: "Login", Scenario: "Wrong password"},
	}
	data, err := json.Marshal(cases)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	all, err := loadCases(path, nil)
	if err != nil {
		t.Fatalf("loadCases: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 cases, got %d", len(all))
	}

	filtered, err := loadCases(path, []string{"TC-002"})
	if err != nil {
		t.Fatalf("loadCases with filter: %v", err)
	}
	if len(filtered) != 1 || filtered[0].ID != "TC-002" {
		t.Fatalf("filter returned wrong cases: %+v", filtered)
	}

	if _, err := loadCases(path, []string{"TC-999"}); err == nil {
		t.Fatal("expected error for unknown test case id")
	}

	emptyPath := filepath.Join(dir, "empty.json")
	if err := os.WriteFile(emptyPath, []byte("[]"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadCases(emptyPath, nil); err == nil {
		t.Fatal("expected error for empty case file")
	}
}

func TestClearRequiresYes(t *testing.T) {
	logger = zap.NewNop()

	cmd := &cobra.Command{}
	cmd.Flags().Bool("yes", false, "")

	err := clearIndex(cmd, nil)
	if err == nil {
		t.Fatal("expected refusal without --yes")
	}
	if !strings.Contains(err.Error(), "--yes") {
		t.Fatalf("error should mention --yes, got: %v", err)
	}
}

func TestListVersions(t *testing.T) {
	logger = zap.NewNop()
	dir := t.TempDir()
	cfg = config.DefaultConfig()
	cfg.Synth.OutputDir = dir

	mf := &manifest{Scripts: []manifestEntry{
		{ID: "a", TestCaseID: "TC-001", Version: 1, Status: "invalid", File: "TC-001_v1.go", CreatedAt: time.Now().UTC()},
		{ID: "b", TestCaseID: "TC-001", Version: 2, Status: "valid", File: "TC-001_v2.go", CreatedAt: time.Now().UTC()},
	}}
	if err := mf.save(dir); err != nil {
		t.Fatal(err)
	}

	output := captureOutput(t, func() {
		if err := listVersions(versionsCmd, []string{}); err != nil {
			t.Errorf("listVersions returned error: %v", err)
		}
	})

	for _, want := range []string{"TC-001", "v1", "v2", "(current)"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
	if strings.Count(output, "(current)") != 1 {
		t.Errorf("exactly one version should be current:\n%s", output)
	}

	if err := listVersions(versionsCmd, []string{"TC-404"}); err == nil {
		t.Error("expected error for unknown test case id")
	}
}

func TestCasesMarkdown(t *testing.T) {
	result := &testgen.Result{
		TestCases: []testgen.TestCase{
			{
				ID:             "TC-001",
				Scenario:       "Apply a valid discount code",
				Steps:          []string{"Open checkout", "Enter SAVE20"},
				ExpectedResult: "Total drops to $80.00",
				GroundedIn:     "pricing.md",
				Type:           testgen.TypePositive,
				Priority:       "high",
			},
			{
				ID:         "TC-002",
				Scenario:   "Phantom citation",
				GroundedIn: "nonexistent.md",
				Ungrounded: true,
			},
		},
	}

	md := casesMarkdown("discount codes", result)
	for _, want := range []string{
		"TC-001", "Apply a valid discount code", "pricing.md",
		"1. Open checkout", "Total drops to $80.00",
		"TC-002", "(not in retrieved set)",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestSimilarityBar(t *testing.T) {
	if got := similarityBar(1.5); !strings.Contains(got, "1.00") {
		t.Errorf("scores above 1 should clamp: %s", got)
	}
	if got := similarityBar(-0.2); !strings.Contains(got, "0.00") {
		t.Errorf("negative scores should clamp: %s", got)
	}
	if got := similarityBar(0.63); !strings.Contains(got, "0.63") {
		t.Errorf("score should be printed: %s", got)
	}
}

func captureOutput(t *testing.T, fn func()) string {
	t.Helper()

	origOut := os.Stdout
	rOut, wOut, _ := os.Pipe()
	os.Stdout = wOut

	done := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, rOut)
		done <- buf.String()
	}()

	fn()

	_ = wOut.Close()
	os.Stdout = origOut
	return <-done
}
