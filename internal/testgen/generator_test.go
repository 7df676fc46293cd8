package testgen

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"testforge/internal/llm"
	"testforge/internal/store"
)

const validResponse = "```json\n" + `[
  {
    "id": "TC-001",
    "feature": "discounts",
    "scenario": "valid code applies discount",
    "steps": ["open the product page", "enter SAVE15 in the discount field", "click Apply"],
    "expected_result": "total drops by 15%",
    "test_data": {"input": "SAVE15", "expected": "15% off"},
    "grounded_in": "product_specs.md",
    "test_type": "positive",
    "priority": "high",
    "tags": ["discount"]
  },
  {
    "id": "TC-002",
    "feature": "discounts",
    "scenario": "expired code is rejected",
    "steps": ["enter EXPIRED1", "click Apply"],
    "expected_result": "an error message is shown",
    "grounded_in": "product_specs.md",
    "test_type": "negative",
    "priority": "medium"
  }
]` + "\n```"

func newTestGenerator(t *testing.T, index Retriever, client llm.Client) *Generator {
	t.Helper()
	g, err := NewGenerator(index, client, DefaultConfig())
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	return g
}

func TestNewGenerator_RequiresDeps(t *testing.T) {
	if _, err := NewGenerator(nil, &MockClient{}, DefaultConfig()); err == nil {
		t.Error("expected error without retriever")
	}
	if _, err := NewGenerator(retrieverOf("a.md"), nil, DefaultConfig()); err == nil {
		t.Error("expected error without client")
	}
}

func TestGenerate_MapsRecords(t *testing.T) {
	client := &MockClient{
		CompleteFunc: func(_ context.Context, _ llm.Request) (string, error) {
			return validResponse, nil
		},
	}
	g := newTestGenerator(t, retrieverOf("product_specs.md"), client)

	result, err := g.GenerateTestCases(context.Background(), Request{Query: "discount codes"})
	if err != nil {
		t.Fatalf("GenerateTestCases: %v", err)
	}

	if len(result.TestCases) != 2 {
		t.Fatalf("got %d test cases, want 2", len(result.TestCases))
	}
	if len(result.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", result.Warnings)
	}
	if len(result.Sources) != 1 || result.Sources[0].Source != "product_specs.md" {
		t.Errorf("Sources=%+v, want the retrieved chunk", result.Sources)
	}

	want := TestCase{
		ID:             "TC-001",
		Feature:        "discounts",
		Scenario:       "valid code applies discount",
		Steps:          []string{"open the product page", "enter SAVE15 in the discount field", "click Apply"},
		ExpectedResult: "total drops by 15%",
		Data:           TestData{Input: "SAVE15", Expected: "15% off"},
		GroundedIn:     "product_specs.md",
		Type:           TypePositive,
		Priority:       "high",
		Tags:           []string{"discount"},
	}
	if diff := cmp.Diff(want, result.TestCases[0], cmpopts.IgnoreFields(TestCase{}, "CreatedAt")); diff != "" {
		t.Errorf("first case mismatch (-want +got):\n%s", diff)
	}
	if result.TestCases[0].CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
	if result.TestCases[1].Type != TypeNegative {
		t.Errorf("second case type=%s, want negative", result.TestCases[1].Type)
	}
}

func TestGenerate_EmptyRetrievalSkipsModel(t *testing.T) {
	client := &MockClient{}
	g := newTestGenerator(t, &MockRetriever{}, client)

	result, err := g.GenerateTestCases(context.Background(), Request{Query: "anything"})
	if err != nil {
		t.Fatalf("GenerateTestCases: %v", err)
	}
	if len(result.TestCases) != 0 {
		t.Errorf("got %d cases from empty retrieval, want 0", len(result.TestCases))
	}
	if client.Calls != 0 {
		t.Errorf("model called %d times with no context, want 0", client.Calls)
	}
}

func TestGenerate_ParseErrorPreservesRaw(t *testing.T) {
	const refusal = "I'm sorry, I can't produce structured output for that."
	client := &MockClient{
		CompleteFunc: func(_ context.Context, _ llm.Request) (string, error) {
			return refusal, nil
		},
	}
	g := newTestGenerator(t, retrieverOf("product_specs.md"), client)

	_, err := g.GenerateTestCases(context.Background(), Request{Query: "discount codes"})
	if err == nil {
		t.Fatal("expected parse error")
	}
	var pe *GenerationParseError
	if !errors.As(err, &pe) {
		t.Fatalf("error type=%T, want *GenerationParseError", err)
	}
	if pe.Raw != refusal {
		t.Errorf("Raw=%q, want the full model output", pe.Raw)
	}
}

func TestGenerate_FlagsUngroundedCitation(t *testing.T) {
	response := `[{"id": "TC-001", "steps": ["do it"], "expected_result": "works",
		"grounded_in": "elsewhere.md"}]`
	client := &MockClient{
		CompleteFunc: func(_ context.Context, _ llm.Request) (string, error) {
			return response, nil
		},
	}
	g := newTestGenerator(t, retrieverOf("product_specs.md"), client)

	result, err := g.GenerateTestCases(context.Background(), Request{Query: "q"})
	if err != nil {
		t.Fatalf("GenerateTestCases: %v", err)
	}
	if len(result.TestCases) != 1 {
		t.Fatalf("ungrounded case dropped, want retained: %+v", result)
	}
	if !result.TestCases[0].Ungrounded {
		t.Error("citation outside the retrieved set not flagged")
	}
	if result.Ungrounded() != 1 {
		t.Errorf("Ungrounded()=%d, want 1", result.Ungrounded())
	}
}

func TestGenerate_DropsIncompleteRecords(t *testing.T) {
	response := `[
		{"id": "TC-001", "steps": ["s"], "expected_result": "r", "grounded_in": "product_specs.md"},
		{"id": "TC-002", "expected_result": "r", "grounded_in": "product_specs.md"},
		{"steps": ["s"], "expected_result": "r", "grounded_in": "product_specs.md"}
	]`
	client := &MockClient{
		CompleteFunc: func(_ context.Context, _ llm.Request) (string, error) {
			return response, nil
		},
	}
	g := newTestGenerator(t, retrieverOf("product_specs.md"), client)

	result, err := g.GenerateTestCases(context.Background(), Request{Query: "q"})
	if err != nil {
		t.Fatalf("partial records must not fail the batch: %v", err)
	}
	if len(result.TestCases) != 1 {
		t.Fatalf("got %d cases, want 1 survivor", len(result.TestCases))
	}
	if len(result.Warnings) != 2 {
		t.Errorf("got %d warnings, want 2: %v", len(result.Warnings), result.Warnings)
	}
}

func TestGenerate_RetrievalErrorPropagates(t *testing.T) {
	index := &MockRetriever{
		QueryFunc: func(_ context.Context, _ string, _ int, _ *store.QueryFilter) ([]store.RetrievedChunk, error) {
			return nil, &store.RetrievalError{Op: "query", Err: fmt.Errorf("embed failed")}
		},
	}
	g := newTestGenerator(t, index, &MockClient{})

	_, err := g.GenerateTestCases(context.Background(), Request{Query: "q"})
	var re *store.RetrievalError
	if !errors.As(err, &re) {
		t.Fatalf("error type=%T, want *store.RetrievalError", err)
	}
}

func TestGenerate_ProviderErrorPropagates(t *testing.T) {
	client := &MockClient{
		CompleteFunc: func(_ context.Context, _ llm.Request) (string, error) {
			return "", &llm.TimeoutError{Provider: "gemini", Err: context.DeadlineExceeded}
		},
	}
	g := newTestGenerator(t, retrieverOf("product_specs.md"), client)

	_, err := g.GenerateTestCases(context.Background(), Request{Query: "q"})
	if !llm.IsTimeout(err) {
		t.Fatalf("timeout not surfaced verbatim: %v", err)
	}
}

func TestGenerate_PromptUsesZeroTemperature(t *testing.T) {
	client := &MockClient{}
	g := newTestGenerator(t, retrieverOf("product_specs.md"), client)

	if _, err := g.GenerateTestCases(context.Background(), Request{Query: "q"}); err != nil {
		t.Fatalf("GenerateTestCases: %v", err)
	}
	if client.LastRequest.Temperature != 0 {
		t.Errorf("Temperature=%f, want 0", client.LastRequest.Temperature)
	}
	if client.LastRequest.MaxTokens != DefaultConfig().MaxTokens {
		t.Errorf("MaxTokens=%d, want %d", client.LastRequest.MaxTokens, DefaultConfig().MaxTokens)
	}
}

func TestSearch_FiltersBySimilarity(t *testing.T) {
	index := &MockRetriever{
		QueryFunc: func(_ context.Context, _ string, _ int, _ *store.QueryFilter) ([]store.RetrievedChunk, error) {
			return []store.RetrievedChunk{
				{Chunk: store.Chunk{Text: "close", Source: "a.md"}, Similarity: 0.9},
				{Chunk: store.Chunk{Text: "far", Source: "b.md"}, Similarity: 0.4},
			}, nil
		},
	}
	g := newTestGenerator(t, index, &MockClient{})

	got, err := g.Search(context.Background(), "q", 5, 0.5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0].Source != "a.md" {
		t.Errorf("Search kept %+v, want only the close chunk", got)
	}
}
