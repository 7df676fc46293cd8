package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("key-123")
	if cfg.Provider != "gemini" {
		t.Errorf("Provider=%s, want gemini", cfg.Provider)
	}
	if cfg.APIKey != "key-123" {
		t.Errorf("APIKey=%s, want key-123", cfg.APIKey)
	}
	if cfg.Timeout != 120*time.Second {
		t.Errorf("Timeout=%v, want 120s", cfg.Timeout)
	}
}

func TestNewClient_UnsupportedProvider(t *testing.T) {
	if _, err := NewClient(Config{Provider: "carrier-pigeon"}); err == nil {
		t.Error("expected error for unsupported provider")
	}
}

func TestNewGeminiClient_RequiresKey(t *testing.T) {
	if _, err := NewGeminiClient(Config{Provider: "gemini"}); err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name        string
		err         error
		wantTimeout bool
		wantUnavail bool
	}{
		{"deadline", context.DeadlineExceeded, true, false},
		{"wrapped deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), true, false},
		{"timed out text", errors.New("request timed out"), true, false},
		{"refused", errors.New("dial tcp: connection refused"), false, true},
		{"no host", errors.New("lookup api: no such host"), false, true},
		{"503", errors.New("API request failed with status 503: overloaded"), false, true},
		{"plain", errors.New("invalid argument"), false, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classify("gemini", tc.err)
			if IsTimeout(got) != tc.wantTimeout {
				t.Errorf("IsTimeout=%v, want %v (err=%v)", IsTimeout(got), tc.wantTimeout, got)
			}
			if IsUnavailable(got) != tc.wantUnavail {
				t.Errorf("IsUnavailable=%v, want %v (err=%v)", IsUnavailable(got), tc.wantUnavail, got)
			}
		})
	}
}

func TestClassify_NilPassthrough(t *testing.T) {
	if got := classify("gemini", nil); got != nil {
		t.Errorf("classify(nil)=%v, want nil", got)
	}
}

func TestProviderErrors_Unwrap(t *testing.T) {
	base := errors.New("boom")

	te := &TimeoutError{Provider: "gemini", Err: base}
	if !errors.Is(te, base) {
		t.Error("TimeoutError should unwrap to its cause")
	}
	if te.Error() == "" {
		t.Error("TimeoutError message should not be empty")
	}

	ue := &UnavailableError{Provider: "gemini", Err: base}
	if !errors.Is(ue, base) {
		t.Error("UnavailableError should unwrap to its cause")
	}
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{errors.New("rate limit exceeded (429)"), true},
		{errors.New("API request failed with status 503"), true},
		{errors.New("dial tcp: connection refused"), true},
		{errors.New("invalid request: missing field"), false},
		{nil, false},
	}
	for _, tc := range cases {
		if got := retryable(tc.err); got != tc.want {
			t.Errorf("retryable(%v)=%v, want %v", tc.err, got, tc.want)
		}
	}
}
