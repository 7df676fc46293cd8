package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"testforge/internal/logging"
)

// =============================================================================
// GEMINI CLIENT
// =============================================================================

// GeminiClient implements Client for the Google Gemini API.
type GeminiClient struct {
	client      *genai.Client
	model       string
	timeout     time.Duration
	maxTokens   int
	mu          sync.Mutex
	lastRequest time.Time
}

// NewGeminiClient creates a new Gemini client.
func NewGeminiClient(cfg Config) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gemini-2.0-flash"
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2000
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client:    client,
		model:     model,
		timeout:   timeout,
		maxTokens: maxTokens,
	}, nil
}

// Complete sends a request and returns the completion text.
func (c *GeminiClient) Complete(ctx context.Context, req Request) (string, error) {
	// Apply the client timeout when the caller did not set a deadline.
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	startTime := time.Now()
	logging.LLMDebug("Gemini Complete: model=%s system_len=%d prompt_len=%d temp=%.2f",
		c.model, len(req.System), len(req.Prompt), req.Temperature)

	// Keep a minimum interval between requests.
	c.mu.Lock()
	if elapsed := time.Since(c.lastRequest); elapsed < 100*time.Millisecond {
		time.Sleep(100*time.Millisecond - elapsed)
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()

	temp := float32(req.Temperature)
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	genCfg := genai.GenerateContentConfig{
		Temperature:     &temp,
		MaxOutputTokens: int32(maxTokens),
	}
	if req.System != "" {
		system := genai.Text(req.System)
		genCfg.SystemInstruction = system[0]
	}

	// Retry transient failures with exponential backoff: 1s, 2s, 4s.
	maxRetries := 3
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				err := classify("gemini", ctx.Err())
				logging.LLMError("Gemini Complete: aborted during backoff after %v: %v", time.Since(startTime), err)
				logging.LLMCall(c.model, time.Since(startTime).Milliseconds(), false, err.Error())
				return "", err
			case <-time.After(time.Duration(1<<uint(attempt-1)) * time.Second):
			}
		}

		resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(req.Prompt), &genCfg)
		if err != nil {
			lastErr = err
			if retryable(err) && ctx.Err() == nil {
				logging.LLMDebug("Gemini Complete: attempt %d failed, retrying: %v", attempt+1, err)
				continue
			}
			classified := classify("gemini", err)
			logging.LLMError("Gemini Complete: failed after %v: %v", time.Since(startTime), classified)
			logging.LLMCall(c.model, time.Since(startTime).Milliseconds(), false, classified.Error())
			return "", classified
		}

		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
			err := fmt.Errorf("no completion returned")
			logging.LLMCall(c.model, time.Since(startTime).Milliseconds(), false, err.Error())
			return "", err
		}

		var result strings.Builder
		for _, part := range resp.Candidates[0].Content.Parts {
			result.WriteString(part.Text)
		}

		response := strings.TrimSpace(result.String())
		logging.LLM("Gemini Complete: completed in %v response_len=%d", time.Since(startTime), len(response))
		logging.LLMCall(c.model, time.Since(startTime).Milliseconds(), true, "")
		return response, nil
	}

	err := classify("gemini", fmt.Errorf("max retries exceeded: %w", lastErr))
	logging.LLMError("Gemini Complete: max retries exceeded after %v: %v", time.Since(startTime), err)
	logging.LLMCall(c.model, time.Since(startTime).Milliseconds(), false, err.Error())
	return "", err
}

// Model returns the model identifier in use.
func (c *GeminiClient) Model() string {
	return c.model
}

// Close closes the underlying client.
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
