package synth

import (
	"context"
	"sync"

	"testforge/internal/llm"
	"testforge/internal/store"
)

// MockRetriever implements Retriever with overridable behavior.
type MockRetriever struct {
	QueryFunc func(ctx context.Context, text string, k int, filter *store.QueryFilter) ([]store.RetrievedChunk, error)
}

func (m *MockRetriever) Query(ctx context.Context, text string, k int, filter *store.QueryFilter) ([]store.RetrievedChunk, error) {
	if m.QueryFunc != nil {
		return m.QueryFunc(ctx, text, k, filter)
	}
	return []store.RetrievedChunk{}, nil
}

var _ Retriever = (*MockRetriever)(nil)

// MockClient implements llm.Client and counts calls. The counter is locked
// because batch synthesis calls Complete from several goroutines.
type MockClient struct {
	CompleteFunc func(ctx context.Context, req llm.Request) (string, error)

	mu          sync.Mutex
	Calls       int
	LastRequest llm.Request
}

func (m *MockClient) Complete(ctx context.Context, req llm.Request) (string, error) {
	m.mu.Lock()
	m.Calls++
	m.LastRequest = req
	m.mu.Unlock()
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return validScript, nil
}

func (m *MockClient) Model() string { return "mock-model" }

var _ llm.Client = (*MockClient)(nil)

// validScript is a complete rod script that parses and passes every
// structural check against checkoutMarkup.
const validScript = `package main

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

	page := browser.MustPage("http://localhost:8080/checkout")
	page.Timeout(10 * time.Second).MustWaitLoad()

	page.MustElement("#discount-code").MustInput("SAVE20")
	page.MustElement("#apply-btn").MustClick()

	total := page.MustElement("#order-total").MustText()
	if total == "$80.00" {
		fmt.Println("PASS: total reflects 20% discount")
	} else {
		fmt.Println("FAIL: total reflects 20% discount")
	}
}
`

// checkoutMarkup is the page the scripts above are validated against.
const checkoutMarkup = `<html><body>
<form id="checkout-form" action="/checkout" method="post">
  <input type="text" id="discount-code" name="discount">
  <button id="apply-btn" type="submit">Apply</button>
  <span id="order-total">$100.00</span>
</form>
</body></html>`
