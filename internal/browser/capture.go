// Package browser captures rendered page markup over a DevTools connection,
// either attaching to a running Chrome or launching a headless one.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"testforge/internal/logging"
)

// Config holds capture settings.
type Config struct {
	DebuggerURL         string `json:"debugger_url"` // attach here instead of launching
	Bin                 string `json:"bin"`          // explicit Chrome binary, empty = auto-detect
	Headless            bool   `json:"headless"`
	ViewportWidth       int    `json:"viewport_width"`
	ViewportHeight      int    `json:"viewport_height"`
	NavigationTimeoutMs int    `json:"navigation_timeout_ms"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Headless:            true,
		ViewportWidth:       1920,
		ViewportHeight:      1080,
		NavigationTimeoutMs: 30000,
	}
}

// NavigationTimeout returns the navigation timeout.
func (c Config) NavigationTimeout() time.Duration {
	if c.NavigationTimeoutMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.NavigationTimeoutMs) * time.Millisecond
}

// Capturer takes one-shot snapshots of live pages.
type Capturer struct {
	cfg Config
}

// NewCapturer creates a capturer. Zero viewport dimensions fall back to the
// defaults.
func NewCapturer(cfg Config) *Capturer {
	def := DefaultConfig()
	if cfg.ViewportWidth <= 0 {
		cfg.ViewportWidth = def.ViewportWidth
	}
	if cfg.ViewportHeight <= 0 {
		cfg.ViewportHeight = def.ViewportHeight
	}
	return &Capturer{cfg: cfg}
}

// CaptureHTML navigates a fresh page to the URL and returns the rendered
// markup once the load event fires. Each call owns its browser connection;
// when no debugger URL is configured a headless Chrome is launched and torn
// down with the call.
func (c *Capturer) CaptureHTML(ctx context.Context, url string) (string, error) {
	timer := logging.StartTimer(logging.CategoryBrowser, "CaptureHTML")
	defer timer.Stop()

	controlURL := c.cfg.DebuggerURL
	if controlURL == "" {
		launch := launcher.New().Headless(c.cfg.Headless)
		if c.cfg.Bin != "" {
			launch = launch.Bin(c.cfg.Bin)
		}
		u, err := launch.Launch()
		if err != nil {
			return "", fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return "", fmt.Errorf("connect to chrome: %w", err)
	}
	defer func() { _ = browser.Close() }()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return "", fmt.Errorf("create page: %w", err)
	}
	defer func() { _ = page.Close() }()

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             c.cfg.ViewportWidth,
		Height:            c.cfg.ViewportHeight,
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		logging.BrowserDebug("Viewport override failed: %v", err)
	}

	nav := c.cfg.NavigationTimeout()
	if err := page.Timeout(nav).Navigate(url); err != nil {
		return "", fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := page.Timeout(nav).WaitLoad(); err != nil {
		return "", fmt.Errorf("wait for load of %s: %w", url, err)
	}

	html, err := page.HTML()
	if err != nil {
		return "", fmt.Errorf("read page html: %w", err)
	}

	logging.Browser("Captured %d bytes from %s", len(html), url)
	return html, nil
}
