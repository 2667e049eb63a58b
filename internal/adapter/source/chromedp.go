package source

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"weighbridge/internal/domain"
)

// ChromeHostConfig holds configuration for one chromedp-backed agent host.
type ChromeHostConfig struct {
	// RemoteURL is the CDP WebSocket endpoint for connecting to a remote
	// browser. If empty, a local browser instance is launched.
	RemoteURL string
	// Headless controls whether a locally launched browser runs headless.
	Headless bool
	// Timeout is the per-action timeout.
	Timeout time.Duration
}

// LoadHandler is invoked after the agent finishes loading a page. This is
// the hook the navigate-resume flow hangs off: a full reload destroys the
// page's in-memory state, and the handler is the first code to run after it.
type LoadHandler func(ctx context.Context, role domain.AgentRole, location string)

// ChromeHost drives a single browser tab as a collection agent.
type ChromeHost struct {
	role    domain.AgentRole
	timeout time.Duration
	logger  *slog.Logger

	mu            sync.Mutex
	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc
	tabCtx        context.Context
	tabCancel     context.CancelFunc
	onLoad        LoadHandler
}

// NewChromeHost launches (or attaches to) a browser and binds one tab to
// the given agent role.
func NewChromeHost(role domain.AgentRole, cfg ChromeHostConfig, logger *slog.Logger) (*ChromeHost, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	h := &ChromeHost{role: role, timeout: cfg.Timeout, logger: logger}

	var allocCtx context.Context
	if cfg.RemoteURL != "" {
		allocCtx, h.allocCancel = chromedp.NewRemoteAllocator(context.Background(), cfg.RemoteURL)
		logger.Info("agent host connecting to remote browser", "role", string(role), "url", cfg.RemoteURL)
	} else {
		// Copy default options to avoid mutating the package-level slice.
		opts := make([]chromedp.ExecAllocatorOption, len(chromedp.DefaultExecAllocatorOptions))
		copy(opts, chromedp.DefaultExecAllocatorOptions[:])
		opts = append(opts,
			chromedp.Flag("headless", cfg.Headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.WindowSize(1280, 720),
		)
		allocCtx, h.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
		logger.Info("agent host launching local browser", "role", string(role), "headless", cfg.Headless)
	}

	var browserCtx context.Context
	browserCtx, h.browserCancel = chromedp.NewContext(allocCtx)
	h.tabCtx, h.tabCancel = chromedp.NewContext(browserCtx)

	// Start the browser by running an empty action. The CDP session binds
	// to the context passed to the first Run, so no timeout wrapper here;
	// guard with a goroutine instead.
	startDone := make(chan error, 1)
	go func() { startDone <- chromedp.Run(h.tabCtx) }()
	select {
	case err := <-startDone:
		if err != nil {
			h.Close()
			return nil, fmt.Errorf("start agent browser: %w", err)
		}
	case <-time.After(cfg.Timeout):
		h.Close()
		return nil, fmt.Errorf("start agent browser: timed out after %v", cfg.Timeout)
	}

	logger.Info("agent host started", "role", string(role))
	return h, nil
}

// SetLoadHandler installs the resume hook and starts forwarding the tab's
// load events to it. Must be called once, before the first navigation.
func (h *ChromeHost) SetLoadHandler(fn LoadHandler) {
	h.mu.Lock()
	h.onLoad = fn
	tabCtx := h.tabCtx
	h.mu.Unlock()

	chromedp.ListenTarget(tabCtx, func(ev any) {
		if _, ok := ev.(*page.EventLoadEventFired); !ok {
			return
		}
		// Listeners must not block the CDP event loop.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
			defer cancel()
			loc, err := h.Location(ctx)
			if err != nil {
				h.logger.Warn("load event without readable location",
					"role", string(h.role), "error", err)
				return
			}
			fn(ctx, h.role, loc)
		}()
	})
}

// Role implements AgentHost.
func (h *ChromeHost) Role() domain.AgentRole { return h.role }

// Location implements AgentHost.
func (h *ChromeHost) Location(ctx context.Context) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	tctx, cancel := context.WithTimeout(h.tabCtx, h.timeout)
	defer cancel()

	var loc string
	if err := chromedp.Run(tctx, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("agent location: %w", err)
	}
	return loc, nil
}

// Navigate implements AgentHost. The full page load this triggers destroys
// the tab's in-memory state; callers recover through the ticket store.
func (h *ChromeHost) Navigate(ctx context.Context, target string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	tctx, cancel := context.WithTimeout(h.tabCtx, h.timeout)
	defer cancel()

	return chromedp.Run(tctx, chromedp.Navigate(target))
}

// Content implements AgentHost, returning the tab's current markup.
func (h *ChromeHost) Content(ctx context.Context) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	tctx, cancel := context.WithTimeout(h.tabCtx, h.timeout)
	defer cancel()

	var html string
	if err := chromedp.Run(tctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("agent content: %w", err)
	}
	return html, nil
}

// Close shuts the browser down.
func (h *ChromeHost) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.tabCancel != nil {
		h.tabCancel()
	}
	if h.browserCancel != nil {
		h.browserCancel()
	}
	if h.allocCancel != nil {
		h.allocCancel()
	}
	h.logger.Info("agent host closed", "role", string(h.role))
	return nil
}

// Compile-time interface check.
var _ AgentHost = (*ChromeHost)(nil)
