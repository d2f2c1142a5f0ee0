// Package browser drives Chrome over the DevTools protocol (chromedp) and
// implements page.Browser for the live site.
//
// Every call is bounded by the caller's context; the tab itself lives until
// Close. Locators with a Frame are resolved inside that iframe's document.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"

	"github.com/rickgao/lotwatch/internal/page"
)

var errFrameNotFound = errors.New("frame not found")

// Config controls how Chrome is started or reached.
type Config struct {
	RemoteURL     string // DevTools websocket URL of a running Chrome; empty launches one
	ExecPath      string
	Headless      bool
	UserAgent     string
	UserDataDir   string
	WindowWidth   int
	WindowHeight  int
	DisableImages bool
}

// Browser is a single Chrome tab.
type Browser struct {
	ctx    context.Context // Tab context
	cancel context.CancelFunc
	logger *slog.Logger
}

// New starts (or attaches to) Chrome and opens a tab.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Browser, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
	)
	if cfg.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, cfg.RemoteURL)
	} else {
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, allocatorOptions(cfg)...)
	}

	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(func(format string, args ...any) {
			logger.Debug("chromedp: " + fmt.Sprintf(format, args...))
		}),
	)

	// The first Run starts the browser.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	logger.Info("browser started", "remote", cfg.RemoteURL != "", "headless", cfg.Headless)
	return &Browser{
		ctx: tabCtx,
		cancel: func() {
			tabCancel()
			allocCancel()
		},
		logger: logger,
	}, nil
}

func allocatorOptions(cfg Config) []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("headless", cfg.Headless),
	}
	if cfg.WindowWidth > 0 && cfg.WindowHeight > 0 {
		opts = append(opts, chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.UserDataDir))
	}
	if cfg.DisableImages {
		opts = append(opts, chromedp.Flag("blink-settings", "imagesEnabled=false"))
	}
	return opts
}

// Close closes the tab and, when launched locally, the browser.
func (b *Browser) Close() {
	b.cancel()
}

// bounded derives a context from parent that also ends when ctx ends.
func bounded(parent, ctx context.Context) (context.Context, context.CancelFunc) {
	out, cancel := context.WithCancel(parent)
	if dl, ok := ctx.Deadline(); ok {
		var cancelDL context.CancelFunc
		out, cancelDL = context.WithDeadline(out, dl)
		prev := cancel
		cancel = func() { cancelDL(); prev() }
	}
	stop := context.AfterFunc(ctx, cancel)
	return out, func() {
		stop()
		cancel()
	}
}

func (b *Browser) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := bounded(b.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// scope returns query options restricting a lookup to frame's document.
func (b *Browser) scope(ctx context.Context, frame string) ([]chromedp.QueryOption, error) {
	if frame == "" {
		return nil, nil
	}
	var frames []*cdp.Node
	if err := b.run(ctx, chromedp.Nodes(frame, &frames, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, errFrameNotFound
	}
	return []chromedp.QueryOption{chromedp.FromNode(frames[0])}, nil
}

type match struct {
	node *cdp.Node
	text string
}

// query returns every element matching loc without waiting for any to appear.
func (b *Browser) query(ctx context.Context, loc page.Locator) ([]match, error) {
	if loc.IsZero() {
		return nil, nil
	}
	opts, err := b.scope(ctx, loc.Frame)
	if err != nil {
		return nil, err
	}
	opts = append(opts, chromedp.ByQueryAll, chromedp.AtLeast(0))

	var nodes []*cdp.Node
	if err := b.run(ctx, chromedp.Nodes(loc.CSS, &nodes, opts...)); err != nil {
		return nil, err
	}

	out := make([]match, 0, len(nodes))
	for _, n := range nodes {
		var text string
		if err := b.run(ctx, chromedp.TextContent([]cdp.NodeID{n.NodeID}, &text, chromedp.ByNodeID)); err != nil {
			// Nodes detach between polls; skip them.
			continue
		}
		text = strings.TrimSpace(text)
		if loc.Text != "" && text != loc.Text {
			continue
		}
		out = append(out, match{node: n, text: text})
	}
	return out, nil
}

func (b *Browser) pick(ctx context.Context, loc page.Locator) (match, page.Result) {
	matches, err := b.query(ctx, loc)
	if err != nil {
		if ctx.Err() != nil {
			return match{}, page.TimedOut
		}
		return match{}, page.NotFound
	}
	if loc.Index < 0 || loc.Index >= len(matches) {
		return match{}, page.NotFound
	}
	return matches[loc.Index], page.Found
}

// FindText implements page.Reader.
func (b *Browser) FindText(ctx context.Context, loc page.Locator) (string, page.Result) {
	m, res := b.pick(ctx, loc)
	return m.text, res
}

// FindMany implements page.Reader.
func (b *Browser) FindMany(ctx context.Context, loc page.Locator) []string {
	matches, err := b.query(ctx, loc)
	if err != nil {
		return nil
	}
	texts := make([]string, len(matches))
	for i, m := range matches {
		texts[i] = m.text
	}
	return texts
}

// Click implements page.Reader. Disabled elements and failed clicks are
// NotInteractable.
func (b *Browser) Click(ctx context.Context, loc page.Locator) page.Result {
	m, res := b.pick(ctx, loc)
	if res != page.Found {
		return res
	}
	if _, disabled := m.node.Attribute("disabled"); disabled {
		return page.NotInteractable
	}
	if err := b.run(ctx, chromedp.MouseClickNode(m.node)); err != nil {
		b.logger.Debug("click failed", "locator", loc.String(), "error", err)
		return page.NotInteractable
	}
	return page.Found
}

// Navigate implements page.Browser.
func (b *Browser) Navigate(ctx context.Context, url string) error {
	if err := b.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// Fill implements page.Browser.
func (b *Browser) Fill(ctx context.Context, loc page.Locator, value string) page.Result {
	m, res := b.pick(ctx, loc)
	if res != page.Found {
		return res
	}
	ids := []cdp.NodeID{m.node.NodeID}
	err := b.run(ctx,
		chromedp.SetValue(ids, "", chromedp.ByNodeID),
		chromedp.SendKeys(ids, value, chromedp.ByNodeID),
	)
	if err != nil {
		b.logger.Debug("fill failed", "locator", loc.String(), "error", err)
		return page.NotInteractable
	}
	return page.Found
}

// Source implements page.Browser.
func (b *Browser) Source(ctx context.Context, frame string) (string, error) {
	opts, err := b.scope(ctx, frame)
	if err != nil {
		return "", fmt.Errorf("resolve frame %q: %w", frame, err)
	}
	opts = append(opts, chromedp.ByQuery)

	var html string
	if err := b.run(ctx, chromedp.OuterHTML("html", &html, opts...)); err != nil {
		return "", fmt.Errorf("read source: %w", err)
	}
	return html, nil
}

var _ page.Browser = (*Browser)(nil)
