// Package session moves the browser from a finished auction into the next
// one: open the listing, dismiss the recommendation dialog, wait for a join
// button, and click it.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/rickgao/lotwatch/internal/diag"
	"github.com/rickgao/lotwatch/internal/page"
)

// ErrJoinFailed means no join candidate could be clicked.
var ErrJoinFailed = errors.New("join failed")

// Config holds controller settings.
type Config struct {
	ListingURL     string
	JoinTimeout    time.Duration  // Wait for any candidate to appear (default: 30m)
	SettleDelay    time.Duration  // Pause after a successful join (default: 10s)
	RetryDelay     time.Duration  // Pause between failed joins (default: 30s)
	DialogClose    page.Locator   // Optional
	JoinCandidates []page.Locator // Tried in order
	DumpFrame      string         // Frame captured when a join fails
}

// DefaultConfig returns sensible defaults. ListingURL and JoinCandidates must
// be set by the caller.
func DefaultConfig() Config {
	return Config{
		JoinTimeout: 30 * time.Minute,
		SettleDelay: 10 * time.Second,
		RetryDelay:  30 * time.Second,
	}
}

// Dumper captures page source for post-mortems. *diag.Dumper satisfies it.
type Dumper interface {
	Capture(ctx context.Context, src diag.Sourcer, frame, reason string) (string, error)
}

// Controller joins auction sessions.
type Controller struct {
	cfg     Config
	browser page.Browser
	dumper  Dumper
	logger  *slog.Logger

	joins    atomic.Int64
	failures atomic.Int64
}

// NewController creates a Controller. dumper may be nil.
func NewController(cfg Config, browser page.Browser, dumper Dumper, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{cfg: cfg, browser: browser, dumper: dumper, logger: logger}
}

// Join enters the next available auction.
func (c *Controller) Join(ctx context.Context) error {
	if len(c.cfg.JoinCandidates) == 0 {
		return fmt.Errorf("%w: no join candidates configured", ErrJoinFailed)
	}

	if err := c.browser.Navigate(ctx, c.cfg.ListingURL); err != nil {
		return fmt.Errorf("%w: navigate %s: %v", ErrJoinFailed, c.cfg.ListingURL, err)
	}

	c.dismissDialog(ctx)

	res := page.WaitUntil(ctx, func(ctx context.Context) bool {
		for _, loc := range c.cfg.JoinCandidates {
			if page.Exists(ctx, c.browser, loc) {
				return true
			}
		}
		return false
	}, c.cfg.JoinTimeout, page.DefaultPollInterval)
	if res != page.Found {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fmt.Errorf("%w: no join candidate within %s", ErrJoinFailed, c.cfg.JoinTimeout)
	}

	for i, loc := range c.cfg.JoinCandidates {
		switch res := c.browser.Click(ctx, loc); res {
		case page.Found:
			c.joins.Add(1)
			c.logger.Info("joined auction", "candidate", i, "locator", loc.String())
			return sleep(ctx, c.cfg.SettleDelay)
		default:
			c.logger.Debug("join candidate unavailable", "candidate", i, "locator", loc.String(), "result", res)
		}
	}

	return fmt.Errorf("%w: all %d candidates failed", ErrJoinFailed, len(c.cfg.JoinCandidates))
}

// Transition retries Join until it succeeds or ctx is cancelled. Only context
// errors are returned.
func (c *Controller) Transition(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		err := c.Join(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.failures.Add(1)
		c.logger.Warn("navigation failure", "attempt", attempt, "error", err, "retry_in", c.cfg.RetryDelay)
		if c.dumper != nil {
			c.dumper.Capture(ctx, c.browser, c.cfg.DumpFrame, "join-failed")
		}

		if err := sleep(ctx, c.cfg.RetryDelay); err != nil {
			return err
		}
	}
}

// Stats returns successful joins and failed attempts.
func (c *Controller) Stats() (joins, failures int64) {
	return c.joins.Load(), c.failures.Load()
}

func (c *Controller) dismissDialog(ctx context.Context) {
	if c.cfg.DialogClose.IsZero() {
		return
	}
	clickCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if res := c.browser.Click(clickCtx, c.cfg.DialogClose); res != page.Found {
		c.logger.Debug("recommendation dialog not dismissed", "result", res)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
