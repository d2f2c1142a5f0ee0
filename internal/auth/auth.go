// Package auth signs in to the auction site before monitoring starts.
//
// Attempts are retried with a quadratic backoff (attempt² × base delay).
// Exhausting the attempts is fatal for the process.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rickgao/lotwatch/internal/page"
)

// ErrExhausted means every login attempt failed.
var ErrExhausted = errors.New("authentication attempts exhausted")

// ErrRejected means the site did not show the logged-in marker after submit.
var ErrRejected = errors.New("login rejected")

// Credentials holds the account used to sign in.
type Credentials struct {
	Username string
	Password string
}

// NewCredentials validates and returns credentials.
func NewCredentials(username, password string) (Credentials, error) {
	if username == "" {
		return Credentials{}, fmt.Errorf("username is required")
	}
	if password == "" {
		return Credentials{}, fmt.Errorf("password is required")
	}
	return Credentials{Username: username, Password: password}, nil
}

// Login performs one login attempt.
type Login interface {
	Login(ctx context.Context) error
}

// LoginFunc adapts a function to Login.
type LoginFunc func(ctx context.Context) error

func (f LoginFunc) Login(ctx context.Context) error { return f(ctx) }

// Policy is the retry policy.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultPolicy returns sensible defaults.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 5, BaseDelay: 2 * time.Second}
}

// Delay returns the wait before the given retry attempt (1-based):
// attempt² × BaseDelay.
func (p Policy) Delay(attempt int) time.Duration {
	return time.Duration(attempt*attempt) * p.BaseDelay
}

// Authenticator retries a Login according to a Policy.
type Authenticator struct {
	policy Policy
	login  Login
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(policy Policy, login Login, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Authenticator{policy: policy, login: login, logger: logger, sleep: sleepCtx}
}

// Authenticate logs in, retrying failed attempts. It returns an error wrapping
// ErrExhausted after MaxAttempts failures, or the context error.
func (a *Authenticator) Authenticate(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= a.policy.MaxAttempts; attempt++ {
		err := a.login.Login(ctx)
		if err == nil {
			a.logger.Info("authenticated", "attempt", attempt)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = err

		if attempt == a.policy.MaxAttempts {
			break
		}
		delay := a.policy.Delay(attempt)
		a.logger.Warn("login failed", "attempt", attempt, "error", err, "retry_in", delay)
		if err := a.sleep(ctx, delay); err != nil {
			return err
		}
	}

	a.logger.Error("authentication failed", "attempts", a.policy.MaxAttempts, "error", lastErr)
	return fmt.Errorf("%w after %d attempts: %v", ErrExhausted, a.policy.MaxAttempts, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// FormConfig describes the login page.
type FormConfig struct {
	LoginURL      string
	LandingURL    string // Opened after signing in; optional
	UsernameField page.Locator
	PasswordField page.Locator
	Submit        page.Locator
	LoggedIn      page.Locator  // Present only once signed in
	Timeout       time.Duration // Wait for LoggedIn after submit
}

// FormLogin signs in by filling the site's login form.
type FormLogin struct {
	cfg     FormConfig
	creds   Credentials
	browser page.Browser
}

// NewFormLogin creates a FormLogin.
func NewFormLogin(cfg FormConfig, creds Credentials, browser page.Browser) *FormLogin {
	return &FormLogin{cfg: cfg, creds: creds, browser: browser}
}

// Login implements Login.
func (f *FormLogin) Login(ctx context.Context) error {
	if err := f.browser.Navigate(ctx, f.cfg.LoginURL); err != nil {
		return fmt.Errorf("navigate login page: %w", err)
	}

	// An existing session cookie skips the form.
	if page.Exists(ctx, f.browser, f.cfg.LoggedIn) {
		return f.land(ctx)
	}

	if res := f.browser.Fill(ctx, f.cfg.UsernameField, f.creds.Username); res != page.Found {
		return fmt.Errorf("fill username: %s", res)
	}
	if res := f.browser.Fill(ctx, f.cfg.PasswordField, f.creds.Password); res != page.Found {
		return fmt.Errorf("fill password: %s", res)
	}
	if res := f.browser.Click(ctx, f.cfg.Submit); res != page.Found {
		return fmt.Errorf("submit login: %s", res)
	}

	res := page.WaitUntil(ctx, func(ctx context.Context) bool {
		return page.Exists(ctx, f.browser, f.cfg.LoggedIn)
	}, f.cfg.Timeout, page.DefaultPollInterval)
	if res != page.Found {
		return ErrRejected
	}
	return f.land(ctx)
}

func (f *FormLogin) land(ctx context.Context) error {
	if f.cfg.LandingURL == "" {
		return nil
	}
	if err := f.browser.Navigate(ctx, f.cfg.LandingURL); err != nil {
		return fmt.Errorf("navigate landing page: %w", err)
	}
	return nil
}
