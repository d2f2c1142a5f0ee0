package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rickgao/lotwatch/internal/page"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.Site.ListingURL == "" {
		return errors.New("site.listing_url is required")
	}

	if c.Auth.Username == "" {
		return errors.New("auth.username is required")
	}
	if c.Auth.Password == "" {
		return errors.New("auth.password is required")
	}
	if c.Auth.MaxAttempts < 1 {
		return errors.New("auth.max_attempts must be >= 1")
	}

	if c.Monitor.TickInterval <= 0 {
		return errors.New("monitor.tick_interval must be > 0")
	}
	if c.Monitor.StallTicks < 1 {
		return errors.New("monitor.stall_ticks must be >= 1")
	}

	if len(c.Session.JoinCandidates) == 0 {
		return errors.New("session.join_candidates must not be empty")
	}
	for i, loc := range c.Session.JoinCandidates {
		if err := validateLocator(fmt.Sprintf("session.join_candidates[%d]", i), loc); err != nil {
			return err
		}
	}

	selectors := []struct {
		prefix string
		loc    page.Locator
	}{
		{"selectors.status", c.Selectors.Status},
		{"selectors.title", c.Selectors.Title},
		{"selectors.lot_number", c.Selectors.LotNumber},
		{"selectors.ended", c.Selectors.Ended},
	}
	for _, s := range selectors {
		if err := validateLocator(s.prefix, s.loc); err != nil {
			return err
		}
	}

	switch c.Store.Backend {
	case "postgres":
		if err := c.Database.validate("database"); err != nil {
			return err
		}
	case "redis":
		if c.Redis.Addr == "" {
			return errors.New("redis.addr is required")
		}
	case "memory":
	default:
		return fmt.Errorf("store.backend must be postgres, redis, or memory, got %q", c.Store.Backend)
	}
	if c.Store.Timeout <= 0 {
		return errors.New("store.timeout must be > 0")
	}

	if s3 := c.Diagnostics.S3; s3.Bucket != "" && s3.Region == "" {
		return errors.New("diagnostics.s3.region is required when bucket is set")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch c.Logging.Format {
	case "text", "json", "console":
	default:
		return fmt.Errorf("logging.format must be text, json, or console, got %q", c.Logging.Format)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}

func validateLocator(prefix string, loc page.Locator) error {
	if loc.CSS == "" {
		return fmt.Errorf("%s.css is required", prefix)
	}
	if loc.Index < 0 {
		return fmt.Errorf("%s.index must be >= 0", prefix)
	}
	return nil
}

// ParseLevel maps a logging.level value to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown level %q", s)
	}
}
