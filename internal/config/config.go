package config

import (
	"time"

	"github.com/rickgao/lotwatch/internal/page"
)

// Config is the root configuration for a lotwatch instance.
type Config struct {
	Instance    InstanceConfig    `yaml:"instance"`
	Site        SiteConfig        `yaml:"site"`
	Browser     BrowserConfig     `yaml:"browser"`
	Auth        AuthConfig        `yaml:"auth"`
	Monitor     MonitorConfig     `yaml:"monitor"`
	Session     SessionConfig     `yaml:"session"`
	Selectors   SelectorsConfig   `yaml:"selectors"`
	Store       StoreConfig       `yaml:"store"`
	Database    DBConfig          `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	Events      EventsConfig      `yaml:"events"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// InstanceConfig identifies this monitor.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// SiteConfig holds the auction site URLs.
type SiteConfig struct {
	LoginURL     string `yaml:"login_url"`
	DashboardURL string `yaml:"dashboard_url"`
	ListingURL   string `yaml:"listing_url"` // Page listing joinable auctions
}

// BrowserConfig controls the Chrome instance driven by chromedp.
type BrowserConfig struct {
	RemoteURL     string `yaml:"remote_url"` // DevTools websocket URL; empty launches a local Chrome
	ExecPath      string `yaml:"exec_path"`
	Headless      bool   `yaml:"headless"`
	UserAgent     string `yaml:"user_agent"`
	UserDataDir   string `yaml:"user_data_dir"`
	WindowWidth   int    `yaml:"window_width"`
	WindowHeight  int    `yaml:"window_height"`
	DisableImages bool   `yaml:"disable_images"`
}

// AuthConfig holds credentials, the login form, and the retry policy.
type AuthConfig struct {
	Username    string        `yaml:"username"`
	Password    string        `yaml:"password"`
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"` // Delay before attempt n is n*n*base_delay
	Timeout     time.Duration `yaml:"timeout"`    // Wait for the logged-in marker

	UsernameField page.Locator `yaml:"username_field"`
	PasswordField page.Locator `yaml:"password_field"`
	Submit        page.Locator `yaml:"submit"`
	LoggedIn      page.Locator `yaml:"logged_in"`
}

// MonitorConfig holds the observation loop settings.
type MonitorConfig struct {
	TickInterval    time.Duration `yaml:"tick_interval"`
	StallTicks      int           `yaml:"stall_ticks"` // Consecutive empty ticks before the session is abandoned
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	EndProbeTimeout time.Duration `yaml:"end_probe_timeout"`
}

// SessionConfig holds the join/transition settings.
type SessionConfig struct {
	JoinTimeout    time.Duration  `yaml:"join_timeout"`
	SettleDelay    time.Duration  `yaml:"settle_delay"`
	RetryDelay     time.Duration  `yaml:"retry_delay"`
	DialogClose    page.Locator   `yaml:"dialog_close"`
	JoinCandidates []page.Locator `yaml:"join_candidates"` // Tried in order
}

// SelectorsConfig locates the auction feed elements.
type SelectorsConfig struct {
	Status    page.Locator `yaml:"status"`
	Title     page.Locator `yaml:"title"`
	LotNumber page.Locator `yaml:"lot_number"`
	Ended     page.Locator `yaml:"ended"`
}

// StoreConfig selects the result store backend.
type StoreConfig struct {
	Backend string        `yaml:"backend"` // postgres, redis, or memory
	Timeout time.Duration `yaml:"timeout"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// RedisConfig holds the Redis store connection.
type RedisConfig struct {
	Addr       string `yaml:"addr"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	PoolSize   int    `yaml:"pool_size"`
	TLSEnabled bool   `yaml:"tls_enabled"`
	KeyPrefix  string `yaml:"key_prefix"`
}

// EventsConfig holds the closing event bus settings. An empty NATSURL
// disables publishing to NATS.
type EventsConfig struct {
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// DiagnosticsConfig holds dump and exception log settings.
type DiagnosticsConfig struct {
	DumpDir       string   `yaml:"dump_dir"`
	ExceptionsLog string   `yaml:"exceptions_log"`
	S3            S3Config `yaml:"s3"`
}

// S3Config uploads page dumps to object storage when Bucket is set.
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Prefix          string `yaml:"prefix"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// ServerConfig holds the health/stats HTTP server settings.
type ServerConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json, or console
}
