package config

import (
	"time"

	"github.com/rickgao/lotwatch/internal/page"
)

// Default values for optional configuration fields.
const (
	DefaultLoginURL        = "https://www.copart.com/login/"
	DefaultDashboardURL    = "https://www.copart.com/auctionDashboard/"
	DefaultListingURL      = "https://g2auction.copart.com/g2/#/"
	DefaultWindowWidth     = 1920
	DefaultWindowHeight    = 1080
	DefaultMaxAttempts     = 5
	DefaultBaseDelay       = 2 * time.Second
	DefaultAuthTimeout     = 60 * time.Second
	DefaultTickInterval    = 500 * time.Millisecond
	DefaultStallTicks      = 600
	DefaultReadTimeout     = 2 * time.Second
	DefaultEndProbeTimeout = 15 * time.Second
	DefaultJoinTimeout     = 30 * time.Minute
	DefaultSettleDelay     = 10 * time.Second
	DefaultRetryDelay      = 30 * time.Second
	DefaultStoreBackend    = "postgres"
	DefaultStoreTimeout    = 5 * time.Second
	DefaultDBPort          = 5432
	DefaultDBSSLMode       = "prefer"
	DefaultMaxConns        = 4
	DefaultMinConns        = 1
	DefaultRedisAddr       = "localhost:6379"
	DefaultRedisPoolSize   = 4
	DefaultRedisKeyPrefix  = "lotwatch"
	DefaultEventsSubject   = "lotwatch.closings"
	DefaultDumpDir         = "dumps"
	DefaultExceptionsLog   = "exceptions.jsonl"
	DefaultS3Prefix        = "dumps/"
	DefaultServerPort      = 8080
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
)

// Auction feed selectors. The feed renders inside an iframe.
var (
	DefaultStatusLocator    = page.Locator{Frame: "iframe", CSS: "svg text"}
	DefaultTitleLocator     = page.Locator{Frame: "iframe", CSS: "div.titlelbl.ellipsis[title]"}
	DefaultLotNumberLocator = page.Locator{Frame: "iframe", CSS: "a.titlelbl.ellipsis[href*='/lot/']"}
	DefaultEndedLocator     = page.Locator{Frame: "iframe", CSS: "div.sale-end", Text: "Auction Ended"}
	DefaultDialogClose      = page.Locator{Frame: "#iAuction5", CSS: "button.p-dialog-header-close"}
	DefaultJoinCandidates   = []page.Locator{
		{Frame: "#iAuction5", CSS: "button.bid", Index: 0},
		{Frame: "#iAuction5", CSS: "button.bid", Index: 1},
	}
)

// Login form selectors.
var (
	DefaultUsernameField = page.Locator{CSS: "input#username"}
	DefaultPasswordField = page.Locator{CSS: "input#password"}
	DefaultSubmit        = page.Locator{CSS: "button[type='submit']"}
	DefaultLoggedIn      = page.Locator{CSS: "a[data-uname='homePageSignOut'], .member-name"}
)

func (c *Config) applyDefaults() {
	// Site defaults
	if c.Site.LoginURL == "" {
		c.Site.LoginURL = DefaultLoginURL
	}
	if c.Site.DashboardURL == "" {
		c.Site.DashboardURL = DefaultDashboardURL
	}
	if c.Site.ListingURL == "" {
		c.Site.ListingURL = DefaultListingURL
	}

	// Browser defaults
	if c.Browser.WindowWidth == 0 {
		c.Browser.WindowWidth = DefaultWindowWidth
	}
	if c.Browser.WindowHeight == 0 {
		c.Browser.WindowHeight = DefaultWindowHeight
	}

	// Auth defaults
	if c.Auth.MaxAttempts == 0 {
		c.Auth.MaxAttempts = DefaultMaxAttempts
	}
	if c.Auth.BaseDelay == 0 {
		c.Auth.BaseDelay = DefaultBaseDelay
	}
	if c.Auth.Timeout == 0 {
		c.Auth.Timeout = DefaultAuthTimeout
	}
	defaultLocator(&c.Auth.UsernameField, DefaultUsernameField)
	defaultLocator(&c.Auth.PasswordField, DefaultPasswordField)
	defaultLocator(&c.Auth.Submit, DefaultSubmit)
	defaultLocator(&c.Auth.LoggedIn, DefaultLoggedIn)

	// Monitor defaults
	if c.Monitor.TickInterval == 0 {
		c.Monitor.TickInterval = DefaultTickInterval
	}
	if c.Monitor.StallTicks == 0 {
		c.Monitor.StallTicks = DefaultStallTicks
	}
	if c.Monitor.ReadTimeout == 0 {
		c.Monitor.ReadTimeout = DefaultReadTimeout
	}
	if c.Monitor.EndProbeTimeout == 0 {
		c.Monitor.EndProbeTimeout = DefaultEndProbeTimeout
	}

	// Session defaults
	if c.Session.JoinTimeout == 0 {
		c.Session.JoinTimeout = DefaultJoinTimeout
	}
	if c.Session.SettleDelay == 0 {
		c.Session.SettleDelay = DefaultSettleDelay
	}
	if c.Session.RetryDelay == 0 {
		c.Session.RetryDelay = DefaultRetryDelay
	}
	defaultLocator(&c.Session.DialogClose, DefaultDialogClose)
	if len(c.Session.JoinCandidates) == 0 {
		c.Session.JoinCandidates = append([]page.Locator(nil), DefaultJoinCandidates...)
	}

	// Selector defaults
	defaultLocator(&c.Selectors.Status, DefaultStatusLocator)
	defaultLocator(&c.Selectors.Title, DefaultTitleLocator)
	defaultLocator(&c.Selectors.LotNumber, DefaultLotNumberLocator)
	defaultLocator(&c.Selectors.Ended, DefaultEndedLocator)

	// Store defaults
	if c.Store.Backend == "" {
		c.Store.Backend = DefaultStoreBackend
	}
	if c.Store.Timeout == 0 {
		c.Store.Timeout = DefaultStoreTimeout
	}

	applyDBDefaults(&c.Database)

	// Redis defaults
	if c.Redis.Addr == "" {
		c.Redis.Addr = DefaultRedisAddr
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = DefaultRedisPoolSize
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}

	// Events defaults
	if c.Events.Subject == "" {
		c.Events.Subject = DefaultEventsSubject
	}

	// Diagnostics defaults
	if c.Diagnostics.DumpDir == "" {
		c.Diagnostics.DumpDir = DefaultDumpDir
	}
	if c.Diagnostics.ExceptionsLog == "" {
		c.Diagnostics.ExceptionsLog = DefaultExceptionsLog
	}
	if c.Diagnostics.S3.Prefix == "" {
		c.Diagnostics.S3.Prefix = DefaultS3Prefix
	}

	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}

func defaultLocator(loc *page.Locator, def page.Locator) {
	if loc.IsZero() {
		*loc = def
	}
}
