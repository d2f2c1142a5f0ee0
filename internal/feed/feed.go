// Package feed reads the auction feed: the status token and the identity of
// the lot on the block.
//
// Every read is bounded by a short timeout. Missing or stale elements come back
// as model.Absent or "not found"; nothing here returns an error.
package feed

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/rickgao/lotwatch/internal/model"
	"github.com/rickgao/lotwatch/internal/page"
)

// Selectors locate the feed elements.
type Selectors struct {
	Status    page.Locator // Every text node that may carry the status token
	Title     page.Locator
	LotNumber page.Locator
	Ended     page.Locator // Explicit session-ended marker
}

// Config holds reader timeouts.
type Config struct {
	ReadTimeout     time.Duration // Per read (default: 2s)
	EndProbeTimeout time.Duration // How long to wait for the ended marker (default: 15s)
	EndProbeEvery   time.Duration // Poll interval while probing (default: 500ms)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ReadTimeout:     2 * time.Second,
		EndProbeTimeout: 15 * time.Second,
		EndProbeEvery:   500 * time.Millisecond,
	}
}

// PriceFeed reads the status token.
type PriceFeed struct {
	cfg    Config
	sel    Selectors
	reader page.Reader
	logger *slog.Logger
}

// NewPriceFeed creates a PriceFeed.
func NewPriceFeed(cfg Config, sel Selectors, reader page.Reader, logger *slog.Logger) *PriceFeed {
	if logger == nil {
		logger = slog.Default()
	}
	return &PriceFeed{cfg: cfg, sel: sel, reader: reader, logger: logger}
}

// ReadStatus returns the first price or closing keyword under the status
// locator. Text that is neither comes back as TokenUnrecognized, and Absent
// means no status text was rendered at all.
func (f *PriceFeed) ReadStatus(ctx context.Context) model.StatusToken {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.ReadTimeout)
	defer cancel()

	other := model.Absent
	for _, text := range f.reader.FindMany(ctx, f.sel.Status) {
		tok := model.ParseStatusToken(text)
		switch tok.Kind {
		case model.TokenAbsent:
		case model.TokenUnrecognized:
			if other.Kind == model.TokenAbsent {
				other = tok
			}
		default:
			return tok
		}
	}
	return other
}

// SessionEnded probes for the ended marker, waiting up to EndProbeTimeout.
func (f *PriceFeed) SessionEnded(ctx context.Context) bool {
	if f.sel.Ended.IsZero() {
		return false
	}
	res := page.WaitUntil(ctx, func(ctx context.Context) bool {
		readCtx, cancel := context.WithTimeout(ctx, f.cfg.ReadTimeout)
		defer cancel()
		return page.Exists(readCtx, f.reader, f.sel.Ended)
	}, f.cfg.EndProbeTimeout, f.cfg.EndProbeEvery)

	if res != page.Found {
		return false
	}
	f.logger.Debug("session ended marker present", "locator", f.sel.Ended.String())
	return true
}

// LotIdentifier reads the current lot's title and lot number.
type LotIdentifier struct {
	cfg    Config
	sel    Selectors
	reader page.Reader
}

// NewLotIdentifier creates a LotIdentifier.
func NewLotIdentifier(cfg Config, sel Selectors, reader page.Reader) *LotIdentifier {
	return &LotIdentifier{cfg: cfg, sel: sel, reader: reader}
}

// ReadLotIdentity returns the lot on the block. ok is false if either part is
// missing or still empty while the element renders.
func (l *LotIdentifier) ReadLotIdentity(ctx context.Context) (key model.LotKey, ok bool) {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.ReadTimeout)
	defer cancel()

	lotNumber, res := l.reader.FindText(ctx, l.sel.LotNumber)
	if res != page.Found || strings.TrimSpace(lotNumber) == "" {
		return model.LotKey{}, false
	}
	title, res := l.reader.FindText(ctx, l.sel.Title)
	if res != page.Found || strings.TrimSpace(title) == "" {
		return model.LotKey{}, false
	}
	return model.LotKey{Title: strings.TrimSpace(title), LotNumber: strings.TrimSpace(lotNumber)}, true
}

// Observe reads status and identity together.
func Observe(ctx context.Context, prices *PriceFeed, lots *LotIdentifier) model.LotObservation {
	status := prices.ReadStatus(ctx)
	key, ok := lots.ReadLotIdentity(ctx)
	return model.LotObservation{Key: key, KeyFound: ok, Status: status}
}
