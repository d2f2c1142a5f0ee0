package dedup

import (
	"log/slog"

	"github.com/rickgao/lotwatch/internal/model"
)

// Guard decides whether a closing event is new within one session. It is owned
// by a single auction machine and is not safe for concurrent use.
type Guard struct {
	seen   map[model.LotKey]model.Outcome
	logger *slog.Logger

	dropped int64
}

// NewGuard creates an empty Guard.
func NewGuard(logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		seen:   make(map[model.LotKey]model.Outcome),
		logger: logger,
	}
}

// Accept returns true the first time key closes in this session.
func (g *Guard) Accept(key model.LotKey, price model.StatusToken, outcome model.Outcome) bool {
	if first, ok := g.seen[key]; ok {
		g.dropped++
		g.logger.Debug("repeat closing tick ignored",
			"lot_number", key.LotNumber,
			"title", key.Title,
			"price", price.Raw,
			"outcome", outcome,
			"first_outcome", first,
		)
		return false
	}
	g.seen[key] = outcome
	return true
}

// Seen reports whether key has already been accepted.
func (g *Guard) Seen(key model.LotKey) bool {
	_, ok := g.seen[key]
	return ok
}

// Len returns the number of accepted keys.
func (g *Guard) Len() int {
	return len(g.seen)
}

// Dropped returns how many repeat closings were rejected.
func (g *Guard) Dropped() int64 {
	return g.dropped
}
