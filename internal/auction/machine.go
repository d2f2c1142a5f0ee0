package auction

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/rickgao/lotwatch/internal/dedup"
	"github.com/rickgao/lotwatch/internal/model"
	"github.com/rickgao/lotwatch/internal/store"
)

// State is the machine state.
type State int

const (
	StateActive State = iota
	StateEnded        // Terminal
)

func (s State) String() string {
	if s == StateEnded {
		return "ended"
	}
	return "active"
}

// ExitReason explains why Run returned.
type ExitReason int

const (
	ExitEnded    ExitReason = iota // Ended marker observed
	ExitStalled                    // Nothing readable for StallTicks consecutive ticks
	ExitCanceled                   // Context cancelled
)

func (r ExitReason) String() string {
	switch r {
	case ExitEnded:
		return "ended"
	case ExitStalled:
		return "stalled"
	default:
		return "canceled"
	}
}

// StatusFeed reads the status token and probes for the session end.
type StatusFeed interface {
	ReadStatus(ctx context.Context) model.StatusToken
	SessionEnded(ctx context.Context) bool
}

// LotFeed reads the lot on the block.
type LotFeed interface {
	ReadLotIdentity(ctx context.Context) (model.LotKey, bool)
}

// Recorder persists accepted closing events.
type Recorder interface {
	Record(ctx context.Context, ev model.ClosingEvent) (store.Result, error)
}

// Config holds loop settings.
type Config struct {
	TickInterval time.Duration // Pace of Run (default: 500ms)
	StallTicks   int           // 0 disables stall detection
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		TickInterval: 500 * time.Millisecond,
		StallTicks:   600,
	}
}

// SessionState is the mutable state of one session.
type SessionState struct {
	LastLot   model.LotKey
	LastPrice model.StatusToken // model.Absent until a price is seen for LastLot
	Settled   bool              // A non-closing status was seen while LastLot was shown
	Seen      *dedup.Guard
}

// Stats counts machine activity.
type Stats struct {
	Ticks       int64
	Closings    int64 // Closing events passed to the recorder
	LotSwitches int64
	EmptyTicks  int64 // Current run of ticks with no status and no lot
}

// Machine observes one auction session.
type Machine struct {
	cfg       Config
	sessionID uuid.UUID
	prices    StatusFeed
	lots      LotFeed
	recorder  Recorder
	logger    *slog.Logger

	state   State
	session SessionState
	stats   Stats
}

// NewMachine creates a Machine for a fresh session.
func NewMachine(cfg Config, sessionID uuid.UUID, prices StatusFeed, lots LotFeed, recorder Recorder, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultConfig().TickInterval
	}
	logger = logger.With("session_id", sessionID)
	return &Machine{
		cfg:       cfg,
		sessionID: sessionID,
		prices:    prices,
		lots:      lots,
		recorder:  recorder,
		logger:    logger,
		session: SessionState{
			LastPrice: model.Absent,
			Seen:      dedup.NewGuard(logger),
		},
	}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Session returns a copy of the session state.
func (m *Machine) Session() SessionState { return m.session }

// Stats returns activity counters.
func (m *Machine) Stats() Stats { return m.stats }

// Tick performs one observation. Once ended, Tick does nothing.
func (m *Machine) Tick(ctx context.Context) State {
	if m.state == StateEnded {
		return StateEnded
	}
	m.stats.Ticks++

	status := m.prices.ReadStatus(ctx)
	if status.Kind == model.TokenAbsent && m.prices.SessionEnded(ctx) {
		m.state = StateEnded
		m.logger.Info("auction session ended",
			"ticks", m.stats.Ticks,
			"closings", m.stats.Closings,
		)
		return StateEnded
	}

	key, found := m.lots.ReadLotIdentity(ctx)
	found = found && key.Complete()
	if found && key != m.session.LastLot {
		if !m.session.LastLot.IsZero() {
			m.stats.LotSwitches++
			m.logger.Debug("lot switched, discarding price",
				"from", m.session.LastLot.String(),
				"to", key.String(),
				"discarded_price", m.session.LastPrice.Raw,
			)
		}
		m.session.LastLot = key
		m.session.LastPrice = model.Absent
		m.session.Settled = false
	}

	if status.Kind == model.TokenAbsent && !found {
		m.stats.EmptyTicks++
	} else {
		m.stats.EmptyTicks = 0
	}

	switch {
	case status.IsClosing():
		if !found {
			// The token stays up for several polls; a later tick will see the lot.
			m.logger.Debug("closing token without lot identity", "token", status.Raw)
			break
		}
		if !m.session.Settled {
			// The previous lot's result can outlive the switch to the next lot.
			m.logger.Debug("closing token before lot settled",
				"lot", m.session.LastLot.String(),
				"token", status.Raw,
			)
			break
		}
		m.close(ctx, status)

	case status.Kind == model.TokenPrice:
		m.session.LastPrice = status
	}

	if found && !status.IsClosing() {
		m.session.Settled = true
	}

	return m.state
}

func (m *Machine) close(ctx context.Context, status model.StatusToken) {
	outcome, _ := status.Outcome()
	lot, price := m.session.LastLot, m.session.LastPrice

	if !m.session.Seen.Accept(lot, price, outcome) {
		return
	}
	m.stats.Closings++

	// Errors are logged by the recorder and the event is dropped.
	m.recorder.Record(ctx, model.ClosingEvent{
		SessionID: m.sessionID,
		Key:       lot,
		Price:     price,
		Outcome:   outcome,
	})
}

// Run ticks at TickInterval until the session ends, stalls, or ctx is
// cancelled.
func (m *Machine) Run(ctx context.Context) ExitReason {
	limiter := rate.NewLimiter(rate.Every(m.cfg.TickInterval), 1)

	for {
		if err := limiter.Wait(ctx); err != nil {
			return ExitCanceled
		}
		if m.Tick(ctx) == StateEnded {
			return ExitEnded
		}
		if ctx.Err() != nil {
			return ExitCanceled
		}
		if m.cfg.StallTicks > 0 && m.stats.EmptyTicks >= int64(m.cfg.StallTicks) {
			m.logger.Warn("auction feed stalled",
				"empty_ticks", m.stats.EmptyTicks,
				"last_lot", m.session.LastLot.String(),
			)
			return ExitStalled
		}
	}
}
