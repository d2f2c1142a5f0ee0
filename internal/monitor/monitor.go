// Package monitor runs the whole observation lifecycle: authenticate once,
// then repeatedly join an auction session and observe it until it ends.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/lotwatch/internal/auction"
	"github.com/rickgao/lotwatch/internal/diag"
)

// Authenticator signs in before monitoring starts.
type Authenticator interface {
	Authenticate(ctx context.Context) error
}

// Transitioner moves the browser into the next auction session. It returns
// only on success or context cancellation.
type Transitioner interface {
	Transition(ctx context.Context) error
}

// Dumper captures page source. *diag.Dumper satisfies it.
type Dumper interface {
	Capture(ctx context.Context, src diag.Sourcer, frame, reason string) (string, error)
}

// Config holds monitor settings.
type Config struct {
	Machine     auction.Config
	DumpFrame   string // Frame captured when a session stalls
	MaxSessions int    // Stop after this many sessions; 0 runs until cancelled
}

// Deps are the collaborators the monitor drives.
type Deps struct {
	Auth     Authenticator
	Sessions Transitioner
	Prices   auction.StatusFeed
	Lots     auction.LotFeed
	Recorder auction.Recorder
	Page     diag.Sourcer // Dump source; optional
	Dumper   Dumper       // Optional
}

// Stats is a snapshot of monitor counters.
type Stats struct {
	Sessions       int64     `json:"sessions"`
	SessionsEnded  int64     `json:"sessions_ended"`
	SessionsStall  int64     `json:"sessions_stalled"`
	Ticks          int64     `json:"ticks"`
	Closings       int64     `json:"closings"`
	CurrentSession string    `json:"current_session,omitempty"`
	StartedAt      time.Time `json:"started_at"`
}

// Monitor is the top-level control loop.
type Monitor struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger

	sessions      atomic.Int64
	sessionsEnded atomic.Int64
	sessionsStall atomic.Int64
	ticks         atomic.Int64
	closings      atomic.Int64
	current       atomic.Value // string
	startedAt     time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan struct{}
	err    error
}

// New creates a Monitor.
func New(cfg Config, deps Deps, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Monitor{
		cfg:       cfg,
		deps:      deps,
		logger:    logger,
		done:      make(chan struct{}),
		startedAt: time.Now(),
	}
	m.current.Store("")
	return m
}

// Run authenticates and then observes sessions back to back until ctx is
// cancelled or MaxSessions is reached. Authentication exhaustion is the only
// error returned.
func (m *Monitor) Run(ctx context.Context) error {
	if err := m.deps.Auth.Authenticate(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("authenticate: %w", err)
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		if m.cfg.MaxSessions > 0 && m.sessions.Load() >= int64(m.cfg.MaxSessions) {
			m.logger.Info("session limit reached", "sessions", m.sessions.Load())
			return nil
		}

		if err := m.deps.Sessions.Transition(ctx); err != nil {
			return nil
		}

		if m.observe(ctx) == auction.ExitCanceled {
			return nil
		}
	}
}

// observe runs one session to completion.
func (m *Monitor) observe(ctx context.Context) auction.ExitReason {
	sessionID := uuid.New()
	m.sessions.Add(1)
	m.current.Store(sessionID.String())
	defer m.current.Store("")

	m.logger.Info("auction session started", "session_id", sessionID)
	machine := auction.NewMachine(m.cfg.Machine, sessionID, m.deps.Prices, m.deps.Lots, m.deps.Recorder, m.logger)

	start := time.Now()
	reason := machine.Run(ctx)

	st := machine.Stats()
	m.ticks.Add(st.Ticks)
	m.closings.Add(st.Closings)

	switch reason {
	case auction.ExitEnded:
		m.sessionsEnded.Add(1)
	case auction.ExitStalled:
		m.sessionsStall.Add(1)
		if m.deps.Dumper != nil && m.deps.Page != nil {
			m.deps.Dumper.Capture(ctx, m.deps.Page, m.cfg.DumpFrame, "stalled")
		}
	}

	m.logger.Info("auction session finished",
		"session_id", sessionID,
		"reason", reason,
		"ticks", st.Ticks,
		"closings", st.Closings,
		"lot_switches", st.LotSwitches,
		"duration", time.Since(start),
	)
	return reason
}

// Start runs the monitor in the background.
func (m *Monitor) Start(ctx context.Context) error {
	ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer close(m.done)
		m.err = m.Run(ctx)
	}()

	m.logger.Info("monitor started",
		"tick_interval", m.cfg.Machine.TickInterval,
		"stall_ticks", m.cfg.Machine.StallTicks,
	)
	return nil
}

// Done is closed when a started monitor exits.
func (m *Monitor) Done() <-chan struct{} {
	return m.done
}

// Err returns Run's result once Done is closed.
func (m *Monitor) Err() error {
	select {
	case <-m.done:
		return m.err
	default:
		return nil
	}
}

// Stop cancels a started monitor and waits for it to exit.
func (m *Monitor) Stop(ctx context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("monitor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns current counters. Safe for concurrent use.
func (m *Monitor) Stats() Stats {
	return Stats{
		Sessions:       m.sessions.Load(),
		SessionsEnded:  m.sessionsEnded.Load(),
		SessionsStall:  m.sessionsStall.Load(),
		Ticks:          m.ticks.Load(),
		Closings:       m.closings.Load(),
		CurrentSession: m.current.Load().(string),
		StartedAt:      m.startedAt,
	}
}
