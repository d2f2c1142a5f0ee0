package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rickgao/lotwatch/internal/auction"
	"github.com/rickgao/lotwatch/internal/auth"
	"github.com/rickgao/lotwatch/internal/diag"
	"github.com/rickgao/lotwatch/internal/model"
	"github.com/rickgao/lotwatch/internal/store/memory"
	"github.com/rickgao/lotwatch/internal/writer"
)

type tick struct {
	status string
	lot    model.LotKey
	ended  bool
}

// sessionFeed plays one script per session; Transition loads the next one.
type sessionFeed struct {
	scripts [][]tick
	script  []tick
	pos     int
	joins   int
}

func (f *sessionFeed) Transition(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.script = f.scripts[f.joins%len(f.scripts)]
	f.pos = 0
	f.joins++
	return nil
}

func (f *sessionFeed) cur() tick {
	if f.pos == 0 || len(f.script) == 0 {
		return tick{}
	}
	i := f.pos - 1
	if i >= len(f.script) {
		i = len(f.script) - 1
	}
	return f.script[i]
}

func (f *sessionFeed) ReadStatus(context.Context) model.StatusToken {
	f.pos++
	return model.ParseStatusToken(f.cur().status)
}

func (f *sessionFeed) SessionEnded(context.Context) bool { return f.cur().ended }

func (f *sessionFeed) ReadLotIdentity(context.Context) (model.LotKey, bool) {
	l := f.cur().lot
	return l, !l.IsZero()
}

func (f *sessionFeed) Source(context.Context, string) (string, error) {
	return "<html></html>", nil
}

type authFunc func(ctx context.Context) error

func (f authFunc) Authenticate(ctx context.Context) error { return f(ctx) }

type countingDumper struct{ reasons []string }

func (d *countingDumper) Capture(_ context.Context, _ diag.Sourcer, _, reason string) (string, error) {
	d.reasons = append(d.reasons, reason)
	return reason, nil
}

var lot = model.LotKey{Title: "2021 TESLA MODEL 3", LotNumber: "77123456"}

func TestMonitor_RunSessions(t *testing.T) {
	feed := &sessionFeed{scripts: [][]tick{
		{{status: "$21,000", lot: lot}, {status: "Sold!", lot: lot}, {ended: true}},
		{{status: "$21,000", lot: lot}, {status: "Sold!", lot: lot}, {}},
	}}
	ms := memory.New(0)
	dumper := &countingDumper{}

	m := New(Config{
		Machine:     auction.Config{TickInterval: time.Millisecond, StallTicks: 3},
		MaxSessions: 2,
	}, Deps{
		Auth:     authFunc(func(context.Context) error { return nil }),
		Sessions: feed,
		Prices:   feed,
		Lots:     feed,
		Recorder: writer.NewRecorder(writer.DefaultConfig(), ms, nil, nil, nil),
		Page:     feed,
		Dumper:   dumper,
	}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := m.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	st := m.Stats()
	if st.Sessions != 2 || st.SessionsEnded != 1 || st.SessionsStall != 1 {
		t.Errorf("Stats() = %+v, want 2 sessions (1 ended, 1 stalled)", st)
	}
	if st.Closings != 2 {
		t.Errorf("Closings = %d, want 2 (one per session)", st.Closings)
	}
	if ms.Len() != 1 {
		t.Errorf("stored records = %d, want 1 after re-entry", ms.Len())
	}
	if len(dumper.reasons) != 1 || dumper.reasons[0] != "stalled" {
		t.Errorf("dumps = %v, want [stalled]", dumper.reasons)
	}
}

func TestMonitor_AuthExhausted(t *testing.T) {
	a := auth.NewAuthenticator(auth.Policy{MaxAttempts: 1}, auth.LoginFunc(func(context.Context) error {
		return auth.ErrRejected
	}), nil)
	feed := &sessionFeed{scripts: [][]tick{{}}}

	m := New(Config{Machine: auction.DefaultConfig()}, Deps{Auth: a, Sessions: feed, Prices: feed, Lots: feed}, nil)

	err := m.Run(context.Background())
	if !errors.Is(err, auth.ErrExhausted) {
		t.Errorf("Run() error = %v, want ErrExhausted", err)
	}
	if feed.joins != 0 {
		t.Errorf("joins = %d, want 0", feed.joins)
	}
}

func TestMonitor_StartStop(t *testing.T) {
	feed := &sessionFeed{scripts: [][]tick{{{status: "100", lot: lot}}}}
	m := New(Config{Machine: auction.Config{TickInterval: time.Millisecond}}, Deps{
		Auth:     authFunc(func(context.Context) error { return nil }),
		Sessions: feed,
		Prices:   feed,
		Lots:     feed,
		Recorder: writer.NewRecorder(writer.DefaultConfig(), memory.New(0), nil, nil, nil),
	}, nil)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := m.Stop(stopCtx); err != nil {
		t.Errorf("Stop() error = %v", err)
	}

	select {
	case <-m.Done():
	default:
		t.Error("Done() not closed after Stop")
	}
	if err := m.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
}
