package auction

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/rickgao/lotwatch/internal/model"
	"github.com/rickgao/lotwatch/internal/store"
	"github.com/rickgao/lotwatch/internal/store/memory"
	"github.com/rickgao/lotwatch/internal/writer"
)

var (
	lotA = model.LotKey{Title: "2018 NISSAN ALTIMA", LotNumber: "50123456"}
	lotB = model.LotKey{Title: "2015 FORD F150", LotNumber: "50123999"}
)

// frame is what the page shows during one tick.
type frame struct {
	status string
	lot    model.LotKey // zero means not found
	ended  bool
}

// scriptedFeed replays frames, advancing on each ReadStatus. Past the end of
// the script it keeps returning the last frame.
type scriptedFeed struct {
	frames []frame
	pos    int
	endChecks int
}

func (f *scriptedFeed) current() frame {
	if f.pos == 0 {
		return frame{}
	}
	i := f.pos - 1
	if i >= len(f.frames) {
		i = len(f.frames) - 1
	}
	return f.frames[i]
}

func (f *scriptedFeed) ReadStatus(context.Context) model.StatusToken {
	f.pos++
	return model.ParseStatusToken(f.current().status)
}

func (f *scriptedFeed) SessionEnded(context.Context) bool {
	f.endChecks++
	return f.current().ended
}

func (f *scriptedFeed) ReadLotIdentity(context.Context) (model.LotKey, bool) {
	lot := f.current().lot
	return lot, !lot.IsZero()
}

// countingRecorder wraps a Recorder and counts calls.
type countingRecorder struct {
	next   Recorder
	events []model.ClosingEvent
}

func (c *countingRecorder) Record(ctx context.Context, ev model.ClosingEvent) (store.Result, error) {
	c.events = append(c.events, ev)
	return c.next.Record(ctx, ev)
}

func newHarness(frames ...frame) (*Machine, *scriptedFeed, *countingRecorder, *memory.Store) {
	feed := &scriptedFeed{frames: frames}
	ms := memory.New(0)
	rec := &countingRecorder{next: writer.NewRecorder(writer.DefaultConfig(), ms, nil, nil, nil)}
	m := NewMachine(Config{TickInterval: time.Millisecond}, uuid.New(), feed, feed, rec, nil)
	return m, feed, rec, ms
}

func tickAll(m *Machine, n int) {
	for i := 0; i < n; i++ {
		m.Tick(context.Background())
	}
}

func TestMachine_IdempotentClose(t *testing.T) {
	m, _, rec, ms := newHarness(
		frame{status: "$3,000", lot: lotA},
		frame{status: "$3,100", lot: lotA},
		frame{status: "Sold!", lot: lotA},
		frame{status: "Sold!", lot: lotA},
		frame{status: "Sold!", lot: lotA},
		frame{status: "Sold!", lot: lotA},
	)
	tickAll(m, 6)

	if len(rec.events) != 1 {
		t.Fatalf("recorder calls = %d, want 1", len(rec.events))
	}
	recs := ms.Records()
	if len(recs) != 1 {
		t.Fatalf("stored records = %d, want 1", len(recs))
	}
	if recs[0].PriceText != "$3,100" || recs[0].Outcome != model.OutcomeSold {
		t.Errorf("record = %+v, want $3,100 sold", recs[0])
	}
}

func TestMachine_PriceCarryForward(t *testing.T) {
	m, _, rec, _ := newHarness(
		frame{status: "100", lot: lotA},
		frame{status: "", lot: lotA},
		frame{status: "", lot: lotA},
		frame{status: "Sold!", lot: lotA},
	)
	tickAll(m, 4)

	if len(rec.events) != 1 {
		t.Fatalf("recorder calls = %d, want 1", len(rec.events))
	}
	if got := rec.events[0].Price.Raw; got != "100" {
		t.Errorf("closing price = %q, want 100", got)
	}
}

func TestMachine_LotSwitchDiscardsPrice(t *testing.T) {
	m, _, rec, ms := newHarness(
		frame{status: "50", lot: lotA},
		frame{status: "80", lot: lotB},
		frame{status: "Sold!", lot: lotB},
	)
	tickAll(m, 3)

	want := []model.ClosingEvent{{
		SessionID: m.sessionID,
		Key:       lotB,
		Price:     model.ParseStatusToken("80"),
		Outcome:   model.OutcomeSold,
	}}
	if diff := cmp.Diff(want, rec.events); diff != "" {
		t.Errorf("closing events mismatch (-want +got):\n%s", diff)
	}
	if ms.Len() != 1 {
		t.Errorf("stored records = %d, want 1", ms.Len())
	}
	if m.Stats().LotSwitches != 1 {
		t.Errorf("LotSwitches = %d, want 1", m.Stats().LotSwitches)
	}
}

func TestMachine_CloseAfterSwitchWithoutPrice(t *testing.T) {
	m, _, rec, ms := newHarness(
		frame{status: "50", lot: lotA},
		frame{status: "", lot: lotB},
		frame{status: "Approval!", lot: lotB},
	)
	tickAll(m, 3)

	if len(rec.events) != 1 {
		t.Fatalf("recorder calls = %d, want 1", len(rec.events))
	}
	if rec.events[0].Price.Kind != model.TokenAbsent {
		t.Errorf("closing price = %+v, want absent", rec.events[0].Price)
	}
	recs := ms.Records()
	if len(recs) != 1 || recs[0].PriceKnown() || recs[0].Outcome != model.OutcomeApproved {
		t.Errorf("records = %+v, want one approved record with unknown price", recs)
	}
}

func TestMachine_StaleClosingAfterSwitch(t *testing.T) {
	m, _, rec, ms := newHarness(
		frame{status: "$1,000", lot: lotA},
		frame{status: "Sold!", lot: lotA},
		frame{status: "Sold!", lot: lotB},
		frame{status: "Sold!", lot: lotB},
		frame{status: "$2,000", lot: lotB},
		frame{status: "Sold!", lot: lotB},
	)
	tickAll(m, 6)

	want := []model.ClosingEvent{
		{SessionID: m.sessionID, Key: lotA, Price: model.ParseStatusToken("$1,000"), Outcome: model.OutcomeSold},
		{SessionID: m.sessionID, Key: lotB, Price: model.ParseStatusToken("$2,000"), Outcome: model.OutcomeSold},
	}
	if diff := cmp.Diff(want, rec.events); diff != "" {
		t.Errorf("closing events mismatch (-want +got):\n%s", diff)
	}
	if ms.Len() != 2 {
		t.Errorf("stored records = %d, want 2", ms.Len())
	}
}

func TestMachine_ClosingOnJoinIsIgnored(t *testing.T) {
	m, _, rec, _ := newHarness(
		frame{status: "Sold!", lot: lotA},
		frame{status: "$500", lot: lotB},
		frame{status: "Sold!", lot: lotB},
	)
	tickAll(m, 3)

	if len(rec.events) != 1 || rec.events[0].Key != lotB {
		t.Errorf("events = %+v, want only lotB", rec.events)
	}
}

func TestMachine_PartialIdentityKeepsPrice(t *testing.T) {
	partial := model.LotKey{LotNumber: lotA.LotNumber}
	m, _, rec, ms := newHarness(
		frame{status: "$1,000", lot: lotA},
		frame{status: "", lot: partial},
		frame{status: "Sold!", lot: lotA},
		frame{status: "Sold!", lot: partial},
	)
	tickAll(m, 4)

	if len(rec.events) != 1 {
		t.Fatalf("recorder calls = %d, want 1", len(rec.events))
	}
	if got := rec.events[0].Price.Raw; got != "$1,000" {
		t.Errorf("closing price = %q, want $1,000", got)
	}
	if ms.Len() != 1 {
		t.Errorf("stored records = %d, want 1", ms.Len())
	}
	if m.Stats().LotSwitches != 0 {
		t.Errorf("LotSwitches = %d, want 0", m.Stats().LotSwitches)
	}
}

func TestMachine_ClosingWithoutLotIsDeferred(t *testing.T) {
	m, _, rec, _ := newHarness(
		frame{status: "700", lot: lotA},
		frame{status: "Sold!"},
		frame{status: "Sold!", lot: lotA},
	)

	tickAll(m, 2)
	if len(rec.events) != 0 {
		t.Fatalf("recorder calls after unidentified closing = %d, want 0", len(rec.events))
	}

	tickAll(m, 1)
	if len(rec.events) != 1 || rec.events[0].Price.Raw != "700" {
		t.Errorf("events = %+v, want one closing at 700", rec.events)
	}
}

func TestMachine_SoldAndApprovalSameLot(t *testing.T) {
	m, _, rec, _ := newHarness(
		frame{status: "2500", lot: lotA},
		frame{status: "Approval!", lot: lotA},
		frame{status: "Sold!", lot: lotA},
	)
	tickAll(m, 3)

	if len(rec.events) != 1 || rec.events[0].Outcome != model.OutcomeApproved {
		t.Errorf("events = %+v, want only the first (approved) closing", rec.events)
	}
}

func TestMachine_SessionEnd(t *testing.T) {
	m, feed, rec, _ := newHarness(
		frame{status: "100", lot: lotA},
		frame{status: "", ended: true},
		frame{status: "Sold!", lot: lotA},
	)

	if got := m.Tick(context.Background()); got != StateActive {
		t.Fatalf("first Tick() = %v, want active", got)
	}
	if got := m.Tick(context.Background()); got != StateEnded {
		t.Fatalf("second Tick() = %v, want ended", got)
	}

	reads := feed.pos
	for i := 0; i < 3; i++ {
		if got := m.Tick(context.Background()); got != StateEnded {
			t.Errorf("Tick() after end = %v, want ended", got)
		}
	}
	if feed.pos != reads {
		t.Errorf("page reads after end = %d, want 0", feed.pos-reads)
	}
	if len(rec.events) != 0 {
		t.Errorf("recorder calls = %d, want 0", len(rec.events))
	}
}

func TestMachine_EndCheckOnlyOnAbsent(t *testing.T) {
	m, feed, _, _ := newHarness(
		frame{status: "100", lot: lotA},
		frame{status: "Sold!", lot: lotA},
	)
	tickAll(m, 2)

	if feed.endChecks != 0 {
		t.Errorf("end checks = %d, want 0", feed.endChecks)
	}
}

func TestMachine_UnrecognizedStatusSkipsEndCheck(t *testing.T) {
	m, feed, _, _ := newHarness(
		frame{status: "100", lot: lotA},
		frame{status: "Next lot", lot: lotA},
		frame{status: "Please wait"},
	)
	tickAll(m, 3)

	if feed.endChecks != 0 {
		t.Errorf("end checks = %d, want 0", feed.endChecks)
	}
	if m.Stats().EmptyTicks != 0 {
		t.Errorf("EmptyTicks = %d, want 0", m.Stats().EmptyTicks)
	}
	if got := m.Session().LastPrice.Raw; got != "100" {
		t.Errorf("LastPrice = %q, want 100", got)
	}
}

func TestMachine_CrossSessionReentry(t *testing.T) {
	ms := memory.New(0)
	recorder := writer.NewRecorder(writer.DefaultConfig(), ms, nil, nil, nil)

	script := []frame{
		{status: "4200", lot: lotA},
		{status: "Sold!", lot: lotA},
		{status: "Sold!", lot: lotA},
	}

	// The same auction joined twice: each session's guard is fresh, the store
	// collapses the repeat.
	for i := 0; i < 2; i++ {
		feed := &scriptedFeed{frames: script}
		rec := &countingRecorder{next: recorder}
		m := NewMachine(Config{TickInterval: time.Millisecond}, uuid.New(), feed, feed, rec, nil)
		tickAll(m, len(script))

		if len(rec.events) != 1 {
			t.Errorf("session %d recorder calls = %d, want 1", i, len(rec.events))
		}
	}

	if ms.Len() != 1 {
		t.Errorf("stored records = %d, want 1", ms.Len())
	}
	stats := recorder.Stats()
	if stats.Accepted != 1 || stats.Duplicates != 1 {
		t.Errorf("recorder stats = %+v, want 1 accepted, 1 duplicate", stats)
	}
}

func TestMachine_Run(t *testing.T) {
	tests := []struct {
		name       string
		frames     []frame
		stallTicks int
		want       ExitReason
	}{
		{
			name:   "ended",
			frames: []frame{{status: "10", lot: lotA}, {status: "Sold!", lot: lotA}, {ended: true}},
			want:   ExitEnded,
		},
		{
			name:       "stalled",
			frames:     []frame{{status: "10", lot: lotA}, {}},
			stallTicks: 5,
			want:       ExitStalled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			feed := &scriptedFeed{frames: tt.frames}
			rec := &countingRecorder{next: writer.NewRecorder(writer.DefaultConfig(), memory.New(0), nil, nil, nil)}
			m := NewMachine(Config{TickInterval: time.Millisecond, StallTicks: tt.stallTicks}, uuid.New(), feed, feed, rec, nil)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if got := m.Run(ctx); got != tt.want {
				t.Errorf("Run() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMachine_RunCanceled(t *testing.T) {
	feed := &scriptedFeed{frames: []frame{{status: "10", lot: lotA}}}
	rec := &countingRecorder{next: writer.NewRecorder(writer.DefaultConfig(), memory.New(0), nil, nil, nil)}
	m := NewMachine(Config{TickInterval: time.Millisecond}, uuid.New(), feed, feed, rec, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if got := m.Run(ctx); got != ExitCanceled {
		t.Errorf("Run() = %v, want %v", got, ExitCanceled)
	}
	if m.State() != StateActive {
		t.Errorf("State() = %v, want active", m.State())
	}
}
