package writer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/lotwatch/internal/diag"
	"github.com/rickgao/lotwatch/internal/events"
	"github.com/rickgao/lotwatch/internal/model"
	"github.com/rickgao/lotwatch/internal/store"
)

// Config holds Recorder settings.
type Config struct {
	StoreTimeout time.Duration // Bound on each upsert (default: 5s)
	Topic        string        // Event topic for accepted closings
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		StoreTimeout: 5 * time.Second,
		Topic:        events.DefaultTopic,
	}
}

// Metrics counts Record outcomes.
type Metrics struct {
	Accepted      int64
	Duplicates    int64
	Errors        int64
	PublishErrors int64
}

// Recorder formats and persists closing events.
type Recorder struct {
	cfg        Config
	store      store.ResultStore
	publisher  events.Publisher
	exceptions *diag.ExceptionLog
	logger     *slog.Logger
	now        func() time.Time

	mu      sync.Mutex
	metrics Metrics
}

// NewRecorder creates a Recorder. publisher and exceptions may be nil.
func NewRecorder(
	cfg Config,
	rs store.ResultStore,
	publisher events.Publisher,
	exceptions *diag.ExceptionLog,
	logger *slog.Logger,
) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if cfg.StoreTimeout == 0 {
		cfg.StoreTimeout = DefaultConfig().StoreTimeout
	}
	if cfg.Topic == "" {
		cfg.Topic = events.DefaultTopic
	}
	return &Recorder{
		cfg:        cfg,
		store:      rs,
		publisher:  publisher,
		exceptions: exceptions,
		logger:     logger,
		now:        time.Now,
	}
}

// Record persists ev with a single upsert. A returned error means the event
// was dropped; it has already been logged.
func (r *Recorder) Record(ctx context.Context, ev model.ClosingEvent) (store.Result, error) {
	rec := r.format(ev)

	storeCtx, cancel := context.WithTimeout(ctx, r.cfg.StoreTimeout)
	res, err := r.store.UpsertClosing(storeCtx, rec)
	cancel()

	if err != nil {
		r.logger.Error("closing not persisted",
			"error", err,
			"lot_number", rec.LotNumber,
			"title", rec.Title,
			"price", rec.PriceText,
			"outcome", rec.Outcome,
			"session_id", rec.SessionID,
		)
		if werr := r.exceptions.Write(diag.ExceptionFor("upsert_closing", rec, err)); werr != nil {
			r.logger.Error("exception log write failed", "error", werr)
		}
		r.count(func(m *Metrics) { m.Errors++ })
		return 0, err
	}

	switch res {
	case store.Duplicate:
		r.logger.Info("duplicate closing dropped",
			"lot_number", rec.LotNumber,
			"price", rec.PriceText,
			"outcome", rec.Outcome,
			"session_id", rec.SessionID,
		)
		r.count(func(m *Metrics) { m.Duplicates++ })

	case store.Accepted:
		r.logger.Info("closing recorded",
			"lot_number", rec.LotNumber,
			"title", rec.Title,
			"price", rec.PriceText,
			"outcome", rec.Outcome,
			"session_id", rec.SessionID,
		)
		r.count(func(m *Metrics) { m.Accepted++ })

		if err := r.publisher.Publish(ctx, r.cfg.Topic, events.NewClosing(rec)); err != nil {
			r.logger.Warn("closing publish failed", "error", err, "lot_number", rec.LotNumber)
			r.count(func(m *Metrics) { m.PublishErrors++ })
		}
	}

	return res, nil
}

// Stats returns current metrics.
func (r *Recorder) Stats() Metrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.metrics
}

// format converts an event into an immutable record.
func (r *Recorder) format(ev model.ClosingEvent) model.ClosingRecord {
	rec := model.ClosingRecord{
		ID:         uuid.New(),
		SessionID:  ev.SessionID,
		Title:      ev.Key.Title,
		LotNumber:  ev.Key.LotNumber,
		Outcome:    ev.Outcome,
		ObservedAt: r.now(),
	}
	if ev.Price.Kind == model.TokenPrice {
		rec.PriceText = ev.Price.Raw
		rec.PriceAtClose = ev.Price.Amount
	}
	return rec
}

func (r *Recorder) count(f func(*Metrics)) {
	r.mu.Lock()
	f(&r.metrics)
	r.mu.Unlock()
}
