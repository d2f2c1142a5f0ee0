// Package events publishes accepted closings to subscribers: NATS subjects
// and the in-process websocket hub.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/rickgao/lotwatch/internal/model"
)

// DefaultTopic is the subject accepted closings are published on.
const DefaultTopic = "lotwatch.closings"

// Closing is the wire form of an accepted closing record.
type Closing struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	Title      string    `json:"title"`
	LotNumber  string    `json:"lot_number"`
	Price      string    `json:"price,omitempty"` // Decimal amount; empty when unknown
	PriceText  string    `json:"price_text,omitempty"`
	Outcome    string    `json:"outcome"`
	ObservedAt time.Time `json:"observed_at"`
}

// NewClosing converts a record to its wire form.
func NewClosing(rec model.ClosingRecord) Closing {
	return Closing{
		ID:         rec.ID.String(),
		SessionID:  rec.SessionID.String(),
		Title:      rec.Title,
		LotNumber:  rec.LotNumber,
		Price:      rec.PriceKey(),
		PriceText:  rec.PriceText,
		Outcome:    string(rec.Outcome),
		ObservedAt: rec.ObservedAt,
	}
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

// Fanout publishes every event to each of its publishers.
type Fanout []Publisher

// Publish implements Publisher. All publishers are attempted; errors are joined.
func (f Fanout) Publish(ctx context.Context, topic string, event any) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, topic, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close implements Publisher.
func (f Fanout) Close() error {
	var errs []error
	for _, p := range f {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
