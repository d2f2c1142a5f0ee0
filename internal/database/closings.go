package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/rickgao/lotwatch/internal/model"
	"github.com/rickgao/lotwatch/internal/store"
)

// querier is the subset of *pgxpool.Pool used by ClosingStore.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const insertClosing = `
	INSERT INTO closings (id, session_id, title, lot_number, price_at_close, price_text, price_key, outcome, observed_at, observed_day)
	VALUES ($1, $2, $3, $4, NULLIF($5::text, '')::numeric, $6, $5, $7, $8, $9::date)
	ON CONFLICT (lot_number, price_key, outcome, observed_day) DO NOTHING
`

const selectClosings = `
	SELECT id::text, session_id::text, title, lot_number, COALESCE(price_at_close::text, ''), price_text, outcome, observed_at
	FROM closings
	WHERE observed_at >= $1
	ORDER BY observed_at DESC
	LIMIT $2
`

// ClosingStore persists closing records in the closings table.
type ClosingStore struct {
	db querier
}

// NewClosingStore creates a ClosingStore. db is usually a *pgxpool.Pool.
func NewClosingStore(db querier) *ClosingStore {
	return &ClosingStore{db: db}
}

// UpsertClosing implements store.ResultStore.
func (s *ClosingStore) UpsertClosing(ctx context.Context, rec model.ClosingRecord) (store.Result, error) {
	ct, err := s.db.Exec(ctx, insertClosing,
		rec.ID.String(),
		rec.SessionID.String(),
		rec.Title,
		rec.LotNumber,
		rec.PriceKey(),
		rec.PriceText,
		string(rec.Outcome),
		rec.ObservedAt,
		rec.Day(),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: insert closing %s: %v", store.ErrStore, rec.LotNumber, err)
	}
	if ct.RowsAffected() == 0 {
		return store.Duplicate, nil
	}
	return store.Accepted, nil
}

// ListClosings returns up to limit records observed at or after since, newest
// first.
func (s *ClosingStore) ListClosings(ctx context.Context, since time.Time, limit int) ([]model.ClosingRecord, error) {
	rows, err := s.db.Query(ctx, selectClosings, since, limit)
	if err != nil {
		return nil, fmt.Errorf("query closings: %w", err)
	}
	defer rows.Close()

	var out []model.ClosingRecord
	for rows.Next() {
		var (
			id, sessionID, price, outcome string
			rec                           model.ClosingRecord
		)
		if err := rows.Scan(&id, &sessionID, &rec.Title, &rec.LotNumber, &price, &rec.PriceText, &outcome, &rec.ObservedAt); err != nil {
			return nil, fmt.Errorf("scan closing: %w", err)
		}
		if rec.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse closing id: %w", err)
		}
		if rec.SessionID, err = uuid.Parse(sessionID); err != nil {
			return nil, fmt.Errorf("parse session id: %w", err)
		}
		if price != "" {
			if rec.PriceAtClose, err = decimal.NewFromString(price); err != nil {
				return nil, fmt.Errorf("parse price %q: %w", price, err)
			}
		}
		rec.Outcome = model.Outcome(outcome)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate closings: %w", err)
	}
	return out, nil
}

var _ store.ResultStore = (*ClosingStore)(nil)
