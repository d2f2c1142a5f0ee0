// Package redis implements store.ResultStore on go-redis/v9. Same-day
// uniqueness is a claim key per record dedup key, expiring after the day ends,
// set by the same script that appends the record to the day's list.
package redis

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rickgao/lotwatch/internal/model"
	"github.com/rickgao/lotwatch/internal/store"
)

// Grace keeps dedup keys alive past midnight so late writes for the previous
// day still collide.
const Grace = 6 * time.Hour

// listRetention keeps a day's list around after its dedup keys expire.
const listRetention = 7 * 24 * time.Hour

// ClientConfig holds connection parameters for the Redis client.
type ClientConfig struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	TLSEnabled bool
	KeyPrefix  string // Prepended to every key (default "lotwatch")
}

// Store is a Redis-backed ResultStore.
type Store struct {
	rdb    *redis.Client
	prefix string
}

// New connects to Redis and verifies the connection with a ping.
func New(ctx context.Context, cfg ClientConfig) (*Store, error) {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "lotwatch"
	}
	return &Store{rdb: rdb, prefix: prefix}, nil
}

// upsertScript claims the dedup key and appends the record in one step. The
// claim is written last so a failed append leaves nothing behind.
//
// KEYS[1] claim key, KEYS[2] day list. ARGV: record id, payload, claim TTL ms,
// list TTL ms. Returns 1 when stored, 0 for a duplicate.
var upsertScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('RPUSH', KEYS[2], ARGV[2])
redis.call('PEXPIRE', KEYS[2], ARGV[4])
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`)

// UpsertClosing implements store.ResultStore. The record is appended to the
// day's list only when its dedup key is new.
func (s *Store) UpsertClosing(ctx context.Context, rec model.ClosingRecord) (store.Result, error) {
	payload, err := json.Marshal(encode(rec))
	if err != nil {
		return 0, fmt.Errorf("%w: encode record: %v", store.ErrStore, err)
	}

	ttl := keyTTL(rec.ObservedAt)
	listKey := s.dayKey(rec.Day())

	stored, err := upsertScript.Run(ctx, s.rdb,
		[]string{s.closingKey(rec), listKey},
		rec.ID.String(), payload, ttl.Milliseconds(), (ttl + listRetention).Milliseconds(),
	).Int()
	if err != nil {
		return 0, fmt.Errorf("%w: redis upsert %s: %v", store.ErrStore, rec.LotNumber, err)
	}
	if stored == 0 {
		return store.Duplicate, nil
	}
	return store.Accepted, nil
}

// Ping checks the Redis connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.rdb.Close()
}

func (s *Store) closingKey(rec model.ClosingRecord) string {
	return s.prefix + ":closing:" + rec.DedupKey()
}

func (s *Store) dayKey(day string) string {
	return s.prefix + ":closings:" + day
}

// keyTTL returns the time from at until the end of its day plus Grace.
func keyTTL(at time.Time) time.Duration {
	y, m, d := at.Date()
	endOfDay := time.Date(y, m, d+1, 0, 0, 0, 0, at.Location())
	return endOfDay.Sub(at) + Grace
}

type wireRecord struct {
	ID         string `json:"id"`
	SessionID  string `json:"session_id"`
	Title      string `json:"title"`
	LotNumber  string `json:"lot_number"`
	Price      string `json:"price,omitempty"`
	PriceText  string `json:"price_text,omitempty"`
	Outcome    string `json:"outcome"`
	ObservedAt string `json:"observed_at"`
}

func encode(rec model.ClosingRecord) wireRecord {
	return wireRecord{
		ID:         rec.ID.String(),
		SessionID:  rec.SessionID.String(),
		Title:      rec.Title,
		LotNumber:  rec.LotNumber,
		Price:      rec.PriceKey(),
		PriceText:  rec.PriceText,
		Outcome:    string(rec.Outcome),
		ObservedAt: rec.ObservedAt.Format(time.RFC3339Nano),
	}
}

var _ store.ResultStore = (*Store)(nil)
