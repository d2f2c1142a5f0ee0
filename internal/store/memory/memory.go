// Package memory implements an in-process ResultStore. It backs replays and
// tests, and deployments that only need the event stream.
package memory

import (
	"context"
	"sort"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/rickgao/lotwatch/internal/model"
	"github.com/rickgao/lotwatch/internal/store"
)

// DefaultSize bounds the number of records kept.
const DefaultSize = 100_000

// Store keeps records in an expirable LRU keyed by the same-day dedup key.
// Entries live for 48h, long enough to cover any same-day window.
type Store struct {
	cache *expirable.LRU[string, model.ClosingRecord]
}

// New creates a Store holding at most size records (DefaultSize if size <= 0).
func New(size int) *Store {
	if size <= 0 {
		size = DefaultSize
	}
	return &Store{
		cache: expirable.NewLRU[string, model.ClosingRecord](size, nil, 48*time.Hour),
	}
}

// UpsertClosing implements store.ResultStore.
func (s *Store) UpsertClosing(ctx context.Context, rec model.ClosingRecord) (store.Result, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	key := rec.DedupKey()
	if s.cache.Contains(key) {
		return store.Duplicate, nil
	}
	s.cache.Add(key, rec)
	return store.Accepted, nil
}

// Records returns stored records ordered by observation time.
func (s *Store) Records() []model.ClosingRecord {
	out := s.cache.Values()
	sort.Slice(out, func(i, j int) bool {
		return out[i].ObservedAt.Before(out[j].ObservedAt)
	})
	return out
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	return s.cache.Len()
}
