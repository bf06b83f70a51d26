package cache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dvazquezd/StockLens/internal/model"
)

// ErrPersist marks a write-back failure after a successful fetch and merge.
// The returned result still carries the merged in-memory series; only its
// persistence failed, so the next run will refetch more than necessary.
var ErrPersist = errors.New("cache: persist merged series")

// Store is the persistence surface the cache needs. *store.DB satisfies it.
type Store interface {
	LatestMeta(key model.SeriesKey) (*model.SeriesMeta, error)
	ReadCandles(key model.SeriesKey, from, to *time.Time, limit int) ([]model.Candle, error)
	WriteCandles(key model.SeriesKey, candles []model.Candle) (int, error)
}

// FetchFunc downloads candles from an external provider. A nil from means
// fetch the most recent limit bars. Candles must come back normalized:
// ascending, no duplicates.
type FetchFunc func(ctx context.Context, key model.SeriesKey, from *time.Time, limit int) ([]model.Candle, error)

// Result is the outcome of one cache access. The decision and degradation
// flags are returned rather than only logged so callers and tests can
// assert on them.
type Result struct {
	Candles  []model.Candle
	Decision model.FetchDecision
	// Stale is set when the fetch failed and the cached (stale) series was
	// returned instead.
	Stale bool
}

// Cache is the incremental caching layer over the time-series store. It
// reuses fresh cached data, fetches only the missing window otherwise, and
// merges fetched rows back without duplicates or reordering.
type Cache struct {
	store Store
	eval  *Evaluator
	now   func() time.Time

	mu    sync.Mutex
	locks map[model.SeriesKey]*sync.Mutex
}

// New creates a cache over the given store using the default freshness
// policy.
func New(store Store) *Cache {
	return NewWithEvaluator(store, NewEvaluator())
}

// NewWithEvaluator creates a cache with a custom freshness policy.
func NewWithEvaluator(store Store, eval *Evaluator) *Cache {
	return &Cache{
		store: store,
		eval:  eval,
		now:   time.Now,
		locks: make(map[model.SeriesKey]*sync.Mutex),
	}
}

// keyLock serializes accesses per series so concurrent callers cannot read
// stale metadata and clobber each other's merges.
func (c *Cache) keyLock(key model.SeriesKey) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[key]
	if !ok {
		l = &sync.Mutex{}
		c.locks[key] = l
	}
	return l
}

// GetSeries returns up to limit of the most recent candles for a series,
// fetching from the provider only when the cache cannot satisfy the request.
// With useCache false it always performs a full fetch and writes through.
//
// If the fetch fails but a non-empty cache exists, the stale cached series
// is returned with Result.Stale set instead of an error. If persisting the
// merge fails, the merged series is still returned together with an error
// wrapping ErrPersist.
func (c *Cache) GetSeries(ctx context.Context, key model.SeriesKey, limit int, useCache bool, fetch FetchFunc) (*Result, error) {
	lock := c.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	if !useCache {
		dec := model.FetchDecision{Action: model.ActionFullFetch, RowCount: limit}
		fetched, err := fetch(ctx, key, nil, limit)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", key, err)
		}
		return c.writeBack(key, nil, fetched, dec, limit)
	}

	meta, err := c.store.LatestMeta(key)
	if err != nil {
		return nil, fmt.Errorf("read cache metadata for %s: %w", key, err)
	}

	dec := c.eval.Decide(meta, c.now(), key.Interval, limit)
	log.Printf("[INFO] cache decision for %s: %s (rows=%d)", key, dec.Action, dec.RowCount)

	if dec.Action == model.ActionUseCache {
		candles, err := c.store.ReadCandles(key, nil, nil, limit)
		if err != nil {
			return nil, fmt.Errorf("read cached series for %s: %w", key, err)
		}
		return &Result{Candles: candles, Decision: dec}, nil
	}

	fetched, fetchErr := fetch(ctx, key, dec.From, dec.RowCount)
	if fetchErr != nil {
		if meta != nil && meta.Rows > 0 {
			// Degrade to the stale cached series rather than failing the call.
			log.Printf("[WARN] fetch %s failed, serving stale cache: %v", key, fetchErr)
			candles, err := c.store.ReadCandles(key, nil, nil, limit)
			if err != nil {
				return nil, fmt.Errorf("read stale series for %s: %w", key, err)
			}
			return &Result{Candles: candles, Decision: dec, Stale: true}, nil
		}
		return nil, fmt.Errorf("fetch %s: %w", key, fetchErr)
	}

	var existing []model.Candle
	if meta != nil && meta.Rows > 0 {
		existing, err = c.store.ReadCandles(key, nil, nil, 0)
		if err != nil {
			return nil, fmt.Errorf("read cached series for %s: %w", key, err)
		}
	}

	return c.writeBack(key, existing, fetched, dec, limit)
}

// writeBack merges fetched candles with the existing series, persists the
// new rows and returns the tail that satisfies the requested limit.
func (c *Cache) writeBack(key model.SeriesKey, existing, fetched []model.Candle, dec model.FetchDecision, limit int) (*Result, error) {
	merged := Merge(existing, fetched)
	res := &Result{Candles: tail(merged, limit), Decision: dec}

	if _, err := c.store.WriteCandles(key, fetched); err != nil {
		return res, fmt.Errorf("%w for %s: %v", ErrPersist, key, err)
	}
	return res, nil
}

func tail(candles []model.Candle, limit int) []model.Candle {
	if limit > 0 && len(candles) > limit {
		return candles[len(candles)-limit:]
	}
	return candles
}
