package cache

import (
	"time"

	"github.com/dvazquezd/StockLens/internal/model"
)

// Evaluator decides whether a cached series is fresh enough to reuse and,
// when it is not, sizes the incremental fetch window.
type Evaluator struct {
	// MinAge floors the staleness threshold so very short bars do not force
	// a refetch on every access.
	MinAge time.Duration
	// MaxWindow caps the incremental fetch size when the cache has been
	// stale for a long time.
	MaxWindow int
}

// NewEvaluator returns an evaluator with the default policy.
func NewEvaluator() *Evaluator {
	return &Evaluator{
		MinAge:    15 * time.Minute,
		MaxWindow: 500,
	}
}

// maxAge is the staleness threshold for an interval: one full bar period,
// never less than the bar duration, floored at MinAge.
func (e *Evaluator) maxAge(interval model.Interval) time.Duration {
	age := interval.Duration()
	if age < e.MinAge {
		age = e.MinAge
	}
	return age
}

// Decide produces a fetch decision for one cache access.
//
// A missing series always triggers a full fetch. A series with fewer rows
// than requested triggers a full fetch sized to the request even when the
// data is fresh; that case is flagged as Insufficient so callers can tell
// it apart from staleness. A stale series triggers an incremental fetch
// starting at the last cached bar (inclusive, so a revised still-open bar
// is re-fetched), sized to the elapsed gap plus one bar of margin.
func (e *Evaluator) Decide(meta *model.SeriesMeta, now time.Time, interval model.Interval, requestedLimit int) model.FetchDecision {
	if meta == nil || meta.Rows == 0 {
		return model.FetchDecision{
			Action:   model.ActionFullFetch,
			RowCount: requestedLimit,
		}
	}

	if meta.Rows < requestedLimit {
		return model.FetchDecision{
			Action:       model.ActionFullFetch,
			RowCount:     requestedLimit,
			Insufficient: true,
		}
	}

	if now.Sub(meta.Latest) <= e.maxAge(interval) {
		return model.FetchDecision{Action: model.ActionUseCache}
	}

	from := meta.Latest
	window := int(now.Sub(meta.Latest)/interval.Duration()) + 1
	if window > e.MaxWindow {
		window = e.MaxWindow
	}
	return model.FetchDecision{
		Action:   model.ActionIncrementalFetch,
		From:     &from,
		RowCount: window,
	}
}
