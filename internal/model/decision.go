package model

import "time"

// FetchAction is the outcome of a freshness evaluation.
type FetchAction string

const (
	ActionUseCache         FetchAction = "use_cache"
	ActionIncrementalFetch FetchAction = "incremental_fetch"
	ActionFullFetch        FetchAction = "full_fetch"
)

// FetchDecision describes what (if anything) must be downloaded to bring a
// cached series up to date. It is recomputed on every cache access and never
// persisted.
type FetchDecision struct {
	Action FetchAction
	// From is the inclusive start of an incremental fetch. Fetching from the
	// last cached bar forward catches any revision of the still-open bar.
	From *time.Time
	// RowCount is how many bars to request from the provider.
	RowCount int
	// Insufficient reports that the cached row count cannot satisfy the
	// requested limit. Orthogonal to freshness: a fresh cache with too few
	// rows still triggers a full fetch.
	Insufficient bool
}
