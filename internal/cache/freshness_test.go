package cache

import (
	"testing"
	"time"

	"github.com/dvazquezd/StockLens/internal/model"
)

func metaAt(latest time.Time, rows int) *model.SeriesMeta {
	return &model.SeriesMeta{Latest: latest, Rows: rows, RefreshedAt: latest}
}

func TestDecide_NoCache(t *testing.T) {
	e := NewEvaluator()
	dec := e.Decide(nil, time.Now(), model.Interval1d, 1000)
	if dec.Action != model.ActionFullFetch {
		t.Fatalf("expected full_fetch, got %s", dec.Action)
	}
	if dec.RowCount != 1000 {
		t.Errorf("expected row count 1000, got %d", dec.RowCount)
	}
	if dec.From != nil {
		t.Error("full fetch should not carry a start timestamp")
	}
}

func TestDecide_FreshAndSufficient(t *testing.T) {
	e := NewEvaluator()
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	latest := now.Add(-20 * time.Hour) // within the 24h daily threshold

	dec := e.Decide(metaAt(latest, 1000), now, model.Interval1d, 1000)
	if dec.Action != model.ActionUseCache {
		t.Fatalf("expected use_cache, got %s", dec.Action)
	}
}

func TestDecide_StaleIncremental(t *testing.T) {
	e := NewEvaluator()
	now := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	latest := now.Add(-3 * 24 * time.Hour)

	dec := e.Decide(metaAt(latest, 1000), now, model.Interval1d, 1000)
	if dec.Action != model.ActionIncrementalFetch {
		t.Fatalf("expected incremental_fetch, got %s", dec.Action)
	}
	if dec.From == nil || !dec.From.Equal(latest) {
		t.Errorf("incremental fetch should start at the last cached bar, got %v", dec.From)
	}
	// 3 elapsed bars plus one bar of margin.
	if dec.RowCount != 4 {
		t.Errorf("expected window of 4 bars, got %d", dec.RowCount)
	}
}

func TestDecide_WindowCapped(t *testing.T) {
	e := NewEvaluator()
	now := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	latest := now.Add(-10 * 365 * 24 * time.Hour)

	dec := e.Decide(metaAt(latest, 1000), now, model.Interval1d, 1000)
	if dec.Action != model.ActionIncrementalFetch {
		t.Fatalf("expected incremental_fetch, got %s", dec.Action)
	}
	if dec.RowCount != e.MaxWindow {
		t.Errorf("expected window capped at %d, got %d", e.MaxWindow, dec.RowCount)
	}
}

func TestDecide_InsufficientHistory(t *testing.T) {
	e := NewEvaluator()
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	latest := now.Add(-1 * time.Hour) // perfectly fresh

	dec := e.Decide(metaAt(latest, 200), now, model.Interval1d, 1000)
	if dec.Action != model.ActionFullFetch {
		t.Fatalf("fresh but short cache should trigger full_fetch, got %s", dec.Action)
	}
	if !dec.Insufficient {
		t.Error("expected decision flagged as insufficient history")
	}
	if dec.RowCount != 1000 {
		t.Errorf("full fetch should be sized to the request, got %d", dec.RowCount)
	}
}

func TestDecide_IntradayFloor(t *testing.T) {
	e := NewEvaluator()
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	// 1m bars, 10 minutes old: within the 15m floor even though 10 bars elapsed.
	latest := now.Add(-10 * time.Minute)

	dec := e.Decide(metaAt(latest, 1000), now, model.Interval1m, 500)
	if dec.Action != model.ActionUseCache {
		t.Fatalf("expected floor to keep 1m cache fresh, got %s", dec.Action)
	}
}

func TestDecide_FreshnessMonotonic(t *testing.T) {
	e := NewEvaluator()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	meta := metaAt(base, 1000)

	flipped := false
	for hours := 0; hours <= 96; hours++ {
		now := base.Add(time.Duration(hours) * time.Hour)
		dec := e.Decide(meta, now, model.Interval1d, 1000)
		fetching := dec.Action != model.ActionUseCache
		if flipped && !fetching {
			t.Fatalf("decision flipped back to use_cache at +%dh", hours)
		}
		if fetching {
			flipped = true
		}
	}
	if !flipped {
		t.Fatal("advancing now past max age never triggered a fetch")
	}
}
