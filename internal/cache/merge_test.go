package cache

import (
	"testing"
	"time"

	"github.com/dvazquezd/StockLens/internal/model"
)

func dailyCandles(start time.Time, n int, close float64) []model.Candle {
	out := make([]model.Candle, n)
	for i := 0; i < n; i++ {
		out[i] = model.Candle{
			Time:   start.Add(time.Duration(i) * 24 * time.Hour),
			Open:   close - 1,
			High:   close + 1,
			Low:    close - 2,
			Close:  close,
			Volume: 1000,
		}
	}
	return out
}

func assertAscending(t *testing.T, candles []model.Candle) {
	t.Helper()
	for i := 1; i < len(candles); i++ {
		if !candles[i-1].Time.Before(candles[i].Time) {
			t.Fatalf("candles not strictly ascending at %d: %v >= %v",
				i, candles[i-1].Time, candles[i].Time)
		}
	}
}

func TestMerge_Disjoint(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	existing := dailyCandles(start, 5, 100)
	incoming := dailyCandles(start.Add(5*24*time.Hour), 3, 110)

	merged := Merge(existing, incoming)
	if len(merged) != 8 {
		t.Fatalf("expected union of 8 distinct timestamps, got %d", len(merged))
	}
	assertAscending(t, merged)
}

func TestMerge_OverlapIncomingWins(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	existing := dailyCandles(start, 1000, 100)
	// Three bars starting at the last cached day: one revision + two new.
	incoming := dailyCandles(start.Add(999*24*time.Hour), 3, 200)

	merged := Merge(existing, incoming)
	if len(merged) != 1002 {
		t.Fatalf("expected 1002 distinct timestamps (1000 + 3 - 1 superseded), got %d", len(merged))
	}
	assertAscending(t, merged)

	revised := merged[999]
	if revised.Close != 200 {
		t.Errorf("expected incoming candle to supersede cached bar, close=%v", revised.Close)
	}
}

func TestMerge_EmptySides(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	series := dailyCandles(start, 10, 100)

	if got := Merge(nil, series); len(got) != 10 {
		t.Errorf("merge into empty cache: expected 10 candles, got %d", len(got))
	}
	if got := Merge(series, nil); len(got) != 10 {
		t.Errorf("merge of empty fetch: expected 10 candles, got %d", len(got))
	}
	if got := Merge(nil, nil); len(got) != 0 {
		t.Errorf("merge of two empty series: expected none, got %d", len(got))
	}
}

func TestMerge_GapsPreserved(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	existing := dailyCandles(start, 3, 100)
	// Incoming resumes after a two-day hole; the hole must not be filled.
	incoming := dailyCandles(start.Add(5*24*time.Hour), 2, 105)

	merged := Merge(existing, incoming)
	if len(merged) != 5 {
		t.Fatalf("expected 5 candles with the gap left open, got %d", len(merged))
	}
	gap := merged[3].Time.Sub(merged[2].Time)
	if gap != 3*24*time.Hour {
		t.Errorf("expected 3-day jump across the gap, got %v", gap)
	}
}

func TestMerge_IncomingDuplicates(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	a := dailyCandles(start, 3, 100)
	b := dailyCandles(start, 3, 101)

	merged := Merge(nil, append(a, b...))
	if len(merged) != 3 {
		t.Fatalf("expected duplicate timestamps collapsed to 3, got %d", len(merged))
	}
	assertAscending(t, merged)
	if merged[0].Close != 101 {
		t.Errorf("expected last duplicate kept, close=%v", merged[0].Close)
	}
}
