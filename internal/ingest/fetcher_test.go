package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/dvazquezd/StockLens/internal/model"
)

func bars(start time.Time, n int) []model.Candle {
	out := make([]model.Candle, n)
	for i := 0; i < n; i++ {
		out[i] = model.Candle{
			Time:  start.Add(time.Duration(i) * 24 * time.Hour),
			Open:  100, High: 102, Low: 99, Close: 101, Volume: 10,
		}
	}
	return out
}

func TestNormalize(t *testing.T) {
	start := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	in := []model.Candle{
		{Time: start.Add(48 * time.Hour), Open: 1, High: 2, Low: 1, Close: 2, Volume: 5},
		{Time: start, Open: 1, High: 2, Low: 1, Close: 1, Volume: 5},
		{Time: start.Add(24 * time.Hour)}, // holiday null bar, dropped
		{Time: start, Open: 1, High: 3, Low: 1, Close: 3, Volume: 5},
	}

	got := Normalize(in)
	if len(got) != 2 {
		t.Fatalf("expected 2 candles after normalize, got %d", len(got))
	}
	if !got[0].Time.Equal(start) || !got[1].Time.Equal(start.Add(48*time.Hour)) {
		t.Errorf("unexpected ordering: %v, %v", got[0].Time, got[1].Time)
	}
	if got[0].Close != 3 {
		t.Errorf("expected last duplicate kept, close=%v", got[0].Close)
	}
}

func TestMockFetcher_FromAndLimit(t *testing.T) {
	start := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	m := &MockFetcher{Candles: bars(start, 10)}
	key := model.SeriesKey{Symbol: "X", Source: model.SourceYahoo, Interval: model.Interval1d}

	from := start.Add(7 * 24 * time.Hour)
	got, err := m.Fetch(context.Background(), key, &from, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 candles from inclusive start, got %d", len(got))
	}
	if !got[0].Time.Equal(from) {
		t.Errorf("expected inclusive start, first=%v", got[0].Time)
	}

	got, err = m.Fetch(context.Background(), key, nil, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 4 || !got[3].Time.Equal(start.Add(9*24*time.Hour)) {
		t.Fatalf("expected 4 most recent candles, got %d", len(got))
	}
	if m.Calls != 2 {
		t.Errorf("expected 2 recorded calls, got %d", m.Calls)
	}
}

func TestFinnhubResolution(t *testing.T) {
	tests := []struct {
		interval model.Interval
		want     string
	}{
		{model.Interval1d, "D"},
		{model.Interval1w, "W"},
		{model.Interval1mo, "M"},
		{model.Interval1m, "1"},
		{model.Interval15m, "15"},
		{model.Interval60m, "60"},
	}
	for _, tt := range tests {
		if got := finnhubResolution(tt.interval); got != tt.want {
			t.Errorf("resolution(%s) = %q, want %q", tt.interval, got, tt.want)
		}
	}
}

func TestYahooInterval(t *testing.T) {
	if got := yahooInterval(model.Interval1w); got != "1wk" {
		t.Errorf("expected weekly mapped to 1wk, got %q", got)
	}
	if got := yahooInterval(model.Interval1d); got != "1d" {
		t.Errorf("expected daily passthrough, got %q", got)
	}
}
