package ingest

import (
	"context"
	"sort"
	"time"

	"github.com/dvazquezd/StockLens/internal/model"
)

// Fetcher downloads candles from one external provider. Implementations
// return candles normalized to ascending order with no duplicate
// timestamps; provider protocol details (endpoints, pagination, rate
// limits) stay behind this interface.
type Fetcher interface {
	// Fetch returns up to limit candles. A nil from means the most recent
	// bars; otherwise bars from the given instant (inclusive) forward.
	Fetch(ctx context.Context, key model.SeriesKey, from *time.Time, limit int) ([]model.Candle, error)
	Name() string
}

// Normalize sorts candles ascending, collapses duplicate timestamps
// (keeping the last occurrence) and drops empty bars such as exchange
// holidays reported as all-zero rows.
func Normalize(candles []model.Candle) []model.Candle {
	out := make([]model.Candle, 0, len(candles))
	for _, c := range candles {
		if c.Open == 0 && c.High == 0 && c.Low == 0 && c.Close == 0 {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })

	n := 0
	for i := 0; i < len(out); i++ {
		if n > 0 && out[i].Time.Equal(out[n-1].Time) {
			out[n-1] = out[i]
			continue
		}
		out[n] = out[i]
		n++
	}
	return out[:n]
}

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Candles []model.Candle
	Err     error
	Calls   int
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) Fetch(_ context.Context, _ model.SeriesKey, from *time.Time, limit int) ([]model.Candle, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	candles := m.Candles
	if from != nil {
		i := sort.Search(len(candles), func(i int) bool { return !candles[i].Time.Before(*from) })
		candles = candles[i:]
	}
	if limit > 0 && len(candles) > limit {
		if from != nil {
			candles = candles[:limit]
		} else {
			candles = candles[len(candles)-limit:]
		}
	}
	return candles, nil
}
