package cache

import (
	"sort"

	"github.com/dvazquezd/StockLens/internal/model"
)

// Merge combines a cached series with newly fetched candles into a single
// ascending, duplicate-free series. On a timestamp collision the incoming
// candle wins, since a newer fetch supersedes the cached value of a bar the
// exchange may have revised. Internal gaps are preserved as-is; filling
// missing bars is a caller concern.
func Merge(existing, incoming []model.Candle) []model.Candle {
	if len(incoming) == 0 {
		return existing
	}
	if len(existing) == 0 {
		return dedupe(incoming)
	}

	byTime := make(map[int64]model.Candle, len(existing)+len(incoming))
	for _, c := range existing {
		byTime[c.Time.Unix()] = c
	}
	for _, c := range incoming {
		byTime[c.Time.Unix()] = c
	}

	merged := make([]model.Candle, 0, len(byTime))
	for _, c := range byTime {
		merged = append(merged, c)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Time.Before(merged[j].Time) })
	return merged
}

// dedupe sorts candles ascending and drops repeated timestamps, keeping the
// last occurrence.
func dedupe(candles []model.Candle) []model.Candle {
	out := make([]model.Candle, len(candles))
	copy(out, candles)
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
