package ingest

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"

	"github.com/dvazquezd/StockLens/internal/model"
)

// BinanceFetcher downloads klines through the Binance spot API. Credentials
// are optional; kline endpoints are public.
type BinanceFetcher struct {
	client *binance.Client
}

// NewBinanceFetcher creates a Binance fetcher.
func NewBinanceFetcher(apiKey, apiSecret string) *BinanceFetcher {
	return &BinanceFetcher{client: binance.NewClient(apiKey, apiSecret)}
}

func (f *BinanceFetcher) Name() string { return "binance" }

func (f *BinanceFetcher) Fetch(ctx context.Context, key model.SeriesKey, from *time.Time, limit int) ([]model.Candle, error) {
	svc := f.client.NewKlinesService().
		Symbol(key.Symbol).
		Interval(string(key.Interval)).
		Limit(limit)
	if from != nil {
		svc = svc.StartTime(from.UnixMilli())
	}

	klines, err := svc.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance klines for %s: %w", key, err)
	}

	candles := make([]model.Candle, 0, len(klines))
	for _, k := range klines {
		c, err := klineToCandle(k)
		if err != nil {
			return nil, fmt.Errorf("binance kline for %s: %w", key, err)
		}
		candles = append(candles, c)
	}
	return Normalize(candles), nil
}

func klineToCandle(k *binance.Kline) (model.Candle, error) {
	fields := [5]string{k.Open, k.High, k.Low, k.Close, k.Volume}
	var vals [5]float64
	for i, s := range fields {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return model.Candle{}, fmt.Errorf("parse %q: %w", s, err)
		}
		vals[i] = v
	}
	return model.Candle{
		Time:   time.Unix(k.OpenTime/1000, 0).UTC(),
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}
