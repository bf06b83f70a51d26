package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/jpillora/backoff"

	"github.com/dvazquezd/StockLens/internal/model"
)

const finnhubBase = "https://finnhub.io/api/v1"

// FinnhubFetcher downloads candles from the Finnhub stock candle endpoint.
// Rate-limited responses are retried with exponential backoff.
type FinnhubFetcher struct {
	Client     *http.Client
	APIKey     string
	MaxRetries int
}

// NewFinnhubFetcher creates a Finnhub fetcher.
func NewFinnhubFetcher(apiKey string) *FinnhubFetcher {
	return &FinnhubFetcher{
		Client:     &http.Client{Timeout: 30 * time.Second},
		APIKey:     apiKey,
		MaxRetries: 4,
	}
}

func (f *FinnhubFetcher) Name() string { return "finnhub" }

// finnhubResolution maps our intervals onto Finnhub resolution codes.
func finnhubResolution(interval model.Interval) string {
	switch interval {
	case model.Interval1d:
		return "D"
	case model.Interval1w:
		return "W"
	case model.Interval1mo:
		return "M"
	case model.Interval1m, model.Interval5m, model.Interval15m, model.Interval30m, model.Interval60m:
		s := string(interval)
		return s[:len(s)-1]
	default:
		return "D"
	}
}

// finnhubCandles is the /stock/candle response: column arrays plus a status.
type finnhubCandles struct {
	Status  string    `json:"s"`
	Times   []int64   `json:"t"`
	Opens   []float64 `json:"o"`
	Highs   []float64 `json:"h"`
	Lows    []float64 `json:"l"`
	Closes  []float64 `json:"c"`
	Volumes []float64 `json:"v"`
}

func (f *FinnhubFetcher) Fetch(ctx context.Context, key model.SeriesKey, from *time.Time, limit int) ([]model.Candle, error) {
	end := time.Now()
	var start time.Time
	if from != nil {
		start = *from
	} else {
		start = end.Add(-time.Duration(limit) * key.Interval.Duration())
	}

	params := url.Values{}
	params.Set("symbol", key.Symbol)
	params.Set("resolution", finnhubResolution(key.Interval))
	params.Set("from", fmt.Sprintf("%d", start.Unix()))
	params.Set("to", fmt.Sprintf("%d", end.Unix()))
	params.Set("token", f.APIKey)
	u := fmt.Sprintf("%s/stock/candle?%s", finnhubBase, params.Encode())

	body, err := f.getWithRetry(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("finnhub fetch for %s: %w", key, err)
	}

	var data finnhubCandles
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("finnhub decode for %s: %w", key, err)
	}
	if data.Status != "ok" {
		// "no_data" is a valid empty answer, anything else is an error.
		if data.Status == "no_data" {
			return nil, nil
		}
		return nil, fmt.Errorf("finnhub api status %q for %s", data.Status, key)
	}

	candles := make([]model.Candle, 0, len(data.Times))
	for i, ts := range data.Times {
		candles = append(candles, model.Candle{
			Time:   time.Unix(ts, 0).UTC(),
			Open:   data.Opens[i],
			High:   data.Highs[i],
			Low:    data.Lows[i],
			Close:  data.Closes[i],
			Volume: data.Volumes[i],
		})
	}

	candles = Normalize(candles)
	if limit > 0 && len(candles) > limit && from == nil {
		candles = candles[len(candles)-limit:]
	}
	return candles, nil
}

// getWithRetry performs a GET, retrying transport errors and HTTP 429 with
// exponential backoff.
func (f *FinnhubFetcher) getWithRetry(ctx context.Context, u string) ([]byte, error) {
	b := &backoff.Backoff{Min: time.Second, Max: 30 * time.Second, Factor: 2, Jitter: true}

	var lastErr error
	for attempt := 0; attempt <= f.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := b.Duration()
			log.Printf("[WARN] finnhub request failed (attempt %d/%d): %v, retrying in %v",
				attempt, f.MaxRetries, lastErr, wait)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		resp, err := f.Client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read body: %w", err)
			continue
		}
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("rate limited: status 429")
			continue
		case resp.StatusCode != http.StatusOK:
			return nil, fmt.Errorf("status %d, body: %s", resp.StatusCode, string(body))
		}
		return body, nil
	}
	return nil, fmt.Errorf("all %d retries exhausted: %w", f.MaxRetries, lastErr)
}
