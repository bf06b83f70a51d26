package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dvazquezd/StockLens/internal/model"
)

// YahooFetcher downloads candles from the Yahoo Finance public chart API.
type YahooFetcher struct {
	Client    *http.Client
	SymbolMap map[string]string // maps internal symbol to Yahoo ticker
}

// NewYahooFetcher creates a Yahoo Finance fetcher with optional proxy support.
func NewYahooFetcher(proxyURL string) *YahooFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &YahooFetcher{
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		SymbolMap: map[string]string{
			"SPX500": "^GSPC",
			"SPX":    "^GSPC",
			"SP500":  "^GSPC",
		},
	}
}

func (f *YahooFetcher) Name() string { return "yahoo" }

func (f *YahooFetcher) yahooSymbol(symbol string) string {
	if mapped, ok := f.SymbolMap[symbol]; ok {
		return mapped
	}
	return symbol
}

// yahooInterval maps our interval names onto Yahoo's.
func yahooInterval(interval model.Interval) string {
	switch interval {
	case model.Interval1w:
		return "1wk"
	case model.Interval60m:
		return "60m"
	default:
		return string(interval)
	}
}

// yahooRange picks the smallest chart range that covers limit bars.
func yahooRange(interval model.Interval, limit int) string {
	span := time.Duration(limit) * interval.Duration()
	switch {
	case span <= 30*24*time.Hour:
		return "1mo"
	case span <= 90*24*time.Hour:
		return "3mo"
	case span <= 180*24*time.Hour:
		return "6mo"
	case span <= 365*24*time.Hour:
		return "1y"
	case span <= 2*365*24*time.Hour:
		return "2y"
	case span <= 5*365*24*time.Hour:
		return "5y"
	default:
		return "10y"
	}
}

// yahooChart is the response structure from the Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []interface{} `json:"open"`
					High   []interface{} `json:"high"`
					Low    []interface{} `json:"low"`
					Close  []interface{} `json:"close"`
					Volume []interface{} `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func toFloat(v interface{}) float64 {
	if v == nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

func (f *YahooFetcher) Fetch(ctx context.Context, key model.SeriesKey, from *time.Time, limit int) ([]model.Candle, error) {
	base := fmt.Sprintf("https://query1.finance.yahoo.com/v8/finance/chart/%s?interval=%s",
		url.PathEscape(f.yahooSymbol(key.Symbol)), yahooInterval(key.Interval))

	var u string
	if from != nil {
		u = fmt.Sprintf("%s&period1=%d&period2=%d", base, from.Unix(), time.Now().Unix())
	} else {
		u = fmt.Sprintf("%s&range=%s", base, yahooRange(key.Interval, limit))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yahoo read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo: status %d, body: %s", resp.StatusCode, string(body))
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("yahoo decode: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 {
		return nil, fmt.Errorf("yahoo: no data returned for %s", key)
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	bars := make([]model.Candle, 0, len(result.Timestamp))

	for i, ts := range result.Timestamp {
		bars = append(bars, model.Candle{
			Time:   time.Unix(ts, 0).UTC(),
			Open:   toFloat(quote.Open[i]),
			High:   toFloat(quote.High[i]),
			Low:    toFloat(quote.Low[i]),
			Close:  toFloat(quote.Close[i]),
			Volume: toFloat(quote.Volume[i]),
		})
	}

	bars = Normalize(bars)
	if from == nil && limit > 0 && len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	return bars, nil
}
