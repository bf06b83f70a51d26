package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Source identifies an external market-data provider.
type Source string

const (
	SourceBinance Source = "binance"
	SourceYahoo   Source = "yahoo"
	SourceFinnhub Source = "finnhub"
)

// Interval is the bucket width of a time series (e.g. "1d", "15m").
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval30m Interval = "30m"
	Interval60m Interval = "60m"
	Interval1d  Interval = "1d"
	Interval1w  Interval = "1w"
	Interval1mo Interval = "1mo"
)

// Duration returns the bar period for the interval. Unknown intervals
// default to one day, matching the provider default.
func (i Interval) Duration() time.Duration {
	d, err := i.Parse()
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

// Parse converts the interval string to its bar duration, or reports that
// the interval is not one of the supported forms.
func (i Interval) Parse() (time.Duration, error) {
	s := strings.ToLower(strings.TrimSpace(string(i)))

	unit := time.Duration(0)
	num := ""
	switch {
	case strings.HasSuffix(s, "mo"):
		unit, num = 30*24*time.Hour, strings.TrimSuffix(s, "mo")
	case strings.HasSuffix(s, "w"):
		unit, num = 7*24*time.Hour, strings.TrimSuffix(s, "w")
	case strings.HasSuffix(s, "d"):
		unit, num = 24*time.Hour, strings.TrimSuffix(s, "d")
	case strings.HasSuffix(s, "h"):
		unit, num = time.Hour, strings.TrimSuffix(s, "h")
	case strings.HasSuffix(s, "m"):
		unit, num = time.Minute, strings.TrimSuffix(s, "m")
	default:
		return 0, fmt.Errorf("invalid interval %q", i)
	}

	n, err := strconv.Atoi(num)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid interval %q", i)
	}
	return time.Duration(n) * unit, nil
}

// SeriesKey identifies one logical time series.
type SeriesKey struct {
	Symbol   string
	Source   Source
	Interval Interval
}

func (k SeriesKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Symbol, k.Source, k.Interval)
}

// Candle represents a single OHLCV observation. Within a series timestamps
// are strictly increasing and aligned to the interval's period boundary.
type Candle struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// SeriesMeta is the persisted metadata for one cached series.
type SeriesMeta struct {
	Latest      time.Time
	Rows        int
	RefreshedAt time.Time
}
