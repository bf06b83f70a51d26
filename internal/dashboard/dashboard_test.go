package dashboard

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dvazquezd/StockLens/internal/model"
	"github.com/dvazquezd/StockLens/internal/store"
)

func seedSeries(t *testing.T, db *store.DB, key model.SeriesKey, rec string) {
	t.Helper()
	start := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	var candles []model.Candle
	var signals []model.SignalRow
	for i := 0; i < 10; i++ {
		ts := start.Add(time.Duration(i) * 24 * time.Hour)
		candles = append(candles, model.Candle{
			Time: ts, Open: 100, High: 101, Low: 99, Close: 100 + float64(i), Volume: 1000,
		})
		signals = append(signals, model.SignalRow{
			Time: ts, Close: 100 + float64(i), Score: 1, Recommendation: rec,
		})
	}
	if _, err := db.WriteCandles(key, candles); err != nil {
		t.Fatalf("seeding candles: %v", err)
	}
	if _, err := db.WriteSignals(key, signals); err != nil {
		t.Fatalf("seeding signals: %v", err)
	}
}

func TestGenerate(t *testing.T) {
	dir := t.TempDir()
	db, err := store.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	defer db.Close()

	btc := model.SeriesKey{Symbol: "BTCUSDT", Source: model.SourceBinance, Interval: model.Interval1d}
	spx := model.SeriesKey{Symbol: "SPX500", Source: model.SourceYahoo, Interval: model.Interval1d}
	seedSeries(t, db, btc, model.RecommendBuy)
	seedSeries(t, db, spx, model.RecommendHold)

	runID, err := db.CreateAgentRun(&model.AgentRun{
		Timestamp: time.Now(), AgentType: "local", Status: "success", AssetsProcessed: 2,
	})
	if err != nil {
		t.Fatalf("creating agent run: %v", err)
	}
	if err := db.InsertRecommendation(runID, &model.Recommendation{
		Symbol: "BTCUSDT", Recommendation: model.RecommendBuy, Rationale: "Buy signal; bullish momentum", Price: 109,
	}); err != nil {
		t.Fatalf("inserting recommendation: %v", err)
	}

	out := filepath.Join(dir, "site")
	if err := New(db, out).Generate([]model.SeriesKey{btc, spx}); err != nil {
		t.Fatalf("generate: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(out, "index.html"))
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	html := string(data)

	for _, want := range []string{"BTCUSDT", "SPX500", "bullish momentum", "Technical analysis pending."} {
		if !strings.Contains(html, want) {
			t.Errorf("dashboard missing %q", want)
		}
	}
	if !strings.Contains(html, `<span class="rec buy">buy</span>`) {
		t.Error("buy badge not rendered")
	}
}

func TestGenerate_NoSignals(t *testing.T) {
	dir := t.TempDir()
	db, err := store.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	defer db.Close()

	out := filepath.Join(dir, "site")
	key := model.SeriesKey{Symbol: "AAPL", Source: model.SourceFinnhub, Interval: model.Interval1d}
	if err := New(db, out).Generate([]model.SeriesKey{key}); err != nil {
		t.Fatalf("generate on empty store must not fail: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "index.html")); err != nil {
		t.Errorf("index.html should exist even with no data: %v", err)
	}
}
