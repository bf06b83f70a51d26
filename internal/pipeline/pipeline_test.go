package pipeline

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dvazquezd/StockLens/internal/config"
	"github.com/dvazquezd/StockLens/internal/ingest"
	"github.com/dvazquezd/StockLens/internal/model"
	"github.com/dvazquezd/StockLens/internal/store"
)

// marketCandles ends one hour before now so a freshly written daily series
// counts as fresh on the next access.
func marketCandles(n int) []model.Candle {
	start := time.Now().UTC().Add(-time.Duration(n-1)*24*time.Hour - time.Hour)
	out := make([]model.Candle, n)
	price := 100.0
	for i := 0; i < n; i++ {
		price += 2 * math.Sin(float64(i)/5)
		out[i] = model.Candle{
			Time:   start.Add(time.Duration(i) * 24 * time.Hour),
			Open:   price - 0.5,
			High:   price + 1,
			Low:    price - 1,
			Close:  price,
			Volume: 1000 + float64(i%5)*50,
		}
	}
	return out
}

func testPipeline(t *testing.T, mock *ingest.MockFetcher) (*Pipeline, *store.DB, *config.Config) {
	t.Helper()
	dir := t.TempDir()

	cfg, err := config.Load(filepath.Join(dir, "missing.yaml"))
	if err != nil {
		t.Fatalf("loading defaults: %v", err)
	}
	cfg.Database.SQLitePath = filepath.Join(dir, "test.db")
	cfg.Dashboard.OutputDir = filepath.Join(dir, "site")
	cfg.Assets = []config.Asset{
		{Symbol: "BTCUSDT", Source: "binance", Interval: "1d", Limit: 120},
	}

	db, err := store.Open(cfg.Database.SQLitePath)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	p, err := New(cfg, db)
	if err != nil {
		t.Fatalf("building pipeline: %v", err)
	}
	p.fetchers[model.SourceBinance] = mock
	return p, db, cfg
}

func TestRun_EndToEnd(t *testing.T) {
	mock := &ingest.MockFetcher{Candles: marketCandles(120)}
	p, db, cfg := testPipeline(t, mock)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if mock.Calls != 1 {
		t.Errorf("expected one fetch, got %d", mock.Calls)
	}

	key := cfg.Assets[0].Key()
	meta, err := db.LatestMeta(key)
	if err != nil || meta == nil {
		t.Fatalf("candles not persisted: meta=%v err=%v", meta, err)
	}
	if meta.Rows != 120 {
		t.Errorf("persisted rows = %d, want 120", meta.Rows)
	}

	sigs, err := db.LatestSignals(key, 10)
	if err != nil {
		t.Fatalf("reading signals: %v", err)
	}
	if len(sigs) == 0 {
		t.Error("signals not persisted")
	}

	runs, err := db.AgentRunSummaries(1)
	if err != nil || len(runs) != 1 {
		t.Fatalf("agent run not recorded: %v", err)
	}
	if runs[0].Status != "success" || runs[0].AssetsProcessed != 1 {
		t.Errorf("run = %+v", runs[0])
	}

	recs, err := db.RecommendationHistory("BTCUSDT", 1)
	if err != nil || len(recs) != 1 {
		t.Fatalf("recommendation not recorded: %v", err)
	}
	if recs[0].AgentType != "local" {
		t.Errorf("agent type = %q", recs[0].AgentType)
	}

	if _, err := os.Stat(filepath.Join(cfg.Dashboard.OutputDir, "index.html")); err != nil {
		t.Errorf("dashboard not generated: %v", err)
	}
}

func TestRun_SecondRunUsesCache(t *testing.T) {
	mock := &ingest.MockFetcher{Candles: marketCandles(120)}
	p, _, _ := testPipeline(t, mock)

	ctx := context.Background()
	if err := p.Run(ctx); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := p.Run(ctx); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if mock.Calls != 1 {
		t.Errorf("fresh cache must not refetch, got %d calls", mock.Calls)
	}
}

func TestRun_AllAssetsFailed(t *testing.T) {
	mock := &ingest.MockFetcher{Err: context.DeadlineExceeded}
	p, db, _ := testPipeline(t, mock)

	if err := p.Run(context.Background()); err == nil {
		t.Fatal("expected error when every asset fails")
	}

	runs, err := db.AgentRunSummaries(1)
	if err != nil || len(runs) != 1 {
		t.Fatalf("failed run must still be recorded: %v", err)
	}
	if runs[0].Status != "failed" || runs[0].AssetsFailed != 1 {
		t.Errorf("run = %+v", runs[0])
	}
}
