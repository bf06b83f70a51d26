package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/dvazquezd/StockLens/internal/agent"
	"github.com/dvazquezd/StockLens/internal/cache"
	"github.com/dvazquezd/StockLens/internal/config"
	"github.com/dvazquezd/StockLens/internal/dashboard"
	"github.com/dvazquezd/StockLens/internal/indicator"
	"github.com/dvazquezd/StockLens/internal/ingest"
	"github.com/dvazquezd/StockLens/internal/model"
	"github.com/dvazquezd/StockLens/internal/signal"
	"github.com/dvazquezd/StockLens/internal/store"
)

const snapshotSignals = 10

// Pipeline runs the full refresh for every configured asset: cached data
// retrieval, indicator and signal computation, agent analysis and the
// dashboard rebuild.
type Pipeline struct {
	cfg      *config.Config
	db       *store.DB
	cache    *cache.Cache
	agent    agent.Agent
	dash     *dashboard.Generator
	fetchers map[model.Source]ingest.Fetcher
}

// New wires a pipeline from configuration. The store is owned by the
// caller and not closed here.
func New(cfg *config.Config, db *store.DB) (*Pipeline, error) {
	eval := &cache.Evaluator{
		MinAge:    time.Duration(cfg.Cache.MinAgeMinutes) * time.Minute,
		MaxWindow: cfg.Cache.MaxFetchWindow,
	}

	ag, err := agent.New(cfg.Agent.Provider, cfg.Agent.Model, cfg.Agent.APIKey)
	if err != nil {
		return nil, fmt.Errorf("creating agent: %w", err)
	}

	fetchers := map[model.Source]ingest.Fetcher{
		model.SourceBinance: ingest.NewBinanceFetcher(cfg.Binance.APIKey, cfg.Binance.SecretKey),
		model.SourceYahoo:   ingest.NewYahooFetcher(cfg.Proxy),
	}
	if cfg.Finnhub.APIKey != "" {
		fetchers[model.SourceFinnhub] = ingest.NewFinnhubFetcher(cfg.Finnhub.APIKey)
	}

	return &Pipeline{
		cfg:      cfg,
		db:       db,
		cache:    cache.NewWithEvaluator(db, eval),
		agent:    ag,
		dash:     dashboard.New(db, cfg.Dashboard.OutputDir),
		fetchers: fetchers,
	}, nil
}

// Run processes every configured asset, runs the analysis agent over the
// collected snapshots and regenerates the dashboard. Per-asset failures
// are logged and counted; only a fully failed run returns an error.
func (p *Pipeline) Run(ctx context.Context) error {
	started := time.Now()
	var snapshots []agent.Snapshot
	failed := 0

	for _, asset := range p.cfg.Assets {
		log.Printf("[INFO] processing %s (%s)", asset.Symbol, asset.Source)
		snap, err := p.processAsset(ctx, asset)
		if err != nil {
			log.Printf("[ERROR] %s: %v", asset.Symbol, err)
			failed++
			continue
		}
		snapshots = append(snapshots, snap)
	}

	if len(snapshots) == 0 {
		p.recordRun(started, 0, failed, "failed", "all assets failed")
		return fmt.Errorf("pipeline: all %d assets failed", failed)
	}

	if err := p.runAgent(ctx, started, snapshots, failed); err != nil {
		log.Printf("[ERROR] agent analysis: %v", err)
	}

	keys := make([]model.SeriesKey, 0, len(p.cfg.Assets))
	for _, a := range p.cfg.Assets {
		keys = append(keys, a.Key())
	}
	if err := p.dash.Generate(keys); err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}

	log.Printf("[INFO] pipeline done: %d processed, %d failed in %s",
		len(snapshots), failed, time.Since(started).Round(time.Millisecond))
	return nil
}

// processAsset refreshes one asset's series and derives its indicators
// and signals. A persist failure on the cache write-back degrades to a
// warning: the merged in-memory series is still analyzable.
func (p *Pipeline) processAsset(ctx context.Context, asset config.Asset) (agent.Snapshot, error) {
	key := asset.Key()
	fetcher, ok := p.fetchers[key.Source]
	if !ok {
		return agent.Snapshot{}, fmt.Errorf("no fetcher for source %q", key.Source)
	}

	res, err := p.cache.GetSeries(ctx, key, asset.Limit, *p.cfg.Cache.UseCache, fetcher.Fetch)
	if err != nil {
		if !errors.Is(err, cache.ErrPersist) {
			return agent.Snapshot{}, err
		}
		log.Printf("[WARN] %v", err)
	}
	if res.Stale {
		log.Printf("[WARN] %s: serving stale cached data", key)
	}

	rows, err := indicator.Compute(res.Candles)
	if err != nil {
		return agent.Snapshot{}, fmt.Errorf("indicators: %w", err)
	}
	sigs := signal.Generate(rows)

	if n, err := p.db.WriteIndicators(key, rows); err != nil {
		return agent.Snapshot{}, fmt.Errorf("persist indicators: %w", err)
	} else if n < len(rows) {
		log.Printf("[WARN] %s: %d of %d indicator rows persisted", key, n, len(rows))
	}
	if _, err := p.db.WriteSignals(key, sigs); err != nil {
		return agent.Snapshot{}, fmt.Errorf("persist signals: %w", err)
	}

	snap := agent.Snapshot{
		Symbol:     key.Symbol,
		Indicators: rows[len(rows)-1],
		Signals:    sigs,
	}
	if len(snap.Signals) > snapshotSignals {
		snap.Signals = snap.Signals[len(snap.Signals)-snapshotSignals:]
	}
	return snap, nil
}

// runAgent analyzes the snapshots and persists the run. When an LLM agent
// fails (offline, bad key, unparseable reply) the run falls back to the
// local rule-based agent rather than producing nothing.
func (p *Pipeline) runAgent(ctx context.Context, started time.Time, snapshots []agent.Snapshot, failed int) error {
	ag := p.agent
	recs, err := ag.Analyze(ctx, snapshots)
	if err != nil && ag.Kind().Type == "llm" {
		log.Printf("[WARN] llm agent failed, falling back to local: %v", err)
		ag = &agent.LocalAgent{}
		recs, err = ag.Analyze(ctx, snapshots)
	}
	if err != nil {
		p.recordRun(started, len(snapshots), failed, "failed", err.Error())
		return err
	}

	status := "success"
	if failed > 0 {
		status = "partial"
	}
	runID := p.recordRunAs(ag.Kind(), started, len(snapshots), failed, status, "")
	if runID == 0 {
		return nil
	}
	for i := range recs {
		if err := p.db.InsertRecommendation(runID, &recs[i]); err != nil {
			log.Printf("[ERROR] %v", err)
		}
	}
	log.Printf("[INFO] agent produced %d recommendations", len(recs))
	return nil
}

func (p *Pipeline) recordRun(started time.Time, processed, failed int, status, errMsg string) {
	p.recordRunAs(p.agent.Kind(), started, processed, failed, status, errMsg)
}

func (p *Pipeline) recordRunAs(kind agent.Kind, started time.Time, processed, failed int, status, errMsg string) int64 {
	id, err := p.db.CreateAgentRun(&model.AgentRun{
		Timestamp:       started,
		AgentType:       kind.Type,
		LLMProvider:     kind.Provider,
		LLMModel:        kind.Model,
		AssetsProcessed: processed,
		AssetsFailed:    failed,
		Duration:        time.Since(started),
		Status:          status,
		ErrorMessage:    errMsg,
	})
	if err != nil {
		log.Printf("[ERROR] record agent run: %v", err)
		return 0
	}
	return id
}
