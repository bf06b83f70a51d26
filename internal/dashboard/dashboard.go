package dashboard

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dvazquezd/StockLens/internal/model"
	"github.com/dvazquezd/StockLens/internal/store"
)

const trendDays = 30

// Generator renders a static HTML dashboard from the stored signals.
type Generator struct {
	db  *store.DB
	out string
}

func New(db *store.DB, outputDir string) *Generator {
	return &Generator{db: db, out: outputDir}
}

type assetCard struct {
	Symbol         string
	Price          string
	Score          int
	Recommendation string
	Rationale      string
	ChartID        string
	ChartData      template.JS
}

type pageData struct {
	GeneratedAt string
	TotalAssets int
	BuyCount    int
	SellCount   int
	HoldCount   int
	Assets      []assetCard
	TrendData   template.JS
}

// Generate writes index.html for the given assets. Assets with no stored
// signals are skipped with a warning.
func (g *Generator) Generate(assets []model.SeriesKey) error {
	if err := os.MkdirAll(g.out, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	page := pageData{GeneratedAt: time.Now().UTC().Format("2006-01-02 15:04:05 UTC")}
	recByDate := map[string]map[string]int{}

	for _, key := range assets {
		signals, err := g.db.LatestSignals(key, trendDays)
		if err != nil {
			return fmt.Errorf("loading signals for %s: %w", key, err)
		}
		if len(signals) == 0 {
			log.Printf("[WARN] no signals for %s, skipping dashboard card", key)
			continue
		}
		latest := signals[len(signals)-1]

		for _, s := range signals {
			date := s.Time.UTC().Format("2006-01-02")
			if recByDate[date] == nil {
				recByDate[date] = map[string]int{}
			}
			recByDate[date][s.Recommendation]++
		}

		card := assetCard{
			Symbol:         key.Symbol,
			Price:          fmt.Sprintf("%.2f", latest.Close),
			Score:          latest.Score,
			Recommendation: latest.Recommendation,
			Rationale:      g.rationale(key.Symbol),
			ChartID:        fmt.Sprintf("chart-%d", len(page.Assets)),
		}
		chart, err := g.priceChart(key)
		if err != nil {
			return err
		}
		card.ChartData = chart

		switch latest.Recommendation {
		case model.RecommendBuy:
			page.BuyCount++
		case model.RecommendSell:
			page.SellCount++
		default:
			page.HoldCount++
		}
		page.Assets = append(page.Assets, card)
	}
	page.TotalAssets = len(page.Assets)

	trend, err := trendTraces(recByDate)
	if err != nil {
		return err
	}
	page.TrendData = trend

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, page); err != nil {
		return fmt.Errorf("rendering dashboard: %w", err)
	}
	path := filepath.Join(g.out, "index.html")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing dashboard: %w", err)
	}
	log.Printf("[INFO] dashboard generated: %s (%d assets)", path, page.TotalAssets)
	return nil
}

// rationale prefers the latest agent recommendation; falls back to a
// placeholder when no agent has run for the symbol yet.
func (g *Generator) rationale(symbol string) string {
	recs, err := g.db.RecommendationHistory(symbol, 1)
	if err != nil || len(recs) == 0 || recs[0].Rationale == "" {
		return "Technical analysis pending."
	}
	return recs[0].Rationale
}

type plotlyTrace struct {
	X         []string       `json:"x"`
	Y         []float64      `json:"y"`
	Type      string         `json:"type"`
	Mode      string         `json:"mode"`
	Name      string         `json:"name,omitempty"`
	Line      map[string]any `json:"line,omitempty"`
	Fill      string         `json:"fill,omitempty"`
	FillColor string         `json:"fillcolor,omitempty"`
}

func (g *Generator) priceChart(key model.SeriesKey) (template.JS, error) {
	candles, err := g.db.ReadCandles(key, nil, nil, trendDays)
	if err != nil {
		return "", fmt.Errorf("loading candles for %s: %w", key, err)
	}

	trace := plotlyTrace{
		Type:      "scatter",
		Mode:      "lines",
		Line:      map[string]any{"color": "#1A1A1A", "width": 1.5},
		Fill:      "tozeroy",
		FillColor: "rgba(26, 26, 26, 0.1)",
	}
	for _, c := range candles {
		trace.X = append(trace.X, c.Time.UTC().Format("2006-01-02"))
		trace.Y = append(trace.Y, c.Close)
	}

	data, err := json.Marshal([]plotlyTrace{trace})
	if err != nil {
		return "", fmt.Errorf("encoding chart for %s: %w", key, err)
	}
	return template.JS(data), nil
}

func trendTraces(recByDate map[string]map[string]int) (template.JS, error) {
	dates := make([]string, 0, len(recByDate))
	for d := range recByDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	colors := []struct{ rec, color string }{
		{model.RecommendBuy, "#1A7B4F"},
		{model.RecommendSell, "#C73E1D"},
		{model.RecommendHold, "#6B6B6B"},
	}
	traces := make([]plotlyTrace, 0, len(colors))
	for _, c := range colors {
		t := plotlyTrace{
			Type: "scatter",
			Mode: "lines+markers",
			Name: c.rec,
			Line: map[string]any{"color": c.color, "width": 2},
		}
		for _, d := range dates {
			t.X = append(t.X, d)
			t.Y = append(t.Y, float64(recByDate[d][c.rec]))
		}
		traces = append(traces, t)
	}

	data, err := json.Marshal(traces)
	if err != nil {
		return "", fmt.Errorf("encoding trend data: %w", err)
	}
	return template.JS(data), nil
}

var pageTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>StockLens</title>
<script src="https://cdn.plot.ly/plotly-2.32.0.min.js"></script>
<style>
  body { font-family: 'Helvetica Neue', Arial, sans-serif; margin: 0; background: #FAFAFA; color: #1A1A1A; }
  header { padding: 32px 48px; border-bottom: 1px solid #E5E5E5; }
  h1 { font-size: 22px; letter-spacing: 4px; font-weight: 400; margin: 0; }
  .meta { color: #6B6B6B; font-size: 12px; margin-top: 8px; }
  .overview { display: flex; gap: 48px; padding: 24px 48px; border-bottom: 1px solid #E5E5E5; }
  .stat .n { font-size: 28px; font-weight: 300; }
  .stat .l { font-size: 11px; letter-spacing: 2px; text-transform: uppercase; color: #6B6B6B; }
  .trend { padding: 24px 48px; }
  .cards { display: grid; grid-template-columns: repeat(auto-fill, minmax(380px, 1fr)); gap: 24px; padding: 24px 48px; }
  .card { background: #FFF; border: 1px solid #E5E5E5; padding: 24px; }
  .card h2 { font-size: 16px; letter-spacing: 2px; font-weight: 400; margin: 0 0 4px; }
  .price { font-size: 24px; font-weight: 300; }
  .rec { display: inline-block; font-size: 11px; letter-spacing: 2px; text-transform: uppercase; padding: 4px 10px; margin: 8px 0; }
  .rec.buy { background: #1A7B4F; color: #FFF; }
  .rec.sell { background: #C73E1D; color: #FFF; }
  .rec.hold { background: #E5E5E5; color: #1A1A1A; }
  .rationale { font-size: 13px; color: #6B6B6B; line-height: 1.5; }
  .chart { height: 160px; margin-top: 12px; }
</style>
</head>
<body>
<header>
  <h1>STOCKLENS</h1>
  <div class="meta">Generated {{.GeneratedAt}}</div>
</header>
<section class="overview">
  <div class="stat"><div class="n">{{.TotalAssets}}</div><div class="l">Assets</div></div>
  <div class="stat"><div class="n">{{.BuyCount}}</div><div class="l">Buy</div></div>
  <div class="stat"><div class="n">{{.SellCount}}</div><div class="l">Sell</div></div>
  <div class="stat"><div class="n">{{.HoldCount}}</div><div class="l">Hold</div></div>
</section>
<section class="trend">
  <div id="trend" style="height:260px"></div>
</section>
<section class="cards">
{{range .Assets}}
  <div class="card">
    <h2>{{.Symbol}}</h2>
    <div class="price">{{.Price}}</div>
    <span class="rec {{.Recommendation}}">{{.Recommendation}}</span>
    <div class="rationale">{{.Rationale}}</div>
    <div id="{{.ChartID}}" class="chart"></div>
  </div>
{{end}}
</section>
<script>
  var layout = {margin: {t: 10, r: 10, b: 30, l: 40}, paper_bgcolor: '#FAFAFA', plot_bgcolor: '#FAFAFA'};
  Plotly.newPlot('trend', {{.TrendData}}, layout, {displayModeBar: false});
{{range .Assets}}
  Plotly.newPlot('{{.ChartID}}', {{.ChartData}}, {margin: {t: 4, r: 4, b: 20, l: 40}, showlegend: false, paper_bgcolor: '#FFF', plot_bgcolor: '#FFF'}, {displayModeBar: false});
{{end}}
</script>
</body>
</html>
`))
