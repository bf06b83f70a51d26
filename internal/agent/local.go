package agent

import (
	"context"
	"fmt"

	"github.com/dvazquezd/StockLens/internal/model"
	"github.com/dvazquezd/StockLens/internal/signal"
)

// LocalAgent produces recommendations from the rule-based signals alone,
// with no external calls.
type LocalAgent struct{}

func (a *LocalAgent) Kind() Kind { return Kind{Type: "local"} }

func (a *LocalAgent) Analyze(_ context.Context, assets []Snapshot) ([]model.Recommendation, error) {
	out := make([]model.Recommendation, 0, len(assets))
	for _, asset := range assets {
		if len(asset.Signals) == 0 {
			return nil, fmt.Errorf("no signals for %s", asset.Symbol)
		}
		last := asset.Signals[len(asset.Signals)-1]
		out = append(out, model.Recommendation{
			Symbol:         asset.Symbol,
			Recommendation: last.Recommendation,
			Rationale:      signal.Rationale(asset.Indicators, last),
			Price:          last.Close,
		})
	}
	return out, nil
}
