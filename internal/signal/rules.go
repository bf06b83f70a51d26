package signal

import (
	"fmt"
	"strings"

	"github.com/dvazquezd/StockLens/internal/model"
)

// Rule thresholds for signal generation.
const (
	adxTrendLevel = 20.0
	rsiOversold   = 30.0
	rsiOverbought = 70.0
)

// Generate derives rule-based trading signals from indicator rows:
// momentum-trend fires when MACD is above its signal line with a trending
// ADX, mean-reversion scores oversold/overbought RSI, and the volume signal
// follows a rising OBV. The summed score maps to buy/sell/hold.
func Generate(rows []model.IndicatorRow) []model.SignalRow {
	out := make([]model.SignalRow, len(rows))
	for i, r := range rows {
		s := model.SignalRow{Time: r.Time, Close: r.Close}

		if r.MACD > r.MACDSignal && r.ADX > adxTrendLevel {
			s.MomentumTrend = 1
		}
		switch {
		case r.RSI14 < rsiOversold:
			s.MeanReversion = 1
		case r.RSI14 > rsiOverbought:
			s.MeanReversion = -1
		}
		if i > 0 && r.OBV > rows[i-1].OBV {
			s.Volume = 1
		}

		s.Score = s.MomentumTrend + s.MeanReversion + s.Volume
		switch {
		case s.Score > 0:
			s.Recommendation = model.RecommendBuy
		case s.Score < 0:
			s.Recommendation = model.RecommendSell
		default:
			s.Recommendation = model.RecommendHold
		}
		out[i] = s
	}
	return out
}

// Rationale builds a human-readable explanation for the latest signal.
func Rationale(ind model.IndicatorRow, sig model.SignalRow) string {
	var reasons []string

	switch sig.Recommendation {
	case model.RecommendBuy:
		reasons = append(reasons, "Buy signal")
	case model.RecommendSell:
		reasons = append(reasons, "Sell signal")
	default:
		reasons = append(reasons, "Hold")
	}

	if ind.MACD > ind.MACDSignal {
		reasons = append(reasons, "MACD > signal (bullish momentum)")
	} else if ind.MACD < ind.MACDSignal {
		reasons = append(reasons, "MACD < signal (bearish momentum)")
	}

	if ind.RSI14 < rsiOversold {
		reasons = append(reasons, fmt.Sprintf("RSI %.0f (oversold)", ind.RSI14))
	} else if ind.RSI14 > rsiOverbought {
		reasons = append(reasons, fmt.Sprintf("RSI %.0f (overbought)", ind.RSI14))
	}

	if ind.ADX >= 25 {
		reasons = append(reasons, "Strong trend (ADX >= 25)")
	}

	return strings.Join(reasons, "; ")
}
