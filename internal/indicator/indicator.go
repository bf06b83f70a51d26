package indicator

import (
	"fmt"

	"github.com/markcheno/go-talib"

	"github.com/dvazquezd/StockLens/internal/model"
)

// Indicator periods. MACD warm-up dominates: the signal line only becomes
// meaningful after slow+signal bars.
const (
	rsiPeriod  = 14
	macdFast   = 12
	macdSlow   = 26
	macdSignal = 9
	atrPeriod  = 14
	adxPeriod  = 14

	minBars = macdSlow + macdSignal
)

// Compute calculates RSI, MACD, ATR, ADX and OBV for a candle series and
// returns one row per bar after the indicator warm-up window.
func Compute(candles []model.Candle) ([]model.IndicatorRow, error) {
	if len(candles) < minBars {
		return nil, fmt.Errorf("need at least %d candles for indicators, got %d", minBars, len(candles))
	}

	closes := make([]float64, len(candles))
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	volumes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
		volumes[i] = c.Volume
	}

	rsi := talib.Rsi(closes, rsiPeriod)
	macd, signal, _ := talib.Macd(closes, macdFast, macdSlow, macdSignal)
	atr := talib.Atr(highs, lows, closes, atrPeriod)
	adx := talib.Adx(highs, lows, closes, adxPeriod)
	obv := talib.Obv(closes, volumes)

	// Skip warm-up rows where the slowest indicator is still zero-filled.
	start := macdSlow + macdSignal - 2

	rows := make([]model.IndicatorRow, 0, len(candles)-start)
	for i := start; i < len(candles); i++ {
		rows = append(rows, model.IndicatorRow{
			Time:       candles[i].Time,
			Close:      closes[i],
			RSI14:      rsi[i],
			MACD:       macd[i],
			MACDSignal: signal[i],
			ATR14:      atr[i],
			ADX:        adx[i],
			OBV:        obv[i],
		})
	}
	return rows, nil
}
