package model

import "time"

// IndicatorRow holds the computed technical indicators for one bar.
type IndicatorRow struct {
	Time       time.Time
	Close      float64
	RSI14      float64
	MACD       float64
	MACDSignal float64
	ATR14      float64
	ADX        float64
	OBV        float64
}
