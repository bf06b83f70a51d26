package model

import "time"

// Recommendation values produced by the signal rules and agents.
const (
	RecommendBuy  = "buy"
	RecommendSell = "sell"
	RecommendHold = "hold"
)

// SignalRow holds the rule-based trading signals for one bar.
type SignalRow struct {
	Time           time.Time
	Close          float64
	MomentumTrend  int // 1 when MACD > signal line and ADX > 20
	MeanReversion  int // 1 oversold, -1 overbought
	Volume         int // 1 when OBV is rising
	Score          int
	Recommendation string
}

// AgentRun records one execution of a recommendation agent.
type AgentRun struct {
	ID              int64
	Timestamp       time.Time
	AgentType       string // "local" or "llm"
	LLMProvider     string
	LLMModel        string
	AssetsProcessed int
	AssetsFailed    int
	Duration        time.Duration
	Status          string // "success", "partial" or "failed"
	ErrorMessage    string
}

// Recommendation is a per-asset verdict produced by an agent.
type Recommendation struct {
	Symbol         string    `json:"symbol"`
	Recommendation string    `json:"recommendation"`
	Rationale      string    `json:"rationale"`
	Price          float64   `json:"-"`
	Confidence     float64   `json:"-"`
	CreatedAt      time.Time `json:"-"`
	AgentType      string    `json:"-"`
	LLMProvider    string    `json:"-"`
	LLMModel       string    `json:"-"`
}
