package agent

import (
	"context"
	"fmt"

	"github.com/dvazquezd/StockLens/internal/model"
)

// Snapshot is the per-asset input handed to an agent: the most recent
// signal rows (ascending) plus the latest indicator values.
type Snapshot struct {
	Symbol     string
	Signals    []model.SignalRow
	Indicators model.IndicatorRow
}

// Kind identifies which agent variant produced a set of recommendations.
type Kind struct {
	Type     string // "local" or "llm"
	Provider string // "anthropic" or "openai" for llm agents
	Model    string
}

// Agent turns per-asset signal snapshots into recommendations.
type Agent interface {
	Analyze(ctx context.Context, assets []Snapshot) ([]model.Recommendation, error)
	Kind() Kind
}

// Supported providers. Dispatch is a plain tagged switch, one capability
// interface for all variants.
const (
	ProviderLocal     = "local"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// New creates an agent for the given provider.
func New(provider, llmModel, apiKey string) (Agent, error) {
	switch provider {
	case ProviderLocal, "":
		return &LocalAgent{}, nil
	case ProviderAnthropic:
		if llmModel == "" {
			llmModel = "claude-opus-4-1-20250805"
		}
		return newLLMAgent(ProviderAnthropic, llmModel, apiKey), nil
	case ProviderOpenAI:
		if llmModel == "" {
			llmModel = "gpt-4o-mini"
		}
		return newLLMAgent(ProviderOpenAI, llmModel, apiKey), nil
	default:
		return nil, fmt.Errorf("unsupported agent provider %q", provider)
	}
}
