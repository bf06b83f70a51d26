package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/jpillora/backoff"

	"github.com/dvazquezd/StockLens/internal/model"
)

const (
	anthropicURL     = "https://api.anthropic.com/v1/messages"
	anthropicVersion = "2023-06-01"
	openAIURL        = "https://api.openai.com/v1/chat/completions"

	llmMaxTokens = 4000
	llmRetries   = 3
)

const systemPrompt = `You are a market analyst. You receive per-asset technical
signal snapshots (RSI, MACD, ADX, OBV based) and must answer with a JSON array,
one object per asset, of the form:
[{"symbol": "...", "recommendation": "buy|sell|hold", "rationale": "..."}]
Answer with the JSON array only, no prose around it.`

// LLMAgent asks a hosted model for recommendations. On any transport,
// parsing or validation failure it returns an error so the caller can
// fall back to the local agent.
type LLMAgent struct {
	provider string
	model    string
	apiKey   string
	client   *http.Client
}

func newLLMAgent(provider, llmModel, apiKey string) *LLMAgent {
	return &LLMAgent{
		provider: provider,
		model:    llmModel,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

func (a *LLMAgent) Kind() Kind {
	return Kind{Type: "llm", Provider: a.provider, Model: a.model}
}

func (a *LLMAgent) Analyze(ctx context.Context, assets []Snapshot) ([]model.Recommendation, error) {
	if a.apiKey == "" {
		return nil, fmt.Errorf("%s agent: no API key configured", a.provider)
	}
	if len(assets) == 0 {
		return nil, nil
	}

	prompt, err := buildPrompt(assets)
	if err != nil {
		return nil, fmt.Errorf("building prompt: %w", err)
	}

	var text string
	switch a.provider {
	case ProviderAnthropic:
		text, err = a.callAnthropic(ctx, prompt)
	case ProviderOpenAI:
		text, err = a.callOpenAI(ctx, prompt)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", a.provider)
	}
	if err != nil {
		return nil, err
	}

	recs, err := parseRecommendations(text)
	if err != nil {
		return nil, fmt.Errorf("parsing %s response: %w", a.provider, err)
	}
	return validate(recs, assets), nil
}

// buildPrompt serializes the snapshots into the user message. Only the
// last few signal rows per asset are included to keep the request small.
func buildPrompt(assets []Snapshot) (string, error) {
	type signalJSON struct {
		Time           string  `json:"time"`
		Close          float64 `json:"close"`
		Momentum       int     `json:"momentum_trend"`
		MeanReversion  int     `json:"mean_reversion"`
		Volume         int     `json:"volume"`
		Score          int     `json:"score"`
		Recommendation string  `json:"recommendation"`
	}
	type assetJSON struct {
		Symbol  string       `json:"symbol"`
		RSI14   float64      `json:"rsi_14"`
		MACD    float64      `json:"macd"`
		ADX     float64      `json:"adx"`
		Signals []signalJSON `json:"recent_signals"`
	}

	payload := make([]assetJSON, 0, len(assets))
	for _, a := range assets {
		rows := a.Signals
		if len(rows) > 5 {
			rows = rows[len(rows)-5:]
		}
		aj := assetJSON{
			Symbol: a.Symbol,
			RSI14:  a.Indicators.RSI14,
			MACD:   a.Indicators.MACD,
			ADX:    a.Indicators.ADX,
		}
		for _, s := range rows {
			aj.Signals = append(aj.Signals, signalJSON{
				Time:           s.Time.UTC().Format(time.RFC3339),
				Close:          s.Close,
				Momentum:       s.MomentumTrend,
				MeanReversion:  s.MeanReversion,
				Volume:         s.Volume,
				Score:          s.Score,
				Recommendation: s.Recommendation,
			})
		}
		payload = append(payload, aj)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return "Analyze these assets and respond with the JSON array described:\n" + string(data), nil
}

func (a *LLMAgent) callAnthropic(ctx context.Context, prompt string) (string, error) {
	body := map[string]any{
		"model":      a.model,
		"max_tokens": llmMaxTokens,
		"system":     systemPrompt,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}
	raw, err := a.post(ctx, anthropicURL, body, map[string]string{
		"x-api-key":         a.apiKey,
		"anthropic-version": anthropicVersion,
	})
	if err != nil {
		return "", err
	}

	var resp struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("decoding anthropic response: %w", err)
	}
	for _, c := range resp.Content {
		if c.Type == "text" {
			return c.Text, nil
		}
	}
	return "", fmt.Errorf("anthropic response has no text content")
}

func (a *LLMAgent) callOpenAI(ctx context.Context, prompt string) (string, error) {
	body := map[string]any{
		"model": a.model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": prompt},
		},
	}
	raw, err := a.post(ctx, openAIURL, body, map[string]string{
		"Authorization": "Bearer " + a.apiKey,
	})
	if err != nil {
		return "", err
	}

	var resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("decoding openai response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai response has no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// post sends the request with retries on transport errors and 429/5xx
// responses, backing off between attempts.
func (a *LLMAgent) post(ctx context.Context, url string, body any, headers map[string]string) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	b := &backoff.Backoff{Min: 2 * time.Second, Max: 30 * time.Second, Factor: 2, Jitter: true}
	var lastErr error
	for attempt := 0; attempt <= llmRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(b.Duration()):
			}
			log.Printf("[WARN] %s request retry %d/%d: %v", a.provider, attempt, llmRetries, lastErr)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := a.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("reading response: %w", err)
			continue
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(data), 200))
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%s returned status %d: %s", a.provider, resp.StatusCode, truncate(string(data), 200))
		}
		return data, nil
	}
	return nil, fmt.Errorf("%s request failed after %d attempts: %w", a.provider, llmRetries+1, lastErr)
}

// parseRecommendations extracts the JSON array from the model's reply,
// tolerating markdown code fences and surrounding prose.
func parseRecommendations(text string) ([]model.Recommendation, error) {
	raw := extractJSON(text)
	if raw == "" {
		return nil, fmt.Errorf("no JSON found in reply")
	}

	var recs []model.Recommendation
	if err := json.Unmarshal([]byte(raw), &recs); err != nil {
		// Some models answer with a single object for a single asset.
		var one model.Recommendation
		if err2 := json.Unmarshal([]byte(raw), &one); err2 != nil {
			return nil, err
		}
		recs = []model.Recommendation{one}
	}
	return recs, nil
}

// extractJSON returns the outermost JSON array (preferred) or object
// embedded in text, stripping ``` fences first.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.Contains(text, "```") {
		parts := strings.SplitN(text, "```", 3)
		if len(parts) >= 2 {
			text = strings.TrimPrefix(strings.TrimSpace(parts[1]), "json")
			text = strings.TrimSpace(text)
		}
	}

	for _, pair := range []struct{ open, close string }{{"[", "]"}, {"{", "}"}} {
		start := strings.Index(text, pair.open)
		end := strings.LastIndex(text, pair.close)
		if start >= 0 && end > start {
			return text[start : end+1]
		}
	}
	return ""
}

// validate keeps only recommendations for requested symbols, normalizes
// the action and fills the latest known price. Unknown actions become hold.
func validate(recs []model.Recommendation, assets []Snapshot) []model.Recommendation {
	prices := make(map[string]float64, len(assets))
	for _, a := range assets {
		if n := len(a.Signals); n > 0 {
			prices[a.Symbol] = a.Signals[n-1].Close
		}
	}

	out := make([]model.Recommendation, 0, len(recs))
	for _, r := range recs {
		price, ok := prices[r.Symbol]
		if !ok {
			log.Printf("[WARN] dropping recommendation for unrequested symbol %q", r.Symbol)
			continue
		}
		switch strings.ToLower(r.Recommendation) {
		case model.RecommendBuy, model.RecommendSell, model.RecommendHold:
			r.Recommendation = strings.ToLower(r.Recommendation)
		default:
			log.Printf("[WARN] invalid recommendation %q for %s, defaulting to hold", r.Recommendation, r.Symbol)
			r.Recommendation = model.RecommendHold
		}
		r.Price = price
		out = append(out, r)
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
