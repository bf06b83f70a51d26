package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dvazquezd/StockLens/internal/model"
)

// CreateAgentRun records an agent execution and returns its id.
func (s *DB) CreateAgentRun(run *model.AgentRun) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`INSERT INTO agent_runs
		(run_timestamp, agent_type, llm_provider, llm_model,
		 assets_processed, assets_failed, duration_seconds, status, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.Timestamp.Unix(), run.AgentType, run.LLMProvider, run.LLMModel,
		run.AssetsProcessed, run.AssetsFailed, run.Duration.Seconds(),
		run.Status, run.ErrorMessage,
	)
	if err != nil {
		return 0, fmt.Errorf("insert agent run: %w", err)
	}
	return res.LastInsertId()
}

// InsertRecommendation stores one agent recommendation for a run.
func (s *DB) InsertRecommendation(runID int64, rec *model.Recommendation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`INSERT INTO recommendations
		(agent_run_id, symbol, recommendation, rationale, confidence, price, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, rec.Symbol, rec.Recommendation, rec.Rationale,
		rec.Confidence, rec.Price, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert recommendation for %s: %w", rec.Symbol, err)
	}
	return nil
}

// RecommendationHistory returns recent recommendations, newest first.
// An empty symbol returns history for all symbols.
func (s *DB) RecommendationHistory(symbol string, limit int) ([]model.Recommendation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `SELECT r.symbol, r.recommendation, r.rationale, r.confidence, r.price,
			r.created_at, ar.agent_type, ar.llm_provider, ar.llm_model
		FROM recommendations r
		JOIN agent_runs ar ON r.agent_run_id = ar.id`
	args := []any{}
	if symbol != "" {
		query += " WHERE r.symbol = ?"
		args = append(args, symbol)
	}
	query += " ORDER BY r.created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recommendations: %w", err)
	}
	defer rows.Close()

	var out []model.Recommendation
	for rows.Next() {
		var rec model.Recommendation
		var created int64
		var provider, llmModel sql.NullString
		if err := rows.Scan(&rec.Symbol, &rec.Recommendation, &rec.Rationale,
			&rec.Confidence, &rec.Price, &created, &rec.AgentType, &provider, &llmModel); err != nil {
			return nil, fmt.Errorf("scan recommendation: %w", err)
		}
		rec.CreatedAt = time.Unix(created, 0).UTC()
		rec.LLMProvider = provider.String
		rec.LLMModel = llmModel.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

// AgentRunSummaries returns recent agent runs, newest first.
func (s *DB) AgentRunSummaries(limit int) ([]model.AgentRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT id, run_timestamp, agent_type, llm_provider, llm_model,
			assets_processed, assets_failed, duration_seconds, status, error_message
		FROM agent_runs
		ORDER BY run_timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query agent runs: %w", err)
	}
	defer rows.Close()

	var out []model.AgentRun
	for rows.Next() {
		var run model.AgentRun
		var ts int64
		var seconds float64
		var provider, llmModel, status, errMsg sql.NullString
		if err := rows.Scan(&run.ID, &ts, &run.AgentType, &provider, &llmModel,
			&run.AssetsProcessed, &run.AssetsFailed, &seconds, &status, &errMsg); err != nil {
			return nil, fmt.Errorf("scan agent run: %w", err)
		}
		run.Timestamp = time.Unix(ts, 0).UTC()
		run.Duration = time.Duration(seconds * float64(time.Second))
		run.LLMProvider = provider.String
		run.LLMModel = llmModel.String
		run.Status = status.String
		run.ErrorMessage = errMsg.String
		out = append(out, run)
	}
	return out, rows.Err()
}

// Stats summarizes the cached market data.
type Stats struct {
	TotalRows     int
	UniqueSymbols int
	Oldest        time.Time
	Newest        time.Time
}

// CacheStats returns aggregate statistics over the market_data table.
func (s *DB) CacheStats() (*Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &Stats{}
	var oldest, newest sql.NullInt64
	err := s.db.QueryRow(`SELECT COUNT(*), COUNT(DISTINCT symbol),
			MIN(timestamp), MAX(timestamp)
		FROM market_data`).Scan(&st.TotalRows, &st.UniqueSymbols, &oldest, &newest)
	if err != nil {
		return nil, fmt.Errorf("query cache stats: %w", err)
	}
	if oldest.Valid {
		st.Oldest = time.Unix(oldest.Int64, 0).UTC()
	}
	if newest.Valid {
		st.Newest = time.Unix(newest.Int64, 0).UTC()
	}
	return st, nil
}
