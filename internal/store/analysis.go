package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/dvazquezd/StockLens/internal/model"
)

// WriteIndicators stores indicator rows linked to their market-data bars.
// Rows whose bar is not in the store are skipped.
func (s *DB) WriteIndicators(key model.SeriesKey, rows []model.IndicatorRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin indicators write for %s: %w", key, err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO indicators
		(market_data_id, rsi_14, macd, macd_signal, atr_14, adx, obv, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare indicators for %s: %w", key, err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	written := 0
	for _, r := range rows {
		id, err := s.marketDataID(tx, key, r.Time)
		if errors.Is(err, sql.ErrNoRows) {
			log.Printf("[WARN] no market data for %s at %s, skipping indicator row", key, r.Time)
			continue
		}
		if err != nil {
			return written, fmt.Errorf("lookup bar %s at %s: %w", key, r.Time, err)
		}
		if _, err := stmt.Exec(id, r.RSI14, r.MACD, r.MACDSignal, r.ATR14, r.ADX, r.OBV, now); err != nil {
			return written, fmt.Errorf("insert indicators %s at %s: %w", key, r.Time, err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit indicators for %s: %w", key, err)
	}
	return written, nil
}

// WriteSignals stores signal rows linked to their market-data bars.
func (s *DB) WriteSignals(key model.SeriesKey, rows []model.SignalRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin signals write for %s: %w", key, err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO signals
		(market_data_id, sig_momentum_trend, sig_mean_reversion, sig_volume, score, recommendation, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare signals for %s: %w", key, err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	written := 0
	for _, r := range rows {
		id, err := s.marketDataID(tx, key, r.Time)
		if errors.Is(err, sql.ErrNoRows) {
			log.Printf("[WARN] no market data for %s at %s, skipping signal row", key, r.Time)
			continue
		}
		if err != nil {
			return written, fmt.Errorf("lookup bar %s at %s: %w", key, r.Time, err)
		}
		if _, err := stmt.Exec(id, r.MomentumTrend, r.MeanReversion, r.Volume,
			r.Score, r.Recommendation, now); err != nil {
			return written, fmt.Errorf("insert signals %s at %s: %w", key, r.Time, err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit signals for %s: %w", key, err)
	}
	return written, nil
}

// LatestSignals returns the most recent signal rows for a series, ascending.
func (s *DB) LatestSignals(key model.SeriesKey, limit int) ([]model.SignalRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT * FROM (
			SELECT m.timestamp, m.close, g.sig_momentum_trend, g.sig_mean_reversion,
				g.sig_volume, g.score, g.recommendation
			FROM signals g
			JOIN market_data m ON g.market_data_id = m.id
			WHERE m.symbol = ? AND m.source = ? AND m.interval = ?
			ORDER BY m.timestamp DESC LIMIT ?
		) ORDER BY timestamp ASC`,
		key.Symbol, key.Source, key.Interval, limit)
	if err != nil {
		return nil, fmt.Errorf("query signals for %s: %w", key, err)
	}
	defer rows.Close()

	var out []model.SignalRow
	for rows.Next() {
		var ts int64
		var r model.SignalRow
		if err := rows.Scan(&ts, &r.Close, &r.MomentumTrend, &r.MeanReversion,
			&r.Volume, &r.Score, &r.Recommendation); err != nil {
			return nil, fmt.Errorf("scan signal for %s: %w", key, err)
		}
		r.Time = time.Unix(ts, 0).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}
