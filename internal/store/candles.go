package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dvazquezd/StockLens/internal/model"
)

// LatestMeta returns the latest timestamp, row count and last refresh time
// for a series, or nil if the series has never been fetched. Answered from
// the (source, symbol, interval) index without scanning candle rows.
func (s *DB) LatestMeta(key model.SeriesKey) (*model.SeriesMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest, refreshed sql.NullInt64
	var rows int
	err := s.db.QueryRow(`SELECT MAX(timestamp), COUNT(*), MAX(created_at)
		FROM market_data
		WHERE symbol = ? AND source = ? AND interval = ?`,
		key.Symbol, key.Source, key.Interval,
	).Scan(&latest, &rows, &refreshed)
	if err != nil {
		return nil, fmt.Errorf("query latest meta for %s: %w", key, err)
	}
	if !latest.Valid || rows == 0 {
		return nil, nil
	}
	return &model.SeriesMeta{
		Latest:      time.Unix(latest.Int64, 0).UTC(),
		Rows:        rows,
		RefreshedAt: time.Unix(refreshed.Int64, 0).UTC(),
	}, nil
}

// ReadCandles returns candles for a series ordered ascending by timestamp.
// When from/to are set the range is inclusive. A positive limit caps the
// result to the most recent rows.
func (s *DB) ReadCandles(key model.SeriesKey, from, to *time.Time, limit int) ([]model.Candle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `SELECT timestamp, open, high, low, close, volume
		FROM market_data
		WHERE symbol = ? AND source = ? AND interval = ?`
	args := []any{key.Symbol, key.Source, key.Interval}

	if from != nil {
		query += " AND timestamp >= ?"
		args = append(args, from.Unix())
	}
	if to != nil {
		query += " AND timestamp <= ?"
		args = append(args, to.Unix())
	}

	if limit > 0 {
		// Most-recent N, returned in ascending order.
		query = fmt.Sprintf(
			"SELECT * FROM (%s ORDER BY timestamp DESC LIMIT ?) ORDER BY timestamp ASC", query)
		args = append(args, limit)
	} else {
		query += " ORDER BY timestamp ASC"
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query candles for %s: %w", key, err)
	}
	defer rows.Close()

	var candles []model.Candle
	for rows.Next() {
		var ts int64
		var c model.Candle
		if err := rows.Scan(&ts, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan candle for %s: %w", key, err)
		}
		c.Time = time.Unix(ts, 0).UTC()
		candles = append(candles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candles for %s: %w", key, err)
	}
	return candles, nil
}

// WriteCandles upserts candles keyed by (series, timestamp) in one
// transaction. Re-writing an existing timestamp overwrites the row, so
// late revisions of the still-open bar are corrected instead of duplicated.
// The write is committed before return.
func (s *DB) WriteCandles(key model.SeriesKey, candles []model.Candle) (int, error) {
	if len(candles) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin write for %s: %w", key, err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO market_data
		(symbol, source, interval, timestamp, open, high, low, close, volume, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, source, interval, timestamp) DO UPDATE SET
			open = excluded.open,
			high = excluded.high,
			low = excluded.low,
			close = excluded.close,
			volume = excluded.volume,
			created_at = excluded.created_at`)
	if err != nil {
		return 0, fmt.Errorf("prepare upsert for %s: %w", key, err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	written := 0
	for _, c := range candles {
		if _, err := stmt.Exec(key.Symbol, key.Source, key.Interval,
			c.Time.Unix(), c.Open, c.High, c.Low, c.Close, c.Volume, now); err != nil {
			return written, fmt.Errorf("upsert candle %s at %s: %w", key, c.Time, err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit write for %s: %w", key, err)
	}
	return written, nil
}

// marketDataID returns the row id for a series bar, or sql.ErrNoRows.
func (s *DB) marketDataID(tx *sql.Tx, key model.SeriesKey, t time.Time) (int64, error) {
	var id int64
	err := tx.QueryRow(`SELECT id FROM market_data
		WHERE symbol = ? AND source = ? AND interval = ? AND timestamp = ?`,
		key.Symbol, key.Source, key.Interval, t.Unix()).Scan(&id)
	return id, err
}
