package store

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// DB persists market data, derived analysis rows and agent history in a
// SQLite database.
type DB struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (or creates) the SQLite database at path and runs migrations.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so the dashboard can read while the pipeline writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &DB{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite store opened: %s", path)
	return s, nil
}

func (s *DB) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS market_data (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol     TEXT NOT NULL,
			source     TEXT NOT NULL,
			interval   TEXT NOT NULL,
			timestamp  INTEGER NOT NULL,
			open       REAL NOT NULL,
			high       REAL NOT NULL,
			low        REAL NOT NULL,
			close      REAL NOT NULL,
			volume     REAL NOT NULL,
			created_at INTEGER NOT NULL,
			UNIQUE(symbol, source, interval, timestamp)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_market_data_symbol_time
			ON market_data(symbol, timestamp DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_market_data_source
			ON market_data(source, symbol, interval)`,

		`CREATE TABLE IF NOT EXISTS indicators (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			market_data_id INTEGER NOT NULL,
			rsi_14         REAL,
			macd           REAL,
			macd_signal    REAL,
			atr_14         REAL,
			adx            REAL,
			obv            REAL,
			created_at     INTEGER NOT NULL,
			FOREIGN KEY (market_data_id) REFERENCES market_data(id),
			UNIQUE(market_data_id)
		)`,

		`CREATE TABLE IF NOT EXISTS signals (
			id                 INTEGER PRIMARY KEY AUTOINCREMENT,
			market_data_id     INTEGER NOT NULL,
			sig_momentum_trend INTEGER DEFAULT 0,
			sig_mean_reversion INTEGER DEFAULT 0,
			sig_volume         INTEGER DEFAULT 0,
			score              INTEGER DEFAULT 0,
			recommendation     TEXT CHECK(recommendation IN ('buy', 'sell', 'hold')),
			created_at         INTEGER NOT NULL,
			FOREIGN KEY (market_data_id) REFERENCES market_data(id),
			UNIQUE(market_data_id)
		)`,

		`CREATE TABLE IF NOT EXISTS agent_runs (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			run_timestamp    INTEGER NOT NULL,
			agent_type       TEXT NOT NULL CHECK(agent_type IN ('local', 'llm')),
			llm_provider     TEXT,
			llm_model        TEXT,
			assets_processed INTEGER DEFAULT 0,
			assets_failed    INTEGER DEFAULT 0,
			duration_seconds REAL,
			status           TEXT CHECK(status IN ('success', 'partial', 'failed')),
			error_message    TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_agent_runs_timestamp
			ON agent_runs(run_timestamp DESC)`,

		`CREATE TABLE IF NOT EXISTS recommendations (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			agent_run_id   INTEGER NOT NULL,
			symbol         TEXT NOT NULL,
			recommendation TEXT NOT NULL CHECK(recommendation IN ('buy', 'sell', 'hold')),
			rationale      TEXT,
			confidence     REAL,
			price          REAL,
			created_at     INTEGER NOT NULL,
			FOREIGN KEY (agent_run_id) REFERENCES agent_runs(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_recommendations_symbol
			ON recommendations(symbol, created_at DESC)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

// Reset deletes all stored data. Explicit administrative action; the cache
// never evicts on its own.
func (s *DB) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"recommendations", "agent_runs", "signals", "indicators", "market_data"} {
		if _, err := s.db.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	log.Println("[INFO] store reset: all tables cleared")
	return nil
}

func (s *DB) Close() error {
	log.Println("[INFO] closing sqlite store")
	return s.db.Close()
}
