package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("missing file must not be an error: %v", err)
	}
	if cfg.Database.SQLitePath != "data/stocklens.db" {
		t.Errorf("sqlite_path default = %q", cfg.Database.SQLitePath)
	}
	if cfg.Cache.MaxFetchWindow != 500 || cfg.Cache.MinAgeMinutes != 15 {
		t.Errorf("cache defaults = %d/%d", cfg.Cache.MaxFetchWindow, cfg.Cache.MinAgeMinutes)
	}
	if cfg.Cache.UseCache == nil || !*cfg.Cache.UseCache {
		t.Error("use_cache must default to true")
	}
	if cfg.Agent.Provider != "local" {
		t.Errorf("agent provider default = %q", cfg.Agent.Provider)
	}
	if len(cfg.Assets) == 0 {
		t.Fatal("expected default asset list")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	path := writeConfig(t, `
database:
  sqlite_path: /tmp/a.db
cache:
  use_cache: false
  max_fetch_window: 250
assets:
  - symbol: BTCUSDT
    source: binance
    interval: 4h
    limit: 800
agent:
  provider: anthropic
  api_key: from-file
`)
	t.Setenv("SQLITE_PATH", "/tmp/env.db")
	t.Setenv("ANTHROPIC_STOCK_LENS", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.SQLitePath != "/tmp/env.db" {
		t.Errorf("env must override file: %q", cfg.Database.SQLitePath)
	}
	if cfg.Agent.APIKey != "from-env" {
		t.Errorf("agent key = %q", cfg.Agent.APIKey)
	}
	if *cfg.Cache.UseCache {
		t.Error("use_cache: false from file must survive defaulting")
	}
	if cfg.Cache.MaxFetchWindow != 250 {
		t.Errorf("max_fetch_window = %d", cfg.Cache.MaxFetchWindow)
	}
	if got := cfg.Assets[0].Key().String(); got != "BTCUSDT/binance/4h" {
		t.Errorf("asset key = %q", got)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("config must validate: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad interval", "assets:\n  - symbol: AAPL\n    source: yahoo\n    interval: fortnight\n"},
		{"bad source", "assets:\n  - symbol: AAPL\n    source: nasdaq\n"},
		{"llm without key", "agent:\n  provider: openai\n"},
		{"finnhub without key", "assets:\n  - symbol: AAPL\n    source: finnhub\n"},
	}
	for _, tt := range tests {
		cfg, err := Load(writeConfig(t, tt.yaml))
		if err != nil {
			t.Fatalf("%s: load: %v", tt.name, err)
		}
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}
}
