package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/dvazquezd/StockLens/internal/model"
)

// Asset is one tracked instrument.
type Asset struct {
	Symbol   string `yaml:"symbol"`
	Source   string `yaml:"source"`   // binance, yahoo or finnhub
	Interval string `yaml:"interval"` // 1m..1mo
	Limit    int    `yaml:"limit"`    // bars to keep per refresh
}

// Config holds all application configuration.
type Config struct {
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Cache struct {
		UseCache       *bool `yaml:"use_cache"`
		MaxFetchWindow int   `yaml:"max_fetch_window"`
		MinAgeMinutes  int   `yaml:"min_age_minutes"`
	} `yaml:"cache"`
	Assets []Asset `yaml:"assets"`
	Agent  struct {
		Provider string `yaml:"provider"` // local, anthropic or openai
		Model    string `yaml:"model"`
		APIKey   string `yaml:"api_key"`
	} `yaml:"agent"`
	Finnhub struct {
		APIKey string `yaml:"api_key"`
	} `yaml:"finnhub"`
	Binance struct {
		APIKey    string `yaml:"api_key"`
		SecretKey string `yaml:"secret_key"`
	} `yaml:"binance"`
	Dashboard struct {
		OutputDir string `yaml:"output_dir"`
	} `yaml:"dashboard"`
	Schedule struct {
		RefreshCron string `yaml:"refresh_cron"`
	} `yaml:"schedule"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("ANTHROPIC_STOCK_LENS"); v != "" && cfg.Agent.Provider != "openai" {
		cfg.Agent.APIKey = v
	}
	if v := os.Getenv("OAIKEY"); v != "" && cfg.Agent.Provider == "openai" {
		cfg.Agent.APIKey = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.Agent.Model = v
	}
	if v := os.Getenv("FINNHUB_API_KEY"); v != "" {
		cfg.Finnhub.APIKey = v
	}
	if v := os.Getenv("BINANCE_API_KEY"); v != "" {
		cfg.Binance.APIKey = v
	}
	if v := os.Getenv("BINANCE_SECRET_KEY"); v != "" {
		cfg.Binance.SecretKey = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("CRON_REFRESH"); v != "" {
		cfg.Schedule.RefreshCron = v
	}
	if v := os.Getenv("USE_CACHE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Cache.UseCache = &b
		}
	}

	// Defaults
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/stocklens.db"
	}
	if cfg.Cache.UseCache == nil {
		b := true
		cfg.Cache.UseCache = &b
	}
	if cfg.Cache.MaxFetchWindow == 0 {
		cfg.Cache.MaxFetchWindow = 500
	}
	if cfg.Cache.MinAgeMinutes == 0 {
		cfg.Cache.MinAgeMinutes = 15
	}
	if cfg.Agent.Provider == "" {
		cfg.Agent.Provider = "local"
	}
	if cfg.Dashboard.OutputDir == "" {
		cfg.Dashboard.OutputDir = "docs"
	}
	if cfg.Schedule.RefreshCron == "" {
		cfg.Schedule.RefreshCron = "0 0 22 * * 1-5"
	}
	if len(cfg.Assets) == 0 {
		cfg.Assets = []Asset{
			{Symbol: "BTCUSDT", Source: "binance", Interval: "1d", Limit: 1000},
			{Symbol: "ETHUSDT", Source: "binance", Interval: "1d", Limit: 1000},
			{Symbol: "SPX500", Source: "yahoo", Interval: "1d", Limit: 1000},
		}
	}
	for i := range cfg.Assets {
		if cfg.Assets[i].Source == "" {
			cfg.Assets[i].Source = string(model.SourceYahoo)
		}
		if cfg.Assets[i].Interval == "" {
			cfg.Assets[i].Interval = string(model.Interval1d)
		}
		if cfg.Assets[i].Limit == 0 {
			cfg.Assets[i].Limit = 1000
		}
	}

	return cfg, nil
}

// Validate checks that all required fields are set and consistent.
func (c *Config) Validate() error {
	if c.Database.SQLitePath == "" {
		return fmt.Errorf("database.sqlite_path is required")
	}
	if c.Cache.MaxFetchWindow <= 0 {
		return fmt.Errorf("cache.max_fetch_window must be positive")
	}
	switch c.Agent.Provider {
	case "local":
	case "anthropic", "openai":
		if c.Agent.APIKey == "" {
			return fmt.Errorf("agent.api_key is required for provider %q", c.Agent.Provider)
		}
	default:
		return fmt.Errorf("agent.provider must be local, anthropic or openai")
	}
	for _, a := range c.Assets {
		if a.Symbol == "" {
			return fmt.Errorf("assets: symbol is required")
		}
		switch model.Source(a.Source) {
		case model.SourceBinance, model.SourceYahoo, model.SourceFinnhub:
		default:
			return fmt.Errorf("assets: unknown source %q for %s", a.Source, a.Symbol)
		}
		if _, err := model.Interval(a.Interval).Parse(); err != nil {
			return fmt.Errorf("assets: %s: %w", a.Symbol, err)
		}
		if model.Source(a.Source) == model.SourceFinnhub && c.Finnhub.APIKey == "" {
			return fmt.Errorf("finnhub.api_key is required for %s", a.Symbol)
		}
	}
	return nil
}

// Key returns the series key for one configured asset.
func (a Asset) Key() model.SeriesKey {
	return model.SeriesKey{
		Symbol:   a.Symbol,
		Source:   model.Source(a.Source),
		Interval: model.Interval(a.Interval),
	}
}
