// Package config loads the tradesim YAML configuration and applies
// environment variable overrides.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for tradesim.
type Config struct {
	Storage  Storage        `yaml:"storage"`
	Alpaca   Alpaca         `yaml:"alpaca"`
	Logging  Logging        `yaml:"logging"`
	Fetch    FetchConfig    `yaml:"fetch"`
	Backtest BacktestConfig `yaml:"backtest"`
	Risk     RiskConfig     `yaml:"risk"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Alpaca holds credentials and endpoints for the Alpaca APIs.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
	DataURL   string `yaml:"data_url"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// FetchConfig holds parameters for the market-data fetch job.
type FetchConfig struct {
	StartDate       string `yaml:"start_date"`
	BatchSize       int    `yaml:"batch_size"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
}

// BacktestConfig holds simulation parameters.
type BacktestConfig struct {
	InitialCapital float64 `yaml:"initial_capital"`
	CommissionRate float64 `yaml:"commission_rate"`
}

// RiskConfig holds the Kelly sizer bounds and the risk-manager guards.
type RiskConfig struct {
	KellyFraction     float64 `yaml:"kelly_fraction"`
	MinPositionPct    float64 `yaml:"min_position_pct"`
	MaxPositionPct    float64 `yaml:"max_position_pct"`
	MaxDrawdownPct    float64 `yaml:"max_drawdown_pct"`
	DailyLossLimitPct float64 `yaml:"daily_loss_limit_pct"`
	MaxOpenPositions  int     `yaml:"max_open_positions"`
	TargetVolatility  float64 `yaml:"target_volatility"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		Storage: Storage{
			DataDir:    "data",
			SQLitePath: "tradesim.db",
		},
		Logging: Logging{Level: "info", Format: "json"},
		Fetch: FetchConfig{
			StartDate:       "2020-01-01",
			BatchSize:       500,
			RateLimitPerMin: 200,
		},
		Backtest: BacktestConfig{
			InitialCapital: 100000,
			CommissionRate: 0.001,
		},
		Risk: RiskConfig{
			KellyFraction:     0.25,
			MinPositionPct:    0.01,
			MaxPositionPct:    0.10,
			MaxDrawdownPct:    0.15,
			DailyLossLimitPct: 0.03,
			MaxOpenPositions:  10,
			TargetVolatility:  0.02,
		},
	}
}

// Load reads the YAML configuration file at the given path over the
// defaults, parses it, applies environment variable overrides, and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot run with. Nonsensical
// sizing bounds are fatal here rather than at trade time.
func (c *Config) Validate() error {
	if c.Backtest.InitialCapital <= 0 {
		return fmt.Errorf("backtest.initial_capital %g must be positive", c.Backtest.InitialCapital)
	}
	if c.Backtest.CommissionRate < 0 {
		return fmt.Errorf("backtest.commission_rate %g must not be negative", c.Backtest.CommissionRate)
	}
	r := c.Risk
	if r.KellyFraction <= 0 || r.KellyFraction > 1 {
		return fmt.Errorf("risk.kelly_fraction %g out of range (0, 1]", r.KellyFraction)
	}
	if r.MinPositionPct < 0 || r.MaxPositionPct <= 0 || r.MinPositionPct > r.MaxPositionPct {
		return fmt.Errorf("risk position bounds invalid: min=%g max=%g", r.MinPositionPct, r.MaxPositionPct)
	}
	if r.MaxDrawdownPct <= 0 || r.DailyLossLimitPct <= 0 || r.MaxOpenPositions <= 0 {
		return fmt.Errorf("risk guards must be positive: drawdown=%g daily_loss=%g positions=%d",
			r.MaxDrawdownPct, r.DailyLossLimitPct, r.MaxOpenPositions)
	}
	return nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("ALPACA_BASE_URL"); v != "" {
		cfg.Alpaca.BaseURL = v
	}
	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Standard Alpaca env vars take priority: the canonical names the SDK uses.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}
