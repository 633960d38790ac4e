package config

import (
	"fmt"
	"math"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"rotation/internal/util"
)

// Config is the top-level configuration for a rotation run. Values
// come from the YAML file, then ROTATION_* environment overrides,
// then CLI flags.
type Config struct {
	Universe  string  `yaml:"universe"`
	Benchmark string  `yaml:"benchmark"`
	StartDate string  `yaml:"start_date"`
	TopN      int     `yaml:"top_n"`
	TxCostBps float64 `yaml:"tx_cost_bps"`
	Weights   Weights `yaml:"weights"`
	Data      Data    `yaml:"data"`
	Server    Server  `yaml:"server"`
	Output    Output  `yaml:"output"`
	Logging   Logging `yaml:"logging"`
}

// Weights are the composite score weights. They must sum to 1.
type Weights struct {
	Momentum6M  float64 `yaml:"momentum_6m"`
	Momentum12M float64 `yaml:"momentum_12m"`
	Trend       float64 `yaml:"trend"`
	LowVol      float64 `yaml:"low_vol"`
}

func (w Weights) Sum() float64 {
	return w.Momentum6M + w.Momentum12M + w.Trend + w.LowVol
}

// Data controls the price cache and remote sources.
type Data struct {
	Dir             string `yaml:"dir"`
	SQLitePath      string `yaml:"sqlite_path"`
	Source          string `yaml:"source"`
	Refresh         bool   `yaml:"refresh"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
	Alpaca          Alpaca `yaml:"alpaca"`
}

// Alpaca holds credentials for the Alpaca market data API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Output struct {
	Dir string `yaml:"dir"`
}

type Logging struct {
	Level string `yaml:"level"`
}

const (
	SourceYahoo  = "yahoo"
	SourceAlpaca = "alpaca"
)

func Default() *Config {
	return &Config{
		Universe:  "sp500",
		Benchmark: "SPY",
		StartDate: "2010-01-01",
		TopN:      20,
		TxCostBps: 0,
		Weights: Weights{
			Momentum6M:  0.40,
			Momentum12M: 0.30,
			Trend:       0.20,
			LowVol:      0.10,
		},
		Data: Data{
			Dir:             "data",
			SQLitePath:      "data/prices.db",
			Source:          SourceYahoo,
			RateLimitPerMin: 120,
		},
		Server:  Server{Port: 8080},
		Output:  Output{Dir: "output"},
		Logging: Logging{Level: "info"},
	}
}

// Load reads the YAML file at path over the defaults and applies
// environment overrides. A missing file is not an error: defaults
// plus environment apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ROTATION_UNIVERSE"); v != "" {
		cfg.Universe = v
	}
	if v := os.Getenv("ROTATION_BENCHMARK"); v != "" {
		cfg.Benchmark = v
	}
	if v := os.Getenv("ROTATION_START_DATE"); v != "" {
		cfg.StartDate = v
	}
	if v := os.Getenv("ROTATION_TOP_N"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.TopN = n
		}
	}
	if v := os.Getenv("ROTATION_TX_COST_BPS"); v != "" {
		if bps, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.TxCostBps = bps
		}
	}
	if v := os.Getenv("ROTATION_DATA_DIR"); v != "" {
		cfg.Data.Dir = v
	}
	if v := os.Getenv("ROTATION_SQLITE_PATH"); v != "" {
		cfg.Data.SQLitePath = v
	}
	if v := os.Getenv("ROTATION_SOURCE"); v != "" {
		cfg.Data.Source = v
	}
	if v := os.Getenv("ROTATION_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Canonical Alpaca SDK variable names take precedence.
	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Data.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Data.Alpaca.APISecret = v
	}
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Data.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Data.Alpaca.APISecret = v
	}
}

// Validate rejects configurations that must never reach the data
// layer. All violations are fatal before a run starts.
func (c *Config) Validate() error {
	if c.TopN < 1 {
		return fmt.Errorf("top_n must be at least 1, got %d", c.TopN)
	}
	if c.TxCostBps < 0 {
		return fmt.Errorf("tx_cost_bps cannot be negative, got %f", c.TxCostBps)
	}
	if c.Universe == "" {
		return fmt.Errorf("universe is required")
	}
	if c.Benchmark == "" {
		return fmt.Errorf("benchmark is required")
	}
	if _, err := util.ParseDate(c.StartDate); err != nil {
		return fmt.Errorf("invalid start_date %q: %w", c.StartDate, err)
	}
	if c.Data.Source != SourceYahoo && c.Data.Source != SourceAlpaca {
		return fmt.Errorf("unknown data source %q", c.Data.Source)
	}
	if math.Abs(c.Weights.Sum()-1) > 1e-9 {
		return fmt.Errorf("composite weights must sum to 1.0, got %f", c.Weights.Sum())
	}
	for name, w := range map[string]float64{
		"momentum_6m":  c.Weights.Momentum6M,
		"momentum_12m": c.Weights.Momentum12M,
		"trend":        c.Weights.Trend,
		"low_vol":      c.Weights.LowVol,
	} {
		if w < 0 {
			return fmt.Errorf("weight %s cannot be negative, got %f", name, w)
		}
	}
	return nil
}
