package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"IndexTracker/internal/model"
	"IndexTracker/internal/store"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Settings `yaml:",inline"`
	Pairs    []model.PairConfig `yaml:"pairs"`
}

// Settings are the scalar options, each overridable from the environment.
type Settings struct {
	DataDir      string `yaml:"data_dir" env:"DATA_DIR"`
	ChartDir     string `yaml:"chart_dir" env:"CHART_DIR"`
	WindowMonths int    `yaml:"window_months" env:"WINDOW_MONTHS"`
	Workers      int    `yaml:"workers" env:"WORKERS"`

	PairsFile string `yaml:"pairs_file" env:"PAIRS_FILE"`

	DataSource struct {
		Provider   string        `yaml:"provider" env:"DATA_PROVIDER"`
		Proxy      string        `yaml:"proxy" env:"HTTPS_PROXY"`
		YahooRange string        `yaml:"yahoo_range" env:"YAHOO_RANGE"`
		Timeout    time.Duration `yaml:"timeout" env:"FETCH_TIMEOUT"`
	} `yaml:"data_source"`
	Chart struct {
		AssetsHost string `yaml:"assets_host" env:"CHART_ASSETS_HOST"`
	} `yaml:"chart"`
	Schedule struct {
		Cron       string `yaml:"cron" env:"CRON_SCHEDULE"`
		RunOnStart bool   `yaml:"run_on_start" env:"RUN_ON_START"`
	} `yaml:"schedule"`
	Telegram struct {
		BotToken string `yaml:"bot_token" env:"TELEGRAM_BOT_TOKEN"`
		ChatID   string `yaml:"chat_id" env:"TELEGRAM_CHAT_ID"`
	} `yaml:"telegram"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path" env:"SQLITE_PATH"`
	} `yaml:"database"`
	Log struct {
		Level       string `yaml:"level" env:"LOG_LEVEL"`
		Development bool   `yaml:"development" env:"LOG_DEVELOPMENT"`
	} `yaml:"log"`
}

// Load reads config from a YAML file, then applies .env and environment
// variable overrides and fills defaults. A missing file is not an error.
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

	// .env is optional; real environment variables take precedence over it
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := env.Parse(&cfg.Settings); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.PairsFile != "" {
		pairsPath := cfg.PairsFile
		if !filepath.IsAbs(pairsPath) {
			pairsPath = filepath.Join(filepath.Dir(path), pairsPath)
		}
		pairs, err := LoadPairs(pairsPath)
		if err != nil {
			return nil, err
		}
		cfg.Pairs = append(cfg.Pairs, pairs...)
	}

	// Defaults
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	if cfg.ChartDir == "" {
		cfg.ChartDir = "html"
	}
	if cfg.WindowMonths == 0 {
		cfg.WindowMonths = 6
	}
	if cfg.DataSource.Provider == "" {
		cfg.DataSource.Provider = "auto"
	}
	if cfg.DataSource.YahooRange == "" {
		cfg.DataSource.YahooRange = "5y"
	}
	if cfg.DataSource.Timeout == 0 {
		cfg.DataSource.Timeout = 30 * time.Second
	}
	if cfg.Schedule.Cron == "" {
		cfg.Schedule.Cron = "0 30 16 * * 1-5"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	return cfg, nil
}

// LoadPairs reads a pair list from a YAML or JSON file. The JSON array layout
// of configs.json parses as YAML.
func LoadPairs(path string) ([]model.PairConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pairs: %w", err)
	}
	var pairs []model.PairConfig
	if err := yaml.Unmarshal(data, &pairs); err != nil {
		return nil, fmt.Errorf("parse pairs: %w", err)
	}
	return pairs, nil
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if len(c.Pairs) == 0 {
		return fmt.Errorf("at least one pair is required")
	}
	for i, p := range c.Pairs {
		switch {
		case p.Title == "":
			return fmt.Errorf("pairs[%d].title is required", i)
		case p.IndexSymbol == "" || p.ETFSymbol == "":
			return fmt.Errorf("pairs[%d] (%s): index_symbol and etf_symbol are required", i, p.Title)
		case p.IndexFile == "" || p.ETFFile == "":
			return fmt.Errorf("pairs[%d] (%s): index_file and etf_file are required", i, p.Title)
		case !store.ValidKey(p.IndexFile) || !store.ValidKey(p.ETFFile):
			return fmt.Errorf("pairs[%d] (%s): index_file and etf_file must be plain file names", i, p.Title)
		}
	}
	switch c.DataSource.Provider {
	case "auto", "yahoo", "eastmoney":
	default:
		return fmt.Errorf("data_source.provider must be auto, yahoo or eastmoney, got %q", c.DataSource.Provider)
	}
	if c.WindowMonths < 0 {
		return fmt.Errorf("window_months must not be negative")
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	return nil
}

// TelegramEnabled reports whether notifications are configured.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}
