// Package config provides configuration management for the trading engine.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	apperrors "github.com/Shilder25/opinion-arena/internal/errors"
)

// Bankroll modes.
const (
	ModeTest       = "TEST"
	ModeProduction = "PRODUCTION"
)

// Config holds all application configuration.
type Config struct {
	System    SystemConfig    `mapstructure:"system"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Venue     VenueConfig     `mapstructure:"venue"`
	Bankroll  BankrollConfig  `mapstructure:"bankroll"`
	Risk      RiskConfig      `mapstructure:"risk"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Cycle     CycleConfig     `mapstructure:"cycle"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Firms     []FirmConfig    `mapstructure:"firms"`
	Collector CollectorConfig `mapstructure:"collectors"`
}

// SystemConfig holds the master switches.
type SystemConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`
}

// ServerConfig holds the admin HTTP server configuration.
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds the SQLite store configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// VenueConfig holds the prediction-market venue API configuration.
type VenueConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	APIKey           string        `mapstructure:"-"` // env only
	WalletPrivateKey string        `mapstructure:"-"` // env only
	Timeout          time.Duration `mapstructure:"timeout"`
	MaxRetries       int           `mapstructure:"max_retries"`
}

// BankrollConfig holds the per-firm bankroll allocation.
type BankrollConfig struct {
	Mode           string  `mapstructure:"mode"` // TEST, PRODUCTION
	InitialBalance float64 `mapstructure:"initial_balance"`
	DailySpendCap  float64 `mapstructure:"daily_spend_cap"` // 0 disables
}

// TierConfig holds the limits for one adaptive risk tier.
type TierConfig struct {
	MinRatio     float64 `mapstructure:"min_ratio"` // balance/initial, inclusive lower bound
	MaxBetPct    float64 `mapstructure:"max_bet_pct"`
	DailyLossPct float64 `mapstructure:"daily_loss_pct"`
	MaxDailyBets int     `mapstructure:"max_daily_bets"`
}

// RiskConfig holds the adaptive tier table and global risk limits.
type RiskConfig struct {
	Conservative        TierConfig `mapstructure:"conservative"`
	Defensive           TierConfig `mapstructure:"defensive"`
	Recovery            TierConfig `mapstructure:"recovery"`
	Emergency           TierConfig `mapstructure:"emergency"`
	SuspendBelow        float64    `mapstructure:"suspend_below"`
	MaxCategoryExposure float64    `mapstructure:"max_category_exposure"`
}

// EngineConfig holds EV and sizing parameters.
type EngineConfig struct {
	FeeRate            float64 `mapstructure:"fee_rate"`
	MinBet             float64 `mapstructure:"min_bet"`
	KellyFraction      float64 `mapstructure:"kelly_fraction"`
	MartingaleBase     float64 `mapstructure:"martingale_base"`
	MartingaleCap      float64 `mapstructure:"martingale_cap"`
	AntiMartingaleBase float64 `mapstructure:"anti_martingale_base"`
	AntiMartingaleCap  float64 `mapstructure:"anti_martingale_cap"`
	ProportionalPct    float64 `mapstructure:"proportional_pct"`
}

// CycleConfig holds orchestrator parameters.
type CycleConfig struct {
	Deadline       time.Duration `mapstructure:"deadline"`
	PageSize       int           `mapstructure:"page_size"`
	MaxMarkets     int           `mapstructure:"max_markets"`
	MarketsPerFirm int           `mapstructure:"markets_per_firm"`
	CronSpec       string        `mapstructure:"cron_spec"`
}

// MonitorConfig holds the open-order monitor parameters.
type MonitorConfig struct {
	Secret        string        `mapstructure:"-"` // env only
	CronSpec      string        `mapstructure:"cron_spec"`
	Interval      time.Duration `mapstructure:"interval"` // min spacing between reviews of one order; 0 reviews on every pass
	MaxStrikes    int           `mapstructure:"max_strikes"`
	PriceDeltaPct float64       `mapstructure:"price_delta_pct"`
	MaxAge        time.Duration `mapstructure:"max_age"`
}

// FirmConfig describes one model-backed trading firm.
type FirmConfig struct {
	Name     string `mapstructure:"name"`
	ModelID  string `mapstructure:"model_id"`
	BaseURL  string `mapstructure:"base_url"`
	APIKey   string `mapstructure:"-"` // env only, keyed by api_key_env
	KeyEnv   string `mapstructure:"api_key_env"`
	ColorTag string `mapstructure:"color_tag"`
	Strategy string `mapstructure:"strategy"`
}

// CollectorConfig holds the market-data collector endpoints and
// credentials.
type CollectorConfig struct {
	NewsBaseURL      string        `mapstructure:"news_base_url"`
	SentimentBaseURL string        `mapstructure:"sentiment_base_url"`
	NewsAPIKey       string        `mapstructure:"-"`
	SentimentAPIKey  string        `mapstructure:"-"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/opinion-arena"
	}
	return filepath.Join(home, ".config", "opinion-arena")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	// .env is optional; environment wins either way.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, apperrors.NewConfigError("config.toml", err.Error())
		}
		if err := createTemplateConfig(configDir); err != nil {
			return nil, apperrors.NewConfigError("config.toml", err.Error())
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, apperrors.NewConfigError("config.toml", err.Error())
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("system.enabled", true)
	v.SetDefault("system.log_level", "info")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 16*time.Minute)

	v.SetDefault("database.path", filepath.Join(DefaultConfigDir(), "arena.db"))

	v.SetDefault("venue.base_url", "https://api.opinion.trade")
	v.SetDefault("venue.timeout", 30*time.Second)
	v.SetDefault("venue.max_retries", 3)

	v.SetDefault("bankroll.mode", ModeTest)

	v.SetDefault("risk.conservative", map[string]interface{}{
		"min_ratio": 0.85, "max_bet_pct": 2.0, "daily_loss_pct": 10.0, "max_daily_bets": 5,
	})
	v.SetDefault("risk.defensive", map[string]interface{}{
		"min_ratio": 0.70, "max_bet_pct": 1.0, "daily_loss_pct": 7.0, "max_daily_bets": 3,
	})
	v.SetDefault("risk.recovery", map[string]interface{}{
		"min_ratio": 0.60, "max_bet_pct": 0.5, "daily_loss_pct": 5.0, "max_daily_bets": 2,
	})
	v.SetDefault("risk.emergency", map[string]interface{}{
		"min_ratio": 0.50, "max_bet_pct": 0.25, "daily_loss_pct": 3.0, "max_daily_bets": 1,
	})
	v.SetDefault("risk.suspend_below", 0.50)
	v.SetDefault("risk.max_category_exposure", 30.0)

	v.SetDefault("engine.fee_rate", 0.02)
	v.SetDefault("engine.min_bet", 1.50)
	v.SetDefault("engine.kelly_fraction", 0.25)
	v.SetDefault("engine.martingale_base", 1.5)
	v.SetDefault("engine.martingale_cap", 3.0)
	v.SetDefault("engine.anti_martingale_base", 1.3)
	v.SetDefault("engine.anti_martingale_cap", 3.0)
	v.SetDefault("engine.proportional_pct", 1.5)

	v.SetDefault("cycle.deadline", 15*time.Minute)
	v.SetDefault("cycle.page_size", 20)
	v.SetDefault("cycle.max_markets", 200)
	v.SetDefault("cycle.markets_per_firm", 10)
	v.SetDefault("cycle.cron_spec", "0 12 * * *")

	v.SetDefault("monitor.cron_spec", "*/30 * * * *")
	v.SetDefault("monitor.interval", 30*time.Minute)
	v.SetDefault("monitor.max_strikes", 3)
	v.SetDefault("monitor.price_delta_pct", 15.0)
	v.SetDefault("monitor.max_age", 168*time.Hour)

	v.SetDefault("collectors.news_base_url", "https://newsapi.org")
	v.SetDefault("collectors.sentiment_base_url", "https://api.sentiment.market")
	v.SetDefault("collectors.timeout", 10*time.Second)

	v.SetDefault("firms", defaultFirms())
}

func defaultFirms() []map[string]interface{} {
	return []map[string]interface{}{
		{"name": "ChatGPT", "model_id": "gpt-4o", "base_url": "https://api.openai.com/v1", "api_key_env": "OPENAI_API_KEY", "color_tag": "green", "strategy": "KELLY_CONSERVATIVE"},
		{"name": "Gemini", "model_id": "gemini-2.0-flash", "base_url": "https://generativelanguage.googleapis.com/v1beta/openai", "api_key_env": "GEMINI_API_KEY", "color_tag": "blue", "strategy": "MARTINGALE_MODIFIED"},
		{"name": "Qwen", "model_id": "qwen-plus", "base_url": "https://dashscope.aliyuncs.com/compatible-mode/v1", "api_key_env": "QWEN_API_KEY", "color_tag": "purple", "strategy": "FIXED_FRACTIONAL"},
		{"name": "Deepseek", "model_id": "deepseek-chat", "base_url": "https://api.deepseek.com/v1", "api_key_env": "DEEPSEEK_API_KEY", "color_tag": "cyan", "strategy": "PROPORTIONAL"},
		{"name": "Grok", "model_id": "grok-2-latest", "base_url": "https://api.x.ai/v1", "api_key_env": "GROK_API_KEY", "color_tag": "red", "strategy": "ANTI_MARTINGALE"},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VENUE_API_KEY"); v != "" {
		cfg.Venue.APIKey = v
	}
	if v := os.Getenv("WALLET_PRIVATE_KEY"); v != "" {
		cfg.Venue.WalletPrivateKey = v
	}
	if v := os.Getenv("BANKROLL_MODE"); v != "" {
		cfg.Bankroll.Mode = v
	}
	if v := os.Getenv("SYSTEM_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.System.Enabled = b
		}
	}
	if v := os.Getenv("MONITOR_SECRET"); v != "" {
		cfg.Monitor.Secret = v
	}
	if v := os.Getenv("NEWS_API_KEY"); v != "" {
		cfg.Collector.NewsAPIKey = v
	}
	if v := os.Getenv("SENTIMENT_API_KEY"); v != "" {
		cfg.Collector.SentimentAPIKey = v
	}
	for i := range cfg.Firms {
		if cfg.Firms[i].KeyEnv == "" {
			continue
		}
		if v := os.Getenv(cfg.Firms[i].KeyEnv); v != "" {
			cfg.Firms[i].APIKey = v
		}
	}

	// Mode resolves the bankroll numbers when the file leaves them unset.
	if cfg.Bankroll.InitialBalance == 0 {
		switch cfg.Bankroll.Mode {
		case ModeProduction:
			cfg.Bankroll.InitialBalance = 5000
			cfg.Bankroll.DailySpendCap = 0
		default:
			cfg.Bankroll.InitialBalance = 50
			cfg.Bankroll.DailySpendCap = 5
		}
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Bankroll.Mode != ModeTest && c.Bankroll.Mode != ModeProduction {
		return apperrors.NewConfigError("bankroll.mode", "must be TEST or PRODUCTION")
	}
	if c.Bankroll.InitialBalance <= 0 {
		return apperrors.NewConfigError("bankroll.initial_balance", "must be positive")
	}
	if c.Engine.MinBet <= 0 {
		return apperrors.NewConfigError("engine.min_bet", "must be positive")
	}
	if c.Engine.FeeRate < 0 || c.Engine.FeeRate >= 1 {
		return apperrors.NewConfigError("engine.fee_rate", "must be in [0,1)")
	}
	if c.Cycle.Deadline <= 0 {
		return apperrors.NewConfigError("cycle.deadline", "must be positive")
	}
	if c.Monitor.MaxStrikes < 1 {
		return apperrors.NewConfigError("monitor.max_strikes", "must be at least 1")
	}
	if len(c.Firms) == 0 {
		return apperrors.NewConfigError("firms", "at least one firm required")
	}
	seen := make(map[string]bool, len(c.Firms))
	for _, f := range c.Firms {
		if f.Name == "" {
			return apperrors.NewConfigError("firms.name", "must not be empty")
		}
		if seen[f.Name] {
			return apperrors.NewConfigError("firms.name", "duplicate firm "+f.Name)
		}
		seen[f.Name] = true
	}
	tiers := []struct {
		name string
		t    TierConfig
	}{
		{"risk.conservative", c.Risk.Conservative},
		{"risk.defensive", c.Risk.Defensive},
		{"risk.recovery", c.Risk.Recovery},
		{"risk.emergency", c.Risk.Emergency},
	}
	prev := 1.01
	for _, tc := range tiers {
		if tc.t.MinRatio <= 0 || tc.t.MinRatio >= prev {
			return apperrors.NewConfigError(tc.name+".min_ratio", "tier ratios must be strictly decreasing in (0,1)")
		}
		if tc.t.MaxBetPct <= 0 {
			return apperrors.NewConfigError(tc.name+".max_bet_pct", "must be positive")
		}
		prev = tc.t.MinRatio
	}
	if c.Risk.SuspendBelow != c.Risk.Emergency.MinRatio {
		return apperrors.NewConfigError("risk.suspend_below", "must equal emergency tier lower bound")
	}
	return nil
}

// IsTestMode returns true if the TEST bankroll mode is active.
func (c *Config) IsTestMode() bool {
	return c.Bankroll.Mode == ModeTest
}
