package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	DataSource struct {
		Provider      string        `yaml:"provider"` // finnhub, yahoo or mock
		BaseURL       string        `yaml:"base_url"`
		APIKey        string        `yaml:"api_key"`
		RatePerSecond float64       `yaml:"rate_per_second"`
		YahooFallback bool          `yaml:"yahoo_fallback"`
		Stream        bool          `yaml:"stream"`
		StreamMaxAge  time.Duration `yaml:"stream_max_age"`
		LookbackDays  int           `yaml:"lookback_days"`
	} `yaml:"data_source"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
		Polling  bool   `yaml:"polling"`
	} `yaml:"telegram"`
	Email struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		From     string `yaml:"from"`
	} `yaml:"email"`
	Schedule struct {
		PatternCron  string `yaml:"pattern_cron"`
		RealtimeCron string `yaml:"realtime_cron"`
		AlertCron    string `yaml:"alert_cron"`
	} `yaml:"schedule"`
	Market struct {
		Timezone  string `yaml:"timezone"`
		OpenHour  int    `yaml:"open_hour"`
		CloseHour int    `yaml:"close_hour"` // inclusive
	} `yaml:"market"`
	Scan struct {
		Concurrency           int     `yaml:"concurrency"`
		MinConfidence         float64 `yaml:"min_confidence"`
		RealtimeMinConfidence float64 `yaml:"realtime_min_confidence"`
	} `yaml:"scan"`
	Alerts struct {
		Concurrency int           `yaml:"concurrency"`
		MaxQuoteAge time.Duration `yaml:"max_quote_age"`
	} `yaml:"alerts"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
		Record     bool   `yaml:"record"`
	} `yaml:"database"`
	Watchlist struct {
		File string `yaml:"file"`
	} `yaml:"watchlist"`
	Proxy string `yaml:"proxy"`
}

// Load reads an optional .env file and the YAML config, then applies
// environment variable overrides and defaults.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[WARN] load .env: %v", err)
	}

	cfg := &Config{}
	// Defaults that a YAML file may switch off.
	cfg.Database.Record = true
	cfg.Telegram.Polling = true

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
	if v := os.Getenv("FINNHUB_API_KEY"); v != "" {
		cfg.DataSource.APIKey = v
	}
	if v := os.Getenv("FINNHUB_BASE_URL"); v != "" {
		cfg.DataSource.BaseURL = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		cfg.Email.Password = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Email.Port = port
		}
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("CRON_PATTERN"); v != "" {
		cfg.Schedule.PatternCron = v
	}
	if v := os.Getenv("CRON_REALTIME"); v != "" {
		cfg.Schedule.RealtimeCron = v
	}
	if v := os.Getenv("CRON_ALERT"); v != "" {
		cfg.Schedule.AlertCron = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("WATCHLIST_FILE"); v != "" {
		cfg.Watchlist.File = v
	}

	// Defaults
	if cfg.DataSource.Provider == "" {
		cfg.DataSource.Provider = "finnhub"
	}
	if cfg.DataSource.BaseURL == "" {
		cfg.DataSource.BaseURL = "https://finnhub.io/api/v1"
	}
	if cfg.DataSource.RatePerSecond == 0 {
		cfg.DataSource.RatePerSecond = 1 // free tier: 60 calls per minute
	}
	if cfg.DataSource.StreamMaxAge == 0 {
		cfg.DataSource.StreamMaxAge = time.Minute
	}
	if cfg.DataSource.LookbackDays == 0 {
		cfg.DataSource.LookbackDays = 30
	}
	if cfg.Email.Port == 0 {
		cfg.Email.Port = 587
	}
	if cfg.Schedule.PatternCron == "" {
		cfg.Schedule.PatternCron = "0 0 */4 * * *"
	}
	if cfg.Schedule.RealtimeCron == "" {
		cfg.Schedule.RealtimeCron = "0 */15 * * * *"
	}
	if cfg.Schedule.AlertCron == "" {
		cfg.Schedule.AlertCron = "0 */5 * * * *"
	}
	if cfg.Market.Timezone == "" {
		cfg.Market.Timezone = "America/New_York"
	}
	if cfg.Market.OpenHour == 0 && cfg.Market.CloseHour == 0 {
		cfg.Market.OpenHour = 9
		cfg.Market.CloseHour = 16
	}
	if cfg.Scan.Concurrency == 0 {
		cfg.Scan.Concurrency = 4
	}
	if cfg.Scan.MinConfidence == 0 {
		cfg.Scan.MinConfidence = 0.7
	}
	if cfg.Scan.RealtimeMinConfidence == 0 {
		cfg.Scan.RealtimeMinConfidence = 0.8
	}
	if cfg.Alerts.Concurrency == 0 {
		cfg.Alerts.Concurrency = 4
	}
	if cfg.Alerts.MaxQuoteAge == 0 {
		cfg.Alerts.MaxQuoteAge = 15 * time.Minute
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/signalist.db"
	}
	if cfg.Watchlist.File == "" {
		cfg.Watchlist.File = "watchlist.yaml"
	}

	return cfg, nil
}

// Location returns the market timezone. Call Validate first.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Market.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Validate checks that all required fields are set and consistent.
func (c *Config) Validate() error {
	switch c.DataSource.Provider {
	case "finnhub":
		if c.DataSource.APIKey == "" {
			return fmt.Errorf("data_source.api_key is required for finnhub")
		}
	case "yahoo", "mock":
	default:
		return fmt.Errorf("data_source.provider %q is not one of finnhub, yahoo, mock", c.DataSource.Provider)
	}
	if c.Telegram.BotToken != "" && c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram.chat_id is required when telegram.bot_token is set")
	}
	if c.Email.Host != "" && c.Email.From == "" {
		return fmt.Errorf("email.from is required when email.host is set")
	}

	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for name, spec := range map[string]string{
		"schedule.pattern_cron":  c.Schedule.PatternCron,
		"schedule.realtime_cron": c.Schedule.RealtimeCron,
		"schedule.alert_cron":    c.Schedule.AlertCron,
	} {
		if _, err := parser.Parse(spec); err != nil {
			return fmt.Errorf("%s %q: %w", name, spec, err)
		}
	}

	if _, err := time.LoadLocation(c.Market.Timezone); err != nil {
		return fmt.Errorf("market.timezone: %w", err)
	}
	if c.Market.OpenHour < 0 || c.Market.CloseHour > 23 || c.Market.OpenHour > c.Market.CloseHour {
		return fmt.Errorf("market hours %d..%d are invalid", c.Market.OpenHour, c.Market.CloseHour)
	}
	if c.Scan.Concurrency < 1 || c.Alerts.Concurrency < 1 {
		return fmt.Errorf("concurrency must be positive")
	}
	for name, v := range map[string]float64{
		"scan.min_confidence":          c.Scan.MinConfidence,
		"scan.realtime_min_confidence": c.Scan.RealtimeMinConfidence,
	} {
		if v <= 0 || v >= 1 {
			return fmt.Errorf("%s must be between 0 and 1, got %v", name, v)
		}
	}
	if c.Alerts.MaxQuoteAge < 0 {
		return fmt.Errorf("alerts.max_quote_age must not be negative")
	}
	return nil
}
