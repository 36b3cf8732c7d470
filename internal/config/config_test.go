package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"FINNHUB_API_KEY", "FINNHUB_BASE_URL", "TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID",
		"SMTP_PASSWORD", "SMTP_PORT", "HTTPS_PROXY", "CRON_PATTERN", "CRON_REALTIME",
		"CRON_ALERT", "SQLITE_PATH", "WATCHLIST_FILE",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DataSource.Provider != "finnhub" || cfg.DataSource.LookbackDays != 30 {
		t.Errorf("unexpected data source defaults %+v", cfg.DataSource)
	}
	if cfg.Schedule.PatternCron != "0 0 */4 * * *" || cfg.Schedule.AlertCron != "0 */5 * * * *" {
		t.Errorf("unexpected schedule defaults %+v", cfg.Schedule)
	}
	if cfg.Market.OpenHour != 9 || cfg.Market.CloseHour != 16 || cfg.Market.Timezone != "America/New_York" {
		t.Errorf("unexpected market defaults %+v", cfg.Market)
	}
	if cfg.Scan.MinConfidence != 0.7 || cfg.Scan.RealtimeMinConfidence != 0.8 {
		t.Errorf("unexpected thresholds %+v", cfg.Scan)
	}
	if !cfg.Database.Record || !cfg.Telegram.Polling {
		t.Error("recording and polling should default on")
	}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "api_key") {
		t.Errorf("expected missing api key error, got %v", err)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
data_source:
  provider: finnhub
  api_key: from-file
  stream_max_age: 30s
schedule:
  alert_cron: "0 */2 * * * *"
alerts:
  max_quote_age: 5m
database:
  record: false
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FINNHUB_API_KEY", "from-env")
	t.Setenv("CRON_PATTERN", "0 30 9 * * 1-5")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DataSource.APIKey != "from-env" {
		t.Errorf("env should override file, got %q", cfg.DataSource.APIKey)
	}
	if cfg.DataSource.StreamMaxAge != 30*time.Second || cfg.Alerts.MaxQuoteAge != 5*time.Minute {
		t.Errorf("durations not parsed: %v %v", cfg.DataSource.StreamMaxAge, cfg.Alerts.MaxQuoteAge)
	}
	if cfg.Schedule.AlertCron != "0 */2 * * * *" || cfg.Schedule.PatternCron != "0 30 9 * * 1-5" {
		t.Errorf("unexpected schedule %+v", cfg.Schedule)
	}
	if cfg.Database.Record {
		t.Error("record: false in file should be kept")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	base := func() *Config {
		cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		cfg.DataSource.APIKey = "k"
		return cfg
	}
	if err := base().Validate(); err != nil {
		t.Fatalf("base config should be valid: %v", err)
	}

	tests := map[string]func(c *Config){
		"unknown provider": func(c *Config) { c.DataSource.Provider = "bloomberg" },
		"bad cron":         func(c *Config) { c.Schedule.RealtimeCron = "every minute" },
		"bad timezone":     func(c *Config) { c.Market.Timezone = "Mars/Olympus" },
		"hours reversed":   func(c *Config) { c.Market.OpenHour, c.Market.CloseHour = 17, 9 },
		"threshold >= 1":   func(c *Config) { c.Scan.MinConfidence = 1.2 },
		"chat missing":     func(c *Config) { c.Telegram.BotToken = "t" },
		"email from":       func(c *Config) { c.Email.Host = "smtp.example.com" },
	}
	for name, mutate := range tests {
		cfg := base()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}

	yahoo := base()
	yahoo.DataSource.Provider = "yahoo"
	yahoo.DataSource.APIKey = ""
	if err := yahoo.Validate(); err != nil {
		t.Errorf("yahoo needs no api key: %v", err)
	}
}
