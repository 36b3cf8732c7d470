package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"signalist/internal/alert"
	"signalist/internal/collector"
	"signalist/internal/config"
	"signalist/internal/model"
	"signalist/internal/notifier"
	"signalist/internal/recorder"
	"signalist/internal/scheduler"
	"signalist/internal/store"
	"signalist/internal/watchlist"
)

// app holds the wired components shared by all commands.
type app struct {
	cfg       *config.Config
	provider  collector.Provider
	stream    *collector.TradeStream
	store     *store.SQLiteStore
	recorder  recorder.Recorder
	directory *watchlist.Directory
	telegram  *notifier.TelegramNotifier
	notifier  *notifier.Router
	evaluator *alert.Evaluator
	alerts    *alert.Service
	sched     *scheduler.Scheduler
}

// newApp loads the config and wires every component. withStream enables the
// websocket quote cache; the caller must run it.
func newApp(ctx context.Context, withStream bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	a := &app{cfg: cfg}

	a.directory, err = watchlist.Load(cfg.Watchlist.File)
	if err != nil {
		return nil, fmt.Errorf("load watchlist: %w", err)
	}

	a.provider = newProvider(cfg, a.directory)
	log.Printf("[INFO] data source: %s", a.provider.Name())
	var quotes collector.QuoteProvider = a.provider
	if withStream && cfg.DataSource.Stream && cfg.DataSource.Provider == "finnhub" {
		a.stream = collector.NewTradeStream(cfg.DataSource.APIKey, a.directory.AllSymbols(), cfg.DataSource.StreamMaxAge, a.provider)
		quotes = a.stream
	}

	a.store, err = store.NewSQLiteStore(cfg.Database.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open alert store: %w", err)
	}

	a.recorder = recorder.NewNoopRecorder()
	if cfg.Database.Record {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			log.Printf("[WARN] init sqlite recorder failed, using noop: %v", err)
		} else {
			a.recorder = sr
		}
	}

	a.notifier = &notifier.Router{}
	var operator *model.Recipient
	if cfg.Telegram.BotToken != "" {
		a.telegram = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		a.notifier.Push = a.telegram
		operator = &model.Recipient{UserID: "operator", Method: model.MethodPush}
	} else {
		log.Println("[WARN] telegram not configured, push notifications disabled")
	}
	if cfg.Email.Host != "" {
		a.notifier.Email = notifier.NewEmailNotifier(cfg.Email.Host, cfg.Email.Port, cfg.Email.Username, cfg.Email.Password, cfg.Email.From)
	} else {
		log.Println("[WARN] email not configured, email notifications disabled")
	}

	a.evaluator = &alert.Evaluator{
		Store:       a.store,
		Quotes:      quotes,
		Concurrency: cfg.Alerts.Concurrency,
		MaxQuoteAge: cfg.Alerts.MaxQuoteAge,
	}
	a.alerts = &alert.Service{Store: a.store, Quotes: a.provider}

	opts := scheduler.Options{
		Lookback:              time.Duration(cfg.DataSource.LookbackDays) * 24 * time.Hour,
		Concurrency:           cfg.Scan.Concurrency,
		MinConfidence:         cfg.Scan.MinConfidence,
		RealtimeMinConfidence: cfg.Scan.RealtimeMinConfidence,
		Location:              cfg.Location(),
		OpenHour:              cfg.Market.OpenHour,
		CloseHour:             cfg.Market.CloseHour,
	}
	a.sched = scheduler.NewScheduler(ctx, a.provider, a.evaluator, a.alerts, a.directory, a.notifier, a.recorder, opts)
	a.sched.Operator = operator
	return a, nil
}

func newProvider(cfg *config.Config, dir *watchlist.Directory) collector.Provider {
	switch cfg.DataSource.Provider {
	case "yahoo":
		return collector.NewYahooFetcher(cfg.Proxy)
	case "mock":
		m := &collector.MockFetcher{Bars: make(map[string][]model.Bar)}
		now := time.Now()
		for _, sym := range dir.AllSymbols() {
			m.Bars[sym] = collector.GenerateMockBars(100, cfg.DataSource.LookbackDays, now)
			m.SetQuote(sym, 100, now)
		}
		return m
	}
	finnhub := collector.NewFinnhubFetcher(cfg.DataSource.BaseURL, cfg.DataSource.APIKey, cfg.Proxy, cfg.DataSource.RatePerSecond)
	if cfg.DataSource.YahooFallback {
		return collector.NewFallback(finnhub, collector.NewYahooFetcher(cfg.Proxy))
	}
	return finnhub
}

func (a *app) Close() {
	if err := a.recorder.Close(); err != nil {
		log.Printf("[WARN] close recorder: %v", err)
	}
	if err := a.store.Close(); err != nil {
		log.Printf("[WARN] close alert store: %v", err)
	}
}
