package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"signalist/internal/alert"
	"signalist/internal/collector"
	"signalist/internal/model"
	"signalist/internal/notifier"
	"signalist/internal/pattern"
	"signalist/internal/recorder"
	"signalist/internal/watchlist"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

// Options tunes the scan loops.
type Options struct {
	Lookback              time.Duration
	Concurrency           int
	MinConfidence         float64
	RealtimeMinConfidence float64
	Location              *time.Location
	OpenHour              int
	CloseHour             int // inclusive
}

// DefaultOptions mirrors the config defaults.
func DefaultOptions() Options {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}
	return Options{
		Lookback:              30 * 24 * time.Hour,
		Concurrency:           4,
		MinConfidence:         0.7,
		RealtimeMinConfidence: 0.8,
		Location:              loc,
		OpenHour:              9,
		CloseHour:             16,
	}
}

// Scheduler manages all cron tasks.
type Scheduler struct {
	Cron      *cron.Cron
	Bars      collector.BarProvider
	Evaluator *alert.Evaluator
	Alerts    *alert.Service
	Directory *watchlist.Directory
	Notifier  notifier.Notifier
	Recorder  recorder.Recorder
	Options   Options
	// Operator receives pattern batches when the directory has no users and
	// triggers whose owner is not in the directory.
	Operator *model.Recipient
	Ctx      context.Context
	Now      func() time.Time

	patternMu  sync.Mutex
	realtimeMu sync.Mutex
	alertMu    sync.Mutex
}

// NewScheduler creates a new Scheduler. Panicking jobs are recovered and logged.
func NewScheduler(ctx context.Context, bars collector.BarProvider, ev *alert.Evaluator, svc *alert.Service,
	dir *watchlist.Directory, n notifier.Notifier, rec recorder.Recorder, opts Options) *Scheduler {
	logger := cron.PrintfLogger(log.Default())
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(logger))),
		Bars:      bars,
		Evaluator: ev,
		Alerts:    svc,
		Directory: dir,
		Notifier:  n,
		Recorder:  rec,
		Options:   opts,
		Ctx:       ctx,
	}
}

// RegisterAll registers the pattern, realtime and alert loops.
func (s *Scheduler) RegisterAll(patternCron, realtimeCron, alertCron string) error {
	if _, err := s.Cron.AddFunc(patternCron, func() { s.RunPatternsNow(s.Ctx) }); err != nil {
		return fmt.Errorf("register pattern task: %w", err)
	}
	if _, err := s.Cron.AddFunc(realtimeCron, func() { s.RunRealtimeNow(s.Ctx) }); err != nil {
		return fmt.Errorf("register realtime task: %w", err)
	}
	if _, err := s.Cron.AddFunc(alertCron, func() { s.RunAlertsNow(s.Ctx) }); err != nil {
		return fmt.Errorf("register alert task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Println("[INFO] scheduler stopped")
}

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// ScanResult summarizes one pattern scan.
type ScanResult struct {
	Skipped  bool
	Analyzed int
	Failed   int
	Findings []model.SymbolFinding
	Batches  int
}

// RunPatternsNow scans every watchlist symbol and notifies recipients of
// significant patterns. An overlapping run is skipped.
func (s *Scheduler) RunPatternsNow(ctx context.Context) ScanResult {
	if !s.patternMu.TryLock() {
		log.Println("[WARN] pattern scan still running, skipping")
		return ScanResult{Skipped: true}
	}
	defer s.patternMu.Unlock()

	log.Println("[INFO] running pattern scan")
	return s.scan(ctx, recorder.KindScheduled, s.Directory.AllSymbols(), s.Options.MinConfidence)
}

// RunRealtimeNow scans the priority symbols during market hours.
func (s *Scheduler) RunRealtimeNow(ctx context.Context) ScanResult {
	if !s.realtimeMu.TryLock() {
		log.Println("[WARN] realtime scan still running, skipping")
		return ScanResult{Skipped: true}
	}
	defer s.realtimeMu.Unlock()

	if !s.MarketOpen(s.now()) {
		log.Println("[INFO] market is closed, skipping realtime scan")
		return ScanResult{Skipped: true}
	}
	log.Println("[INFO] running realtime pattern scan")
	return s.scan(ctx, recorder.KindRealtime, s.Directory.PrioritySymbols(), s.Options.RealtimeMinConfidence)
}

// MarketOpen reports whether t falls on a weekday within the configured hours.
func (s *Scheduler) MarketOpen(t time.Time) bool {
	loc := s.Options.Location
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		return false
	}
	h := local.Hour()
	return h >= s.Options.OpenHour && h <= s.Options.CloseHour
}

func (s *Scheduler) scan(ctx context.Context, kind string, symbols []string, minConfidence float64) ScanResult {
	now := s.now()
	limit := s.Options.Concurrency
	if limit <= 0 {
		limit = 4
	}

	var (
		mu          sync.Mutex
		res         ScanResult
		significant = make(map[string][]model.PatternMatch)
		g           errgroup.Group
	)
	g.SetLimit(limit)
	for _, sym := range symbols {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			a, err := pattern.AnalyzeSymbol(ctx, s.Bars, sym, s.Options.Lookback, now)
			evt := &recorder.ScanEvent{Kind: kind, Symbol: sym, At: now}
			if err != nil {
				if errors.Is(err, model.ErrInsufficientData) {
					log.Printf("[WARN] %s: insufficient data, skipping", sym)
				} else {
					log.Printf("[ERROR] analyze %s: %v", sym, err)
				}
				evt.Error = err.Error()
				s.record(evt)
				mu.Lock()
				res.Failed++
				mu.Unlock()
				return nil
			}
			evt.Matches, evt.Summary = a.Matches, a.Summary
			s.record(evt)

			mu.Lock()
			res.Analyzed++
			if sig := pattern.Significant(a.Matches, minConfidence); len(sig) > 0 {
				significant[sym] = sig
			}
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	// Keep the watchlist order so batches are deterministic.
	for _, sym := range symbols {
		for _, m := range significant[sym] {
			if m.Direction == model.Neutral {
				continue
			}
			res.Findings = append(res.Findings, model.SymbolFinding{Symbol: sym, Match: m})
		}
	}
	log.Printf("[INFO] %s scan: %d symbols analyzed, %d failed, %d significant patterns",
		kind, res.Analyzed, res.Failed, len(res.Findings))
	if len(res.Findings) == 0 {
		return res
	}

	recipients := s.Directory.Recipients()
	if len(recipients) == 0 && s.Operator != nil {
		recipients = []model.Recipient{*s.Operator}
	}
	for _, r := range recipients {
		batch := model.PatternBatch{Realtime: kind == recorder.KindRealtime, At: now}
		for _, f := range res.Findings {
			if r.Watches(f.Symbol) {
				batch.Findings = append(batch.Findings, f)
			}
		}
		if len(batch.Findings) == 0 {
			continue
		}
		if err := s.Notifier.Notify(ctx, r, batch); err != nil {
			log.Printf("[ERROR] send pattern alert to %s: %v", r.UserID, err)
			continue
		}
		res.Batches++
	}
	return res
}

// RunAlertsNow evaluates all eligible alerts and notifies the owners of
// triggered ones. It returns the triggers of this sweep.
func (s *Scheduler) RunAlertsNow(ctx context.Context) []model.TriggeredAlert {
	if !s.alertMu.TryLock() {
		log.Println("[WARN] alert sweep still running, skipping")
		return nil
	}
	defer s.alertMu.Unlock()

	triggered, err := s.Evaluator.EvaluateAll(ctx)
	if err != nil {
		log.Printf("[ERROR] alert sweep: %v", err)
		return nil
	}
	// Triggers are already persisted; notify even if the sweep was cancelled.
	nctx := context.WithoutCancel(ctx)
	for _, t := range triggered {
		evt := recorder.NewTriggerEvent(t)
		to, ok := s.recipientFor(t.Alert.UserID)
		if !ok {
			log.Printf("[WARN] alert %s: no recipient for user %s", t.Alert.ID, t.Alert.UserID)
			evt.NotifyError = "no recipient"
		} else if err := s.Notifier.Notify(nctx, to, t); err != nil {
			log.Printf("[ERROR] notify alert %s: %v", t.Alert.ID, err)
			evt.NotifyError = err.Error()
		} else {
			evt.Notified = true
		}
		if err := s.Recorder.RecordTrigger(evt); err != nil {
			log.Printf("[ERROR] record trigger: %v", err)
		}
	}
	return triggered
}

func (s *Scheduler) recipientFor(userID string) (model.Recipient, bool) {
	if r, ok := s.Directory.Recipient(userID); ok {
		return r, true
	}
	if s.Operator != nil {
		r := *s.Operator
		r.UserID = userID
		return r, true
	}
	return model.Recipient{}, false
}

// AnalyzeNow runs the pattern analysis for one symbol on demand.
func (s *Scheduler) AnalyzeNow(ctx context.Context, symbol string) (*model.Analysis, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	a, err := pattern.AnalyzeSymbol(ctx, s.Bars, symbol, s.Options.Lookback, s.now())
	evt := &recorder.ScanEvent{Kind: recorder.KindManual, Symbol: symbol, At: s.now()}
	if err != nil {
		evt.Error = err.Error()
		s.record(evt)
		return nil, err
	}
	evt.Matches, evt.Summary = a.Matches, a.Summary
	s.record(evt)
	return a, nil
}

// HandleCommand processes a Telegram command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, chatID, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return notifier.HelpText()
	}
	cmd := strings.ToLower(fields[0])
	switch cmd {
	case "/patterns":
		if len(fields) < 2 {
			return "Usage: /patterns SYMBOL"
		}
		a, err := s.AnalyzeNow(ctx, fields[1])
		if err != nil {
			return fmt.Sprintf("❌ %v", err)
		}
		return notifier.FormatAnalysis(a)
	case "/alerts":
		r, ok := s.Directory.RecipientByChat(chatID)
		if !ok {
			return "This chat is not linked to a user."
		}
		alerts, err := s.Alerts.List(ctx, r.UserID, false)
		if err != nil {
			return fmt.Sprintf("❌ %v", err)
		}
		return notifier.FormatAlertList(alerts)
	case "/watch", "/unwatch":
		if len(fields) < 2 {
			return "Usage: " + cmd + " SYMBOL"
		}
		r, ok := s.Directory.RecipientByChat(chatID)
		if !ok {
			return "This chat is not linked to a user."
		}
		sym := strings.ToUpper(fields[1])
		if cmd == "/unwatch" {
			if err := s.Directory.RemoveSymbol(r.UserID, sym); err != nil {
				return fmt.Sprintf("❌ %v", err)
			}
			return fmt.Sprintf("Removed %s from your watchlist", sym)
		}
		added, err := s.Directory.AddSymbol(r.UserID, sym)
		if err != nil {
			return fmt.Sprintf("❌ %v", err)
		}
		if !added {
			return fmt.Sprintf("%s is already in your watchlist", sym)
		}
		return fmt.Sprintf("Added %s to your watchlist", sym)
	default:
		return notifier.HelpText()
	}
}

func (s *Scheduler) record(evt *recorder.ScanEvent) {
	if err := s.Recorder.RecordScan(evt); err != nil {
		log.Printf("[ERROR] record scan %s: %v", evt.Symbol, err)
	}
}
