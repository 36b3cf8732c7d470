package alert

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"signalist/internal/collector"
	"signalist/internal/model"
	"signalist/internal/store"

	"golang.org/x/sync/errgroup"
)

// Evaluator sweeps eligible alerts against live quotes and moves crossed ones
// to triggered. It never notifies; callers dispatch the returned triggers.
type Evaluator struct {
	Store       store.AlertStore
	Quotes      collector.QuoteProvider
	Concurrency int           // symbols evaluated in parallel, <= 0 means 4
	MaxQuoteAge time.Duration // 0 accepts any quote age
	Now         func() time.Time
}

func (e *Evaluator) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// EvaluateAll runs one sweep. The only returned error is a failure to list
// alerts; per-symbol and per-alert failures are logged and skipped.
func (e *Evaluator) EvaluateAll(ctx context.Context) ([]model.TriggeredAlert, error) {
	alerts, err := e.Store.ListActiveAlerts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active alerts: %w", err)
	}
	if len(alerts) == 0 {
		return nil, nil
	}

	bySymbol := make(map[string][]model.AlertRecord)
	var symbols []string
	for _, a := range alerts {
		// The store contract already filters, but a stale row must never fire.
		if !a.Eligible() {
			continue
		}
		if _, ok := bySymbol[a.Symbol]; !ok {
			symbols = append(symbols, a.Symbol)
		}
		bySymbol[a.Symbol] = append(bySymbol[a.Symbol], a)
	}

	limit := e.Concurrency
	if limit <= 0 {
		limit = 4
	}
	var (
		mu        sync.Mutex
		triggered []model.TriggeredAlert
		g         errgroup.Group
	)
	g.SetLimit(limit)

	for i, sym := range symbols {
		if ctx.Err() != nil {
			log.Printf("[WARN] alert sweep cancelled, %d symbols not evaluated", len(symbols)-i)
			break
		}
		group := bySymbol[sym]
		g.Go(func() error {
			out := e.evaluateSymbol(ctx, sym, group)
			if len(out) > 0 {
				mu.Lock()
				triggered = append(triggered, out...)
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()

	log.Printf("[INFO] alert sweep: %d alerts on %d symbols, %d triggered", len(alerts), len(symbols), len(triggered))
	return triggered, nil
}

// evaluateSymbol fetches one quote and applies it to every alert on the symbol.
func (e *Evaluator) evaluateSymbol(ctx context.Context, symbol string, alerts []model.AlertRecord) []model.TriggeredAlert {
	quote, err := e.Quotes.GetQuote(ctx, symbol)
	if err != nil {
		log.Printf("[WARN] quote %s unavailable, skipping %d alerts: %v", symbol, len(alerts), err)
		return nil
	}
	now := e.now()
	if err := e.checkQuote(quote, now); err != nil {
		log.Printf("[WARN] quote %s rejected, skipping %d alerts: %v", symbol, len(alerts), err)
		return nil
	}

	// Writes for this symbol finish even if the sweep is cancelled meanwhile.
	wctx := context.WithoutCancel(ctx)
	var out []model.TriggeredAlert
	for _, a := range alerts {
		if !a.Crossed(quote.Price) {
			if err := e.Store.UpdateLastKnownPrice(wctx, a.ID, quote.Price); err != nil {
				log.Printf("[WARN] update last price of alert %s: %v", a.ID, err)
			}
			continue
		}

		updated, err := e.Store.CompareAndMarkTriggered(wctx, a.ID, false, quote.Price, now)
		switch {
		case err != nil:
			log.Printf("[ERROR] mark alert %s triggered: %v", a.ID, err)
			continue
		case !updated:
			log.Printf("[INFO] alert %s: %v, already triggered or deactivated", a.ID, model.ErrPersistenceConflict)
			continue
		}

		a.IsTriggered = true
		a.TriggeredAt = &now
		a.LastKnownPrice = quote.Price
		log.Printf("[INFO] alert %s triggered: %s %s %s at %s", a.ID, a.Symbol, a.Direction, a.TargetPrice, quote.Price)
		out = append(out, model.TriggeredAlert{Alert: a, Price: quote.Price, At: now})
	}
	return out
}

func (e *Evaluator) checkQuote(q model.Quote, now time.Time) error {
	if !q.Price.IsPositive() {
		return fmt.Errorf("non-positive price %s: %w", q.Price, model.ErrProviderUnavailable)
	}
	if e.MaxQuoteAge > 0 && !q.Time.IsZero() && now.Sub(q.Time) > e.MaxQuoteAge {
		return fmt.Errorf("quote from %s older than %v: %w", q.Time.Format(time.RFC3339), e.MaxQuoteAge, model.ErrStaleQuote)
	}
	return nil
}
