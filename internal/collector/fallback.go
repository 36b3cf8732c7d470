package collector

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"signalist/internal/model"
)

// Fallback tries each provider in order and returns the first success.
type Fallback struct {
	Providers []Provider
}

// NewFallback chains providers, primary first.
func NewFallback(providers ...Provider) *Fallback {
	return &Fallback{Providers: providers}
}

func (f *Fallback) Name() string {
	names := make([]string, len(f.Providers))
	for i, p := range f.Providers {
		names[i] = p.Name()
	}
	return strings.Join(names, "+")
}

func (f *Fallback) GetDailyBars(ctx context.Context, symbol string, from, to time.Time) ([]model.Bar, error) {
	var errs []error
	for _, p := range f.Providers {
		bars, err := p.GetDailyBars(ctx, symbol, from, to)
		if err == nil {
			return bars, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Printf("[WARN] %s bars for %s failed, trying next source: %v", p.Name(), symbol, err)
		errs = append(errs, err)
	}
	return nil, fmt.Errorf("all sources failed for %s bars: %w: %w", symbol, model.ErrProviderUnavailable, errors.Join(errs...))
}

func (f *Fallback) GetQuote(ctx context.Context, symbol string) (model.Quote, error) {
	var errs []error
	for _, p := range f.Providers {
		q, err := p.GetQuote(ctx, symbol)
		if err == nil {
			return q, nil
		}
		if ctx.Err() != nil {
			return model.Quote{}, ctx.Err()
		}
		log.Printf("[WARN] %s quote for %s failed, trying next source: %v", p.Name(), symbol, err)
		errs = append(errs, err)
	}
	return model.Quote{}, fmt.Errorf("all sources failed for %s quote: %w: %w", symbol, model.ErrProviderUnavailable, errors.Join(errs...))
}
