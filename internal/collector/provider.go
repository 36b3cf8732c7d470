package collector

import (
	"context"
	"time"

	"signalist/internal/model"
)

// BarProvider fetches daily OHLCV bars for a symbol over [from, to].
type BarProvider interface {
	GetDailyBars(ctx context.Context, symbol string, from, to time.Time) ([]model.Bar, error)
}

// QuoteProvider fetches the latest quote for a symbol.
type QuoteProvider interface {
	GetQuote(ctx context.Context, symbol string) (model.Quote, error)
}

// Provider is a full market-data source.
type Provider interface {
	BarProvider
	QuoteProvider
	Name() string
}

// unixTime converts an upstream epoch-seconds field. A missing (zero) stamp
// stays the zero time so callers cannot mistake it for 1970.
func unixTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
