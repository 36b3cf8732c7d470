package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bar represents a single OHLCV candlestick.
type Bar struct {
	Time   time.Time
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume int64
}

// Series is a chronologically ordered run of bars for one symbol.
// Build it with candle.NewSeries; it is never mutated after construction.
type Series []Bar

// Quote is a real-time snapshot for a symbol.
type Quote struct {
	Symbol    string
	Price     decimal.Decimal
	Change    decimal.Decimal
	ChangePct decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Open      decimal.Decimal
	PrevClose decimal.Decimal
	Time      time.Time
}
