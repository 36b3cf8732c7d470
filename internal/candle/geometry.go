package candle

import (
	"signalist/internal/model"

	"github.com/shopspring/decimal"
)

var two = decimal.NewFromInt(2)

// Body returns |close - open|.
func Body(b model.Bar) decimal.Decimal {
	return b.Close.Sub(b.Open).Abs()
}

// UpperShadow returns high - max(open, close).
func UpperShadow(b model.Bar) decimal.Decimal {
	return b.High.Sub(decimal.Max(b.Open, b.Close))
}

// LowerShadow returns min(open, close) - low.
func LowerShadow(b model.Bar) decimal.Decimal {
	return decimal.Min(b.Open, b.Close).Sub(b.Low)
}

// Range returns high - low.
func Range(b model.Bar) decimal.Decimal {
	return b.High.Sub(b.Low)
}

// Midpoint returns (open + close) / 2.
func Midpoint(b model.Bar) decimal.Decimal {
	return b.Open.Add(b.Close).Div(two)
}

// IsBullish reports close > open.
func IsBullish(b model.Bar) bool { return b.Close.GreaterThan(b.Open) }

// IsBearish reports close < open.
func IsBearish(b model.Bar) bool { return b.Close.LessThan(b.Open) }

// BodyRatioBelow reports Body/Range < ratio. A zero-range bar never passes.
func BodyRatioBelow(b model.Bar, ratio float64) bool {
	rng := Range(b)
	if !rng.IsPositive() {
		return false
	}
	return Body(b).Div(rng).LessThan(decimal.NewFromFloat(ratio))
}

// Scaled returns d * factor; used for the "N times the body" comparisons.
func Scaled(d decimal.Decimal, factor float64) decimal.Decimal {
	return d.Mul(decimal.NewFromFloat(factor))
}
