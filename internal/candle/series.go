package candle

import (
	"fmt"
	"log"
	"sort"

	"signalist/internal/model"
)

// Recent returns the last n bars, oldest first.
func Recent(s model.Series, n int) (model.Series, error) {
	if n <= 0 || n > len(s) {
		return nil, fmt.Errorf("need %d bars, have %d: %w", n, len(s), model.ErrInsufficientData)
	}
	return s[len(s)-n:], nil
}

// Validate checks low <= min(open,close) <= max(open,close) <= high.
func Validate(b model.Bar) error {
	if LowerShadow(b).IsNegative() || UpperShadow(b).IsNegative() {
		return fmt.Errorf("bar %s: OHLC out of order (o=%s h=%s l=%s c=%s)",
			b.Time.Format("2006-01-02"), b.Open, b.High, b.Low, b.Close)
	}
	return nil
}

// NewSeries normalizes provider bars into a Series: chronological order,
// strictly increasing timestamps (later duplicates win) and no malformed bars.
func NewSeries(bars []model.Bar) model.Series {
	sorted := make([]model.Bar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	out := make(model.Series, 0, len(sorted))
	for _, b := range sorted {
		if err := Validate(b); err != nil {
			log.Printf("[WARN] dropping bar: %v", err)
			continue
		}
		if n := len(out); n > 0 && out[n-1].Time.Equal(b.Time) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	return out
}
