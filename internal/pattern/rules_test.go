package pattern

import (
	"testing"
	"time"

	"signalist/internal/model"

	"github.com/shopspring/decimal"
)

// series builds consecutive daily bars from (open, high, low, close) tuples.
func series(ohlc ...[4]float64) model.Series {
	s := make(model.Series, len(ohlc))
	start := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	for i, v := range ohlc {
		s[i] = model.Bar{
			Time:   start.AddDate(0, 0, i),
			Open:   decimal.NewFromFloat(v[0]),
			High:   decimal.NewFromFloat(v[1]),
			Low:    decimal.NewFromFloat(v[2]),
			Close:  decimal.NewFromFloat(v[3]),
			Volume: 1000,
		}
	}
	return s
}

var fixtures = map[string]model.Series{
	"Doji":          series([4]float64{10, 12, 8, 10.1}),
	"Hammer":        series([4]float64{10, 10.52, 8, 10.5}),
	"Shooting Star": series([4]float64{10.5, 12.5, 9.98, 10}),
	"Bullish Engulfing": series(
		[4]float64{10, 10.2, 8.8, 9},
		[4]float64{8.9, 10.6, 8.8, 10.5},
	),
	"Bearish Engulfing": series(
		[4]float64{9, 10.2, 8.8, 10},
		[4]float64{10.1, 10.2, 8.4, 8.5},
	),
	"Piercing Line": series(
		[4]float64{10, 10.1, 8.9, 9},
		[4]float64{8.8, 9.8, 8.7, 9.7},
	),
	"Dark Cloud Cover": series(
		[4]float64{9, 10.1, 8.9, 10},
		[4]float64{10.2, 10.3, 9.2, 9.3},
	),
	"Morning Star": series(
		[4]float64{110, 111, 99, 100},
		[4]float64{99, 100, 98.5, 99.5},
		[4]float64{100, 108.5, 99.5, 108},
	),
	"Evening Star": series(
		[4]float64{100, 111, 99, 110},
		[4]float64{111, 112, 110, 110.5},
		[4]float64{109, 109.5, 101, 102},
	),
	"Three White Soldiers": series(
		[4]float64{10, 11.2, 9.9, 11},
		[4]float64{10.5, 12.2, 10.4, 12},
		[4]float64{11.5, 13.2, 11.4, 13},
	),
	"Three Black Crows": series(
		[4]float64{13, 13.1, 11.8, 12},
		[4]float64{12.5, 12.6, 10.8, 11},
		[4]float64{11.5, 11.6, 9.8, 10},
	),
}

func TestRules_FireOnFixtures(t *testing.T) {
	for _, r := range Rules {
		s, ok := fixtures[r.Name]
		if !ok {
			t.Fatalf("no fixture for rule %q", r.Name)
		}
		m, fired := r.Detect(s)
		if !fired {
			t.Errorf("%s: expected match", r.Name)
			continue
		}
		if m.Name != r.Name {
			t.Errorf("%s: match named %q", r.Name, m.Name)
		}
		if m.Bars != r.Window {
			t.Errorf("%s: expected window %d, got %d", r.Name, r.Window, m.Bars)
		}
	}
}

func TestRules_Attributes(t *testing.T) {
	tests := []struct {
		name string
		dir  model.Direction
		conf float64
		sig  model.Significance
		act  model.Action
	}{
		{"Doji", model.Neutral, 0.70, model.SignificanceMedium, model.ActionHold},
		{"Hammer", model.Bullish, 0.80, model.SignificanceHigh, model.ActionBuy},
		{"Shooting Star", model.Bearish, 0.80, model.SignificanceHigh, model.ActionSell},
		{"Bullish Engulfing", model.Bullish, 0.85, model.SignificanceHigh, model.ActionBuy},
		{"Bearish Engulfing", model.Bearish, 0.85, model.SignificanceHigh, model.ActionSell},
		{"Piercing Line", model.Bullish, 0.75, model.SignificanceMedium, model.ActionBuy},
		{"Dark Cloud Cover", model.Bearish, 0.75, model.SignificanceMedium, model.ActionSell},
		{"Morning Star", model.Bullish, 0.90, model.SignificanceHigh, model.ActionBuy},
		{"Evening Star", model.Bearish, 0.90, model.SignificanceHigh, model.ActionSell},
		{"Three White Soldiers", model.Bullish, 0.85, model.SignificanceHigh, model.ActionBuy},
		{"Three Black Crows", model.Bearish, 0.85, model.SignificanceHigh, model.ActionSell},
	}
	byName := map[string]Rule{}
	for _, r := range Rules {
		byName[r.Name] = r
	}
	for _, tt := range tests {
		m, ok := byName[tt.name].Detect(fixtures[tt.name])
		if !ok {
			t.Errorf("%s: expected match", tt.name)
			continue
		}
		if m.Direction != tt.dir || m.Confidence != tt.conf || m.Significance != tt.sig || m.Action != tt.act {
			t.Errorf("%s: got %s/%.2f/%s/%s", tt.name, m.Direction, m.Confidence, m.Significance, m.Action)
		}
	}
}

func TestRules_ShortSeriesIsNotAnError(t *testing.T) {
	one := series([4]float64{10, 11, 9, 10.5})
	for _, r := range Rules {
		if r.Window == 1 {
			continue
		}
		if _, ok := r.Detect(one); ok {
			t.Errorf("%s: fired on a 1-bar series", r.Name)
		}
	}
	for _, r := range Rules {
		if _, ok := r.Detect(nil); ok {
			t.Errorf("%s: fired on an empty series", r.Name)
		}
	}
}

func TestRules_ZeroRangeBar(t *testing.T) {
	flat := series([4]float64{10, 10, 10, 10})
	for _, d := range []Detector{DetectDoji, DetectHammer, DetectShootingStar} {
		if m, ok := d(flat); ok {
			t.Errorf("%s fired on a zero-range bar", m.Name)
		}
	}
}

func TestPiercingLine_RequiresCloseBelowPriorOpen(t *testing.T) {
	s := series(
		[4]float64{10, 10.1, 8.9, 9},
		[4]float64{8.8, 10.3, 8.7, 10.2}, // closes above prior open
	)
	if _, ok := DetectPiercingLine(s); ok {
		t.Error("piercing line must close below the prior open")
	}
}

func TestThreeWhiteSoldiers_RequiresRisingOpens(t *testing.T) {
	s := series(
		[4]float64{10, 11.2, 9.9, 11},
		[4]float64{9.8, 12.2, 9.7, 12}, // open below previous open
		[4]float64{11.5, 13.2, 11.4, 13},
	)
	if _, ok := DetectThreeWhiteSoldiers(s); ok {
		t.Error("opens must strictly increase")
	}
}
