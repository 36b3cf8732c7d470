package pattern

import (
	"signalist/internal/candle"
	"signalist/internal/model"
)

// Detector inspects the tail of a series and reports at most one match.
// A series shorter than the detector's window yields no match.
type Detector func(s model.Series) (model.PatternMatch, bool)

// Rule names a detector and its window size.
type Rule struct {
	Name   string
	Window int
	Detect Detector
}

// Rules is the full rule set in declaration order. Analyze keeps this order for
// matches of equal confidence.
var Rules = []Rule{
	{"Doji", 1, DetectDoji},
	{"Hammer", 1, DetectHammer},
	{"Shooting Star", 1, DetectShootingStar},
	{"Bullish Engulfing", 2, DetectBullishEngulfing},
	{"Bearish Engulfing", 2, DetectBearishEngulfing},
	{"Piercing Line", 2, DetectPiercingLine},
	{"Dark Cloud Cover", 2, DetectDarkCloudCover},
	{"Morning Star", 3, DetectMorningStar},
	{"Evening Star", 3, DetectEveningStar},
	{"Three White Soldiers", 3, DetectThreeWhiteSoldiers},
	{"Three Black Crows", 3, DetectThreeBlackCrows},
}

// MinWindow is the shortest series Analyze accepts.
const MinWindow = 3

func window(s model.Series, n int) (model.Series, bool) {
	w, err := candle.Recent(s, n)
	return w, err == nil
}

// DetectDoji: body under 10% of the range.
func DetectDoji(s model.Series) (model.PatternMatch, bool) {
	w, ok := window(s, 1)
	if !ok || !candle.BodyRatioBelow(w[0], 0.1) {
		return model.PatternMatch{}, false
	}
	return model.PatternMatch{
		Name:         "Doji",
		Direction:    model.Neutral,
		Confidence:   0.70,
		Significance: model.SignificanceMedium,
		Action:       model.ActionHold,
		Description:  "Market indecision, potential reversal signal",
		Bars:         1,
	}, true
}

// DetectHammer: long lower shadow, almost no upper shadow, small body.
func DetectHammer(s model.Series) (model.PatternMatch, bool) {
	w, ok := window(s, 1)
	if !ok {
		return model.PatternMatch{}, false
	}
	c := w[0]
	body := candle.Body(c)
	if !candle.LowerShadow(c).GreaterThan(candle.Scaled(body, 2)) ||
		!candle.UpperShadow(c).LessThan(candle.Scaled(body, 0.1)) ||
		!candle.BodyRatioBelow(c, 0.3) {
		return model.PatternMatch{}, false
	}
	return model.PatternMatch{
		Name:         "Hammer",
		Direction:    model.Bullish,
		Confidence:   0.80,
		Significance: model.SignificanceHigh,
		Action:       model.ActionBuy,
		Description:  "Potential bullish reversal after downtrend",
		Bars:         1,
	}, true
}

// DetectShootingStar mirrors the hammer: long upper shadow, almost no lower shadow.
func DetectShootingStar(s model.Series) (model.PatternMatch, bool) {
	w, ok := window(s, 1)
	if !ok {
		return model.PatternMatch{}, false
	}
	c := w[0]
	body := candle.Body(c)
	if !candle.UpperShadow(c).GreaterThan(candle.Scaled(body, 2)) ||
		!candle.LowerShadow(c).LessThan(candle.Scaled(body, 0.1)) ||
		!candle.BodyRatioBelow(c, 0.3) {
		return model.PatternMatch{}, false
	}
	return model.PatternMatch{
		Name:         "Shooting Star",
		Direction:    model.Bearish,
		Confidence:   0.80,
		Significance: model.SignificanceHigh,
		Action:       model.ActionSell,
		Description:  "Potential bearish reversal after uptrend",
		Bars:         1,
	}, true
}

// DetectBullishEngulfing: a bullish body wrapping the previous bearish body.
func DetectBullishEngulfing(s model.Series) (model.PatternMatch, bool) {
	w, ok := window(s, 2)
	if !ok {
		return model.PatternMatch{}, false
	}
	prev, curr := w[0], w[1]
	if !candle.IsBearish(prev) || !candle.IsBullish(curr) ||
		!curr.Open.LessThan(prev.Close) || !curr.Close.GreaterThan(prev.Open) {
		return model.PatternMatch{}, false
	}
	return model.PatternMatch{
		Name:         "Bullish Engulfing",
		Direction:    model.Bullish,
		Confidence:   0.85,
		Significance: model.SignificanceHigh,
		Action:       model.ActionBuy,
		Description:  "Strong bullish reversal signal",
		Bars:         2,
	}, true
}

// DetectBearishEngulfing: a bearish body wrapping the previous bullish body.
func DetectBearishEngulfing(s model.Series) (model.PatternMatch, bool) {
	w, ok := window(s, 2)
	if !ok {
		return model.PatternMatch{}, false
	}
	prev, curr := w[0], w[1]
	if !candle.IsBullish(prev) || !candle.IsBearish(curr) ||
		!curr.Open.GreaterThan(prev.Close) || !curr.Close.LessThan(prev.Open) {
		return model.PatternMatch{}, false
	}
	return model.PatternMatch{
		Name:         "Bearish Engulfing",
		Direction:    model.Bearish,
		Confidence:   0.85,
		Significance: model.SignificanceHigh,
		Action:       model.ActionSell,
		Description:  "Strong bearish reversal signal",
		Bars:         2,
	}, true
}

// DetectPiercingLine: gap below the prior low, close back above its midpoint
// but still under its open.
func DetectPiercingLine(s model.Series) (model.PatternMatch, bool) {
	w, ok := window(s, 2)
	if !ok {
		return model.PatternMatch{}, false
	}
	prev, curr := w[0], w[1]
	if !candle.IsBearish(prev) || !candle.IsBullish(curr) ||
		!curr.Open.LessThan(prev.Low) ||
		!curr.Close.GreaterThan(candle.Midpoint(prev)) ||
		!curr.Close.LessThan(prev.Open) {
		return model.PatternMatch{}, false
	}
	return model.PatternMatch{
		Name:         "Piercing Line",
		Direction:    model.Bullish,
		Confidence:   0.75,
		Significance: model.SignificanceMedium,
		Action:       model.ActionBuy,
		Description:  "Bullish reversal pattern",
		Bars:         2,
	}, true
}

// DetectDarkCloudCover: gap above the prior high, close back under its midpoint
// but still over its open.
func DetectDarkCloudCover(s model.Series) (model.PatternMatch, bool) {
	w, ok := window(s, 2)
	if !ok {
		return model.PatternMatch{}, false
	}
	prev, curr := w[0], w[1]
	if !candle.IsBullish(prev) || !candle.IsBearish(curr) ||
		!curr.Open.GreaterThan(prev.High) ||
		!curr.Close.LessThan(candle.Midpoint(prev)) ||
		!curr.Close.GreaterThan(prev.Open) {
		return model.PatternMatch{}, false
	}
	return model.PatternMatch{
		Name:         "Dark Cloud Cover",
		Direction:    model.Bearish,
		Confidence:   0.75,
		Significance: model.SignificanceMedium,
		Action:       model.ActionSell,
		Description:  "Bearish reversal pattern",
		Bars:         2,
	}, true
}

// DetectMorningStar: bearish bar, small star, bullish bar closing above the
// first bar's midpoint.
func DetectMorningStar(s model.Series) (model.PatternMatch, bool) {
	w, ok := window(s, 3)
	if !ok {
		return model.PatternMatch{}, false
	}
	first, second, third := w[0], w[1], w[2]
	if !candle.IsBearish(first) ||
		!candle.Body(second).LessThan(candle.Scaled(candle.Body(first), 0.3)) ||
		!candle.IsBullish(third) ||
		!third.Close.GreaterThan(candle.Midpoint(first)) {
		return model.PatternMatch{}, false
	}
	return model.PatternMatch{
		Name:         "Morning Star",
		Direction:    model.Bullish,
		Confidence:   0.90,
		Significance: model.SignificanceHigh,
		Action:       model.ActionBuy,
		Description:  "Very strong bullish reversal pattern",
		Bars:         3,
	}, true
}

// DetectEveningStar: bullish bar, small star, bearish bar closing below the
// first bar's midpoint.
func DetectEveningStar(s model.Series) (model.PatternMatch, bool) {
	w, ok := window(s, 3)
	if !ok {
		return model.PatternMatch{}, false
	}
	first, second, third := w[0], w[1], w[2]
	if !candle.IsBullish(first) ||
		!candle.Body(second).LessThan(candle.Scaled(candle.Body(first), 0.3)) ||
		!candle.IsBearish(third) ||
		!third.Close.LessThan(candle.Midpoint(first)) {
		return model.PatternMatch{}, false
	}
	return model.PatternMatch{
		Name:         "Evening Star",
		Direction:    model.Bearish,
		Confidence:   0.90,
		Significance: model.SignificanceHigh,
		Action:       model.ActionSell,
		Description:  "Very strong bearish reversal pattern",
		Bars:         3,
	}, true
}

// DetectThreeWhiteSoldiers: three bullish bars with rising opens and closes.
func DetectThreeWhiteSoldiers(s model.Series) (model.PatternMatch, bool) {
	w, ok := window(s, 3)
	if !ok {
		return model.PatternMatch{}, false
	}
	for i, b := range w {
		if !candle.IsBullish(b) {
			return model.PatternMatch{}, false
		}
		if i > 0 && (!b.Close.GreaterThan(w[i-1].Close) || !b.Open.GreaterThan(w[i-1].Open)) {
			return model.PatternMatch{}, false
		}
	}
	return model.PatternMatch{
		Name:         "Three White Soldiers",
		Direction:    model.Bullish,
		Confidence:   0.85,
		Significance: model.SignificanceHigh,
		Action:       model.ActionBuy,
		Description:  "Strong bullish continuation pattern",
		Bars:         3,
	}, true
}

// DetectThreeBlackCrows: three bearish bars with falling opens and closes.
func DetectThreeBlackCrows(s model.Series) (model.PatternMatch, bool) {
	w, ok := window(s, 3)
	if !ok {
		return model.PatternMatch{}, false
	}
	for i, b := range w {
		if !candle.IsBearish(b) {
			return model.PatternMatch{}, false
		}
		if i > 0 && (!b.Close.LessThan(w[i-1].Close) || !b.Open.LessThan(w[i-1].Open)) {
			return model.PatternMatch{}, false
		}
	}
	return model.PatternMatch{
		Name:         "Three Black Crows",
		Direction:    model.Bearish,
		Confidence:   0.85,
		Significance: model.SignificanceHigh,
		Action:       model.ActionSell,
		Description:  "Strong bearish continuation pattern",
		Bars:         3,
	}, true
}
