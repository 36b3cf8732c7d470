package pattern

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"signalist/internal/candle"
	"signalist/internal/model"
)

// Analyze runs every rule against the series tail and returns the matches sorted
// by descending confidence. Rules are independent; several may fire at once.
func Analyze(s model.Series) ([]model.PatternMatch, error) {
	if len(s) < MinWindow {
		return nil, fmt.Errorf("analyze %d bars: %w", len(s), model.ErrInsufficientData)
	}
	var matches []model.PatternMatch
	for _, r := range Rules {
		if m, ok := r.Detect(s); ok {
			matches = append(matches, m)
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Confidence > matches[j].Confidence
	})
	return matches, nil
}

// Summarize counts matches per direction and derives the overall sentiment.
// Bullish vs bearish needs a strict majority; the confidence is the mean of the
// majority side rounded to 2 decimals, 0 when neutral.
func Summarize(matches []model.PatternMatch) model.PatternSummary {
	sum := model.PatternSummary{Sentiment: model.Neutral}
	var bullConf, bearConf float64
	for _, m := range matches {
		switch m.Direction {
		case model.Bullish:
			sum.Bullish++
			bullConf += m.Confidence
		case model.Bearish:
			sum.Bearish++
			bearConf += m.Confidence
		default:
			sum.Neutral++
		}
	}

	switch {
	case sum.Bullish > sum.Bearish:
		sum.Sentiment = model.Bullish
		sum.Confidence = round2(bullConf / float64(sum.Bullish))
	case sum.Bearish > sum.Bullish:
		sum.Sentiment = model.Bearish
		sum.Confidence = round2(bearConf / float64(sum.Bearish))
	}
	return sum
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Significant keeps high-significance matches whose confidence exceeds minConfidence.
func Significant(matches []model.PatternMatch, minConfidence float64) []model.PatternMatch {
	var out []model.PatternMatch
	for _, m := range matches {
		if m.Significance == model.SignificanceHigh && m.Confidence > minConfidence {
			out = append(out, m)
		}
	}
	return out
}

// BarSource supplies daily bars for a symbol.
type BarSource interface {
	GetDailyBars(ctx context.Context, symbol string, from, to time.Time) ([]model.Bar, error)
}

// AnalyzeSymbol fetches lookback worth of daily bars ending at now and analyzes them.
func AnalyzeSymbol(ctx context.Context, src BarSource, symbol string, lookback time.Duration, now time.Time) (*model.Analysis, error) {
	bars, err := src.GetDailyBars(ctx, symbol, now.Add(-lookback), now)
	if err != nil {
		return nil, fmt.Errorf("fetch bars for %s: %w", symbol, err)
	}
	series := candle.NewSeries(bars)
	matches, err := Analyze(series)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", symbol, err)
	}
	return &model.Analysis{
		Symbol:  symbol,
		Matches: matches,
		Summary: Summarize(matches),
		At:      now,
	}, nil
}
