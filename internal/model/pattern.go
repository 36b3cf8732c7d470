package model

import "time"

// Direction is the market bias implied by a pattern.
type Direction string

const (
	Bullish Direction = "bullish"
	Bearish Direction = "bearish"
	Neutral Direction = "neutral"
)

// Significance is a qualitative importance tag, independent of confidence.
type Significance string

const (
	SignificanceLow    Significance = "low"
	SignificanceMedium Significance = "medium"
	SignificanceHigh   Significance = "high"
)

// Action is the suggested reaction to a pattern.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

// PatternMatch is the output of one rule firing on a series tail.
type PatternMatch struct {
	Name         string
	Direction    Direction
	Confidence   float64 // 0.0 ~ 1.0
	Significance Significance
	Action       Action
	Description  string
	Bars         int // window size of the rule
}

// PatternSummary aggregates the matches of one series.
type PatternSummary struct {
	Bullish    int
	Bearish    int
	Neutral    int
	Sentiment  Direction
	Confidence float64
}

// Analysis is the full pattern result for one symbol.
type Analysis struct {
	Symbol  string
	Matches []PatternMatch
	Summary PatternSummary
	At      time.Time
}

// SymbolFinding pairs a significant match with its symbol.
type SymbolFinding struct {
	Symbol string
	Match  PatternMatch
}

// PatternBatch is a set of significant findings sent to one recipient.
type PatternBatch struct {
	Realtime bool
	At       time.Time
	Findings []SymbolFinding
}

func (PatternBatch) payload() {}

// ByDirection returns the findings with the given direction, preserving order.
func (b PatternBatch) ByDirection(d Direction) []SymbolFinding {
	var out []SymbolFinding
	for _, f := range b.Findings {
		if f.Match.Direction == d {
			out = append(out, f)
		}
	}
	return out
}
