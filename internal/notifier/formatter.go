package notifier

import (
	"fmt"
	"html"
	"strings"

	"signalist/internal/model"
)

// Format renders any payload as a Telegram HTML message.
func Format(p model.Payload) string {
	switch v := p.(type) {
	case model.TriggeredAlert:
		return FormatTriggeredAlert(v)
	case model.PatternBatch:
		return FormatPatternBatch(v)
	}
	return ""
}

// Subject is the email subject line for a payload.
func Subject(p model.Payload) string {
	switch v := p.(type) {
	case model.TriggeredAlert:
		return fmt.Sprintf("Price Alert: %s %s %s", v.Alert.Symbol, v.Alert.Direction, v.Alert.TargetPrice.StringFixed(2))
	case model.PatternBatch:
		if v.Realtime {
			return fmt.Sprintf("Real-time Pattern Alert: %d patterns", len(v.Findings))
		}
		return fmt.Sprintf("Pattern Alert: %d significant patterns", len(v.Findings))
	}
	return "Signalist notification"
}

// FormatTriggeredAlert formats a fired price alert.
func FormatTriggeredAlert(t model.TriggeredAlert) string {
	a := t.Alert
	var b strings.Builder
	icon := "📈"
	if a.Direction == model.Below {
		icon = "📉"
	}
	b.WriteString(fmt.Sprintf("%s <b>Price Alert: %s</b>\n\n", icon, html.EscapeString(a.Symbol)))
	if a.Company != "" && a.Company != a.Symbol {
		b.WriteString(fmt.Sprintf("%s\n", html.EscapeString(a.Company)))
	}
	b.WriteString(fmt.Sprintf("Current price: $%s\n", t.Price.StringFixed(2)))
	b.WriteString(fmt.Sprintf("Target: %s $%s\n", a.Direction, a.TargetPrice.StringFixed(2)))
	b.WriteString(fmt.Sprintf("Triggered at: %s\n", t.At.Format("2006-01-02 15:04 MST")))
	return b.String()
}

// FormatPatternBatch formats significant findings, bullish first then bearish.
func FormatPatternBatch(batch model.PatternBatch) string {
	var b strings.Builder
	title := "Pattern Alert"
	if batch.Realtime {
		title = "Real-time Pattern Alert"
	}
	b.WriteString(fmt.Sprintf("🕯 <b>%s</b> | %s\n", title, batch.At.Format("2006-01-02 15:04")))

	sections := []struct {
		icon  string
		label string
		dir   model.Direction
	}{
		{"🟢", "Bullish patterns", model.Bullish},
		{"🔴", "Bearish patterns", model.Bearish},
	}
	for _, s := range sections {
		findings := batch.ByDirection(s.dir)
		if len(findings) == 0 {
			continue
		}
		b.WriteString(fmt.Sprintf("\n%s <b>%s:</b>\n", s.icon, s.label))
		for _, f := range findings {
			b.WriteString(fmt.Sprintf("  %s %s (%.0f%%, %s)\n", f.Symbol, f.Match.Name, f.Match.Confidence*100, f.Match.Action))
			b.WriteString(fmt.Sprintf("    %s\n", html.EscapeString(f.Match.Description)))
		}
	}
	return b.String()
}

// FormatAnalysis formats a full pattern analysis of one symbol.
func FormatAnalysis(a *model.Analysis) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🕯 <b>%s patterns</b> | %s\n\n", html.EscapeString(a.Symbol), a.At.Format("2006-01-02 15:04")))
	if len(a.Matches) == 0 {
		b.WriteString("No patterns detected on the latest bars.\n")
	}
	for _, m := range a.Matches {
		b.WriteString(fmt.Sprintf("%s %s: %s, %.0f%%, %s significance, %s\n",
			directionIcon(m.Direction), m.Name, m.Direction, m.Confidence*100, m.Significance, m.Action))
	}
	s := a.Summary
	b.WriteString("  ─────────────────\n")
	b.WriteString(fmt.Sprintf("Bullish %d | Bearish %d | Neutral %d\n", s.Bullish, s.Bearish, s.Neutral))
	b.WriteString(fmt.Sprintf("Sentiment: <b>%s</b> (%.2f)\n", s.Sentiment, s.Confidence))
	return b.String()
}

// FormatAlertList formats a user's alerts for the /alerts command.
func FormatAlertList(alerts []model.AlertRecord) string {
	if len(alerts) == 0 {
		return "No price alerts."
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🔔 <b>Price alerts</b> (%d)\n\n", len(alerts)))
	for _, a := range alerts {
		b.WriteString(fmt.Sprintf("%s %s %s $%s, last $%s [%s]\n",
			shortID(a.ID), a.Symbol, a.Direction, a.TargetPrice.StringFixed(2), a.LastKnownPrice.StringFixed(2), a.State()))
	}
	return b.String()
}

// HelpText lists the Telegram commands.
func HelpText() string {
	return "Commands:\n" +
		"/patterns SYMBOL - analyze candlestick patterns\n" +
		"/alerts - list your price alerts\n" +
		"/watch SYMBOL - add a symbol to your watchlist\n" +
		"/unwatch SYMBOL - remove a symbol from your watchlist\n" +
		"/help - show this message"
}

func directionIcon(d model.Direction) string {
	switch d {
	case model.Bullish:
		return "🟢"
	case model.Bearish:
		return "🔴"
	}
	return "⚪"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
