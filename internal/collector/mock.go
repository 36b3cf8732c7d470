package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"signalist/internal/model"

	"github.com/shopspring/decimal"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Bars   map[string][]model.Bar
	Quotes map[string]model.Quote
	Errs   map[string]error // per-symbol failure

	mu         sync.Mutex
	quoteCalls map[string]int
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) GetDailyBars(_ context.Context, symbol string, _, _ time.Time) ([]model.Bar, error) {
	if err := m.Errs[symbol]; err != nil {
		return nil, err
	}
	return m.Bars[symbol], nil
}

func (m *MockFetcher) GetQuote(_ context.Context, symbol string) (model.Quote, error) {
	m.mu.Lock()
	if m.quoteCalls == nil {
		m.quoteCalls = make(map[string]int)
	}
	m.quoteCalls[symbol]++
	m.mu.Unlock()

	if err := m.Errs[symbol]; err != nil {
		return model.Quote{}, err
	}
	q, ok := m.Quotes[symbol]
	if !ok {
		return model.Quote{}, fmt.Errorf("mock quote %s: %w", symbol, model.ErrProviderUnavailable)
	}
	return q, nil
}

// QuoteCalls reports how often GetQuote was called for symbol.
func (m *MockFetcher) QuoteCalls(symbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.quoteCalls[symbol]
}

// SetQuote replaces the quote for symbol.
func (m *MockFetcher) SetQuote(symbol string, price float64, at time.Time) {
	if m.Quotes == nil {
		m.Quotes = make(map[string]model.Quote)
	}
	m.Quotes[symbol] = model.Quote{Symbol: symbol, Price: decimal.NewFromFloat(price), Time: at}
}

// GenerateMockBars builds count gently rising daily bars ending at end.
func GenerateMockBars(basePrice float64, count int, end time.Time) []model.Bar {
	bars := make([]model.Bar, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.001)
		bars[i] = model.Bar{
			Time:   end.AddDate(0, 0, -(count - 1 - i)),
			Open:   decimal.NewFromFloat(p * 0.999),
			High:   decimal.NewFromFloat(p * 1.005),
			Low:    decimal.NewFromFloat(p * 0.995),
			Close:  decimal.NewFromFloat(p),
			Volume: 1000000,
		}
	}
	return bars
}
