package alert

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"signalist/internal/collector"
	"signalist/internal/model"
	"signalist/internal/store"

	"github.com/shopspring/decimal"
)

var testNow = time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC)

func seed(t *testing.T, s store.AlertRepository, id, symbol string, dir model.AlertDirection, target string) {
	t.Helper()
	err := s.CreateAlert(context.Background(), model.AlertRecord{
		ID:          id,
		UserID:      "u1",
		Symbol:      symbol,
		Company:     symbol,
		Direction:   dir,
		TargetPrice: decimal.RequireFromString(target),
		IsActive:    true,
		Method:      model.MethodEmail,
		CreatedAt:   testNow.Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
}

func newEvaluator(s store.AlertStore, q collector.QuoteProvider) *Evaluator {
	return &Evaluator{Store: s, Quotes: q, Concurrency: 2, Now: func() time.Time { return testNow }}
}

func TestEvaluateAll_AboveBoundaryInclusive(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	seed(t, s, "a1", "AAPL", model.Above, "100")
	quotes := &collector.MockFetcher{}
	quotes.SetQuote("AAPL", 99.99, testNow)

	got, err := newEvaluator(s, quotes).EvaluateAll(ctx)
	if err != nil {
		t.Fatalf("EvaluateAll: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("99.99 must not trigger above 100, got %d", len(got))
	}
	a, _ := s.GetAlert(ctx, "a1")
	if !a.LastKnownPrice.Equal(decimal.RequireFromString("99.99")) {
		t.Errorf("expected last price 99.99, got %s", a.LastKnownPrice)
	}

	quotes.SetQuote("AAPL", 100, testNow)
	got, err = newEvaluator(s, quotes).EvaluateAll(ctx)
	if err != nil {
		t.Fatalf("EvaluateAll: %v", err)
	}
	if len(got) != 1 || got[0].Alert.ID != "a1" {
		t.Fatalf("expected a1 to trigger at exactly 100, got %+v", got)
	}
	if !got[0].Price.Equal(decimal.NewFromInt(100)) || !got[0].At.Equal(testNow) {
		t.Errorf("unexpected trigger tuple %+v", got[0])
	}
	if got[0].Alert.State() != model.StateTriggered {
		t.Errorf("returned alert should be triggered, got %s", got[0].Alert.State())
	}
}

func TestEvaluateAll_BelowTriggersExactlyOnce(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	seed(t, s, "b1", "TSLA", model.Below, "50")
	quotes := &collector.MockFetcher{}
	quotes.SetQuote("TSLA", 49.5, testNow)

	e := newEvaluator(s, quotes)
	first, err := e.EvaluateAll(ctx)
	if err != nil || len(first) != 1 {
		t.Fatalf("first run: %d triggers, err %v", len(first), err)
	}
	second, err := e.EvaluateAll(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(second) != 0 {
		t.Errorf("alert triggered twice")
	}
	a, _ := s.GetAlert(ctx, "b1")
	if a.TriggeredAt == nil || !a.TriggeredAt.Equal(testNow) {
		t.Errorf("unexpected triggeredAt %v", a.TriggeredAt)
	}
}

// snapshotStore serves a frozen ListActiveAlerts result, as a reader racing
// another evaluator would see it.
type snapshotStore struct {
	*store.MemoryStore
	snapshot []model.AlertRecord
}

func (s *snapshotStore) ListActiveAlerts(context.Context) ([]model.AlertRecord, error) {
	return s.snapshot, nil
}

func TestEvaluateAll_ConcurrentEvaluatorsTriggerOnce(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	seed(t, mem, "c1", "NVDA", model.Above, "120")
	snap, _ := mem.ListActiveAlerts(ctx)
	s := &snapshotStore{MemoryStore: mem, snapshot: snap}

	quotes := &collector.MockFetcher{}
	quotes.SetQuote("NVDA", 125, testNow)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := newEvaluator(s, quotes).EvaluateAll(ctx)
			if err != nil {
				t.Errorf("EvaluateAll: %v", err)
				return
			}
			mu.Lock()
			total += len(got)
			mu.Unlock()
		}()
	}
	wg.Wait()

	if total != 1 {
		t.Errorf("expected exactly one trigger across evaluators, got %d", total)
	}
}

func TestEvaluateAll_ProviderErrorIsolated(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	seed(t, s, "x1", "BAD", model.Above, "1")
	seed(t, s, "x2", "AAPL", model.Above, "100")
	quotes := &collector.MockFetcher{Errs: map[string]error{"BAD": model.ErrProviderUnavailable}}
	quotes.SetQuote("AAPL", 150, testNow)

	got, err := newEvaluator(s, quotes).EvaluateAll(ctx)
	if err != nil {
		t.Fatalf("provider failure must not fail the sweep: %v", err)
	}
	if len(got) != 1 || got[0].Alert.ID != "x2" {
		t.Fatalf("expected only x2 to trigger, got %+v", got)
	}
	bad, _ := s.GetAlert(ctx, "x1")
	if !bad.Eligible() {
		t.Error("alert on failing symbol should stay eligible")
	}
}

func TestEvaluateAll_SkipsStaleAndZeroQuotes(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	seed(t, s, "s1", "OLD", model.Above, "10")
	seed(t, s, "s2", "ZERO", model.Below, "10")
	quotes := &collector.MockFetcher{}
	quotes.SetQuote("OLD", 20, testNow.Add(-time.Hour))
	quotes.SetQuote("ZERO", 0, testNow)

	e := newEvaluator(s, quotes)
	e.MaxQuoteAge = 10 * time.Minute
	got, err := e.EvaluateAll(ctx)
	if err != nil {
		t.Fatalf("EvaluateAll: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("stale or zero quotes must not trigger, got %+v", got)
	}
	for _, id := range []string{"s1", "s2"} {
		a, _ := s.GetAlert(ctx, id)
		if !a.Eligible() || !a.LastKnownPrice.IsZero() {
			t.Errorf("%s should be untouched, got %+v", id, a)
		}
	}
}

func TestEvaluateAll_OneQuotePerSymbol(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	seed(t, s, "m1", "AAPL", model.Above, "100")
	seed(t, s, "m2", "AAPL", model.Above, "300")
	seed(t, s, "m3", "AAPL", model.Below, "50")
	quotes := &collector.MockFetcher{}
	quotes.SetQuote("AAPL", 150, testNow)

	got, err := newEvaluator(s, quotes).EvaluateAll(ctx)
	if err != nil {
		t.Fatalf("EvaluateAll: %v", err)
	}
	if n := quotes.QuoteCalls("AAPL"); n != 1 {
		t.Errorf("expected 1 quote call, got %d", n)
	}
	if len(got) != 1 || got[0].Alert.ID != "m1" {
		t.Errorf("expected only m1, got %+v", got)
	}
}

type failingCASStore struct {
	*store.MemoryStore
}

func (failingCASStore) CompareAndMarkTriggered(context.Context, string, bool, decimal.Decimal, time.Time) (bool, error) {
	return false, model.ErrPersistenceFailure
}

func TestEvaluateAll_PersistenceFailureKeepsAlertEligible(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	seed(t, mem, "f1", "AAPL", model.Above, "100")
	quotes := &collector.MockFetcher{}
	quotes.SetQuote("AAPL", 101, testNow)

	got, err := newEvaluator(failingCASStore{mem}, quotes).EvaluateAll(ctx)
	if err != nil {
		t.Fatalf("EvaluateAll: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("failed write must not be reported as triggered")
	}
	a, _ := mem.GetAlert(ctx, "f1")
	if !a.Eligible() {
		t.Error("alert should remain eligible for the next run")
	}
}

type failingPriceStore struct {
	*store.MemoryStore
}

func (failingPriceStore) UpdateLastKnownPrice(context.Context, string, decimal.Decimal) error {
	return model.ErrPersistenceFailure
}

func TestEvaluateAll_LastPriceFailureIsNonFatal(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	seed(t, mem, "p1", "MSFT", model.Above, "500")
	seed(t, mem, "p2", "AAPL", model.Above, "100")
	quotes := &collector.MockFetcher{}
	quotes.SetQuote("MSFT", 420, testNow)
	quotes.SetQuote("AAPL", 101, testNow)

	got, err := newEvaluator(failingPriceStore{mem}, quotes).EvaluateAll(ctx)
	if err != nil {
		t.Fatalf("EvaluateAll: %v", err)
	}
	if len(got) != 1 || got[0].Alert.ID != "p2" {
		t.Fatalf("expected p2 to trigger despite the failed price update, got %+v", got)
	}
	a, _ := mem.GetAlert(ctx, "p1")
	if !a.Eligible() {
		t.Error("p1 should stay eligible")
	}
}

func TestEvaluateAll_UntimedQuoteIsFresh(t *testing.T) {
	s := store.NewMemoryStore()
	seed(t, s, "t1", "AAPL", model.Above, "100")
	quotes := &collector.MockFetcher{}
	quotes.SetQuote("AAPL", 101, time.Time{})

	e := newEvaluator(s, quotes)
	e.MaxQuoteAge = 10 * time.Minute
	got, err := e.EvaluateAll(context.Background())
	if err != nil {
		t.Fatalf("EvaluateAll: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("quote without a timestamp should be accepted, got %+v", got)
	}
}

type listErrStore struct {
	*store.MemoryStore
}

func (listErrStore) ListActiveAlerts(context.Context) ([]model.AlertRecord, error) {
	return nil, model.ErrPersistenceFailure
}

func TestEvaluateAll_ListError(t *testing.T) {
	_, err := newEvaluator(listErrStore{store.NewMemoryStore()}, &collector.MockFetcher{}).EvaluateAll(context.Background())
	if !errors.Is(err, model.ErrPersistenceFailure) {
		t.Errorf("expected ErrPersistenceFailure, got %v", err)
	}
}

func TestEvaluateAll_CancelledBeforeDispatch(t *testing.T) {
	s := store.NewMemoryStore()
	seed(t, s, "k1", "AAPL", model.Above, "100")
	quotes := &collector.MockFetcher{}
	quotes.SetQuote("AAPL", 200, testNow)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got, err := newEvaluator(s, quotes).EvaluateAll(ctx)
	if err != nil {
		t.Fatalf("EvaluateAll: %v", err)
	}
	if len(got) != 0 || quotes.QuoteCalls("AAPL") != 0 {
		t.Errorf("cancelled sweep should not dispatch symbols")
	}
}
