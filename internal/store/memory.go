package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"signalist/internal/model"

	"github.com/shopspring/decimal"
)

// MemoryStore is an in-process AlertRepository used for dry runs and tests.
type MemoryStore struct {
	mu     sync.Mutex
	alerts map[string]model.AlertRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{alerts: make(map[string]model.AlertRecord)}
}

func (m *MemoryStore) ListActiveAlerts(_ context.Context) ([]model.AlertRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.AlertRecord
	for _, a := range m.alerts {
		if a.Eligible() {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) CompareAndMarkTriggered(_ context.Context, id string, expectedTriggered bool, price decimal.Decimal, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[id]
	if !ok || a.IsTriggered != expectedTriggered || !a.IsActive {
		return false, nil
	}
	a.IsTriggered = true
	a.TriggeredAt = &at
	a.LastKnownPrice = price
	m.alerts[id] = a
	return true, nil
}

func (m *MemoryStore) UpdateLastKnownPrice(_ context.Context, id string, price decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.alerts[id]; ok && !a.IsTriggered {
		a.LastKnownPrice = price
		m.alerts[id] = a
	}
	return nil
}

func (m *MemoryStore) CreateAlert(_ context.Context, a model.AlertRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.alerts[a.ID]; exists {
		return fmt.Errorf("alert %s already exists: %w", a.ID, model.ErrPersistenceFailure)
	}
	m.alerts[a.ID] = a
	return nil
}

func (m *MemoryStore) GetAlert(_ context.Context, id string) (model.AlertRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[id]
	if !ok {
		return model.AlertRecord{}, fmt.Errorf("alert %s: %w", id, model.ErrNotFound)
	}
	return a, nil
}

func (m *MemoryStore) ListUserAlerts(_ context.Context, userID string, activeOnly bool) ([]model.AlertRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.AlertRecord
	for _, a := range m.alerts {
		if a.UserID != userID || (activeOnly && !a.Eligible()) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) ToggleActive(_ context.Context, id, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[id]
	if !ok || a.UserID != userID {
		return false, fmt.Errorf("alert %s: %w", id, model.ErrNotFound)
	}
	a.IsActive = !a.IsActive
	m.alerts[id] = a
	return a.IsActive, nil
}

func (m *MemoryStore) DeleteAlert(_ context.Context, id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[id]
	if !ok || a.UserID != userID {
		return fmt.Errorf("alert %s: %w", id, model.ErrNotFound)
	}
	delete(m.alerts, id)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
