package store

import (
	"context"
	"time"

	"signalist/internal/model"

	"github.com/shopspring/decimal"
)

// AlertStore is what the evaluator needs from persistence. Every write is
// conditioned on the record not being triggered yet.
type AlertStore interface {
	// ListActiveAlerts returns alerts with isActive=true and isTriggered=false.
	ListActiveAlerts(ctx context.Context) ([]model.AlertRecord, error)
	// CompareAndMarkTriggered sets isTriggered, triggeredAt and lastKnownPrice only
	// if the stored isTriggered equals expectedTriggered and the alert is active.
	// updated is false when the precondition did not hold.
	CompareAndMarkTriggered(ctx context.Context, id string, expectedTriggered bool, price decimal.Decimal, at time.Time) (updated bool, err error)
	// UpdateLastKnownPrice refreshes the observed price of an untriggered alert.
	UpdateLastKnownPrice(ctx context.Context, id string, price decimal.Decimal) error
}

// AlertRepository adds the user-facing record management on top of AlertStore.
type AlertRepository interface {
	AlertStore
	CreateAlert(ctx context.Context, a model.AlertRecord) error
	GetAlert(ctx context.Context, id string) (model.AlertRecord, error)
	// ListUserAlerts returns the user's alerts, newest first.
	ListUserAlerts(ctx context.Context, userID string, activeOnly bool) ([]model.AlertRecord, error)
	// ToggleActive flips isActive for an alert owned by userID and returns the new value.
	ToggleActive(ctx context.Context, id, userID string) (bool, error)
	DeleteAlert(ctx context.Context, id, userID string) error
	Close() error
}
