package alert

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"signalist/internal/collector"
	"signalist/internal/model"
	"signalist/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateRequest is a user's request for a new price alert.
type CreateRequest struct {
	UserID      string
	Symbol      string
	Company     string
	Direction   model.AlertDirection
	TargetPrice decimal.Decimal
	Method      model.NotificationMethod // empty means email
}

// Service manages alert records on behalf of their owners.
type Service struct {
	Store  store.AlertRepository
	Quotes collector.QuoteProvider
	Now    func() time.Time
}

// Create validates req against the current quote and stores a new active alert.
// An "above" target must sit above the current price, a "below" target below it.
func (s *Service) Create(ctx context.Context, req CreateRequest) (model.AlertRecord, error) {
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	method := req.Method
	if method == "" {
		method = model.MethodEmail
	}

	switch {
	case req.UserID == "":
		return model.AlertRecord{}, fmt.Errorf("missing user: %w", model.ErrInvalidAlert)
	case symbol == "":
		return model.AlertRecord{}, fmt.Errorf("missing symbol: %w", model.ErrInvalidAlert)
	case !req.Direction.Valid():
		return model.AlertRecord{}, fmt.Errorf("direction %q: %w", req.Direction, model.ErrInvalidAlert)
	case !method.Valid():
		return model.AlertRecord{}, fmt.Errorf("notification method %q: %w", req.Method, model.ErrInvalidAlert)
	case !req.TargetPrice.IsPositive():
		return model.AlertRecord{}, fmt.Errorf("target price %s must be positive: %w", req.TargetPrice, model.ErrInvalidAlert)
	}

	quote, err := s.Quotes.GetQuote(ctx, symbol)
	if err != nil {
		return model.AlertRecord{}, fmt.Errorf("fetch current price of %s: %w", symbol, err)
	}
	if req.Direction == model.Above && req.TargetPrice.LessThanOrEqual(quote.Price) {
		return model.AlertRecord{}, fmt.Errorf("target %s must be above current price %s: %w", req.TargetPrice, quote.Price, model.ErrInvalidAlert)
	}
	if req.Direction == model.Below && req.TargetPrice.GreaterThanOrEqual(quote.Price) {
		return model.AlertRecord{}, fmt.Errorf("target %s must be below current price %s: %w", req.TargetPrice, quote.Price, model.ErrInvalidAlert)
	}

	company := strings.TrimSpace(req.Company)
	if company == "" {
		company = symbol
	}
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	a := model.AlertRecord{
		ID:             uuid.NewString(),
		UserID:         req.UserID,
		Symbol:         symbol,
		Company:        company,
		Direction:      req.Direction,
		TargetPrice:    req.TargetPrice,
		LastKnownPrice: quote.Price,
		IsActive:       true,
		Method:         method,
		CreatedAt:      now,
	}
	if err := s.Store.CreateAlert(ctx, a); err != nil {
		return model.AlertRecord{}, fmt.Errorf("create alert: %w", err)
	}
	log.Printf("[INFO] alert %s created: %s %s %s for %s", a.ID, a.Symbol, a.Direction, a.TargetPrice, a.UserID)
	return a, nil
}

// List returns the user's alerts, newest first. activeOnly keeps eligible alerts.
func (s *Service) List(ctx context.Context, userID string, activeOnly bool) ([]model.AlertRecord, error) {
	return s.Store.ListUserAlerts(ctx, userID, activeOnly)
}

// Toggle flips the active flag. Toggling a triggered alert is allowed but never
// brings it back into evaluation.
func (s *Service) Toggle(ctx context.Context, id, userID string) (bool, error) {
	active, err := s.Store.ToggleActive(ctx, id, userID)
	if err != nil {
		return false, fmt.Errorf("toggle alert %s: %w", id, err)
	}
	state := "deactivated"
	if active {
		state = "activated"
	}
	log.Printf("[INFO] alert %s %s by %s", id, state, userID)
	return active, nil
}

// Delete removes an alert owned by userID.
func (s *Service) Delete(ctx context.Context, id, userID string) error {
	if err := s.Store.DeleteAlert(ctx, id, userID); err != nil {
		return fmt.Errorf("delete alert %s: %w", id, err)
	}
	log.Printf("[INFO] alert %s deleted by %s", id, userID)
	return nil
}
