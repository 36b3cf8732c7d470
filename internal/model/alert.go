package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AlertDirection says which side of the target price fires the alert.
type AlertDirection string

const (
	Above AlertDirection = "above"
	Below AlertDirection = "below"
)

// Valid reports whether d is a known direction.
func (d AlertDirection) Valid() bool { return d == Above || d == Below }

// NotificationMethod selects the delivery channel(s) for an alert.
type NotificationMethod string

const (
	MethodEmail NotificationMethod = "email"
	MethodPush  NotificationMethod = "push"
	MethodBoth  NotificationMethod = "both"
)

// Valid reports whether m is a known method.
func (m NotificationMethod) Valid() bool {
	return m == MethodEmail || m == MethodPush || m == MethodBoth
}

// Email reports whether the method includes email delivery.
func (m NotificationMethod) Email() bool { return m == MethodEmail || m == MethodBoth }

// Push reports whether the method includes push delivery.
func (m NotificationMethod) Push() bool { return m == MethodPush || m == MethodBoth }

// AlertState is the lifecycle state derived from an AlertRecord's flags.
type AlertState string

const (
	StateActive    AlertState = "ACTIVE"
	StateInactive  AlertState = "INACTIVE"
	StateTriggered AlertState = "TRIGGERED"
)

// AlertRecord is a user-defined price threshold on one symbol.
type AlertRecord struct {
	ID             string
	UserID         string
	Symbol         string
	Company        string
	Direction      AlertDirection
	TargetPrice    decimal.Decimal
	LastKnownPrice decimal.Decimal
	IsActive       bool
	IsTriggered    bool
	TriggeredAt    *time.Time
	Method         NotificationMethod
	CreatedAt      time.Time
}

// State derives the lifecycle state. Triggered is terminal and wins over IsActive.
func (a AlertRecord) State() AlertState {
	switch {
	case a.IsTriggered:
		return StateTriggered
	case a.IsActive:
		return StateActive
	default:
		return StateInactive
	}
}

// Eligible reports whether the evaluator should look at this alert.
func (a AlertRecord) Eligible() bool { return a.IsActive && !a.IsTriggered }

// Crossed reports whether price has reached the target in the alert's direction.
// Both directions are boundary-inclusive.
func (a AlertRecord) Crossed(price decimal.Decimal) bool {
	switch a.Direction {
	case Above:
		return price.GreaterThanOrEqual(a.TargetPrice)
	case Below:
		return price.LessThanOrEqual(a.TargetPrice)
	}
	return false
}

// TriggeredAlert is handed off by the evaluator for notification dispatch.
type TriggeredAlert struct {
	Alert AlertRecord
	Price decimal.Decimal
	At    time.Time
}

func (TriggeredAlert) payload() {}

// Payload is anything a Notifier can deliver: TriggeredAlert or PatternBatch.
type Payload interface {
	payload()
}

// Recipient is a user from the watchlist directory.
type Recipient struct {
	UserID         string
	Name           string
	Email          string
	TelegramChatID string
	Method         NotificationMethod
	Symbols        []string
}

// Watches reports whether the recipient follows symbol. An empty list follows everything.
func (r Recipient) Watches(symbol string) bool {
	if len(r.Symbols) == 0 {
		return true
	}
	for _, s := range r.Symbols {
		if s == symbol {
			return true
		}
	}
	return false
}
