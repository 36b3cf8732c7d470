package recorder

import (
	"time"

	"signalist/internal/model"

	"github.com/shopspring/decimal"
)

// Scan kinds.
const (
	KindScheduled = "scheduled"
	KindRealtime  = "realtime"
	KindManual    = "manual"
)

// ScanEvent is the pattern result of one symbol in one scan.
type ScanEvent struct {
	Kind    string
	Symbol  string
	At      time.Time
	Matches []model.PatternMatch
	Summary model.PatternSummary
	Error   string // set when the symbol could not be analyzed
}

// TriggerEvent records a fired alert and the outcome of its notification.
type TriggerEvent struct {
	AlertID     string
	UserID      string
	Symbol      string
	Direction   model.AlertDirection
	TargetPrice decimal.Decimal
	Price       decimal.Decimal
	At          time.Time
	Notified    bool
	NotifyError string
}

// NewTriggerEvent builds the record of a trigger before notification.
func NewTriggerEvent(t model.TriggeredAlert) *TriggerEvent {
	return &TriggerEvent{
		AlertID:     t.Alert.ID,
		UserID:      t.Alert.UserID,
		Symbol:      t.Alert.Symbol,
		Direction:   t.Alert.Direction,
		TargetPrice: t.Alert.TargetPrice,
		Price:       t.Price,
		At:          t.At,
	}
}

// Recorder persists detection and trigger history for later analysis.
type Recorder interface {
	RecordScan(evt *ScanEvent) error
	RecordTrigger(evt *TriggerEvent) error
	Close() error
}
