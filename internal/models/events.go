package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderCreated         = "ORDER_CREATED"
	EventTypeOrderUpdated         = "ORDER_UPDATED"
	EventTypePaymentIntentCreated = "PAYMENT_INTENT_CREATED"
	EventTypePaymentVerified      = "PAYMENT_VERIFIED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// CheckoutEvent records one observed step of a checkout
type CheckoutEvent struct {
	BaseEvent
	OrderID         int64           `json:"order_id"`
	PaymentIntentID string          `json:"payment_intent_id,omitempty"`
	Status          string          `json:"status"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency,omitempty"`
}

// LedgerEntry is a checkout event as stored in the ledger
type LedgerEntry struct {
	ID              int64           `db:"id" json:"id"`
	EventID         string          `db:"event_id" json:"event_id"`
	EventType       string          `db:"event_type" json:"event_type"`
	OrderID         int64           `db:"order_id" json:"order_id"`
	PaymentIntentID string          `db:"payment_intent_id" json:"payment_intent_id,omitempty"`
	Status          string          `db:"status" json:"status"`
	Amount          decimal.Decimal `db:"amount" json:"amount"`
	Currency        string          `db:"currency" json:"currency,omitempty"`
	OccurredAt      time.Time       `db:"occurred_at" json:"occurred_at"`
	RecordedAt      time.Time       `db:"recorded_at" json:"recorded_at"`
}

// IsCheckoutEvent reports whether the type is one of the checkout event types
func IsCheckoutEvent(eventType string) bool {
	switch eventType {
	case EventTypeOrderCreated, EventTypeOrderUpdated, EventTypePaymentIntentCreated, EventTypePaymentVerified:
		return true
	}
	return false
}
