package store

import (
	"context"
	"fmt"

	"storefront/internal/models"
)

// RecordCheckoutEvent appends an event to the ledger. Redelivered events are
// ignored; the returned bool reports whether a row was written.
func (s *Store) RecordCheckoutEvent(ctx context.Context, event *models.CheckoutEvent) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO checkout_events
			(event_id, event_type, order_id, payment_intent_id, status, amount, currency, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (event_id) DO NOTHING`,
		event.EventID, event.EventType, event.OrderID, event.PaymentIntentID,
		event.Status, event.Amount, event.Currency, event.Timestamp)
	if err != nil {
		return false, fmt.Errorf("failed to record checkout event: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetOrderHistory returns the ledger entries of an order, oldest first
func (s *Store) GetOrderHistory(ctx context.Context, orderID int64) ([]models.LedgerEntry, error) {
	entries := []models.LedgerEntry{}
	err := s.db.SelectContext(ctx, &entries, `
		SELECT id, event_id, event_type, order_id, payment_intent_id, status, amount, currency, occurred_at, recorded_at
		FROM checkout_events
		WHERE order_id = $1
		ORDER BY occurred_at, id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order history: %w", err)
	}
	return entries, nil
}
