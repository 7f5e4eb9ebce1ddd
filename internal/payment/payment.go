// Package payment wraps the payment processor behind a small Provider
// interface and owns the mapping to simplified payment statuses.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storefront/internal/models"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

var (
	// ErrIntentNotFound is returned when the processor has no such intent.
	ErrIntentNotFound = errors.New("payment intent not found")
	// ErrInvalidCurrency is returned for codes that are not ISO 4217.
	ErrInvalidCurrency = errors.New("invalid currency")
)

// IntentParams describes a payment intent to create
type IntentParams struct {
	Amount        int64
	Currency      string
	OrderID       int64
	CustomerEmail string
	CustomerName  string
	Description   string
}

// Provider is the payment processor
type Provider interface {
	CreateIntent(ctx context.Context, params IntentParams) (*models.PaymentIntent, error)
	GetIntent(ctx context.Context, id string) (*models.PaymentIntent, error)
}

// MapStatus simplifies the processor's intent status
func MapStatus(status string) models.PaymentStatus {
	switch status {
	case models.IntentStatusSucceeded:
		return models.PaymentStatusPaid
	case models.IntentStatusCanceled:
		return models.PaymentStatusExpired
	case models.IntentStatusRequiresPaymentMethod:
		return models.PaymentStatusUnpaid
	default:
		return models.PaymentStatusOpen
	}
}

// ParseCurrency validates an ISO 4217 code
func ParseCurrency(code string) (currency.Unit, error) {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return currency.Unit{}, fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}
	return unit, nil
}

// ToMinorUnits converts a decimal amount to the currency's smallest unit,
// e.g. 12.34 USD -> 1234, 500 JPY -> 500.
func ToMinorUnits(amount decimal.Decimal, code string) (int64, error) {
	unit, err := ParseCurrency(code)
	if err != nil {
		return 0, err
	}
	scale, _ := currency.Standard.Rounding(unit)
	return amount.Shift(int32(scale)).Round(0).IntPart(), nil
}

// FromMinorUnits converts a smallest-unit amount back to a decimal
func FromMinorUnits(amount int64, code string) (decimal.Decimal, error) {
	unit, err := ParseCurrency(code)
	if err != nil {
		return decimal.Zero, err
	}
	scale, _ := currency.Standard.Rounding(unit)
	return decimal.New(amount, -int32(scale)), nil
}
