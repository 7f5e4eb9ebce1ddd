package service

import (
	"context"
	"errors"
	"time"

	"storefront/internal/commerce"
	"storefront/internal/models"

	"go.uber.org/zap"
)

var (
	// ErrEmptyCart is returned when an order has no line items
	ErrEmptyCart = errors.New("cart is empty")
	// ErrInvalidOrder wraps presence-check failures on order input
	ErrInvalidOrder = errors.New("invalid order")
	// ErrInvalidPayment wraps validation failures on payment input
	ErrInvalidPayment = errors.New("invalid payment request")
	// ErrInvalidQuery wraps catalog query validation failures
	ErrInvalidQuery = errors.New("invalid query")
	// ErrPaymentRequired is returned when an order is marked paid without a
	// matching successful payment
	ErrPaymentRequired = errors.New("payment required")
	// ErrPaymentMismatch is returned when an intent belongs to another order
	ErrPaymentMismatch = errors.New("payment intent does not belong to order")
)

// OrderPlatform is the order side of the commerce platform
type OrderPlatform interface {
	CreateOrder(ctx context.Context, in *models.OrderInput) (*models.Order, error)
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	UpdateOrder(ctx context.Context, id int64, update *models.OrderUpdate) (*models.Order, error)
}

// CatalogPlatform is the product side of the commerce platform
type CatalogPlatform interface {
	ListProducts(ctx context.Context, q commerce.ProductQuery) (*models.ProductPage, error)
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*models.Product, error)
}

// EventPublisher emits checkout events
type EventPublisher interface {
	PublishCheckoutEvent(ctx context.Context, event *models.CheckoutEvent) error
}

// Cache stores JSON values with a TTL
type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) error
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
}

// publishEvent sends an event; failures are logged and never fail the caller
func publishEvent(ctx context.Context, publisher EventPublisher, logger *zap.Logger, event *models.CheckoutEvent) {
	if err := publisher.PublishCheckoutEvent(ctx, event); err != nil {
		logger.Error("Failed to publish checkout event",
			zap.String("type", event.EventType),
			zap.Int64("order_id", event.OrderID),
			zap.Error(err))
	}
}
