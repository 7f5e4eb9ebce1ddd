package service

import (
	"context"
	"fmt"
	"strings"

	"storefront/internal/broker"
	"storefront/internal/models"
	"storefront/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentVerifier confirms a payment intent against an order
type PaymentVerifier interface {
	CheckPayment(ctx context.Context, req *VerifyPaymentRequest) (*VerifyPaymentResponse, error)
}

// OrderService forwards order operations to the commerce platform
type OrderService struct {
	platform       OrderPlatform
	payments       PaymentVerifier
	eventPublisher EventPublisher
	logger         *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(platform OrderPlatform, payments PaymentVerifier, eventPublisher EventPublisher) *OrderService {
	return &OrderService{
		platform:       platform,
		payments:       payments,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
	}
}

// CreateOrderRequest represents a request to create an order
type CreateOrderRequest struct {
	Billing  models.CustomerInfo `json:"billing"`
	Items    []OrderItemRequest  `json:"items"`
	Currency string              `json:"currency,omitempty"`
}

// OrderItemRequest represents an item in an order
type OrderItemRequest struct {
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size,omitempty"`
	Color     string `json:"color,omitempty"`
}

// OrderResponse summarizes an order
type OrderResponse struct {
	OrderID  int64           `json:"order_id"`
	Number   string          `json:"number"`
	Status   string          `json:"status"`
	Total    decimal.Decimal `json:"total"`
	Currency string          `json:"currency"`
}

// UpdateOrderRequest carries a status transition and payment metadata
type UpdateOrderRequest struct {
	Status          string `json:"status"`
	SetPaid         bool   `json:"set_paid"`
	TransactionID   string `json:"transaction_id,omitempty"`
	PaymentIntentID string `json:"payment_intent_id,omitempty"`
}

// VerifyOrderResponse reports whether an order has been paid
type VerifyOrderResponse struct {
	OrderID       int64                `json:"order_id"`
	Status        string               `json:"status"`
	Paid          bool                 `json:"paid"`
	PaymentStatus models.PaymentStatus `json:"payment_status,omitempty"`
	Total         decimal.Decimal      `json:"total"`
	Currency      string               `json:"currency"`
}

func toOrderResponse(o *models.Order) *OrderResponse {
	return &OrderResponse{
		OrderID:  o.ID,
		Number:   o.Number,
		Status:   o.Status,
		Total:    o.Total,
		Currency: o.Currency,
	}
}

func (req *CreateOrderRequest) validate() error {
	if len(req.Items) == 0 {
		return ErrEmptyCart
	}
	for i, item := range req.Items {
		if item.ProductID <= 0 {
			return fmt.Errorf("%w: items[%d].product_id is required", ErrInvalidOrder, i)
		}
		if item.Quantity < 1 {
			return fmt.Errorf("%w: items[%d].quantity must be positive", ErrInvalidOrder, i)
		}
	}
	if err := req.Billing.Validate(); err != nil {
		return fmt.Errorf("%w: billing %v", ErrInvalidOrder, err)
	}
	return nil
}

// CreateOrder creates a pending, unpaid order in the commerce platform
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*OrderResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	if err := req.validate(); err != nil {
		util.OrdersFailedTotal.WithLabelValues("validation").Inc()
		return nil, err
	}

	lineItems := make([]models.LineItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		line := models.LineItemInput{ProductID: item.ProductID, Quantity: item.Quantity}
		if item.Size != "" {
			line.MetaData = append(line.MetaData, models.MetaData{Key: models.MetaSize, Value: item.Size})
		}
		if item.Color != "" {
			line.MetaData = append(line.MetaData, models.MetaData{Key: models.MetaColor, Value: item.Color})
		}
		lineItems = append(lineItems, line)
	}

	order, err := s.platform.CreateOrder(ctx, &models.OrderInput{
		Status:             models.OrderStatusPending,
		Currency:           req.Currency,
		PaymentMethod:      models.PaymentMethodStripe,
		PaymentMethodTitle: "Credit Card",
		SetPaid:            false,
		Billing:            req.Billing,
		LineItems:          lineItems,
	})
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("upstream").Inc()
		s.logger.Error("Failed to create order", zap.Error(err))
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Order created",
		zap.Int64("order_id", order.ID),
		zap.String("total", order.Total.String()))

	event := broker.NewCheckoutEvent(models.EventTypeOrderCreated, order.ID)
	event.Status = order.Status
	event.Amount = order.Total
	event.Currency = order.Currency
	s.publish(ctx, event)

	return toOrderResponse(order), nil
}

// GetOrder retrieves an order by ID
func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder")
	defer span.End()

	order, err := s.platform.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order %d: %w", orderID, err)
	}
	return order, nil
}

// UpdateOrder applies a status transition. Marking an order paid needs either
// a zero total or a succeeded payment intent of this order that charged its
// full platform total.
func (s *OrderService) UpdateOrder(ctx context.Context, orderID int64, req *UpdateOrderRequest) (*OrderResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateOrder")
	defer span.End()

	if req.Status == "" && !req.SetPaid {
		return nil, fmt.Errorf("%w: status or set_paid is required", ErrInvalidOrder)
	}

	update := &models.OrderUpdate{
		Status:        req.Status,
		SetPaid:       req.SetPaid,
		TransactionID: req.TransactionID,
	}
	if req.PaymentIntentID != "" {
		update.MetaData = []models.MetaData{{Key: models.MetaPaymentIntentID, Value: req.PaymentIntentID}}
		if update.TransactionID == "" {
			update.TransactionID = req.PaymentIntentID
		}
	}

	paidPath := ""
	if req.SetPaid {
		var err error
		if paidPath, err = s.checkPayment(ctx, orderID, req.PaymentIntentID); err != nil {
			return nil, err
		}
	}

	order, err := s.platform.UpdateOrder(ctx, orderID, update)
	if err != nil {
		s.logger.Error("Failed to update order", zap.Int64("order_id", orderID), zap.Error(err))
		return nil, fmt.Errorf("failed to update order %d: %w", orderID, err)
	}

	if paidPath != "" {
		util.OrdersPaidTotal.WithLabelValues(paidPath).Inc()
	}
	s.logger.Info("Order updated",
		zap.Int64("order_id", order.ID),
		zap.String("status", order.Status),
		zap.Bool("set_paid", req.SetPaid))

	event := broker.NewCheckoutEvent(models.EventTypeOrderUpdated, order.ID)
	event.PaymentIntentID = req.PaymentIntentID
	event.Status = order.Status
	event.Amount = order.Total
	event.Currency = order.Currency
	s.publish(ctx, event)

	return toOrderResponse(order), nil
}

// checkPayment guards set_paid and returns the payment path label
func (s *OrderService) checkPayment(ctx context.Context, orderID int64, intentID string) (string, error) {
	order, err := s.platform.GetOrder(ctx, orderID)
	if err != nil {
		return "", fmt.Errorf("failed to get order %d: %w", orderID, err)
	}

	if intentID == "" {
		if !order.Total.IsZero() {
			s.logger.Warn("Refusing to mark order paid without payment",
				zap.Int64("order_id", orderID),
				zap.String("total", order.Total.String()))
			return "", fmt.Errorf("%w: order %d total is %s", ErrPaymentRequired, orderID, order.Total)
		}
		return "free", nil
	}

	verified, err := s.payments.CheckPayment(ctx, &VerifyPaymentRequest{PaymentIntentID: intentID, OrderID: orderID})
	if err != nil {
		return "", err
	}
	if !verified.Paid {
		return "", fmt.Errorf("%w: payment intent %s is %s", ErrPaymentRequired, intentID, verified.Status)
	}
	if !coversOrder(verified, order) {
		s.logger.Warn("Payment intent does not cover order total",
			zap.Int64("order_id", orderID),
			zap.String("payment_intent_id", intentID),
			zap.String("paid", verified.Amount.String()+" "+verified.Currency),
			zap.String("total", order.Total.String()+" "+order.Currency))
		return "", fmt.Errorf("%w: payment intent %s covers %s %s, order total is %s %s",
			ErrPaymentRequired, intentID, verified.Amount, verified.Currency, order.Total, order.Currency)
	}
	return "intent", nil
}

// coversOrder reports whether a verified intent charged exactly the order's
// platform total in the order's currency.
func coversOrder(verified *VerifyPaymentResponse, order *models.Order) bool {
	return strings.EqualFold(verified.Currency, order.Currency) && verified.Amount.Equal(order.Total)
}

// VerifyOrder reports whether the order is paid. A paid order status wins;
// otherwise the payment intent, given or recorded on the order, decides.
func (s *OrderService) VerifyOrder(ctx context.Context, orderID int64, intentID string) (*VerifyOrderResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.VerifyOrder")
	defer span.End()

	order, err := s.platform.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order %d: %w", orderID, err)
	}

	resp := &VerifyOrderResponse{
		OrderID:  order.ID,
		Status:   order.Status,
		Total:    order.Total,
		Currency: order.Currency,
	}
	if order.IsPaid() {
		resp.Paid = true
		resp.PaymentStatus = models.PaymentStatusPaid
		return resp, nil
	}

	if intentID == "" {
		intentID = order.Meta(models.MetaPaymentIntentID)
	}
	if intentID == "" {
		resp.PaymentStatus = models.PaymentStatusUnpaid
		return resp, nil
	}

	verified, err := s.payments.CheckPayment(ctx, &VerifyPaymentRequest{PaymentIntentID: intentID, OrderID: orderID})
	if err != nil {
		return nil, err
	}
	resp.PaymentStatus = verified.Status
	resp.Paid = verified.Paid && coversOrder(verified, order)
	if verified.Paid && !resp.Paid {
		resp.PaymentStatus = models.PaymentStatusUnpaid
	}
	return resp, nil
}

func (s *OrderService) publish(ctx context.Context, event *models.CheckoutEvent) {
	publishEvent(ctx, s.eventPublisher, s.logger, event)
}
