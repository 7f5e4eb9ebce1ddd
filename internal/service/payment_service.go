package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"storefront/internal/broker"
	"storefront/internal/models"
	"storefront/internal/payment"
	"storefront/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderReader reads orders from the commerce platform
type OrderReader interface {
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
}

// PaymentService forwards payment intent operations to the processor
type PaymentService struct {
	provider        payment.Provider
	orders          OrderReader
	eventPublisher  EventPublisher
	publishableKey  string
	defaultCurrency string
	logger          *zap.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService(provider payment.Provider, orders OrderReader, eventPublisher EventPublisher, publishableKey, defaultCurrency string) *PaymentService {
	return &PaymentService{
		provider:        provider,
		orders:          orders,
		eventPublisher:  eventPublisher,
		publishableKey:  publishableKey,
		defaultCurrency: defaultCurrency,
		logger:          util.GetLogger(),
	}
}

// CreatePaymentRequest asks for a payment intent covering an order. The
// charged amount is always the order's platform total; Amount is only
// compared against it.
type CreatePaymentRequest struct {
	OrderID       int64           `json:"order_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency,omitempty"`
	CustomerEmail string          `json:"customer_email,omitempty"`
	CustomerName  string          `json:"customer_name,omitempty"`
}

// PaymentIntentResponse describes a payment intent to the client
type PaymentIntentResponse struct {
	PaymentIntentID string               `json:"payment_intent_id"`
	ClientSecret    string               `json:"client_secret,omitempty"`
	Status          models.PaymentStatus `json:"status"`
	IntentStatus    string               `json:"intent_status"`
	Amount          decimal.Decimal      `json:"amount"`
	Currency        string               `json:"currency"`
	OrderID         int64                `json:"order_id,omitempty"`
	PublishableKey  string               `json:"publishable_key,omitempty"`
}

// VerifyPaymentRequest checks an intent against an order
type VerifyPaymentRequest struct {
	PaymentIntentID string `json:"payment_intent_id"`
	OrderID         int64  `json:"order_id"`
}

// VerifyPaymentResponse is the outcome of a verification
type VerifyPaymentResponse struct {
	PaymentIntentID string               `json:"payment_intent_id"`
	OrderID         int64                `json:"order_id"`
	Status          models.PaymentStatus `json:"status"`
	Paid            bool                 `json:"paid"`
	Amount          decimal.Decimal      `json:"amount"`
	Currency        string               `json:"currency"`
}

func (s *PaymentService) toResponse(intent *models.PaymentIntent) *PaymentIntentResponse {
	resp := &PaymentIntentResponse{
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
		Status:          payment.MapStatus(intent.Status),
		IntentStatus:    intent.Status,
		Currency:        strings.ToUpper(intent.Currency),
		PublishableKey:  s.publishableKey,
	}
	if amount, err := payment.FromMinorUnits(intent.Amount, intent.Currency); err == nil {
		resp.Amount = amount
	}
	if id, err := strconv.ParseInt(intent.Metadata[models.MetaOrderID], 10, 64); err == nil {
		resp.OrderID = id
	}
	return resp
}

// CreatePaymentIntent creates an intent for the order's platform total
func (s *PaymentService) CreatePaymentIntent(ctx context.Context, req *CreatePaymentRequest) (*PaymentIntentResponse, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.CreatePaymentIntent")
	defer span.End()

	if req.OrderID <= 0 {
		return nil, fmt.Errorf("%w: order_id is required", ErrInvalidPayment)
	}

	order, err := s.orders.GetOrder(ctx, req.OrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order %d: %w", req.OrderID, err)
	}
	if !order.Total.IsPositive() {
		return nil, fmt.Errorf("%w: order %d has nothing to pay", ErrInvalidPayment, req.OrderID)
	}

	code := order.Currency
	if code == "" {
		code = s.defaultCurrency
	}
	if (!req.Amount.IsZero() && !req.Amount.Equal(order.Total)) ||
		(req.Currency != "" && !strings.EqualFold(req.Currency, code)) {
		s.logger.Warn("Client amount differs from order total, charging order total",
			zap.Int64("order_id", req.OrderID),
			zap.String("client_amount", req.Amount.String()+" "+req.Currency),
			zap.String("order_total", order.Total.String()+" "+code))
	}

	minor, err := payment.ToMinorUnits(order.Total, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayment, err)
	}

	intent, err := s.provider.CreateIntent(ctx, payment.IntentParams{
		Amount:        minor,
		Currency:      strings.ToLower(code),
		OrderID:       req.OrderID,
		CustomerEmail: req.CustomerEmail,
		CustomerName:  req.CustomerName,
		Description:   fmt.Sprintf("Order #%d", req.OrderID),
	})
	if err != nil {
		util.PaymentIntentsFailedTotal.WithLabelValues("upstream").Inc()
		s.logger.Error("Failed to create payment intent",
			zap.Int64("order_id", req.OrderID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	util.PaymentIntentsCreatedTotal.Inc()
	s.logger.Info("Payment intent created",
		zap.Int64("order_id", req.OrderID),
		zap.String("payment_intent_id", intent.ID))

	event := broker.NewCheckoutEvent(models.EventTypePaymentIntentCreated, req.OrderID)
	event.PaymentIntentID = intent.ID
	event.Status = intent.Status
	event.Amount = order.Total
	event.Currency = strings.ToUpper(code)
	s.publish(ctx, event)

	resp := s.toResponse(intent)
	resp.OrderID = req.OrderID
	return resp, nil
}

// GetPaymentIntent reads an intent's current status
func (s *PaymentService) GetPaymentIntent(ctx context.Context, intentID string) (*PaymentIntentResponse, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.GetPaymentIntent")
	defer span.End()

	if intentID == "" {
		return nil, fmt.Errorf("%w: payment_intent_id is required", ErrInvalidPayment)
	}

	intent, err := s.provider.GetIntent(ctx, intentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment intent: %w", err)
	}

	resp := s.toResponse(intent)
	resp.ClientSecret = ""
	return resp, nil
}

// VerifyPayment checks that the intent belongs to the order, reports whether
// it succeeded and records the verification.
func (s *PaymentService) VerifyPayment(ctx context.Context, req *VerifyPaymentRequest) (*VerifyPaymentResponse, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.VerifyPayment")
	defer span.End()

	resp, err := s.CheckPayment(ctx, req)
	if err != nil {
		return nil, err
	}
	util.PaymentVerificationsTotal.WithLabelValues(string(resp.Status)).Inc()

	event := broker.NewCheckoutEvent(models.EventTypePaymentVerified, req.OrderID)
	event.PaymentIntentID = resp.PaymentIntentID
	event.Status = string(resp.Status)
	event.Amount = resp.Amount
	event.Currency = resp.Currency
	s.publish(ctx, event)

	return resp, nil
}

// CheckPayment is VerifyPayment without the metric and ledger event
func (s *PaymentService) CheckPayment(ctx context.Context, req *VerifyPaymentRequest) (*VerifyPaymentResponse, error) {
	if req.PaymentIntentID == "" || req.OrderID <= 0 {
		return nil, fmt.Errorf("%w: payment_intent_id and order_id are required", ErrInvalidPayment)
	}

	intent, err := s.provider.GetIntent(ctx, req.PaymentIntentID)
	if err != nil {
		util.PaymentVerificationsTotal.WithLabelValues("error").Inc()
		if !errors.Is(err, payment.ErrIntentNotFound) {
			s.logger.Error("Failed to read payment intent",
				zap.String("payment_intent_id", req.PaymentIntentID),
				zap.Error(err))
		}
		return nil, fmt.Errorf("failed to verify payment: %w", err)
	}

	if owner := intent.Metadata[models.MetaOrderID]; owner != strconv.FormatInt(req.OrderID, 10) {
		util.PaymentVerificationsTotal.WithLabelValues("mismatch").Inc()
		s.logger.Warn("Payment intent order mismatch",
			zap.String("payment_intent_id", intent.ID),
			zap.Int64("order_id", req.OrderID),
			zap.String("intent_order_id", owner))
		return nil, ErrPaymentMismatch
	}

	status := payment.MapStatus(intent.Status)
	amount, _ := payment.FromMinorUnits(intent.Amount, intent.Currency)
	return &VerifyPaymentResponse{
		PaymentIntentID: intent.ID,
		OrderID:         req.OrderID,
		Status:          status,
		Paid:            status == models.PaymentStatusPaid,
		Amount:          amount,
		Currency:        strings.ToUpper(intent.Currency),
	}, nil
}

func (s *PaymentService) publish(ctx context.Context, event *models.CheckoutEvent) {
	publishEvent(ctx, s.eventPublisher, s.logger, event)
}
