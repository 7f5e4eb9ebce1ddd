// Package checkout drives a customer through order creation, payment and
// confirmation against the storefront API.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"storefront/internal/cart"
	"storefront/internal/models"
	"storefront/internal/service"
	"storefront/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderAPI creates and updates orders
type OrderAPI interface {
	CreateOrder(ctx context.Context, req *service.CreateOrderRequest) (*service.OrderResponse, error)
	UpdateOrder(ctx context.Context, orderID int64, req *service.UpdateOrderRequest) (*service.OrderResponse, error)
}

// PaymentAPI creates and verifies payment intents
type PaymentAPI interface {
	CreatePaymentIntent(ctx context.Context, req *service.CreatePaymentRequest) (*service.PaymentIntentResponse, error)
	VerifyPayment(ctx context.Context, req *service.VerifyPaymentRequest) (*service.VerifyPaymentResponse, error)
}

// WidgetConfig is what the embedded payment widget is mounted with
type WidgetConfig struct {
	PublishableKey  string
	PaymentIntentID string
	ClientSecret    string
	OrderID         int64
	Amount          decimal.Decimal
	Currency        string
}

// Widget is the processor's embedded payment form. Mount returns a
// completion the widget resolves once the customer finishes or fails.
type Widget interface {
	Mount(ctx context.Context, cfg WidgetConfig) (*Completion, error)
}

// Result is a finished checkout
type Result struct {
	OrderID         int64
	OrderNumber     string
	PaymentIntentID string
	// Free is set when the order total was zero and no payment was taken
	Free         bool
	RedirectPath string
}

// Orchestrator runs checkouts for one cart
type Orchestrator struct {
	cart     *cart.Store
	orders   OrderAPI
	payments PaymentAPI
	widget   Widget
	now      func() time.Time
	logger   *zap.Logger
}

func NewOrchestrator(store *cart.Store, orders OrderAPI, payments PaymentAPI, widget Widget) *Orchestrator {
	return &Orchestrator{
		cart:     store,
		orders:   orders,
		payments: payments,
		widget:   widget,
		now:      time.Now,
		logger:   util.GetLogger(),
	}
}

// SuccessPath is the confirmation route for an order
func SuccessPath(orderID int64) string {
	q := url.Values{}
	q.Set("order_id", strconv.FormatInt(orderID, 10))
	return "/checkout/success?" + q.Encode()
}

// Checkout places an order for the cart contents and collects payment. Any
// failure halts the flow; nothing is retried and the created order is left
// pending.
func (o *Orchestrator) Checkout(ctx context.Context, customer models.CustomerInfo) (*Result, error) {
	ctx, span := util.StartSpan(ctx, "Checkout")
	defer span.End()

	if err := customer.Validate(); err != nil {
		return nil, &Error{Step: StepValidate, Message: err.Error()}
	}

	snapshot := o.cart.Snapshot()
	if snapshot.IsEmpty() {
		return nil, &Error{Step: StepValidate, Message: msgEmptyCart}
	}

	if err := o.cart.Backup(ctx); err != nil {
		o.logger.Warn("Failed to back up cart", zap.Error(err))
	}

	order, err := o.orders.CreateOrder(ctx, orderRequest(customer, snapshot))
	if err != nil {
		return nil, &Error{Step: StepCreateOrder, Message: msgCreateOrder, Err: err}
	}
	o.logger.Info("Checkout order created",
		zap.Int64("order_id", order.OrderID),
		zap.String("total", order.Total.String()))

	if order.Total.IsZero() {
		return o.completeFree(ctx, order)
	}

	intent, err := o.payments.CreatePaymentIntent(ctx, &service.CreatePaymentRequest{
		OrderID:       order.OrderID,
		Amount:        order.Total,
		Currency:      order.Currency,
		CustomerEmail: customer.Email,
		CustomerName:  customer.FullName(),
	})
	if err != nil {
		return nil, &Error{Step: StepCreatePayment, Message: msgCreatePayment, Err: err}
	}

	if err := o.cart.SetPendingOrder(ctx, cart.PendingOrder{
		OrderID:         order.OrderID,
		PaymentIntentID: intent.PaymentIntentID,
		CreatedAt:       o.now().UTC(),
	}); err != nil {
		o.logger.Warn("Failed to record pending order", zap.Error(err))
	}

	completion, err := o.widget.Mount(ctx, WidgetConfig{
		PublishableKey:  intent.PublishableKey,
		PaymentIntentID: intent.PaymentIntentID,
		ClientSecret:    intent.ClientSecret,
		OrderID:         order.OrderID,
		Amount:          order.Total,
		Currency:        order.Currency,
	})
	if err != nil {
		return nil, &Error{Step: StepPayment, Message: msgCreatePayment, Err: err}
	}

	outcome, err := completion.Wait(ctx)
	if err != nil {
		return nil, &Error{Step: StepPayment, Message: "Payment was interrupted.", Err: err}
	}
	if !outcome.Succeeded {
		o.logger.Info("Payment widget reported an error",
			zap.Int64("order_id", order.OrderID),
			zap.String("message", outcome.Message))
		return nil, &Error{Step: StepPayment, Message: outcome.Message}
	}

	intentID := outcome.PaymentIntentID
	if intentID == "" {
		intentID = intent.PaymentIntentID
	}
	return o.completePaid(ctx, order, intentID)
}

func (o *Orchestrator) completeFree(ctx context.Context, order *service.OrderResponse) (*Result, error) {
	if _, err := o.orders.UpdateOrder(ctx, order.OrderID, &service.UpdateOrderRequest{
		Status:  models.OrderStatusCompleted,
		SetPaid: true,
	}); err != nil {
		return nil, &Error{Step: StepFreeOrder, Message: msgCompleteOrder, Err: err}
	}

	o.finish(ctx)
	return &Result{
		OrderID:      order.OrderID,
		OrderNumber:  order.Number,
		Free:         true,
		RedirectPath: SuccessPath(order.OrderID),
	}, nil
}

func (o *Orchestrator) completePaid(ctx context.Context, order *service.OrderResponse, intentID string) (*Result, error) {
	verified, err := o.payments.VerifyPayment(ctx, &service.VerifyPaymentRequest{
		PaymentIntentID: intentID,
		OrderID:         order.OrderID,
	})
	if err != nil {
		return nil, &Error{Step: StepVerify, Message: msgNotPaid, Err: err}
	}
	if !verified.Paid {
		return nil, &Error{
			Step:    StepVerify,
			Message: msgNotPaid,
			Err:     fmt.Errorf("payment intent %s is %s", intentID, verified.Status),
		}
	}

	if _, err := o.orders.UpdateOrder(ctx, order.OrderID, &service.UpdateOrderRequest{
		Status:          models.OrderStatusCompleted,
		SetPaid:         true,
		TransactionID:   intentID,
		PaymentIntentID: intentID,
	}); err != nil {
		return nil, &Error{Step: StepCompleteOrder, Message: msgCompleteOrder, Err: err}
	}

	o.finish(ctx)
	o.logger.Info("Checkout completed",
		zap.Int64("order_id", order.OrderID),
		zap.String("payment_intent_id", intentID))

	return &Result{
		OrderID:         order.OrderID,
		OrderNumber:     order.Number,
		PaymentIntentID: intentID,
		RedirectPath:    SuccessPath(order.OrderID),
	}, nil
}

// finish clears the cart and the checkout support keys
func (o *Orchestrator) finish(ctx context.Context) {
	o.cart.Clear(ctx)
	if err := o.cart.ClearPendingOrder(ctx); err != nil {
		o.logger.Warn("Failed to clear pending order", zap.Error(err))
	}
	if err := o.cart.RemoveBackup(ctx); err != nil {
		o.logger.Warn("Failed to remove cart backup", zap.Error(err))
	}
}

// Cancel abandons an in-progress checkout: the cart is restored from the
// backup and the pending order info is dropped. The order itself stays
// pending in the commerce platform.
func (o *Orchestrator) Cancel(ctx context.Context) error {
	var errs []error
	if _, err := o.cart.RestoreBackup(ctx); err != nil {
		errs = append(errs, fmt.Errorf("restore cart: %w", err))
	}
	if err := o.cart.ClearPendingOrder(ctx); err != nil {
		errs = append(errs, fmt.Errorf("clear pending order: %w", err))
	}
	return errors.Join(errs...)
}

func orderRequest(customer models.CustomerInfo, c cart.Cart) *service.CreateOrderRequest {
	items := make([]service.OrderItemRequest, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, service.OrderItemRequest{
			ProductID: it.ID,
			Quantity:  it.Quantity,
			Size:      it.Size,
			Color:     it.Color,
		})
	}
	return &service.CreateOrderRequest{Billing: customer, Items: items}
}
