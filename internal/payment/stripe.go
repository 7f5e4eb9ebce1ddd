package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"storefront/internal/models"
	"storefront/internal/util"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/paymentintent"
)

// StripeProvider creates and reads payment intents through the Stripe API
type StripeProvider struct {
	intents *paymentintent.Client
}

// NewStripeProvider builds a provider for the given secret key. apiURL may
// point at a non-default endpoint; network retries are disabled.
func NewStripeProvider(secretKey, apiURL string, httpClient *http.Client) *StripeProvider {
	cfg := &stripe.BackendConfig{
		HTTPClient:        util.NewHTTPClient("stripe", httpClient),
		LeveledLogger:     util.GetLogger().Sugar(),
		MaxNetworkRetries: stripe.Int64(0),
	}
	if apiURL != "" {
		cfg.URL = stripe.String(apiURL)
	}

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, cfg)
	return &StripeProvider{
		intents: &paymentintent.Client{B: backend, Key: secretKey},
	}
}

// CreateIntent creates a payment intent with automatic payment methods so the
// embedded widget can offer whatever the account has enabled.
func (p *StripeProvider) CreateIntent(ctx context.Context, in IntentParams) (*models.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(in.Amount),
		Currency: stripe.String(in.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if in.Description != "" {
		params.Description = stripe.String(in.Description)
	}
	if in.CustomerEmail != "" {
		params.ReceiptEmail = stripe.String(in.CustomerEmail)
		params.AddMetadata(models.MetaCustomerEmail, in.CustomerEmail)
	}
	params.AddMetadata(models.MetaOrderID, strconv.FormatInt(in.OrderID, 10))
	params.Context = ctx

	start := time.Now()
	pi, err := p.intents.New(params)
	observe("create_intent", start, err)
	if err != nil {
		return nil, translate(err)
	}
	return toModel(pi), nil
}

// GetIntent reads a payment intent
func (p *StripeProvider) GetIntent(ctx context.Context, id string) (*models.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	start := time.Now()
	pi, err := p.intents.Get(id, params)
	observe("get_intent", start, err)
	if err != nil {
		return nil, translate(err)
	}
	return toModel(pi), nil
}

func observe(operation string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	util.UpstreamRequestDuration.WithLabelValues("stripe", operation, outcome).Observe(time.Since(start).Seconds())
}

func translate(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s", ErrIntentNotFound, stripeErr.Msg)
		}
		return fmt.Errorf("payment processor error %d: %s", stripeErr.HTTPStatusCode, stripeErr.Msg)
	}
	return fmt.Errorf("payment processor request failed: %w", err)
}

func toModel(pi *stripe.PaymentIntent) *models.PaymentIntent {
	return &models.PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
		Metadata:     pi.Metadata,
	}
}
