package store

import (
	"context"
	"testing"
	"time"

	"storefront/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("Integration test - requires docker")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("ledger"),
		postgres.WithUsername("app"),
		postgres.WithPassword("secret"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := NewStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.RunMigrations())
	require.NoError(t, s.RunMigrations(), "migrations are idempotent")
	return s
}

func newEvent(eventType string, orderID int64, at time.Time) *models.CheckoutEvent {
	return &models.CheckoutEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.NewString(),
			EventType: eventType,
			Timestamp: at,
		},
		OrderID:  orderID,
		Status:   models.OrderStatusPending,
		Amount:   decimal.RequireFromString("200.00"),
		Currency: "USD",
	}
}

func TestRecordCheckoutEvent_Idempotent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	event := newEvent(models.EventTypeOrderCreated, 1001, time.Now().UTC())

	written, err := s.RecordCheckoutEvent(ctx, event)
	require.NoError(t, err)
	assert.True(t, written)

	written, err = s.RecordCheckoutEvent(ctx, event)
	require.NoError(t, err)
	assert.False(t, written, "redelivered event is ignored")

	history, err := s.GetOrderHistory(ctx, 1001)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, event.EventID, history[0].EventID)
	assert.True(t, event.Amount.Equal(history[0].Amount))
}

func TestGetOrderHistory_Ordered(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)

	second := newEvent(models.EventTypePaymentIntentCreated, 7, base.Add(time.Second))
	second.PaymentIntentID = "pi_7"
	first := newEvent(models.EventTypeOrderCreated, 7, base)
	other := newEvent(models.EventTypeOrderCreated, 8, base)

	for _, e := range []*models.CheckoutEvent{second, first, other} {
		_, err := s.RecordCheckoutEvent(ctx, e)
		require.NoError(t, err)
	}

	history, err := s.GetOrderHistory(ctx, 7)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.EventTypeOrderCreated, history[0].EventType)
	assert.Equal(t, "pi_7", history[1].PaymentIntentID)

	empty, err := s.GetOrderHistory(ctx, 404)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
