package commerce

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"storefront/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{
		BaseURL:        srv.URL,
		ConsumerKey:    "ck_test",
		ConsumerSecret: "cs_test",
	})
	require.NoError(t, err)
	return c
}

func TestNewClient_InvalidURL(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "not a url"})
	assert.Error(t, err)
}

func TestListProducts_SendsAuthAndFilters(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wp-json/wc/v3/products", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "ck_test", q.Get("consumer_key"))
		assert.Equal(t, "cs_test", q.Get("consumer_secret"))
		assert.Equal(t, "2", q.Get("page"))
		assert.Equal(t, "12", q.Get("per_page"))
		assert.Equal(t, "popularity", q.Get("orderby"))
		assert.Equal(t, "7", q.Get("category"))
		assert.Equal(t, "1,2", q.Get("exclude"))
		assert.Equal(t, "publish", q.Get("status"))

		w.Header().Set("X-WP-Total", "30")
		w.Header().Set("X-WP-TotalPages", "3")
		_, _ = io.WriteString(w, `[{"id":5,"name":"Tee","slug":"tee","price":"19.99","regular_price":"24.99","sale_price":"","related_ids":[6,7]}]`)
	})

	page, err := c.ListProducts(context.Background(), ProductQuery{
		Page: 2, PerPage: 12, OrderBy: "popularity", Category: 7, Exclude: []int64{1, 2},
	})
	require.NoError(t, err)

	assert.Equal(t, 30, page.Total)
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Products, 1)
	p := page.Products[0]
	assert.Equal(t, int64(5), p.ID)
	assert.True(t, decimal.RequireFromString("19.99").Equal(p.Price.Decimal))
	assert.True(t, p.SalePrice.IsZero())
	assert.Equal(t, []int64{6, 7}, p.RelatedIDs)
}

func TestGetProductBySlug_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "missing", r.URL.Query().Get("slug"))
		_, _ = io.WriteString(w, `[]`)
	})

	_, err := c.GetProductBySlug(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetOrder_TranslatesNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"code":"woocommerce_rest_shop_order_invalid_id","message":"Invalid ID."}`)
	})

	_, err := c.GetOrder(context.Background(), 99)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Invalid ID.", apiErr.Message)
}

func TestCreateOrder_SendsPayload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/wp-json/wc/v3/orders", r.URL.Path)

		var in models.OrderInput
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, models.OrderStatusPending, in.Status)
		assert.False(t, in.SetPaid)
		require.Len(t, in.LineItems, 1)
		assert.Equal(t, int64(42), in.LineItems[0].ProductID)

		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":1001,"number":"1001","status":"pending","currency":"USD","total":"200.00"}`)
	})

	order, err := c.CreateOrder(context.Background(), &models.OrderInput{
		Status:    models.OrderStatusPending,
		LineItems: []models.LineItemInput{{ProductID: 42, Quantity: 2}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1001), order.ID)
	assert.True(t, decimal.NewFromInt(200).Equal(order.Total))
}

func TestUpdateOrder_ServerErrorPassthrough(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"code":"internal","message":"database unavailable"}`)
	})

	_, err := c.UpdateOrder(context.Background(), 1, &models.OrderUpdate{Status: models.OrderStatusCompleted})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "database unavailable")
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	for i := 0; i < 5; i++ {
		_, err := c.GetOrder(context.Background(), 1)
		require.Error(t, err)
	}

	_, err := c.GetOrder(context.Background(), 1)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(5), calls.Load())
}

func TestBreakerIgnoresNotFound(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})

	for i := 0; i < 8; i++ {
		_, err := c.GetOrder(context.Background(), 1)
		assert.ErrorIs(t, err, ErrNotFound)
	}
	assert.Equal(t, int32(8), calls.Load())
}
