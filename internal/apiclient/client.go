// Package apiclient calls the storefront's own HTTP API. The checkout
// orchestrator uses it the way the browser does.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"storefront/internal/service"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// Error is a non-2xx response from the API
type Error struct {
	StatusCode int
	Message    string
	Details    string
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("api error %d: %s: %s", e.StatusCode, e.Message, e.Details)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// New creates a client for the API at baseURL. A nil httpClient uses a
// traced default client.
func New(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: util.NewHTTPClient("storefront-api", httpClient),
		logger:     util.GetLogger(),
	}
}

func (c *Client) CreateOrder(ctx context.Context, req *service.CreateOrderRequest) (*service.OrderResponse, error) {
	var out service.OrderResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/orders", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateOrder(ctx context.Context, orderID int64, req *service.UpdateOrderRequest) (*service.OrderResponse, error) {
	var out service.OrderResponse
	path := "/api/v1/orders/" + strconv.FormatInt(orderID, 10)
	if err := c.do(ctx, http.MethodPut, path, nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) VerifyOrder(ctx context.Context, orderID int64, intentID string) (*service.VerifyOrderResponse, error) {
	var out service.VerifyOrderResponse
	q := url.Values{}
	if intentID != "" {
		q.Set("payment_intent_id", intentID)
	}
	path := "/api/v1/orders/" + strconv.FormatInt(orderID, 10) + "/verify"
	if err := c.do(ctx, http.MethodGet, path, q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreatePaymentIntent(ctx context.Context, req *service.CreatePaymentRequest) (*service.PaymentIntentResponse, error) {
	var out service.PaymentIntentResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/payments", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) VerifyPayment(ctx context.Context, req *service.VerifyPaymentRequest) (*service.VerifyPaymentResponse, error) {
	var out service.VerifyPaymentResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/payments/verify", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{StatusCode: resp.StatusCode}
		var payload struct {
			Error   string `json:"error"`
			Details string `json:"details"`
		}
		if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
			apiErr.Message = payload.Error
			apiErr.Details = payload.Details
		} else {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		c.logger.Debug("API call failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode))
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
