// Package commerce is a REST client for the WooCommerce-style commerce
// platform that owns products and orders.
package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"storefront/internal/util"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

const apiPath = "/wp-json/wc/v3"

// Config configures a Client
type Config struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	HTTPClient     *http.Client
}

// Client talks to the commerce platform REST API
type Client struct {
	baseURL *url.URL
	key     string
	secret  string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*response]
	logger  *zap.Logger
}

type response struct {
	header http.Header
	body   []byte
}

// NewClient creates a new commerce platform client
func NewClient(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid commerce base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid commerce base URL: %q", cfg.BaseURL)
	}

	logger := util.GetLogger()
	breaker := gobreaker.NewCircuitBreaker[*response](gobreaker.Settings{
		Name:        "commerce",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return !isServerSide(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &Client{
		baseURL: base,
		key:     cfg.ConsumerKey,
		secret:  cfg.ConsumerSecret,
		http:    util.NewHTTPClient("commerce", cfg.HTTPClient),
		breaker: breaker,
		logger:  logger,
	}, nil
}

// do performs one request. Nothing is retried; the breaker only fails fast
// while the platform keeps answering 5xx or timing out.
func (c *Client) do(ctx context.Context, operation, method, path string, query url.Values, in, out any) (http.Header, error) {
	start := time.Now()
	resp, err := c.breaker.Execute(func() (*response, error) {
		return c.roundTrip(ctx, method, path, query, in)
	})

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	util.UpstreamRequestDuration.WithLabelValues("commerce", operation, outcome).Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%s: %w", operation, ErrUnavailable)
		}
		return nil, fmt.Errorf("%s: %w", operation, err)
	}

	if out != nil {
		if err := json.Unmarshal(resp.body, out); err != nil {
			return nil, fmt.Errorf("%s: failed to decode response: %w", operation, err)
		}
	}
	return resp.header, nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, in any) (*response, error) {
	u := *c.baseURL
	u.Path = c.baseURL.Path + apiPath + path

	q := url.Values{}
	for k, v := range query {
		q[k] = v
	}
	q.Set("consumer_key", c.key)
	q.Set("consumer_secret", c.secret)
	u.RawQuery = q.Encode()

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("commerce request failed: %w", err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read commerce response: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: res.StatusCode}
		if json.Unmarshal(data, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(res.StatusCode)
		}
		c.logger.Warn("Commerce platform returned error",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", res.StatusCode),
			zap.String("message", apiErr.Message))
		return nil, apiErr
	}

	return &response{header: res.Header, body: data}, nil
}
