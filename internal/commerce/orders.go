package commerce

import (
	"context"
	"fmt"
	"net/http"

	"storefront/internal/models"
)

// CreateOrder creates an order and returns the platform's copy
func (c *Client) CreateOrder(ctx context.Context, in *models.OrderInput) (*models.Order, error) {
	var order models.Order
	if _, err := c.do(ctx, "create_order", http.MethodPost, "/orders", nil, in, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrder reads an order by id
func (c *Client) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	if _, err := c.do(ctx, "get_order", http.MethodGet, fmt.Sprintf("/orders/%d", id), nil, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateOrder applies a status/payment update to an order
func (c *Client) UpdateOrder(ctx context.Context, id int64, update *models.OrderUpdate) (*models.Order, error) {
	var order models.Order
	if _, err := c.do(ctx, "update_order", http.MethodPut, fmt.Sprintf("/orders/%d", id), nil, update, &order); err != nil {
		return nil, err
	}
	return &order, nil
}
