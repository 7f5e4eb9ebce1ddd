package commerce

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"storefront/internal/models"
)

// ProductQuery filters a product listing. Zero values are omitted.
type ProductQuery struct {
	Page     int
	PerPage  int
	OrderBy  string
	Order    string
	Search   string
	Slug     string
	Category int64
	Tag      int64
	Brand    int64
	Include  []int64
	Exclude  []int64
}

func (q ProductQuery) values() url.Values {
	v := url.Values{}
	v.Set("status", "publish")
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.PerPage > 0 {
		v.Set("per_page", strconv.Itoa(q.PerPage))
	}
	if q.OrderBy != "" {
		v.Set("orderby", q.OrderBy)
	}
	if q.Order != "" {
		v.Set("order", q.Order)
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Slug != "" {
		v.Set("slug", q.Slug)
	}
	if q.Category > 0 {
		v.Set("category", strconv.FormatInt(q.Category, 10))
	}
	if q.Tag > 0 {
		v.Set("tag", strconv.FormatInt(q.Tag, 10))
	}
	if q.Brand > 0 {
		v.Set("brand", strconv.FormatInt(q.Brand, 10))
	}
	if len(q.Include) > 0 {
		v.Set("include", joinIDs(q.Include))
	}
	if len(q.Exclude) > 0 {
		v.Set("exclude", joinIDs(q.Exclude))
	}
	return v
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

// ListProducts returns one page of products with the platform's totals
func (c *Client) ListProducts(ctx context.Context, q ProductQuery) (*models.ProductPage, error) {
	var products []models.Product
	header, err := c.do(ctx, "list_products", http.MethodGet, "/products", q.values(), nil, &products)
	if err != nil {
		return nil, err
	}
	if products == nil {
		products = []models.Product{}
	}

	page := &models.ProductPage{
		Products: products,
		Page:     max(q.Page, 1),
		PerPage:  q.PerPage,
	}
	page.Total, _ = strconv.Atoi(header.Get("X-WP-Total"))
	page.TotalPages, _ = strconv.Atoi(header.Get("X-WP-TotalPages"))
	return page, nil
}

// GetProduct reads a product by id
func (c *Client) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	if _, err := c.do(ctx, "get_product", http.MethodGet, fmt.Sprintf("/products/%d", id), nil, nil, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProductBySlug reads a published product by slug
func (c *Client) GetProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	page, err := c.ListProducts(ctx, ProductQuery{Slug: slug, PerPage: 1})
	if err != nil {
		return nil, err
	}
	if len(page.Products) == 0 {
		return nil, fmt.Errorf("product %q: %w", slug, ErrNotFound)
	}
	return &page.Products[0], nil
}
