package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"storefront/internal/commerce"
	"storefront/internal/models"
	"storefront/internal/payment"
	"storefront/internal/redisclient"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/shopspring/decimal"
)

type fakeOrderPlatform struct {
	mu       sync.Mutex
	orders   map[int64]*models.Order
	nextID   int64
	created  []*models.OrderInput
	updates  []*models.OrderUpdate
	total    string
	err      error
	getCalls int
}

func newFakeOrderPlatform() *fakeOrderPlatform {
	return &fakeOrderPlatform{orders: map[int64]*models.Order{}, nextID: 100, total: "200.00"}
}

func (f *fakeOrderPlatform) CreateOrder(_ context.Context, in *models.OrderInput) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, in)
	f.nextID++
	o := &models.Order{
		ID:       f.nextID,
		Number:   fmt.Sprint(f.nextID),
		Status:   in.Status,
		Currency: "USD",
		Total:    decimal.RequireFromString(f.total),
		Billing:  in.Billing,
	}
	f.orders[o.ID] = o
	return o, nil
}

func (f *fakeOrderPlatform) addOrder(total, currency string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.orders[f.nextID] = &models.Order{
		ID:       f.nextID,
		Number:   fmt.Sprint(f.nextID),
		Status:   models.OrderStatusPending,
		Currency: currency,
		Total:    decimal.RequireFromString(total),
	}
	return f.nextID
}

func (f *fakeOrderPlatform) GetOrder(_ context.Context, id int64) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	o, ok := f.orders[id]
	if !ok {
		return nil, &commerce.APIError{StatusCode: 404, Code: "woocommerce_rest_shop_order_invalid_id", Message: "Invalid ID."}
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrderPlatform) UpdateOrder(_ context.Context, id int64, update *models.OrderUpdate) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.updates = append(f.updates, update)
	o, ok := f.orders[id]
	if !ok {
		return nil, &commerce.APIError{StatusCode: 404, Message: "Invalid ID."}
	}
	if update.Status != "" {
		o.Status = update.Status
	}
	o.TransactionID = update.TransactionID
	o.MetaData = append(o.MetaData, update.MetaData...)
	cp := *o
	return &cp, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*models.CheckoutEvent
	err    error
}

func (p *recordingPublisher) PublishCheckoutEvent(_ context.Context, e *models.CheckoutEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType
	}
	return out
}

type fakeProvider struct {
	mu      sync.Mutex
	intents map[string]*models.PaymentIntent
	params  []payment.IntentParams
	err     error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{intents: map[string]*models.PaymentIntent{}}
}

func (p *fakeProvider) CreateIntent(_ context.Context, in payment.IntentParams) (*models.PaymentIntent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	p.params = append(p.params, in)
	id := fmt.Sprintf("pi_%d", len(p.params))
	intent := &models.PaymentIntent{
		ID:           id,
		ClientSecret: id + "_secret",
		Status:       models.IntentStatusRequiresPaymentMethod,
		Amount:       in.Amount,
		Currency:     in.Currency,
		Metadata: map[string]string{
			models.MetaOrderID:       fmt.Sprint(in.OrderID),
			models.MetaCustomerEmail: in.CustomerEmail,
		},
	}
	p.intents[id] = intent
	return intent, nil
}

func (p *fakeProvider) GetIntent(_ context.Context, id string) (*models.PaymentIntent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	intent, ok := p.intents[id]
	if !ok {
		return nil, payment.ErrIntentNotFound
	}
	cp := *intent
	return &cp, nil
}

func (p *fakeProvider) setStatus(id, status string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.intents[id].Status = status
}

type fakeCatalog struct {
	products map[int64]models.Product
	failing  map[string]bool
	queries  []commerce.ProductQuery
	slugHits atomic.Int32
	slugWait chan struct{}
}

func (f *fakeCatalog) ListProducts(_ context.Context, q commerce.ProductQuery) (*models.ProductPage, error) {
	f.queries = append(f.queries, q)
	switch {
	case len(q.Include) > 0 && f.failing["related_ids"],
		q.Category > 0 && f.failing["category"],
		q.Brand > 0 && f.failing["brand"],
		q.OrderBy == "popularity" && f.failing["popular"]:
		return nil, &commerce.APIError{StatusCode: 500, Message: "boom"}
	}

	excluded := map[int64]bool{}
	for _, id := range q.Exclude {
		excluded[id] = true
	}
	included := map[int64]bool{}
	for _, id := range q.Include {
		included[id] = true
	}

	var out []models.Product
	for id := int64(1); id <= int64(len(f.products))+10; id++ {
		p, ok := f.products[id]
		if !ok || excluded[id] {
			continue
		}
		if len(q.Include) > 0 && !included[id] {
			continue
		}
		if q.Category > 0 && !hasTerm(p.Categories, q.Category) {
			continue
		}
		if q.Brand > 0 && !hasTerm(p.Brands, q.Brand) {
			continue
		}
		out = append(out, p)
	}
	if q.PerPage > 0 && len(out) > q.PerPage {
		out = out[:q.PerPage]
	}
	return &models.ProductPage{Products: out, Page: 1, PerPage: q.PerPage, Total: len(out), TotalPages: 1}, nil
}

func (f *fakeCatalog) GetProduct(_ context.Context, id int64) (*models.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, &commerce.APIError{StatusCode: 404, Message: "Invalid ID."}
	}
	return &p, nil
}

func (f *fakeCatalog) GetProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	f.slugHits.Add(1)
	if f.slugWait != nil {
		<-f.slugWait
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, p := range f.products {
		if p.Slug == slug {
			cp := p
			return &cp, nil
		}
	}
	return nil, commerce.ErrNotFound
}

func hasTerm(terms []models.Term, id int64) bool {
	for _, t := range terms {
		if t.ID == id {
			return true
		}
	}
	return false
}

type mapCache struct {
	mu   sync.Mutex
	data map[string]any
}

func (c *mapCache) GetJSON(_ context.Context, key string, dst any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return redisclient.ErrCacheMiss
	}
	*(dst.(*models.Product)) = *(v.(*models.Product))
	return nil
}

func (c *mapCache) SetJSON(_ context.Context, key string, v any, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = map[string]any{}
	}
	c.data[key] = v
	return nil
}

func fakeCustomer() models.CustomerInfo {
	return models.CustomerInfo{
		FirstName: gofakeit.FirstName(),
		LastName:  gofakeit.LastName(),
		Email:     gofakeit.Email(),
		Phone:     gofakeit.Phone(),
		Address1:  gofakeit.Street(),
		City:      gofakeit.City(),
		State:     gofakeit.StateAbr(),
		Postcode:  gofakeit.Zip(),
		Country:   "US",
	}
}
