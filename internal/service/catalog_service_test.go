package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"storefront/internal/commerce"
	"storefront/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func product(id int64, category, brand int64, related ...int64) models.Product {
	p := models.Product{ID: id, Name: "Product", Slug: "product-" + string(rune('a'+id)), RelatedIDs: related}
	if category > 0 {
		p.Categories = []models.Term{{ID: category}}
	}
	if brand > 0 {
		p.Brands = []models.Term{{ID: brand}}
	}
	return p
}

func ids(products []models.Product) []int64 {
	out := make([]int64, len(products))
	for i, p := range products {
		out[i] = p.ID
	}
	return out
}

func catalogOf(products ...models.Product) *fakeCatalog {
	f := &fakeCatalog{products: map[int64]models.Product{}, failing: map[string]bool{}}
	for _, p := range products {
		f.products[p.ID] = p
	}
	return f
}

func TestRelatedProducts_DeclaredIDsFirst(t *testing.T) {
	platform := catalogOf(
		product(1, 10, 20, 1, 2, 3, 4, 5),
		product(2, 0, 0), product(3, 0, 0), product(4, 0, 0), product(5, 0, 0),
	)
	svc := NewCatalogService(platform, nil, 0)

	related, err := svc.RelatedProducts(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3, 4}, ids(related))
	assert.Len(t, platform.queries, 1, "stops once three are collected")
	assert.NotContains(t, platform.queries[0].Include, int64(1))
}

func TestRelatedProducts_FallbackChain(t *testing.T) {
	platform := catalogOf(
		product(1, 10, 20, 2),
		product(2, 10, 0),
		product(3, 10, 0),
		product(4, 0, 20),
		product(5, 0, 0),
	)
	svc := NewCatalogService(platform, nil, 0)

	related, err := svc.RelatedProducts(context.Background(), 1)
	require.NoError(t, err)
	// 2 from related ids, 3 from the category (2 already taken), 4 from the brand
	assert.Equal(t, []int64{2, 3, 4}, ids(related))
}

func TestRelatedProducts_PopularFallback(t *testing.T) {
	platform := catalogOf(product(1, 0, 0), product(2, 0, 0), product(3, 0, 0))
	svc := NewCatalogService(platform, nil, 0)

	related, err := svc.RelatedProducts(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, ids(related))
}

func TestRelatedProducts_SkipsFailingSource(t *testing.T) {
	platform := catalogOf(
		product(1, 10, 20, 2, 3),
		product(2, 10, 20), product(3, 10, 20), product(4, 10, 20), product(5, 0, 0),
	)
	platform.failing["related_ids"] = true
	platform.failing["category"] = true
	svc := NewCatalogService(platform, nil, 0)

	related, err := svc.RelatedProducts(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3, 4}, ids(related))
}

func TestRelatedProducts_NeverSourceNeverMoreThanThree(t *testing.T) {
	var all []models.Product
	for id := int64(1); id <= 8; id++ {
		all = append(all, product(id, 10, 20, 1, 1, 2, 2))
	}
	platform := catalogOf(all...)
	svc := NewCatalogService(platform, nil, 0)

	for id := int64(1); id <= 8; id++ {
		related, err := svc.RelatedProducts(context.Background(), id)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(related), 3)
		assert.NotContains(t, ids(related), id)

		seen := map[int64]bool{}
		for _, p := range related {
			assert.False(t, seen[p.ID], "duplicate %d", p.ID)
			seen[p.ID] = true
		}
	}
}

func TestRelatedProducts_AllSourcesFail(t *testing.T) {
	platform := catalogOf(product(1, 10, 20, 2), product(2, 10, 20))
	for _, s := range []string{"related_ids", "category", "brand", "popular"} {
		platform.failing[s] = true
	}
	svc := NewCatalogService(platform, nil, 0)

	related, err := svc.RelatedProducts(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, related)
	assert.NotNil(t, related)
}

func TestRelatedProducts_UnknownSource(t *testing.T) {
	svc := NewCatalogService(catalogOf(), nil, 0)
	_, err := svc.RelatedProducts(context.Background(), 404)
	assert.ErrorIs(t, err, commerce.ErrNotFound)
}

func TestListProducts(t *testing.T) {
	platform := catalogOf(product(1, 10, 0), product(2, 11, 0))
	svc := NewCatalogService(platform, nil, 0)

	page, err := svc.ListProducts(context.Background(), &ListProductsRequest{Category: 10, Order: "asc", OrderBy: "price"})
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(page.Products))

	q := platform.queries[0]
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, 12, q.PerPage)
	assert.Equal(t, "price", q.OrderBy)

	_, err = svc.ListProducts(context.Background(), &ListProductsRequest{PerPage: 101})
	assert.ErrorIs(t, err, ErrInvalidQuery)
	_, err = svc.ListProducts(context.Background(), &ListProductsRequest{Order: "sideways"})
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestGetProductBySlug_Cached(t *testing.T) {
	platform := catalogOf(product(1, 0, 0))
	cache := &mapCache{}
	svc := NewCatalogService(platform, cache, time.Minute)

	slug := platform.products[1].Slug
	for i := 0; i < 3; i++ {
		p, err := svc.GetProductBySlug(context.Background(), slug)
		require.NoError(t, err)
		assert.Equal(t, int64(1), p.ID)
	}
	assert.Equal(t, int32(1), platform.slugHits.Load())

	_, err := svc.GetProductBySlug(context.Background(), "missing")
	assert.ErrorIs(t, err, commerce.ErrNotFound)
}

func TestGetProductBySlug_CollapsesConcurrentMisses(t *testing.T) {
	platform := catalogOf(product(1, 0, 0))
	platform.slugWait = make(chan struct{})
	svc := NewCatalogService(platform, nil, 0)
	slug := platform.products[1].Slug

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := svc.GetProductBySlug(context.Background(), slug)
			assert.NoError(t, err)
			assert.Equal(t, int64(1), p.ID)
		}()
	}

	// let every caller join the in-flight lookup before releasing it
	time.Sleep(50 * time.Millisecond)
	close(platform.slugWait)
	wg.Wait()

	assert.Equal(t, int32(1), platform.slugHits.Load())
}

func TestGetProductBySlug_CancelledCallerDoesNotFailOthers(t *testing.T) {
	platform := catalogOf(product(1, 0, 0))
	platform.slugWait = make(chan struct{})
	svc := NewCatalogService(platform, nil, 0)
	slug := platform.products[1].Slug

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.GetProductBySlug(ctx, slug)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return platform.slugHits.Load() == 1 }, time.Second, 5*time.Millisecond)

	type result struct {
		p   *models.Product
		err error
	}
	second := make(chan result, 1)
	go func() {
		p, err := svc.GetProductBySlug(context.Background(), slug)
		second <- result{p, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(platform.slugWait)
	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, int64(1), got.p.ID)
	assert.Equal(t, int32(1), platform.slugHits.Load())
}
