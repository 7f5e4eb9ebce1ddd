package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/commerce"
	"storefront/internal/models"
	"storefront/internal/redisclient"
	"storefront/internal/util"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	relatedProductsLimit = 3
	defaultPerPage       = 12
	maxPerPage           = 100
)

// CatalogService reads products from the commerce platform
type CatalogService struct {
	platform CatalogPlatform
	cache    Cache
	cacheTTL time.Duration
	group    singleflight.Group
	logger   *zap.Logger
}

// NewCatalogService creates a catalog service. A nil cache disables caching.
func NewCatalogService(platform CatalogPlatform, cache Cache, cacheTTL time.Duration) *CatalogService {
	return &CatalogService{
		platform: platform,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   util.GetLogger(),
	}
}

// ListProductsRequest holds the pass-through listing parameters
type ListProductsRequest struct {
	Page     int    `form:"page"`
	PerPage  int    `form:"per_page"`
	OrderBy  string `form:"orderby"`
	Order    string `form:"order"`
	Category int64  `form:"category"`
	Tag      int64  `form:"tag"`
	Brand    int64  `form:"brand"`
	Search   string `form:"search"`
}

// ListProducts returns one page of published products
func (s *CatalogService) ListProducts(ctx context.Context, req *ListProductsRequest) (*models.ProductPage, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.ListProducts")
	defer span.End()

	if req.Page < 1 {
		req.Page = 1
	}
	if req.PerPage < 1 {
		req.PerPage = defaultPerPage
	}
	if req.PerPage > maxPerPage {
		return nil, fmt.Errorf("%w: per_page must be at most %d", ErrInvalidQuery, maxPerPage)
	}
	if req.Order != "" && req.Order != "asc" && req.Order != "desc" {
		return nil, fmt.Errorf("%w: order must be asc or desc", ErrInvalidQuery)
	}

	page, err := s.platform.ListProducts(ctx, commerce.ProductQuery{
		Page:     req.Page,
		PerPage:  req.PerPage,
		OrderBy:  req.OrderBy,
		Order:    req.Order,
		Category: req.Category,
		Tag:      req.Tag,
		Brand:    req.Brand,
		Search:   req.Search,
	})
	if err != nil {
		s.logger.Error("Failed to list products", zap.Error(err))
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return page, nil
}

func slugCacheKey(slug string) string {
	return "catalog:product:slug:" + slug
}

// GetProductBySlug returns the product with the slug, through the cache.
// Concurrent misses for one slug share a single upstream call, which is not
// cancelled when any one caller gives up.
func (s *CatalogService) GetProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.GetProductBySlug")
	defer span.End()

	if slug == "" {
		return nil, fmt.Errorf("%w: slug is required", ErrInvalidQuery)
	}

	if s.cache != nil {
		var cached models.Product
		err := s.cache.GetJSON(ctx, slugCacheKey(slug), &cached)
		switch {
		case err == nil:
			util.CatalogCacheRequestsTotal.WithLabelValues("hit").Inc()
			return &cached, nil
		case errors.Is(err, redisclient.ErrCacheMiss):
			util.CatalogCacheRequestsTotal.WithLabelValues("miss").Inc()
		default:
			util.CatalogCacheRequestsTotal.WithLabelValues("error").Inc()
			s.logger.Warn("Catalog cache read failed", zap.String("slug", slug), zap.Error(err))
		}
	}

	fetchCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(slug, func() (interface{}, error) {
		product, err := s.platform.GetProductBySlug(fetchCtx, slug)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if err := s.cache.SetJSON(fetchCtx, slugCacheKey(slug), product, s.cacheTTL); err != nil {
				s.logger.Warn("Catalog cache write failed", zap.String("slug", slug), zap.Error(err))
			}
		}
		return product, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("failed to get product %q: %w", slug, ctx.Err())
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, fmt.Errorf("failed to get product %q: %w", slug, res.Err)
	}
	if res.Shared {
		s.logger.Debug("Shared slug lookup", zap.String("slug", slug))
	}

	product := *res.Val.(*models.Product)
	return &product, nil
}

// relatedCollector accumulates unique products up to the limit
type relatedCollector struct {
	seen     map[int64]bool
	products []models.Product
}

func (c *relatedCollector) full() bool {
	return len(c.products) >= relatedProductsLimit
}

func (c *relatedCollector) excluded() []int64 {
	ids := make([]int64, 0, len(c.seen))
	for id := range c.seen {
		ids = append(ids, id)
	}
	return ids
}

// add keeps unseen products until full and returns how many were taken
func (c *relatedCollector) add(products []models.Product) int {
	added := 0
	for _, p := range products {
		if c.full() {
			break
		}
		if c.seen[p.ID] {
			continue
		}
		c.seen[p.ID] = true
		c.products = append(c.products, p)
		added++
	}
	return added
}

// RelatedProducts returns up to three products related to productID, trying
// declared related ids, then the same category, the same brand and finally
// the most popular products. A failing source is skipped.
func (s *CatalogService) RelatedProducts(ctx context.Context, productID int64) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.RelatedProducts")
	defer span.End()

	source, err := s.platform.GetProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to get product %d: %w", productID, err)
	}

	c := &relatedCollector{seen: map[int64]bool{source.ID: true, productID: true}}

	steps := []struct {
		name  string
		query func() (commerce.ProductQuery, bool)
	}{
		{"related_ids", func() (commerce.ProductQuery, bool) {
			ids := make([]int64, 0, len(source.RelatedIDs))
			for _, id := range source.RelatedIDs {
				if !c.seen[id] {
					ids = append(ids, id)
				}
			}
			return commerce.ProductQuery{Include: ids, PerPage: len(ids)}, len(ids) > 0
		}},
		{"category", func() (commerce.ProductQuery, bool) {
			if len(source.Categories) == 0 {
				return commerce.ProductQuery{}, false
			}
			return commerce.ProductQuery{Category: source.Categories[0].ID, Exclude: c.excluded()}, true
		}},
		{"brand", func() (commerce.ProductQuery, bool) {
			if len(source.Brands) == 0 {
				return commerce.ProductQuery{}, false
			}
			return commerce.ProductQuery{Brand: source.Brands[0].ID, Exclude: c.excluded()}, true
		}},
		{"popular", func() (commerce.ProductQuery, bool) {
			return commerce.ProductQuery{OrderBy: "popularity", Order: "desc", Exclude: c.excluded()}, true
		}},
	}

	for _, step := range steps {
		if c.full() {
			break
		}
		q, ok := step.query()
		if !ok {
			continue
		}
		if q.PerPage == 0 {
			q.PerPage = relatedProductsLimit + len(c.seen)
		}

		page, err := s.platform.ListProducts(ctx, q)
		if err != nil {
			s.logger.Warn("Related products source failed",
				zap.String("source", step.name),
				zap.Int64("product_id", productID),
				zap.Error(err))
			continue
		}

		if n := c.add(page.Products); n > 0 {
			util.RelatedProductsSourceTotal.WithLabelValues(step.name).Add(float64(n))
		}
	}

	if c.products == nil {
		c.products = []models.Product{}
	}
	return c.products, nil
}
