package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"storefront/internal/models"
	"storefront/internal/ratelimit"
	"storefront/internal/service"
	"storefront/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// HistoryReader reads the checkout ledger
type HistoryReader interface {
	GetOrderHistory(ctx context.Context, orderID int64) ([]models.LedgerEntry, error)
}

// ReadinessCheck reports whether a dependency is usable
type ReadinessCheck func(ctx context.Context) error

// Handler contains HTTP handlers
type Handler struct {
	orderService   *service.OrderService
	paymentService *service.PaymentService
	catalogService *service.CatalogService
	history        HistoryReader
	paymentLimiter ratelimit.Limiter
	readiness      map[string]ReadinessCheck
	trustedProxies []string
	logger         *zap.Logger
}

// Options carries the optional collaborators of a Handler
type Options struct {
	// History serves the order history route; nil disables it.
	History HistoryReader
	// PaymentLimiter bounds payment intent creation per client address.
	PaymentLimiter ratelimit.Limiter
	Readiness      map[string]ReadinessCheck
	// TrustedProxies may set the client address through X-Forwarded-For.
	// Empty trusts no proxy, so the peer address is the client address.
	TrustedProxies []string
}

// NewHandler creates a new HTTP handler
func NewHandler(
	orderService *service.OrderService,
	paymentService *service.PaymentService,
	catalogService *service.CatalogService,
	opts Options,
) *Handler {
	return &Handler{
		orderService:   orderService,
		paymentService: paymentService,
		catalogService: catalogService,
		history:        opts.History,
		paymentLimiter: opts.PaymentLimiter,
		readiness:      opts.Readiness,
		trustedProxies: opts.TrustedProxies,
		logger:         util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) error {
	if err := router.SetTrustedProxies(h.trustedProxies); err != nil {
		return fmt.Errorf("invalid trusted proxies: %w", err)
	}

	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/orders", h.createOrder)
		v1.GET("/orders/:id", h.getOrder)
		v1.PUT("/orders/:id", h.updateOrder)
		v1.GET("/orders/:id/verify", h.verifyOrder)
		v1.GET("/orders/:id/history", h.orderHistory)

		v1.POST("/payments", h.rateLimit("create_payment", h.paymentLimiter), h.createPayment)
		v1.POST("/payments/verify", h.verifyPayment)
		v1.GET("/payments/:id", h.getPayment)

		v1.GET("/products", h.listProducts)
		v1.GET("/products/slug/:slug", h.productBySlug)
		v1.GET("/products/:id/related", h.relatedProducts)
	}
	return nil
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck runs every registered dependency check
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, check := range h.readiness {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"failed": failed,
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func parseID(c *gin.Context, what string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid " + what + " ID",
		})
		return 0, false
	}
	return id, true
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": models.FirstViolation(err).Error(),
		})
		return false
	}
	return true
}

// createOrder handles order creation
func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.orderService.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, "Failed to create order", err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	orderID, ok := parseID(c, "order")
	if !ok {
		return
	}

	order, err := h.orderService.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		h.respondError(c, "Failed to get order", err)
		return
	}

	c.JSON(http.StatusOK, order)
}

func (h *Handler) updateOrder(c *gin.Context) {
	orderID, ok := parseID(c, "order")
	if !ok {
		return
	}

	var req service.UpdateOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.orderService.UpdateOrder(c.Request.Context(), orderID, &req)
	if err != nil {
		h.respondError(c, "Failed to update order", err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) verifyOrder(c *gin.Context) {
	orderID, ok := parseID(c, "order")
	if !ok {
		return
	}

	resp, err := h.orderService.VerifyOrder(c.Request.Context(), orderID, c.Query("payment_intent_id"))
	if err != nil {
		h.respondError(c, "Failed to verify order", err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) orderHistory(c *gin.Context) {
	orderID, ok := parseID(c, "order")
	if !ok {
		return
	}

	if h.history == nil {
		c.JSON(http.StatusNotImplemented, gin.H{
			"error": "Order history is not enabled",
		})
		return
	}

	entries, err := h.history.GetOrderHistory(c.Request.Context(), orderID)
	if err != nil {
		h.respondError(c, "Failed to load order history", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order_id": orderID,
		"events":   entries,
	})
}

func (h *Handler) createPayment(c *gin.Context) {
	var req service.CreatePaymentRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.paymentService.CreatePaymentIntent(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, "Failed to create payment intent", err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) verifyPayment(c *gin.Context) {
	var req service.VerifyPaymentRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.paymentService.VerifyPayment(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, "Failed to verify payment", err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) getPayment(c *gin.Context) {
	resp, err := h.paymentService.GetPaymentIntent(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "Failed to get payment intent", err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) listProducts(c *gin.Context) {
	var req service.ListProductsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid query",
			"details": err.Error(),
		})
		return
	}

	page, err := h.catalogService.ListProducts(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, "Failed to list products", err)
		return
	}

	c.JSON(http.StatusOK, page)
}

func (h *Handler) productBySlug(c *gin.Context) {
	product, err := h.catalogService.GetProductBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		h.respondError(c, "Failed to get product", err)
		return
	}

	c.JSON(http.StatusOK, product)
}

func (h *Handler) relatedProducts(c *gin.Context) {
	productID, ok := parseID(c, "product")
	if !ok {
		return
	}

	products, err := h.catalogService.RelatedProducts(c.Request.Context(), productID)
	if err != nil {
		h.respondError(c, "Failed to get related products", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"products": products,
	})
}
