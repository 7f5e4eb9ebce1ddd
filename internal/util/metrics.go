package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_orders_created_total",
		Help: "Total number of pending orders created in the commerce platform",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_orders_failed_total",
		Help: "Total number of failed order gateway operations",
	}, []string{"reason"})

	OrdersPaidTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_orders_paid_total",
		Help: "Total number of orders marked paid",
	}, []string{"path"})

	PaymentIntentsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_payment_intents_created_total",
		Help: "Total number of payment intents created",
	})

	PaymentIntentsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_payment_intents_failed_total",
		Help: "Total number of failed payment intent creations",
	}, []string{"reason"})

	PaymentVerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_payment_verifications_total",
		Help: "Payment verifications by simplified status",
	}, []string{"status"})

	RateLimitedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_rate_limited_total",
		Help: "Requests rejected by the rate limiter",
	}, []string{"route"})

	UpstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_upstream_request_duration_seconds",
		Help:    "Latency of calls to the commerce platform and payment processor",
		Buckets: prometheus.DefBuckets,
	}, []string{"upstream", "operation", "outcome"})

	RelatedProductsSourceTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_related_products_source_total",
		Help: "Related products collected per fallback source",
	}, []string{"source"})

	CatalogCacheRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_catalog_cache_requests_total",
		Help: "Product cache lookups by result",
	}, []string{"result"})

	LedgerEventsRecordedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_ledger_events_recorded_total",
		Help: "Checkout events written to the ledger",
	}, []string{"event_type"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
