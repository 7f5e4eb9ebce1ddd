package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/config"
	"storefront/internal/api"
	"storefront/internal/broker"
	"storefront/internal/commerce"
	"storefront/internal/payment"
	"storefront/internal/ratelimit"
	"storefront/internal/redisclient"
	"storefront/internal/service"
	"storefront/internal/store"
	"storefront/internal/util"
	"storefront/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting storefront service")

	if cfg.Observ.TracingEnabled {
		tp, err := util.InitTracer(util.TracerOptions{
			ServiceName:    "storefront",
			Environment:    cfg.Server.Env,
			JaegerEndpoint: cfg.Observ.JaegerEndpoint,
			SampleRatio:    cfg.Observ.SampleRatio,
		})
		if err != nil {
			logger.Fatal("Failed to initialize tracer", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				logger.Error("Error shutting down tracer", zap.Error(err))
			}
		}()
	}

	readiness := map[string]api.ReadinessCheck{}

	var cache service.Cache
	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Warn("Redis unavailable, running without shared rate limit and catalog cache", zap.Error(err))
	} else {
		defer redisClient.Close()
		cache = redisClient
		readiness["redis"] = redisClient.Ping
		logger.Info("Redis connected")
	}

	window := time.Minute
	var paymentLimiter ratelimit.Limiter
	if cfg.RateLimit.Backend == "redis" && redisClient != nil {
		paymentLimiter = ratelimit.NewRedisLimiter(redisClient, "payment-intents", cfg.RateLimit.PaymentIntentsPerMin, window)
	} else {
		paymentLimiter = ratelimit.NewMemoryLimiter(cfg.RateLimit.PaymentIntentsPerMin, window)
	}

	var eventPublisher service.EventPublisher = broker.NopPublisher{}
	if cfg.Kafka.Enabled {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicCheckout)
		defer producer.Close()
		eventPublisher = broker.NewEventPublisher(producer)
		logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicCheckout))
	}

	httpClient := &http.Client{}
	if cfg.Commerce.TimeoutSeconds > 0 {
		httpClient.Timeout = time.Duration(cfg.Commerce.TimeoutSeconds) * time.Second
	}

	commerceClient, err := commerce.NewClient(commerce.Config{
		BaseURL:        cfg.Commerce.BaseURL,
		ConsumerKey:    cfg.Commerce.ConsumerKey,
		ConsumerSecret: cfg.Commerce.ConsumerSecret,
		HTTPClient:     httpClient,
	})
	if err != nil {
		logger.Fatal("Failed to create commerce client", zap.Error(err))
	}

	provider := payment.NewStripeProvider(cfg.Payment.SecretKey, cfg.Payment.APIURL, httpClient)

	paymentService := service.NewPaymentService(provider, commerceClient, eventPublisher, cfg.Payment.PublishableKey, cfg.Payment.Currency)
	orderService := service.NewOrderService(commerceClient, paymentService, eventPublisher)
	catalogService := service.NewCatalogService(commerceClient, cache, time.Duration(cfg.Catalog.CacheTTLSeconds)*time.Second)

	opts := api.Options{
		PaymentLimiter: paymentLimiter,
		Readiness:      readiness,
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var ledgerWorker *worker.LedgerWorker
	if cfg.Database.URL != "" {
		db, err := store.NewStore(cfg.Database.URL)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		if err := db.RunMigrations(); err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}
		logger.Info("Ledger database connected")
		opts.History = db

		if cfg.Kafka.Enabled {
			consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicCheckout, cfg.Kafka.ConsumerGroup)
			ledgerWorker = worker.NewLedgerWorker(consumer, db)
			go func() {
				if err := ledgerWorker.Start(workerCtx); err != nil && workerCtx.Err() == nil {
					logger.Error("Ledger worker error", zap.Error(err))
				}
			}()
		}
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	opts.TrustedProxies = cfg.Server.TrustedProxies

	router := gin.New()
	handler := api.NewHandler(orderService, paymentService, catalogService, opts)
	if err := handler.SetupRoutes(router); err != nil {
		logger.Fatal("Failed to set up routes", zap.Error(err))
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if ledgerWorker != nil {
		if err := ledgerWorker.Stop(); err != nil {
			logger.Error("Error stopping ledger worker", zap.Error(err))
		}
	}

	logger.Info("Server exited")
}
