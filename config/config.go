package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Commerce  CommerceConfig
	Payment   PaymentConfig
	RateLimit RateLimitConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Database  DatabaseConfig
	Catalog   CatalogConfig
	Observ    ObservabilityConfig
}

type ServerConfig struct {
	Port string
	Env  string
	// TrustedProxies are the proxy addresses or CIDRs whose X-Forwarded-For
	// is believed. Empty trusts none.
	TrustedProxies []string
}

// CommerceConfig points at the commerce platform REST API.
type CommerceConfig struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	// TimeoutSeconds of 0 leaves the HTTP client default (no timeout).
	TimeoutSeconds int
}

type PaymentConfig struct {
	SecretKey      string
	PublishableKey string
	// APIURL overrides the processor endpoint; empty uses the SDK default.
	APIURL   string
	Currency string
}

type RateLimitConfig struct {
	// Backend is "redis" or "memory".
	Backend              string
	PaymentIntentsPerMin int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Enabled       bool
	Brokers       []string
	TopicCheckout string
	ConsumerGroup string
}

// DatabaseConfig holds the checkout ledger connection. An empty URL disables
// the ledger.
type DatabaseConfig struct {
	URL string
}

type CatalogConfig struct {
	CacheTTLSeconds int
}

type ObservabilityConfig struct {
	TracingEnabled bool
	JaegerEndpoint string
	SampleRatio    float64
}

func Load() *Config {
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	commerceTimeout, _ := strconv.Atoi(getEnv("COMMERCE_TIMEOUT_SECONDS", "0"))
	intentsPerMin, _ := strconv.Atoi(getEnv("RATE_LIMIT_PAYMENT_INTENTS_PER_MINUTE", "10"))
	cacheTTL, _ := strconv.Atoi(getEnv("CATALOG_CACHE_TTL_SECONDS", "300"))
	kafkaEnabled, _ := strconv.ParseBool(getEnv("KAFKA_ENABLED", "false"))
	tracingEnabled, _ := strconv.ParseBool(getEnv("TRACING_ENABLED", "false"))
	sampleRatio, _ := strconv.ParseFloat(getEnv("TRACE_SAMPLE_RATIO", "1"), 64)

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            getEnv("ENV", "development"),
			TrustedProxies: splitList(getEnv("TRUSTED_PROXIES", "")),
		},
		Commerce: CommerceConfig{
			BaseURL:        getEnv("COMMERCE_BASE_URL", "http://localhost:8000"),
			ConsumerKey:    getEnv("COMMERCE_CONSUMER_KEY", ""),
			ConsumerSecret: getEnv("COMMERCE_CONSUMER_SECRET", ""),
			TimeoutSeconds: commerceTimeout,
		},
		Payment: PaymentConfig{
			SecretKey:      getEnv("STRIPE_SECRET_KEY", ""),
			PublishableKey: getEnv("STRIPE_PUBLISHABLE_KEY", ""),
			APIURL:         getEnv("STRIPE_API_URL", ""),
			Currency:       strings.ToLower(getEnv("PAYMENT_CURRENCY", "usd")),
		},
		RateLimit: RateLimitConfig{
			Backend:              getEnv("RATE_LIMIT_BACKEND", "redis"),
			PaymentIntentsPerMin: intentsPerMin,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Kafka: KafkaConfig{
			Enabled:       kafkaEnabled,
			Brokers:       strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			TopicCheckout: getEnv("KAFKA_TOPIC_CHECKOUT_EVENTS", "checkout-events"),
			ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "storefront-ledger"),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		Catalog: CatalogConfig{
			CacheTTLSeconds: cacheTTL,
		},
		Observ: ObservabilityConfig{
			TracingEnabled: tracingEnabled,
			JaegerEndpoint: getEnv("JAEGER_ENDPOINT", "http://localhost:14268/api/traces"),
			SampleRatio:    sampleRatio,
		},
	}

	log.Printf("Config loaded: env=%s, port=%s", cfg.Server.Env, cfg.Server.Port)
	return cfg
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
