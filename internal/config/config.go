package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/joao-fontenele/cartflow/internal/store"
)

type Config struct {
	Port                string
	PostgresURL         string
	KafkaBrokers        []string
	OrderPlacedTopic    string
	OTLPEndpoint        string
	EmailServiceURL     string
	ShopServiceURL      string
	InventoryServiceURL string
	JWTSecret           string
	OpsEmailAddress     string
	CheckoutMaxRetries  uint64
}

// Load reads the environment, after merging a .env file from the working
// directory when one exists. Variables already set in the environment win.
func Load(defaultPort string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Port:                getEnv("PORT", defaultPort),
		PostgresURL:         os.Getenv("POSTGRES_URL"),
		OrderPlacedTopic:    getEnv("ORDER_PLACED_TOPIC", "order.placed"),
		OTLPEndpoint:        getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		EmailServiceURL:     os.Getenv("EMAIL_SERVICE_URL"),
		ShopServiceURL:      os.Getenv("SHOP_SERVICE_URL"),
		InventoryServiceURL: os.Getenv("INVENTORY_SERVICE_URL"),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		OpsEmailAddress:     getEnv("OPS_EMAIL_ADDRESS", "ops@example.com"),
		CheckoutMaxRetries:  store.DefaultMaxRetries,
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	if raw := os.Getenv("CHECKOUT_MAX_RETRIES"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid CHECKOUT_MAX_RETRIES %q: %w", raw, err)
		}
		cfg.CheckoutMaxRetries = n
	}

	return cfg, nil
}

// Require returns an error naming the first empty value among the given
// variable names.
func Require(values map[string]string) error {
	for name, value := range values {
		if value == "" {
			return fmt.Errorf("%s environment variable is required", name)
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
