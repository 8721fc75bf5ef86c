package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, key := range []string{"PORT", "KAFKA_BROKERS", "ORDER_PLACED_TOPIC", "CHECKOUT_MAX_RETRIES", "OTEL_EXPORTER_OTLP_ENDPOINT"} {
		t.Setenv(key, "")
	}

	cfg, err := Load("8081")
	require.NoError(t, err)

	assert.Equal(t, "8081", cfg.Port)
	assert.Equal(t, "order.placed", cfg.OrderPlacedTopic)
	assert.Equal(t, "localhost:4317", cfg.OTLPEndpoint)
	assert.Equal(t, uint64(5), cfg.CheckoutMaxRetries)
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "9000")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("CHECKOUT_MAX_RETRIES", "2")

	cfg, err := Load("8081")
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, uint64(2), cfg.CheckoutMaxRetries)
}

func TestLoad_InvalidRetries(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CHECKOUT_MAX_RETRIES", "many")

	_, err := Load("8081")
	assert.Error(t, err)
}

func TestRequire(t *testing.T) {
	assert.NoError(t, Require(map[string]string{"POSTGRES_URL": "postgres://"}))
	assert.EqualError(t, Require(map[string]string{"POSTGRES_URL": ""}), "POSTGRES_URL environment variable is required")
}
