package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collectSum(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("metric %s is not an int64 sum", name)
			}
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func TestShopMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	m, err := NewShopMetrics(provider.Meter("test"))
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}

	ctx := context.Background()
	m.RecordCheckout(ctx, 20*time.Millisecond, nil)
	m.RecordCheckout(ctx, 5*time.Millisecond, errors.New("boom"))
	m.RecordCheckout(ctx, 5*time.Millisecond, nil)
	m.RecordItemAdded(ctx, true)

	if got := collectSum(t, reader, "checkout.orders"); got != 2 {
		t.Errorf("expected 2 orders, got %d", got)
	}
	if got := collectSum(t, reader, "checkout.failures"); got != 1 {
		t.Errorf("expected 1 failure, got %d", got)
	}
	if got := collectSum(t, reader, "cart.items.added"); got != 1 {
		t.Errorf("expected 1 item added, got %d", got)
	}
}

func TestShopMetrics_NilIsNoop(t *testing.T) {
	var m *ShopMetrics
	m.RecordCheckout(context.Background(), time.Second, nil)
	m.RecordItemAdded(context.Background(), false)
}
