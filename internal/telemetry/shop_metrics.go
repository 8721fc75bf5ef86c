package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ShopMetrics holds the cart and checkout instruments. A nil *ShopMetrics is
// valid and records nothing.
type ShopMetrics struct {
	ordersPlaced     metric.Int64Counter
	checkoutFailures metric.Int64Counter
	itemsAdded       metric.Int64Counter
	checkoutDuration metric.Float64Histogram
}

func NewShopMetrics(meter metric.Meter) (*ShopMetrics, error) {
	ordersPlaced, err := meter.Int64Counter("checkout.orders",
		metric.WithDescription("Orders created by checkout"),
	)
	if err != nil {
		return nil, err
	}

	checkoutFailures, err := meter.Int64Counter("checkout.failures",
		metric.WithDescription("Checkouts that did not produce an order"),
	)
	if err != nil {
		return nil, err
	}

	itemsAdded, err := meter.Int64Counter("cart.items.added",
		metric.WithDescription("Add-to-cart calls by outcome"),
	)
	if err != nil {
		return nil, err
	}

	checkoutDuration, err := meter.Float64Histogram("checkout.duration",
		metric.WithDescription("Checkout latency including retries"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &ShopMetrics{
		ordersPlaced:     ordersPlaced,
		checkoutFailures: checkoutFailures,
		itemsAdded:       itemsAdded,
		checkoutDuration: checkoutDuration,
	}, nil
}

func (m *ShopMetrics) RecordCheckout(ctx context.Context, elapsed time.Duration, err error) {
	if m == nil {
		return
	}

	outcome := "success"
	if err != nil {
		outcome = "failure"
		m.checkoutFailures.Add(ctx, 1)
	} else {
		m.ordersPlaced.Add(ctx, 1)
	}

	m.checkoutDuration.Record(ctx, elapsed.Seconds(),
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
}

func (m *ShopMetrics) RecordItemAdded(ctx context.Context, created bool) {
	if m == nil {
		return
	}

	outcome := "merged"
	if created {
		outcome = "created"
	}
	m.itemsAdded.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
