package messaging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedEvent struct {
	ID string `json:"id"`
}

func (namedEvent) EventType() string { return "thing.happened" }

func TestHeaderCarrier(t *testing.T) {
	msg := &kafka.Message{}
	carrier := NewHeaderCarrier(msg)

	carrier.Set("traceparent", "a")
	carrier.Set("tracestate", "b")
	carrier.Set("traceparent", "c")

	assert.Equal(t, "c", carrier.Get("traceparent"))
	assert.Equal(t, "b", carrier.Get("tracestate"))
	assert.Empty(t, carrier.Get("missing"))
	assert.Equal(t, []string{"traceparent", "tracestate"}, carrier.Keys())
	assert.Len(t, msg.Headers, 2)
}

func TestNewMessage(t *testing.T) {
	t.Run("typed event sets header", func(t *testing.T) {
		msg, err := newMessage("k1", namedEvent{ID: "1"})
		require.NoError(t, err)

		assert.Equal(t, "k1", string(msg.Key))
		assert.JSONEq(t, `{"id":"1"}`, string(msg.Value))
		assert.Equal(t, "thing.happened", NewHeaderCarrier(&msg).Get(EventTypeHeader))
	})

	t.Run("plain event has no header", func(t *testing.T) {
		msg, err := newMessage("k2", map[string]int{"n": 1})
		require.NoError(t, err)
		assert.Empty(t, msg.Headers)
	})

	t.Run("unmarshalable event", func(t *testing.T) {
		_, err := newMessage("k3", make(chan int))
		assert.Error(t, err)
	})
}

func newTestConsumer(opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		topic:        "test",
		maxAttempts:  3,
		initialDelay: time.Millisecond,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	var cfg kafka.ReaderConfig
	for _, opt := range opts {
		opt(c, &cfg)
	}
	return c
}

func TestConsumer_RunWithRetry(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		permanent bool
		wantCalls int
		wantErr   bool
	}{
		{name: "first attempt succeeds", failures: 0, wantCalls: 1},
		{name: "transient failure recovers", failures: 2, wantCalls: 3},
		{name: "retries exhausted", failures: 5, wantCalls: 3, wantErr: true},
		{name: "permanent failure is not retried", failures: 5, permanent: true, wantCalls: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestConsumer()
			calls := 0
			handler := func(_ context.Context, payload []byte) error {
				calls++
				assert.Equal(t, "payload", string(payload))
				if calls <= tt.failures {
					err := errors.New("boom")
					if tt.permanent {
						return Permanent(err)
					}
					return err
				}
				return nil
			}

			err := c.runWithRetry(context.Background(), []byte("payload"), handler)

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConsumer_Accepts(t *testing.T) {
	typed := kafka.Message{Headers: []kafka.Header{{Key: EventTypeHeader, Value: []byte("order.placed")}}}
	other := kafka.Message{Headers: []kafka.Header{{Key: EventTypeHeader, Value: []byte("order.shipped")}}}
	bare := kafka.Message{}

	filtered := newTestConsumer(WithEventType("order.placed"))
	assert.True(t, filtered.accepts(typed))
	assert.False(t, filtered.accepts(other))
	assert.True(t, filtered.accepts(bare))

	unfiltered := newTestConsumer()
	assert.True(t, unfiltered.accepts(other))
}

func TestPermanent(t *testing.T) {
	base := errors.New("bad payload")
	err := Permanent(base)

	assert.True(t, isPermanent(err))
	assert.ErrorIs(t, err, base)
	assert.False(t, isPermanent(base))
	assert.NoError(t, Permanent(nil))
}
