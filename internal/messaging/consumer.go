package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

var consumerTracer = otel.Tracer("messaging/consumer")

// HandlerFunc processes one message payload.
type HandlerFunc func(ctx context.Context, payload []byte) error

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks a handler error as not worth retrying. The message is
// logged and committed so it does not block the partition.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func isPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

type Consumer struct {
	reader       *kafka.Reader
	topic        string
	groupID      string
	maxAttempts  uint64
	initialDelay time.Duration
	eventType    string
	logger       *slog.Logger
}

type ConsumerOption func(*Consumer, *kafka.ReaderConfig)

func WithStartOffset(offset int64) ConsumerOption {
	return func(_ *Consumer, cfg *kafka.ReaderConfig) {
		cfg.StartOffset = offset
	}
}

// WithRetry sets how many times a failing handler runs for one message
// before the consumer gives up on it.
func WithRetry(maxAttempts uint64, initialDelay time.Duration) ConsumerOption {
	return func(c *Consumer, _ *kafka.ReaderConfig) {
		c.maxAttempts = maxAttempts
		c.initialDelay = initialDelay
	}
}

// WithEventType skips messages whose event-type header names another event.
// Messages without the header are always delivered.
func WithEventType(eventType string) ConsumerOption {
	return func(c *Consumer, _ *kafka.ReaderConfig) {
		c.eventType = eventType
	}
}

func WithLogger(logger *slog.Logger) ConsumerOption {
	return func(c *Consumer, _ *kafka.ReaderConfig) {
		c.logger = logger
	}
}

func NewConsumer(brokers []string, topic, groupID string, opts ...ConsumerOption) *Consumer {
	cfg := kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: groupID,
	}

	c := &Consumer{
		topic:        topic,
		groupID:      groupID,
		maxAttempts:  3,
		initialDelay: 200 * time.Millisecond,
		logger:       slog.Default(),
	}

	for _, opt := range opts {
		opt(c, &cfg)
	}

	c.reader = kafka.NewReader(cfg)
	return c
}

// Consume fetches messages until ctx is cancelled or the reader fails.
// Handler failures never stop the loop: once retries are exhausted the
// message is committed and logged.
func (c *Consumer) Consume(ctx context.Context, handler HandlerFunc) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return err
		}

		if c.accepts(msg) {
			if err := c.processMessage(ctx, msg, handler); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				c.logger.Error("dropping message after failed processing",
					"error", err,
					"topic", c.topic,
					"partition", msg.Partition,
					"offset", msg.Offset,
					"key", string(msg.Key),
				)
			}
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return fmt.Errorf("commit offset %d: %w", msg.Offset, err)
		}
	}
}

func (c *Consumer) accepts(msg kafka.Message) bool {
	if c.eventType == "" {
		return true
	}
	got := NewHeaderCarrier(&msg).Get(EventTypeHeader)
	return got == "" || got == c.eventType
}

func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message, handler HandlerFunc) error {
	parentCtx := otel.GetTextMapPropagator().Extract(ctx, NewHeaderCarrier(&msg))

	spanCtx, span := consumerTracer.Start(parentCtx, "process "+c.topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingOperationName("process"),
			semconv.MessagingOperationTypeDeliver,
			semconv.MessagingDestinationName(c.topic),
			semconv.MessagingKafkaConsumerGroup(c.groupID),
			semconv.MessagingKafkaMessageOffset(int(msg.Offset)),
			semconv.MessagingDestinationPartitionID(strconv.Itoa(msg.Partition)),
			semconv.MessagingKafkaMessageKey(string(msg.Key)),
		),
	)
	defer span.End()

	err := c.runWithRetry(spanCtx, msg.Value, handler)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (c *Consumer) runWithRetry(ctx context.Context, payload []byte, handler HandlerFunc) error {
	if c.maxAttempts <= 1 {
		return handler(ctx, payload)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.initialDelay
	b := backoff.WithContext(backoff.WithMaxRetries(policy, c.maxAttempts-1), ctx)

	return backoff.Retry(func() error {
		err := handler(ctx, payload)
		if isPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b)
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
