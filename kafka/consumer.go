package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	apperrors "github.com/kbukum/eventfeed/errors"
	"github.com/kbukum/eventfeed/logger"
	"github.com/kbukum/eventfeed/sse"
)

// Source is the label published events carry.
const Source = "kafka"

// Reader is the subset of *kafkago.Reader the consumer uses.
type Reader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher appends a payload to the event log.
type Publisher interface {
	Publish(ctx context.Context, source string, payload []byte) (sse.Event, error)
}

// Consumer moves messages from a Reader into a Publisher.
type Consumer struct {
	reader     Reader
	publisher  Publisher
	topic      string
	log        *logger.Logger
	maxBackoff time.Duration
	failures   atomic.Int64
	consumed   atomic.Int64
}

// NewConsumer creates a consumer group reader for cfg.Topic.
func NewConsumer(cfg Config, publisher Publisher, log *logger.Logger) (*Consumer, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("kafka consumer config: %w", err)
	}

	dialer, err := CreateDialer(&cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer dialer: %w", err)
	}

	clog := log.WithComponent("kafka.consumer")
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:           cfg.Brokers,
		Topic:             cfg.Topic,
		GroupID:           cfg.GroupID,
		Dialer:            dialer,
		StartOffset:       kafkago.FirstOffset,
		MinBytes:          1,
		MaxBytes:          cfg.MaxMessageBytes,
		SessionTimeout:    ParseDuration(cfg.SessionTimeout),
		HeartbeatInterval: ParseDuration(cfg.HeartbeatInterval),
		RebalanceTimeout:  ParseDuration(cfg.RebalanceTimeout),
		ErrorLogger: kafkago.LoggerFunc(func(msg string, args ...interface{}) {
			clog.Error("reader: "+fmt.Sprintf(msg, args...), logger.Fields("topic", cfg.Topic))
		}),
	})

	c := NewConsumerWithReader(reader, publisher, cfg.Topic, log)
	c.maxBackoff = ParseDuration(cfg.MaxBackoff)
	return c, nil
}

// NewConsumerWithReader wraps an existing reader.
func NewConsumerWithReader(reader Reader, publisher Publisher, topic string, log *logger.Logger) *Consumer {
	return &Consumer{
		reader:     reader,
		publisher:  publisher,
		topic:      topic,
		log:        log.WithComponent("kafka.consumer"),
		maxBackoff: 30 * time.Second,
	}
}

// Consume reads and publishes messages until ctx is cancelled.
func (c *Consumer) Consume(ctx context.Context) error {
	c.log.Info("Starting consume loop", logger.Fields("topic", c.topic))
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err := c.backoff(ctx, "Kafka fetch failed", err); err != nil {
				return err
			}
			continue
		}
		if err := c.handle(ctx, msg); err != nil {
			return err
		}
	}
}

// handle publishes msg, retrying retryable failures, then commits it.
// Messages that can never be published are committed and dropped.
func (c *Consumer) handle(ctx context.Context, msg kafkago.Message) error {
	fields := logger.Fields("topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset)

	if !json.Valid(msg.Value) {
		c.log.Warn("Dropping message with non-JSON value", fields)
		return c.commit(ctx, msg)
	}

	for {
		ev, err := c.publisher.Publish(ctx, Source, msg.Value)
		if err == nil {
			c.consumed.Add(1)
			c.log.Debug("Message published", logger.Fields("offset", msg.Offset, logger.FieldEventID, ev.ID))
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if appErr, ok := apperrors.AsAppError(err); ok && !appErr.Retryable {
			c.log.Warn("Dropping message rejected by the event log", logger.Fields(
				"offset", msg.Offset, logger.FieldError, err.Error(),
			))
			break
		}
		if err := c.backoff(ctx, "Publish failed", err); err != nil {
			return err
		}
	}
	return c.commit(ctx, msg)
}

func (c *Consumer) commit(ctx context.Context, msg kafkago.Message) error {
	for {
		err := c.reader.CommitMessages(ctx, msg)
		if err == nil {
			c.failures.Store(0)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := c.backoff(ctx, "Commit failed", err); err != nil {
			return err
		}
	}
}

func (c *Consumer) backoff(ctx context.Context, msg string, cause error) error {
	failures := c.failures.Add(1)
	if failures <= 3 {
		c.log.Error(msg, logger.Fields(logger.FieldError, cause.Error(), "failures", failures, "topic", c.topic))
	}

	wait := time.Duration(failures) * time.Second
	if wait > c.maxBackoff {
		wait = c.maxBackoff
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Failures returns the number of consecutive failures.
func (c *Consumer) Failures() int64 { return c.failures.Load() }

// Consumed returns the number of messages published so far.
func (c *Consumer) Consumed() int64 { return c.consumed.Load() }

// Topic returns the consumer's topic.
func (c *Consumer) Topic() string { return c.topic }

// Close shuts down the reader.
func (c *Consumer) Close() error {
	err := c.reader.Close()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
