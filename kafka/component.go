package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kbukum/eventfeed/component"
	"github.com/kbukum/eventfeed/logger"
)

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// Component runs a Consumer in the background.
type Component struct {
	consumer *Consumer
	brokers  []string
	log      *logger.Logger

	mu       sync.Mutex
	cancelFn context.CancelFunc
	done     chan struct{}
}

// NewComponent wraps consumer for the component registry.
func NewComponent(consumer *Consumer, brokers []string, log *logger.Logger) *Component {
	return &Component{
		consumer: consumer,
		brokers:  brokers,
		log:      log.WithComponent("kafka"),
	}
}

// Name returns the component name.
func (c *Component) Name() string { return "kafka-consumer" }

// Start begins consuming in a background goroutine.
func (c *Component) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done != nil {
		return nil
	}

	consumeCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancelFn = cancel
	c.done = make(chan struct{})

	go func() {
		defer close(c.done)
		if err := c.consumer.Consume(consumeCtx); err != nil && !errors.Is(err, context.Canceled) {
			c.log.Error("Consumer stopped with error", logger.Fields(logger.FieldError, err.Error()))
		}
	}()
	return nil
}

// Stop cancels the consume loop, waits for it and closes the reader.
func (c *Component) Stop(ctx context.Context) error {
	c.mu.Lock()
	cancel, done := c.cancelFn, c.done
	c.mu.Unlock()
	if done == nil {
		return nil
	}

	cancel()
	select {
	case <-done:
	case <-ctx.Done():
		c.log.Warn("Consumer stop timed out")
	case <-time.After(10 * time.Second):
		c.log.Warn("Consumer stop timed out")
	}
	return c.consumer.Close()
}

// Health reports degraded while the consumer is retrying failures.
func (c *Component) Health(context.Context) component.Health {
	c.mu.Lock()
	running := c.done != nil
	c.mu.Unlock()

	switch {
	case !running:
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: "not started"}
	case c.consumer.Failures() > 0:
		return component.Health{
			Name:    c.Name(),
			Status:  component.StatusDegraded,
			Message: fmt.Sprintf("%d consecutive failures", c.consumer.Failures()),
		}
	default:
		return component.Health{Name: c.Name(), Status: component.StatusHealthy}
	}
}

// Describe implements component.Describable.
func (c *Component) Describe() component.Description {
	return component.Description{Type: "kafka", Details: fmt.Sprintf("topic=%s brokers=%v", c.consumer.Topic(), c.brokers)}
}
