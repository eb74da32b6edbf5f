package redis

import (
	"context"
	"fmt"

	"github.com/kbukum/eventfeed/component"
	"github.com/kbukum/eventfeed/logger"
)

// Component owns a Client for the application lifetime.
type Component struct {
	client *Client
	cfg    Config
	log    *logger.Logger
}

var _ component.Component = (*Component)(nil)

// NewComponent creates a Redis component.
func NewComponent(cfg Config, log *logger.Logger) *Component {
	cfg.ApplyDefaults()
	return &Component{cfg: cfg, log: log.WithComponent("redis")}
}

// Attach wraps an existing client. Start then only verifies connectivity,
// and Stop closes client.
func Attach(client *Client, cfg Config, log *logger.Logger) *Component {
	c := NewComponent(cfg, log)
	c.client = client
	return c
}

// Client returns the underlying *Client, or nil if not started.
func (c *Component) Client() *Client {
	return c.client
}

// Name implements component.Component.
func (c *Component) Name() string { return "redis" }

// Start creates the client unless one was attached and verifies
// connectivity.
func (c *Component) Start(ctx context.Context) error {
	client := c.client
	if client == nil {
		created, err := New(c.cfg, c.log)
		if err != nil {
			return fmt.Errorf("redis start: %w", err)
		}
		client = created
	}
	if err := client.Ping(ctx); err != nil {
		_ = client.Close()
		c.client = nil
		return fmt.Errorf("redis start ping: %w", err)
	}
	c.client = client
	return nil
}

// Stop closes the Redis connection.
func (c *Component) Stop(context.Context) error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Health pings the server.
func (c *Component) Health(ctx context.Context) component.Health {
	if c.client == nil {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: "redis not initialized"}
	}
	if err := c.client.Ping(ctx); err != nil {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: err.Error()}
	}
	return component.Health{Name: c.Name(), Status: component.StatusHealthy}
}

// Describe implements component.Describable.
func (c *Component) Describe() component.Description {
	return component.Description{
		Type:    "redis",
		Details: fmt.Sprintf("%s db=%d pool=%d", c.cfg.Addr, c.cfg.DB, c.cfg.PoolSize),
	}
}
