package sse

import (
	"fmt"
	"time"

	"github.com/kbukum/eventfeed/logger"
)

// Config holds the stream tuning knobs. Zero values disable the feature.
type Config struct {
	// KeepAlive is the interval between comment frames on an idle stream.
	KeepAlive time.Duration `yaml:"keep_alive" mapstructure:"keep_alive"`
	// Retry, when set, is sent once as the client reconnection delay.
	Retry time.Duration `yaml:"retry" mapstructure:"retry"`
	// WriteTimeout bounds each frame write.
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
}

// ApplyDefaults sets the keep-alive interval below common proxy idle timeouts.
func (c *Config) ApplyDefaults() {
	if c.KeepAlive == 0 {
		c.KeepAlive = 30 * time.Second
	}
}

// Validate checks the stream configuration.
func (c *Config) Validate() error {
	if c.KeepAlive < 0 || c.Retry < 0 || c.WriteTimeout < 0 {
		return fmt.Errorf("sse: durations must not be negative")
	}
	return nil
}

// Option configures a Handler.
type Option func(*Handler)

// WithConfig applies every field of cfg.
func WithConfig(cfg Config) Option {
	return func(h *Handler) {
		h.keepAlive = cfg.KeepAlive
		h.retry = cfg.Retry
		h.writeTimeout = cfg.WriteTimeout
	}
}

// WithLogger sets the handler logger.
func WithLogger(l *logger.Logger) Option {
	return func(h *Handler) { h.log = l.WithComponent("sse") }
}

// WithObserver sets the lifecycle observer.
func WithObserver(o Observer) Option {
	return func(h *Handler) { h.observer = o }
}

// WithKeepAlive sets the idle keep-alive interval.
func WithKeepAlive(d time.Duration) Option {
	return func(h *Handler) { h.keepAlive = d }
}

// WithRetry sets the reconnection delay announced to clients.
func WithRetry(d time.Duration) Option {
	return func(h *Handler) { h.retry = d }
}

// WithWriteTimeout sets the deadline for each frame write.
func WithWriteTimeout(d time.Duration) Option {
	return func(h *Handler) { h.writeTimeout = d }
}
