// Package app holds the service configuration and builds the component
// graph for the selected storage backend.
package app

import (
	"fmt"
	"time"

	"github.com/kbukum/eventfeed/api"
	"github.com/kbukum/eventfeed/auth"
	"github.com/kbukum/eventfeed/config"
	"github.com/kbukum/eventfeed/database"
	"github.com/kbukum/eventfeed/eventstore"
	"github.com/kbukum/eventfeed/eventstore/redisstore"
	"github.com/kbukum/eventfeed/kafka"
	"github.com/kbukum/eventfeed/metrics"
	"github.com/kbukum/eventfeed/observability"
	"github.com/kbukum/eventfeed/redis"
	"github.com/kbukum/eventfeed/server"
	"github.com/kbukum/eventfeed/sse"
	"github.com/kbukum/eventfeed/validation"
	"github.com/kbukum/eventfeed/version"
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// ServiceName is used for config lookup and the env prefix.
const ServiceName = "eventfeed"

// Config is the full service configuration.
type Config struct {
	config.ServiceConfig `mapstructure:",squash"`

	Server   server.Config              `mapstructure:"server"`
	API      api.Config                 `mapstructure:"api"`
	Auth     auth.Config                `mapstructure:"auth"`
	SSE      sse.Config                 `mapstructure:"sse"`
	Store    StoreConfig                `mapstructure:"store"`
	Database database.Config            `mapstructure:"database"`
	Redis    redis.Config               `mapstructure:"redis"`
	Kafka    kafka.Config               `mapstructure:"kafka"`
	Tracing  observability.TracerConfig `mapstructure:"tracing"`
	Metrics  metrics.Config             `mapstructure:"metrics"`
}

// StoreConfig selects and tunes the event log.
type StoreConfig struct {
	Backend string                `mapstructure:"backend"`
	Feed    eventstore.FeedConfig `mapstructure:"feed"`

	// Retain caps the memory backend; 0 keeps everything.
	Retain int `mapstructure:"retain"`

	// Retention prunes sqlite events older than this; 0 keeps everything.
	Retention     time.Duration `mapstructure:"retention"`
	PruneInterval time.Duration `mapstructure:"prune_interval"`

	Stream redisstore.Config `mapstructure:"stream"`
}

// ApplyDefaults fills every section.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = ServiceName
	}
	if c.Version == "" {
		c.Version = version.Get().String()
	}
	c.ServiceConfig.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.API.ApplyDefaults()
	c.Auth.ApplyDefaults()
	c.SSE.ApplyDefaults()
	if c.Store.Backend == "" {
		c.Store.Backend = BackendMemory
	}
	c.Store.Feed.ApplyDefaults()
	c.Store.Stream.ApplyDefaults()
	if c.Store.Backend == BackendRedis && c.Store.Feed.PollInterval == 0 {
		// Pub/sub notifications are lost while the listener reconnects.
		c.Store.Feed.PollInterval = 5 * time.Second
	}
	c.Database.ApplyDefaults()
	c.Redis.ApplyDefaults()
	c.Kafka.ApplyDefaults()
	c.Tracing.ApplyDefaults()
	c.Metrics.ApplyDefaults()
}

// Validate checks every section that is in use.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if appErr := validation.New().
		OneOf("store.backend", c.Store.Backend, []string{BackendMemory, BackendSQLite, BackendRedis}).
		Min("store.retain", c.Store.Retain, 0).
		Custom(c.Store.Retention >= 0, "store.retention", "must not be negative").
		Validate(); appErr != nil {
		return appErr
	}

	checks := []sectionCheck{
		{"server", c.Server.Validate},
		{"api", c.API.Validate},
		{"auth", c.Auth.Validate},
		{"sse", c.SSE.Validate},
		{"store.feed", c.Store.Feed.Validate},
		{"kafka", c.Kafka.Validate},
		{"tracing", c.Tracing.Validate},
		{"metrics", c.Metrics.Validate},
	}
	switch c.Store.Backend {
	case BackendSQLite:
		checks = append(checks, sectionCheck{"database", c.Database.Validate})
	case BackendRedis:
		checks = append(checks,
			sectionCheck{"redis", c.Redis.Validate},
			sectionCheck{"store.stream", c.Store.Stream.Validate},
		)
	}
	for _, check := range checks {
		if err := check.fn(); err != nil {
			return fmt.Errorf("%s: %w", check.name, err)
		}
	}
	return nil
}

type sectionCheck struct {
	name string
	fn   func() error
}
