package database

import (
	"context"
	"fmt"

	"github.com/kbukum/eventfeed/component"
	"github.com/kbukum/eventfeed/logger"
)

// Component wraps DB for lifecycle management.
type Component struct {
	db     *DB
	cfg    Config
	log    *logger.Logger
	models []interface{}
}

var _ component.Component = (*Component)(nil)

// NewComponent creates a database component.
func NewComponent(cfg Config, log *logger.Logger) *Component {
	cfg.ApplyDefaults()
	return &Component{cfg: cfg, log: log.WithComponent("database")}
}

// Attach wraps an already open DB. Start then only runs migrations, and
// Stop closes db.
func Attach(db *DB, cfg Config, log *logger.Logger) *Component {
	c := NewComponent(cfg, log)
	c.db = db
	return c
}

// WithAutoMigrate registers models migrated on Start.
func (c *Component) WithAutoMigrate(models ...interface{}) *Component {
	c.models = append(c.models, models...)
	return c
}

// DB returns the underlying *DB, or nil if not started.
func (c *Component) DB() *DB {
	return c.db
}

// Name implements component.Component.
func (c *Component) Name() string { return "database" }

// Start connects to the database unless one was attached, then runs
// auto-migration.
func (c *Component) Start(ctx context.Context) error {
	db := c.db
	if db == nil {
		opened, err := Open(ctx, c.cfg, c.log)
		if err != nil {
			return fmt.Errorf("database start: %w", err)
		}
		db = opened
	}
	if len(c.models) > 0 {
		if err := db.AutoMigrate(c.models...); err != nil {
			_ = db.Close()
			return fmt.Errorf("database auto-migrate: %w", err)
		}
	}
	c.db = db
	return nil
}

// Stop closes the database connection.
func (c *Component) Stop(context.Context) error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Health pings the database.
func (c *Component) Health(ctx context.Context) component.Health {
	h := component.Health{Name: c.Name(), Status: component.StatusHealthy}
	if c.db == nil {
		h.Status, h.Message = component.StatusUnhealthy, "database not initialized"
		return h
	}
	if err := c.db.PingContext(ctx); err != nil {
		h.Status, h.Message = component.StatusUnhealthy, fmt.Sprintf("ping failed: %v", err)
	}
	return h
}

// Describe implements component.Describable.
func (c *Component) Describe() component.Description {
	return component.Description{
		Type:    "database",
		Details: fmt.Sprintf("sqlite pool=%d/%d", c.cfg.MaxOpenConns, c.cfg.MaxIdleConns),
	}
}
