package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/kbukum/eventfeed/component"
	"github.com/kbukum/eventfeed/logger"
)

func TestConfig_Defaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.MaxOpenConns != 1 || cfg.MaxIdleConns != 1 {
		t.Errorf("unexpected pool defaults %d/%d", cfg.MaxOpenConns, cfg.MaxIdleConns)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"idle above open", func(c *Config) { c.MaxIdleConns = 5 }},
		{"bad lifetime", func(c *Config) { c.ConnMaxLifetime = "forever" }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			cfg.ApplyDefaults()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

type note struct {
	ID   uint `gorm:"primaryKey"`
	Body string
}

func TestComponent_Lifecycle(t *testing.T) {
	cfg := Config{DSN: filepath.Join(t.TempDir(), "test.db"), LogLevel: "silent"}
	c := NewComponent(cfg, logger.Nop()).WithAutoMigrate(&note{})
	ctx := context.Background()

	if h := c.Health(ctx); h.Status != component.StatusUnhealthy {
		t.Errorf("expected unhealthy before start, got %s", h.Status)
	}
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if h := c.Health(ctx); h.Status != component.StatusHealthy {
		t.Errorf("expected healthy, got %+v", h)
	}

	if err := c.DB().WithContext(ctx).Create(&note{Body: "hello"}).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}
	var count int64
	c.DB().WithContext(ctx).Model(&note{}).Count(&count)
	if count != 1 {
		t.Errorf("expected 1 row, got %d", count)
	}

	if err := c.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := c.DB().Close(); err != nil {
		t.Errorf("second close should be a no-op: %v", err)
	}
}

func TestOpen_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Open(ctx, Config{DSN: filepath.Join(t.TempDir(), "x.db")}, logger.Nop()); err == nil {
		t.Fatal("expected error for canceled context")
	}
}
