package server

import (
	"fmt"

	"github.com/kbukum/eventfeed/server/middleware"
)

// Config holds HTTP server configuration.
type Config struct {
	Host              string                `mapstructure:"host"`
	Port              int                   `mapstructure:"port"`
	ReadHeaderTimeout int                   `mapstructure:"read_header_timeout"` // seconds
	ReadTimeout       int                   `mapstructure:"read_timeout"`        // seconds
	WriteTimeout      int                   `mapstructure:"write_timeout"`       // seconds, 0 disables
	IdleTimeout       int                   `mapstructure:"idle_timeout"`        // seconds
	ShutdownTimeout   int                   `mapstructure:"shutdown_timeout"`    // seconds
	MaxBodyBytes      int64                 `mapstructure:"max_body_bytes"`
	CORS              middleware.CORSConfig `mapstructure:"cors"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 3000
	}
	if c.ReadHeaderTimeout == 0 {
		c.ReadHeaderTimeout = 10
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 15
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 5
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = 1 << 20
	}
	if len(c.CORS.AllowedOrigins) == 0 {
		c.CORS.AllowedOrigins = []string{"*"}
	}
	if len(c.CORS.AllowedMethods) == 0 {
		c.CORS.AllowedMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(c.CORS.AllowedHeaders) == 0 {
		c.CORS.AllowedHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "Last-Event-ID"}
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535 (got: %d)", c.Port)
	}
	if c.ReadHeaderTimeout < 0 || c.ReadTimeout < 0 || c.IdleTimeout < 0 || c.ShutdownTimeout < 0 {
		return fmt.Errorf("server timeouts must be non-negative")
	}
	if c.WriteTimeout < 0 {
		return fmt.Errorf("server.write_timeout must be non-negative (got: %d)", c.WriteTimeout)
	}
	if c.MaxBodyBytes < 0 {
		return fmt.Errorf("server.max_body_bytes must be non-negative (got: %d)", c.MaxBodyBytes)
	}
	return nil
}

// Addr returns host:port.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
