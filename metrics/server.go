package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kbukum/eventfeed/component"
	"github.com/kbukum/eventfeed/logger"
)

// Config configures the metrics listener.
type Config struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	Path    string `mapstructure:"path"`
}

// ApplyDefaults sets the listen address and path.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = ":3001"
	}
	if c.Path == "" {
		c.Path = "/metrics"
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.Addr); err != nil {
		return fmt.Errorf("metrics: invalid addr %q: %w", c.Addr, err)
	}
	return nil
}

// Server serves the registry on its own listener.
type Server struct {
	cfg      Config
	log      *logger.Logger
	srv      *http.Server
	listener net.Listener
}

var _ component.Component = (*Server)(nil)

// NewServer creates a metrics server for m.
func NewServer(cfg Config, m *Metrics, log *logger.Logger) *Server {
	cfg.ApplyDefaults()
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{Registry: m.Registry()}))
	return &Server{
		cfg: cfg,
		log: log.WithComponent("metrics"),
		srv: &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
	}
}

// Name implements component.Component.
func (s *Server) Name() string { return "metrics-server" }

// Start binds the listener and serves in the background.
func (s *Server) Start(context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("metrics listen on %s: %w", s.cfg.Addr, err)
	}
	s.listener = ln
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("Metrics server failed", logger.Fields(logger.FieldError, err.Error()))
		}
	}()
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	if s.listener == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// Health implements component.Component.
func (s *Server) Health(context.Context) component.Health {
	if s.listener == nil {
		return component.Health{Name: s.Name(), Status: component.StatusUnhealthy, Message: "not listening"}
	}
	return component.Health{Name: s.Name(), Status: component.StatusHealthy}
}

// Describe implements component.Describable.
func (s *Server) Describe() component.Description {
	return component.Description{Type: "metrics", Details: s.cfg.Addr + s.cfg.Path}
}
