package observability

import (
	"context"
	"fmt"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/kbukum/eventfeed/component"
	"github.com/kbukum/eventfeed/logger"
)

// TracerComponent owns the tracer provider for the application lifetime.
type TracerComponent struct {
	cfg TracerConfig
	svc ServiceInfo
	log *logger.Logger
	tp  *sdktrace.TracerProvider
}

var _ component.Component = (*TracerComponent)(nil)

// NewTracerComponent creates a tracer component. A disabled config makes
// Start and Stop no-ops.
func NewTracerComponent(cfg TracerConfig, svc ServiceInfo, log *logger.Logger) *TracerComponent {
	return &TracerComponent{cfg: cfg, svc: svc, log: log.WithComponent("tracing")}
}

// Name implements component.Component.
func (c *TracerComponent) Name() string { return "tracing" }

// Start implements component.Component.
func (c *TracerComponent) Start(ctx context.Context) error {
	if !c.cfg.Enabled {
		return nil
	}
	tp, err := InitTracer(ctx, c.cfg, c.svc)
	if err != nil {
		return err
	}
	c.tp = tp
	c.log.Info("Tracer initialized", logger.Fields("endpoint", c.cfg.Endpoint, "sample_rate", c.cfg.SampleRate))
	return nil
}

// Stop flushes pending spans and shuts the provider down.
func (c *TracerComponent) Stop(ctx context.Context) error {
	if c.tp == nil {
		return nil
	}
	if err := c.tp.Shutdown(ctx); err != nil {
		return fmt.Errorf("tracer shutdown: %w", err)
	}
	c.tp = nil
	return nil
}

// Health implements component.Component.
func (c *TracerComponent) Health(context.Context) component.Health {
	h := component.Health{Name: c.Name(), Status: component.StatusHealthy}
	if !c.cfg.Enabled {
		h.Message = "disabled"
	}
	return h
}

// Describe implements component.Describable.
func (c *TracerComponent) Describe() component.Description {
	details := "disabled"
	if c.cfg.Enabled {
		details = fmt.Sprintf("otlp http://%s sample=%.2f", c.cfg.Endpoint, c.cfg.SampleRate)
	}
	return component.Description{Type: "tracing", Details: details}
}
