package server

import (
	"context"

	"github.com/kbukum/eventfeed/component"
)

const componentName = "http-server"

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// Component wraps Server to implement component.Component.
type Component struct {
	server *Server
}

// NewComponent returns a component.Component backed by the given Server.
func NewComponent(s *Server) *Component {
	return &Component{server: s}
}

// Server returns the wrapped server.
func (sc *Component) Server() *Server { return sc.server }

// Name returns the component name used for registration.
func (sc *Component) Name() string { return componentName }

// Start starts the underlying HTTP server.
func (sc *Component) Start(ctx context.Context) error {
	return sc.server.Start(ctx)
}

// Stop gracefully shuts down the underlying HTTP server.
func (sc *Component) Stop(ctx context.Context) error {
	return sc.server.Stop(ctx)
}

// Health returns the health status of the server.
func (sc *Component) Health(context.Context) component.Health {
	if sc.server.started() {
		return component.Health{Name: componentName, Status: component.StatusHealthy}
	}
	return component.Health{Name: componentName, Status: component.StatusUnhealthy, Message: "not listening"}
}

// Describe returns the listen address for the startup log.
func (sc *Component) Describe() component.Description {
	return component.Description{Type: "server", Details: sc.server.Addr()}
}
