package eventstore

import (
	"context"
	"fmt"

	"github.com/kbukum/eventfeed/component"
)

// HubComponent stops the hub on shutdown, ending every open stream.
type HubComponent struct {
	hub *Hub
}

var _ component.Component = (*HubComponent)(nil)

// NewHubComponent wraps hub for lifecycle management.
func NewHubComponent(hub *Hub) *HubComponent {
	return &HubComponent{hub: hub}
}

// Name implements component.Component.
func (c *HubComponent) Name() string { return "hub" }

// Start implements component.Component.
func (c *HubComponent) Start(context.Context) error { return nil }

// Stop ends all subscriptions.
func (c *HubComponent) Stop(context.Context) error {
	c.hub.Stop()
	return nil
}

// Health reports the subscriber count.
func (c *HubComponent) Health(context.Context) component.Health {
	return component.Health{
		Name:    c.Name(),
		Status:  component.StatusHealthy,
		Message: fmt.Sprintf("%d subscribers", c.hub.Subscribers()),
	}
}
