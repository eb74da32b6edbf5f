// Package bootstrap runs a service through its lifecycle: start components,
// run configure callbacks, wait for a shutdown signal, then stop everything
// within a graceful timeout.
package bootstrap
