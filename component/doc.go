// Package component defines the lifecycle contract shared by every piece of
// infrastructure the service runs (stores, listeners, servers, consumers)
// and a Registry that starts them in order and stops them in reverse.
package component
