// Package logger is the structured logging layer of eventfeed.
//
// It wraps zerolog behind a small map-based API so call sites stay uniform:
//
//	log := logger.New(&cfg, "eventfeed").WithComponent("sse")
//	log.Info("Stream opened", map[string]interface{}{"last_event_id": id})
//
// A process-wide logger is installed with Init and reached through the
// package-level helpers (Info, Warn, Error, Debug).
package logger
