// Package server provides the HTTP server: a gin engine behind an h2c
// handler, wrapped in the recovery, request-id, CORS, body-size and
// request-logging middleware.
//
// The server leaves WriteTimeout at zero by default; streaming handlers
// manage their own per-write deadlines.
package server
