// Package errors provides the application error type used across eventfeed.
// Every error that reaches an HTTP boundary is an *AppError carrying a
// machine-readable code, an HTTP status, and a retryable hint.
package errors
