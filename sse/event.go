package sse

import (
	"context"
	"errors"
	"net/http"
)

var (
	// ErrExhausted is returned by Cursor.Next when the sequence has ended
	// normally.
	ErrExhausted = errors.New("sse: cursor exhausted")

	// ErrInvalidField is returned when an event id or name contains CR, LF
	// or NUL and therefore cannot be framed.
	ErrInvalidField = errors.New("sse: field contains CR, LF or NUL")
)

// Event is produced by a Source and relayed verbatim.
type Event struct {
	ID      string
	Payload []byte
}

// Cursor is a pull-based handle over a possibly unbounded sequence of events.
type Cursor interface {
	// Next blocks until an event is available. It returns ErrExhausted at
	// the end of the sequence and ctx.Err() once ctx is done.
	Next(ctx context.Context) (Event, error)

	// Close releases the cursor. It is safe to call more than once.
	Close() error
}

// Source opens cursors. An empty lastEventID means "from the start".
type Source interface {
	Stream(ctx context.Context, lastEventID string) (Cursor, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, lastEventID string) (Cursor, error)

// Stream calls f.
func (f SourceFunc) Stream(ctx context.Context, lastEventID string) (Cursor, error) {
	return f(ctx, lastEventID)
}

// Authorizer decides whether a request carries a valid access credential.
type Authorizer interface {
	IsAccessTokenValid(r *http.Request) bool
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(r *http.Request) bool

// IsAccessTokenValid calls f.
func (f AuthorizerFunc) IsAccessTokenValid(r *http.Request) bool {
	return f(r)
}

// AllowAll accepts every request.
var AllowAll Authorizer = AuthorizerFunc(func(*http.Request) bool { return true })
