package sse

import (
	"context"
	"sync"
)

// SliceCursor yields a fixed list of events. After the last one it either
// reports ErrExhausted or, when created with Blocking, waits for ctx.
type SliceCursor struct {
	mu       sync.Mutex
	events   []Event
	blocking bool
	closed   bool
	done     chan struct{}
}

// NewSliceCursor returns a cursor that is exhausted after events.
func NewSliceCursor(events ...Event) *SliceCursor {
	return &SliceCursor{events: events, done: make(chan struct{})}
}

// Blocking makes the cursor wait after its last event instead of ending.
func (c *SliceCursor) Blocking() *SliceCursor {
	c.blocking = true
	return c
}

// Next implements Cursor.
func (c *SliceCursor) Next(ctx context.Context) (Event, error) {
	if err := ctx.Err(); err != nil {
		return Event{}, err
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Event{}, ErrExhausted
	}
	if len(c.events) > 0 {
		ev := c.events[0]
		c.events = c.events[1:]
		c.mu.Unlock()
		return ev, nil
	}
	blocking := c.blocking
	c.mu.Unlock()

	if !blocking {
		return Event{}, ErrExhausted
	}
	select {
	case <-ctx.Done():
		return Event{}, ctx.Err()
	case <-c.done:
		return Event{}, ErrExhausted
	}
}

// Close implements Cursor.
func (c *SliceCursor) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
	return nil
}

// Closed reports whether Close has been called.
func (c *SliceCursor) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
