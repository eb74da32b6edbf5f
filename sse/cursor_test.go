package sse

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSliceCursor_Exhausts(t *testing.T) {
	c := NewSliceCursor(Event{ID: "1"})
	ctx := context.Background()
	if ev, err := c.Next(ctx); err != nil || ev.ID != "1" {
		t.Fatalf("unexpected %v %v", ev, err)
	}
	if _, err := c.Next(ctx); !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
}

func TestSliceCursor_BlockingHonorsContext(t *testing.T) {
	c := NewSliceCursor().Blocking()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestSliceCursor_CloseIsIdempotent(t *testing.T) {
	c := NewSliceCursor().Blocking()
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Next(context.Background()); !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted after close, got %v", err)
	}
}
