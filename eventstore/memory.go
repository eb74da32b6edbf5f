package eventstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/kbukum/eventfeed/sse"
)

// MemoryStore keeps events in process memory, ordered by UUIDv7 id.
type MemoryStore struct {
	mu     sync.RWMutex
	events []sse.Event
	head   int // events[:head] are evicted
	retain int
}

var (
	_ Store       = (*MemoryStore)(nil)
	_ IDValidator = (*MemoryStore)(nil)
)

// NewMemoryStore creates a memory store keeping at most retain events.
// Zero keeps everything.
func NewMemoryStore(retain int) *MemoryStore {
	return &MemoryStore{retain: retain}
}

// Append implements Store.
func (s *MemoryStore) Append(_ context.Context, payload []byte) (sse.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// NewV7 is monotonic within the process; holding the lock keeps the
	// slice sorted.
	id, err := uuid.NewV7()
	if err != nil {
		return sse.Event{}, fmt.Errorf("create event id: %w", err)
	}
	ev := sse.Event{ID: id.String(), Payload: append([]byte(nil), payload...)}
	s.events = append(s.events, ev)
	if s.retain > 0 && len(s.events)-s.head > s.retain {
		s.events[s.head] = sse.Event{}
		s.head++
		// Compact once the evicted prefix is as long as the live window.
		if s.head >= s.retain {
			s.events = append(make([]sse.Event, 0, 2*s.retain), s.events[s.head:]...)
			s.head = 0
		}
	}
	return ev, nil
}

// ReadAfter implements Store.
func (s *MemoryStore) ReadAfter(_ context.Context, afterID string, limit int) ([]sse.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	live := s.events[s.head:]
	start := 0
	if afterID != "" {
		start = sort.Search(len(live), func(i int) bool { return live[i].ID > afterID })
	}
	end := len(live)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	if start >= end {
		return nil, nil
	}
	out := make([]sse.Event, end-start)
	copy(out, live[start:end])
	return out, nil
}

// ValidateID implements IDValidator.
func (s *MemoryStore) ValidateID(id string) error {
	return ValidateUUID(id)
}

// Len returns the number of retained events.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events) - s.head
}
