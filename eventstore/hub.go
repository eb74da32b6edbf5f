package eventstore

import (
	"sync"

	"github.com/kbukum/eventfeed/logger"
)

// Hub wakes subscribed cursors when events are appended. Wake-ups coalesce:
// a subscriber that has not consumed the previous one sees a single signal.
// Notify never blocks.
type Hub struct {
	mu      sync.Mutex
	subs    map[*Subscription]struct{}
	stopped bool
	log     *logger.Logger
}

// Subscription receives wake-ups from a Hub until it is closed or the hub
// stops.
type Subscription struct {
	hub  *Hub
	wake chan struct{}
	done chan struct{}
	once sync.Once
}

// NewHub creates a hub. A nil logger discards output.
func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		subs: make(map[*Subscription]struct{}),
		log:  log.WithComponent("hub"),
	}
}

// Subscribe registers a new subscription. Subscribing to a stopped hub
// returns a subscription that is already done.
func (h *Hub) Subscribe() *Subscription {
	s := &Subscription{
		hub:  h,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		s.once.Do(func() { close(s.done) })
		return s
	}
	h.subs[s] = struct{}{}
	h.log.Debug("Subscriber added", logger.Fields("subscribers", len(h.subs)))
	return s
}

// Notify wakes every subscriber.
func (h *Hub) Notify() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		select {
		case s.wake <- struct{}{}:
		default:
		}
	}
}

// Stop ends every subscription. Safe to call multiple times.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return
	}
	h.stopped = true
	for s := range h.subs {
		s.once.Do(func() { close(s.done) })
		delete(h.subs, s)
	}
	h.log.Debug("Hub stopped")
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Wake delivers a signal after each Notify.
func (s *Subscription) Wake() <-chan struct{} { return s.wake }

// Done is closed when the subscription ends.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Close unsubscribes. Safe to call multiple times.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	delete(s.hub.subs, s)
	s.hub.mu.Unlock()
	s.once.Do(func() { close(s.done) })
}
