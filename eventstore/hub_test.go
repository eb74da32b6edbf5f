package eventstore

import (
	"testing"
	"time"
)

func TestHub_NotifyCoalesces(t *testing.T) {
	h := NewHub(nil)
	s := h.Subscribe()
	defer s.Close()

	h.Notify()
	h.Notify()
	h.Notify()

	select {
	case <-s.Wake():
	case <-time.After(time.Second):
		t.Fatal("expected a wake-up")
	}
	select {
	case <-s.Wake():
		t.Fatal("wake-ups should coalesce into one")
	default:
	}
}

func TestHub_CloseUnsubscribes(t *testing.T) {
	h := NewHub(nil)
	a := h.Subscribe()
	b := h.Subscribe()
	if h.Subscribers() != 2 {
		t.Fatalf("expected 2 subscribers, got %d", h.Subscribers())
	}
	a.Close()
	a.Close()
	if h.Subscribers() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", h.Subscribers())
	}
	select {
	case <-a.Done():
	default:
		t.Error("closed subscription should be done")
	}
	b.Close()
}

func TestHub_StopEndsSubscriptions(t *testing.T) {
	h := NewHub(nil)
	s := h.Subscribe()
	h.Stop()
	h.Stop()

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("subscription not ended by Stop")
	}
	s.Close()

	late := h.Subscribe()
	select {
	case <-late.Done():
	default:
		t.Error("subscription to a stopped hub should be done")
	}
	if h.Subscribers() != 0 {
		t.Errorf("expected no subscribers, got %d", h.Subscribers())
	}
}
