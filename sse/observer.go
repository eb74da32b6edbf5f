package sse

// Termination is how an accepted stream ended.
type Termination string

// Termination values, also used as metric labels.
const (
	TerminationExhausted    Termination = "exhausted"
	TerminationDisconnected Termination = "disconnected"
	TerminationErrored      Termination = "errored"
)

// Observer receives stream lifecycle notifications. Implementations must be
// safe for concurrent use; every connection calls them from its own goroutine.
//
// StreamRejected reports a failed authorization. StreamRefused reports an
// authorized request the Source would not serve, such as a bad resume id.
type Observer interface {
	StreamRejected()
	StreamRefused()
	StreamOpened()
	FrameSent(bytes int)
	StreamClosed(t Termination)
}

// NopObserver ignores all notifications.
type NopObserver struct{}

func (NopObserver) StreamRejected() {}
func (NopObserver) StreamRefused() {}
func (NopObserver) StreamOpened() {}
func (NopObserver) FrameSent(int) {}
func (NopObserver) StreamClosed(Termination) {}
