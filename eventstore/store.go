package eventstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/kbukum/eventfeed/sse"
)

// DefaultBatchSize is the number of events a cursor reads per round trip.
const DefaultBatchSize = 40

// Store is an append-only, id-ordered event log.
type Store interface {
	// Append stores payload under a new id greater than every id before it.
	Append(ctx context.Context, payload []byte) (sse.Event, error)

	// ReadAfter returns up to limit events whose id is strictly greater than
	// afterID, in ascending order. An empty afterID reads from the start.
	ReadAfter(ctx context.Context, afterID string, limit int) ([]sse.Event, error)
}

// IDValidator is implemented by stores that can tell a malformed resume id
// apart from one that is merely unknown.
type IDValidator interface {
	ValidateID(id string) error
}

// Notifier is woken after every append.
type Notifier interface {
	Notify()
}

// ValidateUUID accepts only the canonical lowercase hyphenated form the
// UUID stores write. Ids are compared as strings, so an uppercase, braced
// or urn: spelling of a stored id would not seek to it.
func ValidateUUID(id string) error {
	u, err := uuid.Parse(id)
	if err != nil || u.String() != id {
		return fmt.Errorf("%q is not an event id", id)
	}
	return nil
}
