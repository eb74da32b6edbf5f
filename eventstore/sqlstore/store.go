// Package sqlstore keeps the event log in a SQL table through GORM.
package sqlstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kbukum/eventfeed/eventstore"
	"github.com/kbukum/eventfeed/sse"
)

// Record is the row type of the events table.
type Record struct {
	ID        string    `gorm:"primaryKey;size:36"`
	Payload   []byte    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName implements gorm's tabler.
func (Record) TableName() string { return "events" }

// Store is an eventstore.Store over a GORM connection.
//
// Ids are UUIDv7 strings, so lexical order is append order. Appends are
// serialized so an id is never committed after a larger one; readers that
// have moved past an id would otherwise skip it. Keep one writing process
// per database.
type Store struct {
	db *gorm.DB
	mu sync.Mutex
}

var (
	_ eventstore.Store       = (*Store)(nil)
	_ eventstore.IDValidator = (*Store)(nil)
)

// New creates a store over db. The events table must exist; see Migrate.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the events table.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Record{}); err != nil {
		return fmt.Errorf("migrate events table: %w", err)
	}
	return nil
}

// Append implements eventstore.Store.
func (s *Store) Append(ctx context.Context, payload []byte) (sse.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := uuid.NewV7()
	if err != nil {
		return sse.Event{}, fmt.Errorf("create event id: %w", err)
	}
	rec := Record{ID: id.String(), Payload: payload, CreatedAt: time.Now().UTC()}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return sse.Event{}, fmt.Errorf("insert event: %w", err)
	}
	return sse.Event{ID: rec.ID, Payload: rec.Payload}, nil
}

// ReadAfter implements eventstore.Store.
func (s *Store) ReadAfter(ctx context.Context, afterID string, limit int) ([]sse.Event, error) {
	q := s.db.WithContext(ctx).Order("id ASC")
	if afterID != "" {
		q = q.Where("id > ?", afterID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var records []Record
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("select events: %w", err)
	}
	events := make([]sse.Event, len(records))
	for i, r := range records {
		events[i] = sse.Event{ID: r.ID, Payload: r.Payload}
	}
	return events, nil
}

// ValidateID implements eventstore.IDValidator.
func (s *Store) ValidateID(id string) error {
	return eventstore.ValidateUUID(id)
}

// Prune deletes events created before cutoff and returns how many went.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("created_at < ?", cutoff.UTC()).Delete(&Record{})
	if res.Error != nil {
		return 0, fmt.Errorf("prune events: %w", res.Error)
	}
	return res.RowsAffected, nil
}
