// Package redisstore keeps the event log in a Redis stream and announces
// appends on a pub/sub channel so every instance can wake its cursors.
package redisstore

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kbukum/eventfeed/eventstore"
	"github.com/kbukum/eventfeed/logger"
	"github.com/kbukum/eventfeed/sse"
)

const payloadField = "payload"

// Config names the stream and channel and bounds the stream length.
type Config struct {
	Stream  string `mapstructure:"stream"`
	Channel string `mapstructure:"channel"`
	// MaxLen trims the stream to roughly this many entries. Zero keeps all.
	MaxLen int64 `mapstructure:"max_len"`
}

// ApplyDefaults sets the stream and channel names.
func (c *Config) ApplyDefaults() {
	if c.Stream == "" {
		c.Stream = "eventfeed:events"
	}
	if c.Channel == "" {
		c.Channel = "eventfeed:appended"
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.MaxLen < 0 {
		return fmt.Errorf("redis store: max_len must not be negative")
	}
	return nil
}

// Store is an eventstore.Store over a Redis stream. Event ids are Redis
// stream ids ("<ms>-<seq>").
type Store struct {
	rdb goredis.UniversalClient
	cfg Config
	log *logger.Logger
}

var (
	_ eventstore.Store       = (*Store)(nil)
	_ eventstore.IDValidator = (*Store)(nil)
)

// New creates a store.
func New(rdb goredis.UniversalClient, cfg Config, log *logger.Logger) *Store {
	cfg.ApplyDefaults()
	return &Store{rdb: rdb, cfg: cfg, log: log.WithComponent("redisstore")}
}

// Append adds payload to the stream and publishes its id.
func (s *Store) Append(ctx context.Context, payload []byte) (sse.Event, error) {
	args := &goredis.XAddArgs{
		Stream: s.cfg.Stream,
		Values: map[string]interface{}{payloadField: payload},
	}
	if s.cfg.MaxLen > 0 {
		args.MaxLen = s.cfg.MaxLen
		args.Approx = true
	}
	id, err := s.rdb.XAdd(ctx, args).Result()
	if err != nil {
		return sse.Event{}, fmt.Errorf("xadd %s: %w", s.cfg.Stream, err)
	}

	// The event is stored; a failed publish only delays remote cursors
	// until their next poll.
	if err := s.rdb.Publish(ctx, s.cfg.Channel, id).Err(); err != nil {
		s.log.Warn("Append notification failed", logger.Fields(logger.FieldEventID, id, logger.FieldError, err.Error()))
	}
	return sse.Event{ID: id, Payload: payload}, nil
}

// ReadAfter implements eventstore.Store.
func (s *Store) ReadAfter(ctx context.Context, afterID string, limit int) ([]sse.Event, error) {
	start := "-"
	if afterID != "" {
		next, err := successor(afterID)
		if err != nil {
			return nil, err
		}
		start = next
	}

	var msgs []goredis.XMessage
	var err error
	if limit > 0 {
		msgs, err = s.rdb.XRangeN(ctx, s.cfg.Stream, start, "+", int64(limit)).Result()
	} else {
		msgs, err = s.rdb.XRange(ctx, s.cfg.Stream, start, "+").Result()
	}
	if err != nil {
		return nil, fmt.Errorf("xrange %s: %w", s.cfg.Stream, err)
	}

	events := make([]sse.Event, 0, len(msgs))
	for _, m := range msgs {
		events = append(events, sse.Event{ID: m.ID, Payload: payloadOf(m)})
	}
	return events, nil
}

// ValidateID implements eventstore.IDValidator.
func (s *Store) ValidateID(id string) error {
	_, _, err := parseID(id)
	return err
}

func payloadOf(m goredis.XMessage) []byte {
	switch v := m.Values[payloadField].(type) {
	case string:
		return []byte(v)
	case []byte:
		return v
	default:
		return nil
	}
}

func parseID(id string) (ms, seq uint64, err error) {
	msPart, seqPart, ok := strings.Cut(id, "-")
	if !ok {
		return 0, 0, fmt.Errorf("%q is not a stream id", id)
	}
	if ms, err = strconv.ParseUint(msPart, 10, 64); err != nil {
		return 0, 0, fmt.Errorf("%q is not a stream id", id)
	}
	if seq, err = strconv.ParseUint(seqPart, 10, 64); err != nil {
		return 0, 0, fmt.Errorf("%q is not a stream id", id)
	}
	return ms, seq, nil
}

// successor returns the smallest stream id greater than id.
func successor(id string) (string, error) {
	ms, seq, err := parseID(id)
	if err != nil {
		return "", err
	}
	if seq == math.MaxUint64 {
		return strconv.FormatUint(ms+1, 10) + "-0", nil
	}
	return strconv.FormatUint(ms, 10) + "-" + strconv.FormatUint(seq+1, 10), nil
}
