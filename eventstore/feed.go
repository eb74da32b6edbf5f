package eventstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/eventfeed/errors"
	"github.com/kbukum/eventfeed/logger"
	"github.com/kbukum/eventfeed/observability"
	"github.com/kbukum/eventfeed/sse"
)

// FeedConfig tunes how cursors read from the store.
type FeedConfig struct {
	// BatchSize is the number of events fetched per store read.
	BatchSize int `yaml:"batch_size" mapstructure:"batch_size"`
	// PollInterval, when set, makes idle cursors re-read the store even
	// without a wake-up. Needed when appends can bypass the hub.
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
}

// ApplyDefaults sets the batch size.
func (c *FeedConfig) ApplyDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
}

// Validate checks the feed configuration.
func (c *FeedConfig) Validate() error {
	if c.BatchSize <= 0 || c.BatchSize > 10000 {
		return fmt.Errorf("batch_size must be between 1 and 10000 (got: %d)", c.BatchSize)
	}
	if c.PollInterval < 0 {
		return fmt.Errorf("poll_interval must not be negative")
	}
	return nil
}

// PublishObserver is told about every published event.
type PublishObserver interface {
	EventPublished(source string)
}

// Feed serves cursors over a Store and publishes new events into it.
type Feed struct {
	store    Store
	hub      *Hub
	cfg      FeedConfig
	log      *logger.Logger
	observer PublishObserver
}

var _ sse.Source = (*Feed)(nil)

// FeedOption configures a Feed.
type FeedOption func(*Feed)

// WithFeedLogger sets the feed logger.
func WithFeedLogger(l *logger.Logger) FeedOption {
	return func(f *Feed) { f.log = l.WithComponent("feed") }
}

// WithPublishObserver sets the observer told about published events.
func WithPublishObserver(o PublishObserver) FeedOption {
	return func(f *Feed) { f.observer = o }
}

// NewFeed creates a feed over store, woken by hub.
func NewFeed(store Store, hub *Hub, cfg FeedConfig, opts ...FeedOption) *Feed {
	cfg.ApplyDefaults()
	f := &Feed{store: store, hub: hub, cfg: cfg, log: logger.Nop()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Publish appends payload and wakes waiting cursors. source names the
// ingress path ("api", "kafka") for metrics.
func (f *Feed) Publish(ctx context.Context, source string, payload []byte) (sse.Event, error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanPublish, attribute.String(observability.AttrSource, source))

	ev, err := f.store.Append(ctx, payload)
	if err != nil {
		observability.EndSpan(span, err)
		f.log.Error("Event append failed", logger.Fields("source", source, logger.FieldError, err.Error()))
		if _, ok := errors.AsAppError(err); ok {
			return sse.Event{}, err
		}
		return sse.Event{}, errors.DatabaseError(err)
	}
	span.SetAttributes(attribute.String(observability.AttrEventID, ev.ID))
	observability.EndSpan(span, nil)

	f.hub.Notify()
	if f.observer != nil {
		f.observer.EventPublished(source)
	}
	f.log.Info("New event stored", logger.Fields(logger.FieldEventID, ev.ID, "source", source, "bytes", len(payload)))
	return ev, nil
}

// Stream implements sse.Source. lastEventID is rejected with an
// InvalidInput error when the store can tell it is malformed.
func (f *Feed) Stream(_ context.Context, lastEventID string) (sse.Cursor, error) {
	if v, ok := f.store.(IDValidator); ok && lastEventID != "" {
		if err := v.ValidateID(lastEventID); err != nil {
			return nil, errors.InvalidInput("Last-Event-ID", err.Error())
		}
	}
	return &cursor{
		feed:   f,
		sub:    f.hub.Subscribe(),
		lastID: lastEventID,
		closed: make(chan struct{}),
	}, nil
}

// cursor replays events after lastID and then follows appends. It
// subscribes before its first read so no append is missed in between.
type cursor struct {
	feed      *Feed
	sub       *Subscription
	lastID    string
	pending   []sse.Event
	closed    chan struct{}
	closeOnce sync.Once
}

func (c *cursor) Next(ctx context.Context) (sse.Event, error) {
	for {
		if len(c.pending) > 0 {
			ev := c.pending[0]
			c.pending = c.pending[1:]
			c.lastID = ev.ID
			return ev, nil
		}
		if err := ctx.Err(); err != nil {
			return sse.Event{}, err
		}
		select {
		case <-c.closed:
			return sse.Event{}, sse.ErrExhausted
		default:
		}

		// Consume any pending wake-up first: an append that lands after
		// this point signals again.
		select {
		case <-c.sub.Wake():
		default:
		}

		events, err := c.feed.store.ReadAfter(ctx, c.lastID, c.feed.cfg.BatchSize)
		if err != nil {
			if ctx.Err() != nil {
				return sse.Event{}, ctx.Err()
			}
			return sse.Event{}, fmt.Errorf("read events after %q: %w", c.lastID, err)
		}
		if len(events) > 0 {
			c.pending = events
			continue
		}

		if err := c.wait(ctx); err != nil {
			return sse.Event{}, err
		}
	}
}

func (c *cursor) wait(ctx context.Context) error {
	var poll <-chan time.Time
	if c.feed.cfg.PollInterval > 0 {
		timer := time.NewTimer(c.feed.cfg.PollInterval)
		defer timer.Stop()
		poll = timer.C
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.closed:
		return sse.ErrExhausted
	case <-c.sub.Done():
		return sse.ErrExhausted
	case <-c.sub.Wake():
	case <-poll:
	}
	return nil
}

func (c *cursor) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.sub.Close()
	})
	return nil
}
