package redisstore

import (
	"context"
	"fmt"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kbukum/eventfeed/component"
	"github.com/kbukum/eventfeed/eventstore"
	"github.com/kbukum/eventfeed/logger"
)

// Listener forwards append notifications from the Redis channel to a
// Notifier, so cursors on this instance see appends made by any instance.
type Listener struct {
	rdb      goredis.UniversalClient
	channel  string
	notifier eventstore.Notifier
	log      *logger.Logger

	mu      sync.Mutex
	pubsub  *goredis.PubSub
	done    chan struct{}
	running bool
}

var _ component.Component = (*Listener)(nil)

// NewListener creates a listener on cfg.Channel.
func NewListener(rdb goredis.UniversalClient, cfg Config, notifier eventstore.Notifier, log *logger.Logger) *Listener {
	cfg.ApplyDefaults()
	return &Listener{
		rdb:      rdb,
		channel:  cfg.Channel,
		notifier: notifier,
		log:      log.WithComponent("redis-listener"),
	}
}

// Name implements component.Component.
func (l *Listener) Name() string { return "redis-listener" }

// Start subscribes and waits for the subscription to be confirmed.
func (l *Listener) Start(ctx context.Context) error {
	ps := l.rdb.Subscribe(ctx, l.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return fmt.Errorf("subscribe %s: %w", l.channel, err)
	}

	l.mu.Lock()
	l.pubsub = ps
	l.done = make(chan struct{})
	l.running = true
	l.mu.Unlock()

	go l.forward(ps.Channel(), l.done)
	l.log.Info("Listening for appends", logger.Fields("channel", l.channel))
	return nil
}

func (l *Listener) forward(msgs <-chan *goredis.Message, done chan struct{}) {
	defer close(done)
	for msg := range msgs {
		l.notifier.Notify()
		l.log.Debug("Append notification", logger.Fields(logger.FieldEventID, msg.Payload))
	}
	l.mu.Lock()
	l.running = false
	l.mu.Unlock()
}

// Stop unsubscribes and waits for the forwarding loop to end.
func (l *Listener) Stop(context.Context) error {
	l.mu.Lock()
	ps, done := l.pubsub, l.done
	l.pubsub = nil
	l.mu.Unlock()
	if ps == nil {
		return nil
	}
	err := ps.Close()
	<-done
	return err
}

// Health reports whether the forwarding loop is running.
func (l *Listener) Health(context.Context) component.Health {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.running {
		return component.Health{Name: l.Name(), Status: component.StatusUnhealthy, Message: "not subscribed"}
	}
	return component.Health{Name: l.Name(), Status: component.StatusHealthy}
}
