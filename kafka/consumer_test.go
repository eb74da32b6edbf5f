package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	apperrors "github.com/kbukum/eventfeed/errors"
	"github.com/kbukum/eventfeed/logger"
	"github.com/kbukum/eventfeed/sse"
)

type fakeReader struct {
	msgs chan kafkago.Message

	mu         sync.Mutex
	committed  []int64
	commitErrs []error
	closed     bool
}

func newFakeReader(values ...string) *fakeReader {
	r := &fakeReader{msgs: make(chan kafkago.Message, len(values))}
	for i, v := range values {
		r.msgs <- kafkago.Message{Topic: "events", Offset: int64(i), Value: []byte(v)}
	}
	return r
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafkago.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.commitErrs) > 0 {
		err := r.commitErrs[0]
		r.commitErrs = r.commitErrs[1:]
		return err
	}
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

type fakePublisher struct {
	mu       sync.Mutex
	payloads []string
	errs     []error
}

func (p *fakePublisher) Publish(_ context.Context, source string, payload []byte) (sse.Event, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if source != Source {
		return sse.Event{}, errors.New("unexpected source " + source)
	}
	if len(p.errs) > 0 {
		err := p.errs[0]
		p.errs = p.errs[1:]
		return sse.Event{}, err
	}
	p.payloads = append(p.payloads, string(payload))
	return sse.Event{ID: "id", Payload: payload}, nil
}

func (p *fakePublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.payloads...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestConsumer_PublishesAndCommits(t *testing.T) {
	reader := newFakeReader(`{"n":1}`, `not json`, `{"n":2}`)
	pub := &fakePublisher{}
	c := NewConsumerWithReader(reader, pub, "events", logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- c.Consume(ctx) }()

	waitFor(t, func() bool { return len(reader.commits()) == 3 })
	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("Consume() = %v", err)
	}

	got := pub.published()
	if len(got) != 2 || got[0] != `{"n":1}` || got[1] != `{"n":2}` {
		t.Fatalf("published = %v", got)
	}
	if c.Consumed() != 2 {
		t.Errorf("Consumed() = %d", c.Consumed())
	}
}

func TestConsumer_RetriesRetryableErrors(t *testing.T) {
	reader := newFakeReader(`{"n":1}`)
	pub := &fakePublisher{errs: []error{apperrors.DatabaseError(errors.New("locked"))}}
	c := NewConsumerWithReader(reader, pub, "events", logger.Nop())
	c.maxBackoff = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.Consume(ctx) }()

	waitFor(t, func() bool { return len(reader.commits()) == 1 })
	if got := pub.published(); len(got) != 1 {
		t.Fatalf("published = %v", got)
	}
	waitFor(t, func() bool { return c.Failures() == 0 })
}

func TestConsumer_CommitResetsFailures(t *testing.T) {
	tests := []struct {
		name       string
		publishErr []error
		commitErr  []error
	}{
		{"dropped after retry", []error{apperrors.DatabaseError(errors.New("locked")), apperrors.PayloadTooLarge(1)}, nil},
		{"commit retried", nil, []error{errors.New("coordinator moved"), errors.New("coordinator moved")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := newFakeReader(`{"n":1}`)
			reader.commitErrs = tt.commitErr
			pub := &fakePublisher{errs: tt.publishErr}
			c := NewConsumerWithReader(reader, pub, "events", logger.Nop())
			c.maxBackoff = 10 * time.Millisecond

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go func() { _ = c.Consume(ctx) }()

			waitFor(t, func() bool { return len(reader.commits()) == 1 })
			waitFor(t, func() bool { return c.Failures() == 0 })
		})
	}
}

func TestConsumer_DropsRejectedMessages(t *testing.T) {
	reader := newFakeReader(`{"n":1}`, `{"n":2}`)
	pub := &fakePublisher{errs: []error{apperrors.PayloadTooLarge(1)}}
	c := NewConsumerWithReader(reader, pub, "events", logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.Consume(ctx) }()

	waitFor(t, func() bool { return len(reader.commits()) == 2 })
	if got := pub.published(); len(got) != 1 || got[0] != `{"n":2}` {
		t.Fatalf("published = %v", got)
	}
}

func TestComponent_Lifecycle(t *testing.T) {
	reader := newFakeReader(`{"n":1}`)
	pub := &fakePublisher{}
	comp := NewComponent(NewConsumerWithReader(reader, pub, "events", logger.Nop()), []string{"localhost:9092"}, logger.Nop())

	ctx := context.Background()
	if h := comp.Health(ctx); h.Status != "unhealthy" {
		t.Errorf("health before start = %s", h.Status)
	}
	if err := comp.Start(ctx); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return len(pub.published()) == 1 })
	if h := comp.Health(ctx); h.Status != "healthy" {
		t.Errorf("health = %s", h.Status)
	}
	if err := comp.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	if !reader.closed {
		t.Error("reader not closed")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"disabled skips checks", Config{Enabled: false, DialTimeout: "bogus"}, false},
		{"defaults", Config{Enabled: true}, false},
		{"bad duration", Config{Enabled: true, SessionTimeout: "x"}, true},
		{"sasl no user", Config{Enabled: true, EnableSASL: true}, true},
		{"bad mechanism", Config{Enabled: true, EnableSASL: true, SASLMechanism: "GSSAPI", Username: "u"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.ApplyDefaults()
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateDialer_SASL(t *testing.T) {
	for _, mech := range []string{"PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512"} {
		cfg := Config{Enabled: true, EnableSASL: true, SASLMechanism: mech, Username: "u", Password: "p"}
		cfg.ApplyDefaults()
		d, err := CreateDialer(&cfg)
		if err != nil {
			t.Fatalf("%s: %v", mech, err)
		}
		if d.SASLMechanism == nil {
			t.Errorf("%s: mechanism not set", mech)
		}
	}
}

func TestCreateDialer_MissingCAFile(t *testing.T) {
	cfg := Config{EnableTLS: true, TLSCAFile: "/nonexistent/ca.pem"}
	cfg.ApplyDefaults()
	if _, err := CreateDialer(&cfg); err == nil {
		t.Fatal("expected error for missing CA file")
	}
}
