package sse

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	apperrors "github.com/kbukum/eventfeed/errors"
)

type recordingObserver struct {
	mu       sync.Mutex
	rejected int
	refused  int
	opened   int
	frames   int
	bytes    int
	closed   []Termination
}

func (o *recordingObserver) StreamRejected() {
	o.mu.Lock()
	o.rejected++
	o.mu.Unlock()
}

func (o *recordingObserver) StreamRefused() {
	o.mu.Lock()
	o.refused++
	o.mu.Unlock()
}

func (o *recordingObserver) StreamOpened() {
	o.mu.Lock()
	o.opened++
	o.mu.Unlock()
}

func (o *recordingObserver) FrameSent(n int) {
	o.mu.Lock()
	o.frames++
	o.bytes += n
	o.mu.Unlock()
}

func (o *recordingObserver) StreamClosed(t Termination) {
	o.mu.Lock()
	o.closed = append(o.closed, t)
	o.mu.Unlock()
}

func (o *recordingObserver) terminations() []Termination {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Termination(nil), o.closed...)
}

// countingCursor yields its events and then blocks until ctx is done.
type countingCursor struct {
	mu     sync.Mutex
	events []Event
	err    error
	pulls  int
	closes int
	pulled chan int
}

func newCountingCursor(events ...Event) *countingCursor {
	return &countingCursor{events: events, pulled: make(chan int, 64)}
}

func (c *countingCursor) Next(ctx context.Context) (Event, error) {
	c.mu.Lock()
	c.pulls++
	n := c.pulls
	var ev Event
	have := len(c.events) > 0
	if have {
		ev = c.events[0]
		c.events = c.events[1:]
	}
	err := c.err
	c.mu.Unlock()
	c.pulled <- n

	if have {
		return ev, nil
	}
	if err != nil {
		return Event{}, err
	}
	<-ctx.Done()
	return Event{}, ctx.Err()
}

func (c *countingCursor) Close() error {
	c.mu.Lock()
	c.closes++
	c.mu.Unlock()
	return nil
}

func (c *countingCursor) stats() (pulls, closes int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pulls, c.closes
}

func denyAll(*http.Request) bool { return false }

func TestHandler_RejectsInvalidCredential(t *testing.T) {
	called := false
	src := SourceFunc(func(context.Context, string) (Cursor, error) {
		called = true
		return NewSliceCursor(), nil
	})
	obs := &recordingObserver{}
	h := NewHandler(src, AuthorizerFunc(denyAll), WithObserver(obs))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req.Header.Set("Last-Event-ID", "42")
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if rec.Body.String() != "not authenticated" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("unexpected content type %q", ct)
	}
	if called {
		t.Error("source must not be invoked for a rejected request")
	}
	if obs.rejected != 1 || obs.opened != 0 {
		t.Errorf("unexpected observer counts: %+v", obs)
	}
}

func TestHandler_NilAuthorizerRejects(t *testing.T) {
	h := NewHandler(SourceFunc(func(context.Context, string) (Cursor, error) {
		t.Fatal("source invoked")
		return nil, nil
	}), nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestHandler_NilSourceUnavailable(t *testing.T) {
	obs := &recordingObserver{}
	h := NewHandler(nil, AllowAll, WithObserver(obs))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if obs.refused != 1 || obs.opened != 0 {
		t.Errorf("unexpected observer counts: %+v", obs)
	}

	rec = httptest.NewRecorder()
	NewHandler(nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("authorization must run first: got %d", rec.Code)
	}
}

func TestHandler_PassesLastEventIDUnmodified(t *testing.T) {
	for _, id := range []string{"", "42", " spaced id ", "018f3c9e-7b2a-7c00-8000-000000000000", "1700000000000-3"} {
		t.Run(fmt.Sprintf("%q", id), func(t *testing.T) {
			var got *string
			src := SourceFunc(func(_ context.Context, lastEventID string) (Cursor, error) {
				got = &lastEventID
				return NewSliceCursor(), nil
			})
			req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
			if id != "" {
				req.Header["Last-Event-Id"] = []string{id}
			}
			NewHandler(src, AllowAll).ServeHTTP(httptest.NewRecorder(), req)

			if got == nil {
				t.Fatal("source not invoked")
			}
			if *got != id {
				t.Errorf("got %q, want %q", *got, id)
			}
		})
	}
}

func TestHandler_LowercaseHeaderOverTheWire(t *testing.T) {
	ids := make(chan string, 1)
	src := SourceFunc(func(_ context.Context, lastEventID string) (Cursor, error) {
		ids <- lastEventID
		return NewSliceCursor(), nil
	})
	srv := httptest.NewServer(NewHandler(src, AllowAll))
	defer srv.Close()

	conn, err := net.Dial("tcp", srv.Listener.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = conn.Close() }()
	_, _ = io.WriteString(conn, "GET /api/events HTTP/1.1\r\nHost: test\r\nlast-event-id: 42\r\n\r\n")

	resp, err := http.ReadResponse(bufio.NewReader(conn), nil)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	if got := <-ids; got != "42" {
		t.Errorf("got %q, want 42", got)
	}
}

func TestHandler_StreamsFramesUntilExhausted(t *testing.T) {
	cursor := NewSliceCursor(
		Event{ID: "1", Payload: []byte("first")},
		Event{ID: "2", Payload: []byte("line one\nline two")},
		Event{ID: "3", Payload: []byte(`{"kind":"created"}`)},
	)
	obs := &recordingObserver{}
	h := NewHandler(SourceFunc(func(context.Context, string) (Cursor, error) { return cursor, nil }), AllowAll, WithObserver(obs))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	for header, want := range map[string]string{
		"Content-Type":      "text/event-stream",
		"Cache-Control":     "no-cache",
		"Connection":        "keep-alive",
		"X-Accel-Buffering": "no",
	} {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}

	want := "event: event\ndata: first\nid: 1\n\n" +
		"event: event\ndata: line one\ndata: line two\nid: 2\n\n" +
		"event: event\ndata: {\"kind\":\"created\"}\nid: 3\n\n"
	if rec.Body.String() != want {
		t.Errorf("body mismatch\n got: %q\nwant: %q", rec.Body.String(), want)
	}
	if !cursor.Closed() {
		t.Error("cursor not closed")
	}
	if obs.frames != 3 || obs.bytes != len(want) {
		t.Errorf("observer saw %d frames / %d bytes", obs.frames, obs.bytes)
	}
	if got := obs.terminations(); len(got) != 1 || got[0] != TerminationExhausted {
		t.Errorf("unexpected terminations %v", got)
	}
}

func TestHandler_FrameMatchesEvent(t *testing.T) {
	events := []Event{
		{ID: "a", Payload: []byte("x")},
		{ID: "0190b1c2-0000-7000-8000-000000000001", Payload: []byte("y z")},
		{ID: "1700000000000-0", Payload: []byte("")},
	}
	h := NewHandler(SourceFunc(func(context.Context, string) (Cursor, error) {
		return NewSliceCursor(events...), nil
	}), AllowAll)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	frames := parseFrames(t, rec.Body.String())
	if len(frames) != len(events) {
		t.Fatalf("expected %d frames, got %d", len(events), len(frames))
	}
	for i, f := range frames {
		if f.Event != "event" || f.ID != events[i].ID || f.Data != string(events[i].Payload) {
			t.Errorf("frame %d = %+v, event = %+v", i, f, events[i])
		}
	}
}

func TestHandler_PingScenarioKeepsConnectionOpen(t *testing.T) {
	cursor := newCountingCursor(Event{ID: "43", Payload: []byte("ping")})
	ids := make(chan string, 1)
	src := SourceFunc(func(_ context.Context, lastEventID string) (Cursor, error) {
		ids <- lastEventID
		return cursor, nil
	})
	srv := httptest.NewServer(NewHandler(src, AllowAll))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	req.Header.Set("last-event-id", "42")
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if got := <-ids; got != "42" {
		t.Fatalf("resume token %q", got)
	}
	frame, err := readRawFrame(bufio.NewReader(resp.Body))
	if err != nil {
		t.Fatal(err)
	}
	if frame != "event: event\ndata: ping\nid: 43\n\n" {
		t.Fatalf("unexpected frame %q", frame)
	}

	// The second pull blocks; the stream stays open.
	waitForPull(t, cursor, 2)
	if _, closes := cursor.stats(); closes != 0 {
		t.Fatal("cursor closed while the client is connected")
	}

	cancel()
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, closes := cursor.stats(); closes == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("cursor not closed after client disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHandler_NoPullAfterDisconnect(t *testing.T) {
	cursor := newCountingCursor(
		Event{ID: "1", Payload: []byte("a")},
		Event{ID: "2", Payload: []byte("b")},
	)
	obs := &recordingObserver{}
	h := NewHandler(SourceFunc(func(context.Context, string) (Cursor, error) { return cursor, nil }), AllowAll, WithObserver(obs))

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		h.ServeHTTP(rec, req)
		close(done)
	}()

	waitForPull(t, cursor, 3)
	cancel()
	<-done

	pulls, closes := cursor.stats()
	if pulls != 3 {
		t.Errorf("expected 3 pulls, got %d", pulls)
	}
	if closes != 1 {
		t.Errorf("expected cursor closed once, got %d", closes)
	}
	if got := len(parseFrames(t, rec.Body.String())); got != 2 {
		t.Errorf("expected 2 frames, got %d", got)
	}
	if got := obs.terminations(); len(got) != 1 || got[0] != TerminationDisconnected {
		t.Errorf("unexpected terminations %v", got)
	}
}

func TestHandler_CursorErrorEndsStream(t *testing.T) {
	cursor := newCountingCursor(Event{ID: "1", Payload: []byte("a")})
	cursor.err = errors.New("backend went away")
	obs := &recordingObserver{}
	h := NewHandler(SourceFunc(func(context.Context, string) (Cursor, error) { return cursor, nil }), AllowAll, WithObserver(obs))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Body.String() != "event: event\ndata: a\nid: 1\n\n" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
	if _, closes := cursor.stats(); closes != 1 {
		t.Error("cursor not closed")
	}
	if got := obs.terminations(); len(got) != 1 || got[0] != TerminationErrored {
		t.Errorf("unexpected terminations %v", got)
	}
}

func TestHandler_UnframeableEventIsNotWritten(t *testing.T) {
	cursor := NewSliceCursor(
		Event{ID: "1", Payload: []byte("ok")},
		Event{ID: "2\nevent: spoofed", Payload: []byte("bad")},
		Event{ID: "3", Payload: []byte("never")},
	)
	obs := &recordingObserver{}
	h := NewHandler(SourceFunc(func(context.Context, string) (Cursor, error) { return cursor, nil }), AllowAll, WithObserver(obs))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Body.String() != "event: event\ndata: ok\nid: 1\n\n" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
	if got := obs.terminations(); len(got) != 1 || got[0] != TerminationErrored {
		t.Errorf("unexpected terminations %v", got)
	}
}

func TestHandler_SourceErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   apperrors.ErrorCode
	}{
		{"invalid resume token", apperrors.InvalidInput("Last-Event-ID", "unknown event id"), http.StatusBadRequest, apperrors.ErrCodeInvalidInput},
		{"plain error", errors.New("connection refused"), http.StatusServiceUnavailable, apperrors.ErrCodeStreamError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := &recordingObserver{}
			h := NewHandler(SourceFunc(func(context.Context, string) (Cursor, error) { return nil, tt.err }), AllowAll, WithObserver(obs))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rec.Code)
			}
			if obs.refused != 1 || obs.rejected != 0 {
				t.Errorf("source errors must count as refused: %+v", obs)
			}
			var body apperrors.ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Error.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, body.Error.Code)
			}
		})
	}
}

func TestHandler_RetryAndKeepAlive(t *testing.T) {
	cursor := newCountingCursor()
	h := NewHandler(SourceFunc(func(context.Context, string) (Cursor, error) { return cursor, nil }), AllowAll,
		WithRetry(3*time.Second), WithKeepAlive(10*time.Millisecond))

	srv := httptest.NewServer(h)
	defer srv.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()

	r := bufio.NewReader(resp.Body)
	first, err := readRawFrame(r)
	if err != nil {
		t.Fatal(err)
	}
	if first != "retry: 3000\n\n" {
		t.Errorf("unexpected first frame %q", first)
	}
	second, err := readRawFrame(r)
	if err != nil {
		t.Fatal(err)
	}
	if second != ": keepalive\n\n" {
		t.Errorf("unexpected keep-alive frame %q", second)
	}
}

func waitForPull(t *testing.T, c *countingCursor, n int) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case got := <-c.pulled:
			if got >= n {
				return
			}
		case <-timeout:
			t.Fatalf("timed out waiting for pull %d", n)
		}
	}
}

func readRawFrame(r *bufio.Reader) (string, error) {
	var sb strings.Builder
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return sb.String(), err
		}
		sb.WriteString(line)
		if line == "\n" {
			return sb.String(), nil
		}
	}
}

// parseFrames decodes an event stream the way a browser does.
func parseFrames(t *testing.T, body string) []Frame {
	t.Helper()
	var frames []Frame
	var cur Frame
	var data []string
	for _, line := range strings.Split(body, "\n") {
		if line == "" {
			if cur.Event != "" || data != nil {
				cur.Data = strings.Join(data, "\n")
				frames = append(frames, cur)
			}
			cur, data = Frame{}, nil
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			cur.Event = value
		case "data":
			data = append(data, value)
		case "id":
			cur.ID = value
		case "", "retry":
		default:
			t.Fatalf("unexpected field %q", field)
		}
	}
	return frames
}
