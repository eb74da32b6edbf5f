package sse

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/eventfeed/errors"
	"github.com/kbukum/eventfeed/logger"
	"github.com/kbukum/eventfeed/observability"
)

// Handler streams events from a Source to authorized clients.
type Handler struct {
	source   Source
	auth     Authorizer
	log      *logger.Logger
	observer Observer

	keepAlive    time.Duration
	retry        time.Duration
	writeTimeout time.Duration
}

// NewHandler creates a Handler. A nil Authorizer rejects every request and a
// nil Source answers every authorized request with 503.
func NewHandler(source Source, auth Authorizer, opts ...Option) *Handler {
	h := &Handler{
		source:   source,
		auth:     auth,
		log:      logger.Nop(),
		observer: NopObserver{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type pulled struct {
	event Event
	err   error
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.auth == nil || !h.auth.IsAccessTokenValid(r) {
		h.observer.StreamRejected()
		h.log.Debug("Stream rejected", logger.Fields(logger.FieldRemoteAddr, r.RemoteAddr, logger.FieldReason, errors.NotAuthenticatedMessage))
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, errors.NotAuthenticatedMessage)
		return
	}

	if h.source == nil {
		h.observer.StreamRefused()
		h.log.Error("Stream handler has no event source")
		writeAppError(w, errors.ServiceUnavailable("event source"))
		return
	}

	if !canFlush(w) {
		h.log.Error("Streaming not supported by response writer")
		writeAppError(w, errors.Internal(http.ErrNotSupported))
		return
	}

	lastEventID := r.Header.Get("Last-Event-ID")
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	ctx, span := observability.StartSpan(ctx, observability.SpanStream,
		attribute.String(observability.AttrLastEventID, lastEventID))

	cursor, err := h.source.Stream(ctx, lastEventID)
	if err != nil {
		appErr, ok := errors.AsAppError(err)
		if !ok {
			appErr = errors.StreamError(err)
		}
		h.observer.StreamRefused()
		h.log.Warn("Event source refused stream", logger.Fields(logger.FieldLastEventID, lastEventID, logger.FieldError, err.Error()))
		writeAppError(w, appErr)
		observability.EndSpan(span, err)
		return
	}

	log := h.log.WithFields(logger.Fields(
		logger.FieldRemoteAddr, r.RemoteAddr,
		logger.FieldLastEventID, lastEventID,
		logger.FieldTraceID, observability.TraceID(ctx),
	))

	start := time.Now()
	h.observer.StreamOpened()
	term, frames, streamErr := h.stream(ctx, w, cursor, log)

	// The pump has exited by now; the cursor is no longer in use.
	if err := cursor.Close(); err != nil {
		log.Warn("Cursor close failed", logger.Fields(logger.FieldError, err.Error()))
	}
	h.observer.StreamClosed(term)

	span.SetAttributes(
		attribute.Int(observability.AttrFrames, frames),
		attribute.String(observability.AttrTermination, string(term)),
	)
	observability.EndSpan(span, streamErr)

	fields := logger.Fields("termination", string(term), "frames", frames, logger.FieldDuration, time.Since(start).Milliseconds())
	if streamErr != nil {
		fields[logger.FieldError] = streamErr.Error()
		log.Warn("Stream terminated", fields)
		return
	}
	log.Debug("Stream closed", fields)
}

// stream writes frames until the cursor ends or ctx is done. It returns only
// after the pump goroutine has exited.
func (h *Handler) stream(ctx context.Context, w http.ResponseWriter, cursor Cursor, log *logger.Logger) (Termination, int, error) {
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !stderrors.Is(err, http.ErrNotSupported) {
		log.Warn("Could not disable write deadline", logger.Fields(logger.FieldError, err.Error()))
	}

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	var buf []byte
	if h.retry > 0 {
		buf, _ = Frame{Retry: h.retry}.AppendTo(buf)
	}
	if err := h.write(rc, w, buf); err != nil {
		return TerminationDisconnected, 0, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	next := make(chan struct{}, 1)
	results := make(chan pulled)
	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		pump(ctx, cursor, next, results)
	}()
	defer func() {
		cancel()
		<-pumpDone
	}()

	var keepAlive <-chan time.Time
	if h.keepAlive > 0 {
		ticker := time.NewTicker(h.keepAlive)
		defer ticker.Stop()
		keepAlive = ticker.C
	}

	frames := 0
	next <- struct{}{}
	for {
		select {
		case <-ctx.Done():
			return TerminationDisconnected, frames, nil

		case <-keepAlive:
			if err := h.write(rc, w, AppendComment(buf[:0], "keepalive")); err != nil {
				return TerminationDisconnected, frames, nil
			}

		case p, ok := <-results:
			if !ok {
				return TerminationDisconnected, frames, nil
			}
			if p.err != nil {
				switch {
				case stderrors.Is(p.err, ErrExhausted):
					return TerminationExhausted, frames, nil
				case ctx.Err() != nil:
					return TerminationDisconnected, frames, nil
				default:
					return TerminationErrored, frames, p.err
				}
			}

			encoded, err := FrameFromEvent(p.event).AppendTo(buf[:0])
			if err != nil {
				log.Error("Event cannot be framed", logger.Fields(logger.FieldEventID, p.event.ID, logger.FieldError, err.Error()))
				return TerminationErrored, frames, err
			}
			buf = encoded
			if err := h.write(rc, w, buf); err != nil {
				return TerminationDisconnected, frames, nil
			}
			frames++
			h.observer.FrameSent(len(buf))
			next <- struct{}{}
		}
	}
}

// pump performs one pull per token received on next, so at most one pull is
// ever in flight and none starts after the handler stops asking.
func pump(ctx context.Context, cursor Cursor, next <-chan struct{}, out chan<- pulled) {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return
		case <-next:
		}
		if ctx.Err() != nil {
			return
		}
		ev, err := cursor.Next(ctx)
		select {
		case out <- pulled{event: ev, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

// write sends one encoded frame with a single Write followed by a Flush.
func (h *Handler) write(rc *http.ResponseController, w http.ResponseWriter, frame []byte) error {
	if h.writeTimeout > 0 {
		_ = rc.SetWriteDeadline(time.Now().Add(h.writeTimeout))
	}
	if len(frame) > 0 {
		if _, err := w.Write(frame); err != nil {
			return err
		}
	}
	return rc.Flush()
}

func canFlush(w http.ResponseWriter) bool {
	for {
		switch t := w.(type) {
		case http.Flusher:
			return true
		case interface{ Unwrap() http.ResponseWriter }:
			w = t.Unwrap()
		default:
			return false
		}
	}
}

func writeAppError(w http.ResponseWriter, appErr *errors.AppError) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(appErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(appErr.ToResponse())
}
