package sse

import (
	"strconv"
	"strings"
	"time"
)

// EventName is the event field of every relayed frame.
const EventName = "event"

// Frame is the wire projection of an Event.
type Frame struct {
	Event string
	Data  string
	ID    string
	Retry time.Duration
}

// FrameFromEvent projects e onto a frame named EventName.
func FrameFromEvent(e Event) Frame {
	return Frame{Event: EventName, Data: string(e.Payload), ID: e.ID}
}

// AppendTo appends the encoded frame, including its terminating blank line,
// to b. Data is split on CR, LF and CRLF into one data line per line. An
// empty ID omits the id field.
func (f Frame) AppendTo(b []byte) ([]byte, error) {
	if !validField(f.Event) || !validField(f.ID) {
		return b, ErrInvalidField
	}
	if f.Retry > 0 {
		b = append(b, "retry: "...)
		b = strconv.AppendInt(b, f.Retry.Milliseconds(), 10)
		b = append(b, '\n')
	}
	if f.Event != "" {
		b = append(b, "event: "...)
		b = append(b, f.Event...)
		b = append(b, '\n')
	}
	if f.Event != "" || f.Data != "" {
		for _, line := range splitLines(f.Data) {
			b = append(b, "data: "...)
			b = append(b, line...)
			b = append(b, '\n')
		}
	}
	if f.ID != "" {
		b = append(b, "id: "...)
		b = append(b, f.ID...)
		b = append(b, '\n')
	}
	return append(b, '\n'), nil
}

// String returns the encoded frame, or "" when it cannot be encoded.
func (f Frame) String() string {
	b, err := f.AppendTo(nil)
	if err != nil {
		return ""
	}
	return string(b)
}

// AppendComment appends a comment frame. Comments are ignored by clients
// and keep idle connections alive through proxies.
func AppendComment(b []byte, text string) []byte {
	b = append(b, ": "...)
	b = append(b, strings.NewReplacer("\r", " ", "\n", " ").Replace(text)...)
	return append(b, '\n', '\n')
}

func validField(s string) bool {
	return !strings.ContainsAny(s, "\r\n\x00")
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\n':
			lines = append(lines, s[start:i])
			start = i + 1
		case '\r':
			lines = append(lines, s[start:i])
			if i+1 < len(s) && s[i+1] == '\n' {
				i++
			}
			start = i + 1
		}
	}
	return append(lines, s[start:])
}
