package logger

import "time"

// Standard field keys.
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldTraceID     = "trace_id"
	FieldError       = "error"
	FieldDuration    = "duration_ms"
	FieldRemoteAddr  = "remote_addr"
	FieldEventID     = "event_id"
	FieldLastEventID = "last_event_id"
	FieldBackend     = "backend"
	FieldReason      = "reason"
)

// Fields builds a field map from alternating key-value pairs.
//
//	logger.Info("stored", logger.Fields("event_id", id, "bytes", n))
func Fields(kvs ...interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(kvs)/2)
	for i := 0; i < len(kvs)-1; i += 2 {
		if key, ok := kvs[i].(string); ok {
			m[key] = kvs[i+1]
		}
	}
	return m
}

// ErrorFields creates fields for an operation that failed.
func ErrorFields(op string, err error) map[string]interface{} {
	return map[string]interface{}{
		"operation": op,
		FieldError:  err.Error(),
	}
}

// DurationFields creates fields for a timed operation.
func DurationFields(op string, d time.Duration) map[string]interface{} {
	return map[string]interface{}{
		"operation":   op,
		FieldDuration: d.Milliseconds(),
	}
}
