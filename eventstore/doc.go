// Package eventstore is the append-only event log behind the stream.
//
// A Store persists events and reads them back in id order. A Hub wakes
// waiting readers when something is appended. A Feed ties the two together
// and implements sse.Source: every cursor it opens replays the events after
// the client's resume id and then follows new appends.
//
// Backends live in subpackages: sqlstore (GORM over SQLite) and redisstore
// (Redis streams). MemoryStore is the in-process backend.
package eventstore
