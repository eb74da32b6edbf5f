// Package sse serves a resumable server-sent events stream over HTTP.
//
// A Handler checks the request's access credential, opens a Cursor on a
// Source at the client's Last-Event-ID, and relays every Event it pulls as
// one frame:
//
//	event: event
//	data: <payload line>
//	id: <event id>
//
// Frames are written whole or not at all. The stream ends when the cursor
// is exhausted or fails, or when the client goes away.
package sse
