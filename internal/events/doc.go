// Package events provides the typed pub/sub bus every part of the
// realtime client fans out through: connection status transitions,
// streamed tokens, room acks, and forwarded project broadcasts.
//
// Subscriptions are scoped objects; Cancel is idempotent and safe to
// call from inside the handler itself. Publish runs handlers
// synchronously on the caller's goroutine, so events dispatched from
// the single websocket read loop keep their wire order.
//
// The connection-status kind replays its latest value to new
// subscribers so late-mounting consumers never show a stale default.
package events
