// Package rest is the HTTP collaborator consumed around a streaming
// session: creating a chat before the first send and fetching message
// history on chat open.
//
// Built on go-resty with a retryable transport, a rate limiter, and a
// circuit breaker, so backend outages fail fast instead of stacking
// timeouts while the realtime channel reconnects on its own schedule.
//
// Persistence of streamed answers is server-side; nothing here writes
// a finalized assistant message back.
package rest
