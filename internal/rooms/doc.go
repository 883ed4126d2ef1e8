// Package rooms tracks the single project room a connection belongs
// to.
//
// Join and leave commands are fire-and-forget; the server's
// project_joined and project_left acks are the source of truth for
// current membership. After a reconnect the subscriber re-issues the
// last join and blocks until the ack arrives, which is the barrier the
// connection manager waits on before accepting new sends.
//
// The protocol has no atomic room change, so Switch issues the leave
// and the join as one coordinated call instead of leaving that
// sequencing to callers.
package rooms
