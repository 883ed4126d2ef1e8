// Package client owns the persistent WebSocket connection to the
// DocChat backend: the connection state machine, bounded reconnection,
// ping health checks, and dispatch of inbound protocol events onto the
// shared bus.
//
// One Client maps to one connection. Instances are constructed and
// injected explicitly; there is no package-level singleton, so tests
// and multi-backend setups can hold several clients side by side.
//
// Status transitions:
//
//	disconnected -(Connect)-> connecting -(handshake ok)-> connected
//	connected -(network drop)-> disconnected -> reconnecting -> connected
//	connecting/reconnecting -(attempt cap exhausted)-> error
//
// After a drop the last room join is re-issued and its ack awaited
// before the connected status is published, so a send accepted after
// reconnect can never race the rejoin.
package client
