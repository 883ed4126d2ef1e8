// Package resilience provides a circuit breaker guarding the REST
// collaborator calls made around a chat session.
//
// The realtime channel has its own bounded reconnect policy; REST
// calls (chat creation, history fetch) instead fail fast once the
// backend is clearly down, so UI code can fall back immediately
// instead of stacking timeouts.
//
// States:
//   - Closed: normal operation, requests pass through
//   - Open: backend unavailable, requests fail immediately
//   - Half-Open: probing recovery with a limited number of requests
//
// Transitions:
//
//	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
//	                                              |
//	                                         [failure]
//	                                              v
//	                                            Open
package resilience
