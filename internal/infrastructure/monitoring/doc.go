// Package monitoring provides Prometheus metrics for the realtime
// client: connection health, reconnect churn, inbound event volume,
// token throughput, and streaming session counts.
//
// Metrics are registered on a caller-supplied registry so multiple
// client instances (and parallel tests) never collide.
package monitoring
