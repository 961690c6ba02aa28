// Package observability provides structured logging and Prometheus metrics
// for the auth gateway.
//
// This package implements:
//   - zap logger construction from configuration
//   - Authentication attempt counters
//   - HTTP request counters and latency histograms keyed by route pattern
//   - The /metrics handler over a private registry
package observability
