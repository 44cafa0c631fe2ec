// Package metric provides Prometheus-based metrics for the strom engine.
//
// A single MetricsRegistry owns the process Prometheus registry, the core
// engine metrics (pipeline state, bus traffic, telemetry, endpoint
// recreations), and per-service metric registration with duplicate
// detection. The optional Server exposes the registry over HTTP.
package metric
