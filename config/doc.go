// Package config loads the application configuration from an optional
// JSON file with environment variable overrides (STROM_ prefix).
// Defaults are tuned for a single-node deployment with the metrics
// server on :9090 and NATS publishing disabled.
package config
