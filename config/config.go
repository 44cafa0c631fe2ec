package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the complete application configuration.
type Config struct {
	Server   ServerConfig   `json:"server"`
	NATS     NATSConfig     `json:"nats"`
	Pipeline PipelineConfig `json:"pipeline"`
	Logging  LoggingConfig  `json:"logging"`
	// FlowDir optionally points at a directory of flow definition
	// files loaded into the catalog at startup.
	FlowDir string `json:"flow_dir,omitempty"`
}

// ServerConfig defines the HTTP listener for metrics and diagnostics.
type ServerConfig struct {
	Addr            string        `json:"addr"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout,omitempty"`
}

// NATSConfig defines the optional NATS connection for event publishing.
// When Enabled is false pipeline events are only fanned out to local
// subscribers.
type NATSConfig struct {
	Enabled       bool          `json:"enabled"`
	URL           string        `json:"url,omitempty"`
	MaxReconnects int           `json:"max_reconnects,omitempty"`
	ReconnectWait time.Duration `json:"reconnect_wait,omitempty"`
	Name          string        `json:"name,omitempty"`
}

// PipelineConfig tunes the shared pipeline runtime.
type PipelineConfig struct {
	Workers     int           `json:"workers,omitempty"`
	QueueSize   int           `json:"queue_size,omitempty"`
	QosInterval time.Duration `json:"qos_interval,omitempty"`
	StopTimeout time.Duration `json:"stop_timeout,omitempty"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string `json:"level,omitempty"`  // debug, info, warn, error
	Format string `json:"format,omitempty"` // text or json
}

// Default returns the built-in configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":9090",
			ShutdownTimeout: 5 * time.Second,
		},
		NATS: NATSConfig{
			Enabled:       false,
			URL:           "nats://localhost:4222",
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
			Name:          "strom",
		},
		Pipeline: PipelineConfig{
			Workers:     4,
			QueueSize:   64,
			QosInterval: time.Second,
			StopTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from an optional JSON file, applies
// environment overrides and validates the result. An empty path loads
// defaults plus environment only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		raw := struct {
			Server struct {
				Addr            string `json:"addr"`
				ShutdownTimeout string `json:"shutdown_timeout"`
			} `json:"server"`
			NATS struct {
				Enabled       *bool  `json:"enabled"`
				URL           string `json:"url"`
				MaxReconnects *int   `json:"max_reconnects"`
				ReconnectWait string `json:"reconnect_wait"`
				Name          string `json:"name"`
			} `json:"nats"`
			Pipeline struct {
				Workers     int    `json:"workers"`
				QueueSize   int    `json:"queue_size"`
				QosInterval string `json:"qos_interval"`
				StopTimeout string `json:"stop_timeout"`
			} `json:"pipeline"`
			Logging LoggingConfig `json:"logging"`
			FlowDir string        `json:"flow_dir"`
		}{}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}

		if raw.Server.Addr != "" {
			cfg.Server.Addr = raw.Server.Addr
		}
		if err := overrideDuration(&cfg.Server.ShutdownTimeout, raw.Server.ShutdownTimeout); err != nil {
			return nil, fmt.Errorf("server.shutdown_timeout: %w", err)
		}
		if raw.NATS.Enabled != nil {
			cfg.NATS.Enabled = *raw.NATS.Enabled
		}
		if raw.NATS.URL != "" {
			cfg.NATS.URL = raw.NATS.URL
		}
		if raw.NATS.MaxReconnects != nil {
			cfg.NATS.MaxReconnects = *raw.NATS.MaxReconnects
		}
		if err := overrideDuration(&cfg.NATS.ReconnectWait, raw.NATS.ReconnectWait); err != nil {
			return nil, fmt.Errorf("nats.reconnect_wait: %w", err)
		}
		if raw.NATS.Name != "" {
			cfg.NATS.Name = raw.NATS.Name
		}
		if raw.Pipeline.Workers != 0 {
			cfg.Pipeline.Workers = raw.Pipeline.Workers
		}
		if raw.Pipeline.QueueSize != 0 {
			cfg.Pipeline.QueueSize = raw.Pipeline.QueueSize
		}
		if err := overrideDuration(&cfg.Pipeline.QosInterval, raw.Pipeline.QosInterval); err != nil {
			return nil, fmt.Errorf("pipeline.qos_interval: %w", err)
		}
		if err := overrideDuration(&cfg.Pipeline.StopTimeout, raw.Pipeline.StopTimeout); err != nil {
			return nil, fmt.Errorf("pipeline.stop_timeout: %w", err)
		}
		if raw.Logging.Level != "" {
			cfg.Logging.Level = raw.Logging.Level
		}
		if raw.Logging.Format != "" {
			cfg.Logging.Format = raw.Logging.Format
		}
		if raw.FlowDir != "" {
			cfg.FlowDir = raw.FlowDir
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the runtime cannot
// start with.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
		return fmt.Errorf("server.addr %q is not host:port: %w", c.Server.Addr, err)
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		return errors.New("nats.url is required when nats.enabled is true")
	}
	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("pipeline.workers must be positive, got %d", c.Pipeline.Workers)
	}
	if c.Pipeline.QueueSize <= 0 {
		return fmt.Errorf("pipeline.queue_size must be positive, got %d", c.Pipeline.QueueSize)
	}
	if c.Pipeline.QosInterval <= 0 {
		return errors.New("pipeline.qos_interval must be positive")
	}
	if c.Pipeline.StopTimeout <= 0 {
		return errors.New("pipeline.stop_timeout must be positive")
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not text or json", c.Logging.Format)
	}
	return nil
}

const envPrefix = "STROM"

// applyEnvOverrides applies environment variable overrides on top of
// file and default values.
func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv(envPrefix + "_SERVER_ADDR"); val != "" {
		cfg.Server.Addr = val
	}
	if val := os.Getenv(envPrefix + "_NATS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.NATS.Enabled = b
		}
	}
	if val := os.Getenv(envPrefix + "_NATS_URL"); val != "" {
		cfg.NATS.URL = val
	}
	if val := os.Getenv(envPrefix + "_LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
	if val := os.Getenv(envPrefix + "_LOG_FORMAT"); val != "" {
		cfg.Logging.Format = val
	}
	if val := os.Getenv(envPrefix + "_FLOW_DIR"); val != "" {
		cfg.FlowDir = val
	}
}

// overrideDuration parses a duration string into dst when set.
func overrideDuration(dst *time.Duration, s string) error {
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*dst = d
	return nil
}
