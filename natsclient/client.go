// Package natsclient manages the NATS connection used to publish pipeline
// events to external subscribers.
package natsclient

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/eyevinn-osaas/strom-sub003/errors"
	"github.com/eyevinn-osaas/strom-sub003/metric"
)

// ClientOption is a functional option for configuring the Client
type ClientOption func(*Client) error

// WithMaxReconnects sets the maximum number of reconnection attempts (-1 for infinite)
func WithMaxReconnects(max int) ClientOption {
	return func(c *Client) error {
		c.maxReconnects = max
		return nil
	}
}

// WithReconnectWait sets the wait time between reconnection attempts
func WithReconnectWait(d time.Duration) ClientOption {
	return func(c *Client) error {
		c.reconnectWait = d
		return nil
	}
}

// WithTimeout sets the connect timeout
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) error {
		c.timeout = d
		return nil
	}
}

// WithName sets the client name reported to the server
func WithName(name string) ClientOption {
	return func(c *Client) error {
		c.name = name
		return nil
	}
}

// WithMetrics wires connection metrics into the registry's core metrics
func WithMetrics(registry *metric.MetricsRegistry) ClientOption {
	return func(c *Client) error {
		if registry != nil {
			c.metrics = registry.CoreMetrics()
		}
		return nil
	}
}

// Client manages one NATS connection with automatic reconnection
type Client struct {
	url    string
	logger *slog.Logger

	maxReconnects int
	reconnectWait time.Duration
	timeout       time.Duration
	name          string

	metrics *metric.Metrics

	mu   sync.RWMutex
	conn *nats.Conn
}

// NewClient creates a NATS client. Connect must be called before Publish.
func NewClient(url string, logger *slog.Logger, opts ...ClientOption) (*Client, error) {
	if url == "" {
		return nil, errors.WrapInvalid(
			fmt.Errorf("NATS URL cannot be empty"),
			"natsclient", "NewClient", "configuration")
	}

	c := &Client{
		url:           url,
		logger:        logger,
		maxReconnects: -1,
		reconnectWait: 2 * time.Second,
		timeout:       5 * time.Second,
		name:          "strom",
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, errors.WrapInvalid(err, "natsclient", "NewClient", "apply option")
		}
	}
	return c, nil
}

// URL returns the configured server URL
func (c *Client) URL() string {
	return c.url
}

// Connect establishes the connection. Reconnection after that is handled
// by the underlying NATS client.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil && c.conn.IsConnected() {
		return nil
	}

	opts := []nats.Option{
		nats.Name(c.name),
		nats.MaxReconnects(c.maxReconnects),
		nats.ReconnectWait(c.reconnectWait),
		nats.Timeout(c.timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			c.logger.Warn("NATS disconnected", "error", err)
			if c.metrics != nil {
				c.metrics.RecordNATSStatus(false)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			c.logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
			if c.metrics != nil {
				c.metrics.RecordNATSStatus(true)
				c.metrics.RecordNATSReconnect()
			}
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			c.logger.Info("NATS connection closed")
			if c.metrics != nil {
				c.metrics.RecordNATSStatus(false)
			}
		}),
	}

	conn, err := nats.Connect(c.url, opts...)
	if err != nil {
		return errors.WrapTransient(err, "natsclient", "Connect", "connect")
	}

	select {
	case <-ctx.Done():
		conn.Close()
		return errors.WrapTransient(ctx.Err(), "natsclient", "Connect", "connect")
	default:
	}

	c.conn = conn
	if c.metrics != nil {
		c.metrics.RecordNATSStatus(true)
	}
	c.logger.Info("NATS connected", "url", conn.ConnectedUrl())
	return nil
}

// IsConnected reports whether the connection is currently usable
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && c.conn.IsConnected()
}

// Publish sends data to a subject
func (c *Client) Publish(subject string, data []byte) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil || !conn.IsConnected() {
		return errors.WrapTransient(errors.ErrNoConnection, "natsclient", "Publish", "connection check")
	}
	if err := conn.Publish(subject, data); err != nil {
		return errors.WrapTransient(err, "natsclient", "Publish", fmt.Sprintf("publish to %s", subject))
	}
	return nil
}

// Close drains and closes the connection
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- c.conn.Drain() }()

	select {
	case err := <-done:
		if err != nil {
			c.conn.Close()
		}
	case <-ctx.Done():
		c.conn.Close()
	}

	c.conn = nil
	if c.metrics != nil {
		c.metrics.RecordNATSStatus(false)
	}
	return nil
}
