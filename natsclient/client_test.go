package natsclient

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eyevinn-osaas/strom-sub003/errors"
	"github.com/eyevinn-osaas/strom-sub003/flow"
	"github.com/eyevinn-osaas/strom-sub003/pipeline"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewClientRequiresURL(t *testing.T) {
	_, err := NewClient("", testLogger())
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestNewClientAppliesOptions(t *testing.T) {
	c, err := NewClient("nats://localhost:4222", testLogger(),
		WithMaxReconnects(3),
		WithReconnectWait(time.Second),
		WithTimeout(2*time.Second),
		WithName("strom-test"),
	)
	require.NoError(t, err)

	assert.Equal(t, "nats://localhost:4222", c.URL())
	assert.Equal(t, 3, c.maxReconnects)
	assert.Equal(t, time.Second, c.reconnectWait)
	assert.Equal(t, 2*time.Second, c.timeout)
	assert.Equal(t, "strom-test", c.name)
}

func TestPublishWithoutConnection(t *testing.T) {
	c, err := NewClient("nats://localhost:4222", testLogger())
	require.NoError(t, err)

	err = c.Publish("strom.test", []byte("{}"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNoConnection)
	assert.False(t, c.IsConnected())
}

func TestEventSubject(t *testing.T) {
	assert.Equal(t, "strom.flow.flow-1.events", EventSubject("flow-1"))
}

func TestPublishEventWithoutConnection(t *testing.T) {
	c, err := NewClient("nats://localhost:4222", testLogger())
	require.NoError(t, err)

	pub := NewEventPublisher(c)
	err = pub.PublishEvent(pipeline.Event{
		Type:   pipeline.EventStateChanged,
		FlowID: "flow-1",
		State:  flow.StatePlaying,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNoConnection)
}
