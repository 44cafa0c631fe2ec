package simgraph

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eyevinn-osaas/strom-sub003/bus"
	stderrors "github.com/eyevinn-osaas/strom-sub003/errors"
	"github.com/eyevinn-osaas/strom-sub003/flow"
)

func newTestGraph(t *testing.T) *Graph {
	t.Helper()
	provider := NewProvider(slog.New(slog.NewTextHandler(io.Discard, nil)))
	g, err := provider.NewGraph("flow-1")
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Destroy() })
	return g.(*Graph)
}

func TestCreateAndLinkNodes(t *testing.T) {
	g := newTestGraph(t)

	src, err := g.CreateNode("videotestsrc", "src")
	require.NoError(t, err)
	assert.Equal(t, "src", src.ID())
	assert.Equal(t, "videotestsrc", src.Type())

	_, err = g.CreateNode("fakesink", "sink")
	require.NoError(t, err)

	require.NoError(t, g.Link("src", "src", "sink", "sink"))
	assert.Equal(t, 2, g.NodeCount())
}

func TestCreateDuplicateNode(t *testing.T) {
	g := newTestGraph(t)

	_, err := g.CreateNode("videotestsrc", "src")
	require.NoError(t, err)

	_, err = g.CreateNode("videotestsrc", "src")
	require.ErrorIs(t, err, stderrors.ErrNodeCreation)
}

func TestLinkUnknownNode(t *testing.T) {
	g := newTestGraph(t)

	_, err := g.CreateNode("videotestsrc", "src")
	require.NoError(t, err)

	err = g.Link("src", "src", "missing", "sink")
	require.ErrorIs(t, err, stderrors.ErrElementNotFound)
}

func TestRemoveNodeDropsLinks(t *testing.T) {
	g := newTestGraph(t)

	_, err := g.CreateNode("videotestsrc", "src")
	require.NoError(t, err)
	_, err = g.CreateNode("fakesink", "sink")
	require.NoError(t, err)
	require.NoError(t, g.Link("src", "src", "sink", "sink"))

	require.NoError(t, g.RemoveNode("sink"))
	assert.Equal(t, 1, g.NodeCount())
	assert.Empty(t, g.links)
}

func TestSetStateReportsOnBus(t *testing.T) {
	g := newTestGraph(t)
	sub := g.Bus()
	defer sub.Unsubscribe()

	require.NoError(t, g.SetState(flow.StatePlaying))

	msg := <-sub.Messages()
	assert.Equal(t, bus.MessageStateChanged, msg.Type)
	assert.Empty(t, msg.Source)
	assert.Equal(t, flow.StateNull, msg.OldState)
	assert.Equal(t, flow.StatePlaying, msg.NewState)
}

func TestNodeProperties(t *testing.T) {
	g := newTestGraph(t)

	n, err := g.CreateNode("srtsrc", "listener")
	require.NoError(t, err)

	require.NoError(t, n.SetProperty("localport", 4200))
	val, err := n.GetProperty("localport")
	require.NoError(t, err)
	assert.Equal(t, 4200, val)

	_, err = n.GetProperty("absent")
	require.Error(t, err)

	require.NoError(t, n.SetPadProperty("src_0", "offset", 10))
}

func TestDestroyClosesSubscriptions(t *testing.T) {
	g := newTestGraph(t)
	sub := g.Bus()

	require.NoError(t, g.Destroy())

	_, open := <-sub.Messages()
	assert.False(t, open)

	err := g.SetState(flow.StatePlaying)
	require.ErrorIs(t, err, stderrors.ErrGraphDestroyed)
	assert.True(t, stderrors.IsFatal(err))

	// Destroy is idempotent.
	require.NoError(t, g.Destroy())
}
