package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eyevinn-osaas/strom-sub003/errors"
	"github.com/eyevinn-osaas/strom-sub003/flow"
	"github.com/eyevinn-osaas/strom-sub003/testutil"
)

func TestRecoverEndpointUnknown(t *testing.T) {
	m := newTestManager(t, ingestPipeline("flow-1"), flow.Properties{}, testutil.NewFakeProvider())

	_, err := m.Start(context.Background())
	require.NoError(t, err)

	err = m.RecoverEndpoint("sink")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrEndpointNotFound)
}

func TestRecoverEndpointReplacesListener(t *testing.T) {
	provider := testutil.NewFakeProvider()
	m := newTestManager(t, ingestPipeline("flow-1"), flow.Properties{}, provider)

	_, err := m.Start(context.Background())
	require.NoError(t, err)

	g := provider.Graph("flow-1")
	require.NoError(t, m.RecoverEndpoint("cam1:listener"))

	require.Eventually(t, func() bool {
		_, removes, _, _ := g.Counts()
		n := g.Node("cam1:listener")
		return removes >= 1 && n != nil && n.Property("localport") == 4200
	}, 2*time.Second, 5*time.Millisecond)

	// Static links touching the listener are re-applied
	require.Eventually(t, func() bool {
		return g.HasLink("cam1:listener", "src", "cam1:demux", "sink")
	}, time.Second, 5*time.Millisecond)
}

func TestRecoverEndpointSingleUseGuard(t *testing.T) {
	provider := testutil.NewFakeProvider()
	m := newTestManager(t, ingestPipeline("flow-1"), flow.Properties{}, provider)

	_, err := m.Start(context.Background())
	require.NoError(t, err)

	g := provider.Graph("flow-1")

	// Hold recreation inside CreateNode so the second trigger races a
	// recreation that is still in flight.
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	g.CreateNodeErr = func(typeName, id string) error {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
		return nil
	}

	require.NoError(t, m.RecoverEndpoint("cam1:listener"))
	<-entered

	err = m.RecoverEndpoint("cam1:listener")
	require.Error(t, err, "second trigger during an in-flight recreation is refused")
	assert.ErrorIs(t, err, errors.ErrEndpointBusy)

	close(release)

	require.Eventually(t, func() bool {
		return g.Node("cam1:listener") != nil && g.Node("cam1:listener").Property("localport") == 4200
	}, 2*time.Second, 5*time.Millisecond)

	_, removes, _, _ := g.Counts()
	assert.Equal(t, 1, removes, "exactly one recreation for one session end")

	// Guard resets with the fresh instance: a new session end recovers again
	require.NoError(t, m.RecoverEndpoint("cam1:listener"))
}
