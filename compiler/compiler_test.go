package compiler

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eyevinn-osaas/strom-sub003/errors"
	"github.com/eyevinn-osaas/strom-sub003/flow"
	"github.com/eyevinn-osaas/strom-sub003/metric"
	"github.com/eyevinn-osaas/strom-sub003/node"
)

func testNodeRegistry(t *testing.T) *node.Registry {
	t.Helper()

	r := node.NewRegistry()
	for _, reg := range []*node.Registration{
		{Name: "videotestsrc", Kind: "source"},
		{Name: "fakesink", Kind: "sink"},
		{Name: "srtsrc", Kind: "source", SingleUseIngest: true},
		{Name: "tsdemux", Kind: "filter", DynamicPads: true},
		{Name: "tee", Kind: "distribution", AllowUnlinked: true},
		{Name: "x264enc", Kind: "filter", Schema: json.RawMessage(`{
			"type": "object",
			"properties": {"bitrate": {"type": "integer", "minimum": 1}}
		}`)},
	} {
		require.NoError(t, r.Register(reg))
	}
	return r
}

func newTestCompiler(t *testing.T) *Compiler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	return New(testCatalog(t), testNodeRegistry(t), logger, metric.NewMetricsRegistry())
}

func TestCompileSimpleFlow(t *testing.T) {
	c := newTestCompiler(t)

	f := &flow.Flow{
		ID:   "flow-1",
		Name: "One to one",
		Elements: []flow.Element{
			{ID: "src", Type: "videotestsrc"},
			{ID: "sink", Type: "fakesink"},
		},
		Links: []flow.Link{{From: "src:src", To: "sink:sink"}},
	}

	p, err := c.Compile(context.Background(), f)
	require.NoError(t, err)

	assert.Equal(t, "flow-1", p.FlowID)
	assert.Len(t, p.Elements, 2)
	assert.Len(t, p.Links, 1)
	assert.Empty(t, p.Distribution, "a 1-to-1 link must not grow a distribution point")
}

func TestCompileFanOutScenario(t *testing.T) {
	c := newTestCompiler(t)

	f := &flow.Flow{
		ID:   "flow-2",
		Name: "One source, two sinks",
		Elements: []flow.Element{
			{ID: "src", Type: "videotestsrc"},
			{ID: "sink_a", Type: "fakesink"},
			{ID: "sink_b", Type: "fakesink"},
		},
		Links: []flow.Link{
			{From: "src:src", To: "sink_a:sink"},
			{From: "src:src", To: "sink_b:sink"},
		},
	}

	p, err := c.Compile(context.Background(), f)
	require.NoError(t, err)

	require.Len(t, p.Distribution, 1)
	assert.Equal(t, "auto_tee_src_src", p.Distribution[0].Name)
	// As many links as sinks, plus the tee feed
	assert.Len(t, p.Links, 3)
}

func TestCompileBlockFlow(t *testing.T) {
	c := newTestCompiler(t)

	f := &flow.Flow{
		ID:   "flow-3",
		Name: "Block ingest",
		Elements: []flow.Element{
			{ID: "sink", Type: "fakesink"},
		},
		Blocks: []flow.BlockInstance{
			{ID: "cam1", Definition: "srt-ingest", Properties: map[string]any{"port": 4200}},
		},
		Links: []flow.Link{{From: "cam1:video_out", To: "sink:sink"}},
	}

	p, err := c.Compile(context.Background(), f)
	require.NoError(t, err)

	ids := make(map[string]bool)
	for _, el := range p.Elements {
		ids[el.ID] = true
	}
	assert.True(t, ids["cam1:listener"])
	assert.True(t, ids["cam1:demux"])
}

func TestCompileRejectsUnknownNodeType(t *testing.T) {
	c := newTestCompiler(t)

	f := &flow.Flow{
		ID:       "flow-4",
		Name:     "Bad type",
		Elements: []flow.Element{{ID: "x", Type: "madeupsrc"}},
	}

	_, err := c.Compile(context.Background(), f)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidFlow)
}

func TestCompileRejectsInvalidProperties(t *testing.T) {
	c := newTestCompiler(t)

	f := &flow.Flow{
		ID:   "flow-5",
		Name: "Bad property",
		Elements: []flow.Element{
			{ID: "enc", Type: "x264enc", Properties: map[string]any{"bitrate": -5}},
		},
	}

	_, err := c.Compile(context.Background(), f)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestCompileRejectsStructurallyInvalidFlow(t *testing.T) {
	c := newTestCompiler(t)

	_, err := c.Compile(context.Background(), &flow.Flow{Name: "no id"})
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestCompileDeterminism(t *testing.T) {
	c := newTestCompiler(t)

	f := &flow.Flow{
		ID:   "flow-6",
		Name: "Determinism",
		Elements: []flow.Element{
			{ID: "sink_a", Type: "fakesink"},
			{ID: "sink_b", Type: "fakesink"},
		},
		Blocks: []flow.BlockInstance{
			{ID: "cam1", Definition: "srt-ingest", Properties: map[string]any{"port": 1}},
		},
		Links: []flow.Link{
			{From: "cam1:video_out", To: "sink_a:sink"},
			{From: "cam1:video_out", To: "sink_b:sink"},
		},
	}

	first, err := c.Compile(context.Background(), f)
	require.NoError(t, err)
	second, err := c.Compile(context.Background(), f)
	require.NoError(t, err)

	assert.Equal(t, first.Links, second.Links)
	assert.Equal(t, first.Distribution, second.Distribution)
	for i := range first.Elements {
		assert.Equal(t, first.Elements[i].ID, second.Elements[i].ID)
	}
}
