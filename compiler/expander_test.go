package compiler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eyevinn-osaas/strom-sub003/catalog"
	"github.com/eyevinn-osaas/strom-sub003/errors"
	"github.com/eyevinn-osaas/strom-sub003/flow"
)

func testCatalog(t *testing.T) *catalog.MemoryCatalog {
	t.Helper()

	cat := catalog.NewMemoryCatalog()
	require.NoError(t, cat.Register(&catalog.BlockDefinition{
		ID: "srt-ingest",
		Elements: []flow.Element{
			{ID: "listener", Type: "srtsrc", Properties: map[string]any{"mode": "listener"}},
			{ID: "demux", Type: "tsdemux"},
		},
		Links: []flow.Link{
			{From: "listener:src", To: "demux:sink"},
		},
		Exposed: []catalog.ExposedProperty{
			{Name: "port", Element: "listener", Property: "localport"},
			{Name: "sdp", Element: "listener", Property: "sdp-file", Transform: catalog.TransformFile},
		},
		Pads: []catalog.ExternalPad{
			{Name: "video_out", Kind: "video", Element: "demux", Pad: "video_0"},
		},
	}))
	return cat
}

func newTestExpander(t *testing.T) *Expander {
	t.Helper()
	e := NewExpander(testCatalog(t), slog.New(slog.NewTextHandler(os.Stderr, nil)))
	e.tempDir = t.TempDir()
	return e
}

func TestExpandNamespacesBlockInternals(t *testing.T) {
	e := newTestExpander(t)

	out, err := e.Expand(context.Background(),
		[]flow.Element{{ID: "sink", Type: "fakesink"}},
		[]flow.BlockInstance{{ID: "cam1", Definition: "srt-ingest", Properties: map[string]any{"port": 4200}}},
		[]flow.Link{{From: "cam1:video_out", To: "sink:sink"}},
	)
	require.NoError(t, err)

	var ids []string
	for _, el := range out.Elements {
		ids = append(ids, el.ID)
	}
	assert.Equal(t, []string{"sink", "cam1:listener", "cam1:demux"}, ids)

	// Exposed property written under the internal property name
	listener := out.Elements[1]
	assert.Equal(t, 4200, listener.Properties["localport"])
	assert.Equal(t, "listener", listener.Properties["mode"])

	// Internal link namespaced, external pad endpoint rewritten
	assert.Contains(t, out.Links, flow.Link{From: "cam1:listener:src", To: "cam1:demux:sink"})
	assert.Contains(t, out.Links, flow.Link{From: "cam1:demux:video_0", To: "sink:sink"})
}

func TestExpandDoesNotMutateDefinition(t *testing.T) {
	cat := testCatalog(t)
	e := NewExpander(cat, slog.New(slog.NewTextHandler(os.Stderr, nil)))

	blocks := []flow.BlockInstance{{ID: "cam1", Definition: "srt-ingest", Properties: map[string]any{"port": 9000}}}
	out, err := e.Expand(context.Background(), nil, blocks, nil)
	require.NoError(t, err)

	// The definition's own property map must be untouched by the write
	def, err := cat.GetBlockDefinition(context.Background(), "srt-ingest")
	require.NoError(t, err)
	assert.NotContains(t, def.Elements[0].Properties, "localport")
	assert.Contains(t, out.Elements[0].Properties, "localport")
}

func TestExpandDeterminism(t *testing.T) {
	e := newTestExpander(t)

	elements := []flow.Element{{ID: "sink_a", Type: "fakesink"}, {ID: "sink_b", Type: "fakesink"}}
	blocks := []flow.BlockInstance{
		{ID: "cam1", Definition: "srt-ingest", Properties: map[string]any{"port": 1}},
		{ID: "cam2", Definition: "srt-ingest", Properties: map[string]any{"port": 2}},
	}
	links := []flow.Link{
		{From: "cam1:video_out", To: "sink_a:sink"},
		{From: "cam2:video_out", To: "sink_b:sink"},
	}

	first, err := e.Expand(context.Background(), elements, blocks, links)
	require.NoError(t, err)
	second, err := e.Expand(context.Background(), elements, blocks, links)
	require.NoError(t, err)

	assert.Empty(t, cmp.Diff(first.Links, second.Links))

	var firstIDs, secondIDs []string
	for _, el := range first.Elements {
		firstIDs = append(firstIDs, el.ID)
	}
	for _, el := range second.Elements {
		secondIDs = append(secondIDs, el.ID)
	}
	assert.Empty(t, cmp.Diff(firstIDs, secondIDs))
}

func TestExpandFileTransform(t *testing.T) {
	e := newTestExpander(t)

	sdp := "v=0\r\no=- 0 0 IN IP4 127.0.0.1\r\n"
	out, err := e.Expand(context.Background(), nil,
		[]flow.BlockInstance{{ID: "cam1", Definition: "srt-ingest", Properties: map[string]any{"sdp": sdp}}},
		nil,
	)
	require.NoError(t, err)

	path, ok := out.Elements[0].Properties["sdp-file"].(string)
	require.True(t, ok, "file transform must substitute a path")

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, sdp, string(content))

	// A second expansion materializes a different path
	again, err := e.Expand(context.Background(), nil,
		[]flow.BlockInstance{{ID: "cam1", Definition: "srt-ingest", Properties: map[string]any{"sdp": sdp}}},
		nil,
	)
	require.NoError(t, err)
	assert.NotEqual(t, path, again.Elements[0].Properties["sdp-file"])
}

func TestExpandErrors(t *testing.T) {
	e := newTestExpander(t)
	ctx := context.Background()

	t.Run("unknown block definition", func(t *testing.T) {
		_, err := e.Expand(ctx, nil,
			[]flow.BlockInstance{{ID: "x", Definition: "missing"}}, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrUnknownBlock)
	})

	t.Run("unknown external pad", func(t *testing.T) {
		_, err := e.Expand(ctx,
			[]flow.Element{{ID: "sink", Type: "fakesink"}},
			[]flow.BlockInstance{{ID: "cam1", Definition: "srt-ingest"}},
			[]flow.Link{{From: "cam1:audio_out", To: "sink:sink"}})
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrUnknownExternalPad)
	})

	t.Run("unknown exposed property", func(t *testing.T) {
		_, err := e.Expand(ctx, nil,
			[]flow.BlockInstance{{ID: "cam1", Definition: "srt-ingest",
				Properties: map[string]any{"bitrate": 5000}}}, nil)
		require.Error(t, err)
		assert.True(t, errors.IsInvalid(err))
	})

	t.Run("file transform with non-string content", func(t *testing.T) {
		_, err := e.Expand(ctx, nil,
			[]flow.BlockInstance{{ID: "cam1", Definition: "srt-ingest",
				Properties: map[string]any{"sdp": 42}}}, nil)
		require.Error(t, err)
		assert.True(t, errors.IsInvalid(err))
	})

	t.Run("duplicate expanded id", func(t *testing.T) {
		_, err := e.Expand(ctx,
			[]flow.Element{{ID: "cam1:listener", Type: "fakesink"}},
			[]flow.BlockInstance{{ID: "cam1", Definition: "srt-ingest"}},
			nil)
		require.Error(t, err)
		assert.True(t, errors.IsInvalid(err))
	})
}

func TestUnsupportedTransform(t *testing.T) {
	cat := catalog.NewMemoryCatalog()
	require.NoError(t, cat.Register(&catalog.BlockDefinition{
		ID:       "odd-block",
		Elements: []flow.Element{{ID: "el", Type: "identity"}},
		Exposed: []catalog.ExposedProperty{
			{Name: "value", Element: "el", Property: "v", Transform: "base64"},
		},
	}))

	e := NewExpander(cat, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	_, err := e.Expand(context.Background(), nil,
		[]flow.BlockInstance{{ID: "b", Definition: "odd-block", Properties: map[string]any{"value": "x"}}},
		nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnsupportedTransform)
}

// staleCatalog serves a definition without insert-time validation, the way
// an external catalog client might.
type staleCatalog struct {
	def *catalog.BlockDefinition
}

func (c *staleCatalog) GetBlockDefinition(_ context.Context, id string) (*catalog.BlockDefinition, error) {
	if c.def != nil && c.def.ID == id {
		return c.def, nil
	}
	return nil, errors.WrapInvalid(
		fmt.Errorf("%w: %s", errors.ErrUnknownBlock, id),
		"staleCatalog", "GetBlockDefinition", "definition lookup")
}

func TestExposedPropertyOnMissingElementFailsExpansion(t *testing.T) {
	cat := &staleCatalog{def: &catalog.BlockDefinition{
		ID:       "broken-block",
		Elements: []flow.Element{{ID: "el", Type: "identity"}},
		Exposed: []catalog.ExposedProperty{
			{Name: "rate", Element: "ghost", Property: "rate"},
		},
	}}

	e := NewExpander(cat, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	_, err := e.Expand(context.Background(), nil,
		[]flow.BlockInstance{{ID: "b", Definition: "broken-block", Properties: map[string]any{"rate": 30}}},
		nil)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
	assert.Contains(t, err.Error(), "ghost")
}
