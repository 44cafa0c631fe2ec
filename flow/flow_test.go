package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eyevinn-osaas/strom-sub003/errors"
)

func TestEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		endpoint Endpoint
		node     string
		pad      string
		valid    bool
	}{
		{"simple", "cam1:video_out", "cam1", "video_out", true},
		{"namespaced node", "ingest:depay:src", "ingest:depay", "src", true},
		{"missing pad", "cam1:", "cam1", "", false},
		{"missing node", ":src", "", "src", false},
		{"no separator", "cam1", "cam1", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.node, tt.endpoint.Node())
			assert.Equal(t, tt.pad, tt.endpoint.Pad())
			assert.Equal(t, tt.valid, tt.endpoint.Valid())
		})
	}
}

func TestNewEndpoint(t *testing.T) {
	e := NewEndpoint("decoder", "src")
	assert.Equal(t, "decoder:src", e.String())
	assert.True(t, e.Valid())
}

func TestPipelineStateTerminal(t *testing.T) {
	assert.True(t, StateDestroyed.Terminal())
	assert.True(t, StateError.Terminal())
	assert.False(t, StatePlaying.Terminal())
	assert.False(t, StateStopped.Terminal())
}

func TestFlowValidation(t *testing.T) {
	valid := Flow{
		ID:   "flow-1",
		Name: "Camera Relay",
		Elements: []Element{
			{ID: "src", Type: "videotestsrc", Properties: map[string]any{"pattern": "smpte"}},
			{ID: "sink", Type: "fakesink"},
		},
		Links: []Link{
			{From: "src:src", To: "sink:sink"},
		},
	}

	tests := []struct {
		name      string
		mutate    func(*Flow)
		wantError bool
	}{
		{"valid flow", func(*Flow) {}, false},
		{"empty ID", func(f *Flow) { f.ID = "" }, true},
		{"empty name", func(f *Flow) { f.Name = "" }, true},
		{"unknown clock type", func(f *Flow) { f.Properties.ClockType = "ntp" }, true},
		{"ptp clock type", func(f *Flow) { f.Properties.ClockType = ClockPTP }, false},
		{"element empty id", func(f *Flow) { f.Elements[0].ID = ""; f.Links = nil }, true},
		{"element empty type", func(f *Flow) { f.Elements[0].Type = "" }, true},
		{"duplicate element id", func(f *Flow) {
			f.Elements = append(f.Elements, Element{ID: "src", Type: "audiotestsrc"})
		}, true},
		{"element id with colon", func(f *Flow) { f.Elements[0].ID = "cam:src"; f.Links = nil }, true},
		{"block id with colon", func(f *Flow) {
			f.Blocks = []BlockInstance{{ID: "cam:1", Definition: "srt-ingest"}}
		}, true},
		{"block without definition", func(f *Flow) {
			f.Blocks = []BlockInstance{{ID: "ingest"}}
		}, true},
		{"block id collides with element", func(f *Flow) {
			f.Blocks = []BlockInstance{{ID: "src", Definition: "srt-ingest"}}
		}, true},
		{"malformed link source", func(f *Flow) { f.Links[0].From = "src" }, true},
		{"malformed link target", func(f *Flow) { f.Links[0].To = "sink:" }, true},
		{"link to unknown node", func(f *Flow) { f.Links[0].To = "ghost:sink" }, true},
		{"link endpoint may name a block", func(f *Flow) {
			f.Blocks = []BlockInstance{{ID: "ingest", Definition: "srt-ingest"}}
			f.Links = append(f.Links, Link{From: "ingest:video_out", To: "sink:sink"})
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := valid
			f.Elements = append([]Element(nil), valid.Elements...)
			f.Links = append([]Link(nil), valid.Links...)
			tt.mutate(&f)

			err := f.Validate()
			if tt.wantError {
				require.Error(t, err)
				assert.True(t, errors.IsInvalid(err), "expected invalid classification, got: %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
