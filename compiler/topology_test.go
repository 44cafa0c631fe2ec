package compiler

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eyevinn-osaas/strom-sub003/flow"
)

func TestBuildTopologySingleConsumerPassesThrough(t *testing.T) {
	links := []flow.Link{
		{From: "src:src", To: "sink:sink"},
	}

	final, points := BuildTopology(links)

	assert.Equal(t, links, final)
	assert.Empty(t, points)
}

func TestBuildTopologyInsertsOneDistributionPoint(t *testing.T) {
	links := []flow.Link{
		{From: "src:video_out", To: "sink_a:sink"},
		{From: "src:video_out", To: "sink_b:sink"},
		{From: "src:video_out", To: "sink_c:sink"},
	}

	final, points := BuildTopology(links)

	require.Len(t, points, 1)
	assert.Equal(t, "auto_tee_src_video_out", points[0].Name)
	assert.Equal(t, flow.Endpoint("src:video_out"), points[0].Source)
	assert.Equal(t, 3, points[0].Outputs)
	assert.True(t, points[0].AllowUnlinked)

	// Links: source feeds the tee, then one rewritten link per sink
	require.Len(t, final, 4)
	assert.Equal(t, flow.Link{From: "src:video_out", To: "auto_tee_src_video_out:sink"}, final[0])
	assert.Equal(t, flow.Link{From: "auto_tee_src_video_out:src_0", To: "sink_a:sink"}, final[1])
	assert.Equal(t, flow.Link{From: "auto_tee_src_video_out:src_1", To: "sink_b:sink"}, final[2])
	assert.Equal(t, flow.Link{From: "auto_tee_src_video_out:src_2", To: "sink_c:sink"}, final[3])
}

func TestBuildTopologyMixedFanOut(t *testing.T) {
	links := []flow.Link{
		{From: "src:audio_out", To: "audio_sink:sink"},
		{From: "src:video_out", To: "sink_a:sink"},
		{From: "other:src", To: "sink_b:sink"},
		{From: "src:video_out", To: "sink_c:sink"},
	}

	final, points := BuildTopology(links)

	require.Len(t, points, 1)
	assert.Equal(t, "auto_tee_src_video_out", points[0].Name)
	assert.Equal(t, 2, points[0].Outputs)

	// One extra link for the tee feed; untouched links remain in order
	require.Len(t, final, 5)
	assert.Equal(t, flow.Link{From: "src:audio_out", To: "audio_sink:sink"}, final[0])
	assert.Equal(t, flow.Link{From: "src:video_out", To: "auto_tee_src_video_out:sink"}, final[1])
	assert.Equal(t, flow.Link{From: "auto_tee_src_video_out:src_0", To: "sink_a:sink"}, final[2])
	assert.Equal(t, flow.Link{From: "other:src", To: "sink_b:sink"}, final[3])
	assert.Equal(t, flow.Link{From: "auto_tee_src_video_out:src_1", To: "sink_c:sink"}, final[4])
}

func TestBuildTopologyDeterminism(t *testing.T) {
	links := []flow.Link{
		{From: "a:out", To: "x:in"},
		{From: "b:out", To: "y:in"},
		{From: "a:out", To: "z:in"},
		{From: "b:out", To: "w:in"},
	}

	firstLinks, firstPoints := BuildTopology(links)
	secondLinks, secondPoints := BuildTopology(links)

	assert.Empty(t, cmp.Diff(firstLinks, secondLinks))
	assert.Empty(t, cmp.Diff(firstPoints, secondPoints))

	// First-appearance order governs distribution-point order
	require.Len(t, firstPoints, 2)
	assert.Equal(t, "auto_tee_a_out", firstPoints[0].Name)
	assert.Equal(t, "auto_tee_b_out", firstPoints[1].Name)
}

func TestBuildTopologyTwoPadsOnOneNode(t *testing.T) {
	// Both pads of one node fan out; names must not collide
	links := []flow.Link{
		{From: "demux:video_0", To: "a:in"},
		{From: "demux:video_0", To: "b:in"},
		{From: "demux:audio_0", To: "c:in"},
		{From: "demux:audio_0", To: "d:in"},
	}

	_, points := BuildTopology(links)

	require.Len(t, points, 2)
	assert.NotEqual(t, points[0].Name, points[1].Name)
}

func TestDistributionName(t *testing.T) {
	assert.Equal(t, "auto_tee_cam1_demux_video_0", DistributionName("cam1:demux:video_0"))
	assert.Equal(t, "src_7", DistributionOutputPad(7))
}
