package main

import (
	"encoding/json"

	"github.com/eyevinn-osaas/strom-sub003/node"
)

// registerNodeTypes registers the built-in node-type catalog. The set
// mirrors the common GStreamer-style elements flows are written
// against; deployments with other engine bindings register their own.
func registerNodeTypes(registry *node.Registry) error {
	srtSchema := json.RawMessage(`{
		"type": "object",
		"properties": {
			"localport": {"type": "integer", "minimum": 1, "maximum": 65535},
			"latency": {"type": "integer", "minimum": 0},
			"passphrase": {"type": "string"}
		}
	}`)
	x264Schema := json.RawMessage(`{
		"type": "object",
		"properties": {
			"bitrate": {"type": "integer", "minimum": 1},
			"tune": {"type": "string"},
			"key-int-max": {"type": "integer", "minimum": 0}
		}
	}`)

	registrations := []*node.Registration{
		{Name: "videotestsrc", Kind: "source", Description: "Synthetic video source", Version: "1.0"},
		{Name: "audiotestsrc", Kind: "source", Description: "Synthetic audio source", Version: "1.0"},
		{Name: "srtsrc", Kind: "source", Description: "SRT listener ingest", Version: "1.0",
			SingleUseIngest: true, Schema: srtSchema},
		{Name: "udpsrc", Kind: "source", Description: "UDP ingest", Version: "1.0"},
		{Name: "tsdemux", Kind: "filter", Description: "MPEG-TS demultiplexer", Version: "1.0",
			DynamicPads: true},
		{Name: "qtdemux", Kind: "filter", Description: "QuickTime demultiplexer", Version: "1.0",
			DynamicPads: true},
		{Name: "decodebin", Kind: "filter", Description: "Auto-plugging decoder", Version: "1.0",
			DynamicPads: true},
		{Name: "queue", Kind: "filter", Description: "Buffering queue", Version: "1.0"},
		{Name: "videoconvert", Kind: "filter", Description: "Video format converter", Version: "1.0"},
		{Name: "audioconvert", Kind: "filter", Description: "Audio format converter", Version: "1.0"},
		{Name: "x264enc", Kind: "filter", Description: "H.264 encoder", Version: "1.0",
			Schema: x264Schema},
		{Name: "tee", Kind: "distribution", Description: "Fan-out distribution point", Version: "1.0",
			AllowUnlinked: true},
		{Name: "mpegtsmux", Kind: "filter", Description: "MPEG-TS multiplexer", Version: "1.0"},
		{Name: "srtsink", Kind: "sink", Description: "SRT output", Version: "1.0"},
		{Name: "udpsink", Kind: "sink", Description: "UDP output", Version: "1.0"},
		{Name: "fakesink", Kind: "sink", Description: "Discarding sink", Version: "1.0"},
	}

	for _, reg := range registrations {
		if err := registry.Register(reg); err != nil {
			return err
		}
	}
	return nil
}
