package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eyevinn-osaas/strom-sub003/bus"
)

func TestQosAggregatorAverages(t *testing.T) {
	a := NewQosAggregator()

	a.Observe("cam1:demux", bus.QosValues{Proportion: 0.5, Jitter: 2 * time.Millisecond, Processed: 10})
	a.Observe("cam1:demux", bus.QosValues{Proportion: 1.5, Jitter: 4 * time.Millisecond, Processed: 20})
	a.Observe("cam1:demux", bus.QosValues{Proportion: 1.0, Jitter: 6 * time.Millisecond, Processed: 30})

	summaries := a.Drain()
	require.Len(t, summaries, 1)

	s := summaries[0]
	assert.Equal(t, "cam1:demux", s.Element)
	assert.Equal(t, "cam1", s.Block)
	assert.Equal(t, "demux", s.Node)
	assert.Equal(t, 3, s.EventCount)
	assert.InDelta(t, 1.0, s.AvgProportion, 1e-9)
	assert.InDelta(t, 0.5, s.MinProportion, 1e-9)
	assert.InDelta(t, 1.5, s.MaxProportion, 1e-9)
	assert.Equal(t, 4*time.Millisecond, s.AvgJitter)
	assert.Equal(t, uint64(30), s.LastProcessed)
	assert.False(t, s.FallingBehind)
}

func TestQosAggregatorThousandSignals(t *testing.T) {
	a := NewQosAggregator()

	for i := 1; i <= 1000; i++ {
		a.Observe("enc", bus.QosValues{Proportion: 0.9, Processed: uint64(i)})
	}

	summaries := a.Drain()
	require.Len(t, summaries, 1)

	s := summaries[0]
	assert.Equal(t, 1000, s.EventCount)
	assert.InDelta(t, 0.9, s.AvgProportion, 1e-9)
	assert.Equal(t, uint64(1000), s.LastProcessed)
	assert.True(t, s.FallingBehind)
}

func TestQosAggregatorStandaloneElement(t *testing.T) {
	a := NewQosAggregator()
	a.Observe("sink", bus.QosValues{Proportion: 1.1})

	summaries := a.Drain()
	require.Len(t, summaries, 1)
	assert.Equal(t, "sink", summaries[0].Element)
	assert.Empty(t, summaries[0].Block)
	assert.Empty(t, summaries[0].Node)
}

func TestQosAggregatorDrainResets(t *testing.T) {
	a := NewQosAggregator()

	assert.Nil(t, a.Drain(), "empty aggregator drains to nothing")

	a.Observe("src", bus.QosValues{Proportion: 1.0})
	require.Len(t, a.Drain(), 1)
	assert.Nil(t, a.Drain(), "drain removes all accumulated aggregates")
}

func TestQosAggregatorPerNodeIsolation(t *testing.T) {
	a := NewQosAggregator()

	a.Observe("src", bus.QosValues{Proportion: 0.4})
	a.Observe("sink", bus.QosValues{Proportion: 1.4})
	a.Observe("src", bus.QosValues{Proportion: 0.6})

	byElement := make(map[string]QosSummary)
	for _, s := range a.Drain() {
		byElement[s.Element] = s
	}
	require.Len(t, byElement, 2)

	assert.Equal(t, 2, byElement["src"].EventCount)
	assert.InDelta(t, 0.5, byElement["src"].AvgProportion, 1e-9)
	assert.True(t, byElement["src"].FallingBehind)

	assert.Equal(t, 1, byElement["sink"].EventCount)
	assert.False(t, byElement["sink"].FallingBehind)
}
