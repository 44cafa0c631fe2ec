package node

import (
	"github.com/eyevinn-osaas/strom-sub003/bus"
	"github.com/eyevinn-osaas/strom-sub003/clock"
	"github.com/eyevinn-osaas/strom-sub003/flow"
)

// Handle is a live node instance inside an execution graph. The node's
// media behavior is opaque to this core; only its identity, typed
// properties, and pads are visible.
type Handle interface {
	ID() string
	Type() string
	SetProperty(name string, value any) error
	GetProperty(name string) (any, error)
	SetPadProperty(pad, name string, value any) error
}

// Graph is one live execution graph instance. Implementations wrap the
// actual media engine; the fake in package testutil implements the same
// contract for tests.
//
// SetState and Destroy may block while the engine drains internal machinery
// and must be called from a context that tolerates blocking, never from a
// bus-drain goroutine.
type Graph interface {
	CreateNode(typeName, id string) (Handle, error)
	RemoveNode(id string) error
	Link(fromNode, fromPad, toNode, toPad string) error
	SetState(state flow.PipelineState) error
	UseClock(handle clock.Handle) error
	Bus() bus.Subscription
	Destroy() error
}

// Provider constructs live graphs, one per started flow
type Provider interface {
	NewGraph(flowID string) (Graph, error)
}
