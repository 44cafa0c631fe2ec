// Package bus defines the typed message stream a live execution graph
// delivers to its pipeline manager. The engine binding produces messages on
// a channel; the producer side must never block, so implementations use a
// bounded channel and drop-with-count on overflow.
package bus

import (
	"time"

	"github.com/eyevinn-osaas/strom-sub003/flow"
)

// MessageType classifies live-graph bus messages
type MessageType int

const (
	// MessageError reports a node-level or graph-level error
	MessageError MessageType = iota
	// MessageWarning reports a non-fatal condition
	MessageWarning
	// MessageInfo reports informational output from a node
	MessageInfo
	// MessageEOS reports end-of-stream on a branch
	MessageEOS
	// MessageStateChanged reports a lifecycle state transition
	MessageStateChanged
	// MessagePadAdded reports a dynamically created pad on a node
	MessagePadAdded
	// MessageQos reports a quality-of-service signal from a node
	MessageQos
)

// String returns the string representation of MessageType
func (t MessageType) String() string {
	switch t {
	case MessageError:
		return "error"
	case MessageWarning:
		return "warning"
	case MessageInfo:
		return "info"
	case MessageEOS:
		return "eos"
	case MessageStateChanged:
		return "state_changed"
	case MessagePadAdded:
		return "pad_added"
	case MessageQos:
		return "qos"
	default:
		return "unknown"
	}
}

// QosValues carries one quality-of-service observation from a node.
// Proportion is the node's observed on-time processing rate; values below
// 1.0 mean the node is falling behind real time.
type QosValues struct {
	Proportion float64
	Jitter     time.Duration
	Processed  uint64
}

// Message is one entry on a live graph's bus. Source is the originating
// node id; an empty Source means the graph/pipeline itself.
type Message struct {
	Type   MessageType
	Source string
	Text   string

	// StateChanged payload
	OldState flow.PipelineState
	NewState flow.PipelineState

	// PadAdded payload
	Pad string

	// Qos payload
	Qos QosValues

	Time time.Time
}

// Subscription yields the message stream of one live graph. Messages are
// delivered in the order the graph emits them. Unsubscribe detaches and
// closes the channel; it is safe to call more than once.
type Subscription interface {
	Messages() <-chan Message
	Unsubscribe()
}
