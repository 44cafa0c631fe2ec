// Package pipeline runs compiled flows against a live execution graph.
//
// # Overview
//
// One Manager owns one live graph per started flow. The Service keeps a
// manager per flow id and is the surface the API layer consumes: Start,
// Stop, State, SetProperty, DynamicPads, DebugGraph, Subscribe.
//
// # Lifecycle
//
// The control-surface state machine:
//
//	null ──Start()──> constructing ──> ready ──> playing ⇄ paused
//	                        │            │          │
//	                        └────────────┴──Stop()──┴──> stopped
//
// plus a terminal error state reachable from any non-terminal state.
// Start and Stop are idempotent. The cached lifecycle state returned by
// State is only what the event monitor observed on the graph's bus; the
// live graph is never queried synchronously, which is unsafe for some
// asynchronous node types mid-transition.
//
// # Event monitoring
//
// Each manager drains its graph's bus subscription on one dedicated
// goroutine and classifies messages:
//
//   - Error: forwarded as an error event, except errors from a single-use
//     ingest endpoint's subtree, which are logged at warning level and
//     trigger endpoint recovery instead.
//   - Warning, Info, EOS: forwarded with the source node name.
//   - StateChanged: pipeline-level changes update the cached state; child
//     changes are logged only.
//   - PadAdded: completes matching pending links, or routes an unexpected
//     pad to a permissive distribution point.
//   - Qos: accumulated per node and drained once per interval into one
//     summary event per active node.
//
// # Blocking work
//
// Graph teardown and ingest-endpoint recreation may block inside node
// internals, so both run as tasks on a worker pool shared across the
// service. No bus-drain goroutine ever calls a blocking graph operation.
package pipeline
