// Package strom compiles declarative flow definitions into live
// execution graphs and manages their lifecycle.
//
// A flow describes processing topology symbolically: elements (primitive
// processing nodes), blocks (reusable sub-graphs expanded from a
// catalog), and links between named pads. The compiler expands blocks,
// inserts distribution points wherever one source pad feeds several
// sinks, and emits a deterministic pipeline description. The pipeline
// manager realizes that description against a node.Provider, drives the
// lifecycle state machine, resolves dynamically created pads at
// runtime, aggregates quality-of-service telemetry, and recycles
// single-use ingest endpoints after each client session.
//
// Package layout:
//
//   - flow:      declarative flow model and structural validation
//   - catalog:   reusable block definitions
//   - node:      node-type registry and the execution-graph contract
//   - bus:       typed message stream from a live graph
//   - clock:     reference-counted shared clock domains
//   - compiler:  block expansion, topology building, pad resolution
//   - pipeline:  lifecycle manager, monitor, endpoint recovery, service
//   - simgraph:  in-process simulated engine binding
//   - testutil:  instrumented fakes for tests
//
// The media engine itself is out of scope: nodes are opaque, and any
// binding that satisfies node.Provider can execute compiled pipelines.
package strom
