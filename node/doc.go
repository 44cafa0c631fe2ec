// Package node abstracts the media engine's node model behind a fixed
// capability set: create a node, set and get typed properties, link pads,
// drive graph state, subscribe to the bus. The Registry tags node types
// with the capabilities the compiler and pipeline manager key on (dynamic
// pads, unlinked-output tolerance, single-use ingest), so new node types
// register without compiler changes.
package node
