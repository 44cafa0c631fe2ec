// Package compiler turns a declarative flow into an executable pipeline
// description in three passes:
//
//  1. Block expansion: every block instance is replaced by its definition's
//     internal elements and links, ids namespaced "<instance>:<internal>",
//     exposed property values written through (optionally transformed), and
//     block-external-pad link endpoints rewritten to concrete element pads.
//  2. Node-type validation: expanded element types must exist in the node
//     registry, and their property maps must satisfy the type's schema.
//  3. Topology building: any output pad referenced as the source of two or
//     more links gets exactly one distribution node; single-consumer links
//     pass through unchanged.
//
// All three passes are deterministic: compiling identical input twice
// yields byte-identical element ids, link sets, and distribution-point
// names.
package compiler
