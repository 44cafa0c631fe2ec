// Package flow defines the declarative flow model: primitive elements,
// reusable block instances, typed pad links, and flow-level runtime
// properties. A Flow is the input to the compiler in package compiler and
// the unit of lifecycle management in package pipeline.
package flow
