package pipeline

import (
	"fmt"

	"github.com/eyevinn-osaas/strom-sub003/flow"
)

// ElementCreationError reports a node that could not be created during
// pipeline construction.
type ElementCreationError struct {
	Element string
	Type    string
	Err     error
}

func (e *ElementCreationError) Error() string {
	return fmt.Sprintf("failed to create element '%s' (type %s): %v", e.Element, e.Type, e.Err)
}

func (e *ElementCreationError) Unwrap() error { return e.Err }

// LinkError reports a required static link that could not be completed
type LinkError struct {
	From flow.Endpoint
	To   flow.Endpoint
	Err  error
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("failed to link %s -> %s: %v", e.From, e.To, e.Err)
}

func (e *LinkError) Unwrap() error { return e.Err }

// InvalidPropertyError reports a property rejected by a live node
type InvalidPropertyError struct {
	Element  string
	Property string
	Reason   string
}

func (e *InvalidPropertyError) Error() string {
	return fmt.Sprintf("invalid property '%s' on element '%s': %s", e.Property, e.Element, e.Reason)
}

// PropertyNotMutableError reports a property change rejected because the
// pipeline's current lifecycle state forbids live mutation.
type PropertyNotMutableError struct {
	Element  string
	Property string
	State    flow.PipelineState
}

func (e *PropertyNotMutableError) Error() string {
	return fmt.Sprintf("property '%s' on element '%s' is not mutable in state %s",
		e.Property, e.Element, e.State)
}

// PadNotFoundError reports a pad-level operation against a pad the node
// does not currently expose.
type PadNotFoundError struct {
	Element string
	Pad     string
}

func (e *PadNotFoundError) Error() string {
	return fmt.Sprintf("pad '%s' not found on element '%s'", e.Pad, e.Element)
}

// StateChangeError reports a failed lifecycle transition of the live graph
type StateChangeError struct {
	Target flow.PipelineState
	Err    error
}

func (e *StateChangeError) Error() string {
	return fmt.Sprintf("state change to %s failed: %v", e.Target, e.Err)
}

func (e *StateChangeError) Unwrap() error { return e.Err }
