package natsclient

import (
	"encoding/json"
	"fmt"

	"github.com/eyevinn-osaas/strom-sub003/errors"
	"github.com/eyevinn-osaas/strom-sub003/pipeline"
)

// EventSubject returns the subject pipeline events for a flow publish to
func EventSubject(flowID string) string {
	return fmt.Sprintf("strom.flow.%s.events", flowID)
}

// EventPublisher publishes classified pipeline events to per-flow subjects.
// It implements pipeline.EventPublisher.
type EventPublisher struct {
	client *Client
}

// NewEventPublisher creates an event publisher on an existing client
func NewEventPublisher(client *Client) *EventPublisher {
	return &EventPublisher{client: client}
}

// PublishEvent publishes one event as JSON. Publication is best-effort:
// connection loss is reported but never interrupts in-process delivery.
func (p *EventPublisher) PublishEvent(ev pipeline.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return errors.WrapInvalid(err, "EventPublisher", "PublishEvent", "marshal event")
	}
	return p.client.Publish(EventSubject(ev.FlowID), data)
}
