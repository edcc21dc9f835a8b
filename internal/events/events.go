package events

import "context"

// Event types
const (
	EventStakeholderCreated = "stakeholder_created"
	EventStakeholderUpdated = "stakeholder_updated"
	EventStakeholderDeleted = "stakeholder_deleted"
)

// StreamStakeholders is the pub/sub channel lifecycle events go out on.
const StreamStakeholders = "stakeholder_events"

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}
