package audit

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventSubscriptionCreated    = "subscription.created"
	EventSubscriptionReassigned = "subscription.reassigned"
	EventSubscriptionActivated  = "subscription.activated"
	EventSubscriptionCancelled  = "subscription.cancelled"
	EventSubscriptionExtended   = "subscription.extended"
	EventSubscriptionsExpired   = "subscriptions.expired"
	EventResourceCreated        = "resource.created"
	EventResourceToggled        = "resource.toggled"
)

// Event is a side-channel record of a successful state change.
type Event struct {
	ID             string            `json:"event_id"`
	Type           string            `json:"event_type"`
	OccurredAt     time.Time         `json:"occurred_at"`
	LibraryID      string            `json:"library_id,omitempty"`
	BranchID       string            `json:"branch_id,omitempty"`
	SubscriptionID string            `json:"subscription_id,omitempty"`
	ResourceKind   string            `json:"resource_kind,omitempty"`
	ResourceID     string            `json:"resource_id,omitempty"`
	Actor          string            `json:"actor,omitempty"`
	Detail         map[string]string `json:"detail,omitempty"`
}

func NewEvent(eventType string, occurredAt time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: occurredAt.UTC(),
	}
}

// RoutingKey is the topic key the event is published under.
func (e Event) RoutingKey() string {
	return "audit." + e.Type
}
