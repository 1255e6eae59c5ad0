package domain

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryEvent is published when a task reaches dispatched or failed, for
// downstream consumers (audit, analytics). Publishing is best effort and never
// affects the task's state.
type DeliveryEvent struct {
	TaskID      uuid.UUID `json:"task_id"`
	Entity      EntityRef `json:"entity"`
	Status      Status    `json:"status"`
	Attempts    int       `json:"attempts"`
	ProviderRef string    `json:"provider_ref,omitempty"`
	Error       string    `json:"error,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// EventPublisher publishes delivery events to the message broker.
type EventPublisher interface {
	PublishDelivery(event DeliveryEvent) error
}
