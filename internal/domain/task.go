package domain

import (
	"time"

	"github.com/google/uuid"
)

type Status string

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsValid reports whether the status is one of the known lifecycle states.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusInFlight, StatusDispatched, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status allows no further transitions.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusDispatched, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

const (
	StatusPending    Status = "pending"
	StatusInFlight   Status = "in_flight"
	StatusDispatched Status = "dispatched"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

type EntityKind string

// String returns the string representation of the entity kind.
func (k EntityKind) String() string {
	return string(k)
}

// IsValid reports whether the entity kind is supported.
func (k EntityKind) IsValid() bool {
	switch k {
	case EntityReminder, EntityAppointment:
		return true
	default:
		return false
	}
}

const (
	EntityReminder    EntityKind = "reminder"
	EntityAppointment EntityKind = "appointment"
)

// EntityRef is a weak reference to the reminder or appointment a task serves.
// At most one task per EntityRef may be active (pending or in-flight) at a time.
type EntityRef struct {
	Kind EntityKind `json:"kind"`
	ID   uuid.UUID  `json:"id"`
}

// String returns "kind:id", used for logging and cache keys.
func (r EntityRef) String() string {
	return r.Kind.String() + ":" + r.ID.String()
}

// NotificationTask is the durable unit of work: one scheduled outbound message.
//
// ScheduledAt is immutable after creation; the retry edge re-arms the timer
// through NextAttemptAt instead. Version increments on every write and guards
// all concurrent state transitions.
type NotificationTask struct {
	ID            uuid.UUID `json:"id"`
	Entity        EntityRef `json:"entity"`
	Recipient     string    `json:"recipient"`
	Body          string    `json:"body"`
	ScheduledAt   time.Time `json:"scheduled_at"`
	NextAttemptAt time.Time `json:"next_attempt_at"`
	Status        Status    `json:"status"`
	Attempts      int       `json:"attempts"`
	DedupeKey     string    `json:"dedupe_key"`
	ProviderRef   string    `json:"provider_ref,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
	Version       int64     `json:"version"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// DedupeKeyFor derives the stable idempotency key passed to the gateway for a
// task. Retried and recovery-replayed attempts reuse it, so an
// idempotency-aware transport recognizes them as duplicates of the same send.
func DedupeKeyFor(id uuid.UUID) string {
	return "task-" + id.String()
}

// ReasonStaleOnRecovery marks tasks failed at startup because their fire time
// was already past the recovery grace window.
const ReasonStaleOnRecovery = "stale at recovery"
