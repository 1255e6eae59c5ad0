package domain

import (
	"context"
	"time"
)

// NotificationScheduler is the single timing authority. The domain layer calls
// it as a side effect of record CRUD.
type NotificationScheduler interface {
	// Schedule creates a pending task and arms its timer. Returns
	// ErrActiveTaskExists if the entity already has an active task; the
	// caller decides whether to Reschedule instead.
	Schedule(ctx context.Context, params ScheduleParams) (*NotificationTask, error)
	// Reschedule cancels the entity's active task, if any, and schedules a
	// new one. If the old task already fired, the new schedule still
	// proceeds; the old task's outcome is independent.
	Reschedule(ctx context.Context, params ScheduleParams) (*NotificationTask, error)
	// Cancel cancels the entity's active task. Returns ErrAlreadyFired when
	// it is too late to cancel.
	Cancel(ctx context.Context, ref EntityRef) error
}

// ScheduleParams parameters for scheduling a notification.
type ScheduleParams struct {
	Entity      EntityRef
	Recipient   string
	Body        string
	ScheduledAt time.Time
}

// Validate rejects malformed schedule requests before any task is created.
func (p ScheduleParams) Validate() error {
	if !p.Entity.Kind.IsValid() {
		return ErrInvalidEntityKind
	}
	if p.Recipient == "" {
		return ErrEmptyRecipient
	}
	if p.Body == "" {
		return ErrEmptyBody
	}
	if p.ScheduledAt.IsZero() {
		return ErrZeroScheduleTime
	}
	return nil
}
