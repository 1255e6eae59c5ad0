package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TaskStore is the durable repository of notification tasks. It is the single
// source of truth: every cross-actor coordination (scheduler firing vs cancel,
// dispatcher vs reschedule) is expressed through its version-guarded writes.
type TaskStore interface {
	// Create persists a new pending task. Returns ErrActiveTaskExists if the
	// entity already has a pending or in-flight task.
	Create(ctx context.Context, params CreateTaskParams) (*NotificationTask, error)
	// GetByID returns a task by id.
	GetByID(ctx context.Context, id uuid.UUID) (*NotificationTask, error)
	// GetActiveByEntity returns the pending or in-flight task for an entity.
	GetActiveByEntity(ctx context.Context, ref EntityRef) (*NotificationTask, error)
	// UpdateStatus performs a version-guarded status transition and returns
	// the updated task. Returns ErrVersionConflict if expectedVersion is stale.
	UpdateStatus(ctx context.Context, id uuid.UUID, expectedVersion int64,
		status Status, opts ...TaskUpdateOption) (*NotificationTask, error)
	// Cancel transitions pending -> cancelled. Returns ErrInvalidTransition
	// if the task already left pending (too late to cancel).
	Cancel(ctx context.Context, id uuid.UUID, expectedVersion int64) error
	// QueryDue returns pending tasks with next attempt at or before t.
	// Used only by the recovery loader.
	QueryDue(ctx context.Context, t time.Time) ([]NotificationTask, error)
	// QueryPending returns pending tasks with next attempt after t, ordered
	// the way the scheduler fires them.
	QueryPending(ctx context.Context, t time.Time) ([]NotificationTask, error)
}

// CreateTaskParams parameters for creating a task.
type CreateTaskParams struct {
	Entity      EntityRef
	Recipient   string
	Body        string
	ScheduledAt time.Time
}

// TaskUpdateOption supplies an optional field for a status transition.
type TaskUpdateOption func(*TaskUpdateParams)

// TaskUpdateParams optional fields written together with a status transition.
type TaskUpdateParams struct {
	NextAttemptAt *time.Time
	AttemptsInc   bool
	ProviderRef   *string
	LastError     *string
}

// WithNextAttemptAt sets the retry fire time.
func WithNextAttemptAt(t time.Time) TaskUpdateOption {
	return func(p *TaskUpdateParams) {
		p.NextAttemptAt = &t
	}
}

// WithAttemptsInc increments the attempt counter.
func WithAttemptsInc() TaskUpdateOption {
	return func(p *TaskUpdateParams) {
		p.AttemptsInc = true
	}
}

// WithProviderRef records the provider identifier returned on success.
func WithProviderRef(ref string) TaskUpdateOption {
	return func(p *TaskUpdateParams) {
		p.ProviderRef = &ref
	}
}

// WithLastError records the failure reason of the latest attempt.
func WithLastError(msg string) TaskUpdateOption {
	return func(p *TaskUpdateParams) {
		p.LastError = &msg
	}
}
