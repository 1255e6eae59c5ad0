package domain

import "errors"

var (
	// ErrEmptyRecipient recipient is missing.
	ErrEmptyRecipient = errors.New("recipient is empty")
	// ErrEmptyBody message body is missing.
	ErrEmptyBody = errors.New("message body is empty")
	// ErrZeroScheduleTime schedule time is missing.
	ErrZeroScheduleTime = errors.New("scheduled time is required")
	// ErrInvalidEntityKind unsupported entity kind.
	ErrInvalidEntityKind = errors.New("invalid entity kind")

	// ErrActiveTaskExists the entity already has a pending or in-flight task.
	// The caller may resolve it by rescheduling instead.
	ErrActiveTaskExists = errors.New("entity already has an active notification task")
	// ErrVersionConflict an optimistic-concurrency write lost to a concurrent
	// transition. Resolved internally, never surfaced to API clients.
	ErrVersionConflict = errors.New("task version conflict")
	// ErrInvalidTransition the task is no longer in a state the requested
	// transition starts from.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrAlreadyFired cancel arrived after the task left pending.
	ErrAlreadyFired = errors.New("notification already fired")

	// ErrTaskNotFound notification task not found.
	ErrTaskNotFound = errors.New("notification task not found")
	// ErrRecordNotFound reminder or appointment record not found.
	ErrRecordNotFound = errors.New("record not found")
)
