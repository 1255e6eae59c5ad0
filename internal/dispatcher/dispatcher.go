package dispatcher

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/Murudula29/Dosemate/internal/domain"
)

// Armer re-inserts an entry into the scheduler's timing structure. The
// dispatcher uses it to arm retries and to defer a fire when the store is
// briefly unreachable.
type Armer interface {
	Arm(id uuid.UUID, version int64, at, createdAt time.Time)
}

// Config dispatcher settings.
type Config struct {
	// MaxAttempts bounds transient retries per task.
	MaxAttempts int
	// SendTimeout bounds a single gateway call.
	SendTimeout time.Duration
	// Backoff is the retry delay policy.
	Backoff Backoff
	// StoreRetry is applied to state-transition writes after the message has
	// already been handled, where giving up would lose the outcome.
	StoreRetry retry.Strategy
}

// Dispatcher performs one logical delivery attempt for a fired task: claim
// in-flight under the version guard, send through the gateway, persist the
// outcome. Exactly one in-flight claim can succeed per version, so no task is
// ever sent twice.
type Dispatcher struct {
	store   domain.TaskStore
	gateway domain.MessageGateway
	events  domain.EventPublisher
	armer   Armer
	cfg     Config
}

// New creates a Dispatcher. events may be nil; SetArmer must be called before
// the first Dispatch.
func New(store domain.TaskStore, gateway domain.MessageGateway,
	events domain.EventPublisher, cfg Config) *Dispatcher {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if cfg.StoreRetry.Attempts <= 0 {
		cfg.StoreRetry = retry.Strategy{Attempts: 3, Delay: 200 * time.Millisecond, Backoff: 2}
	}
	return &Dispatcher{
		store:   store,
		gateway: gateway,
		events:  events,
		cfg:     cfg,
	}
}

// SetArmer wires the scheduler back in after both are constructed.
func (d *Dispatcher) SetArmer(a Armer) {
	d.armer = a
}

// Dispatch handles one fired entry end to end.
func (d *Dispatcher) Dispatch(ctx context.Context, id uuid.UUID, expectedVersion int64) {
	task := d.claim(ctx, id, expectedVersion)
	if task == nil {
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	result, sendErr := d.gateway.Send(sendCtx, task.Recipient, task.Body, task.DedupeKey)
	cancel()

	if sendErr == nil {
		d.finishDispatched(ctx, task, result)
		return
	}

	attempt := task.Attempts + 1
	transient := domain.IsTransientSendError(sendErr) || errors.Is(sendErr, context.DeadlineExceeded)
	if transient && attempt < d.cfg.MaxAttempts {
		d.scheduleRetry(ctx, task, sendErr)
		return
	}
	d.finishFailed(ctx, task, sendErr, attempt)
}

// claim performs the optimistic pending -> in_flight transition. A version
// conflict means a concurrent cancel or reschedule won; the fire is abandoned
// silently. A store outage defers the fire instead of dropping it.
func (d *Dispatcher) claim(ctx context.Context, id uuid.UUID, expectedVersion int64) *domain.NotificationTask {
	task, err := d.store.UpdateStatus(ctx, id, expectedVersion, domain.StatusInFlight)
	switch {
	case err == nil:
		return task
	case errors.Is(err, domain.ErrVersionConflict):
		zlog.Logger.Debug().
			Str("task_id", id.String()).
			Msg("fire lost to a concurrent transition, abandoning")
	case errors.Is(err, domain.ErrTaskNotFound):
		zlog.Logger.Warn().
			Str("task_id", id.String()).
			Msg("fired task no longer exists")
	default:
		zlog.Logger.Warn().Err(err).
			Str("task_id", id.String()).
			Msg("store unavailable at claim, deferring fire")
		if d.armer != nil {
			d.armer.Arm(id, expectedVersion, time.Now().Add(d.cfg.Backoff.Delay(0)), time.Time{})
		}
	}
	return nil
}

func (d *Dispatcher) finishDispatched(ctx context.Context, task *domain.NotificationTask, result *domain.SendResult) {
	updated, err := d.updateWithRetry(ctx, task.ID, task.Version, domain.StatusDispatched,
		domain.WithAttemptsInc(), domain.WithProviderRef(result.ProviderRef))
	if err != nil {
		// The message is out; the dedupe key keeps a replay from becoming a
		// second send even though the terminal state could not be persisted.
		zlog.Logger.Error().Err(err).
			Str("task_id", task.ID.String()).
			Msg("message sent but terminal state not persisted")
		return
	}

	zlog.Logger.Info().
		Str("task_id", updated.ID.String()).
		Str("provider_ref", updated.ProviderRef).
		Int("attempts", updated.Attempts).
		Msg("notification dispatched")

	d.publishDelivery(updated)
}

func (d *Dispatcher) scheduleRetry(ctx context.Context, task *domain.NotificationTask, sendErr error) {
	next := time.Now().Add(d.cfg.Backoff.Delay(task.Attempts))

	updated, err := d.updateWithRetry(ctx, task.ID, task.Version, domain.StatusPending,
		domain.WithAttemptsInc(), domain.WithNextAttemptAt(next), domain.WithLastError(sendErr.Error()))
	if err != nil {
		zlog.Logger.Error().Err(err).
			Str("task_id", task.ID.String()).
			Msg("failed to persist retry transition")
		return
	}

	zlog.Logger.Warn().
		Str("task_id", updated.ID.String()).
		Int("attempts", updated.Attempts).
		Time("next_attempt_at", updated.NextAttemptAt).
		Str("error", sendErr.Error()).
		Msg("transient delivery failure, retry armed")

	if d.armer != nil {
		d.armer.Arm(updated.ID, updated.Version, updated.NextAttemptAt, updated.CreatedAt)
	}
}

func (d *Dispatcher) finishFailed(ctx context.Context, task *domain.NotificationTask, sendErr error, attempt int) {
	updated, err := d.updateWithRetry(ctx, task.ID, task.Version, domain.StatusFailed,
		domain.WithAttemptsInc(), domain.WithLastError(sendErr.Error()))
	if err != nil {
		zlog.Logger.Error().Err(err).
			Str("task_id", task.ID.String()).
			Msg("failed to persist failed state")
		return
	}

	zlog.Logger.Error().
		Str("task_id", updated.ID.String()).
		Int("attempts", attempt).
		Str("error", sendErr.Error()).
		Msg("notification failed permanently")

	d.publishDelivery(updated)
}

// updateWithRetry retries a state transition through transient store errors.
// Version conflicts and missing tasks are final and returned immediately.
func (d *Dispatcher) updateWithRetry(ctx context.Context, id uuid.UUID, expectedVersion int64,
	status domain.Status, opts ...domain.TaskUpdateOption) (*domain.NotificationTask, error) {
	var (
		updated  *domain.NotificationTask
		finalErr error
	)

	err := retry.Do(func() error {
		t, uerr := d.store.UpdateStatus(ctx, id, expectedVersion, status, opts...)
		if uerr == nil {
			updated = t
			return nil
		}
		if errors.Is(uerr, domain.ErrVersionConflict) || errors.Is(uerr, domain.ErrTaskNotFound) {
			finalErr = uerr
			return nil
		}
		return uerr
	}, d.cfg.StoreRetry)

	if finalErr != nil {
		return nil, finalErr
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (d *Dispatcher) publishDelivery(task *domain.NotificationTask) {
	if d.events == nil {
		return
	}

	event := domain.DeliveryEvent{
		TaskID:      task.ID,
		Entity:      task.Entity,
		Status:      task.Status,
		Attempts:    task.Attempts,
		ProviderRef: task.ProviderRef,
		Error:       task.LastError,
		OccurredAt:  time.Now().UTC(),
	}
	if err := d.events.PublishDelivery(event); err != nil {
		zlog.Logger.Warn().Err(err).
			Str("task_id", task.ID.String()).
			Msg("failed to publish delivery event")
	}
}
