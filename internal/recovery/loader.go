package recovery

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"github.com/Murudula29/Dosemate/internal/domain"
)

// Armer is the scheduler's timing-structure insertion point.
type Armer interface {
	Arm(id uuid.UUID, version int64, at, createdAt time.Time)
}

// Config recovery settings.
type Config struct {
	// GraceWindow is the maximum staleness for an overdue task to still be
	// worth sending at startup.
	GraceWindow time.Duration
}

// Loader reconciles the scheduler's in-memory state with the store at process
// start: overdue tasks within the grace window are dispatched late, overdue
// tasks beyond it are failed without sending, and future tasks are re-armed.
//
// Running it twice cannot double-dispatch: late fires go through the same
// optimistic in-flight claim as normal firing, so a second pass sees those
// tasks out of pending and skips them.
type Loader struct {
	store domain.TaskStore
	armer Armer
	cfg   Config
}

// New creates a Loader.
func New(store domain.TaskStore, armer Armer, cfg Config) *Loader {
	if cfg.GraceWindow <= 0 {
		cfg.GraceWindow = 15 * time.Minute
	}
	return &Loader{store: store, armer: armer, cfg: cfg}
}

// Run performs one reconciliation pass. Called once at startup, before the
// API accepts new scheduling requests.
func (l *Loader) Run(ctx context.Context) error {
	now := time.Now()

	due, err := l.store.QueryDue(ctx, now)
	if err != nil {
		return err
	}

	var late, stale int
	for i := range due {
		task := &due[i]
		if now.Sub(task.NextAttemptAt) > l.cfg.GraceWindow {
			l.failStale(ctx, task)
			stale++
			continue
		}
		// Late but still relevant: arm at now so the normal fire path picks
		// it up immediately.
		l.armer.Arm(task.ID, task.Version, now, task.CreatedAt)
		late++
	}

	pending, err := l.store.QueryPending(ctx, now)
	if err != nil {
		return err
	}
	for i := range pending {
		task := &pending[i]
		l.armer.Arm(task.ID, task.Version, task.NextAttemptAt, task.CreatedAt)
	}

	zlog.Logger.Info().
		Int("late", late).
		Int("stale", stale).
		Int("pending", len(pending)).
		Msg("recovery pass completed")

	return nil
}

func (l *Loader) failStale(ctx context.Context, task *domain.NotificationTask) {
	_, err := l.store.UpdateStatus(ctx, task.ID, task.Version, domain.StatusFailed,
		domain.WithLastError(domain.ReasonStaleOnRecovery))
	if err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			// another actor got there first, nothing to do
			return
		}
		zlog.Logger.Error().Err(err).
			Str("task_id", task.ID.String()).
			Msg("failed to mark stale task")
		return
	}

	zlog.Logger.Warn().
		Str("task_id", task.ID.String()).
		Time("scheduled_at", task.ScheduledAt).
		Msg("task stale at recovery, failed without sending")
}
