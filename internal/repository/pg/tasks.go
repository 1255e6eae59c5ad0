package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/zlog"

	"github.com/Murudula29/Dosemate/internal/domain"
)

const taskColumns = `id, entity_kind, entity_id, recipient, body, scheduled_at,
	next_attempt_at, status, attempts, dedupe_key, provider_ref, last_error,
	version, created_at, updated_at`

// uniqueViolation is the Postgres error code raised by the partial unique
// index on active tasks.
const uniqueViolation = "23505"

// TaskRepo stores notification tasks in PostgreSQL. All state transitions are
// version-guarded so concurrent actors resolve races through the database
// rather than in-process locks.
type TaskRepo struct {
	DB *dbpg.DB
}

// NewTaskRepo creates a new TaskRepo.
func NewTaskRepo(db *dbpg.DB) *TaskRepo {
	return &TaskRepo{DB: db}
}

// Create persists a new pending task. The partial unique index on
// (entity_kind, entity_id) for active statuses enforces the one-active-task
// invariant; a violation maps to domain.ErrActiveTaskExists.
func (r *TaskRepo) Create(ctx context.Context, params domain.CreateTaskParams) (*domain.NotificationTask, error) {
	sqlQuery := `INSERT INTO notification_tasks
		(id, entity_kind, entity_id, recipient, body, scheduled_at, next_attempt_at, dedupe_key)
		VALUES ($1, $2, $3, $4, $5, $6, $6, $7)
		RETURNING ` + taskColumns

	id := uuid.New()
	row := r.DB.QueryRowContext(ctx, sqlQuery,
		id,
		params.Entity.Kind,
		params.Entity.ID,
		params.Recipient,
		params.Body,
		params.ScheduledAt,
		domain.DedupeKeyFor(id),
	)

	task, err := scanTask(row)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, domain.ErrActiveTaskExists
		}
		zlog.Logger.Error().Err(err).Msg("failed to insert notification task")
		return nil, err
	}

	zlog.Logger.Debug().
		Str("task_id", task.ID.String()).
		Str("entity", task.Entity.String()).
		Time("scheduled_at", task.ScheduledAt).
		Msg("notification task created")

	return task, nil
}

// GetByID returns a task by id.
func (r *TaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.NotificationTask, error) {
	sqlQuery := `SELECT ` + taskColumns + ` FROM notification_tasks WHERE id = $1 LIMIT 1`

	task, err := scanTask(r.DB.QueryRowContext(ctx, sqlQuery, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		zlog.Logger.Error().Err(err).Msg("failed to scan notification task")
		return nil, err
	}
	return task, nil
}

// GetActiveByEntity returns the pending or in-flight task for an entity.
func (r *TaskRepo) GetActiveByEntity(ctx context.Context, ref domain.EntityRef) (*domain.NotificationTask, error) {
	sqlQuery := `SELECT ` + taskColumns + ` FROM notification_tasks
		WHERE entity_kind = $1 AND entity_id = $2 AND status IN ($3, $4) LIMIT 1`

	task, err := scanTask(r.DB.QueryRowContext(ctx, sqlQuery,
		ref.Kind, ref.ID, domain.StatusPending, domain.StatusInFlight))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		zlog.Logger.Error().Err(err).Msg("failed to scan active notification task")
		return nil, err
	}
	return task, nil
}

// UpdateStatus performs a version-guarded status transition. When the guard
// misses, the current row is reloaded to tell a stale version apart from a
// missing task.
func (r *TaskRepo) UpdateStatus(ctx context.Context, id uuid.UUID, expectedVersion int64,
	status domain.Status, opts ...domain.TaskUpdateOption) (*domain.NotificationTask, error) {
	if !status.IsValid() {
		return nil, domain.ErrInvalidTransition
	}

	params := &domain.TaskUpdateParams{}
	for _, opt := range opts {
		opt(params)
	}

	query, args := buildTaskUpdateSQL(id, expectedVersion, status, params)

	task, err := scanTask(r.DB.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, r.resolveGuardMiss(ctx, id)
		}
		zlog.Logger.Error().Err(err).Msg("failed to update notification task status")
		return nil, err
	}
	return task, nil
}

// Cancel transitions pending -> cancelled under the version guard.
func (r *TaskRepo) Cancel(ctx context.Context, id uuid.UUID, expectedVersion int64) error {
	sqlQuery := `UPDATE notification_tasks
		SET status = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND version = $3 AND status = $4`

	result, err := r.DB.ExecContext(ctx, sqlQuery,
		domain.StatusCancelled, id, expectedVersion, domain.StatusPending)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to cancel notification task")
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		current, err := r.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != domain.StatusPending {
			return domain.ErrInvalidTransition
		}
		return domain.ErrVersionConflict
	}
	return nil
}

// QueryDue returns pending tasks whose fire time has already passed.
func (r *TaskRepo) QueryDue(ctx context.Context, t time.Time) ([]domain.NotificationTask, error) {
	sqlQuery := `SELECT ` + taskColumns + ` FROM notification_tasks
		WHERE status = $1 AND next_attempt_at <= $2
		ORDER BY next_attempt_at, created_at, id`

	return r.queryTasks(ctx, sqlQuery, domain.StatusPending, t)
}

// QueryPending returns pending tasks whose fire time is still ahead.
func (r *TaskRepo) QueryPending(ctx context.Context, t time.Time) ([]domain.NotificationTask, error) {
	sqlQuery := `SELECT ` + taskColumns + ` FROM notification_tasks
		WHERE status = $1 AND next_attempt_at > $2
		ORDER BY next_attempt_at, created_at, id`

	return r.queryTasks(ctx, sqlQuery, domain.StatusPending, t)
}

func (r *TaskRepo) queryTasks(ctx context.Context, query string, args ...interface{}) ([]domain.NotificationTask, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to query notification tasks")
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var tasks []domain.NotificationTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			zlog.Logger.Error().Err(err).Msg("failed to scan notification task row")
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// resolveGuardMiss distinguishes a stale version from a missing row after a
// conditional update touched nothing.
func (r *TaskRepo) resolveGuardMiss(ctx context.Context, id uuid.UUID) error {
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return domain.ErrVersionConflict
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (*domain.NotificationTask, error) {
	var (
		task        domain.NotificationTask
		providerRef sql.NullString
		lastError   sql.NullString
	)

	err := row.Scan(
		&task.ID,
		&task.Entity.Kind,
		&task.Entity.ID,
		&task.Recipient,
		&task.Body,
		&task.ScheduledAt,
		&task.NextAttemptAt,
		&task.Status,
		&task.Attempts,
		&task.DedupeKey,
		&providerRef,
		&lastError,
		&task.Version,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	task.ProviderRef = providerRef.String
	task.LastError = lastError.String
	return &task, nil
}
