package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"github.com/Murudula29/Dosemate/internal/domain"
)

const taskCacheKeyPrefix = "task:"

// RecordService owns reminder and appointment records and drives the
// notification scheduler as a side effect of their CRUD. The message payload
// is snapshotted at schedule time: editing a record later only changes the
// outgoing text through an explicit reschedule.
type RecordService struct {
	records   domain.RecordStore
	tasks     domain.TaskStore
	scheduler domain.NotificationScheduler
	cache     domain.TaskCache
	cacheTTL  time.Duration
}

// NewRecordService creates a RecordService.
func NewRecordService(
	records domain.RecordStore,
	tasks domain.TaskStore,
	scheduler domain.NotificationScheduler,
	cache domain.TaskCache,
	cacheTTL time.Duration) *RecordService {
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	return &RecordService{
		records:   records,
		tasks:     tasks,
		scheduler: scheduler,
		cache:     cache,
		cacheTTL:  cacheTTL,
	}
}

// CreateRecord creates a record and schedules its notification.
func (s *RecordService) CreateRecord(ctx context.Context,
	params domain.CreateRecordParams) (*domain.Record, *domain.NotificationTask, error) {
	record, err := s.records.Create(ctx, params)
	if err != nil {
		return nil, nil, err
	}

	task, err := s.scheduler.Schedule(ctx, domain.ScheduleParams{
		Entity:      record.Ref(),
		Recipient:   record.Phone,
		Body:        composeBody(record),
		ScheduledAt: record.RemindAt,
	})
	if err != nil {
		zlog.Logger.Error().Err(err).
			Str("record_id", record.ID.String()).
			Msg("record created but scheduling failed")
		return nil, nil, err
	}

	return record, task, nil
}

// UpdateRecord updates a record and reschedules its notification. The
// reschedule only happens once the record update has verifiably succeeded.
func (s *RecordService) UpdateRecord(ctx context.Context, kind domain.EntityKind, id uuid.UUID,
	params domain.UpdateRecordParams) (*domain.Record, *domain.NotificationTask, error) {
	record, err := s.records.Update(ctx, kind, id, params)
	if err != nil {
		return nil, nil, err
	}

	task, err := s.scheduler.Reschedule(ctx, domain.ScheduleParams{
		Entity:      record.Ref(),
		Recipient:   record.Phone,
		Body:        composeBody(record),
		ScheduledAt: record.RemindAt,
	})
	if err != nil {
		return nil, nil, err
	}

	return record, task, nil
}

// DeleteRecord deletes a record and cancels its notification. A cancel that
// arrives too late is reported in the result, not as a failure.
func (s *RecordService) DeleteRecord(ctx context.Context, kind domain.EntityKind, id uuid.UUID) (bool, error) {
	if err := s.records.Delete(ctx, kind, id); err != nil {
		return false, err
	}

	err := s.scheduler.Cancel(ctx, domain.EntityRef{Kind: kind, ID: id})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyFired) {
			zlog.Logger.Info().
				Str("kind", kind.String()).
				Str("record_id", id.String()).
				Msg("record deleted after its notification fired")
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// GetRecord returns a record by kind and id.
func (s *RecordService) GetRecord(ctx context.Context, kind domain.EntityKind, id uuid.UUID) (*domain.Record, error) {
	return s.records.GetByID(ctx, kind, id)
}

// GetTask returns a task by id, read through the cache. The TTL is short so a
// pending task's status does not stay stale for long.
func (s *RecordService) GetTask(ctx context.Context, id uuid.UUID) (*domain.NotificationTask, error) {
	key := taskCacheKeyPrefix + id.String()

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, key)
		if err != nil && !errors.Is(err, redis.Nil) {
			zlog.Logger.Warn().Err(err).Str("task_id", id.String()).Msg("task cache read failed")
		}
		if err == nil {
			var task domain.NotificationTask
			if uerr := json.Unmarshal([]byte(cached), &task); uerr == nil {
				return &task, nil
			}
			zlog.Logger.Warn().Str("task_id", id.String()).Msg("dropping undecodable task cache entry")
		}
	}

	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		data, merr := json.Marshal(task)
		if merr == nil {
			if serr := s.cache.SetWithExpiration(ctx, key, data, s.cacheTTL); serr != nil {
				zlog.Logger.Warn().Err(serr).Str("task_id", id.String()).Msg("task cache write failed")
			}
		}
	}

	return task, nil
}

// composeBody renders the outgoing message text for a record.
func composeBody(r *domain.Record) string {
	at := r.RemindAt.Format("Mon, 2 Jan 15:04")
	switch r.Kind {
	case domain.EntityAppointment:
		if r.Notes != "" {
			return fmt.Sprintf("Dosemate: appointment %q at %s. %s", r.Title, at, r.Notes)
		}
		return fmt.Sprintf("Dosemate: appointment %q at %s.", r.Title, at)
	default:
		if r.Notes != "" {
			return fmt.Sprintf("Dosemate: time to take %s. %s", r.Title, r.Notes)
		}
		return fmt.Sprintf("Dosemate: time to take %s.", r.Title)
	}
}
