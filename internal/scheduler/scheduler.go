package scheduler

import (
	"container/heap"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"github.com/Murudula29/Dosemate/internal/domain"
)

// TaskDispatcher performs one delivery attempt for a fired entry. The
// optimistic in-flight claim happens inside the dispatcher, so an entry whose
// task was cancelled between firing and claiming is abandoned there.
type TaskDispatcher interface {
	Dispatch(ctx context.Context, id uuid.UUID, expectedVersion int64)
}

// Config scheduler settings.
type Config struct {
	// Workers is the dispatch worker pool size.
	Workers int
	// QueueSize bounds the fired-entry handoff buffer.
	QueueSize int
}

type opKind int

const (
	opArm opKind = iota
	opDisarm
)

type command struct {
	op opKind
	e  entry
}

// Scheduler is the single timing authority. One owner goroutine holds the
// in-memory heap exclusively; Schedule, Reschedule, Cancel and the recovery
// loader talk to it through a command channel, never by touching the heap.
// Fired entries are handed to a bounded worker pool so a slow gateway call
// cannot stall the timing loop.
type Scheduler struct {
	store      domain.TaskStore
	dispatcher TaskDispatcher
	cfg        Config

	cmds  chan command
	fired chan entry
}

// New creates a Scheduler. Run must be started before the first Schedule call.
func New(store domain.TaskStore, dispatcher TaskDispatcher, cfg Config) *Scheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	return &Scheduler{
		store:      store,
		dispatcher: dispatcher,
		cfg:        cfg,
		cmds:       make(chan command, 128),
		fired:      make(chan entry, cfg.QueueSize),
	}
}

// Run starts the worker pool and the timing loop, and blocks until ctx is
// cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			s.worker(ctx, n)
		}(i)
	}

	zlog.Logger.Info().Int("workers", s.cfg.Workers).Msg("scheduler started")
	s.loop(ctx)
	wg.Wait()
	zlog.Logger.Info().Msg("scheduler stopped")
}

// Schedule persists a new task and arms its timer.
func (s *Scheduler) Schedule(ctx context.Context, params domain.ScheduleParams) (*domain.NotificationTask, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	task, err := s.store.Create(ctx, domain.CreateTaskParams{
		Entity:      params.Entity,
		Recipient:   params.Recipient,
		Body:        params.Body,
		ScheduledAt: params.ScheduledAt,
	})
	if err != nil {
		return nil, err
	}

	s.armTask(task)

	zlog.Logger.Info().
		Str("task_id", task.ID.String()).
		Str("entity", task.Entity.String()).
		Time("scheduled_at", task.ScheduledAt).
		Msg("notification scheduled")

	return task, nil
}

// Reschedule cancels the entity's active task, if any, and schedules a new
// one. A cancel that loses to an in-flight fire is not an error: the old
// task's delivery proceeds independently and the new task is still created.
func (s *Scheduler) Reschedule(ctx context.Context, params domain.ScheduleParams) (*domain.NotificationTask, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.store.GetActiveByEntity(ctx, params.Entity)
	switch {
	case err == nil:
		if cerr := s.store.Cancel(ctx, existing.ID, existing.Version); cerr != nil {
			if !errors.Is(cerr, domain.ErrInvalidTransition) && !errors.Is(cerr, domain.ErrVersionConflict) {
				return nil, cerr
			}
			zlog.Logger.Info().
				Str("task_id", existing.ID.String()).
				Msg("previous task already firing, rescheduling alongside it")
		} else {
			s.disarm(existing.ID)
		}
	case errors.Is(err, domain.ErrTaskNotFound):
		// nothing active, plain schedule
	default:
		return nil, err
	}

	return s.Schedule(ctx, params)
}

// Cancel cancels the entity's active task. Returns domain.ErrAlreadyFired when
// the task left pending before the cancel landed.
func (s *Scheduler) Cancel(ctx context.Context, ref domain.EntityRef) error {
	task, err := s.store.GetActiveByEntity(ctx, ref)
	if err != nil {
		if errors.Is(err, domain.ErrTaskNotFound) {
			return domain.ErrAlreadyFired
		}
		return err
	}

	if err := s.store.Cancel(ctx, task.ID, task.Version); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) || errors.Is(err, domain.ErrVersionConflict) {
			return domain.ErrAlreadyFired
		}
		return err
	}

	s.disarm(task.ID)

	zlog.Logger.Info().
		Str("task_id", task.ID.String()).
		Str("entity", ref.String()).
		Msg("notification cancelled")

	return nil
}

// Arm inserts an entry into the timing structure. Used by the recovery loader
// and by the dispatcher when re-arming a retry.
func (s *Scheduler) Arm(id uuid.UUID, version int64, at, createdAt time.Time) {
	s.cmds <- command{op: opArm, e: entry{id: id, version: version, at: at, createdAt: createdAt}}
}

func (s *Scheduler) armTask(t *domain.NotificationTask) {
	s.Arm(t.ID, t.Version, t.NextAttemptAt, t.CreatedAt)
}

func (s *Scheduler) disarm(id uuid.UUID) {
	s.cmds <- command{op: opDisarm, e: entry{id: id}}
}

// loop owns the heap. Every iteration re-derives the wake-up time from the
// heap top, so arming an earlier entry takes effect as soon as its command is
// consumed. A stale timer tick pops nothing and is harmless.
func (s *Scheduler) loop(ctx context.Context) {
	h := &taskHeap{}
	heap.Init(h)

	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		var timerC <-chan time.Time
		if h.Len() > 0 {
			wait := time.Until((*h)[0].at)
			if wait < 0 {
				wait = 0
			}
			timer.Reset(wait)
			timerC = timer.C
		}

		select {
		case <-ctx.Done():
			return
		case cmd := <-s.cmds:
			s.apply(h, cmd)
		case <-timerC:
			s.fireDue(ctx, h)
		}
	}
}

func (s *Scheduler) apply(h *taskHeap, cmd command) {
	switch cmd.op {
	case opArm:
		e := cmd.e
		heap.Push(h, &e)
	case opDisarm:
		if i := h.indexOf(cmd.e.id); i >= 0 {
			heap.Remove(h, i)
		}
	}
}

// fireDue pops every entry whose time has come and hands it to the pool.
func (s *Scheduler) fireDue(ctx context.Context, h *taskHeap) {
	now := time.Now()
	for h.Len() > 0 && !(*h)[0].at.After(now) {
		e := heap.Pop(h).(*entry)
		select {
		case s.fired <- *e:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) worker(ctx context.Context, n int) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-s.fired:
			zlog.Logger.Debug().
				Int("worker", n).
				Str("task_id", e.id.String()).
				Msg("task fired")
			s.dispatcher.Dispatch(ctx, e.id, e.version)
		}
	}
}
