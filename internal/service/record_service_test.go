package service_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	rd "github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Murudula29/Dosemate/internal/domain"
	"github.com/Murudula29/Dosemate/internal/service"
)

type MockRecordStore struct {
	mock.Mock
}

func (m *MockRecordStore) Create(ctx context.Context, params domain.CreateRecordParams) (*domain.Record, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Record), args.Error(1)
}

func (m *MockRecordStore) GetByID(ctx context.Context, kind domain.EntityKind, id uuid.UUID) (*domain.Record, error) {
	args := m.Called(ctx, kind, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Record), args.Error(1)
}

func (m *MockRecordStore) Update(ctx context.Context, kind domain.EntityKind, id uuid.UUID,
	params domain.UpdateRecordParams) (*domain.Record, error) {
	args := m.Called(ctx, kind, id, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Record), args.Error(1)
}

func (m *MockRecordStore) Delete(ctx context.Context, kind domain.EntityKind, id uuid.UUID) error {
	args := m.Called(ctx, kind, id)
	return args.Error(0)
}

type MockTaskStore struct {
	mock.Mock
}

func (m *MockTaskStore) Create(ctx context.Context, params domain.CreateTaskParams) (*domain.NotificationTask, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.NotificationTask), args.Error(1)
}

func (m *MockTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.NotificationTask, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.NotificationTask), args.Error(1)
}

func (m *MockTaskStore) GetActiveByEntity(ctx context.Context, ref domain.EntityRef) (*domain.NotificationTask, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.NotificationTask), args.Error(1)
}

func (m *MockTaskStore) UpdateStatus(ctx context.Context, id uuid.UUID, expectedVersion int64,
	status domain.Status, opts ...domain.TaskUpdateOption) (*domain.NotificationTask, error) {
	args := m.Called(ctx, id, expectedVersion, status, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.NotificationTask), args.Error(1)
}

func (m *MockTaskStore) Cancel(ctx context.Context, id uuid.UUID, expectedVersion int64) error {
	args := m.Called(ctx, id, expectedVersion)
	return args.Error(0)
}

func (m *MockTaskStore) QueryDue(ctx context.Context, t time.Time) ([]domain.NotificationTask, error) {
	args := m.Called(ctx, t)
	return args.Get(0).([]domain.NotificationTask), args.Error(1)
}

func (m *MockTaskStore) QueryPending(ctx context.Context, t time.Time) ([]domain.NotificationTask, error) {
	args := m.Called(ctx, t)
	return args.Get(0).([]domain.NotificationTask), args.Error(1)
}

type MockScheduler struct {
	mock.Mock
}

func (m *MockScheduler) Schedule(ctx context.Context, params domain.ScheduleParams) (*domain.NotificationTask, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.NotificationTask), args.Error(1)
}

func (m *MockScheduler) Reschedule(ctx context.Context, params domain.ScheduleParams) (*domain.NotificationTask, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.NotificationTask), args.Error(1)
}

func (m *MockScheduler) Cancel(ctx context.Context, ref domain.EntityRef) error {
	args := m.Called(ctx, ref)
	return args.Error(0)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockCache) SetWithExpiration(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	args := m.Called(ctx, key, value, expiration)
	return args.Error(0)
}

func sampleRecord(kind domain.EntityKind) *domain.Record {
	return &domain.Record{
		ID:       uuid.New(),
		Kind:     kind,
		Title:    "aspirin",
		Phone:    "+15550001111",
		RemindAt: time.Now().Add(time.Hour),
	}
}

func sampleTask(entity domain.EntityRef) *domain.NotificationTask {
	id := uuid.New()
	return &domain.NotificationTask{
		ID:        id,
		Entity:    entity,
		Status:    domain.StatusPending,
		DedupeKey: domain.DedupeKeyFor(id),
		Version:   1,
	}
}

func TestCreateRecord_SchedulesNotification(t *testing.T) {
	ctx := context.Background()
	records := new(MockRecordStore)
	tasks := new(MockTaskStore)
	sched := new(MockScheduler)

	record := sampleRecord(domain.EntityReminder)
	task := sampleTask(record.Ref())

	records.On("Create", ctx, mock.Anything).Return(record, nil)
	sched.On("Schedule", ctx, mock.MatchedBy(func(p domain.ScheduleParams) bool {
		return p.Entity == record.Ref() &&
			p.Recipient == record.Phone &&
			p.ScheduledAt.Equal(record.RemindAt) &&
			p.Body != ""
	})).Return(task, nil)

	svc := service.NewRecordService(records, tasks, sched, nil, time.Minute)

	gotRecord, gotTask, err := svc.CreateRecord(ctx, domain.CreateRecordParams{
		Kind:     domain.EntityReminder,
		Title:    "aspirin",
		Phone:    "+15550001111",
		RemindAt: record.RemindAt,
	})

	require.NoError(t, err)
	assert.Equal(t, record.ID, gotRecord.ID)
	assert.Equal(t, task.ID, gotTask.ID)

	records.AssertExpectations(t)
	sched.AssertExpectations(t)
}

func TestCreateRecord_ScheduleFailurePropagates(t *testing.T) {
	ctx := context.Background()
	records := new(MockRecordStore)
	tasks := new(MockTaskStore)
	sched := new(MockScheduler)

	record := sampleRecord(domain.EntityReminder)

	records.On("Create", ctx, mock.Anything).Return(record, nil)
	sched.On("Schedule", ctx, mock.Anything).Return(nil, domain.ErrActiveTaskExists)

	svc := service.NewRecordService(records, tasks, sched, nil, time.Minute)

	_, _, err := svc.CreateRecord(ctx, domain.CreateRecordParams{
		Kind:     domain.EntityReminder,
		Title:    "aspirin",
		Phone:    "+15550001111",
		RemindAt: record.RemindAt,
	})

	assert.ErrorIs(t, err, domain.ErrActiveTaskExists)
}

func TestUpdateRecord_ReschedulesAfterVerifiedUpdate(t *testing.T) {
	ctx := context.Background()
	records := new(MockRecordStore)
	tasks := new(MockTaskStore)
	sched := new(MockScheduler)

	record := sampleRecord(domain.EntityAppointment)
	task := sampleTask(record.Ref())
	newTime := record.RemindAt.Add(2 * time.Hour)
	updated := *record
	updated.RemindAt = newTime

	records.On("Update", ctx, domain.EntityAppointment, record.ID, mock.Anything).
		Return(&updated, nil)
	sched.On("Reschedule", ctx, mock.MatchedBy(func(p domain.ScheduleParams) bool {
		return p.ScheduledAt.Equal(newTime)
	})).Return(task, nil)

	svc := service.NewRecordService(records, tasks, sched, nil, time.Minute)

	gotRecord, gotTask, err := svc.UpdateRecord(ctx, domain.EntityAppointment, record.ID,
		domain.UpdateRecordParams{RemindAt: &newTime})

	require.NoError(t, err)
	assert.True(t, gotRecord.RemindAt.Equal(newTime))
	assert.Equal(t, task.ID, gotTask.ID)
}

func TestUpdateRecord_MissingRecordSkipsReschedule(t *testing.T) {
	ctx := context.Background()
	records := new(MockRecordStore)
	tasks := new(MockTaskStore)
	sched := new(MockScheduler)

	id := uuid.New()
	records.On("Update", ctx, domain.EntityReminder, id, mock.Anything).
		Return(nil, domain.ErrRecordNotFound)

	svc := service.NewRecordService(records, tasks, sched, nil, time.Minute)

	_, _, err := svc.UpdateRecord(ctx, domain.EntityReminder, id, domain.UpdateRecordParams{})

	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
	sched.AssertNotCalled(t, "Reschedule")
}

func TestDeleteRecord_CancelsNotification(t *testing.T) {
	ctx := context.Background()
	records := new(MockRecordStore)
	tasks := new(MockTaskStore)
	sched := new(MockScheduler)

	id := uuid.New()
	records.On("Delete", ctx, domain.EntityReminder, id).Return(nil)
	sched.On("Cancel", ctx, domain.EntityRef{Kind: domain.EntityReminder, ID: id}).Return(nil)

	svc := service.NewRecordService(records, tasks, sched, nil, time.Minute)

	cancelled, err := svc.DeleteRecord(ctx, domain.EntityReminder, id)

	require.NoError(t, err)
	assert.True(t, cancelled)
}

func TestDeleteRecord_AlreadyFiredIsNotAnError(t *testing.T) {
	ctx := context.Background()
	records := new(MockRecordStore)
	tasks := new(MockTaskStore)
	sched := new(MockScheduler)

	id := uuid.New()
	records.On("Delete", ctx, domain.EntityReminder, id).Return(nil)
	sched.On("Cancel", ctx, mock.Anything).Return(domain.ErrAlreadyFired)

	svc := service.NewRecordService(records, tasks, sched, nil, time.Minute)

	cancelled, err := svc.DeleteRecord(ctx, domain.EntityReminder, id)

	require.NoError(t, err)
	assert.False(t, cancelled)
}

func TestGetTask_FromCache(t *testing.T) {
	ctx := context.Background()
	records := new(MockRecordStore)
	tasks := new(MockTaskStore)
	cache := new(MockCache)

	task := sampleTask(domain.EntityRef{Kind: domain.EntityReminder, ID: uuid.New()})
	data, _ := json.Marshal(task)

	cache.On("Get", ctx, "task:"+task.ID.String()).Return(string(data), nil)

	svc := service.NewRecordService(records, tasks, nil, cache, time.Minute)

	result, err := svc.GetTask(ctx, task.ID)

	require.NoError(t, err)
	assert.Equal(t, task.ID, result.ID)
	tasks.AssertNotCalled(t, "GetByID")
}

func TestGetTask_CacheMissReadsStore(t *testing.T) {
	ctx := context.Background()
	records := new(MockRecordStore)
	tasks := new(MockTaskStore)
	cache := new(MockCache)

	task := sampleTask(domain.EntityRef{Kind: domain.EntityReminder, ID: uuid.New()})

	cache.On("Get", ctx, "task:"+task.ID.String()).Return("", rd.Nil)
	tasks.On("GetByID", ctx, task.ID).Return(task, nil)
	cache.On("SetWithExpiration", ctx, "task:"+task.ID.String(), mock.Anything, time.Minute).Return(nil)

	svc := service.NewRecordService(records, tasks, nil, cache, time.Minute)

	result, err := svc.GetTask(ctx, task.ID)

	require.NoError(t, err)
	assert.Equal(t, task.ID, result.ID)
	tasks.AssertExpectations(t)
	cache.AssertExpectations(t)
}

func TestGetTask_NotFound(t *testing.T) {
	ctx := context.Background()
	records := new(MockRecordStore)
	tasks := new(MockTaskStore)
	cache := new(MockCache)

	id := uuid.New()
	cache.On("Get", ctx, "task:"+id.String()).Return("", rd.Nil)
	tasks.On("GetByID", ctx, id).Return(nil, domain.ErrTaskNotFound)

	svc := service.NewRecordService(records, tasks, nil, cache, time.Minute)

	result, err := svc.GetTask(ctx, id)

	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
}
