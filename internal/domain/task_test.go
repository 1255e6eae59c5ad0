package domain_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/Murudula29/Dosemate/internal/domain"
)

func TestStatus_IsValid(t *testing.T) {
	valid := []domain.Status{
		domain.StatusPending,
		domain.StatusInFlight,
		domain.StatusDispatched,
		domain.StatusFailed,
		domain.StatusCancelled,
	}
	for _, s := range valid {
		assert.True(t, s.IsValid(), s.String())
	}
	assert.False(t, domain.Status("teleported").IsValid())
	assert.False(t, domain.Status("").IsValid())
}

func TestStatus_IsTerminal(t *testing.T) {
	assert.False(t, domain.StatusPending.IsTerminal())
	assert.False(t, domain.StatusInFlight.IsTerminal())
	assert.True(t, domain.StatusDispatched.IsTerminal())
	assert.True(t, domain.StatusFailed.IsTerminal())
	assert.True(t, domain.StatusCancelled.IsTerminal())
}

func TestEntityKind_IsValid(t *testing.T) {
	assert.True(t, domain.EntityReminder.IsValid())
	assert.True(t, domain.EntityAppointment.IsValid())
	assert.False(t, domain.EntityKind("note").IsValid())
}

func TestDedupeKeyFor_Stable(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, domain.DedupeKeyFor(id), domain.DedupeKeyFor(id))
	assert.NotEqual(t, domain.DedupeKeyFor(id), domain.DedupeKeyFor(uuid.New()))
}

func TestScheduleParams_Validate(t *testing.T) {
	base := domain.ScheduleParams{
		Entity:      domain.EntityRef{Kind: domain.EntityReminder, ID: uuid.New()},
		Recipient:   "+15550001111",
		Body:        "time to take aspirin",
		ScheduledAt: time.Now().Add(time.Hour),
	}
	assert.NoError(t, base.Validate())

	p := base
	p.Entity.Kind = "note"
	assert.ErrorIs(t, p.Validate(), domain.ErrInvalidEntityKind)

	p = base
	p.Recipient = ""
	assert.ErrorIs(t, p.Validate(), domain.ErrEmptyRecipient)

	p = base
	p.Body = ""
	assert.ErrorIs(t, p.Validate(), domain.ErrEmptyBody)

	p = base
	p.ScheduledAt = time.Time{}
	assert.ErrorIs(t, p.Validate(), domain.ErrZeroScheduleTime)
}

func TestSendError_Classification(t *testing.T) {
	transient := domain.TransientSendError(assert.AnError)
	permanent := domain.PermanentSendError(assert.AnError)

	assert.True(t, domain.IsTransientSendError(transient))
	assert.False(t, domain.IsTransientSendError(permanent))
	assert.False(t, domain.IsTransientSendError(assert.AnError))
	assert.ErrorIs(t, transient, assert.AnError)
}
