package handlers

import (
	"time"

	"github.com/google/uuid"

	"github.com/Murudula29/Dosemate/internal/domain"
)

type TaskResponse struct {
	ID            uuid.UUID `json:"id"`
	EntityKind    string    `json:"entity_kind"`
	EntityID      uuid.UUID `json:"entity_id"`
	Recipient     string    `json:"recipient"`
	Body          string    `json:"body"`
	ScheduledAt   time.Time `json:"scheduled_at"`
	NextAttemptAt time.Time `json:"next_attempt_at"`
	Status        string    `json:"status"`
	Attempts      int       `json:"attempts"`
	ProviderRef   string    `json:"provider_ref,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type RecordResponse struct {
	ID        uuid.UUID     `json:"id"`
	Kind      string        `json:"kind"`
	Title     string        `json:"title"`
	Notes     string        `json:"notes,omitempty"`
	Phone     string        `json:"phone"`
	RemindAt  time.Time     `json:"remind_at"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Task      *TaskResponse `json:"task,omitempty"`
}

func taskResponse(t *domain.NotificationTask) *TaskResponse {
	return &TaskResponse{
		ID:            t.ID,
		EntityKind:    t.Entity.Kind.String(),
		EntityID:      t.Entity.ID,
		Recipient:     t.Recipient,
		Body:          t.Body,
		ScheduledAt:   t.ScheduledAt,
		NextAttemptAt: t.NextAttemptAt,
		Status:        t.Status.String(),
		Attempts:      t.Attempts,
		ProviderRef:   t.ProviderRef,
		LastError:     t.LastError,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

func recordResponse(r *domain.Record, t *domain.NotificationTask) RecordResponse {
	resp := RecordResponse{
		ID:        r.ID,
		Kind:      r.Kind.String(),
		Title:     r.Title,
		Notes:     r.Notes,
		Phone:     r.Phone,
		RemindAt:  r.RemindAt,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if t != nil {
		resp.Task = taskResponse(t)
	}
	return resp
}
