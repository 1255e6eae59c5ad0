package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Record is a reminder or appointment owned by the domain layer. Its CRUD
// operations trigger scheduling as a side effect.
type Record struct {
	ID        uuid.UUID  `json:"id"`
	Kind      EntityKind `json:"kind"`
	Title     string     `json:"title"`
	Notes     string     `json:"notes,omitempty"`
	Phone     string     `json:"phone"`
	RemindAt  time.Time  `json:"remind_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Ref returns the entity reference tasks use to point back at the record.
func (r *Record) Ref() EntityRef {
	return EntityRef{Kind: r.Kind, ID: r.ID}
}

// CreateRecordParams parameters for creating a record.
type CreateRecordParams struct {
	Kind     EntityKind
	Title    string
	Notes    string
	Phone    string
	RemindAt time.Time
}

// UpdateRecordParams optional fields for updating a record. Nil fields are
// left untouched.
type UpdateRecordParams struct {
	Title    *string
	Notes    *string
	Phone    *string
	RemindAt *time.Time
}

// RecordStore is the durable repository of reminder and appointment records.
type RecordStore interface {
	Create(ctx context.Context, params CreateRecordParams) (*Record, error)
	GetByID(ctx context.Context, kind EntityKind, id uuid.UUID) (*Record, error)
	// Update applies the non-nil fields and returns the updated record.
	Update(ctx context.Context, kind EntityKind, id uuid.UUID, params UpdateRecordParams) (*Record, error)
	Delete(ctx context.Context, kind EntityKind, id uuid.UUID) error
}
