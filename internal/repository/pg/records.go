package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/zlog"

	"github.com/Murudula29/Dosemate/internal/domain"
)

const recordColumns = `id, kind, title, notes, phone, remind_at, created_at, updated_at`

// RecordRepo stores reminder and appointment records in PostgreSQL.
type RecordRepo struct {
	DB *dbpg.DB
}

// NewRecordRepo creates a new RecordRepo.
func NewRecordRepo(db *dbpg.DB) *RecordRepo {
	return &RecordRepo{DB: db}
}

// Create persists a new record.
func (r *RecordRepo) Create(ctx context.Context, params domain.CreateRecordParams) (*domain.Record, error) {
	sqlQuery := `INSERT INTO records (kind, title, notes, phone, remind_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + recordColumns

	record, err := scanRecord(r.DB.QueryRowContext(ctx, sqlQuery,
		params.Kind, params.Title, params.Notes, params.Phone, params.RemindAt))
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to insert record")
		return nil, err
	}
	return record, nil
}

// GetByID returns a record by kind and id.
func (r *RecordRepo) GetByID(ctx context.Context, kind domain.EntityKind, id uuid.UUID) (*domain.Record, error) {
	sqlQuery := `SELECT ` + recordColumns + ` FROM records WHERE kind = $1 AND id = $2 LIMIT 1`

	record, err := scanRecord(r.DB.QueryRowContext(ctx, sqlQuery, kind, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}
		zlog.Logger.Error().Err(err).Msg("failed to scan record")
		return nil, err
	}
	return record, nil
}

// Update applies the non-nil fields and returns the updated record.
func (r *RecordRepo) Update(ctx context.Context, kind domain.EntityKind, id uuid.UUID,
	params domain.UpdateRecordParams) (*domain.Record, error) {
	sets := []string{"updated_at = NOW()"}
	args := []interface{}{}
	argIdx := 1

	if params.Title != nil {
		sets = append(sets, fmt.Sprintf("title = $%d", argIdx))
		args = append(args, *params.Title)
		argIdx++
	}
	if params.Notes != nil {
		sets = append(sets, fmt.Sprintf("notes = $%d", argIdx))
		args = append(args, *params.Notes)
		argIdx++
	}
	if params.Phone != nil {
		sets = append(sets, fmt.Sprintf("phone = $%d", argIdx))
		args = append(args, *params.Phone)
		argIdx++
	}
	if params.RemindAt != nil {
		sets = append(sets, fmt.Sprintf("remind_at = $%d", argIdx))
		args = append(args, *params.RemindAt)
		argIdx++
	}

	query := fmt.Sprintf("UPDATE records SET %s WHERE kind = $%d AND id = $%d RETURNING %s",
		strings.Join(sets, ", "), argIdx, argIdx+1, recordColumns)
	args = append(args, kind, id)

	record, err := scanRecord(r.DB.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}
		zlog.Logger.Error().Err(err).Msg("failed to update record")
		return nil, err
	}
	return record, nil
}

// Delete removes a record.
func (r *RecordRepo) Delete(ctx context.Context, kind domain.EntityKind, id uuid.UUID) error {
	sqlQuery := `DELETE FROM records WHERE kind = $1 AND id = $2`

	result, err := r.DB.ExecContext(ctx, sqlQuery, kind, id)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to delete record")
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}

func scanRecord(row rowScanner) (*domain.Record, error) {
	var (
		record domain.Record
		notes  sql.NullString
	)

	err := row.Scan(
		&record.ID,
		&record.Kind,
		&record.Title,
		&notes,
		&record.Phone,
		&record.RemindAt,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.Notes = notes.String
	return &record, nil
}
