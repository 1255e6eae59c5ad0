package pg

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Murudula29/Dosemate/internal/domain"
)

// buildTaskUpdateSQL builds the version-guarded transition query. The version
// bump and the guard in the WHERE clause together make the write optimistic:
// at most one of any set of concurrent writers observes an affected row.
func buildTaskUpdateSQL(id uuid.UUID, expectedVersion int64, status domain.Status,
	params *domain.TaskUpdateParams) (string, []interface{}) {
	sets := []string{"version = version + 1", "updated_at = NOW()"}
	args := []interface{}{}
	argIdx := 1

	sets = append(sets, fmt.Sprintf("status = $%d", argIdx))
	args = append(args, status)
	argIdx++

	if params.AttemptsInc {
		sets = append(sets, "attempts = attempts + 1")
	}
	if params.NextAttemptAt != nil {
		sets = append(sets, fmt.Sprintf("next_attempt_at = $%d", argIdx))
		args = append(args, *params.NextAttemptAt)
		argIdx++
	}
	if params.ProviderRef != nil {
		sets = append(sets, fmt.Sprintf("provider_ref = $%d", argIdx))
		args = append(args, *params.ProviderRef)
		argIdx++
	}
	if params.LastError != nil {
		sets = append(sets, fmt.Sprintf("last_error = $%d", argIdx))
		args = append(args, *params.LastError)
		argIdx++
	}

	query := fmt.Sprintf(
		"UPDATE notification_tasks SET %s WHERE id = $%d AND version = $%d RETURNING %s",
		strings.Join(sets, ", "), argIdx, argIdx+1, taskColumns)
	args = append(args, id, expectedVersion)

	return query, args
}
