package repo

import (
	"errors"
	"fmt"

	"github.com/flexcp/flexcp/internal/apierr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres SQLSTATE codes this layer maps explicitly.
const (
	sqlStateUniqueViolation     = "23505"
	sqlStateForeignKeyViolation = "23503"
)

// mapWriteError tags a driver/constraint error with the operation and
// table that failed (spec 4.2 "Repository errors are tagged with the
// failing operation and table"), then maps it into the error taxonomy.
// blockedBy is consulted only for foreign-key violations that represent a
// delete blocked by a live reference (spec 3.3); it is nil for the common
// insert/update path where the violation always means AlreadyExists or a
// dangling reference at write time, not a delete conflict.
func mapWriteError(err error, op, table string, blockers []string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apierr.NotFound(fmt.Sprintf("%s: no matching %s row", op, table))
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlStateUniqueViolation:
			return apierr.AlreadyExists(fmt.Sprintf("%s: %s violates uniqueness on %s", op, table, pgErr.ConstraintName))
		case sqlStateForeignKeyViolation:
			if len(blockers) > 0 {
				return apierr.Conflict(fmt.Sprintf("%s: %s is still referenced", op, table), blockers)
			}
			return apierr.Validation(table, fmt.Sprintf("%s: references a row that does not exist (%s)", op, pgErr.ConstraintName))
		}
	}

	return apierr.Wrap(apierr.KindInternal, fmt.Sprintf("%s on %s failed", op, table), err)
}
