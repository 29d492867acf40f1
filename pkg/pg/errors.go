package pg

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrEmptyConnectionString = errors.New("pg: empty connection string, set PG_CONN_URL")
	ErrInvalidConfig         = errors.New("pg: invalid connection config")
	ErrConnect               = errors.New("pg: database unavailable")
	ErrUnhealthy             = errors.New("pg: ping failed")
	ErrMigrate               = errors.New("pg: migration failed")
	ErrNoMigrationsPath      = errors.New("pg: migrations path is empty")
	ErrMigrationsNotFound    = errors.New("pg: migrations directory not found")
)

// SQLSTATE codes the store layer reacts to.
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// IsNotFoundError reports whether a query returned no rows.
func IsNotFoundError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// IsDuplicateKeyError reports a unique constraint violation.
func IsDuplicateKeyError(err error) bool {
	return hasCode(err, codeUniqueViolation)
}

// IsSerializationError reports a transaction aborted by a serialization
// failure or deadlock. Such transactions may be retried as a whole.
func IsSerializationError(err error) bool {
	return hasCode(err, codeSerializationFailure, codeDeadlockDetected)
}

func hasCode(err error, codes ...string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	for _, c := range codes {
		if pgErr.Code == c {
			return true
		}
	}
	return false
}
