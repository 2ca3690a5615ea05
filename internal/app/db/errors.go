package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// pgUniqueViolation is the PostgreSQL SQLSTATE for unique constraint violations.
const pgUniqueViolation = "23505"

// IsUniqueViolation checks if the error is a PostgreSQL unique constraint violation (code 23505).
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}

// postgresDuplicate converts a unique violation into a *DuplicateError using the constraint name.
func postgresDuplicate(err error) error {
	if !IsUniqueViolation(err) {
		return err
	}

	var pgErr *pgconn.PgError
	errors.As(err, &pgErr)
	return &DuplicateError{Field: fieldFromIndexName(pgErr.ConstraintName)}
}

// mongoDuplicate converts a duplicate key write error into a *DuplicateError.
// The driver only exposes the offending index through the server message.
func mongoDuplicate(err error) error {
	if !mongo.IsDuplicateKeyError(err) {
		return err
	}
	return &DuplicateError{Field: fieldFromIndexName(err.Error())}
}

// fieldFromIndexName maps an index or constraint name (users_email_key, email_1...) to its field.
func fieldFromIndexName(name string) string {
	if strings.Contains(name, "email") {
		return "email"
	}
	return "username"
}
