package database

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

const (
	// integrityConstraintClass is SQLSTATE class 23 (unique, foreign key, check, not null).
	integrityConstraintClass = "23"
	// invalidTextRepresentation is raised when a path id is not a valid UUID literal.
	invalidTextRepresentation = "22P02"
)

// IsNotFound reports whether err means the addressed row cannot exist: either no row
// matched or the id could not be cast to the key type.
func IsNotFound(err error) bool {
	if errors.Is(err, sql.ErrNoRows) {
		return true
	}
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == invalidTextRepresentation
}

// IsConstraintViolation reports whether err carries a Postgres integrity constraint failure.
func IsConstraintViolation(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code.Class() == integrityConstraintClass
}

// ConstraintName returns the violated constraint, if any.
func ConstraintName(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Constraint
	}
	return ""
}
