package pgstore

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	codeForeignKeyViolation       = "23503"
	codeUniqueViolation           = "23505"
	codeInvalidTextRepresentation = "22P02"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return ""
	}
	return pgErr.Code
}

func IsForeignKeyViolation(err error) bool {
	return pgCode(err) == codeForeignKeyViolation
}

// IsInvalidText reports a value the server could not parse for its column type,
// e.g. a non-uuid string bound to a uuid parameter.
func IsInvalidText(err error) bool {
	return pgCode(err) == codeInvalidTextRepresentation
}

// UniqueViolation reports the logical field behind a unique_violation.
func UniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != codeUniqueViolation {
		return "", false
	}

	c := strings.ToLower(pgErr.ConstraintName)
	switch {
	case strings.Contains(c, "username"):
		return "username", true
	default:
		return "unique", true
	}
}
