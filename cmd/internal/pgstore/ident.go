// Package pgstore holds the Postgres plumbing shared by the identity and message stores:
// identifier quoting, error classification and the relay's schema.
package pgstore

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
)

const DefaultSchema = "public"

var identRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidIdent reports whether s is a plain, unquoted-safe Postgres identifier.
func ValidIdent(s string) bool {
	return identRe.MatchString(s)
}

// CheckSchema trims and validates a schema name.
func CheckSchema(schema string) (string, error) {
	schema = strings.TrimSpace(schema)
	if schema == "" {
		return "", fmt.Errorf("pgstore: empty schema")
	}
	if !ValidIdent(schema) {
		return "", fmt.Errorf("pgstore: invalid schema identifier %q", schema)
	}
	return schema, nil
}

// Ident quotes a schema-qualified identifier: "schema"."name".
func Ident(schema, name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}

// Ident1 quotes a single identifier.
func Ident1(name string) string {
	return pgx.Identifier{name}.Sanitize()
}
