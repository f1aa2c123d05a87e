package pgstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SchemaSQL returns the DDL for the relay tables inside schema.
// gen_random_uuid() is built in from PostgreSQL 13.
func SchemaSQL(schema string) string {
	users := Ident(schema, "users")
	messages := Ident(schema, "messages")

	return fmt.Sprintf(`
CREATE SCHEMA IF NOT EXISTS %s;

CREATE TABLE IF NOT EXISTS %s (
  id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
  username TEXT NOT NULL,
  username_norm TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),

  CONSTRAINT uq_users_username_norm UNIQUE (username_norm)
);

CREATE TABLE IF NOT EXISTS %s (
  id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
  sender UUID NOT NULL REFERENCES %s(id) ON DELETE CASCADE,
  recipient UUID NOT NULL REFERENCES %s(id) ON DELETE CASCADE,
  msg_data TEXT NOT NULL,
  msg_type SMALLINT NOT NULL DEFAULT 0,
  time_sent TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_messages_pair_time
  ON %s (LEAST(sender, recipient), GREATEST(sender, recipient), time_sent DESC);

CREATE INDEX IF NOT EXISTS idx_messages_recipient
  ON %s (recipient);
`, Ident1(schema), users, messages, users, users, messages, messages)
}

// ApplySchema creates the relay tables if they do not exist.
func ApplySchema(ctx context.Context, pool *pgxpool.Pool, schema string) error {
	schema, err := CheckSchema(schema)
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, SchemaSQL(schema)); err != nil {
		return fmt.Errorf("pgstore: apply schema: %w", err)
	}
	return nil
}
