package messages

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/grebenindmitry/babilado-backend/cmd/internal/pgstore"
)

// PostgresStore is a Store backed by the messages table.
//
// Ownership model:
// - PostgresStore does NOT own the pgx pool. The caller must close the pool.
// - Close() is therefore a no-op.
//
// Referential integrity comes from the sender/recipient foreign keys to users.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

type PostgresOption func(*PostgresStore) error

// WithSchema sets the DB schema used by this store (default: "public").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		v, err := pgstore.CheckSchema(schema)
		if err != nil {
			return fmt.Errorf("messages: %w", err)
		}
		s.schema = v
		return nil
	}
}

func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: pgstore.DefaultSchema,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, errors.New("messages: nil pool")
	}
	return st, nil
}

// Close is a no-op because the pool is owned by the caller.
func (s *PostgresStore) Close() error { return nil }

const messageColumns = `id::text, sender::text, recipient::text, msg_data, msg_type, time_sent`

// pairFilter matches the unordered pair {$1, $2} through idx_messages_pair_time.
const pairFilter = `LEAST(sender, recipient) = LEAST($1::uuid, $2::uuid)
	   AND GREATEST(sender, recipient) = GREATEST($1::uuid, $2::uuid)`

func (s *PostgresStore) table() string { return pgstore.Ident(s.schema, "messages") }

func (s *PostgresStore) Insert(ctx context.Context, in InsertInput) (Message, error) {
	sender, recipient := strings.TrimSpace(in.Sender), strings.TrimSpace(in.Recipient)
	if sender == "" || recipient == "" {
		return Message{}, ErrUnknownParty
	}

	sentAt := in.SentAt
	if sentAt.IsZero() {
		sentAt = time.Now().UTC()
	}

	m, err := scanMessage(s.pool.QueryRow(ctx,
		`INSERT INTO `+s.table()+` (sender, recipient, msg_data, msg_type, time_sent)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+messageColumns,
		sender, recipient, in.Body, in.Kind, sentAt,
	))
	if err != nil {
		if pgstore.IsForeignKeyViolation(err) || pgstore.IsInvalidText(err) {
			return Message{}, fmt.Errorf("%w: %v", ErrUnknownParty, err)
		}
		return Message{}, fmt.Errorf("insert message: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) QueryConversation(ctx context.Context, a, b string) ([]Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+messageColumns+`
		   FROM `+s.table()+`
		  WHERE `+pairFilter+`
		  ORDER BY time_sent DESC, id DESC`,
		a, b,
	)
	if err != nil {
		if pgstore.IsInvalidText(err) {
			return nil, nil
		}
		return nil, err
	}
	msgs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Message, error) {
		return scanMessage(row)
	})
	if err != nil {
		if pgstore.IsInvalidText(err) {
			return nil, nil
		}
		return nil, err
	}
	return msgs, nil
}

func (s *PostgresStore) LastMessage(ctx context.Context, a, b string) (Message, bool, error) {
	m, err := scanMessage(s.pool.QueryRow(ctx,
		`SELECT `+messageColumns+`
		   FROM `+s.table()+`
		  WHERE `+pairFilter+`
		  ORDER BY time_sent DESC, id DESC
		  LIMIT 1`,
		a, b,
	))
	switch {
	case err == nil:
		return m, true, nil
	case errors.Is(err, pgx.ErrNoRows), pgstore.IsInvalidText(err):
		return Message{}, false, nil
	default:
		return Message{}, false, err
	}
}

func (s *PostgresStore) Counterparts(ctx context.Context, user string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT other::text
		   FROM (
		     SELECT CASE WHEN sender = $1::uuid THEN recipient ELSE sender END AS other,
		            max(time_sent) AS last_sent
		       FROM `+s.table()+`
		      WHERE sender = $1::uuid OR recipient = $1::uuid
		      GROUP BY other
		   ) c
		  ORDER BY last_sent DESC, other`,
		user,
	)
	if err != nil {
		if pgstore.IsInvalidText(err) {
			return nil, nil
		}
		return nil, err
	}
	out, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		if pgstore.IsInvalidText(err) {
			return nil, nil
		}
		return nil, err
	}
	return out, nil
}

func scanMessage(row pgx.Row) (Message, error) {
	var m Message
	if err := row.Scan(&m.ID, &m.Sender, &m.Recipient, &m.Body, &m.Kind, &m.SentAt); err != nil {
		return Message{}, err
	}
	m.SentAt = m.SentAt.UTC()
	return m, nil
}
