package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/grebenindmitry/babilado-backend/cmd/internal/apperr"
	"github.com/grebenindmitry/babilado-backend/cmd/internal/pgstore"
	"github.com/grebenindmitry/babilado-backend/cmd/security/password"
)

// PostgresStore implements Store over the users table.
//
// The pgx pool is owned by the caller; this store must NOT close it.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
	pw     password.Config
	log    *slog.Logger
}

type PostgresOption func(*PostgresStore) error

// WithSchema sets the Postgres schema holding the users table (default "public").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		v, err := pgstore.CheckSchema(schema)
		if err != nil {
			return fmt.Errorf("identity: %w", err)
		}
		s.schema = v
		return nil
	}
}

// WithPasswordConfig overrides the hashing parameters and password policy.
func WithPasswordConfig(cfg password.Config) PostgresOption {
	return func(s *PostgresStore) error {
		s.pw = cfg
		return nil
	}
}

// WithLogger sets the logger used for background hash upgrades.
func WithLogger(log *slog.Logger) PostgresOption {
	return func(s *PostgresStore) error {
		if log != nil {
			s.log = log
		}
		return nil
	}
}

func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: pgstore.DefaultSchema,
		pw:     password.DefaultConfig(),
		log:    slog.Default(),
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
		return nil, fmt.Errorf("identity: nil pool")
	}
	return st, nil
}

func (s *PostgresStore) users() string { return pgstore.Ident(s.schema, "users") }

func (s *PostgresStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	username := strings.TrimSpace(in.Username)
	if !validUsername(username) {
		return User{}, apperr.InvalidInput(op, "invalid username")
	}
	hash, err := s.pw.Hash(in.Password)
	if err != nil {
		return User{}, apperr.InvalidInput(op, err.Error())
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var u User
	err = s.pool.QueryRow(ctx,
		`INSERT INTO `+s.users()+` (username, username_norm, password_hash, created_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id::text, username, created_at`,
		username, NormalizeUsername(username), hash, now,
	).Scan(&u.ID, &u.Username, &u.CreatedAt)
	if err != nil {
		if field, ok := pgstore.UniqueViolation(err); ok {
			return User{}, apperr.Conflict(op, field)
		}
		return User{}, apperr.Internal(op, err)
	}
	return u, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (User, error) {
	const op = "identity.GetUserByID"

	u, err := s.scanUser(ctx, `WHERE id = $1`, strings.TrimSpace(id))
	if err != nil {
		return User{}, s.lookupErr(op, err)
	}
	return u, nil
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (User, error) {
	const op = "identity.GetUserByUsername"

	u, err := s.scanUser(ctx, `WHERE username_norm = $1`, NormalizeUsername(username))
	if err != nil {
		return User{}, s.lookupErr(op, err)
	}
	return u, nil
}

func (s *PostgresStore) Exists(ctx context.Context, id string) (bool, error) {
	const op = "identity.Exists"

	var ok bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM `+s.users()+` WHERE id = $1)`,
		strings.TrimSpace(id),
	).Scan(&ok)
	if err != nil {
		if pgstore.IsInvalidText(err) {
			return false, nil
		}
		return false, apperr.Internal(op, err)
	}
	return ok, nil
}

// CheckPassword verifies secret against the stored hash. Legacy or weaker hashes
// are upgraded in place after a successful check; a failed upgrade is logged.
func (s *PostgresStore) CheckPassword(ctx context.Context, id, secret string) (bool, error) {
	const op = "identity.CheckPassword"

	id = strings.TrimSpace(id)

	var hash string
	err := s.pool.QueryRow(ctx,
		`SELECT password_hash FROM `+s.users()+` WHERE id = $1`,
		id,
	).Scan(&hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || pgstore.IsInvalidText(err) {
			return false, nil
		}
		return false, apperr.Internal(op, err)
	}

	ok, err := s.pw.Verify(hash, secret)
	if err != nil {
		return false, apperr.Internal(op, err)
	}
	if ok && s.pw.NeedsRehash(hash) {
		s.rehash(ctx, id, hash, secret)
	}
	return ok, nil
}

func (s *PostgresStore) rehash(ctx context.Context, id, old, secret string) {
	fresh, err := s.pw.Hash(secret)
	if err != nil {
		// Legacy secrets may predate the current policy.
		s.log.Warn("identity.rehash.fail", "user_id", id, "stage", "hash", "err", err)
		return
	}
	if _, err := s.pool.Exec(ctx,
		`UPDATE `+s.users()+` SET password_hash = $1 WHERE id = $2 AND password_hash = $3`,
		fresh, id, old,
	); err != nil {
		s.log.Warn("identity.rehash.fail", "user_id", id, "stage", "update", "err", err)
	}
}

func (s *PostgresStore) scanUser(ctx context.Context, where string, arg string) (User, error) {
	var u User
	err := s.pool.QueryRow(ctx,
		`SELECT id::text, username, created_at FROM `+s.users()+` `+where,
		arg,
	).Scan(&u.ID, &u.Username, &u.CreatedAt)
	return u, err
}

func (s *PostgresStore) lookupErr(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) || pgstore.IsInvalidText(err) {
		return apperr.NotFound(op, "user not found")
	}
	return apperr.Internal(op, err)
}
