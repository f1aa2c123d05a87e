package messages

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/grebenindmitry/babilado-backend/cmd/identity"
	"github.com/grebenindmitry/babilado-backend/cmd/internal/pgstore/pgtest"
	"github.com/grebenindmitry/babilado-backend/cmd/security/password"
)

// Integration tests are opt-in and require BABILADO_DATABASE_URL.

func TestPostgresStore_Contract(t *testing.T) {
	t.Parallel()
	req := require.New(t)

	pool := pgtest.OpenPool(t)
	schema := pgtest.Schema(t, pool)

	pw := password.DefaultConfig()
	pw.Params.MemoryKiB = 8 * 1024
	pw.Params.Iterations = 1
	pw.Params.Parallelism = 1

	users, err := identity.NewPostgresStore(pool, identity.WithSchema(schema), identity.WithPasswordConfig(pw))
	req.NoError(err)
	st, err := NewPostgresStore(pool, WithSchema(schema))
	req.NoError(err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	mk := func(name string) string {
		u, err := users.CreateUser(ctx, identity.CreateUserInput{Username: name, Password: "password"})
		req.NoError(err)
		return u.ID
	}
	alice, bob, carol := mk("alice"), mk("bob"), mk("carol")

	runStoreContract(t, st, alice, bob, carol, "00000000-0000-4000-8000-000000000000")
}

func TestNewPostgresStore_Validation(t *testing.T) {
	t.Parallel()

	if _, err := NewPostgresStore(nil); err == nil {
		t.Fatalf("expected nil pool error")
	}
	if _, err := NewPostgresStore(nil, WithSchema("no spaces")); err == nil {
		t.Fatalf("expected invalid schema error")
	}
}
