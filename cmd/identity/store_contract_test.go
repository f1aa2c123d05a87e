package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/grebenindmitry/babilado-backend/cmd/internal/apperr"
	"github.com/grebenindmitry/babilado-backend/cmd/security/password"
)

func fastPasswordConfig() password.Config {
	cfg := password.DefaultConfig()
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	cfg.Params.Parallelism = 1
	cfg.Policy.MinLength = 2
	return cfg
}

// runStoreContract exercises the behaviour every Store implementation must share.
func runStoreContract(t *testing.T, st Store) {
	t.Helper()
	req := require.New(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	alice, err := st.CreateUser(ctx, CreateUserInput{Username: "  Alice ", Password: "pw"})
	req.NoError(err)
	req.NotEmpty(alice.ID)
	req.Equal("Alice", alice.Username)

	t.Run("duplicate username is a conflict regardless of case", func(t *testing.T) {
		_, err := st.CreateUser(ctx, CreateUserInput{Username: "aLiCe", Password: "other"})
		require.ErrorIs(t, err, apperr.ErrConflict)
	})

	t.Run("invalid input", func(t *testing.T) {
		_, err := st.CreateUser(ctx, CreateUserInput{Username: "   ", Password: "pw"})
		require.ErrorIs(t, err, apperr.ErrInvalidInput)

		_, err = st.CreateUser(ctx, CreateUserInput{Username: "two words", Password: "pw"})
		require.ErrorIs(t, err, apperr.ErrInvalidInput)

		_, err = st.CreateUser(ctx, CreateUserInput{Username: "bob", Password: "x"})
		require.ErrorIs(t, err, apperr.ErrInvalidInput)
	})

	t.Run("lookups", func(t *testing.T) {
		byID, err := st.GetUserByID(ctx, alice.ID)
		require.NoError(t, err)
		require.Equal(t, alice.ID, byID.ID)

		byName, err := st.GetUserByUsername(ctx, "ALICE")
		require.NoError(t, err)
		require.Equal(t, alice.ID, byName.ID)

		_, err = st.GetUserByUsername(ctx, "nobody")
		require.ErrorIs(t, err, apperr.ErrNotFound)

		_, err = st.GetUserByID(ctx, "not-a-uuid")
		require.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("exists", func(t *testing.T) {
		ok, err := st.Exists(ctx, alice.ID)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = st.Exists(ctx, "00000000-0000-4000-8000-000000000000")
		require.NoError(t, err)
		require.False(t, ok)

		ok, err = st.Exists(ctx, "garbage")
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("check password", func(t *testing.T) {
		ok, err := st.CheckPassword(ctx, alice.ID, "pw")
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = st.CheckPassword(ctx, alice.ID, "wrong")
		require.NoError(t, err)
		require.False(t, ok)

		ok, err = st.CheckPassword(ctx, "garbage", "pw")
		require.NoError(t, err)
		require.False(t, ok)
		require.False(t, errors.Is(err, apperr.ErrNotFound))
	})
}

func TestInMemoryStore_Contract(t *testing.T) {
	t.Parallel()
	runStoreContract(t, NewInMemoryStore(fastPasswordConfig()))
}

func TestNormalizeUsername(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Alice":     "alice",
		"  bob  ":   "bob",
		"MiXeD_123": "mixed_123",
	}
	for in, want := range cases {
		if got := NormalizeUsername(in); got != want {
			t.Fatalf("NormalizeUsername(%q)=%q want %q", in, got, want)
		}
	}
}
