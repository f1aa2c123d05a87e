package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/grebenindmitry/babilado-backend/cmd/internal/apperr"
)

type fakeChecker struct {
	secrets map[string]string
	err     error
	calls   atomic.Int32
}

func (f *fakeChecker) CheckPassword(_ context.Context, identity, secret string) (bool, error) {
	f.calls.Add(1)
	if f.err != nil {
		return false, f.err
	}
	want, ok := f.secrets[identity]
	return ok && want == secret, nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

const window = time.Hour

func newTestAuthority(t *testing.T) (*Authority, *fakeChecker, *fakeClock) {
	t.Helper()

	creds := &fakeChecker{secrets: map[string]string{"alice": "pw", "bob": "hunter2"}}
	clock := &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	a := NewAuthority(Config{Window: window, TokenBytes: 32}, creds, WithClock(clock.Now))
	return a, creds, clock
}

func TestCreateThenVerify(t *testing.T) {
	t.Parallel()
	req := require.New(t)
	a, _, clock := newTestAuthority(t)

	s, err := a.CreateOrExtend(context.Background(), "alice", "pw")
	req.NoError(err)
	req.Equal("alice", s.Identity)
	req.NotEmpty(s.Token)
	req.Equal(clock.Now().Add(window), s.Expiry)
	req.True(a.Verify("alice", s.Token))
}

func TestCreateTwice_SameTokenLaterExpiry(t *testing.T) {
	t.Parallel()
	req := require.New(t)
	a, creds, clock := newTestAuthority(t)
	ctx := context.Background()

	first, err := a.CreateOrExtend(ctx, "alice", "pw")
	req.NoError(err)

	clock.Advance(10 * time.Minute)

	// A live session is extended without re-checking the secret.
	second, err := a.CreateOrExtend(ctx, "alice", "not the password")
	req.NoError(err)
	req.Equal(first.Token, second.Token)
	req.False(second.Expiry.Before(first.Expiry))
	req.Equal(clock.Now().Add(window), second.Expiry)
	req.EqualValues(1, creds.calls.Load())
}

func TestVerify_RejectsWrongTokenAndExpiry(t *testing.T) {
	t.Parallel()
	req := require.New(t)
	a, _, clock := newTestAuthority(t)

	s, err := a.CreateOrExtend(context.Background(), "alice", "pw")
	req.NoError(err)

	req.False(a.Verify("alice", s.Token+"x"))
	req.False(a.Verify("alice", ""))
	req.False(a.Verify("bob", s.Token))
	req.False(a.Verify("", s.Token))

	clock.Advance(window - time.Nanosecond)
	req.True(a.Verify("alice", s.Token))

	// Expiry must be strictly after now.
	clock.Advance(time.Nanosecond)
	req.False(a.Verify("alice", s.Token))

	clock.Advance(time.Hour)
	req.False(a.Verify("alice", s.Token))
}

func TestExpiredSession_RequiresSecretAndMintsNewToken(t *testing.T) {
	t.Parallel()
	req := require.New(t)
	a, creds, clock := newTestAuthority(t)
	ctx := context.Background()

	old, err := a.CreateOrExtend(ctx, "alice", "pw")
	req.NoError(err)

	clock.Advance(2 * window)

	_, err = a.CreateOrExtend(ctx, "alice", "wrong")
	req.ErrorIs(err, apperr.ErrUnauthorized)
	req.False(a.Verify("alice", old.Token))

	fresh, err := a.CreateOrExtend(ctx, "alice", "pw")
	req.NoError(err)
	req.NotEqual(old.Token, fresh.Token)
	req.True(fresh.Expiry.After(old.Expiry))
	req.True(a.Verify("alice", fresh.Token))
	req.False(a.Verify("alice", old.Token))
	req.EqualValues(3, creds.calls.Load())
}

func TestCreate_Unauthorized(t *testing.T) {
	t.Parallel()
	a, _, _ := newTestAuthority(t)
	ctx := context.Background()

	cases := []struct{ identity, secret string }{
		{"alice", "nope"},
		{"mallory", "pw"},
		{"", "pw"},
		{"   ", "pw"},
	}
	for _, tc := range cases {
		_, err := a.CreateOrExtend(ctx, tc.identity, tc.secret)
		if !errors.Is(err, apperr.ErrUnauthorized) {
			t.Fatalf("CreateOrExtend(%q,%q): expected ErrUnauthorized, got %v", tc.identity, tc.secret, err)
		}
	}
}

func TestCreate_VerifierFailureIsInternal(t *testing.T) {
	t.Parallel()
	req := require.New(t)
	a, creds, _ := newTestAuthority(t)
	creds.err = errors.New("db down")

	_, err := a.CreateOrExtend(context.Background(), "alice", "pw")
	req.ErrorIs(err, apperr.ErrInternal)
	req.NotErrorIs(err, apperr.ErrUnauthorized)
}

func TestCreate_ConcurrentLoginsShareOneToken(t *testing.T) {
	t.Parallel()
	a, _, _ := newTestAuthority(t)

	const n = 32
	tokens := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := a.CreateOrExtend(context.Background(), "bob", "hunter2")
			if err != nil {
				t.Errorf("CreateOrExtend: %v", err)
				return
			}
			tokens[i] = s.Token
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if tokens[i] != tokens[0] {
			t.Fatalf("token %d differs: %q vs %q", i, tokens[i], tokens[0])
		}
	}
	if !a.Verify("bob", tokens[0]) {
		t.Fatalf("expected shared token to verify")
	}
}
