package messages

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeDirectory map[string]string // id -> username

func (d fakeDirectory) Exists(_ context.Context, id string) (bool, error) {
	_, ok := d[id]
	return ok, nil
}

// runStoreContract checks the ordering and referential rules every Store must share.
// alice, bob and carol must exist; ghost must not.
func runStoreContract(t *testing.T, st Store, alice, bob, carol, ghost string) {
	t.Helper()
	req := require.New(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	insert := func(from, to, body string, at time.Time) Message {
		t.Helper()
		m, err := st.Insert(ctx, InsertInput{Sender: from, Recipient: to, Body: body, Kind: 0, SentAt: at})
		req.NoError(err)
		req.NotEmpty(m.ID)
		req.Equal(from, m.Sender)
		req.Equal(to, m.Recipient)
		req.Equal(body, m.Body)
		req.True(m.SentAt.Equal(at), "sent_at %v want %v", m.SentAt, at)
		return m
	}

	m1 := insert(alice, bob, "one", base)
	m2 := insert(bob, alice, "two", base.Add(time.Second))
	m3 := insert(alice, bob, "three", base.Add(2*time.Second))
	// Same instant as m3: ordering must still be deterministic and symmetric.
	m4 := insert(bob, alice, "four", base.Add(2*time.Second))
	c1 := insert(carol, alice, "hey alice", base.Add(3*time.Second))
	insert(bob, carol, "hi carol", base.Add(4*time.Second))

	t.Run("conversation is symmetric and newest first", func(t *testing.T) {
		ab, err := st.QueryConversation(ctx, alice, bob)
		require.NoError(t, err)
		ba, err := st.QueryConversation(ctx, bob, alice)
		require.NoError(t, err)

		require.Len(t, ab, 4)
		require.Equal(t, ab, ba)
		for i := 1; i < len(ab); i++ {
			require.False(t, ab[i].SentAt.After(ab[i-1].SentAt), "not newest first at %d", i)
		}
		ids := []string{ab[0].ID, ab[1].ID}
		require.ElementsMatch(t, []string{m3.ID, m4.ID}, ids)
		require.Equal(t, m2.ID, ab[2].ID)
		require.Equal(t, m1.ID, ab[3].ID)
	})

	t.Run("last message", func(t *testing.T) {
		ab, err := st.QueryConversation(ctx, alice, bob)
		require.NoError(t, err)

		last, ok, err := st.LastMessage(ctx, bob, alice)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, ab[0].ID, last.ID)

		last, ok, err = st.LastMessage(ctx, alice, carol)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, c1.ID, last.ID)
	})

	t.Run("empty conversation", func(t *testing.T) {
		msgs, err := st.QueryConversation(ctx, alice, ghost)
		require.NoError(t, err)
		require.Empty(t, msgs)

		_, ok, err := st.LastMessage(ctx, alice, ghost)
		require.NoError(t, err)
		require.False(t, ok)

		msgs, err = st.QueryConversation(ctx, "not-an-id", alice)
		require.NoError(t, err)
		require.Empty(t, msgs)
	})

	t.Run("counterparts most recent first", func(t *testing.T) {
		got, err := st.Counterparts(ctx, alice)
		require.NoError(t, err)
		require.Equal(t, []string{carol, bob}, got)

		got, err = st.Counterparts(ctx, bob)
		require.NoError(t, err)
		require.Equal(t, []string{carol, alice}, got)

		got, err = st.Counterparts(ctx, ghost)
		require.NoError(t, err)
		require.Empty(t, got)
	})

	t.Run("unknown party", func(t *testing.T) {
		for _, in := range []InsertInput{
			{Sender: alice, Recipient: ghost, Body: "x"},
			{Sender: ghost, Recipient: alice, Body: "x"},
			{Sender: alice, Recipient: "not-an-id", Body: "x"},
			{Sender: alice, Recipient: "", Body: "x"},
		} {
			_, err := st.Insert(ctx, in)
			require.True(t, errors.Is(err, ErrUnknownParty), "Insert(%+v) err=%v", in, err)
		}

		msgs, err := st.QueryConversation(ctx, alice, ghost)
		require.NoError(t, err)
		require.Empty(t, msgs)
	})
}

func TestInMemoryStore_Contract(t *testing.T) {
	t.Parallel()

	dir := fakeDirectory{
		"a-1": "alice",
		"b-2": "bob",
		"c-3": "carol",
	}
	runStoreContract(t, NewInMemoryStore(dir), "a-1", "b-2", "c-3", "z-9")
}

func TestInMemoryStore_NoDirectoryAcceptsAnyParty(t *testing.T) {
	t.Parallel()
	req := require.New(t)

	st := NewInMemoryStore(nil)
	m, err := st.Insert(context.Background(), InsertInput{Sender: "x", Recipient: "y", Body: "hi"})
	req.NoError(err)
	req.False(m.SentAt.IsZero())
	req.Len(m.ID, 26)
}

func TestInMemoryStore_TrimsOldestAndLogsOnce(t *testing.T) {
	t.Parallel()
	req := require.New(t)

	var buf bytes.Buffer
	st := NewInMemoryStore(nil,
		WithMaxMessages(3),
		WithStoreLogger(slog.New(slog.NewTextHandler(&buf, nil))),
	)

	base := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	for i := range 5 {
		_, err := st.Insert(context.Background(), InsertInput{
			Sender: "x", Recipient: "y", Body: strconv.Itoa(i), SentAt: base.Add(time.Duration(i) * time.Second),
		})
		req.NoError(err)
	}

	msgs, err := st.QueryConversation(context.Background(), "x", "y")
	req.NoError(err)
	req.Len(msgs, 3)
	req.Equal("4", msgs[0].Body)
	req.Equal("2", msgs[2].Body)
	req.Equal(1, strings.Count(buf.String(), "message.store.memory.trim"))
}
