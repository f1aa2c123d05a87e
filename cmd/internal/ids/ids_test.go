package ids

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
)

func TestNewULID_SortsByTime(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a, err := NewULID(base)
	if err != nil {
		t.Fatalf("NewULID: %v", err)
	}
	b, err := NewULID(base.Add(time.Second))
	if err != nil {
		t.Fatalf("NewULID: %v", err)
	}

	if len(a) != 26 || len(b) != 26 {
		t.Fatalf("unexpected lengths %d %d", len(a), len(b))
	}
	if !(a < b) {
		t.Fatalf("expected %s < %s", a, b)
	}

	parsed, err := ulid.Parse(a)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := ulid.Time(parsed.Time()); !got.Equal(base) {
		t.Fatalf("timestamp=%v want %v", got, base)
	}
}

func TestUserID(t *testing.T) {
	t.Parallel()

	id := NewUserID()
	if !IsUserID(id) {
		t.Fatalf("IsUserID(%q)=false", id)
	}
	for _, s := range []string{"", "alice", "01J0000000000000000000000"} {
		if IsUserID(s) {
			t.Fatalf("IsUserID(%q)=true", s)
		}
	}
}
