package authapi

import (
	"fmt"
	"testing"
	"time"
)

func TestEvaluateWindowThrottle(t *testing.T) {
	now := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)

	failures := []time.Time{
		now.Add(-1 * time.Minute),
		now.Add(-2 * time.Minute),
		now.Add(-6 * time.Minute),
	}

	blocked, retry := evaluateWindowThrottle(now, failures, 2, 5*time.Minute)
	if !blocked {
		t.Fatalf("expected window throttle to block")
	}
	if retry != 3*time.Minute {
		t.Fatalf("expected retry=3m, got %v", retry)
	}

	blocked, retry = evaluateWindowThrottle(now, failures, 3, 5*time.Minute)
	if blocked {
		t.Fatalf("expected window throttle to allow")
	}
	if retry != 0 {
		t.Fatalf("expected retry=0, got %v", retry)
	}
}

func TestEvaluateProgressiveLockout_ShortTier(t *testing.T) {
	now := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)
	failures := []time.Time{
		now.Add(-30 * time.Second),
		now.Add(-1 * time.Minute),
		now.Add(-2 * time.Minute),
		now.Add(-3 * time.Minute),
		now.Add(-4 * time.Minute),
	}

	blocked, retry := evaluateProgressiveLockout(now, failures, []lockoutTier{
		{Threshold: 20, Duration: 2 * time.Hour},
		{Threshold: 10, Duration: 30 * time.Minute},
		{Threshold: 5, Duration: 5 * time.Minute},
	})
	if !blocked {
		t.Fatalf("expected short-tier lockout")
	}
	if retry != 4*time.Minute+30*time.Second {
		t.Fatalf("unexpected retry duration: %v", retry)
	}
}

func TestEvaluateProgressiveLockout_ClearsAfterDuration(t *testing.T) {
	now := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)
	failures := []time.Time{
		now.Add(-6 * time.Minute),
		now.Add(-7 * time.Minute),
		now.Add(-8 * time.Minute),
		now.Add(-9 * time.Minute),
		now.Add(-10 * time.Minute),
	}

	blocked, retry := evaluateProgressiveLockout(now, failures, []lockoutTier{
		{Threshold: 5, Duration: 5 * time.Minute},
	})
	if blocked {
		t.Fatalf("expected lockout to clear, retry=%v", retry)
	}
	if retry != 0 {
		t.Fatalf("expected retry=0, got %v", retry)
	}
}

func TestEvaluateProgressiveLockout_SevereTierWins(t *testing.T) {
	now := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)
	failures := make([]time.Time, 0, 20)
	for i := 0; i < 20; i++ {
		failures = append(failures, now.Add(-time.Duration(i+1)*time.Minute))
	}

	blocked, retry := evaluateProgressiveLockout(now, failures, []lockoutTier{
		{Threshold: 20, Duration: 2 * time.Hour},
		{Threshold: 10, Duration: 30 * time.Minute},
		{Threshold: 5, Duration: 5 * time.Minute},
	})
	if !blocked {
		t.Fatalf("expected severe-tier lockout")
	}

	want := failures[0].Add(2 * time.Hour).Sub(now)
	if retry != want {
		t.Fatalf("expected retry=%v, got %v", want, retry)
	}
}

func TestLoginThrottle_LocksUserAndResetsOnSuccess(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LoginIPMax = 100
	th := newLoginThrottle(cfg)
	now := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)

	for i := 0; i < cfg.LockoutShortThreshold; i++ {
		if blocked, _ := th.check(now, "10.0.0.1", "alice"); blocked {
			t.Fatalf("blocked after %d failures", i)
		}
		th.recordFailure(now, "10.0.0.1", "alice")
	}

	blocked, retry := th.check(now, "10.0.0.2", "alice")
	if !blocked || retry != cfg.LockoutShortDuration {
		t.Fatalf("expected lockout of %v, got blocked=%v retry=%v", cfg.LockoutShortDuration, blocked, retry)
	}
	if blocked, _ := th.check(now, "10.0.0.1", "bob"); blocked {
		t.Fatalf("lockout must be per username")
	}

	th.reset("alice")
	if blocked, _ := th.check(now, "10.0.0.1", "alice"); blocked {
		t.Fatalf("expected reset to clear lockout")
	}
}

func TestLoginThrottle_IPWindow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LoginIPMax = 2
	cfg.LoginIPWindow = time.Minute
	th := newLoginThrottle(cfg)
	now := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)

	th.recordFailure(now, "10.0.0.1", "a")
	th.recordFailure(now.Add(10*time.Second), "10.0.0.1", "b")

	if blocked, _ := th.check(now.Add(20*time.Second), "10.0.0.1", "c"); !blocked {
		t.Fatalf("expected ip throttle")
	}
	if blocked, _ := th.check(now.Add(61*time.Second), "10.0.0.1", "c"); blocked {
		t.Fatalf("expected ip throttle to clear once the oldest failure leaves the window")
	}
}

func TestLoginThrottle_SweepsExpiredKeys(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LoginIPWindow = time.Minute
	cfg.LoginUserWindow = 2 * time.Minute
	th := newLoginThrottle(cfg)
	now := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 50; i++ {
		th.recordFailure(now, fmt.Sprintf("10.0.1.%d", i), fmt.Sprintf("spray-%d", i))
	}
	if len(th.byIP) != 50 || len(th.byUser) != 50 {
		t.Fatalf("expected 50 keys per map, got ip=%d user=%d", len(th.byIP), len(th.byUser))
	}

	th.recordFailure(now.Add(3*time.Minute), "10.0.2.1", "alice")
	if len(th.byIP) != 1 || len(th.byUser) != 1 {
		t.Fatalf("expected expired keys to be swept, got ip=%d user=%d", len(th.byIP), len(th.byUser))
	}
	if _, ok := th.byUser["alice"]; !ok {
		t.Fatalf("expected the fresh failure to be kept")
	}
}
