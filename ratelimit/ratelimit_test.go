package ratelimit

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/krisalay/forecast-cache/config"
	"github.com/krisalay/forecast-cache/types"
)

func newTestLimiter(t *testing.T, perHour, perMinute int) (*clockwork.FakeClock, *Limiter) {
	t.Helper()

	fc := clockwork.NewFakeClockAt(time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC))
	l, err := New(fc, nil, StandardQuota(perHour), SlowQuota(perMinute))
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	return fc, l
}

func TestStandardQuotaExactlyAdmitted(t *testing.T) {
	fc, l := newTestLimiter(t, 5, 1)

	for i := 0; i < 5; i++ {
		d := l.Decide("10.0.0.1", types.TierStandard)
		if !d.Allowed {
			t.Fatalf("call %d should be admitted", i+1)
		}
		if d.Remaining != 5-(i+1) {
			t.Fatalf("call %d: expected %d remaining, got %d", i+1, 5-(i+1), d.Remaining)
		}
	}

	fc.Advance(59 * time.Minute)
	d := l.Decide("10.0.0.1", types.TierStandard)
	if d.Allowed {
		t.Fatalf("sixth call in the same window should be denied")
	}
	if d.RetryAfter != time.Minute {
		t.Fatalf("expected retry after 1m, got %s", d.RetryAfter)
	}

	fc.Advance(time.Minute)
	if !l.Admit("10.0.0.1", types.TierStandard) {
		t.Fatalf("first call after rollover should be admitted")
	}
}

func TestDenialHasNoSideEffects(t *testing.T) {
	_, l := newTestLimiter(t, 1, 1)

	l.Admit("a", types.TierStandard)
	for i := 0; i < 10; i++ {
		if l.Admit("a", types.TierStandard) {
			t.Fatalf("expected denial")
		}
	}

	l.mu.Lock()
	count := l.windows[windowKey{client: "a", tier: types.TierStandard}].count
	l.mu.Unlock()
	if count != 1 {
		t.Fatalf("denied calls must not be counted, got count %d", count)
	}
}

func TestWindowsAreClockAligned(t *testing.T) {
	fc, l := newTestLimiter(t, 100, 1)

	// 10:00:50: the slow window is 10:00:00-10:01:00.
	fc.Advance(50 * time.Second)
	if !l.Admit("a", types.TierSlow) {
		t.Fatalf("first slow call should be admitted")
	}
	d := l.Decide("a", types.TierSlow)
	if d.Allowed || d.RetryAfter != 10*time.Second {
		t.Fatalf("expected denial with 10s retry, got %+v", d)
	}

	// 10:01:00: new window, even though only 10s passed.
	fc.Advance(10 * time.Second)
	if !l.Admit("a", types.TierSlow) {
		t.Fatalf("expected admission at the minute boundary")
	}
}

func TestTiersAndClientsAreIndependent(t *testing.T) {
	_, l := newTestLimiter(t, 2, 1)

	if !l.Admit("a", types.TierSlow) {
		t.Fatalf("slow call should be admitted")
	}
	if l.Admit("a", types.TierSlow) {
		t.Fatalf("second slow call should be denied")
	}
	if !l.Admit("a", types.TierStandard) || !l.Admit("a", types.TierStandard) {
		t.Fatalf("standard tier must not be affected by slow tier")
	}
	if !l.Admit("b", types.TierSlow) {
		t.Fatalf("another client must have its own slow quota")
	}
}

func TestCheckReturnsRateLimitError(t *testing.T) {
	_, l := newTestLimiter(t, 1, 1)

	if err := l.Check("a", types.TierStandard); err != nil {
		t.Fatalf("first call: %v", err)
	}
	err := l.Check("a", types.TierStandard)
	var rl *types.RateLimitError
	if !errors.Is(err, types.ErrRateLimited) || !errors.As(err, &rl) || rl.ClientID != "a" {
		t.Fatalf("expected RateLimitError for a, got %v", err)
	}
}

func TestZeroLimitAdmitsNothing(t *testing.T) {
	fc, l := newTestLimiter(t, 0, 1)
	for i := 0; i < 50; i++ {
		d := l.Decide("c", types.TierStandard)
		if d.Allowed {
			t.Fatalf("call %d admitted with N_CALLS_PER_HOUR=0", i+1)
		}
		if d.RetryAfter != time.Hour {
			t.Fatalf("expected retry after the hour, got %s", d.RetryAfter)
		}
	}
	if l.Clients() != 0 {
		t.Fatalf("denied calls must not leave windows behind, got %d", l.Clients())
	}

	fc.Advance(time.Hour)
	if l.Admit("c", types.TierStandard) {
		t.Fatalf("a new window must not admit anything either")
	}
}

func TestUnlimitedTierIsNotCounted(t *testing.T) {
	_, l := newTestLimiter(t, Unlimited, 1)
	for i := 0; i < 1000; i++ {
		if !l.Admit("a", types.TierStandard) {
			t.Fatalf("unlimited tier denied call %d", i+1)
		}
	}
	if l.Clients() != 0 {
		t.Fatalf("unlimited tier must not track windows")
	}
}

func TestUnknownTierDenied(t *testing.T) {
	fc := clockwork.NewFakeClock()
	l, err := New(fc, nil, StandardQuota(10))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if l.Admit("a", types.TierSlow) {
		t.Fatalf("tier without a quota must be denied")
	}
}

func TestNewRejectsInvalidQuotas(t *testing.T) {
	bad := []Quota{
		{Tier: types.TierStandard, Limit: -2, Window: time.Hour},
		{Tier: types.TierStandard, Limit: 1, Window: 0},
		{Tier: "bulk", Limit: 1, Window: time.Hour},
	}
	for _, q := range bad {
		if _, err := New(nil, nil, q); !errors.Is(err, types.ErrConfigInvalid) {
			t.Fatalf("expected ErrConfigInvalid for %+v, got %v", q, err)
		}
	}
}

func TestConcurrentAdmissionNeverExceedsQuota(t *testing.T) {
	_, l := newTestLimiter(t, 50, 1)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Admit("dashboard", types.TierStandard) {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 50 {
		t.Fatalf("expected exactly 50 admissions, got %d", allowed)
	}
}

func TestSweepDropsFinishedWindows(t *testing.T) {
	fc, l := newTestLimiter(t, 10, 10)

	l.Admit("a", types.TierStandard)
	l.Admit("a", types.TierSlow)

	fc.Advance(time.Minute)
	if n := l.Sweep(fc.Now()); n != 1 {
		t.Fatalf("expected the slow window to be dropped, got %d", n)
	}

	fc.Advance(time.Hour)
	if n := l.Sweep(fc.Now()); n != 1 {
		t.Fatalf("expected the standard window to be dropped, got %d", n)
	}
	if l.Clients() != 0 {
		t.Fatalf("expected no windows left")
	}
}

func TestFromConfigUsesBothQuotas(t *testing.T) {
	cfg := config.Default()
	cfg.CallsPerHour = 3
	cfg.SlowCallsPerMinute = 0

	l, err := FromConfig(cfg, clockwork.NewFakeClock(), nil)
	if err != nil {
		t.Fatalf("from config: %v", err)
	}

	if q, ok := l.Quota(types.TierStandard); !ok || q.Limit != 3 || q.Window != time.Hour {
		t.Fatalf("unexpected standard quota %+v", q)
	}
	if q, ok := l.Quota(types.TierSlow); !ok || q.Limit != 0 || q.Window != time.Minute {
		t.Fatalf("unexpected slow quota %+v", q)
	}
	if l.Admit("c", types.TierSlow) {
		t.Fatalf("N_SLOW_CALLS_PER_MINUTE=0 must deny slow calls")
	}
}
