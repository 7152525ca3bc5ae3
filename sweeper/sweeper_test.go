package sweeper

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap/zaptest"
)

// fakeTarget removes every item whose deadline is at or before now.
type fakeTarget struct {
	name string

	mu    sync.Mutex
	items map[string]time.Time
	seen  []time.Time
}

func (f *fakeTarget) Name() string { return f.name }

func (f *fakeTarget) Sweep(now time.Time) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seen = append(f.seen, now)
	n := 0
	for k, deadline := range f.items {
		if !now.Before(deadline) {
			delete(f.items, k)
			n++
		}
	}
	return n
}

func (f *fakeTarget) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

func TestSweepOnceIsIdempotent(t *testing.T) {
	fc := clockwork.NewFakeClockAt(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	target := &fakeTarget{name: "cache", items: map[string]time.Time{
		"dead":  fc.Now(),
		"alive": fc.Now().Add(time.Hour),
	}}

	s := New(time.Second, fc, zaptest.NewLogger(t), target)

	if r := s.SweepOnce(); r["cache"] != 1 {
		t.Fatalf("expected one removal, got %v", r)
	}
	if r := s.SweepOnce(); r["cache"] != 0 {
		t.Fatalf("expected second sweep to be a no-op, got %v", r)
	}
	if target.len() != 1 {
		t.Fatalf("expected alive to remain")
	}
}

func TestSweepOnceUsesClockTime(t *testing.T) {
	fc := clockwork.NewFakeClockAt(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	target := &fakeTarget{name: "ratelimit", items: map[string]time.Time{}}

	s := New(time.Second, fc, nil, target)
	fc.Advance(42 * time.Second)
	s.SweepOnce()

	if len(target.seen) != 1 || !target.seen[0].Equal(fc.Now()) {
		t.Fatalf("expected sweep at fake clock time, got %v", target.seen)
	}
}

func TestRunSweepsPeriodicallyUntilCancelled(t *testing.T) {
	target := &fakeTarget{name: "cache", items: map[string]time.Time{
		"a": time.Now(),
		"b": time.Now(),
	}}

	s := New(5*time.Millisecond, clockwork.NewRealClock(), zaptest.NewLogger(t), target)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for target.len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected background sweep to remove expired items")
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil on cancellation, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("sweeper did not stop")
	}
}
