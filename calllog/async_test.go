package calllog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

type memorySink struct {
	mu    sync.Mutex
	calls []Call
	block chan struct{}
	err   error
}

func (s *memorySink) Save(_ context.Context, c Call) error {
	if s.block != nil {
		<-s.block
	}
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, c)
	return nil
}

func (s *memorySink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func TestCloseDrainsQueue(t *testing.T) {
	sink := &memorySink{}
	r := NewAsyncRecorder(sink, 16, zaptest.NewLogger(t))

	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		r.Record(context.Background(), NewCall("/v0/solar/GB/gsp/1/forecast", "10.0.0.1", "GET /v0/solar/GB/gsp/{gsp_id}/forecast", at))
	}
	r.Close()

	if sink.len() != 10 {
		t.Fatalf("expected 10 saved calls, got %d", sink.len())
	}
	if r.Saved() != 10 || r.Dropped() != 0 {
		t.Fatalf("expected 10 saved and 0 dropped, got %d and %d", r.Saved(), r.Dropped())
	}
}

func TestFullQueueDropsInsteadOfBlocking(t *testing.T) {
	sink := &memorySink{block: make(chan struct{})}
	r := NewAsyncRecorder(sink, 1, zaptest.NewLogger(t))

	// The worker holds at most one call while blocked and the buffer holds one more,
	// so at least one of these must be dropped.
	for i := 0; i < 5; i++ {
		r.Record(context.Background(), NewCall("/x", "c", "r", time.Now()))
	}

	if r.Dropped() < 3 {
		t.Fatalf("expected at least 3 dropped calls, got %d", r.Dropped())
	}

	close(sink.block)
	r.Close()

	if got := r.Saved() + r.Dropped(); got != 5 {
		t.Fatalf("expected every call saved or dropped, got %d", got)
	}
}

func TestSinkErrorsAreSwallowed(t *testing.T) {
	sink := &memorySink{err: errors.New("db down")}
	r := NewAsyncRecorder(sink, 4, zaptest.NewLogger(t))

	r.Record(context.Background(), NewCall("/x", "c", "r", time.Now()))
	r.Close()

	if r.Saved() != 0 {
		t.Fatalf("expected nothing saved, got %d", r.Saved())
	}
}

func TestCloseTwice(t *testing.T) {
	r := NewAsyncRecorder(LogSink{Logger: zaptest.NewLogger(t)}, 4, nil)
	r.Record(context.Background(), NewCall("/x", "c", "r", time.Now()))
	r.Close()
	r.Close()
}

func TestNewCallIDsAreUnique(t *testing.T) {
	a := NewCall("/x", "c", "r", time.Now())
	b := NewCall("/x", "c", "r", time.Now())
	if a.ID == b.ID {
		t.Fatalf("expected distinct call ids")
	}
}
