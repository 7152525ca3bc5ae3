package calllog

import (
	"context"
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

/*
AsyncRecorder queues calls and hands them to the sink from one background worker.

Recording must never slow a request down, so Record does not block:
when the queue is full the call is dropped and counted.
*/
type AsyncRecorder struct {
	sink   Sink
	logger *zap.Logger

	// ch holds pending calls. Buffering absorbs bursts.
	ch chan Call

	dropped atomic.Int64
	saved   atomic.Int64

	closeOnce sync.Once
	wg        sync.WaitGroup
}

var _ Recorder = (*AsyncRecorder)(nil)

// NewAsyncRecorder starts the worker. A buffer below 1 is treated as 1.
func NewAsyncRecorder(sink Sink, buffer int, logger *zap.Logger) *AsyncRecorder {
	if buffer < 1 {
		buffer = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &AsyncRecorder{
		sink:   sink,
		logger: logger,
		ch:     make(chan Call, buffer),
	}

	r.wg.Add(1)
	go r.worker()

	return r
}

// Record enqueues c, or drops it if the queue is full.
// The request context is not carried over: the call is saved after the response is gone.
func (r *AsyncRecorder) Record(_ context.Context, c Call) {
	select {
	case r.ch <- c:
	default:
		r.dropped.Inc()
		r.logger.Warn("call log queue full, dropping call",
			zap.String("url", c.URL), zap.String("client_id", c.ClientID))
	}
}

func (r *AsyncRecorder) worker() {
	defer r.wg.Done()

	for c := range r.ch {
		if err := r.sink.Save(context.Background(), c); err != nil {
			r.logger.Error("saving call failed",
				zap.Stringer("call_id", c.ID), zap.String("url", c.URL), zap.Error(err))
			continue
		}
		r.saved.Inc()
	}
}

/*
Close stops accepting calls and waits until every queued call was handed to the sink.
Record must not be called after Close.
*/
func (r *AsyncRecorder) Close() {
	r.closeOnce.Do(func() {
		close(r.ch)
	})
	r.wg.Wait()
}

// Dropped is the number of calls lost to a full queue.
func (r *AsyncRecorder) Dropped() int64 { return r.dropped.Load() }

// Saved is the number of calls the sink accepted.
func (r *AsyncRecorder) Saved() int64 { return r.saved.Load() }
