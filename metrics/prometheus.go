// Package metrics exports the cache and rate limiter events to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/krisalay/forecast-cache/types"
)

// Prometheus implements types.Metrics with counters.
type Prometheus struct {
	hits          prometheus.Counter
	staleServed   prometheus.Counter
	misses        prometheus.Counter
	joins         prometheus.Counter
	timeouts      prometheus.Counter
	computeFailed prometheus.Counter
	expired       prometheus.Counter
	admitted      *prometheus.CounterVec
	rejected      *prometheus.CounterVec
}

var _ types.Metrics = (*Prometheus)(nil)

func counter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "forecast_cache",
		Name:      name,
		Help:      help,
	})
}

// NewPrometheus creates the collectors and registers them on reg.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	p := &Prometheus{
		hits:          counter("hits_total", "Fresh entries served without computation."),
		staleServed:   counter("stale_served_total", "Stale entries served after a waiter timed out."),
		misses:        counter("computations_total", "Computations started by an owner."),
		joins:         counter("joins_total", "Callers that joined an in-flight computation."),
		timeouts:      counter("wait_timeouts_total", "Waiters that exhausted their wait budget."),
		computeFailed: counter("computation_failures_total", "Computations that returned an error or panicked."),
		expired:       counter("expired_total", "Dead entries removed by the sweeper."),
		admitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forecast_cache",
			Name:      "admitted_total",
			Help:      "Calls admitted by the rate limiter.",
		}, []string{"tier"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forecast_cache",
			Name:      "rejected_total",
			Help:      "Calls rejected by the rate limiter.",
		}, []string{"tier"}),
	}

	for _, c := range []prometheus.Collector{
		p.hits, p.staleServed, p.misses, p.joins, p.timeouts,
		p.computeFailed, p.expired, p.admitted, p.rejected,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Prometheus) Hit()           { p.hits.Inc() }
func (p *Prometheus) StaleServed()   { p.staleServed.Inc() }
func (p *Prometheus) Miss()          { p.misses.Inc() }
func (p *Prometheus) Join()          { p.joins.Inc() }
func (p *Prometheus) Timeout()       { p.timeouts.Inc() }
func (p *Prometheus) ComputeFailed() { p.computeFailed.Inc() }
func (p *Prometheus) Expire()        { p.expired.Inc() }

func (p *Prometheus) Admitted(tier types.Tier) { p.admitted.WithLabelValues(string(tier)).Inc() }
func (p *Prometheus) Rejected(tier types.Tier) { p.rejected.WithLabelValues(string(tier)).Inc() }
