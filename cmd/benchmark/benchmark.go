package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"sort"
	"time"

	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	cache "github.com/krisalay/forecast-cache"
	"github.com/krisalay/forecast-cache/engine"
	"github.com/krisalay/forecast-cache/expiration"
	"github.com/krisalay/forecast-cache/types"
)

// ================= COUNTING METRICS =================

type counters struct {
	types.NoopMetrics
	hits, stale, misses, joins, timeouts atomic.Int64
}

func (c *counters) Hit()         { c.hits.Inc() }
func (c *counters) StaleServed() { c.stale.Inc() }
func (c *counters) Miss()        { c.misses.Inc() }
func (c *counters) Join()        { c.joins.Inc() }
func (c *counters) Timeout()     { c.timeouts.Inc() }

// ================= BENCHMARK =================

/*
Simulates a dashboard refresh storm: many clients ask for the same few
forecasts at once while each computation takes a long time.
Without deduplication the database would see clients × keys queries.
*/
func main() {
	var (
		clients   = flag.Int("clients", 300, "concurrent clients")
		keys      = flag.Int("keys", 5, "distinct forecasts requested")
		rounds    = flag.Int("rounds", 3, "refresh rounds")
		computeMs = flag.Int("compute-ms", 200, "simulated computation time")
		waitMs    = flag.Int("wait-ms", 1000, "query wait budget")
		freshMs   = flag.Int("fresh-ms", 150, "freshness window")
		pauseMs   = flag.Int("pause-ms", 300, "pause between rounds")
		shards    = flag.Int("shards", 16, "cache shards")
	)
	flag.Parse()

	fmt.Println("\n================ REFRESH STORM BENCHMARK =================")
	fmt.Println("CONFIG")
	fmt.Println("---------------------------------")
	fmt.Println("Clients      :", *clients)
	fmt.Println("Keys         :", *keys)
	fmt.Println("Rounds       :", *rounds)
	fmt.Println("Compute time :", time.Duration(*computeMs)*time.Millisecond)
	fmt.Println("Query wait   :", time.Duration(*waitMs)*time.Millisecond)
	fmt.Println("Fresh for    :", time.Duration(*freshMs)*time.Millisecond)
	fmt.Println("---------------------------------")

	m := &counters{}
	eng := engine.NewCacheEngine(
		&expiration.Fixed{
			FreshFor:    time.Duration(*freshMs) * time.Millisecond,
			DeleteAfter: 10 * time.Duration(*freshMs) * time.Millisecond,
		},
		nil,
		time.Duration(*waitMs)*time.Millisecond,
		0,
		m,
		nil,
	)
	c := cache.NewCoordinator(*shards, eng)

	var computations atomic.Int64
	compute := func(ctx context.Context, key string) ([]byte, error) {
		computations.Inc()
		select {
		case <-time.After(time.Duration(*computeMs) * time.Millisecond):
			return []byte(`{"forecast":"` + key + `"}`), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	latencies := make([]time.Duration, *clients**rounds)
	var failures atomic.Int64

	start := time.Now()
	for round := 0; round < *rounds; round++ {
		g, ctx := errgroup.WithContext(context.Background())
		for i := 0; i < *clients; i++ {
			slot := round**clients + i
			key := fmt.Sprintf("gsp-%d", i%*keys)
			g.Go(func() error {
				t := time.Now()
				_, err := c.Resolve(ctx, key, compute)
				latencies[slot] = time.Since(t)
				if err != nil {
					failures.Inc()
					if !errors.Is(err, types.ErrQueryTimeout) && !errors.Is(err, types.ErrComputationFailed) {
						return err
					}
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			fmt.Println("BENCHMARK → aborted:", err)
			return
		}
		time.Sleep(time.Duration(*pauseMs) * time.Millisecond)
	}
	duration := time.Since(start)

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	pct := func(p float64) time.Duration {
		return latencies[int(p*float64(len(latencies)-1))]
	}

	total := *clients * *rounds
	fmt.Println("\n================ RESULTS =================")
	fmt.Printf("Calls            : %d\n", total)
	fmt.Printf("Computations     : %d\n", computations.Load())
	fmt.Printf("Fresh hits       : %d\n", m.hits.Load())
	fmt.Printf("Joined           : %d\n", m.joins.Load())
	fmt.Printf("Stale served     : %d\n", m.stale.Load())
	fmt.Printf("Wait timeouts    : %d\n", m.timeouts.Load())
	fmt.Printf("Failures         : %d\n", failures.Load())
	fmt.Printf("Latency p50      : %v\n", pct(0.50))
	fmt.Printf("Latency p99      : %v\n", pct(0.99))
	fmt.Printf("Total Time       : %v\n", duration)
	fmt.Println("=========================================")
}
