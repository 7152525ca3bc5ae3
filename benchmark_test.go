package cache_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	cache "github.com/krisalay/forecast-cache"
	"github.com/krisalay/forecast-cache/engine"
	"github.com/krisalay/forecast-cache/expiration"
)

func newBenchmarkCoordinator() *cache.Coordinator {
	eng := engine.NewCacheEngine(
		&expiration.Fixed{FreshFor: time.Minute, DeleteAfter: 5 * time.Minute},
		nil,
		10*time.Second,
		0,
		nil,
		nil,
	)
	return cache.NewCoordinator(16, eng)
}

//
// ================= SINGLE THREAD BENCH =================
//

func BenchmarkResolveFresh(b *testing.B) {
	ctx := context.Background()
	c := newBenchmarkCoordinator()
	c.Resolve(ctx, "national", constant("forecast"))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Resolve(ctx, "national", constant("forecast"))
	}
}

func BenchmarkResolveMiss(b *testing.B) {
	ctx := context.Background()
	c := newBenchmarkCoordinator()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Resolve(ctx, fmt.Sprintf("gsp/%d", i), constant("forecast"))
	}
}

//
// ================= PARALLEL BENCH =================
//

func BenchmarkResolveParallelFresh(b *testing.B) {
	ctx := context.Background()
	c := newBenchmarkCoordinator()

	for i := 0; i < 317; i++ {
		c.Resolve(ctx, fmt.Sprintf("gsp/%d", i), constant("forecast"))
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			c.Resolve(ctx, fmt.Sprintf("gsp/%d", i%317), constant("forecast"))
			i++
		}
	})
}

//
// ================= REFRESH STORM =================
//

func BenchmarkResolveStorm(b *testing.B) {
	ctx := context.Background()

	slow := func(context.Context, string) ([]byte, error) {
		time.Sleep(time.Millisecond)
		return []byte("forecast"), nil
	}

	for i := 0; i < b.N; i++ {
		c := newBenchmarkCoordinator()
		wg := sync.WaitGroup{}
		for g := 0; g < 100; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				c.Resolve(ctx, "gsp/forecast/all", slow)
			}()
		}
		wg.Wait()
	}
}
