package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	goPortal "github.com/MrEthical07/goPortal"
	"github.com/MrEthical07/goPortal/session"
)

// runBench issues concurrent authenticated reads of the signed-in account
// and reports latency percentiles together with the refresh activity they
// caused.
func runBench(ctx context.Context, a *app, args []string) error {
	fs := newFlags(a, "bench")
	ops := fs.Int("n", 1000, "number of requests")
	concurrency := fs.Int("concurrency", 32, "concurrent workers")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *ops <= 0 || *concurrency <= 0 {
		fmt.Fprintln(a.errOut, "bench: -n and -concurrency must be positive")
		return errUsage
	}

	sess := a.client.CurrentUser(ctx)
	if sess == nil {
		return session.ErrNoSession
	}

	before := a.client.MetricsSnapshot()
	stats := runBenchPhase(ctx, *ops, *concurrency, func(ctx context.Context) error {
		_, err := a.client.Users().Get(ctx, sess.UserID)
		return err
	})
	after := a.client.MetricsSnapshot()

	fmt.Fprintln(a.out, "---- results ----")
	printStats(a.out, "get-self", stats)
	fmt.Fprintf(a.out, "refreshes=%d waiters=%d resubmits=%d\n",
		delta(before, after, goPortal.MetricRefreshSuccess)+delta(before, after, goPortal.MetricRefreshFailure),
		delta(before, after, goPortal.MetricRefreshWaiters),
		delta(before, after, goPortal.MetricResubmits),
	)
	if stats.failures > 0 {
		return errors.New("bench: some requests failed")
	}
	return nil
}

func runBenchPhase(ctx context.Context, ops, concurrency int, call func(context.Context) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops || ctx.Err() != nil {
					return
				}
				t0 := time.Now()
				err := call(ctx)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total, failures: failures}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

// percentile expects samples sorted ascending.
func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(out io.Writer, name string, s phaseStats) {
	fmt.Fprintf(out, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

func delta(before, after goPortal.MetricsSnapshot, id goPortal.MetricID) uint64 {
	return after.Counters[id] - before.Counters[id]
}
