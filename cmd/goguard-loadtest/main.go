// Command goguard-loadtest measures the Redis-backed hot paths: state
// create and single-use read, proof-of-work issue and verify, and the per-IP
// rate limiter.
package main

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goGuard/internal/rate"
	"github.com/MrEthical07/goGuard/pow"
	"github.com/MrEthical07/goGuard/state"
	"github.com/alicebob/miniredis/v2"
	"github.com/pborman/getopt/v2"
	"github.com/redis/go-redis/v9"
)

func main() {
	var (
		concurrency = getopt.IntLong("concurrency", 'c', 64, "number of concurrent workers")
		ops         = getopt.IntLong("ops", 'n', 20000, "operations per phase")
		difficulty  = getopt.IntLong("difficulty", 'd', 2, "proof-of-work difficulty")
		clients     = getopt.IntLong("clients", 0, 1000, "distinct client addresses for the rate limiter")
		redisAddr   = getopt.StringLong("redis-addr", 'r', "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		help        = getopt.BoolLong("help", 'h', "show usage")
	)
	getopt.Parse()

	if *help {
		getopt.Usage()
		return
	}
	if *concurrency <= 0 || *ops <= 0 || *clients <= 0 || *difficulty < 1 || *difficulty > pow.MaxDifficulty {
		fmt.Fprintln(os.Stderr, "concurrency, ops and clients must be > 0; difficulty must be in 1..64")
		os.Exit(2)
	}

	ctx := context.Background()
	client, cleanup, err := connect(*redisAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "redis: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	store := state.New(client, state.WithPrefix("loadtest"))
	powEngine := pow.New(store, *difficulty, nil)
	limits := rate.DefaultConfig()
	limits.Prefix = "loadtest_rate"
	limiter := rate.New(client, limits)

	stateStats := runPhase(*ops, *concurrency, func(worker, i int) (time.Duration, error) {
		t0 := time.Now()
		token, err := store.Create(ctx, state.KindPoW, map[string]any{"worker": worker, "op": i})
		if err != nil {
			return time.Since(t0), err
		}
		_, err = store.Read(ctx, token, true)
		return time.Since(t0), err
	})

	powStats := runPhase(*ops, *concurrency, func(_, _ int) (time.Duration, error) {
		t0 := time.Now()
		ch, err := powEngine.Generate(ctx)
		issued := time.Since(t0)
		if err != nil {
			return issued, err
		}
		solution, err := pow.Solve(ctx, ch.Challenge, ch.Difficulty)
		if err != nil {
			return issued, err
		}
		t1 := time.Now()
		if !powEngine.Verify(ctx, solution, ch.Token, *difficulty) {
			return issued + time.Since(t1), fmt.Errorf("verify failed")
		}
		return issued + time.Since(t1), nil
	})

	var limited atomic.Int64
	rateStats := runPhase(*ops, *concurrency, func(_, i int) (time.Duration, error) {
		ip := "10.0." + strconv.Itoa(i%*clients/256) + "." + strconv.Itoa(i%*clients%256)
		t0 := time.Now()
		d, err := limiter.Allow(ctx, ip)
		if d.Limited {
			limited.Add(1)
		}
		return time.Since(t0), err
	})

	fmt.Println("---- results ----")
	printStats("state create+read", stateStats)
	printStats("pow issue+verify", powStats)
	printStats("rate limit", rateStats)
	fmt.Printf("rate limited: %d of %d\n", limited.Load(), rateStats.ops)
}

func connect(addr string) (redis.UniversalClient, func(), error) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		fmt.Printf("using redis at %s\n", addr)
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, err
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	fmt.Printf("using miniredis at %s\n", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

// runPhase spreads ops calls of op over concurrency workers. op reports the
// latency it wants recorded.
func runPhase(ops, concurrency int, op func(worker, i int) (time.Duration, error)) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    atomic.Int64
		failures  atomic.Int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := range concurrency {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for {
				i := int(cursor.Add(1)) - 1
				if i >= ops {
					return
				}
				d, err := op(worker, i)
				if err != nil {
					failures.Add(1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures.Load())
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
		return phaseStats{total: total}
	}
	slices.Sort(samples)
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
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
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
