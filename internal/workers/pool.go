// Package workers provides the bounded worker pool each discovery phase
// uses to probe hosts concurrently. A pool caps in-flight jobs, can rate
// limit job starts, and stops handing out work once its context ends.
package workers

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/anstrom/netprobe/internal/logging"
)

// Config holds configuration for a worker pool.
type Config struct {
	// Name identifies the pool in logs.
	Name string
	// Size is the maximum number of jobs running at once.
	Size int
	// RateLimit is the maximum number of job starts per second (0 = no limit).
	RateLimit float64
}

// DefaultConfig returns a default worker pool configuration.
func DefaultConfig() Config {
	return Config{
		Name: "pool",
		Size: 10,
	}
}

// Stats summarizes one Run.
type Stats struct {
	Submitted int
	Completed int
	Failed    int
	Skipped   int
	Duration  time.Duration
}

// Pool runs batches of independent jobs with bounded parallelism.
type Pool struct {
	config  Config
	limiter *rate.Limiter
	logger  *logging.Logger
}

// New creates a worker pool.
func New(config Config, logger *logging.Logger) *Pool {
	if config.Size <= 0 {
		config.Size = 1
	}
	if logger == nil {
		logger = logging.Default()
	}

	p := &Pool{
		config: config,
		logger: logger.WithComponent("workers").WithFields("pool", config.Name),
	}
	if config.RateLimit > 0 {
		burst := int(config.RateLimit)
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(config.RateLimit), burst)
	}
	return p
}

// Size returns the parallelism cap.
func (p *Pool) Size() int {
	return p.config.Size
}

// Run calls fn for every index in [0, n). A job error is counted and
// logged but does not stop the other jobs. Once ctx is done, jobs that
// have not started are skipped.
func (p *Pool) Run(ctx context.Context, n int, fn func(ctx context.Context, i int) error) Stats {
	start := time.Now()
	var completed, failed, skipped atomic.Int64

	p.logger.Debug("Starting worker pool", "jobs", n, "size", p.config.Size, "rate_limit", p.config.RateLimit)

	var g errgroup.Group
	g.SetLimit(p.config.Size)

	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			skipped.Add(int64(n - i))
			break
		}
		i := i
		g.Go(func() error {
			if p.limiter != nil {
				if err := p.limiter.Wait(ctx); err != nil {
					skipped.Add(1)
					return nil
				}
			}
			if err := fn(ctx, i); err != nil {
				failed.Add(1)
				p.logger.Debug("Job failed", "job", i, "error", err)
				return nil
			}
			completed.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	stats := Stats{
		Submitted: n,
		Completed: int(completed.Load()),
		Failed:    int(failed.Load()),
		Skipped:   int(skipped.Load()),
		Duration:  time.Since(start),
	}
	p.logger.Debug("Worker pool finished",
		"completed", stats.Completed,
		"failed", stats.Failed,
		"skipped", stats.Skipped,
		"duration", stats.Duration)
	return stats
}

// Map applies fn to every item on the pool and collects the results fn
// reports as ok. Result order is unspecified.
func Map[T, R any](ctx context.Context, p *Pool, items []T, fn func(ctx context.Context, item T) (R, bool, error)) ([]R, Stats) {
	var (
		mu  sync.Mutex
		out []R
	)
	stats := p.Run(ctx, len(items), func(ctx context.Context, i int) error {
		r, ok, err := fn(ctx, items[i])
		if err != nil {
			return err
		}
		if ok {
			mu.Lock()
			out = append(out, r)
			mu.Unlock()
		}
		return nil
	})
	return out, stats
}
