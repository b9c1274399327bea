// Package generation runs the final pipeline stage: rendering an image for
// each structured dish with a fixed-width worker pool.
package generation

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"menuvision/internal/services"
)

const (
	defaultWidth     = 10
	defaultAttempts  = 3
	defaultBaseDelay = time.Second
	defaultMaxDelay  = 10 * time.Second
)

// PoolConfig sizes the worker pool and its per-item retry policy.
type PoolConfig struct {
	Width     int
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// Outcome records the result of one pool item. Exactly one of Image and Err
// is meaningful.
type Outcome struct {
	Image    []byte
	Err      error
	Attempts int
}

// Pool fans a batch of prompts out over a fixed number of workers. Each
// item is retried on transient failures with jittered exponential backoff;
// one item failing never affects the others.
type Pool struct {
	cfg      PoolConfig
	generate func(ctx context.Context, prompt string) ([]byte, error)
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewPool validates the configuration and returns a ready pool. Zero-valued
// fields fall back to defaults; a negative width is rejected.
func NewPool(cfg PoolConfig, generate func(ctx context.Context, prompt string) ([]byte, error)) (*Pool, error) {
	if generate == nil {
		return nil, services.Wrap(services.ErrConfiguration, "generation", "new pool", "generate function is required", nil)
	}
	if cfg.Width == 0 {
		cfg.Width = defaultWidth
	}
	if cfg.Width < 1 {
		return nil, services.Wrap(services.ErrConfiguration, "generation", "new pool", "pool width must be at least 1", nil)
	}
	if cfg.Attempts < 1 {
		cfg.Attempts = defaultAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = defaultBaseDelay
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = defaultMaxDelay
	}
	return &Pool{
		cfg:      cfg,
		generate: generate,
		sleep:    sleepWithContext,
	}, nil
}

// Run processes every prompt and returns one outcome per prompt, in input
// order. The returned slice always has len(prompts) entries: items never
// dispatched because the context was cancelled carry the context error.
// onDone, when non-nil, is invoked once per item as it settles; calls are
// serialized but arrive in completion order, not input order.
func (p *Pool) Run(ctx context.Context, prompts []string, onDone func(index int, outcome Outcome)) []Outcome {
	outcomes := make([]Outcome, len(prompts))
	if len(prompts) == 0 {
		return outcomes
	}

	var doneMu sync.Mutex
	settle := func(idx int, outcome Outcome) {
		outcomes[idx] = outcome
		if onDone != nil {
			doneMu.Lock()
			onDone(idx, outcome)
			doneMu.Unlock()
		}
	}

	indexes := make(chan int)
	var wg sync.WaitGroup
	width := min(p.cfg.Width, len(prompts))
	for w := 0; w < width; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range indexes {
				settle(idx, p.processItem(ctx, prompts[idx]))
			}
		}()
	}

	next := 0
feed:
	for ; next < len(prompts); next++ {
		select {
		case indexes <- next:
		case <-ctx.Done():
			break feed
		}
	}
	close(indexes)
	wg.Wait()

	// Items the feeder never handed out still need an outcome.
	for ; next < len(prompts); next++ {
		settle(next, Outcome{Err: ctx.Err()})
	}
	return outcomes
}

func (p *Pool) processItem(ctx context.Context, prompt string) Outcome {
	var lastErr error
	for attempt := 1; attempt <= p.cfg.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				lastErr = err
			}
			return Outcome{Err: lastErr, Attempts: attempt - 1}
		}
		// The call shares the run context: a cutoff may abandon it mid
		// flight rather than wait it out, and the item then settles with
		// the context error in its slot.
		image, err := p.generate(ctx, prompt)
		if err == nil {
			return Outcome{Image: image, Attempts: attempt}
		}
		lastErr = err
		if !services.IsTransient(err) || attempt == p.cfg.Attempts {
			return Outcome{Err: err, Attempts: attempt}
		}
		if sleepErr := p.sleep(ctx, p.backoffDelay(attempt)); sleepErr != nil {
			return Outcome{Err: lastErr, Attempts: attempt}
		}
	}
	return Outcome{Err: lastErr, Attempts: p.cfg.Attempts}
}

// backoffDelay doubles the base delay per attempt, caps it, and jitters the
// result to half-to-full of the computed delay so parallel retries spread out.
func (p *Pool) backoffDelay(attempt int) time.Duration {
	delay := p.cfg.BaseDelay << (attempt - 1)
	if delay > p.cfg.MaxDelay || delay <= 0 {
		delay = p.cfg.MaxDelay
	}
	half := delay / 2
	return half + time.Duration(rand.Int64N(int64(half)+1))
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
