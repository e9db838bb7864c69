// Package fleet runs several independent kernels in parallel, each with
// its own engine process and control port.
package fleet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/microsim/go-traci-kernel/internal/config"
)

// defaultStagger spaces worker startups so engines do not all hit the
// filesystem and port table at once.
const defaultStagger = 250 * time.Millisecond

// WorkerFunc runs one kernel to completion. cfg is the worker's private
// copy with its own port and emission name.
type WorkerFunc func(ctx context.Context, workerID int, cfg *config.Config) error

// WorkerResult is the outcome of one worker.
type WorkerResult struct {
	WorkerID int
	Err      error
}

// Fleet launches cfg.Workers workers on consecutive ports starting at
// cfg.Port.
type Fleet struct {
	cfg    *config.Config
	logger *slog.Logger
	worker WorkerFunc

	jitter  *JitterSource
	stagger time.Duration

	mu      sync.Mutex
	results []WorkerResult
}

// New creates a fleet that runs each worker with the given function.
func New(cfg *config.Config, worker WorkerFunc, logger *slog.Logger) *Fleet {
	seed := cfg.Seed
	jitter := NewJitterSource(seed)
	if seed < 0 {
		jitter = NewJitterSourceFromTime()
	}
	return &Fleet{
		cfg:     cfg,
		logger:  logger,
		worker:  worker,
		jitter:  jitter,
		stagger: defaultStagger,
	}
}

// SetStagger overrides the inter-worker start spacing. Zero disables
// staggering. Useful for tests.
func (f *Fleet) SetStagger(d time.Duration) {
	f.stagger = d
}

// workerConfig derives a worker's private config: its own port so engines
// never collide, and a suffixed name so emission files stay separate.
func (f *Fleet) workerConfig(workerID int) *config.Config {
	cfg := *f.cfg
	cfg.Port = f.cfg.Port + workerID
	cfg.Name = fmt.Sprintf("%s-w%d", f.cfg.Name, workerID)
	cfg.TUIEnabled = false
	return &cfg
}

// Run starts all workers and blocks until every worker has returned or the
// context is cancelled. The returned error joins all worker failures.
func (f *Fleet) Run(ctx context.Context) error {
	f.logger.Info("fleet_starting",
		"workers", f.cfg.Workers,
		"base_port", f.cfg.Port,
	)

	var wg sync.WaitGroup
	for i := 0; i < f.cfg.Workers; i++ {
		if i > 0 {
			delay := f.stagger + f.jitter.WorkerJitter(i, f.stagger)
			select {
			case <-ctx.Done():
				f.logger.Info("fleet_launch_cancelled", "launched", i, "target", f.cfg.Workers)
				wg.Wait()
				return f.joinedError()
			case <-time.After(delay):
			}
		}

		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			f.runWorker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	f.logger.Info("fleet_done", "workers", f.cfg.Workers, "failures", f.failureCount())
	return f.joinedError()
}

func (f *Fleet) runWorker(ctx context.Context, workerID int) {
	cfg := f.workerConfig(workerID)
	logger := f.logger.With("worker", workerID, "port", cfg.Port)
	logger.Info("worker_starting")

	err := f.worker(ctx, workerID, cfg)
	if err != nil {
		logger.Error("worker_failed", "error", err)
	} else {
		logger.Info("worker_done")
	}

	f.mu.Lock()
	f.results = append(f.results, WorkerResult{WorkerID: workerID, Err: err})
	f.mu.Unlock()
}

// Results returns the outcome of every worker that has finished.
func (f *Fleet) Results() []WorkerResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]WorkerResult, len(f.results))
	copy(out, f.results)
	return out
}

func (f *Fleet) failureCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.results {
		if r.Err != nil {
			n++
		}
	}
	return n
}

func (f *Fleet) joinedError() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var errs []error
	for _, r := range f.results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("worker %d: %w", r.WorkerID, r.Err))
		}
	}
	return errors.Join(errs...)
}
