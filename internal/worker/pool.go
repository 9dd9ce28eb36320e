package worker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/rohanmehra24/unify-segment/internal/segment"
)

// Pool manages a fixed number of worker goroutines that run rebuild jobs.
type Pool struct {
	numWorkers int
	jobs       chan segment.RebuildJob
	runner     *Runner
	logger     *slog.Logger
	wg         sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

// NewPool creates a worker pool with the given number of workers.
func NewPool(numWorkers int, runner *Runner, logger *slog.Logger) *Pool {
	return &Pool{
		numWorkers: numWorkers,
		jobs:       make(chan segment.RebuildJob, numWorkers*2),
		runner:     runner,
		logger:     logger,
	}
}

// Start launches all worker goroutines. They read from the jobs channel
// until it is closed or the context is cancelled.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	p.logger.Info("rebuild worker pool started", "num_workers", p.numWorkers)
}

// Submit sends a job to the worker pool. It reports false once the pool has
// stopped, so a producer racing shutdown cannot send on the closed channel.
func (p *Pool) Submit(job segment.RebuildJob) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return false
	}
	p.jobs <- job
	return true
}

// Stop closes the jobs channel and waits for all workers to finish.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("rebuild worker pool stopped")
}

// worker is a single goroutine that processes jobs from the channel.
func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()

	for job := range p.jobs {
		select {
		case <-ctx.Done():
			return
		default:
			p.runner.Run(ctx, job)
		}
	}
}
