package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/rohanmehra24/unify-segment/internal/metrics"
	"github.com/rohanmehra24/unify-segment/internal/segment"
)

// Dispatcher polls the Redis rebuild queue and feeds claimed jobs to the
// worker pool.
type Dispatcher struct {
	queue        *segment.Queue
	pool         *Pool
	metrics      *metrics.Metrics
	logger       *slog.Logger
	pollInterval time.Duration
	batchSize    int64
	done         chan struct{}
}

func NewDispatcher(queue *segment.Queue, pool *Pool, m *metrics.Metrics, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		queue:        queue,
		pool:         pool,
		metrics:      m,
		logger:       logger,
		pollInterval: 250 * time.Millisecond,
		batchSize:    10,
		done:         make(chan struct{}),
	}
}

// Start begins the polling loop. It runs until the context is cancelled.
// Wait must observe the loop's exit before the pool is stopped, so an
// in-flight poll can never submit to a closed pool.
func (d *Dispatcher) Start(ctx context.Context) {
	defer close(d.done)
	d.logger.Info("rebuild dispatcher started")

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("rebuild dispatcher stopping")
			return
		case <-ticker.C:
			d.poll(ctx)
		}
	}
}

func (d *Dispatcher) poll(ctx context.Context) {
	jobs, err := d.queue.Claim(ctx, d.batchSize)
	if err != nil {
		d.logger.Error("failed to poll rebuild queue", "error", err)
		return
	}

	for _, job := range jobs {
		if !d.pool.Submit(job) {
			d.logger.Warn("worker pool stopped, dropping claimed rebuild job",
				"audience_id", job.AudienceID)
		}
	}

	if depth, err := d.queue.Depth(ctx); err == nil {
		d.metrics.RebuildQueueDepth.Set(float64(depth))
	}
}

// Wait blocks until the polling loop has exited.
func (d *Dispatcher) Wait() {
	<-d.done
}
