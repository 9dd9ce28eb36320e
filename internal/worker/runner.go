// Package worker consumes the Redis rebuild queue and executes audience
// rebuilds on a fixed pool of goroutines.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/rohanmehra24/unify-segment/internal/domain"
	"github.com/rohanmehra24/unify-segment/internal/metrics"
	"github.com/rohanmehra24/unify-segment/internal/segment"
	ws "github.com/rohanmehra24/unify-segment/internal/websocket"
)

// Rebuilder recomputes one audience's membership and returns the member
// count. Satisfied by *segment.Engine.
type Rebuilder interface {
	Rebuild(ctx context.Context, audienceID string) (int, error)
}

// Runner executes one queued rebuild job: runs the engine, records metrics,
// and broadcasts the result to the activity hub.
type Runner struct {
	engine  Rebuilder
	hub     *ws.Hub
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewRunner(engine Rebuilder, hub *ws.Hub, m *metrics.Metrics, logger *slog.Logger) *Runner {
	return &Runner{engine: engine, hub: hub, metrics: m, logger: logger}
}

// Run rebuilds the job's audience. Failures are logged and counted; a job
// for a since-deleted or unknown audience is dropped without noise beyond a
// warning.
func (r *Runner) Run(ctx context.Context, job segment.RebuildJob) {
	start := time.Now()

	count, err := r.engine.Rebuild(ctx, job.AudienceID)
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			r.metrics.AudienceRebuilds.WithLabelValues("not_found").Inc()
			r.logger.Warn("dropping rebuild job for unknown audience", "audience_id", job.AudienceID)
			return
		}
		r.metrics.AudienceRebuilds.WithLabelValues("failed").Inc()
		r.logger.Error("audience rebuild failed",
			"audience_id", job.AudienceID,
			"error", err,
			"elapsed_ms", elapsed.Milliseconds(),
		)
		return
	}

	r.metrics.AudienceRebuilds.WithLabelValues("success").Inc()
	r.metrics.RebuildDuration.Observe(elapsed.Seconds())

	r.hub.Broadcast(ws.Activity{
		Type:        ws.ActivityAudienceRebuilt,
		AudienceID:  job.AudienceID,
		MemberCount: count,
		Timestamp:   time.Now(),
	})

	r.logger.Info("queued rebuild complete",
		"audience_id", job.AudienceID,
		"member_count", count,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}
