package segment

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RebuildQueueKey is the Redis sorted set holding pending rebuild jobs,
// scored by enqueue time.
const RebuildQueueKey = "audience_rebuild_queue"

// RebuildJob is a queued request to rebuild one audience.
type RebuildJob struct {
	AudienceID string    `json:"audience_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Queue is the Redis-backed rebuild job queue shared by the API (producer)
// and the dispatcher (consumer).
type Queue struct {
	client *redis.Client
	logger *slog.Logger
}

func NewQueue(client *redis.Client, logger *slog.Logger) *Queue {
	return &Queue{client: client, logger: logger}
}

// Enqueue adds a rebuild job scored by enqueue time.
func (q *Queue) Enqueue(ctx context.Context, audienceID string) error {
	job := RebuildJob{AudienceID: audienceID, EnqueuedAt: time.Now()}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshaling rebuild job: %w", err)
	}

	err = q.client.ZAdd(ctx, RebuildQueueKey, redis.Z{
		Score:  float64(job.EnqueuedAt.UnixMicro()),
		Member: string(data),
	}).Err()
	if err != nil {
		return fmt.Errorf("queuing rebuild job: %w", err)
	}

	q.logger.Info("rebuild queued", "audience_id", audienceID)
	return nil
}

// Claim pops up to max ready jobs. Each candidate is removed with ZRem
// before it is returned; a ZRem that removes nothing means another consumer
// already took the job, and it is skipped.
func (q *Queue) Claim(ctx context.Context, max int64) ([]RebuildJob, error) {
	now := float64(time.Now().UnixMicro())

	results, err := q.client.ZRangeByScore(ctx, RebuildQueueKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatFloat(now, 'f', -1, 64),
		Count: max,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("polling rebuild queue: %w", err)
	}

	var jobs []RebuildJob
	for _, member := range results {
		removed, err := q.client.ZRem(ctx, RebuildQueueKey, member).Result()
		if err != nil {
			return jobs, fmt.Errorf("claiming rebuild job: %w", err)
		}
		if removed == 0 {
			continue
		}

		var job RebuildJob
		if err := json.Unmarshal([]byte(member), &job); err != nil {
			q.logger.Error("dropping malformed rebuild job", "error", err)
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Depth returns the number of jobs waiting in the queue.
func (q *Queue) Depth(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, RebuildQueueKey).Result()
}
