package worker

// retry_cron.go
// Failed jobs wait in the sorted set RetryKey, scored by the time they are
// due. A background goroutine moves due jobs back to their original queue.

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	RetryKey    = "jobs:reintentos"
	MaxAttempts = 5

	retryTickInterval = 5 * time.Second
	retryBatchSize    = 50
	retryBaseDelay    = 2 * time.Second
	retryMaxDelay     = 5 * time.Minute
)

// retryEntry is the member stored in RetryKey.
type retryEntry struct {
	Queue string `json:"queue"`
	Job   Job    `json:"job"`
}

// computeRetryBackoff doubles the delay per attempt: 2s, 4s, 8s... capped at 5m.
func computeRetryBackoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	d := retryBaseDelay
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= retryMaxDelay {
			return retryMaxDelay
		}
	}
	return d
}

// ScheduleRetry stores job in RetryKey, due after the backoff of its attempts.
func ScheduleRetry(ctx context.Context, rdb *redis.Client, queue string, job Job, now time.Time) error {
	member, err := json.Marshal(retryEntry{Queue: queue, Job: job})
	if err != nil {
		return err
	}
	due := now.Add(computeRetryBackoff(job.Attempts))
	return rdb.ZAdd(ctx, RetryKey, redis.Z{Score: float64(due.UnixMilli()), Member: member}).Err()
}

// StartRetryCron launches the goroutine re-queueing due jobs. It respects
// the context for graceful shutdown.
func StartRetryCron(ctx context.Context, rdb *redis.Client) {
	go func() {
		ticker := time.NewTicker(retryTickInterval)
		defer ticker.Stop()

		log.Info().Msg("retry_cron: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("retry_cron: shutting down")
				return
			case <-ticker.C:
				if n, err := requeueDue(ctx, rdb, time.Now()); err != nil {
					log.Error().Err(err).Msg("retry_cron: failed to requeue jobs")
				} else if n > 0 {
					log.Info().Int("count", n).Msg("retry_cron: jobs requeued")
				}
			}
		}
	}()
}

// requeueDue moves every job due at now back to its queue. ZREM decides
// ownership, so several instances can run the cron at once.
func requeueDue(ctx context.Context, rdb *redis.Client, now time.Time) (int, error) {
	members, err := rdb.ZRangeByScore(ctx, RetryKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: retryBatchSize,
	}).Result()
	if err != nil {
		return 0, err
	}

	moved := 0
	for _, m := range members {
		removed, err := rdb.ZRem(ctx, RetryKey, m).Result()
		if err != nil {
			return moved, err
		}
		if removed == 0 {
			continue // taken by another instance
		}
		var entry retryEntry
		if err := json.Unmarshal([]byte(m), &entry); err != nil {
			log.Error().Err(err).Msg("retry_cron: dropping malformed entry")
			continue
		}
		encoded, err := json.Marshal(entry.Job)
		if err != nil {
			return moved, err
		}
		if err := rdb.LPush(ctx, entry.Queue, encoded).Err(); err != nil {
			return moved, err
		}
		moved++
	}
	return moved, nil
}
