package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Jobs that fail permanently or run out of attempts are kept in
// dlq:<queue>, newest first, so a failed voucher mail can be found and
// resent by hand. Each list keeps the last DLQLimite entries.
const (
	DLQPrefix = "dlq:"
	DLQLimite = 1000
)

type DLQEntry struct {
	Queue      string          `json:"queue"`
	JobType    string          `json:"job_type"`
	Payload    json.RawMessage `json:"payload"`
	Attempts   int             `json:"attempts"`
	Motivo     string          `json:"motivo"`
	Permanente bool            `json:"permanente"`
	FallidoEn  time.Time       `json:"fallido_en"`
}

func dlqKey(queue string) string { return DLQPrefix + queue }

// Descartar moves job to the dead-letter list of queue. Redis errors are
// logged, never returned: the job is already lost to the pool either way.
func Descartar(ctx context.Context, rdb *redis.Client, queue string, job Job, motivo error) {
	entry := DLQEntry{
		Queue:      queue,
		JobType:    job.Type,
		Payload:    job.Payload,
		Attempts:   job.Attempts,
		Motivo:     motivo.Error(),
		Permanente: isPermanent(motivo),
		FallidoEn:  time.Now().UTC(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		log.Error().Err(err).Str("queue", queue).Msg("dlq: marshal entry")
		return
	}

	key := dlqKey(queue)
	_, err = rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, data)
		pipe.LTrim(ctx, key, 0, DLQLimite-1)
		return nil
	})
	if err != nil {
		log.Error().Err(err).Str("dlq_key", key).Str("job_type", job.Type).Msg("dlq: push")
		return
	}

	log.Warn().
		Str("queue", queue).
		Str("job_type", job.Type).
		Int("attempts", job.Attempts).
		Bool("permanente", entry.Permanente).
		Str("motivo", entry.Motivo).
		Msg("dlq: job descartado")
}

// DLQLength is reported by the health endpoint.
func DLQLength(ctx context.Context, rdb *redis.Client, queue string) (int64, error) {
	return rdb.LLen(ctx, dlqKey(queue)).Result()
}

// UltimosDescartados returns up to n entries of queue's dead-letter list,
// newest first. Entries that no longer decode are skipped.
func UltimosDescartados(ctx context.Context, rdb *redis.Client, queue string, n int64) ([]DLQEntry, error) {
	if n <= 0 {
		return nil, nil
	}
	raws, err := rdb.LRange(ctx, dlqKey(queue), 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("dlq: leer %s: %w", queue, err)
	}
	entries := make([]DLQEntry, 0, len(raws))
	for _, raw := range raws {
		var e DLQEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}
