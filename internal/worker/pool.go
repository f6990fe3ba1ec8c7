package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueuePDF   = "jobs:pdf"
	QueueEmail = "jobs:email"

	JobPDF   = "pdf"
	JobEmail = "email"
)

// Job is the generic envelope for all async tasks.
type Job struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts"`
}

// Processor handles the payload of one job type. A returned error schedules
// a retry unless it is marked with Permanent.
type Processor interface {
	Process(ctx context.Context, payload json.RawMessage) error
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying; the job goes straight to the DLQ.
func Permanent(err error) error { return permanentError{err: err} }

func isPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// EnqueueEnvioVale renders the voucher PDF and then mails it to email.
func (d *Dispatcher) EnqueueEnvioVale(ctx context.Context, valeID uuid.UUID, email string) error {
	return d.EnqueuePDF(ctx, PDFJobPayload{ValeID: valeID.String(), Email: email})
}

// EnqueuePDF pushes a rendering job to Redis.
func (d *Dispatcher) EnqueuePDF(ctx context.Context, payload PDFJobPayload) error {
	return d.enqueue(ctx, QueuePDF, JobPDF, payload)
}

// EnqueueEmail pushes an email job to Redis.
func (d *Dispatcher) EnqueueEmail(ctx context.Context, payload EmailJobPayload) error {
	return d.enqueue(ctx, QueueEmail, JobEmail, payload)
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(Job{Type: jobType, Payload: data})
	if err != nil {
		return err
	}
	if err := d.rdb.LPush(ctx, queue, encoded).Err(); err != nil {
		return fmt.Errorf("enqueue %s: %w", jobType, err)
	}
	return nil
}

// Pool consumes the job queues with a fixed number of goroutines.
type Pool struct {
	rdb        *redis.Client
	processors map[string]Processor
	queues     []string
}

func NewPool(rdb *redis.Client, processors map[string]Processor) *Pool {
	return &Pool{rdb: rdb, processors: processors, queues: []string{QueuePDF, QueueEmail}}
}

// Start launches numWorkers goroutines consuming both queues.
// Each goroutine blocks on BRPOP, zero CPU when idle.
func (p *Pool) Start(ctx context.Context, numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		go p.runWorker(ctx, i)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
}

func (p *Pool) runWorker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			// Blocking pop; waits up to 5s then loops to check ctx
			result, err := p.rdb.BRPop(ctx, 5*time.Second, p.queues...).Result()
			if err != nil {
				continue // timeout or context cancelled
			}
			if len(result) < 2 {
				continue
			}
			p.processJob(ctx, result[0], result[1])
		}
	}
}

func (p *Pool) processJob(ctx context.Context, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		invalido := Job{Type: "desconocido", Payload: json.RawMessage(fmt.Sprintf("%q", raw))}
		Descartar(ctx, p.rdb, queue, invalido, Permanent(fmt.Errorf("envelope invalido: %w", err)))
		return
	}

	proc, ok := p.processors[job.Type]
	if !ok {
		Descartar(ctx, p.rdb, queue, job, Permanent(errors.New("tipo de job sin procesador")))
		return
	}

	err := proc.Process(ctx, job.Payload)
	if err == nil {
		log.Debug().Str("job_type", job.Type).Str("queue", queue).Int("attempts", job.Attempts+1).Msg("job processed")
		return
	}
	job.Attempts++

	switch {
	case isPermanent(err):
		Descartar(ctx, p.rdb, queue, job, err)
	case job.Attempts >= MaxAttempts:
		Descartar(ctx, p.rdb, queue, job, fmt.Errorf("max retries (%d) exceeded: %w", MaxAttempts, err))
	default:
		if serr := ScheduleRetry(ctx, p.rdb, queue, job, time.Now()); serr != nil {
			log.Error().Err(serr).Str("job_type", job.Type).Msg("failed to schedule retry")
			Descartar(ctx, p.rdb, queue, job, err)
			return
		}
		log.Warn().Err(err).
			Str("job_type", job.Type).
			Str("queue", queue).
			Int("attempts", job.Attempts).
			Msg("job failed, retry scheduled")
	}
}
