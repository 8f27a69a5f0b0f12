package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/guestwifi/guestgate/domain"
	"github.com/guestwifi/guestgate/errors"
	"github.com/guestwifi/guestgate/internal/metrics"
)

// RetryExecutor performs one controller sync operation. A transient failure
// makes the queue reschedule the operation; any other error drops it.
type RetryExecutor func(ctx context.Context, op *domain.RetryOperation) error

// RetryQueueConfig tunes the retry queue. Zero values take the defaults:
// a 1-second tick, a 2-second base delay doubling up to 60 seconds, and 3
// retries before an operation is dropped.
type RetryQueueConfig struct {
	Interval   time.Duration
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	MaxRetries int
}

// RetryQueue holds controller operations that failed transiently and
// replays them in the background with exponential backoff. The queue lives
// in process memory only: a restart loses pending operations, and the
// affected grants stay pending until revoked or retried by hand.
type RetryQueue struct {
	executor RetryExecutor
	cfg      RetryQueueConfig

	mu  sync.Mutex
	ops []*domain.RetryOperation

	stop    chan struct{}
	done    chan struct{}
	started bool
}

// NewRetryQueue creates a stopped retry queue; call Start to begin draining.
func NewRetryQueue(executor RetryExecutor, cfg RetryQueueConfig) *RetryQueue {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 2 * time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 60 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &RetryQueue{
		executor: executor,
		cfg:      cfg,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Enqueue schedules an operation for its first retry after the base delay.
func (q *RetryQueue) Enqueue(op *domain.RetryOperation, now time.Time) {
	if op.ID == "" {
		op.ID = uuid.NewString()
	}
	op.CreatedUTC = now
	op.NextRetryUTC = now.Add(q.cfg.BaseDelay).Truncate(time.Second)

	q.mu.Lock()
	q.ops = append(q.ops, op)
	depth := len(q.ops)
	q.mu.Unlock()

	metrics.RetryQueueDepthGauge.Set(float64(depth))
	log.Info().
		Str("op_id", op.ID).
		Str("type", string(op.Type)).
		Str("mac", op.MAC).
		Time("next_retry", op.NextRetryUTC).
		Msg("controller operation queued for retry")
}

// Depth reports the number of operations waiting in the queue.
func (q *RetryQueue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}

// Start launches the background drain loop. Starting twice is a no-op.
func (q *RetryQueue) Start(ctx context.Context) {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true
	q.mu.Unlock()
	go func() {
		defer close(q.done)
		ticker := time.NewTicker(q.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-q.stop:
				return
			case <-ticker.C:
				q.processDue(ctx, time.Now().UTC())
			}
		}
	}()
}

// Stop shuts the drain loop down and waits for it to finish. Stopping a
// queue that never started, or stopping twice, returns immediately.
func (q *RetryQueue) Stop() {
	q.mu.Lock()
	started := q.started
	q.started = false
	q.mu.Unlock()
	if !started {
		return
	}
	close(q.stop)
	<-q.done
}

// processDue runs every operation whose retry time has arrived. Successful
// and permanently failed operations leave the queue; transient failures are
// rescheduled until the retry budget runs out.
func (q *RetryQueue) processDue(ctx context.Context, now time.Time) {
	q.mu.Lock()
	var due []*domain.RetryOperation
	remaining := q.ops[:0]
	for _, op := range q.ops {
		if !op.NextRetryUTC.After(now) {
			due = append(due, op)
		} else {
			remaining = append(remaining, op)
		}
	}
	q.ops = remaining
	q.mu.Unlock()

	for _, op := range due {
		err := q.executor(ctx, op)
		switch {
		case err == nil:
			log.Info().Str("op_id", op.ID).Str("type", string(op.Type)).Msg("retried controller operation succeeded")
		case errors.IsTransient(err):
			op.Attempts++
			if op.Attempts >= q.cfg.MaxRetries {
				metrics.RetryOperationsDropped.Inc()
				log.Error().
					Str("op_id", op.ID).
					Str("type", string(op.Type)).
					Str("mac", op.MAC).
					Int("attempts", op.Attempts).
					Msg("controller operation dropped after exhausting retries")
				continue
			}
			op.NextRetryUTC = now.Add(q.backoffFor(op.Attempts)).Truncate(time.Second)
			q.mu.Lock()
			q.ops = append(q.ops, op)
			q.mu.Unlock()
		default:
			metrics.RetryOperationsDropped.Inc()
			log.Error().
				Err(err).
				Str("op_id", op.ID).
				Str("type", string(op.Type)).
				Msg("controller operation failed permanently, dropping")
		}
	}

	q.mu.Lock()
	depth := len(q.ops)
	q.mu.Unlock()
	metrics.RetryQueueDepthGauge.Set(float64(depth))
}

// backoffFor doubles the base delay per completed attempt, capped.
func (q *RetryQueue) backoffFor(attempts int) time.Duration {
	delay := q.cfg.BaseDelay
	for i := 0; i < attempts; i++ {
		delay *= 2
		if delay >= q.cfg.MaxDelay {
			return q.cfg.MaxDelay
		}
	}
	return delay
}
