package queue

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"breachshield/internal/platform/metrics"
)

// Enqueuer is the producer-side surface of the queue. Services depend on this
// rather than the Redis implementation so tests can capture jobs in memory.
type Enqueuer interface {
	Enqueue(ctx context.Context, job Job) error
	EnqueueIn(ctx context.Context, job Job, delay time.Duration) error
}

// Handler processes one job. Handlers must be idempotent: at-least-once
// delivery means a job can run again after a crash mid-flight.
type Handler interface {
	Handle(ctx context.Context, job Job) Outcome
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, job Job) Outcome

func (f HandlerFunc) Handle(ctx context.Context, job Job) Outcome {
	return f(ctx, job)
}

// Mux routes jobs to handlers by kind.
type Mux struct {
	handlers map[Kind]Handler
}

func NewMux() *Mux {
	return &Mux{handlers: make(map[Kind]Handler)}
}

func (m *Mux) Register(kind Kind, h Handler) {
	m.handlers[kind] = h
}

func (m *Mux) dispatch(ctx context.Context, job Job) Outcome {
	h, ok := m.handlers[job.Kind]
	if !ok {
		return Fail("no handler for kind " + string(job.Kind))
	}
	return h.Handle(ctx, job)
}

// Consumer runs a pool of workers over the durable stream. Entries are acked
// only after a terminal outcome: successes and failures ack immediately, a
// retrying job is first re-parked with its attempt count bumped, then acked.
type Consumer struct {
	queue       *RedisQueue
	mux         *Mux
	metrics     *metrics.Metrics
	log         *zap.Logger
	concurrency int
	retryDelay  time.Duration
}

func NewConsumer(queue *RedisQueue, mux *Mux, m *metrics.Metrics, log *zap.Logger, concurrency int, retryDelay time.Duration) *Consumer {
	return &Consumer{
		queue:       queue,
		mux:         mux,
		metrics:     m,
		log:         log,
		concurrency: concurrency,
		retryDelay:  retryDelay,
	}
}

// Run blocks until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.pumpLoop(ctx)
	}()

	for i := 0; i < c.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.workLoop(ctx)
		}()
	}

	wg.Wait()
}

func (c *Consumer) workLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		d, err := c.queue.next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Error("read job", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if d == nil {
			continue
		}
		c.settle(ctx, d)
	}
}

// pumpLoop promotes due delayed jobs and reclaims entries stuck with dead
// consumers.
func (c *Consumer) pumpLoop(ctx context.Context) {
	ticker := time.NewTicker(pumpInterval)
	defer ticker.Stop()

	reclaim := time.NewTicker(reclaimIdle)
	defer reclaim.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.queue.pumpDue(ctx); err != nil && ctx.Err() == nil {
				c.log.Error("pump scheduled jobs", zap.Error(err))
			}
		case <-reclaim.C:
			claimed, err := c.queue.reclaimStale(ctx)
			if err != nil {
				if ctx.Err() == nil {
					c.log.Error("reclaim stale jobs", zap.Error(err))
				}
				continue
			}
			for _, d := range claimed {
				c.settle(ctx, d)
			}
		}
	}
}

func (c *Consumer) settle(ctx context.Context, d *delivery) {
	outcome := c.mux.dispatch(ctx, d.job)

	if outcome.Status == StatusRetrying {
		next, exhausted := NextAttempt(d.job)
		if exhausted {
			outcome = Fail("retries exhausted: " + outcome.Reason)
		} else {
			if err := c.queue.EnqueueIn(ctx, next, c.retryDelay); err != nil {
				// Leave the entry pending so it is redelivered later.
				c.log.Error("requeue job", zap.String("job_id", d.job.ID), zap.Error(err))
				return
			}
			c.log.Info("job requeued",
				zap.String("job_id", d.job.ID),
				zap.String("kind", string(d.job.Kind)),
				zap.Int("attempt", next.Attempt),
				zap.String("reason", outcome.Reason))
		}
	}

	c.metrics.JobsProcessed.WithLabelValues(string(d.job.Kind), string(outcome.Status)).Inc()
	if outcome.Status == StatusFailed {
		c.log.Warn("job failed",
			zap.String("job_id", d.job.ID),
			zap.String("kind", string(d.job.Kind)),
			zap.Int("attempt", d.job.Attempt),
			zap.String("reason", outcome.Reason))
	}

	if err := c.queue.ack(ctx, d.id); err != nil && ctx.Err() == nil {
		c.log.Error("ack job", zap.String("job_id", d.job.ID), zap.Error(err))
	}
}

// NextAttempt bumps the attempt counter for a retrying job. The second return
// reports whether the kind's attempt budget is already spent.
func NextAttempt(job Job) (Job, bool) {
	if job.Attempt >= MaxAttempts(job.Kind) {
		return job, true
	}
	job.Attempt++
	return job, false
}
