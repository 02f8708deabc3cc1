package queue

import (
	"context"
	"sync"
	"time"
)

// MemoryQueue is an in-memory Enqueuer for tests. Delayed jobs record their
// delay instead of waiting for it.
type MemoryQueue struct {
	mu      sync.Mutex
	jobs    []Job
	delayed []DelayedJob
}

type DelayedJob struct {
	Job   Job
	Delay time.Duration
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

func (q *MemoryQueue) Enqueue(_ context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *MemoryQueue) EnqueueIn(_ context.Context, job Job, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.delayed = append(q.delayed, DelayedJob{Job: job, Delay: delay})
	return nil
}

// Jobs returns a copy of the immediately enqueued jobs.
func (q *MemoryQueue) Jobs() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Job, len(q.jobs))
	copy(out, q.jobs)
	return out
}

// Delayed returns a copy of the delay-scheduled jobs.
func (q *MemoryQueue) Delayed() []DelayedJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]DelayedJob, len(q.delayed))
	copy(out, q.delayed)
	return out
}
