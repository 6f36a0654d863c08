// Package jobs runs asynchronous units of work on an in-process worker pool.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"trackline-backend/internal/logger"
	"trackline-backend/internal/metrics"
)

// Job is one unit of asynchronous work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler accepts jobs for immediate or delayed execution.
type Scheduler interface {
	Enqueue(job Job)
	EnqueueAfter(delay time.Duration, job Job)
}

// Queue manages a pool of workers draining a buffered job channel.
type Queue struct {
	size int
	jobs chan Job
	log  *logger.Logger

	mu      sync.Mutex
	timers  map[*time.Timer]struct{}
	stopped bool
	done    chan struct{}
}

// NewQueue creates a queue with size workers and a channel of queueSize slots.
func NewQueue(size, queueSize int, log *logger.Logger) *Queue {
	if size <= 0 {
		size = 1
	}
	if queueSize <= 0 {
		queueSize = size
	}
	return &Queue{
		size:   size,
		jobs:   make(chan Job, queueSize),
		log:    log.With("component", "JobQueue"),
		timers: make(map[*time.Timer]struct{}),
		done:   make(chan struct{}),
	}
}

// Start launches the worker goroutines. Pending delayed jobs are dropped
// once ctx is done.
func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.size; i++ {
		go q.worker(ctx, i)
	}
	go func() {
		<-ctx.Done()
		q.Stop()
	}()
}

func (q *Queue) worker(ctx context.Context, id int) {
	q.log.Debug("worker started", "worker", id)
	for {
		select {
		case job := <-q.jobs:
			q.run(ctx, id, job)
		case <-ctx.Done():
			q.log.Debug("worker shutting down", "worker", id)
			return
		}
	}
}

func (q *Queue) run(ctx context.Context, id int, job Job) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error("job panic", "worker", id, "job", job.Name(), "panic", fmt.Sprint(r))
			metrics.RecordJobPanic(job.Name())
		}
	}()

	started := time.Now()
	err := job.Run(ctx)
	metrics.RecordJob(job.Name(), err)
	if err != nil {
		q.log.Warn("job failed", "worker", id, "job", job.Name(), "error", err)
		return
	}
	q.log.Debug("job finished", "worker", id, "job", job.Name(), "elapsed", time.Since(started))
}

// Enqueue sends a job to the pool, blocking while the channel is full.
// Once the queue is stopped a blocked or later call drops the job.
func (q *Queue) Enqueue(job Job) {
	select {
	case q.jobs <- job:
	case <-q.done:
		q.log.Warn("queue stopped; dropping job", "job", job.Name())
	}
}

// EnqueueAfter schedules job to be enqueued once delay has elapsed.
func (q *Queue) EnqueueAfter(delay time.Duration, job Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		q.log.Warn("queue stopped; dropping delayed job", "job", job.Name())
		return
	}

	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		q.mu.Lock()
		delete(q.timers, t)
		stopped := q.stopped
		q.mu.Unlock()
		if !stopped {
			q.Enqueue(job)
		}
	})
	q.timers[t] = struct{}{}
}

// Pending returns the number of delayed jobs that have not fired yet.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.timers)
}

// Stop cancels all delayed jobs and releases blocked Enqueue calls. Jobs
// already in the channel are left as is.
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.stopped {
		close(q.done)
	}
	q.stopped = true
	for t := range q.timers {
		t.Stop()
	}
	q.timers = make(map[*time.Timer]struct{})
}

// Jobs returns the jobs channel for testing.
func (q *Queue) Jobs() chan Job {
	return q.jobs
}
