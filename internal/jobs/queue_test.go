package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackline-backend/internal/logger"
)

type funcJob struct {
	name string
	fn   func(ctx context.Context) error
}

func (j funcJob) Name() string                  { return j.name }
func (j funcJob) Run(ctx context.Context) error { return j.fn(ctx) }

func TestQueue_Enqueue(t *testing.T) {
	q := NewQueue(1, 4, logger.NewNop())

	q.Enqueue(funcJob{name: "noop", fn: func(context.Context) error { return nil }})

	select {
	case job := <-q.Jobs():
		assert.Equal(t, "noop", job.Name())
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for job to be enqueued")
	}
}

func TestQueue_WorkersRunJobs(t *testing.T) {
	q := NewQueue(2, 8, logger.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	var wg sync.WaitGroup
	var mu sync.Mutex
	ran := 0
	for i := 0; i < 5; i++ {
		wg.Add(1)
		q.Enqueue(funcJob{name: "count", fn: func(context.Context) error {
			defer wg.Done()
			mu.Lock()
			ran++
			mu.Unlock()
			return nil
		}})
	}

	waitOrFail(t, &wg)
	assert.Equal(t, 5, ran)
}

func TestQueue_RecoversFromPanicAndErrors(t *testing.T) {
	q := NewQueue(1, 4, logger.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	var wg sync.WaitGroup
	wg.Add(3)
	q.Enqueue(funcJob{name: "panics", fn: func(context.Context) error {
		defer wg.Done()
		panic("boom")
	}})
	q.Enqueue(funcJob{name: "fails", fn: func(context.Context) error {
		defer wg.Done()
		return errors.New("nope")
	}})
	q.Enqueue(funcJob{name: "after", fn: func(context.Context) error {
		wg.Done()
		return nil
	}})

	waitOrFail(t, &wg)
}

func TestQueue_EnqueueAfter(t *testing.T) {
	q := NewQueue(1, 4, logger.NewNop())

	q.EnqueueAfter(20*time.Millisecond, funcJob{name: "later", fn: func(context.Context) error { return nil }})
	assert.Equal(t, 1, q.Pending())

	select {
	case job := <-q.Jobs():
		assert.Equal(t, "later", job.Name())
	case <-time.After(1 * time.Second):
		t.Fatal("delayed job never arrived")
	}
	assert.Equal(t, 0, q.Pending())
}

func TestQueue_StopDropsDelayedJobs(t *testing.T) {
	q := NewQueue(1, 4, logger.NewNop())

	q.EnqueueAfter(20*time.Millisecond, funcJob{name: "dropped", fn: func(context.Context) error { return nil }})
	q.Stop()
	q.EnqueueAfter(time.Millisecond, funcJob{name: "rejected", fn: func(context.Context) error { return nil }})

	require.Equal(t, 0, q.Pending())
	select {
	case job := <-q.Jobs():
		t.Fatalf("unexpected job %s", job.Name())
	case <-time.After(60 * time.Millisecond):
	}
}

func TestQueue_StopReleasesBlockedEnqueue(t *testing.T) {
	q := NewQueue(1, 1, logger.NewNop())
	noop := funcJob{name: "noop", fn: func(context.Context) error { return nil }}
	q.Enqueue(noop)

	returned := make(chan struct{})
	go func() {
		q.Enqueue(noop)
		close(returned)
	}()

	select {
	case <-returned:
		t.Fatal("enqueue on a full queue should block")
	case <-time.After(50 * time.Millisecond):
	}

	q.Stop()
	q.Stop()
	select {
	case <-returned:
	case <-time.After(1 * time.Second):
		t.Fatal("enqueue still blocked after stop")
	}
	assert.Len(t, q.Jobs(), 1)

	// Later calls return at once; a free slot may still take the job.
	<-q.Jobs()
	q.Enqueue(noop)
	assert.LessOrEqual(t, len(q.Jobs()), 1)
}

func waitOrFail(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for jobs")
	}
}
