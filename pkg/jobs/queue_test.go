package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	done := make(chan Job, 1)
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		done <- job
		return nil
	}, QueueConfig{Workers: 1})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{Type: "notify", Payload: "REP-1"}))

	select {
	case job := <-done:
		assert.NotEmpty(t, job.ID)
		assert.Equal(t, "REP-1", job.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("job not processed")
	}
	assert.Eventually(t, func() bool { return q.Stats().Processed == 1 }, time.Second, 10*time.Millisecond)
}

func TestQueueRetriesThenDeadLetters(t *testing.T) {
	var attempts atomic.Int32
	dead := make(chan Job, 1)
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		attempts.Add(1)
		return errors.New("subscriber offline")
	}, QueueConfig{Workers: 1, MaxRetries: 2, RetryDelay: 5 * time.Millisecond, DeadLetter: func(j Job, err error) {
		dead <- j
	}})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{Type: "notify"}))

	select {
	case job := <-dead:
		assert.Equal(t, 3, job.Attempt)
	case <-time.After(2 * time.Second):
		t.Fatal("job never dead-lettered")
	}
	assert.Equal(t, int32(3), attempts.Load())
	stats := q.Stats()
	assert.Equal(t, uint64(2), stats.Retried)
	assert.Equal(t, uint64(1), stats.Failed)
}

func TestQueueEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("test", func(context.Context, Job) error { return nil }, QueueConfig{})
	err := q.Enqueue(Job{Type: "notify"})
	assert.ErrorIs(t, err, ErrNotStarted)
}
