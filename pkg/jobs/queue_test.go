package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueueDeliversJobs(t *testing.T) {
	done := make(chan Job, 1)
	queue := NewQueue("test", func(_ context.Context, job Job) error {
		done <- job
		return nil
	}, QueueConfig{Workers: 2})

	queue.Start(context.Background())
	defer queue.Stop()

	require.NoError(t, queue.Enqueue(Job{ID: "j-1", Type: "NOTIFY"}))

	select {
	case job := <-done:
		require.Equal(t, "j-1", job.ID)
		require.False(t, job.Enqueued.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("job was not delivered")
	}
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	var attempts atomic.Int32
	done := make(chan struct{}, 1)
	queue := NewQueue("test", func(_ context.Context, job Job) error {
		if attempts.Add(1) == 1 {
			return errors.New("transient")
		}
		done <- struct{}{}
		return nil
	}, QueueConfig{Workers: 1, MaxRetries: 2, RetryDelay: 10 * time.Millisecond})

	queue.Start(context.Background())
	defer queue.Stop()

	require.NoError(t, queue.Enqueue(Job{ID: "j-1", Type: "NOTIFY"}))

	select {
	case <-done:
		require.EqualValues(t, 2, attempts.Load())
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried")
	}
}

func TestQueueEnqueueBeforeStartFails(t *testing.T) {
	queue := NewQueue("test", func(context.Context, Job) error { return nil }, QueueConfig{})
	require.Error(t, queue.Enqueue(Job{ID: "j-1"}))
}
