package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	var processed int32
	done := make(chan struct{}, 3)
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&processed, 1)
		done <- struct{}{}
		return nil
	}, QueueConfig{Workers: 2, BufferSize: 4})
	q.Start(context.Background())
	defer q.Stop()

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(Job{ID: "job", Type: "t"}))
	}
	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("job was not processed")
		}
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&processed))
}

func TestQueueRetriesThenGivesUp(t *testing.T) {
	var attempts int32
	gaveUp := make(chan Job, 1)
	q := NewQueue("retry", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&attempts, 1)
		return errors.New("boom")
	}, QueueConfig{
		MaxRetries: 2,
		RetryDelay: 10 * time.Millisecond,
		OnGiveUp:   func(j Job, err error) { gaveUp <- j },
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "j1"}))

	select {
	case j := <-gaveUp:
		assert.Equal(t, "j1", j.ID)
		assert.Equal(t, 3, j.Attempt)
	case <-time.After(2 * time.Second):
		t.Fatal("job was never abandoned")
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestTryEnqueueFullBuffer(t *testing.T) {
	block := make(chan struct{})
	var once sync.Once
	started := make(chan struct{})
	q := NewQueue("full", func(ctx context.Context, job Job) error {
		once.Do(func() { close(started) })
		<-block
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1, DrainTimeout: 50 * time.Millisecond})
	q.Start(context.Background())

	require.NoError(t, q.TryEnqueue(Job{ID: "a"}))
	<-started
	require.NoError(t, q.TryEnqueue(Job{ID: "b"}))
	err := q.TryEnqueue(Job{ID: "c"})
	assert.True(t, errors.Is(err, ErrQueueFull))

	close(block)
	q.Stop()
}

func TestEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("idle", func(context.Context, Job) error { return nil }, QueueConfig{})
	err := q.TryEnqueue(Job{ID: "x"})
	assert.True(t, errors.Is(err, ErrNotStarted))
}

func TestStopDrainsBufferedJobs(t *testing.T) {
	var processed int32
	q := NewQueue("drain", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&processed, 1)
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 8})
	q.Start(context.Background())
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(Job{ID: "d"}))
	}
	q.Stop()

	assert.Equal(t, int32(5), atomic.LoadInt32(&processed))
	assert.True(t, errors.Is(q.TryEnqueue(Job{}), ErrNotStarted))
}
