package jobqueue

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docunexus/pkg/config"
	dnerrors "docunexus/pkg/errors"
)

func exerciseQueue(t *testing.T, q Queue) {
	t.Helper()
	ctx := context.Background()

	job, err := q.ClaimOne(ctx, "w1")
	require.NoError(t, err)
	assert.Nil(t, job, "empty queue yields nil")

	id1, err := q.Enqueue(ctx, "batch", []byte(`{"job_id":"a"}`))
	require.NoError(t, err)
	id2, err := q.Enqueue(ctx, "transcode", []byte(`{"job_name":"b"}`))
	require.NoError(t, err)

	got, err := q.Get(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)

	job, err = q.ClaimOne(ctx, "w1")
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, id1, job.ID, "oldest first")
	assert.Equal(t, StatusRunning, job.Status)
	assert.Equal(t, "w1", job.WorkerID)
	assert.JSONEq(t, `{"job_id":"a"}`, string(job.Payload))

	require.NoError(t, q.MarkCompleted(ctx, id1, "done"))
	got, err = q.Get(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, "done", got.Result)

	job, err = q.ClaimOne(ctx, "w2")
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, id2, job.ID)
	require.NoError(t, q.MarkFailed(ctx, id2, "boom"))
	got, _ = q.Get(ctx, id2)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "boom", got.Error)

	job, err = q.ClaimOne(ctx, "w1")
	require.NoError(t, err)
	assert.Nil(t, job)

	_, err = q.Get(ctx, "missing")
	assert.True(t, errors.Is(err, dnerrors.ErrNotFound))
	assert.True(t, errors.Is(q.MarkCompleted(ctx, "missing", ""), dnerrors.ErrNotFound))
	_, err = q.Enqueue(ctx, "", nil)
	assert.True(t, errors.Is(err, dnerrors.ErrInvalidArg))
}

func TestMemoryQueue(t *testing.T) {
	exerciseQueue(t, NewMemoryQueue())
}

func TestMemoryQueue_ConcurrentClaims(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()
	for i := 0; i < 50; i++ {
		_, err := q.Enqueue(ctx, "batch", nil)
		require.NoError(t, err)
	}
	var mu sync.Mutex
	seen := map[string]bool{}
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				job, err := q.ClaimOne(ctx, "w")
				if err != nil || job == nil {
					return
				}
				mu.Lock()
				assert.False(t, seen[job.ID], "job claimed twice")
				seen[job.ID] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 50)
}

func TestPostgresQueue(t *testing.T) {
	dsn := os.Getenv("TEST_JOBQUEUE_DSN")
	if dsn == "" {
		t.Skip("TEST_JOBQUEUE_DSN not set, skipping Postgres job queue tests")
	}
	ctx := context.Background()
	q, err := NewPostgresQueue(ctx, dsn)
	require.NoError(t, err)
	defer q.Close()
	_, _ = q.(*pgQueue).pool.Exec(ctx, `DELETE FROM media_jobs`)
	exerciseQueue(t, q)
}

func TestNew(t *testing.T) {
	q, err := New(context.Background(), config.JobQueueConfig{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryQueue{}, q)
	_, err = New(context.Background(), config.JobQueueConfig{Type: "kafka"})
	assert.Error(t, err)
}
