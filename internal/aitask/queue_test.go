package aitask

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func queueAt(t *testing.T, start int64) *Queue {
	t.Helper()
	q := NewQueue(openTaskStore(t))
	ts := start
	q.now = func() time.Time {
		now := time.UnixMilli(ts)
		ts++
		return now
	}
	return q
}

func TestQueue_EnqueueAndReplayOrder(t *testing.T) {
	t.Parallel()

	q := queueAt(t, 1000)
	ctx := context.Background()

	for _, task := range []string{TaskSimplifyTE, TaskGenerateGloss, TaskBackCheck} {
		_, err := q.Enqueue(ctx, task, json.RawMessage(`{"id":1}`))
		require.NoError(t, err)
	}

	jobs, err := q.All(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, int64(1000), jobs[0].TS)
	assert.Equal(t, TaskSimplifyTE, jobs[0].Task)
	assert.Equal(t, TaskBackCheck, jobs[2].Task)
}

func TestQueue_SameMillisecondEnqueuesKeepEveryJob(t *testing.T) {
	t.Parallel()

	q := NewQueue(openTaskStore(t))
	q.now = func() time.Time { return time.UnixMilli(1000) }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := q.Enqueue(ctx, TaskSimplifyTE, json.RawMessage(`{"id":1}`))
		require.NoError(t, err)
	}

	jobs, err := q.All(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 3, "a burst inside one millisecond must not overwrite")
	assert.Equal(t, int64(1000), jobs[0].TS)
	assert.Equal(t, int64(1001), jobs[1].TS)
	assert.Equal(t, int64(1002), jobs[2].TS)
}

func TestQueue_DeleteRemovesJob(t *testing.T) {
	t.Parallel()

	q := queueAt(t, 1000)
	ctx := context.Background()

	job, err := q.Enqueue(ctx, TaskSimplifyTE, json.RawMessage(`{"id":1}`))
	require.NoError(t, err)
	require.NoError(t, q.Delete(ctx, job.TS))

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, q.Delete(ctx, job.TS), "deleting an absent job is a no-op")
}
