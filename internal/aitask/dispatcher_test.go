package aitask

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telreader/telugu-science-reader/internal/apperr"
	"github.com/telreader/telugu-science-reader/internal/connectivity"
)

type fakeRemote struct {
	mu      sync.Mutex
	calls   []Request
	fail    error
	failFor map[string]error
}

func (f *fakeRemote) Do(_ context.Context, task string, payload json.RawMessage) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Request{Task: task, Payload: payload})
	if err, ok := f.failFor[task]; ok {
		return nil, err
	}
	if f.fail != nil {
		return nil, f.fail
	}
	return json.RawMessage(`{"simplified_te":"సరళం"}`), nil
}

func (f *fakeRemote) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newDispatcher(t *testing.T, online bool) (*Dispatcher, *Queue, *fakeRemote, *connectivity.Monitor) {
	t.Helper()
	s := openTaskStore(t)
	remote := &fakeRemote{}
	monitor := connectivity.NewMonitor(online)
	queue := NewQueue(s)
	ts := int64(1000)
	queue.now = func() time.Time {
		now := time.UnixMilli(ts)
		ts++
		return now
	}
	return NewDispatcher(NewCache(s), queue, remote, monitor), queue, remote, monitor
}

func TestDispatcher_OfflineCallIsQueuedNotSent(t *testing.T) {
	t.Parallel()

	d, queue, remote, _ := newDispatcher(t, false)
	ctx := context.Background()

	_, err := d.Call(ctx, TaskSimplifyTE, json.RawMessage(`{"id":1,"te":"వేడి"}`))
	require.Error(t, err)
	assert.True(t, apperr.IsErrorType(err, apperr.ErrOffline))
	assert.Zero(t, remote.callCount())

	jobs, err := queue.All(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, int64(1000), jobs[0].TS)
	assert.Equal(t, TaskSimplifyTE, jobs[0].Task)
}

func TestDispatcher_DrainReplaysExactPayloadAndClearsQueue(t *testing.T) {
	t.Parallel()

	d, queue, remote, monitor := newDispatcher(t, false)
	ctx := context.Background()

	_, err := d.Call(ctx, TaskSimplifyTE, json.RawMessage(`{"id":1,"te":"వేడి"}`))
	require.Error(t, err)

	monitor.Set(true)
	replayed, err := d.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, replayed)

	require.Equal(t, 1, remote.callCount())
	assert.Equal(t, TaskSimplifyTE, remote.calls[0].Task)
	assert.JSONEq(t, `{"id":1,"te":"వేడి"}`, string(remote.calls[0].Payload))

	n, err := queue.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDispatcher_DrainReplaysAllJobsInOrder(t *testing.T) {
	t.Parallel()

	d, _, remote, monitor := newDispatcher(t, false)
	ctx := context.Background()

	tasks := []string{TaskSimplifyTE, TaskGenerateGloss, TaskBackCheck, TaskCulturalReview}
	for i, task := range tasks {
		_, err := d.Call(ctx, task, json.RawMessage(fmt.Sprintf(`{"id":%d}`, i)))
		require.Error(t, err)
	}

	monitor.Set(true)
	replayed, err := d.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(tasks), replayed)
	require.Equal(t, len(tasks), remote.callCount())
	for i, task := range tasks {
		assert.Equal(t, task, remote.calls[i].Task)
	}
}

func TestDispatcher_DrainStopsOnNetworkFailure(t *testing.T) {
	t.Parallel()

	d, queue, remote, monitor := newDispatcher(t, false)
	ctx := context.Background()

	_, _ = d.Call(ctx, TaskSimplifyTE, json.RawMessage(`{"id":1}`))
	_, _ = d.Call(ctx, TaskBackCheck, json.RawMessage(`{"id":2}`))

	monitor.Set(true)
	remote.fail = apperr.New(apperr.ErrNetwork, "still unreachable")
	replayed, err := d.Drain(ctx)
	require.NoError(t, err)
	assert.Zero(t, replayed)
	assert.False(t, monitor.Online())

	n, err := queue.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "jobs stay queued for the next attempt")
}

func TestDispatcher_SecondCallIsServedFromCache(t *testing.T) {
	t.Parallel()

	d, _, remote, _ := newDispatcher(t, true)
	ctx := context.Background()
	payload := json.RawMessage(`{"id":1,"te":"వేడి"}`)

	first, err := d.Call(ctx, TaskSimplifyTE, payload)
	require.NoError(t, err)

	second, err := d.Call(ctx, TaskSimplifyTE, json.RawMessage(`{"te":"వేడి","id":1}`))
	require.NoError(t, err)
	assert.JSONEq(t, string(first), string(second))
	assert.Equal(t, 1, remote.callCount(), "second call must not hit the network")
}

func TestDispatcher_CachedResultIsServedWhileOffline(t *testing.T) {
	t.Parallel()

	d, queue, _, monitor := newDispatcher(t, true)
	ctx := context.Background()
	payload := json.RawMessage(`{"id":3}`)

	_, err := d.Call(ctx, TaskGenerateGloss, payload)
	require.NoError(t, err)

	monitor.Set(false)
	result, err := d.Call(ctx, TaskGenerateGloss, payload)
	require.NoError(t, err)
	assert.NotEmpty(t, result)

	n, err := queue.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDispatcher_NetworkFailureFlipsMonitorAndQueues(t *testing.T) {
	t.Parallel()

	d, queue, remote, monitor := newDispatcher(t, true)
	remote.fail = apperr.New(apperr.ErrNetwork, "connection refused")
	ctx := context.Background()

	_, err := d.Call(ctx, TaskSimplifyTE, json.RawMessage(`{"id":1}`))
	require.Error(t, err)
	assert.True(t, apperr.IsErrorType(err, apperr.ErrOffline))
	assert.False(t, monitor.Online())

	n, err := queue.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// rejectedByEndpoint mirrors the error shape the HTTP client produces for a
// non-2xx response: the endpoint answered, so the status lands in the context.
func rejectedByEndpoint(code int) error {
	return apperr.New(apperr.ErrNetwork, "AI endpoint returned an error").
		WithContext("status", code).
		WithContext("body", "bad request")
}

func TestDispatcher_DrainLeavesRejectedJobAndReplaysTheRest(t *testing.T) {
	t.Parallel()

	d, queue, remote, monitor := newDispatcher(t, false)
	ctx := context.Background()

	_, _ = d.Call(ctx, TaskBackCheck, json.RawMessage(`{"id":"rejected"}`))
	_, _ = d.Call(ctx, TaskSimplifyTE, json.RawMessage(`{"id":"good"}`))

	monitor.Set(true)
	remote.failFor = map[string]error{TaskBackCheck: rejectedByEndpoint(400)}

	replayed, err := d.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, replayed, "the job behind the rejected one must still replay")
	assert.True(t, monitor.Online(), "a rejection from the endpoint says nothing about connectivity")
	require.Equal(t, 2, remote.callCount())

	jobs, err := queue.All(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, TaskBackCheck, jobs[0].Task)

	replayed, err = d.Drain(ctx)
	require.NoError(t, err)
	assert.Zero(t, replayed)
	assert.Equal(t, 3, remote.callCount(), "the rejected job is attempted again next pass")
	assert.True(t, monitor.Online())
}

func TestDispatcher_EndpointRejectionSurfacesToCallerWhileOnline(t *testing.T) {
	t.Parallel()

	d, queue, remote, monitor := newDispatcher(t, true)
	remote.fail = rejectedByEndpoint(422)
	ctx := context.Background()

	_, err := d.Call(ctx, TaskSimplifyTE, json.RawMessage(`{"id":1}`))
	require.Error(t, err)
	assert.True(t, apperr.IsErrorType(err, apperr.ErrNetwork))
	assert.False(t, apperr.IsErrorType(err, apperr.ErrOffline))
	assert.True(t, monitor.Online())

	n, err := queue.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "a rejected request must not be queued for replay")
}

func TestDispatcher_DrainAnswersJobFromCacheWithoutNetwork(t *testing.T) {
	t.Parallel()

	d, queue, remote, monitor := newDispatcher(t, false)
	ctx := context.Background()
	payload := json.RawMessage(`{"id":7,"te":"ఉష్ణం"}`)

	_, err := d.Call(ctx, TaskGenerateGloss, payload)
	require.Error(t, err)

	monitor.Set(true)
	_, err = d.Call(ctx, TaskGenerateGloss, payload)
	require.NoError(t, err)
	require.Equal(t, 1, remote.callCount())

	replayed, err := d.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, replayed)
	assert.Equal(t, 1, remote.callCount(), "the queued duplicate is answered from the cache")

	n, err := queue.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDispatcher_UnknownTaskIsRejected(t *testing.T) {
	t.Parallel()

	d, queue, _, _ := newDispatcher(t, true)
	_, err := d.Call(context.Background(), "translate_klingon", json.RawMessage(`{}`))
	require.Error(t, err)
	assert.True(t, apperr.IsErrorType(err, apperr.ErrValidation))

	n, err := queue.Len(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
