package aitask

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/telreader/telugu-science-reader/internal/apperr"
	"github.com/telreader/telugu-science-reader/internal/store"
	"github.com/telreader/telugu-science-reader/pkg/log"
)

// Queue holds AI requests captured while offline until they can be
// replayed. Jobs are keyed by enqueue timestamp in milliseconds, so the
// replay order is the order of capture. Keys are strictly increasing: a
// burst of enqueues inside one millisecond borrows from the next, so no
// job ever overwrites another.
type Queue struct {
	store *store.Store
	now   func() time.Time

	mu     sync.Mutex
	lastTS int64
}

func NewQueue(s *store.Store) *Queue {
	return &Queue{store: s, now: time.Now}
}

func (q *Queue) nextTS() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	ts := q.now().UnixMilli()
	if ts <= q.lastTS {
		ts = q.lastTS + 1
	}
	q.lastTS = ts
	return ts
}

// Enqueue records the request without touching the network.
func (q *Queue) Enqueue(ctx context.Context, task string, payload json.RawMessage) (Job, error) {
	job := Job{TS: q.nextTS(), Task: task, Payload: payload}
	data, err := json.Marshal(job)
	if err != nil {
		return Job{}, apperr.Wrap(err, apperr.ErrParse, "encode queued job").WithContext("task", task)
	}
	rec := store.Record{Key: strconv.FormatInt(job.TS, 10), Payload: data}
	if err := q.store.Write(ctx, store.CollectionAIQueue, rec); err != nil {
		return Job{}, err
	}
	log.Info("Queued %s request for later replay (ts=%d)", task, job.TS)
	return job, nil
}

// All returns the queued jobs in enqueue order.
func (q *Queue) All(ctx context.Context) ([]Job, error) {
	recs, err := q.store.ReadAll(ctx, store.CollectionAIQueue)
	if err != nil {
		return nil, err
	}
	jobs := make([]Job, 0, len(recs))
	for _, rec := range recs {
		var job Job
		if err := json.Unmarshal(rec.Payload, &job); err != nil {
			return nil, apperr.Wrap(err, apperr.ErrParse, "decode queued job").WithContext("key", rec.Key)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Len returns the number of queued jobs.
func (q *Queue) Len(ctx context.Context) (int, error) {
	jobs, err := q.All(ctx)
	if err != nil {
		return 0, err
	}
	return len(jobs), nil
}

// Delete removes a replayed job. Deleting an absent job is not an error.
func (q *Queue) Delete(ctx context.Context, ts int64) error {
	return q.store.Delete(ctx, store.CollectionAIQueue, strconv.FormatInt(ts, 10))
}
