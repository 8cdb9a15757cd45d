package aitask

import (
	"context"
	"encoding/json"
	"errors"

	"golang.org/x/sync/singleflight"

	"github.com/telreader/telugu-science-reader/internal/apperr"
	"github.com/telreader/telugu-science-reader/internal/connectivity"
	"github.com/telreader/telugu-science-reader/pkg/log"
)

// Remote executes an AI task against the backing endpoint.
type Remote interface {
	Do(ctx context.Context, task string, payload json.RawMessage) (json.RawMessage, error)
}

// Dispatcher is the single entry point for AI calls. It answers from the
// result cache when it can, queues requests while offline, and replays the
// queue when connectivity returns.
type Dispatcher struct {
	cache   *Cache
	queue   *Queue
	remote  Remote
	monitor *connectivity.Monitor
	group   singleflight.Group
}

func NewDispatcher(cache *Cache, queue *Queue, remote Remote, monitor *connectivity.Monitor) *Dispatcher {
	return &Dispatcher{cache: cache, queue: queue, remote: remote, monitor: monitor}
}

// Call resolves an AI request. Cached results are returned without a
// network call even while offline. An uncached request made offline is
// queued and reported with an offline error.
func (d *Dispatcher) Call(ctx context.Context, task string, payload json.RawMessage) (json.RawMessage, error) {
	if !KnownTask(task) {
		return nil, apperr.New(apperr.ErrValidation, "unknown AI task").WithContext("task", task)
	}

	if result, ok, err := d.cache.Lookup(ctx, task, payload); err != nil {
		return nil, err
	} else if ok {
		log.Debug("Cache hit for %s", task)
		return result, nil
	}

	if !d.monitor.Online() {
		return nil, d.deferToQueue(ctx, task, payload, nil)
	}

	result, err := d.remote.Do(ctx, task, payload)
	if err != nil {
		if transportFailure(err) {
			d.monitor.Set(false)
			return nil, d.deferToQueue(ctx, task, payload, err)
		}
		// The endpoint was reached; an HTTP error response goes back to
		// the caller and says nothing about connectivity.
		return nil, err
	}

	if err := d.cache.Store(ctx, task, payload, result); err != nil {
		return nil, err
	}
	return result, nil
}

// transportFailure reports whether err is a network error with no HTTP
// response behind it. Errors carrying a status code mean the endpoint
// answered.
func transportFailure(err error) bool {
	if !apperr.IsErrorType(err, apperr.ErrNetwork) {
		return false
	}
	var re *apperr.ReaderError
	if errors.As(err, &re) {
		if _, ok := re.Context["status"]; ok {
			return false
		}
	}
	return true
}

func (d *Dispatcher) deferToQueue(ctx context.Context, task string, payload json.RawMessage, cause error) error {
	if _, err := d.queue.Enqueue(ctx, task, payload); err != nil {
		return err
	}
	offline := apperr.New(apperr.ErrOffline, "Currently offline. Your request was queued and will be sent when connection is restored.").
		WithContext("task", task)
	if cause != nil {
		offline.Cause = cause
	}
	return offline
}

// Drain replays all queued jobs and returns how many succeeded. Concurrent
// drains collapse into one pass. A transport failure stops the pass and
// leaves the remaining jobs queued; any other per-job failure is logged and
// the job stays queued while the pass moves on.
func (d *Dispatcher) Drain(ctx context.Context) (int, error) {
	replayed, err, _ := d.group.Do("drain", func() (any, error) {
		return d.drain(ctx)
	})
	if err != nil {
		return 0, err
	}
	return replayed.(int), nil
}

func (d *Dispatcher) drain(ctx context.Context) (int, error) {
	jobs, err := d.queue.All(ctx)
	if err != nil {
		return 0, err
	}
	if len(jobs) == 0 {
		return 0, nil
	}
	log.Info("Replaying %d queued AI request(s)", len(jobs))

	replayed := 0
	for _, job := range jobs {
		// Each replay walks the live path: cache check, remote call,
		// cache write. A job answered from the cache costs no network
		// call.
		result, ok, err := d.cache.Lookup(ctx, job.Task, job.Payload)
		if err != nil {
			return replayed, err
		}
		if !ok {
			result, err = d.remote.Do(ctx, job.Task, job.Payload)
			if err != nil {
				if transportFailure(err) {
					d.monitor.Set(false)
					log.Warn("Replay interrupted, %d job(s) still queued: %v", len(jobs)-replayed, err)
					return replayed, nil
				}
				log.Error("Replay of %s job failed, leaving it queued (ts=%d): %v", job.Task, job.TS, err)
				continue
			}
			if err := d.cache.Store(ctx, job.Task, job.Payload, result); err != nil {
				return replayed, err
			}
		}
		if err := d.queue.Delete(ctx, job.TS); err != nil {
			return replayed, err
		}
		replayed++
	}
	return replayed, nil
}
