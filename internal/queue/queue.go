// Package queue dispatches processing tasks onto a bounded worker pool,
// decoupled from the HTTP request cycle.
package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/alitto/pond/v2"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"salesboard/internal/process"
)

// Dispatcher schedules uploads for background processing. Duplicate
// dispatches of the same upload serialize on a per-ID lock so two runs never
// interleave their writes; retryable failures are retried a bounded number of
// times with exponential backoff.
type Dispatcher struct {
	pool       pond.Pool
	proc       *process.Processor
	log        zerolog.Logger
	maxRetries uint64

	mu    sync.Mutex
	locks map[uuid.UUID]*uploadLock

	stopOnce sync.Once
}

// uploadLock is a refcounted mutex: the map entry lives only while a task
// holds it or waits on it, so the lock table stays bounded by in-flight work.
type uploadLock struct {
	mu   sync.Mutex
	refs int
}

// New builds a dispatcher with its own worker pool. maxRetries is the number
// of extra attempts after the first for retryable failures.
func New(proc *process.Processor, poolSize, queueSize, maxRetries int, log zerolog.Logger) *Dispatcher {
	if poolSize < 1 {
		poolSize = 1
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Dispatcher{
		pool:       pond.NewPool(poolSize, pond.WithQueueSize(queueSize)),
		proc:       proc,
		log:        log,
		maxRetries: uint64(maxRetries),
		locks:      make(map[uuid.UUID]*uploadLock),
	}
}

// Dispatch enqueues a processing task for the upload and returns a task
// reference immediately; callers poll the query endpoints for the outcome.
func (d *Dispatcher) Dispatch(uploadID uuid.UUID) string {
	taskID := uuid.NewString()
	d.pool.Submit(func() {
		d.run(taskID, uploadID)
	})
	d.log.Debug().Str("task_id", taskID).Stringer("upload_id", uploadID).Msg("processing task queued")
	return taskID
}

func (d *Dispatcher) run(taskID string, uploadID uuid.UUID) {
	lock := d.acquireLock(uploadID)
	lock.mu.Lock()
	defer d.releaseLock(uploadID, lock)

	var res process.Result
	operation := func() error {
		res = d.proc.Run(context.Background(), uploadID)
		if res.Status != process.StatusSuccess && res.Retryable {
			return errors.New(res.Message)
		}
		return nil
	}
	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), d.maxRetries)
	_ = backoff.Retry(operation, b)

	if res.Status != process.StatusSuccess {
		d.log.Error().Str("task_id", taskID).Stringer("upload_id", uploadID).
			Str("reason", res.Message).Msg("processing task failed")
		return
	}
	d.log.Info().Str("task_id", taskID).Stringer("upload_id", uploadID).Msg("processing task finished")
}

func (d *Dispatcher) acquireLock(id uuid.UUID) *uploadLock {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.locks[id]
	if !ok {
		l = &uploadLock{}
		d.locks[id] = l
	}
	l.refs++
	return l
}

func (d *Dispatcher) releaseLock(id uuid.UUID, l *uploadLock) {
	l.mu.Unlock()
	d.mu.Lock()
	defer d.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(d.locks, id)
	}
}

// StopAndWait drains queued tasks and stops the pool. Used on shutdown and
// by tests to make completion deterministic.
func (d *Dispatcher) StopAndWait() {
	d.stopOnce.Do(d.pool.StopAndWait)
}
