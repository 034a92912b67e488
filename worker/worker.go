// Package worker runs units of work off the caller's goroutine with bounded
// concurrency: submit, await, report.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soamn/slicepdf/observability"
)

// ErrClosed is the result of jobs submitted after Close.
var ErrClosed = errors.New("worker pool closed")

// Task is one unit of work. Tasks run to completion once started.
type Task func(ctx context.Context) (any, error)

// Job tracks a submitted task.
type Job struct {
	ID        string
	Submitted time.Time

	done   chan struct{}
	result any
	err    error
}

// Done is closed when the task has finished.
func (j *Job) Done() <-chan struct{} { return j.done }

// Wait blocks until the task finishes or ctx ends. Giving up on the wait
// does not stop the task.
func (j *Job) Wait(ctx context.Context) (any, error) {
	select {
	case <-j.done:
		return j.result, j.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (j *Job) finish(result any, err error) {
	j.result, j.err = result, err
	close(j.done)
}

type Pool struct {
	sem    chan struct{}
	logger observability.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewPool returns a pool running at most concurrency tasks at once. A
// non-positive concurrency uses GOMAXPROCS.
func NewPool(concurrency int, logger observability.Logger) *Pool {
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}
	if logger == nil {
		logger = observability.NopLogger{}
	}
	return &Pool{sem: make(chan struct{}, concurrency), logger: logger}
}

// Submit schedules task and returns immediately.
func (p *Pool) Submit(task Task) *Job {
	job := &Job{ID: uuid.NewString(), Submitted: time.Now(), done: make(chan struct{})}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		job.finish(nil, ErrClosed)
		return job
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go p.run(job, task)
	return job
}

func (p *Pool) run(job *Job, task Task) {
	defer p.wg.Done()
	p.sem <- struct{}{}
	defer func() { <-p.sem }()

	log := p.logger.With(observability.String("job", job.ID))
	log.Debug("job started", observability.Duration("queued", time.Since(job.Submitted)))
	start := time.Now()

	var (
		result any
		err    error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("job %s panicked: %v", job.ID, r)
			}
		}()
		result, err = task(context.Background())
	}()

	if err != nil {
		log.Warn("job failed", observability.Error("error", err), observability.Duration("elapsed", time.Since(start)))
	} else {
		log.Debug("job finished", observability.Duration("elapsed", time.Since(start)))
	}
	job.finish(result, err)
}

// Close stops accepting jobs and waits for the running ones.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.wg.Wait()
}
