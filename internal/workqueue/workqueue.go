package workqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"adbridge/internal/metrics"
	"adbridge/pkg/logging"
)

// DefaultConcurrency bounds the number of work items running at once.
const DefaultConcurrency = 64

// ErrClosed is returned when work is submitted after Close.
var ErrClosed = errors.New("scheduler is closed")

// Task is a unit of work. The context is cancelled when the scheduler is
// closed and its drain deadline passes.
type Task func(ctx context.Context) error

// Scheduler runs tasks on their own goroutines with bounded concurrency.
type Scheduler struct {
	sem     *semaphore.Weighted
	metrics *metrics.Metrics

	// ctx is the parent of every task context.
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// New creates a scheduler. concurrency <= 0 uses DefaultConcurrency.
// m may be nil.
func New(concurrency int, m *metrics.Metrics) *Scheduler {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		sem:     semaphore.NewWeighted(int64(concurrency)),
		metrics: m,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Submit enqueues task and returns its id without waiting for it to run.
// Errors returned by the task are logged.
func (s *Scheduler) Submit(name string, task Task) (string, error) {
	id := uuid.NewString()

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", ErrClosed
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.run(s.ctx, id, name, task); err != nil {
			logging.Warn("Scheduler", "Task %s (%s) failed: %v", name, id, err)
		}
	}()
	return id, nil
}

// Do runs task on the scheduler and waits for it to finish. The task context
// is cancelled if either ctx or the scheduler is cancelled.
func (s *Scheduler) Do(ctx context.Context, name string, task func(ctx context.Context) error) error {
	id := uuid.NewString()

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrClosed
	}
	s.wg.Add(1)
	s.mu.RUnlock()

	taskCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)

	done := make(chan error, 1)
	go func() {
		defer s.wg.Done()
		defer stop()
		defer cancel()
		done <- s.run(taskCtx, id, name, task)
	}()
	return <-done
}

func (s *Scheduler) run(ctx context.Context, id, name string, task Task) (err error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("task %s not started: %w", name, err)
	}
	defer s.sem.Release(1)

	s.metrics.TaskStarted()
	defer s.metrics.TaskFinished()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", name, r)
		}
	}()

	start := time.Now()
	logging.Debug("Scheduler", "Task %s (%s) started", name, id)
	err = task(ctx)
	logging.Debug("Scheduler", "Task %s (%s) finished in %s", name, id, time.Since(start))
	return err
}

// Close stops accepting new work and waits for in-flight tasks. If ctx
// expires first, running tasks are cancelled and Close returns ctx.Err()
// once they have returned.
func (s *Scheduler) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		s.cancel()
		return nil
	case <-ctx.Done():
		logging.Warn("Scheduler", "Drain deadline reached, cancelling in-flight tasks")
		s.cancel()
		<-drained
		return ctx.Err()
	}
}
