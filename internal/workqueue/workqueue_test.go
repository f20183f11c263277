package workqueue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adbridge/internal/metrics"
)

func TestScheduler_SubmitRunsTask(t *testing.T) {
	s := New(4, nil)
	defer s.Close(context.Background())

	done := make(chan struct{})
	id, err := s.Submit("test", func(context.Context) error {
		close(done)
		return nil
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run")
	}
}

func TestScheduler_SubmitReturnsUniqueIDs(t *testing.T) {
	s := New(4, nil)
	defer s.Close(context.Background())

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		id, err := s.Submit("noop", func(context.Context) error { return nil })
		require.NoError(t, err)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestScheduler_DoReturnsTaskError(t *testing.T) {
	s := New(4, nil)
	defer s.Close(context.Background())

	want := errors.New("boom")
	err := s.Do(context.Background(), "fail", func(context.Context) error { return want })
	assert.ErrorIs(t, err, want)

	err = s.Do(context.Background(), "ok", func(context.Context) error { return nil })
	assert.NoError(t, err)
}

func TestScheduler_DoRecoversPanic(t *testing.T) {
	s := New(1, nil)
	defer s.Close(context.Background())

	err := s.Do(context.Background(), "panics", func(context.Context) error { panic("bad") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")

	// The semaphore slot must have been released.
	assert.NoError(t, s.Do(context.Background(), "after", func(context.Context) error { return nil }))
}

func TestScheduler_BoundsConcurrency(t *testing.T) {
	const limit = 3
	s := New(limit, nil)

	var running, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		_, err := s.Submit("work", func(context.Context) error {
			defer wg.Done()
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			running.Add(-1)
			return nil
		})
		require.NoError(t, err)
	}
	wg.Wait()
	require.NoError(t, s.Close(context.Background()))

	assert.LessOrEqual(t, peak.Load(), int32(limit))
	assert.Positive(t, peak.Load())
}

func TestScheduler_SlowTaskDoesNotBlockOthers(t *testing.T) {
	s := New(4, nil)
	defer s.Close(context.Background())

	release := make(chan struct{})
	_, err := s.Submit("slow", func(ctx context.Context) error {
		<-release
		return nil
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- s.Do(context.Background(), "fast", func(context.Context) error { return nil })
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("fast task was blocked by slow task")
	}
	close(release)
}

func TestScheduler_CloseRejectsNewWork(t *testing.T) {
	s := New(2, nil)
	require.NoError(t, s.Close(context.Background()))

	_, err := s.Submit("late", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrClosed)

	err = s.Do(context.Background(), "late", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrClosed)
}

func TestScheduler_CloseDrainsInFlight(t *testing.T) {
	s := New(2, nil)

	var finished atomic.Bool
	started := make(chan struct{})
	_, err := s.Submit("drain", func(context.Context) error {
		close(started)
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
		return nil
	})
	require.NoError(t, err)
	<-started

	require.NoError(t, s.Close(context.Background()))
	assert.True(t, finished.Load())
}

func TestScheduler_CloseDeadlineCancelsTasks(t *testing.T) {
	s := New(2, nil)

	started := make(chan struct{})
	_, err := s.Submit("stuck", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, err)
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = s.Close(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestScheduler_DoHonoursCallerContext(t *testing.T) {
	s := New(2, nil)
	defer s.Close(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Do(ctx, "cancelled", func(ctx context.Context) error { return ctx.Err() })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScheduler_TracksInFlightGauge(t *testing.T) {
	m := metrics.New()
	s := New(2, m)
	defer s.Close(context.Background())

	release := make(chan struct{})
	started := make(chan struct{})
	_, err := s.Submit("gauge", func(context.Context) error {
		close(started)
		<-release
		return nil
	})
	require.NoError(t, err)
	<-started

	assert.Equal(t, float64(1), inFlight(t, m))
	close(release)
	require.NoError(t, s.Close(context.Background()))
	assert.Equal(t, float64(0), inFlight(t, m))
}

func inFlight(t *testing.T, m *metrics.Metrics) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == "adbridge_tasks_in_flight" {
			return mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatal("adbridge_tasks_in_flight not registered")
	return 0
}
