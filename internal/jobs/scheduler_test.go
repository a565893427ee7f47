package jobs

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completingRunner(s *Store) Runner {
	return func(_ context.Context, job *Job) {
		s.Update(job.ID, func(j *Job) { j.Status = StatusCompleted })
	}
}

func TestScheduler_Submit_RejectsInvalidURLs(t *testing.T) {
	s := NewStore(10)
	sched := NewScheduler(1, s)

	for _, raw := range []string{"", "not a url", "example.com/page", "ftp://example.com/x", "https://"} {
		_, err := sched.Submit(raw)
		require.ErrorIs(t, err, ErrInvalidURL, "url %q", raw)
	}
	// Nothing was created for rejected input.
	assert.Equal(t, 0, s.Len())
}

func TestScheduler_Submit_ReturnsPendingJobWithoutBlocking(t *testing.T) {
	s := NewStore(10)
	sched := NewScheduler(1, s)

	block := make(chan struct{})
	sched.Start(func(_ context.Context, job *Job) {
		<-block
		s.Update(job.ID, func(j *Job) { j.Status = StatusCompleted })
	})
	defer func() {
		close(block)
		sched.Stop()
	}()

	done := make(chan *Job, 1)
	go func() {
		job, err := sched.Submit("https://example.com/article")
		require.NoError(t, err)
		done <- job
	}()

	select {
	case job := <-done:
		assert.Equal(t, StatusPending, job.Status)
	case <-time.After(time.Second):
		t.Fatal("Submit blocked on a busy worker")
	}
}

func TestScheduler_RunsJobsSubmittedBeforeStart(t *testing.T) {
	s := NewStore(10)
	sched := NewScheduler(2, s)

	job, err := sched.Submit("https://example.com/early")
	require.NoError(t, err)

	sched.Start(completingRunner(s))
	defer sched.Stop()

	require.Eventually(t, func() bool {
		got, ok := s.Get(job.ID)
		return ok && got.Status == StatusCompleted
	}, time.Second, 10*time.Millisecond)
}

func TestScheduler_BoundsConcurrentPipelines(t *testing.T) {
	s := NewStore(100)
	sched := NewScheduler(2, s)

	var running, peak int32
	var mu sync.Mutex
	release := make(chan struct{})

	sched.Start(func(_ context.Context, job *Job) {
		now := atomic.AddInt32(&running, 1)
		mu.Lock()
		if now > peak {
			peak = now
		}
		mu.Unlock()
		<-release
		atomic.AddInt32(&running, -1)
		s.Update(job.ID, func(j *Job) { j.Status = StatusCompleted })
	})
	defer sched.Stop()

	var ids []string
	for i := 0; i < 6; i++ {
		job, err := sched.Submit("https://example.com/a")
		require.NoError(t, err)
		ids = append(ids, job.ID)
	}

	// Give the pool time to pick up as much as it can.
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&running) == 2
	}, time.Second, 5*time.Millisecond)
	close(release)

	require.Eventually(t, func() bool {
		for _, id := range ids {
			got, ok := s.Get(id)
			if !ok || got.Status != StatusCompleted {
				return false
			}
		}
		return true
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, peak, int32(2))
}
