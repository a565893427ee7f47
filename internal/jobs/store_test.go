package jobs

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Create_StartsPending(t *testing.T) {
	s := NewStore(10)

	job := s.Create("https://example.com/a")
	require.NotEmpty(t, job.ID)
	assert.Equal(t, StatusPending, job.Status)
	assert.Equal(t, "https://example.com/a", job.URL)
	assert.False(t, job.CreatedAt.IsZero())

	got, ok := s.Get(job.ID)
	require.True(t, ok)
	assert.Equal(t, job.ID, got.ID)
}

func TestStore_Get_ReturnsSnapshotNotLiveRecord(t *testing.T) {
	s := NewStore(10)
	job := s.Create("https://example.com/a")

	snap, ok := s.Get(job.ID)
	require.True(t, ok)

	s.Update(job.ID, func(j *Job) {
		j.Status = StatusProcessing
		j.Progress = 50
	})

	// The earlier snapshot is immutable.
	assert.Equal(t, StatusPending, snap.Status)
	assert.Equal(t, 0, snap.Progress)
}

func TestStore_Update_IsAtomicAcrossFields(t *testing.T) {
	s := NewStore(10)
	job := s.Create("https://example.com/a")
	s.Update(job.ID, func(j *Job) { j.Status = StatusProcessing })

	var wg sync.WaitGroup
	stop := make(chan struct{})

	// One writer flips status+final together; readers must never observe
	// completed without final audio.
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.Update(job.ID, func(j *Job) {
			j.Status = StatusCompleted
			j.Progress = 100
			j.FinalAudio = []byte("RIFFxxxx")
			j.Metadata = &Metadata{Title: "t"}
		})
		close(stop)
	}()

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				got, ok := s.Get(job.ID)
				if !ok {
					continue
				}
				if got.Status == StatusCompleted {
					assert.NotNil(t, got.FinalAudio)
					assert.NotNil(t, got.Metadata)
				}
			}
		}()
	}
	wg.Wait()
}

func TestStore_PendingIDs_ArrivalOrder(t *testing.T) {
	s := NewStore(10)

	var want []string
	for i := 0; i < 5; i++ {
		job := s.Create(fmt.Sprintf("https://example.com/%d", i))
		want = append(want, job.ID)
		time.Sleep(time.Millisecond)
	}
	s.Update(want[2], func(j *Job) { j.Status = StatusProcessing })

	got := s.PendingIDs()
	assert.Equal(t, []string{want[0], want[1], want[3], want[4]}, got)
}

func TestStore_Sweep_PrunesOldestTerminalOnly(t *testing.T) {
	s := NewStore(2)

	first := s.Create("https://example.com/1")
	s.Update(first.ID, func(j *Job) { j.Status = StatusFailed })
	time.Sleep(time.Millisecond)

	running := s.Create("https://example.com/2")
	s.Update(running.ID, func(j *Job) { j.Status = StatusProcessing })
	time.Sleep(time.Millisecond)

	second := s.Create("https://example.com/3")
	s.Update(second.ID, func(j *Job) { j.Status = StatusCompleted })

	pruned := s.Sweep()
	assert.Equal(t, []string{first.ID}, pruned)

	_, ok := s.Get(first.ID)
	assert.False(t, ok)
	_, ok = s.Get(running.ID)
	assert.True(t, ok)
	_, ok = s.Get(second.ID)
	assert.True(t, ok)
}

func TestStore_Sweep_NoopUnderLimit(t *testing.T) {
	s := NewStore(10)
	job := s.Create("https://example.com/1")
	s.Update(job.ID, func(j *Job) { j.Status = StatusCompleted })

	assert.Nil(t, s.Sweep())
	assert.Equal(t, 1, s.Len())
}
