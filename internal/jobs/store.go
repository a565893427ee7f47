package jobs

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is the authoritative map of job id to job record. It supports one
// writer per job (its pipeline) and many concurrent readers; every read
// returns a clone taken under the lock, so callers never observe a torn
// multi-field update.
//
// Lifetime is the process: nothing is persisted across restarts. Sweep
// applies retention so long-running processes do not accumulate terminal
// jobs without bound.
type Store struct {
	mu      sync.RWMutex
	jobs    map[string]*Job
	maxJobs int
}

func NewStore(maxJobs int) *Store {
	if maxJobs <= 0 {
		maxJobs = 1000
	}
	return &Store{
		jobs:    make(map[string]*Job),
		maxJobs: maxJobs,
	}
}

// Create inserts a fresh pending job for the given URL and returns its
// snapshot.
func (s *Store) Create(url string) *Job {
	now := time.Now()
	job := &Job{
		ID:        uuid.NewString(),
		URL:       url,
		Status:    StatusPending,
		Message:   "Job created",
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	return cloneJob(job)
}

// Get returns a snapshot of the job, if it exists.
func (s *Store) Get(id string) (*Job, bool) {
	s.mu.RLock()
	job, ok := s.jobs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return cloneJob(job), true
}

// List returns snapshots of all jobs, newest first.
func (s *Store) List() []*Job {
	s.mu.RLock()
	ret := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		ret = append(ret, cloneJob(job))
	}
	s.mu.RUnlock()

	sort.Slice(ret, func(i, j int) bool {
		return ret[i].CreatedAt.After(ret[j].CreatedAt)
	})
	return ret
}

// Update applies fn to the live record under the write lock and returns the
// resulting snapshot. fn sees and mutates the record as one atomic unit;
// replacing, never mutating, the Error and Metadata pointers keeps earlier
// snapshots immutable.
func (s *Store) Update(id string, fn func(*Job)) (*Job, bool) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return nil, false
	}
	fn(job)
	job.UpdatedAt = time.Now()
	snapshot := cloneJob(job)
	s.mu.Unlock()
	return snapshot, true
}

// PendingIDs returns ids of pending jobs in arrival order.
func (s *Store) PendingIDs() []string {
	type pending struct {
		id        string
		createdAt time.Time
	}

	s.mu.RLock()
	found := make([]pending, 0)
	for id, job := range s.jobs {
		if job.Status == StatusPending {
			found = append(found, pending{id: id, createdAt: job.CreatedAt})
		}
	}
	s.mu.RUnlock()

	sort.Slice(found, func(i, j int) bool {
		return found[i].createdAt.Before(found[j].createdAt)
	})
	ids := make([]string, len(found))
	for i, p := range found {
		ids[i] = p.id
	}
	return ids
}

// Sweep prunes the oldest terminal jobs once the map exceeds the retention
// limit, returning the pruned ids. Pending and processing jobs are never
// touched.
func (s *Store) Sweep() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.jobs) <= s.maxJobs {
		return nil
	}

	type candidate struct {
		id        string
		updatedAt time.Time
	}
	terminal := make([]candidate, 0, len(s.jobs))
	for id, job := range s.jobs {
		if !job.Terminal() {
			continue
		}
		terminal = append(terminal, candidate{id: id, updatedAt: job.UpdatedAt})
	}
	if len(terminal) == 0 {
		return nil
	}

	sort.Slice(terminal, func(i, j int) bool {
		return terminal[i].updatedAt.Before(terminal[j].updatedAt)
	})

	toRemove := len(s.jobs) - s.maxJobs
	if toRemove > len(terminal) {
		toRemove = len(terminal)
	}

	pruned := make([]string, 0, toRemove)
	for i := 0; i < toRemove; i++ {
		delete(s.jobs, terminal[i].id)
		pruned = append(pruned, terminal[i].id)
	}
	return pruned
}

// Len reports how many jobs the store currently tracks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

func cloneJob(job *Job) *Job {
	if job == nil {
		return nil
	}
	tmp := *job
	return &tmp
}
