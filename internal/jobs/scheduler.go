package jobs

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"

	"github.com/quickcast/quickcast/pkg/log"
)

// ErrInvalidURL rejects submissions before any job record exists. No network
// call is attempted during validation.
var ErrInvalidURL = errors.New("invalid url: an absolute http(s) url is required")

// Runner executes one job end to end. It owns every status transition after
// pending, including the terminal one.
type Runner func(ctx context.Context, job *Job)

// Scheduler accepts submissions, creates the pending record, and runs at
// most workerCount pipelines at once. Submissions beyond that capacity wait
// in arrival order.
type Scheduler struct {
	workerCount int
	store       *Store

	mu         sync.Mutex
	started    bool
	pendingIDs chan string
	stopCh     chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

func NewScheduler(workerCount int, store *Store) *Scheduler {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &Scheduler{
		workerCount: workerCount,
		store:       store,
		pendingIDs:  make(chan string, 1024),
		stopCh:      make(chan struct{}),
	}
}

// Submit validates rawURL, inserts a pending job, and returns its snapshot
// without waiting for the pipeline to start.
func (s *Scheduler) Submit(rawURL string) (*Job, error) {
	rawURL = strings.TrimSpace(rawURL)
	if !validURL(rawURL) {
		return nil, ErrInvalidURL
	}

	job := s.store.Create(rawURL)

	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if started {
		s.enqueuePendingID(job.ID)
	}
	return job, nil
}

// Start launches the worker pool. Jobs already pending in the store (e.g.
// submitted before Start) are queued first, in arrival order.
func (s *Scheduler) Start(run Runner) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	for _, id := range s.store.PendingIDs() {
		s.enqueuePendingID(id)
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(run)
	}
}

// Stop halts the workers after their current jobs finish.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.wg.Wait()
	})
}

func (s *Scheduler) worker(run Runner) {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopCh:
			return
		case id := <-s.pendingIDs:
			job, ok := s.store.Get(id)
			if !ok || job.Status != StatusPending {
				continue
			}
			log.Info("Starting job %s for %s", job.ID, job.URL)
			run(context.Background(), job)
		}
	}
}

func (s *Scheduler) enqueuePendingID(id string) {
	select {
	case s.pendingIDs <- id:
	default:
		go func() { s.pendingIDs <- id }()
	}
}

func validURL(rawURL string) bool {
	if rawURL == "" {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
