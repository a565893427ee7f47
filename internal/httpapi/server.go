package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/quickcast/quickcast/internal/jobs"
	"github.com/quickcast/quickcast/internal/share"
)

// shareStore is the read side of the sharing collaborator. Absence of a
// record is reported as (nil, nil), never as an error.
type shareStore interface {
	Get(ctx context.Context, shareID string) (*share.Record, error)
	GetAudio(ctx context.Context, shareID string) ([]byte, error)
}

// Server exposes the generation, status, delivery and share endpoints. It
// only ever reads job snapshots; all mutation happens in the pipeline.
type Server struct {
	store     *jobs.Store
	scheduler *jobs.Scheduler
	shares    shareStore

	mux    *http.ServeMux
	server *http.Server
}

type Option func(*Server)

// WithShareStore enables the share-resolution endpoints.
func WithShareStore(store shareStore) Option {
	return func(s *Server) {
		s.shares = store
	}
}

func NewServer(store *jobs.Store, scheduler *jobs.Scheduler, opts ...Option) *Server {
	s := &Server{
		store:     store,
		scheduler: scheduler,
		mux:       http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/generate", s.handleGenerate)
	s.mux.HandleFunc("/api/status/", s.handleStatus)
	s.mux.HandleFunc("/api/audio/", s.handleAudio)
	s.mux.HandleFunc("/api/share/", s.handleShare)
	s.mux.HandleFunc("/api/jobs", s.handleListJobs)
	s.mux.HandleFunc("/api/jobs/stream", s.handleJobStream)
	s.mux.HandleFunc("/api/health", s.handleHealth)
}
