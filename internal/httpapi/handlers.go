package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/quickcast/quickcast/internal/jobs"
)

type generateRequest struct {
	URL string `json:"url"`
}

type generateResponse struct {
	JobID   string      `json:"job_id"`
	Status  jobs.Status `json:"status"`
	Message string      `json:"message"`
}

// statusResponse is the polling snapshot. Clients prefer error/audio_url
// over any cached partial_audio_url once the job is terminal.
type statusResponse struct {
	JobID             string         `json:"job_id"`
	Status            jobs.Status    `json:"status"`
	Progress          int            `json:"progress"`
	Message           string         `json:"message"`
	CompletedSegments int            `json:"completed_segments"`
	TotalSegments     int            `json:"total_segments"`
	AudioURL          string         `json:"audio_url,omitempty"`
	PartialAudioURL   string         `json:"partial_audio_url,omitempty"`
	Metadata          *jobs.Metadata `json:"metadata,omitempty"`
	Error             *jobs.JobError `json:"error,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
}

type jobSummary struct {
	JobID     string      `json:"job_id"`
	URL       string      `json:"url"`
	Status    jobs.Status `json:"status"`
	Progress  int         `json:"progress"`
	CreatedAt time.Time   `json:"created_at"`
}

type shareResponse struct {
	Exists    bool    `json:"exists"`
	AudioURL  string  `json:"audio_url,omitempty"`
	Title     string  `json:"title,omitempty"`
	Author    string  `json:"author,omitempty"`
	SourceURL string  `json:"source_url,omitempty"`
	Duration  float64 `json:"duration,omitempty"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	job, err := s.scheduler.Submit(req.URL)
	if err != nil {
		if errors.Is(err, jobs.ErrInvalidURL) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, generateResponse{
		JobID:   job.ID,
		Status:  job.Status,
		Message: job.Message,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	jobID := strings.TrimPrefix(r.URL.Path, "/api/status/")
	if jobID == "" || strings.Contains(jobID, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	job, ok := s.store.Get(jobID)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, buildStatusResponse(job))
}

func buildStatusResponse(job *jobs.Job) statusResponse {
	resp := statusResponse{
		JobID:             job.ID,
		Status:            job.Status,
		Progress:          job.Progress,
		Message:           job.Message,
		CompletedSegments: job.CompletedSegments,
		TotalSegments:     job.TotalSegments,
		Metadata:          job.Metadata,
		Error:             job.Error,
		CreatedAt:         job.CreatedAt,
	}
	switch {
	case job.Status == jobs.StatusCompleted:
		resp.AudioURL = "/api/audio/" + job.ID
	case job.CompletedSegments >= 1 && job.PartialAudio != nil:
		// Progressive playback: the latest partial artifact, also kept
		// reachable after a failure.
		resp.PartialAudioURL = "/api/audio/" + job.ID + "?partial=true"
	}
	return resp
}

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	jobID := strings.TrimPrefix(r.URL.Path, "/api/audio/")
	if jobID == "" || strings.Contains(jobID, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	job, ok := s.store.Get(jobID)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	if partial := r.URL.Query().Get("partial"); strings.EqualFold(partial, "true") {
		// Partial audio stays available while processing and after a
		// failure; a completed job supersedes it with the final cut.
		if job.Status == jobs.StatusCompleted || job.PartialAudio == nil {
			writeError(w, http.StatusConflict, "partial audio not yet available")
			return
		}
		serveWAV(w, fmt.Sprintf("podcast_%s_partial.wav", job.ID), job.PartialAudio)
		return
	}

	if job.Status != jobs.StatusCompleted || job.FinalAudio == nil {
		writeError(w, http.StatusConflict, "podcast not ready yet")
		return
	}
	serveWAV(w, fmt.Sprintf("podcast_%s.wav", job.ID), job.FinalAudio)
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.shares == nil {
		writeError(w, http.StatusServiceUnavailable, "sharing not enabled")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/share/")
	shareID, wantAudio := strings.CutSuffix(rest, "/audio")
	shareID = strings.TrimSuffix(shareID, "/")
	if shareID == "" || strings.Contains(shareID, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	if wantAudio {
		audio, err := s.shares.GetAudio(r.Context(), shareID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if audio == nil {
			writeError(w, http.StatusNotFound, "shared podcast not found or expired")
			return
		}
		serveWAV(w, fmt.Sprintf("podcast_%s.wav", shareID), audio)
		return
	}

	rec, err := s.shares.Get(r.Context(), shareID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rec == nil {
		// Unknown or expired is a regular answer, not an error.
		writeJSON(w, http.StatusOK, shareResponse{Exists: false})
		return
	}
	writeJSON(w, http.StatusOK, shareResponse{
		Exists:    true,
		AudioURL:  "/api/share/" + rec.ShareID + "/audio",
		Title:     rec.Title,
		Author:    rec.Author,
		SourceURL: rec.SourceURL,
		Duration:  rec.Duration,
	})
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	jobList := s.store.List()
	summaries := make([]jobSummary, 0, len(jobList))
	for _, job := range jobList {
		summaries = append(summaries, jobSummary{
			JobID:     job.ID,
			URL:       job.URL,
			Status:    job.Status,
			Progress:  job.Progress,
			CreatedAt: job.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": summaries})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func serveWAV(w http.ResponseWriter, filename string, audio []byte) {
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition", `inline; filename="`+filename+`"`)
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(audio)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(audio)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}
