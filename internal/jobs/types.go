package jobs

import "time"

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further status transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// JobError is the structured failure detail set exactly once on transition
// to failed.
type JobError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Metadata is the structured result of a completed job, set atomically with
// the final audio.
type Metadata struct {
	Title            string  `json:"title"`
	Author           string  `json:"author,omitempty"`
	SourceURL        string  `json:"source_url"`
	Language         string  `json:"language,omitempty"`
	Duration         float64 `json:"duration"`
	DialogueSegments int     `json:"dialogue_segments"`
	ShareID          string  `json:"share_id,omitempty"`
	ShareURL         string  `json:"share_url,omitempty"`
}

// Job is one podcast-generation request and its mutable execution state.
// The pipeline is the sole writer after creation; everything else reads
// snapshots taken by the Store.
type Job struct {
	ID                string    `json:"id"`
	URL               string    `json:"url"`
	Status            Status    `json:"status"`
	Progress          int       `json:"progress"`
	Message           string    `json:"message"`
	CompletedSegments int       `json:"completed_segments"`
	TotalSegments     int       `json:"total_segments"`
	Error             *JobError `json:"error,omitempty"`
	Metadata          *Metadata `json:"metadata,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`

	// Audio artifacts are served as raw bytes, never inlined in JSON.
	// PartialAudio is replaced wholesale with each newer artifact and is
	// kept after a failure so already-synthesized lines stay playable.
	PartialAudio []byte `json:"-"`
	FinalAudio   []byte `json:"-"`
}

// Terminal reports whether the job reached completed or failed.
func (j *Job) Terminal() bool {
	return j.Status.Terminal()
}
