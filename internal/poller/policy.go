package poller

import "time"

// State of the polling loop.
type State int

const (
	StateIdle State = iota
	StatePolling
	StateStopped
)

// Snapshot is the client-side view of one status response.
type Snapshot struct {
	Status            string
	Progress          int
	CompletedSegments int
	PartialAudioURL   string
	AudioURL          string
	ErrorMessage      string
}

// Directive is the single definite next action derived from a response:
// keep polling after NextPollIn, optionally adopt a newer artifact, or stop.
type Directive struct {
	NextPollIn    time.Duration
	Stop          bool
	NewPartialURL string
	FinalURL      string
	ShowError     string
}

// Policy tunes the adaptive interval: any forward progress resets to
// Baseline; NoProgressThreshold consecutive idle polls relax to Relaxed.
type Policy struct {
	Baseline            time.Duration
	Relaxed             time.Duration
	NoProgressThreshold int
}

func DefaultPolicy() Policy {
	return Policy{
		Baseline:            1 * time.Second,
		Relaxed:             5 * time.Second,
		NoProgressThreshold: 3,
	}
}

// Tracker is the explicit state machine behind the polling loop. It is pure
// with respect to time and the network: feed it responses via Observe and
// act on the returned Directive. Not safe for concurrent use.
type Tracker struct {
	policy Policy

	state           State
	interval        time.Duration
	noProgress      int
	lastProgress    int
	lastSegments    int
	partialSegments int
}

func NewTracker(policy Policy) *Tracker {
	if policy.Baseline <= 0 {
		policy.Baseline = DefaultPolicy().Baseline
	}
	if policy.Relaxed <= 0 {
		policy.Relaxed = DefaultPolicy().Relaxed
	}
	if policy.NoProgressThreshold <= 0 {
		policy.NoProgressThreshold = DefaultPolicy().NoProgressThreshold
	}
	return &Tracker{
		policy:   policy,
		state:    StateIdle,
		interval: policy.Baseline,
	}
}

func (t *Tracker) State() State {
	return t.state
}

func (t *Tracker) Interval() time.Duration {
	return t.interval
}

// Observe folds one status response into the state machine. Once a terminal
// status is seen the tracker stops for good: every later Observe returns a
// bare stop directive and no further requests should be made.
func (t *Tracker) Observe(s Snapshot) Directive {
	if t.state == StateStopped {
		return Directive{Stop: true}
	}
	t.state = StatePolling

	switch s.Status {
	case "failed":
		t.state = StateStopped
		msg := s.ErrorMessage
		if msg == "" {
			msg = "podcast generation failed"
		}
		return Directive{Stop: true, ShowError: msg}
	case "completed":
		t.state = StateStopped
		return Directive{Stop: true, FinalURL: s.AudioURL}
	}

	progressed := s.Progress > t.lastProgress || s.CompletedSegments > t.lastSegments
	if s.Progress > t.lastProgress {
		t.lastProgress = s.Progress
	}
	if s.CompletedSegments > t.lastSegments {
		t.lastSegments = s.CompletedSegments
	}

	if progressed {
		t.noProgress = 0
		t.interval = t.policy.Baseline
	} else {
		t.noProgress++
		if t.noProgress >= t.policy.NoProgressThreshold {
			t.interval = t.policy.Relaxed
		}
	}

	dir := Directive{NextPollIn: t.interval}
	if s.PartialAudioURL != "" && s.CompletedSegments > t.partialSegments {
		t.partialSegments = s.CompletedSegments
		dir.NewPartialURL = s.PartialAudioURL
	}
	return dir
}

// ShouldSwapNow decides whether replacing the audio source with a newer
// partial artifact would interrupt an in-progress listen. Swapping is safe
// when nothing is playing yet, playback is paused, or playback is within
// threshold seconds of the end of the current buffer.
func ShouldSwapNow(currentTime, buffered float64, playing, hasNewer bool, threshold float64) bool {
	if !hasNewer {
		return false
	}
	if !playing || currentTime <= 0 {
		return true
	}
	return buffered-currentTime <= threshold
}
