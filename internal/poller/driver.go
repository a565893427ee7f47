package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/quickcast/quickcast/pkg/log"
)

// defaultSwapThreshold is how close to the buffer end playback must be for
// an immediate partial swap while playing.
const defaultSwapThreshold = 5.0

// recheckEvery is how often a deferred swap is re-evaluated while playback
// approaches the buffer end.
const recheckEvery = 500 * time.Millisecond

// Fetcher retrieves one status snapshot.
type Fetcher interface {
	FetchStatus(ctx context.Context) (Snapshot, error)
}

// Player is the audio surface the driver steers. SetSource must preserve
// nothing itself; the driver passes the position and play state to restore.
type Player interface {
	// Position returns the current playback time and the buffered duration,
	// both in seconds.
	Position() (current, buffered float64)
	Playing() bool
	SetSource(url string, position float64, play bool)
	ShowError(message string)
}

// Driver runs the polling loop for one job: poll, fold the response into
// the Tracker, swap audio sources at safe moments, stop on a terminal
// status. A deferred partial swap is re-checked as playback approaches the
// end of the current buffer, so a listen is never cut off mid-line.
type Driver struct {
	tracker *Tracker
	fetch   Fetcher
	player  Player

	swapThreshold  float64
	pendingPartial string
}

func NewDriver(fetch Fetcher, player Player, policy Policy) *Driver {
	return &Driver{
		tracker:       NewTracker(policy),
		fetch:         fetch,
		player:        player,
		swapThreshold: defaultSwapThreshold,
	}
}

// Run polls until the job reaches a terminal status or ctx is canceled.
func (d *Driver) Run(ctx context.Context) error {
	pollTimer := time.NewTimer(0)
	defer pollTimer.Stop()
	recheck := time.NewTicker(recheckEvery)
	defer recheck.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-recheck.C:
			d.trySwap()
		case <-pollTimer.C:
			snap, err := d.fetch.FetchStatus(ctx)
			if err != nil {
				// Transport hiccup: keep the current cadence and try again.
				log.Warn("Status poll failed: %v", err)
				pollTimer.Reset(d.tracker.Interval())
				continue
			}

			dir := d.tracker.Observe(snap)
			if dir.ShowError != "" {
				d.player.ShowError(dir.ShowError)
				return nil
			}
			if dir.FinalURL != "" {
				// Exactly one final swap, keeping position and play state.
				current, _ := d.player.Position()
				d.player.SetSource(dir.FinalURL, current, d.player.Playing())
				return nil
			}
			if dir.Stop {
				return nil
			}
			if dir.NewPartialURL != "" {
				d.pendingPartial = dir.NewPartialURL
			}
			d.trySwap()
			pollTimer.Reset(dir.NextPollIn)
		}
	}
}

func (d *Driver) trySwap() {
	if d.pendingPartial == "" {
		return
	}
	current, buffered := d.player.Position()
	playing := d.player.Playing()
	if !ShouldSwapNow(current, buffered, playing, true, d.swapThreshold) {
		return
	}
	d.player.SetSource(d.pendingPartial, current, playing)
	d.pendingPartial = ""
}

// HTTPFetcher polls the status endpoint of a running server.
type HTTPFetcher struct {
	statusURL string
	client    *http.Client
}

func NewHTTPFetcher(baseURL, jobID string) *HTTPFetcher {
	return &HTTPFetcher{
		statusURL: baseURL + "/api/status/" + jobID,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (f *HTTPFetcher) FetchStatus(ctx context.Context) (Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.statusURL, nil)
	if err != nil {
		return Snapshot{}, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return Snapshot{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// An unknown job can never make progress; surface it as terminal.
		return Snapshot{Status: "failed", ErrorMessage: "job not found"}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return Snapshot{}, fmt.Errorf("status poll: HTTP %d", resp.StatusCode)
	}

	var payload struct {
		Status            string `json:"status"`
		Progress          int    `json:"progress"`
		CompletedSegments int    `json:"completed_segments"`
		PartialAudioURL   string `json:"partial_audio_url"`
		AudioURL          string `json:"audio_url"`
		Error             *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Snapshot{}, fmt.Errorf("decode status: %w", err)
	}

	snap := Snapshot{
		Status:            payload.Status,
		Progress:          payload.Progress,
		CompletedSegments: payload.CompletedSegments,
		PartialAudioURL:   payload.PartialAudioURL,
		AudioURL:          payload.AudioURL,
	}
	if payload.Error != nil {
		snap.ErrorMessage = payload.Error.Message
	}
	return snap, nil
}
