package poller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func processing(progress, segments int, partialURL string) Snapshot {
	return Snapshot{
		Status:            "processing",
		Progress:          progress,
		CompletedSegments: segments,
		PartialAudioURL:   partialURL,
	}
}

func TestTracker_RelaxesAfterConsecutiveIdlePolls(t *testing.T) {
	tr := NewTracker(DefaultPolicy())

	dir := tr.Observe(processing(30, 0, ""))
	assert.Equal(t, time.Second, dir.NextPollIn)

	// Two more polls with no forward movement stay on baseline.
	dir = tr.Observe(processing(30, 0, ""))
	assert.Equal(t, time.Second, dir.NextPollIn)
	dir = tr.Observe(processing(30, 0, ""))
	assert.Equal(t, time.Second, dir.NextPollIn)

	// The third idle poll crosses the threshold.
	dir = tr.Observe(processing(30, 0, ""))
	assert.Equal(t, 5*time.Second, dir.NextPollIn)

	// Any progress snaps back to baseline.
	dir = tr.Observe(processing(42, 1, ""))
	assert.Equal(t, time.Second, dir.NextPollIn)
}

func TestTracker_SegmentProgressAloneCountsAsProgress(t *testing.T) {
	tr := NewTracker(Policy{Baseline: time.Second, Relaxed: 5 * time.Second, NoProgressThreshold: 2})

	tr.Observe(processing(30, 1, ""))
	tr.Observe(processing(30, 1, ""))
	dir := tr.Observe(processing(30, 1, ""))
	require.Equal(t, 5*time.Second, dir.NextPollIn)

	dir = tr.Observe(processing(30, 2, ""))
	assert.Equal(t, time.Second, dir.NextPollIn)
}

func TestTracker_ReportsOnlyNewerPartials(t *testing.T) {
	tr := NewTracker(DefaultPolicy())

	dir := tr.Observe(processing(40, 2, "/api/audio/j1?partial=true"))
	assert.Equal(t, "/api/audio/j1?partial=true", dir.NewPartialURL)

	// Same segment count again: nothing new to adopt.
	dir = tr.Observe(processing(41, 2, "/api/audio/j1?partial=true"))
	assert.Empty(t, dir.NewPartialURL)

	dir = tr.Observe(processing(55, 3, "/api/audio/j1?partial=true"))
	assert.Equal(t, "/api/audio/j1?partial=true", dir.NewPartialURL)
}

func TestTracker_CompletedStopsWithFinalURL(t *testing.T) {
	tr := NewTracker(DefaultPolicy())

	tr.Observe(processing(90, 5, ""))
	dir := tr.Observe(Snapshot{Status: "completed", Progress: 100, AudioURL: "/api/audio/j1"})

	assert.True(t, dir.Stop)
	assert.Equal(t, "/api/audio/j1", dir.FinalURL)
	assert.Empty(t, dir.ShowError)
	assert.Equal(t, StateStopped, tr.State())
}

func TestTracker_FailedStopsWithError(t *testing.T) {
	tr := NewTracker(DefaultPolicy())

	dir := tr.Observe(Snapshot{Status: "failed", ErrorMessage: "failed to scrape article"})
	assert.True(t, dir.Stop)
	assert.Equal(t, "failed to scrape article", dir.ShowError)

	dir = tr.Observe(Snapshot{Status: "failed"})
	assert.True(t, dir.Stop)
	assert.Empty(t, dir.ShowError, "a stopped tracker returns a bare stop")
}

func TestTracker_FailedWithoutMessageGetsDefault(t *testing.T) {
	tr := NewTracker(DefaultPolicy())
	dir := tr.Observe(Snapshot{Status: "failed"})
	assert.Equal(t, "podcast generation failed", dir.ShowError)
}

func TestShouldSwapNow(t *testing.T) {
	tests := []struct {
		name        string
		currentTime float64
		buffered    float64
		playing     bool
		hasNewer    bool
		want        bool
	}{
		{"nothing newer", 10, 30, true, false, false},
		{"not playing", 10, 30, false, true, true},
		{"playback not started", 0, 30, true, true, true},
		{"mid listen far from end", 10, 30, true, true, false},
		{"approaching buffer end", 26, 30, true, true, true},
		{"exactly at threshold", 25, 30, true, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ShouldSwapNow(tt.currentTime, tt.buffered, tt.playing, tt.hasNewer, 5.0)
			assert.Equal(t, tt.want, got)
		})
	}
}
