package pipeline

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/quickcast/quickcast/internal/jobs"
	"github.com/quickcast/quickcast/internal/scrape"
	"github.com/quickcast/quickcast/internal/script"
	"github.com/quickcast/quickcast/internal/share"
	"github.com/quickcast/quickcast/internal/tts"
	"github.com/quickcast/quickcast/pkg/log"
)

// Progress weights per stage, matching the share of wall-clock time each
// stage takes: synthesis dominates and spans 30..90.
const (
	progressScraping   = 10
	progressScripting  = 25
	progressSynthesis  = 30
	progressSynthSpan  = 60
	progressFinalizing = 90
	progressPublishing = 95
	progressCompleted  = 100
)

// Scraper extracts readable article content from a URL.
type Scraper interface {
	Scrape(ctx context.Context, rawURL string) (*scrape.Article, error)
}

// ScriptGenerator turns article text into an ordered dialogue.
type ScriptGenerator interface {
	Generate(ctx context.Context, title, content string, targetMinutes float64) ([]script.Line, error)
}

// Synthesizer converts one dialogue line to audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, voice, text string) ([]byte, error)
}

// Assembler builds a playable artifact from ordered per-line buffers.
type Assembler interface {
	Combine(segments [][]byte) ([]byte, error)
	Duration(wav []byte) float64
	Normalize(wav []byte) []byte
}

// Publisher stores a finished podcast under a short public share id.
type Publisher interface {
	Put(ctx context.Context, audio []byte, meta share.Meta) (*share.Record, error)
}

// Config tunes retry, fan-out and pacing behavior.
type Config struct {
	// TargetMinutes is the requested podcast length.
	TargetMinutes float64
	// MaxAttempts is the per-line synthesis retry budget.
	MaxAttempts int
	// Concurrency bounds how many lines are synthesized in flight.
	Concurrency int
	// RateLimit paces synthesis calls (requests per second). Zero disables
	// pacing.
	RateLimit float64
	// Sleep is the backoff wait; tests replace it. Nil means real sleeping.
	Sleep Sleeper
}

// Orchestrator drives one job through scrape → script → synthesize →
// assemble → publish, updating the job record at every transition and on
// every newly completed line. It is the sole writer of job status.
type Orchestrator struct {
	store     *jobs.Store
	scraper   Scraper
	scripter  ScriptGenerator
	synth     Synthesizer
	assembler Assembler
	publisher Publisher // nil disables sharing

	targetMinutes float64
	maxAttempts   int
	concurrency   int
	limiter       *rate.Limiter
	sleep         Sleeper
}

func NewOrchestrator(store *jobs.Store, scraper Scraper, scripter ScriptGenerator, synth Synthesizer, assembler Assembler, publisher Publisher, cfg Config) *Orchestrator {
	if cfg.TargetMinutes <= 0 {
		cfg.TargetMinutes = 2.0
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 4
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	if cfg.Sleep == nil {
		cfg.Sleep = defaultSleeper
	}
	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return &Orchestrator{
		store:         store,
		scraper:       scraper,
		scripter:      scripter,
		synth:         synth,
		assembler:     assembler,
		publisher:     publisher,
		targetMinutes: cfg.TargetMinutes,
		maxAttempts:   cfg.MaxAttempts,
		concurrency:   cfg.Concurrency,
		limiter:       limiter,
		sleep:         cfg.Sleep,
	}
}

// Run executes the whole pipeline for one job. It never returns an error:
// every failure ends as a terminal failed status on the record.
func (o *Orchestrator) Run(ctx context.Context, job *jobs.Job) {
	id := job.ID

	o.update(id, func(j *jobs.Job) {
		j.Status = jobs.StatusProcessing
		j.Progress = progressScraping
		j.Message = "Scraping article content..."
	})

	article, err := o.scraper.Scrape(ctx, job.URL)
	if err != nil {
		o.fail(id, WrapError(err, KindExtractionFailed, "failed to scrape article"))
		return
	}

	o.update(id, func(j *jobs.Job) {
		j.Progress = progressScripting
		j.Message = "Generating podcast script..."
	})

	lines, err := o.scripter.Generate(ctx, article.Title, article.Text, o.targetMinutes)
	if err != nil {
		o.fail(id, WrapError(err, KindScriptingFailed, "failed to generate podcast script"))
		return
	}
	if len(lines) == 0 {
		o.fail(id, NewError(KindScriptingFailed, "script generator returned no dialogue"))
		return
	}

	o.update(id, func(j *jobs.Job) {
		j.TotalSegments = len(lines)
		j.Progress = progressSynthesis
		j.Message = fmt.Sprintf("Generating speech for %d segments...", len(lines))
	})

	buffers, err := o.synthesizeLines(ctx, id, lines)
	if err != nil {
		o.fail(id, err)
		return
	}

	o.update(id, func(j *jobs.Job) {
		j.Progress = progressFinalizing
		j.Message = "Finalizing audio..."
	})

	final, err := o.assembler.Combine(buffers)
	if err != nil {
		o.fail(id, WrapError(err, KindAssemblyFailed, "failed to combine audio segments"))
		return
	}
	final = o.assembler.Normalize(final)
	duration := o.assembler.Duration(final)

	meta := &jobs.Metadata{
		Title:            article.Title,
		Author:           article.Author,
		SourceURL:        article.URL,
		Language:         article.Language,
		Duration:         duration,
		DialogueSegments: len(lines),
	}

	if o.publisher != nil {
		o.update(id, func(j *jobs.Job) {
			j.Progress = progressPublishing
			j.Message = "Uploading for sharing..."
		})
		rec, err := o.publisher.Put(ctx, final, share.Meta{
			Title:     article.Title,
			Author:    article.Author,
			SourceURL: article.URL,
			Duration:  duration,
		})
		if err != nil {
			// Sharing is best effort: a publish failure never fails the job.
			log.Warn("Job %s: failed to publish share: %v", id, err)
		} else {
			meta.ShareID = rec.ShareID
			meta.ShareURL = "/api/share/" + rec.ShareID
		}
	}

	o.update(id, func(j *jobs.Job) {
		if j.Terminal() {
			return
		}
		j.Status = jobs.StatusCompleted
		j.Progress = progressCompleted
		j.Message = "Podcast generation completed"
		j.FinalAudio = final
		j.Metadata = meta
	})
	log.Info("Job %s completed: %d segments, %.1fs of audio", id, len(lines), duration)
}

type lineResult struct {
	index int
	audio []byte
}

// synthesizeLines fans the dialogue out to the synthesizer with bounded
// concurrency, applies the per-line update serially in this goroutine, and
// returns the buffers in original line order. Completions may arrive out of
// order; partial artifacts always cover the completed lines sorted by index.
func (o *Orchestrator) synthesizeLines(ctx context.Context, id string, lines []script.Line) ([][]byte, error) {
	buffers := make([][]byte, len(lines))
	results := make(chan lineResult)
	errc := make(chan error, 1)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)

	go func() {
		for i := range lines {
			idx := i
			line := lines[i]
			g.Go(func() error {
				if o.limiter != nil {
					if err := o.limiter.Wait(gctx); err != nil {
						return WrapError(err, KindSynthesisFailed, "synthesis canceled")
					}
				}
				audio, err := o.synthesizeWithRetry(gctx, idx, line)
				if err != nil {
					return err
				}
				select {
				case results <- lineResult{index: idx, audio: audio}:
					return nil
				case <-gctx.Done():
					return gctx.Err()
				}
			})
		}
		errc <- g.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		buffers[res.index] = res.audio
		completed++
		o.publishPartial(id, buffers, completed, len(lines))
	}

	if err := <-errc; err != nil {
		return nil, err
	}
	return buffers, nil
}

// publishPartial assembles all completed lines so far, in index order, and
// swaps the job's partial artifact. Called from the single aggregation
// goroutine, so updates stay serialized.
func (o *Orchestrator) publishPartial(id string, buffers [][]byte, completed, total int) {
	done := make([][]byte, 0, completed)
	for _, buf := range buffers {
		if buf != nil {
			done = append(done, buf)
		}
	}

	partial, err := o.assembler.Combine(done)
	if err != nil {
		// A failed partial never blocks the job; the next completion retries.
		log.Warn("Job %s: failed to assemble partial audio: %v", id, err)
		partial = nil
	}

	o.update(id, func(j *jobs.Job) {
		j.CompletedSegments = completed
		j.Progress = progressSynthesis + completed*progressSynthSpan/total
		j.Message = fmt.Sprintf("Generated %d/%d segments...", completed, total)
		if partial != nil {
			j.PartialAudio = partial
		}
	})
}

// synthesizeWithRetry retries transient synthesis failures with exponential
// backoff up to the attempt budget. Fatal failures propagate immediately.
func (o *Orchestrator) synthesizeWithRetry(ctx context.Context, idx int, line script.Line) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < o.maxAttempts; attempt++ {
		audio, err := o.synth.Synthesize(ctx, line.Speaker, line.Text)
		if err == nil {
			return audio, nil
		}
		lastErr = err

		var terr *tts.Error
		if !errors.As(err, &terr) || !terr.Retryable() {
			return nil, WrapError(err, KindSynthesisFailed,
				fmt.Sprintf("segment %d failed", idx))
		}
		if attempt == o.maxAttempts-1 {
			break
		}

		delay := NextDelay(attempt)
		log.Warn("Job segment %d: %s, retrying in %s (attempt %d/%d)", idx, terr.Class, delay, attempt+1, o.maxAttempts)
		if err := o.sleep(ctx, delay); err != nil {
			return nil, WrapError(err, KindSynthesisFailed, "synthesis canceled")
		}
	}
	return nil, WrapError(lastErr, exhaustedKind(lastErr),
		fmt.Sprintf("segment %d failed after %d attempts", idx, o.maxAttempts))
}

// exhaustedKind surfaces why the retry budget ran out: a provider that kept
// throttling or staying down reads differently than a broken synthesis.
func exhaustedKind(err error) Kind {
	var terr *tts.Error
	if !errors.As(err, &terr) {
		return KindSynthesisFailed
	}
	switch terr.Class {
	case tts.ClassRateLimited:
		return KindRateLimited
	case tts.ClassUnavailable:
		return KindServiceUnavailable
	default:
		return KindSynthesisFailed
	}
}

func (o *Orchestrator) update(id string, fn func(*jobs.Job)) {
	if _, ok := o.store.Update(id, fn); !ok {
		log.Error("Job %s vanished from store mid-pipeline", id)
	}
}

// fail applies the terminal failed transition once; later failures for the
// same job are ignored.
func (o *Orchestrator) fail(id string, err error) {
	log.Error("Job %s failed: %v", id, err)
	o.update(id, func(j *jobs.Job) {
		if j.Terminal() {
			return
		}
		j.Status = jobs.StatusFailed
		j.Error = &jobs.JobError{
			Kind:    string(KindOf(err)),
			Message: UserMessage(err),
		}
		j.Message = "Failed: " + UserMessage(err)
	})
}
