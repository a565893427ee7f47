package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/quickcast/quickcast/internal/audio"
	"github.com/quickcast/quickcast/internal/config"
	"github.com/quickcast/quickcast/internal/httpapi"
	"github.com/quickcast/quickcast/internal/jobs"
	"github.com/quickcast/quickcast/internal/pipeline"
	"github.com/quickcast/quickcast/internal/scrape"
	"github.com/quickcast/quickcast/internal/script"
	"github.com/quickcast/quickcast/internal/share"
	"github.com/quickcast/quickcast/internal/tts"
	"github.com/quickcast/quickcast/pkg/log"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatal("Failed to load configuration: %v", err)
	}
	log.InitLogger(log.ParseLevel(cfg.Server.LogLevel))

	scraper := scrape.NewScraper(10 * time.Second)

	scripter, err := script.NewGenerator(script.Config{
		APIKey:      cfg.LLM.APIKey,
		APIURL:      cfg.LLM.APIURL,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     time.Duration(cfg.LLM.Timeout) * time.Second,
	})
	if err != nil {
		log.Fatal("Failed to build script generator: %v", err)
	}

	synth, err := tts.NewClient(tts.Config{
		APIKey:  cfg.TTS.APIKey,
		BaseURL: cfg.TTS.APIURL,
		Timeout: time.Duration(cfg.TTS.Timeout) * time.Second,
	})
	if err != nil {
		log.Fatal("Failed to build synthesis client: %v", err)
	}

	assembler := audio.NewAssembler(
		time.Duration(cfg.Audio.PauseMillis)*time.Millisecond,
		cfg.Audio.SampleRate,
	)

	store := jobs.NewStore(cfg.Pipeline.MaxTrackedJobs)

	var shares *share.SQLiteStore
	var publisher pipeline.Publisher
	if cfg.Share.Enabled {
		shares, err = share.NewSQLiteStore(cfg.Share.DBPath, cfg.Share.TTL())
		if err != nil {
			log.Warn("Share storage unavailable, sharing disabled: %v", err)
		} else {
			publisher = shares
			log.Info("Share storage enabled at %s (ttl %s)", cfg.Share.DBPath, cfg.Share.TTL())
		}
	}

	orchestrator := pipeline.NewOrchestrator(store, scraper, scripter, synth, assembler, publisher, pipeline.Config{
		TargetMinutes: cfg.LLM.TargetMinutes,
		MaxAttempts:   cfg.TTS.MaxAttempts,
		Concurrency:   cfg.TTS.Concurrency,
		RateLimit:     cfg.TTS.RateLimit,
	})

	scheduler := jobs.NewScheduler(cfg.Pipeline.MaxConcurrentJobs, store)
	scheduler.Start(orchestrator.Run)

	sweeper := cron.New()
	if _, err := sweeper.AddFunc(cfg.Pipeline.SweepCron, func() {
		if pruned := store.Sweep(); len(pruned) > 0 {
			log.Info("Retention sweep pruned %d finished jobs", len(pruned))
		}
	}); err != nil {
		log.Fatal("Invalid JOB_SWEEP_CRON: %v", err)
	}
	if shares != nil {
		if _, err := sweeper.AddFunc(cfg.Share.SweepCron, func() {
			n, err := shares.SweepExpired(context.Background())
			if err != nil {
				log.Error("Share expiry sweep failed: %v", err)
				return
			}
			if n > 0 {
				log.Info("Share expiry sweep removed %d records", n)
			}
		}); err != nil {
			log.Fatal("Invalid SHARE_SWEEP_CRON: %v", err)
		}
	}
	sweeper.Start()

	var opts []httpapi.Option
	if shares != nil {
		opts = append(opts, httpapi.WithShareStore(shares))
	}
	server := httpapi.NewServer(store, scheduler, opts...)

	go func() {
		log.Info("QuickCast server listening on :%s", cfg.Server.Port)
		if err := server.ListenAndServe(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("HTTP shutdown: %v", err)
	}
	scheduler.Stop()
	sweeper.Stop()
	if shares != nil {
		_ = shares.Close()
	}
}
