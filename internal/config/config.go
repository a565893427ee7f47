package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
// Values come from environment variables with sensible defaults.
//
// Environment Variables:
//
// Server:
// - PORT: HTTP listen port (default: 8080)
// - PUBLIC_BASE_URL: Base URL used when building share links (default: http://localhost:<PORT>)
// - LOG_LEVEL: debug|info|warn|error (default: info)
//
// Script generation (OpenAI-compatible chat completions):
// - LLM_API_KEY: API key for the LLM provider (required)
// - LLM_API_URL: API endpoint URL (default: https://api.openai.com/v1)
// - LLM_MODEL: Model name (default: gpt-4o)
// - LLM_MAX_TOKENS: Maximum tokens for responses (default: 1600)
// - LLM_TEMPERATURE: Sampling temperature (default: 0.8)
// - LLM_TIMEOUT: Request timeout in seconds (default: 60)
// - TARGET_DURATION_MINUTES: Target podcast length (default: 2.0)
//
// Speech synthesis:
// - TTS_API_KEY: API key for the TTS provider (required)
// - TTS_API_URL: Per-voice generate endpoint base (default: https://preview.tts.speechmatics.com/generate)
// - TTS_TIMEOUT: Per-request timeout in seconds (default: 30)
// - TTS_MAX_ATTEMPTS: Retry budget per dialogue line (default: 4)
// - TTS_CONCURRENCY: Lines synthesized in parallel (default: 2)
// - TTS_RATE_LIMIT: Synthesis calls per second (default: 2.0)
//
// Audio:
// - AUDIO_PAUSE_MS: Silence between speaker turns in milliseconds (default: 500)
// - AUDIO_SAMPLE_RATE: PCM sample rate of the TTS output (default: 16000)
//
// Pipeline:
// - MAX_CONCURRENT_JOBS: Simultaneously running pipelines (default: 2)
// - MAX_TRACKED_JOBS: Finished jobs kept before the retention sweep prunes (default: 1000)
// - JOB_SWEEP_CRON: Cron spec for the retention sweep (default: @hourly)
//
// Sharing:
// - SHARE_ENABLED: Enable public share links (default: true)
// - SHARE_DB_PATH: SQLite database path for share records (default: data/shares.db)
// - SHARE_TTL_HOURS: Share record lifetime (default: 168)
// - SHARE_SWEEP_CRON: Cron spec for the share expiry sweep (default: @hourly)

type Config struct {
	Server ServerConfig `json:"server"`

	LLM LLMConfig `json:"llm"`

	TTS TTSConfig `json:"tts"`

	Audio AudioConfig `json:"audio"`

	Pipeline PipelineConfig `json:"pipeline"`

	Share ShareConfig `json:"share"`
}

// ServerConfig holds the HTTP server configuration
type ServerConfig struct {
	Port          string `json:"port"`
	PublicBaseURL string `json:"public_base_url"`
	LogLevel      string `json:"log_level"`
}

// LLMConfig holds the configuration for the script-generation client.
// Supports any OpenAI-compatible provider.
type LLMConfig struct {
	APIKey        string  `json:"api_key"`
	APIURL        string  `json:"api_url"`
	Model         string  `json:"model"`
	MaxTokens     int     `json:"max_tokens"`
	Temperature   float64 `json:"temperature"`
	Timeout       int     `json:"timeout"`
	TargetMinutes float64 `json:"target_minutes"`
}

// TTSConfig holds the configuration for the speech-synthesis client
type TTSConfig struct {
	APIKey      string  `json:"api_key"`
	APIURL      string  `json:"api_url"`
	Timeout     int     `json:"timeout"`
	MaxAttempts int     `json:"max_attempts"`
	Concurrency int     `json:"concurrency"`
	RateLimit   float64 `json:"rate_limit"`
}

// AudioConfig holds the assembly parameters
type AudioConfig struct {
	PauseMillis int `json:"pause_millis"`
	SampleRate  int `json:"sample_rate"`
}

// PipelineConfig holds the scheduler and retention configuration
type PipelineConfig struct {
	MaxConcurrentJobs int    `json:"max_concurrent_jobs"`
	MaxTrackedJobs    int    `json:"max_tracked_jobs"`
	SweepCron         string `json:"sweep_cron"`
}

// ShareConfig holds the share-storage configuration
type ShareConfig struct {
	Enabled   bool   `json:"enabled"`
	DBPath    string `json:"db_path"`
	TTLHours  int    `json:"ttl_hours"`
	SweepCron string `json:"sweep_cron"`
}

func (c ShareConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

// Option is a function type for configuring Config
type Option func(*Config)

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	port := getEnvString("PORT", "8080")
	config := &Config{
		Server: ServerConfig{
			Port:          port,
			PublicBaseURL: getEnvString("PUBLIC_BASE_URL", "http://localhost:"+port),
			LogLevel:      getEnvString("LOG_LEVEL", "info"),
		},
		LLM: LLMConfig{
			APIKey:        getEnvString("LLM_API_KEY", ""),
			APIURL:        getEnvString("LLM_API_URL", "https://api.openai.com/v1"),
			Model:         getEnvString("LLM_MODEL", "gpt-4o"),
			MaxTokens:     getEnvInt("LLM_MAX_TOKENS", 1600),
			Temperature:   getEnvFloat("LLM_TEMPERATURE", 0.8),
			Timeout:       getEnvInt("LLM_TIMEOUT", 60),
			TargetMinutes: getEnvFloat("TARGET_DURATION_MINUTES", 2.0),
		},
		TTS: TTSConfig{
			APIKey:      getEnvString("TTS_API_KEY", ""),
			APIURL:      getEnvString("TTS_API_URL", "https://preview.tts.speechmatics.com/generate"),
			Timeout:     getEnvInt("TTS_TIMEOUT", 30),
			MaxAttempts: getEnvInt("TTS_MAX_ATTEMPTS", 4),
			Concurrency: getEnvInt("TTS_CONCURRENCY", 2),
			RateLimit:   getEnvFloat("TTS_RATE_LIMIT", 2.0),
		},
		Audio: AudioConfig{
			PauseMillis: getEnvInt("AUDIO_PAUSE_MS", 500),
			SampleRate:  getEnvInt("AUDIO_SAMPLE_RATE", 16000),
		},
		Pipeline: PipelineConfig{
			MaxConcurrentJobs: getEnvInt("MAX_CONCURRENT_JOBS", 2),
			MaxTrackedJobs:    getEnvInt("MAX_TRACKED_JOBS", 1000),
			SweepCron:         getEnvString("JOB_SWEEP_CRON", "@hourly"),
		},
		Share: ShareConfig{
			Enabled:   getEnvBool("SHARE_ENABLED", true),
			DBPath:    getEnvString("SHARE_DB_PATH", "data/shares.db"),
			TTLHours:  getEnvInt("SHARE_TTL_HOURS", 168),
			SweepCron: getEnvString("SHARE_SWEEP_CRON", "@hourly"),
		},
	}

	// Apply custom options
	for _, opt := range opts {
		opt(config)
	}

	// Validate required configuration
	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM_API_KEY is required")
	}
	if c.TTS.APIKey == "" {
		return fmt.Errorf("TTS_API_KEY is required")
	}
	if c.Pipeline.MaxConcurrentJobs <= 0 {
		return fmt.Errorf("MAX_CONCURRENT_JOBS must be positive")
	}
	if c.TTS.MaxAttempts <= 0 {
		return fmt.Errorf("TTS_MAX_ATTEMPTS must be positive")
	}
	return nil
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets a float value from environment variables with default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvBool gets a boolean value from environment variables with default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
