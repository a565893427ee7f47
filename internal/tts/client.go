package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// minWAVBytes is the size of a bare RIFF header; anything shorter cannot be
// playable audio.
const minWAVBytes = 44

// ErrorClass partitions synthesis failures by how the caller should react.
type ErrorClass int

const (
	// ClassFatal covers malformed requests, auth failures and anything else
	// that will not succeed on retry.
	ClassFatal ErrorClass = iota
	// ClassRateLimited maps provider 429 responses.
	ClassRateLimited
	// ClassUnavailable maps provider 5xx responses and transport errors.
	ClassUnavailable
)

func (c ErrorClass) String() string {
	switch c {
	case ClassRateLimited:
		return "RateLimited"
	case ClassUnavailable:
		return "ServiceUnavailable"
	default:
		return "Fatal"
	}
}

// Error is a classified synthesis failure.
type Error struct {
	Class      ErrorClass
	Voice      string
	StatusCode int
	Cause      error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("synthesis for voice %q failed (%s, HTTP %d): %v", e.Voice, e.Class, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("synthesis for voice %q failed (%s): %v", e.Voice, e.Class, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Retryable reports whether a retry with backoff can plausibly succeed.
func (e *Error) Retryable() bool {
	return e.Class == ClassRateLimited || e.Class == ClassUnavailable
}

// Config holds the client configuration.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Client calls a per-voice text-to-speech endpoint and returns WAV bytes.
// Thread-safe for concurrent use.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("tts api key is required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("tts base url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}, nil
}

type synthesizeRequest struct {
	Text string `json:"text"`
}

// Synthesize converts one dialogue line to audio with the given voice.
// Failures carry an ErrorClass; retry policy belongs to the caller.
func (c *Client) Synthesize(ctx context.Context, voice, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &Error{Class: ClassFatal, Voice: voice, Cause: fmt.Errorf("empty text")}
	}

	payload, err := json.Marshal(synthesizeRequest{Text: text})
	if err != nil {
		return nil, &Error{Class: ClassFatal, Voice: voice, Cause: err}
	}

	url := c.baseURL + "/" + strings.ToLower(voice)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, &Error{Class: ClassFatal, Voice: voice, Cause: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &Error{Class: ClassFatal, Voice: voice, Cause: ctx.Err()}
		}
		return nil, &Error{Class: ClassUnavailable, Voice: voice, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		cause := fmt.Errorf("%s", strings.TrimSpace(string(body)))
		return nil, &Error{
			Class:      classifyStatus(resp.StatusCode),
			Voice:      voice,
			StatusCode: resp.StatusCode,
			Cause:      cause,
		}
	}

	wav, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Class: ClassUnavailable, Voice: voice, Cause: err}
	}
	if len(wav) < minWAVBytes {
		return nil, &Error{Class: ClassFatal, Voice: voice, Cause: fmt.Errorf("invalid audio data (%d bytes)", len(wav))}
	}
	return wav, nil
}

func classifyStatus(code int) ErrorClass {
	switch {
	case code == http.StatusTooManyRequests:
		return ClassRateLimited
	case code >= 500:
		return ClassUnavailable
	default:
		return ClassFatal
	}
}
