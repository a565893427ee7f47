package script

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// maxArticleChars limits how much article text goes into the prompt.
const maxArticleChars = 4000

// wordsPerMinute is the speaking rate used for duration estimates.
const wordsPerMinute = 150

var linePattern = regexp.MustCompile(`(?i)^(SARAH|THEO):\s*(.+)$`)

// Config holds the configuration for the script generator.
// Any OpenAI-compatible chat-completions endpoint works.
type Config struct {
	APIKey      string
	APIURL      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

func (c Config) validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("llm api key is required")
	}
	if strings.TrimSpace(c.APIURL) == "" {
		return fmt.Errorf("llm api url is required")
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("llm model is required")
	}
	return nil
}

// Generator turns article text into a two-host dialogue script.
// Thread-safe for concurrent use.
type Generator struct {
	cfg        Config
	httpClient *http.Client
}

func NewGenerator(cfg Config) (*Generator, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1600
	}
	return &Generator{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}, nil
}

// Generate produces the ordered dialogue for the given article, aiming for
// targetMinutes of speech.
func (g *Generator) Generate(ctx context.Context, title, content string, targetMinutes float64) ([]Line, error) {
	if targetMinutes <= 0 {
		targetMinutes = 2.0
	}

	request := chatRequest{
		Model: g.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(title, content, targetMinutes)},
		},
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
	}

	response, err := g.makeRequest(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	lines, err := ParseDialogue(response.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	return lines, nil
}

func (g *Generator) makeRequest(ctx context.Context, payload chatRequest) (*chatResponse, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := strings.TrimSuffix(g.cfg.APIURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("provider error: %s", parsed.Error.Message)
	}
	return &parsed, nil
}

// ParseDialogue splits raw model output into ordered speaker lines.
func ParseDialogue(raw string) ([]Line, error) {
	var lines []Line
	for _, candidate := range strings.Split(raw, "\n") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		match := linePattern.FindStringSubmatch(candidate)
		if match == nil {
			continue
		}
		voice := VoiceTheo
		if strings.EqualFold(match[1], "SARAH") {
			voice = VoiceSarah
		}
		lines = append(lines, Line{Speaker: voice, Text: strings.TrimSpace(match[2])})
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("failed to parse dialogue from model output")
	}
	return lines, nil
}

// EstimateDuration estimates the spoken length of the dialogue in minutes.
func EstimateDuration(lines []Line) float64 {
	words := 0
	for _, line := range lines {
		words += len(strings.Fields(line.Text))
	}
	return float64(words) / wordsPerMinute
}

func userPrompt(title, content string, targetMinutes float64) string {
	if len(content) > maxArticleChars {
		content = content[:maxArticleChars]
	}
	wordCount := int(targetMinutes * wordsPerMinute)
	return fmt.Sprintf(`Transform the following article into a %.1f-minute podcast conversation between Sarah and Theo.

Article Title: %s

Article Content:
%s

Instructions:
- Keep each line concise (1-2 sentences)
- ~%d words total
- Structure:
  * Sarah introduces topic
  * Discuss 2-3 key points with natural back-and-forth
  * Theo wraps up with insights
  * Sarah thanks listeners

Format each line as:
SARAH: [text]
THEO: [text]

Begin the podcast script:`, targetMinutes, title, content, wordCount)
}

const systemPrompt = `You are a podcast script writer who creates SHORT, engaging conversational dialogues between two hosts: Sarah and Theo.

Sarah is enthusiastic, curious, and asks insightful questions. She often brings up interesting angles.
Theo is knowledgeable, analytical, and great at explaining complex topics simply. He's warm and engaging.

Your task is to transform articles into BRIEF, natural podcast conversations that:
- Sound like real people talking (use contractions, natural speech patterns)
- Make complex topics accessible and interesting
- Include back-and-forth dialogue with questions, reactions, and insights
- Are CONCISE and focused on the main points only
- Keep each speaker turn relatively short (1-3 sentences max)

Format your output EXACTLY as:
SARAH: [dialogue text]
THEO: [dialogue text]
SARAH: [dialogue text]
...and so on.

Each line should start with either "SARAH:" or "THEO:" followed by their dialogue.`

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
