// Package llm talks to the Gemini generateContent REST API.
//
// The client always requests application/json responses with temperature 0,
// and retries only on HTTP 429 with a fixed delay. Any other failure,
// including unparseable JSON from the model, is terminal.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	logx "briefbot/pkg/logx"
)

// Summary is the translate-and-condense result for a piece of text.
type Summary struct {
	English string `json:"english"`
	Korean  string `json:"korean"`
}

// Brief is a processed weather briefing.
type Brief struct {
	Location   string `json:"location_ko"`
	Summary    string `json:"summary_ko"`
	Alert      string `json:"alert_ko"`
	Suggestion string `json:"suggestion"`
}

// Summarizer is what jobs depend on; *Client is the real implementation.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (Summary, error)
	WeatherBrief(ctx context.Context, data any) (Brief, error)
}

// ErrRateLimited wraps HTTP 429 responses that persisted past all retries.
var ErrRateLimited = errors.New("llm: rate limited")

const defaultEndpoint = "https://generativelanguage.googleapis.com/v1beta"

const summarizePrompt = `You are a text processing expert. Your task is to process the given English text and return a JSON object.

Follow these steps precisely:
1. First, clean the input text by removing all XML, HTML, and Markdown syntax (e.g., tags like <p>, <div>, and markers like **, #, [text](link)). Get the raw, plain text content.
2. Count the number of sentences in this *cleaned* plain text.
3. Apply logic based on the sentence count:
   - If 2 sentences or fewer: the 'english' field in the JSON must be the original *cleaned* text, exactly as it is.
   - If 3 sentences or more: the 'english' field in the JSON must be a concise, one-or-two-sentence summary of the *cleaned* text.
4. Translate the content of the 'english' field (whether it's the original text or the summary) into Korean. Put this translation in the 'korean' field.
5. Return *only* the final JSON object, with the exact schema: {"english": "...", "korean": "..."}.
   Do not include any other text, explanations, or markdown delimiters.`

const weatherPrompt = `You are a weather briefing assistant. You are given a JSON object with today's weather and air quality measurements for one location.

Return *only* a JSON object with the exact schema:
{"location_ko": "...", "summary_ko": "...", "alert_ko": "...", "suggestion": "..."}

Rules:
- location_ko: the location name in Korean.
- summary_ko: one Korean sentence summarizing today's weather and air quality.
- alert_ko: a short Korean warning if any measurement is dangerous (heavy rain, extreme temperature, very bad air quality); empty string otherwise.
- suggestion: one practical Korean suggestion for the day (clothing, umbrella, mask, ventilation).
Do not include any other text, explanations, or markdown delimiters.`

type Config struct {
	APIKey     string
	Model      string        // default "gemini-2.0-flash"
	Endpoint   string        // API base URL, overridable for tests
	Timeout    time.Duration // per-request HTTP timeout (default 90s)
	RetryMax   int           // retries after a 429 (default 3)
	RetryDelay time.Duration // fixed wait between retries (default 60s)
}

type Client struct {
	cfg Config
	hc  *http.Client
	log logx.Logger
}

func New(cfg Config, log logx.Logger) *Client {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 60 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		cfg: cfg,
		hc:  &http.Client{Timeout: cfg.Timeout},
		log: log,
	}
}

// Summarize condenses and translates text per the JSON contract.
func (c *Client) Summarize(ctx context.Context, text string) (Summary, error) {
	raw, err := c.generate(ctx, summarizePrompt, text)
	if err != nil {
		return Summary{}, err
	}
	var s Summary
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return Summary{}, fmt.Errorf("llm: invalid summary JSON from model: %w", err)
	}
	if s.English == "" && s.Korean == "" {
		return Summary{}, errors.New("llm: empty summary from model")
	}
	return s, nil
}

// WeatherBrief turns structured weather data into a Korean briefing.
func (c *Client) WeatherBrief(ctx context.Context, data any) (Brief, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return Brief{}, fmt.Errorf("llm: marshal weather data: %w", err)
	}
	raw, err := c.generate(ctx, weatherPrompt, string(payload))
	if err != nil {
		return Brief{}, err
	}
	var b Brief
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		return Brief{}, fmt.Errorf("llm: invalid brief JSON from model: %w", err)
	}
	return b, nil
}

// --- generateContent wire types ---

type generateRequest struct {
	SystemInstruction *content         `json:"system_instruction,omitempty"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	ResponseMIMEType string  `json:"response_mime_type"`
	Temperature      float64 `json:"temperature"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// generate calls the model once per attempt, sleeping RetryDelay between
// attempts, but only when the API answered 429.
func (c *Client) generate(ctx context.Context, system, user string) (string, error) {
	var lastErr error
	maxAttempts := 1 + c.cfg.RetryMax
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		text, retryable, err := c.generateOnce(ctx, system, user)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !retryable || attempt >= maxAttempts {
			return "", err
		}
		c.log.Warn("model rate limited; waiting before retry",
			logx.Int("attempt", attempt), logx.Int("max", maxAttempts), logx.Duration("delay", c.cfg.RetryDelay))
		tmr := time.NewTimer(c.cfg.RetryDelay)
		select {
		case <-ctx.Done():
			if !tmr.Stop() {
				<-tmr.C
			}
			return "", ctx.Err()
		case <-tmr.C:
		}
	}
	return "", lastErr
}

func (c *Client) generateOnce(ctx context.Context, system, user string) (text string, retryable bool, err error) {
	reqBody := generateRequest{
		SystemInstruction: &content{Parts: []part{{Text: system}}},
		Contents:          []content{{Role: "user", Parts: []part{{Text: user}}}},
		GenerationConfig:  generationConfig{ResponseMIMEType: "application/json", Temperature: 0},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", false, fmt.Errorf("llm: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", strings.TrimRight(c.cfg.Endpoint, "/"), c.cfg.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("llm: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("llm: request failed: %w", err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", false, fmt.Errorf("llm: read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", true, fmt.Errorf("%w (http 429)", ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return "", false, fmt.Errorf("llm: unexpected status %d: %s", resp.StatusCode, truncateForError(respBody))
	}

	var gr generateResponse
	if err := json.Unmarshal(respBody, &gr); err != nil {
		return "", false, fmt.Errorf("llm: decode response: %w", err)
	}
	if gr.Error != nil {
		return "", false, fmt.Errorf("llm: api error %d %s: %s", gr.Error.Code, gr.Error.Status, gr.Error.Message)
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return "", false, errors.New("llm: no candidates in response")
	}

	var b strings.Builder
	for _, p := range gr.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return strings.TrimSpace(b.String()), false, nil
}

func truncateForError(b []byte) string {
	const n = 300
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
