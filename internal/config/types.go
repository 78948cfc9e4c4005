package config

import (
	"bytes"
	"encoding/json"
)

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`

	// Scheduler controls when jobs run and how runs are executed.
	Scheduler SchedulerConfig `json:"scheduler"`

	Notifier *NotifierConfig `json:"notifier,omitempty"`
	Storage  *StorageConfig  `json:"storage,omitempty"`

	LLM   LLMConfig   `json:"llm"`
	Fetch FetchConfig `json:"fetch,omitempty"`

	// Holidays lists non-working dates as "2006-01-02" strings.
	// Weekends are always non-working and don't need to be listed.
	Holidays []string `json:"holidays,omitempty"`

	Jobs map[string]JobConfigRaw `json:"jobs"`
}

// NotifierConfig controls the async notification pipeline.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
// If the whole section is omitted, the notifier defaults to enabled=true.
type NotifierConfig struct {
	Enabled         bool   `json:"enabled"`
	Workers         int    `json:"workers"`
	QueueSize       int    `json:"queue_size"`
	RatePerSec      int    `json:"rate_per_sec"`
	RetryMax        int    `json:"retry_max"`
	RetryBase       string `json:"retry_base"`
	RetryMaxDelay   string `json:"retry_max_delay"`
	DedupWindow     string `json:"dedup_window"`
	DedupMaxEntries int    `json:"dedup_max_entries"`
	PersistDedup    bool   `json:"persist_dedup,omitempty"`
}

// StorageConfig controls the optional persistence layer.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./briefbot_store" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

type TelegramConfig struct {
	Token        string  `json:"token"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	// ChatID is the default delivery target for job briefings.
	ChatID   int64  `json:"chat_id"`
	GroupLog string `json:"group_log"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// SchedulerConfig controls job triggering and execution.
//
// All durations are Go duration strings (e.g. "10s", "1m").
//
// Defaults (when fields are omitted/zero):
//   - workers: 2
//   - queue_size: 64
//   - default_timeout: "5m"
//   - history_size: 200
//   - retry_max: 1
type SchedulerConfig struct {
	Enabled bool `json:"enabled"`

	Workers   int `json:"workers,omitempty"`
	QueueSize int `json:"queue_size,omitempty"`
	// DefaultTimeout bounds a single run attempt. Use "0s" to disable.
	DefaultTimeout string `json:"default_timeout,omitempty"`
	HistorySize    int    `json:"history_size,omitempty"`
	RetryMax       int    `json:"retry_max,omitempty"`

	// Trigger timezone (IANA name, e.g. "Asia/Seoul").
	Timezone string `json:"timezone,omitempty"`
}

// LLMConfig configures the Gemini-backed summarizer.
type LLMConfig struct {
	APIKey   string `json:"api_key"`
	Model    string `json:"model,omitempty"`    // default: "gemini-2.0-flash"
	Endpoint string `json:"endpoint,omitempty"` // override for tests/proxies
	Timeout  string `json:"timeout,omitempty"`  // Go duration string, default "60s"

	// Retries apply to HTTP 429 responses only.
	RetryMax   int    `json:"retry_max,omitempty"`   // default: 3
	RetryDelay string `json:"retry_delay,omitempty"` // default: "60s"
}

// FetchConfig configures the article content fetcher.
type FetchConfig struct {
	Timeout   string `json:"timeout,omitempty"`    // default "15s"
	UserAgent string `json:"user_agent,omitempty"` // default: desktop browser UA
	// MinContentLength is the minimum extracted length (in runes) for content
	// to count as found. Shorter results fall back to "content not found".
	MinContentLength int `json:"min_content_length,omitempty"` // default 100
}

type JobConfigRaw struct {
	Enabled bool `json:"enabled"`
	// Schedule accepts "cron:<expr>", "every:<dur>", "interval:<dur>",
	// "HH:MM" or a bare cron expression / Go duration.
	Schedule string          `json:"schedule,omitempty"`
	Config   json.RawMessage `json:"config,omitempty"`
}

// UnmarshalJSON disallows unknown fields to ensure removed legacy keys
// are caught early during config reload.
func (p *JobConfigRaw) UnmarshalJSON(b []byte) error {
	type tmp struct {
		Enabled  bool            `json:"enabled"`
		Schedule string          `json:"schedule,omitempty"`
		Config   json.RawMessage `json:"config,omitempty"`
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	var t tmp
	if err := dec.Decode(&t); err != nil {
		return err
	}
	*p = JobConfigRaw{Enabled: t.Enabled, Schedule: t.Schedule, Config: t.Config}
	return nil
}
