package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Validate checks the parts of a config that must be right before it is
// committed. It is used both at startup and as the hot-reload validator, so a
// bad edit never replaces a working config.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token is required")
	}
	if cfg.Telegram.ChatID == 0 {
		return fmt.Errorf("telegram.chat_id is required")
	}

	durs := []struct {
		path string
		raw  string
	}{
		{"telegram.poll_timeout", cfg.Telegram.PollTimeout},
		{"scheduler.default_timeout", cfg.Scheduler.DefaultTimeout},
		{"llm.timeout", cfg.LLM.Timeout},
		{"llm.retry_delay", cfg.LLM.RetryDelay},
		{"fetch.timeout", cfg.Fetch.Timeout},
	}
	if n := cfg.Notifier; n != nil {
		durs = append(durs,
			struct{ path, raw string }{"notifier.retry_base", n.RetryBase},
			struct{ path, raw string }{"notifier.retry_max_delay", n.RetryMaxDelay},
			struct{ path, raw string }{"notifier.dedup_window", n.DedupWindow},
		)
	}
	if s := cfg.Storage; s != nil {
		durs = append(durs, struct{ path, raw string }{"storage.busy_timeout", s.BusyTimeout})
		switch strings.TrimSpace(s.Driver) {
		case "", "file", "sqlite":
		default:
			return fmt.Errorf("storage.driver: unknown driver %q", s.Driver)
		}
	}
	for _, d := range durs {
		if _, err := ParseDurationField(d.path, d.raw); err != nil {
			return err
		}
	}

	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("scheduler.timezone: %w", err)
		}
	}

	for _, day := range cfg.Holidays {
		if _, err := time.Parse("2006-01-02", strings.TrimSpace(day)); err != nil {
			return fmt.Errorf("holidays: invalid date %q (want 2006-01-02)", day)
		}
	}

	return nil
}

// DecodeJobConfig decodes per-job raw json into a typed config struct.
func DecodeJobConfig[T any](raw json.RawMessage) (T, error) {
	var out T
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	return out, nil
}
