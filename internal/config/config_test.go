package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTemp(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestParseJSON(t *testing.T) {
	p := writeTemp(t, "config.json", `{
		"telegram": {"token": "t", "chat_id": -100, "owner_user_ids": [1]},
		"jobs": {"weather": {"enabled": true, "schedule": "cron:30 7 * * *"}}
	}`)
	cfg, err := NewConfigManager(p).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Telegram.Token != "t" || cfg.Telegram.ChatID != -100 {
		t.Fatalf("telegram section mismatch: %+v", cfg.Telegram)
	}
	jc, ok := cfg.Jobs["weather"]
	if !ok || !jc.Enabled || jc.Schedule != "cron:30 7 * * *" {
		t.Fatalf("jobs section mismatch: %+v", cfg.Jobs)
	}
}

func TestParseYAML(t *testing.T) {
	p := writeTemp(t, "config.yaml", `
telegram:
  token: "t"
  chat_id: -100
scheduler:
  enabled: true
  timezone: "Asia/Seoul"
jobs:
  techblog:
    enabled: true
    schedule: "every:6h"
    config:
      feeds:
        - name: "blog"
          url: "https://example.com/feed"
`)
	cfg, err := NewConfigManager(p).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Scheduler.Timezone != "Asia/Seoul" {
		t.Fatalf("timezone = %q", cfg.Scheduler.Timezone)
	}
	jc := cfg.Jobs["techblog"]
	if !strings.Contains(string(jc.Config), "example.com/feed") {
		t.Fatalf("nested job config not coerced to JSON: %s", jc.Config)
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	p := writeTemp(t, "config.json", `{"telegram": {"token": "t", "chat_id": 1}, "jobs": {}, "telgram_typo": {}}`)
	if _, err := NewConfigManager(p).Parse(); err == nil {
		t.Fatal("expected error for unknown top-level key")
	}
	p = writeTemp(t, "config2.json", `{"telegram": {"token": "t", "chat_id": 1}, "jobs": {"weather": {"enabled": true, "shedule": "1h"}}}`)
	if _, err := NewConfigManager(p).Parse(); err == nil {
		t.Fatal("expected error for unknown job key")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Telegram: TelegramConfig{Token: "t", ChatID: -1},
			Jobs:     map[string]JobConfigRaw{},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing token", func(c *Config) { c.Telegram.Token = " " }, "telegram.token"},
		{"missing chat id", func(c *Config) { c.Telegram.ChatID = 0 }, "telegram.chat_id"},
		{"bad poll timeout", func(c *Config) { c.Telegram.PollTimeout = "soon" }, "telegram.poll_timeout"},
		{"bad timezone", func(c *Config) { c.Scheduler.Timezone = "Mars/Olympus" }, "scheduler.timezone"},
		{"bad holiday", func(c *Config) { c.Holidays = []string{"2026-13-01"} }, "holidays"},
		{"bad storage driver", func(c *Config) { c.Storage = &StorageConfig{Driver: "redis"} }, "storage.driver"},
		{"bad llm retry delay", func(c *Config) { c.LLM.RetryDelay = "a minute" }, "llm.retry_delay"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			err := Validate(cfg)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("err = %v, want mention of %q", err, tc.wantErr)
			}
		})
	}
}

func TestDecodeJobConfig(t *testing.T) {
	type wc struct {
		APIKey string  `json:"api_key"`
		Lat    float64 `json:"lat"`
	}
	got, err := DecodeJobConfig[wc]([]byte(`{"api_key":"k","lat":37.6}`))
	if err != nil {
		t.Fatalf("DecodeJobConfig: %v", err)
	}
	if got.APIKey != "k" || got.Lat != 37.6 {
		t.Fatalf("got %+v", got)
	}
	// nil blob yields the zero config
	zero, err := DecodeJobConfig[wc](nil)
	if err != nil || zero.APIKey != "" {
		t.Fatalf("nil blob: %+v %v", zero, err)
	}
}
