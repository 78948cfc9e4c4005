package app

import (
	"fmt"
	"strings"
	"time"

	"briefbot/internal/config"
	"briefbot/internal/fetch"
	"briefbot/internal/llm"
	"briefbot/internal/notifier"
	"briefbot/internal/scheduler"
	"briefbot/internal/storage"
)

// Mapping helpers translate the user-facing config (durations as strings,
// optional sections) into the typed configs the services consume. They are
// also used by the reload validator, so every parse error here blocks a bad
// hot-reload before anything is applied.

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)

	switch driver {
	case "file":
		return storage.Config{Driver: "file", Path: path}, true, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, 1*time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapSchedulerConfig(cfg *config.Config) (scheduler.Config, error) {
	defTimeout, err := config.ParseDurationOrDefault("scheduler.default_timeout", cfg.Scheduler.DefaultTimeout, 5*time.Minute)
	if err != nil {
		return scheduler.Config{}, err
	}
	return scheduler.Config{
		Enabled:        cfg.Scheduler.Enabled,
		Workers:        cfg.Scheduler.Workers,
		QueueSize:      cfg.Scheduler.QueueSize,
		DefaultTimeout: defTimeout,
		HistorySize:    cfg.Scheduler.HistorySize,
		Timezone:       cfg.Scheduler.Timezone,
		RetryMax:       cfg.Scheduler.RetryMax,
	}, nil
}

func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	// Omitting the section means "enabled with defaults": job output has to
	// go somewhere, so delivery is opt-out rather than opt-in.
	if cfg == nil || cfg.Notifier == nil {
		return notifier.Config{Enabled: true}, nil
	}
	nc := cfg.Notifier
	retryBase, err := config.ParseDurationOrDefault("notifier.retry_base", nc.RetryBase, 0)
	if err != nil {
		return notifier.Config{}, err
	}
	retryMaxDelay, err := config.ParseDurationOrDefault("notifier.retry_max_delay", nc.RetryMaxDelay, 0)
	if err != nil {
		return notifier.Config{}, err
	}
	dedupWindow, err := config.ParseDurationOrDefault("notifier.dedup_window", nc.DedupWindow, 0)
	if err != nil {
		return notifier.Config{}, err
	}
	if nc.Workers < 0 {
		return notifier.Config{}, fmt.Errorf("notifier.workers must be >= 0")
	}
	if nc.QueueSize < 0 {
		return notifier.Config{}, fmt.Errorf("notifier.queue_size must be >= 0")
	}
	return notifier.Config{
		Enabled:         nc.Enabled,
		Workers:         nc.Workers,
		QueueSize:       nc.QueueSize,
		RatePerSec:      nc.RatePerSec,
		RetryMax:        nc.RetryMax,
		RetryBase:       retryBase,
		RetryMaxDelay:   retryMaxDelay,
		DedupWindow:     dedupWindow,
		DedupMaxEntries: nc.DedupMaxEntries,
		PersistDedup:    nc.PersistDedup,
	}, nil
}

func mapLLMConfig(cfg *config.Config) (llm.Config, error) {
	timeout, err := config.ParseDurationOrDefault("llm.timeout", cfg.LLM.Timeout, 0)
	if err != nil {
		return llm.Config{}, err
	}
	retryDelay, err := config.ParseDurationOrDefault("llm.retry_delay", cfg.LLM.RetryDelay, 0)
	if err != nil {
		return llm.Config{}, err
	}
	return llm.Config{
		APIKey:     cfg.LLM.APIKey,
		Model:      cfg.LLM.Model,
		Endpoint:   cfg.LLM.Endpoint,
		Timeout:    timeout,
		RetryMax:   cfg.LLM.RetryMax,
		RetryDelay: retryDelay,
	}, nil
}

func mapFetchConfig(cfg *config.Config) (fetch.Config, error) {
	timeout, err := config.ParseDurationOrDefault("fetch.timeout", cfg.Fetch.Timeout, 0)
	if err != nil {
		return fetch.Config{}, err
	}
	return fetch.Config{
		Timeout:          timeout,
		UserAgent:        cfg.Fetch.UserAgent,
		MinContentLength: cfg.Fetch.MinContentLength,
	}, nil
}
