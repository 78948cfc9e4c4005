package config

import (
	"reflect"
	"sort"
	"strings"

	logx "briefbot/pkg/logx"
)

// SummarizeConfigChange returns (1) a compact list of changed sections,
// (2) safe structured attrs for logging (never includes secrets like tokens),
// and (3) a list of job names that changed (enable/schedule/config).
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field, []string) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 20)

	// Telegram (never log token)
	if strings.TrimSpace(oldCfg.Telegram.PollTimeout) != strings.TrimSpace(newCfg.Telegram.PollTimeout) ||
		!reflect.DeepEqual(oldCfg.Telegram.OwnerUserIDs, newCfg.Telegram.OwnerUserIDs) ||
		oldCfg.Telegram.ChatID != newCfg.Telegram.ChatID ||
		strings.TrimSpace(oldCfg.Telegram.GroupLog) != strings.TrimSpace(newCfg.Telegram.GroupLog) {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.String("telegram.poll_timeout", strings.TrimSpace(newCfg.Telegram.PollTimeout)),
			logx.Int("telegram.owner_count", len(newCfg.Telegram.OwnerUserIDs)),
			logx.Bool("telegram.chat_id_set", newCfg.Telegram.ChatID != 0),
			logx.Bool("telegram.group_log_set", strings.TrimSpace(newCfg.Telegram.GroupLog) != ""),
		)
	}

	// Logging
	if oldCfg.Logging.Level != newCfg.Logging.Level ||
		oldCfg.Logging.Console != newCfg.Logging.Console ||
		oldCfg.Logging.File.Enabled != newCfg.Logging.File.Enabled ||
		strings.TrimSpace(oldCfg.Logging.File.Path) != strings.TrimSpace(newCfg.Logging.File.Path) ||
		oldCfg.Logging.Telegram.Enabled != newCfg.Logging.Telegram.Enabled ||
		oldCfg.Logging.Telegram.ThreadID != newCfg.Logging.Telegram.ThreadID ||
		oldCfg.Logging.Telegram.MinLevel != newCfg.Logging.Telegram.MinLevel ||
		oldCfg.Logging.Telegram.RatePerSec != newCfg.Logging.Telegram.RatePerSec {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logx.telegram_enabled", newCfg.Logging.Telegram.Enabled),
		)
	}

	// Scheduler (triggers + executor)
	if !reflect.DeepEqual(oldCfg.Scheduler, newCfg.Scheduler) {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.Bool("scheduler.enabled", newCfg.Scheduler.Enabled),
			logx.String("scheduler.timezone", strings.TrimSpace(newCfg.Scheduler.Timezone)),
			logx.Int("scheduler.workers", newCfg.Scheduler.Workers),
			logx.String("scheduler.default_timeout", strings.TrimSpace(newCfg.Scheduler.DefaultTimeout)),
			logx.Int("scheduler.history_size", newCfg.Scheduler.HistorySize),
			logx.Int("scheduler.retry_max", newCfg.Scheduler.RetryMax),
		)
	}

	// Notifier (async pipeline)
	// Note: section may be nil (omitted). Treat nil as runtime defaults for a more accurate summary.
	defN := &NotifierConfig{
		Enabled:         true,
		Workers:         2,
		QueueSize:       512,
		RatePerSec:      3,
		RetryMax:        3,
		RetryBase:       "500ms",
		RetryMaxDelay:   "10s",
		DedupWindow:     "1m",
		DedupMaxEntries: 2000,
		PersistDedup:    false,
	}
	oldN := oldCfg.Notifier
	newN := newCfg.Notifier
	if oldN == nil {
		oldN = defN
	}
	if newN == nil {
		newN = defN
	}
	if !reflect.DeepEqual(*oldN, *newN) {
		changed = append(changed, "notifier")
		attrs = append(attrs,
			logx.Bool("notifier.enabled", newN.Enabled),
			logx.Int("notifier.workers", newN.Workers),
			logx.Int("notifier.queue_size", newN.QueueSize),
			logx.Int("notifier.rate_per_sec", newN.RatePerSec),
			logx.Int("notifier.retry_max", newN.RetryMax),
			logx.Bool("notifier.persist_dedup", newN.PersistDedup),
		)
	}

	// Storage (persistence)
	oldS := oldCfg.Storage
	newS := newCfg.Storage
	// Nil means disabled.
	var oDriver, nDriver, oBusy, nBusy string
	var oPathSet, nPathSet bool
	if oldS != nil {
		oDriver = strings.TrimSpace(oldS.Driver)
		oBusy = strings.TrimSpace(oldS.BusyTimeout)
		oPathSet = strings.TrimSpace(oldS.Path) != ""
	}
	if newS != nil {
		nDriver = strings.TrimSpace(newS.Driver)
		nBusy = strings.TrimSpace(newS.BusyTimeout)
		nPathSet = strings.TrimSpace(newS.Path) != ""
	}
	if oDriver != nDriver || oBusy != nBusy || oPathSet != nPathSet {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", nDriver),
			logx.Bool("storage.path_set", nPathSet),
			logx.String("storage.busy_timeout", nBusy),
		)
	}

	// LLM (never log api_key)
	if (strings.TrimSpace(oldCfg.LLM.APIKey) != "") != (strings.TrimSpace(newCfg.LLM.APIKey) != "") ||
		strings.TrimSpace(oldCfg.LLM.Model) != strings.TrimSpace(newCfg.LLM.Model) ||
		strings.TrimSpace(oldCfg.LLM.Endpoint) != strings.TrimSpace(newCfg.LLM.Endpoint) ||
		strings.TrimSpace(oldCfg.LLM.Timeout) != strings.TrimSpace(newCfg.LLM.Timeout) ||
		oldCfg.LLM.RetryMax != newCfg.LLM.RetryMax ||
		strings.TrimSpace(oldCfg.LLM.RetryDelay) != strings.TrimSpace(newCfg.LLM.RetryDelay) {
		changed = append(changed, "llm")
		attrs = append(attrs,
			logx.Bool("llm.api_key_set", strings.TrimSpace(newCfg.LLM.APIKey) != ""),
			logx.String("llm.model", strings.TrimSpace(newCfg.LLM.Model)),
			logx.Int("llm.retry_max", newCfg.LLM.RetryMax),
		)
	}

	// Fetch
	if !reflect.DeepEqual(oldCfg.Fetch, newCfg.Fetch) {
		changed = append(changed, "fetch")
		attrs = append(attrs,
			logx.String("fetch.timeout", strings.TrimSpace(newCfg.Fetch.Timeout)),
			logx.Int("fetch.min_content_length", newCfg.Fetch.MinContentLength),
		)
	}

	// Holidays
	if !reflect.DeepEqual(oldCfg.Holidays, newCfg.Holidays) {
		changed = append(changed, "holidays")
		attrs = append(attrs, logx.Int("holidays.count", len(newCfg.Holidays)))
	}

	// Jobs (summarize only; details at debug)
	jobChanged := diffJobs(oldCfg.Jobs, newCfg.Jobs)
	if len(jobChanged) > 0 {
		changed = append(changed, "jobs")
		attrs = append(attrs,
			logx.Int("jobs.changed_count", len(jobChanged)),
			logx.Int("jobs.enabled_count", countEnabled(newCfg.Jobs)),
		)
	}

	sort.Strings(changed)
	return changed, attrs, jobChanged
}

func countEnabled(m map[string]JobConfigRaw) int {
	if len(m) == 0 {
		return 0
	}
	n := 0
	for _, v := range m {
		if v.Enabled {
			n++
		}
	}
	return n
}

func diffJobs(oldM, newM map[string]JobConfigRaw) []string {
	if oldM == nil {
		oldM = map[string]JobConfigRaw{}
	}
	if newM == nil {
		newM = map[string]JobConfigRaw{}
	}

	set := map[string]struct{}{}
	for k := range oldM {
		set[k] = struct{}{}
	}
	for k := range newM {
		set[k] = struct{}{}
	}

	out := make([]string, 0, len(set))
	for name := range set {
		o := oldM[name]
		n := newM[name]
		if o.Enabled != n.Enabled || strings.TrimSpace(o.Schedule) != strings.TrimSpace(n.Schedule) {
			out = append(out, name)
			continue
		}
		if canonicalHashJSON(o.Config) != canonicalHashJSON(n.Config) {
			out = append(out, name)
			continue
		}
	}
	sort.Strings(out)
	return out
}
