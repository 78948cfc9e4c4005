package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"briefbot/internal/config"
	"briefbot/internal/eventbus"
	"briefbot/internal/fetch"
	"briefbot/internal/holiday"
	"briefbot/internal/jobs"
	"briefbot/internal/llm"
	"briefbot/internal/notifier"
	rtsup "briefbot/internal/runtime/supervisor"
	"briefbot/internal/scheduler"
	"briefbot/internal/storage"
	kit "briefbot/internal/transport"
	telegram "briefbot/internal/transport/telegram/adapter"
	logx "briefbot/pkg/logx"
)

// App wires the config manager, telegram adapter, services and the briefing
// jobs together, and owns their lifecycle.
type App struct {
	cfgm *config.ConfigManager
	sup  *rtsup.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	adapter *telegram.Adapter
	sched   *scheduler.Service
	notif   *notifier.Service

	// mu guards the fields swapped on hot reload.
	mu     sync.Mutex
	jobm   *jobs.Manager
	owners []int64

	updates   chan kit.Update
	startedAt time.Time
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	bootLog := logx.NewConsole("INFO").With(logx.String("comp", "telegram"))

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, bootLog)
	if err != nil {
		return nil, err
	}

	// logx.New() calls Apply() immediately. Bootstrap with Telegram logging
	// disabled, set the target, then Apply() the final config, so an enabled
	// Telegram sink doesn't warn about a missing target during startup.
	baseLogCfg := mapLoggingConfig(cfg)
	baseLogCfg.Telegram.Enabled = false
	logSvc, log := logx.New(baseLogCfg, ad)
	log = log.With(logx.String("comp", "app"))

	if chatID, ok := groupLogChatID(cfg.Telegram.GroupLog); ok {
		logSvc.SetTelegramTarget(chatID, cfg.Logging.Telegram.ThreadID)
	}
	logSvc.Apply(mapLoggingConfig(cfg))

	bus := eventbus.New()

	var store storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		store = st
		log.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	schedCfg, err := mapSchedulerConfig(cfg)
	if err != nil {
		return nil, err
	}
	schedSvc := scheduler.New(schedCfg, log.With(logx.String("comp", "scheduler")), bus)

	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		return nil, err
	}
	notifSvc := notifier.New(ncfg, ad, log.With(logx.String("comp", "notifier")), bus, store)

	a := &App{
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		store:   store,
		adapter: ad,
		sched:   schedSvc,
		notif:   notifSvc,
		owners:  cfg.Telegram.OwnerUserIDs,
		updates: make(chan kit.Update, 256),
	}

	jobm, err := a.buildJobManager(cfg)
	if err != nil {
		return nil, err
	}
	a.jobm = jobm
	jobm.Apply(cfg.Jobs)

	return a, nil
}

// buildJobManager assembles the job collaborators from config and registers
// the briefing jobs. Called at boot and again when a reload touches the
// llm/fetch/holidays sections, since those collaborators are immutable
// once constructed.
func (a *App) buildJobManager(cfg *config.Config) (*jobs.Manager, error) {
	lcfg, err := mapLLMConfig(cfg)
	if err != nil {
		return nil, err
	}
	fcfg, err := mapFetchConfig(cfg)
	if err != nil {
		return nil, err
	}
	holidays, err := holiday.New(cfg.Holidays)
	if err != nil {
		return nil, err
	}
	deps := jobs.Deps{
		Log:      a.log.With(logx.String("comp", "jobs")),
		Notifier: a.notif,
		Target:   kit.ChatTarget{ChatID: cfg.Telegram.ChatID},
		LLM:      llm.New(lcfg, a.log.With(logx.String("comp", "llm"))),
		Fetch:    fetch.New(fcfg),
		Store:    a.store,
		Holidays: holidays,
	}
	m := jobs.NewManager(deps, a.sched)
	m.Register(jobs.NewWeather(deps))
	m.Register(jobs.NewTechBlog(deps))
	m.Register(jobs.NewTopNews(deps))
	return m, nil
}

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ThreadID:   cfg.Logging.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func groupLogChatID(raw string) (int64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.startedAt = time.Now()
	a.sup = rtsup.NewSupervisor(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))

	// Transactional config reload: validate before commit/publish.
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(c context.Context, cfg *config.Config) error {
		if err := config.Validate(cfg); err != nil {
			return err
		}
		if _, err := mapSchedulerConfig(cfg); err != nil {
			return err
		}
		if _, err := mapNotifierConfig(cfg); err != nil {
			return err
		}
		if _, _, err := mapStorageConfig(cfg); err != nil {
			return err
		}
		if _, err := mapLLMConfig(cfg); err != nil {
			return err
		}
		if _, err := mapFetchConfig(cfg); err != nil {
			return err
		}
		// Reject unparseable schedules before they reach the scheduler.
		for name, jc := range cfg.Jobs {
			if !jc.Enabled || strings.TrimSpace(jc.Schedule) == "" {
				continue
			}
			if _, err := scheduler.ParseSchedule(jc.Schedule); err != nil {
				return fmt.Errorf("jobs.%s.schedule: %w", name, err)
			}
		}
		return nil
	})

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}
	if a.notif.Enabled() {
		a.notif.Start(a.sup.Context())
	}
	if a.sched.Enabled() {
		a.sched.Start(a.sup.Context())
	}

	a.sup.Go0("commands.dispatch", func(c context.Context) {
		a.dispatchLoop(c)
	})

	// Debug-level event mirror; components also subscribe themselves.
	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.notifySystemd()

	a.log.Info("app started")
	return nil
}

// notifySystemd reports readiness and starts watchdog pings when running
// under systemd. Outside systemd both calls are no-ops.
func (a *App) notifySystemd() {
	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Debug("sd_notify failed", logx.Any("err", err))
	} else if ok {
		a.log.Debug("sd_notify ready sent")
	}
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return
	}
	a.sup.Go0("systemd.watchdog", func(c context.Context) {
		ticker := time.NewTicker(interval / 2)
		defer ticker.Stop()
		for {
			select {
			case <-c.Done():
				return
			case <-ticker.C:
				_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
			}
		}
	})
}

// reloadLoop applies config changes published by the watcher. Bursts are
// coalesced so only the latest config is applied.
func (a *App) reloadLoop(c context.Context, sub chan *config.Config) {
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-c.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					goto APPLY
				}
			}
		APPLY:
			sections, attrs, jobsChanged := config.SummarizeConfigChange(lastApplied, newCfg)
			if len(sections) > 0 {
				fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
				a.log.Debug("config change summary", fields...)
				if len(jobsChanged) > 0 {
					a.log.Debug("job config changes detected", logx.Any("jobs", jobsChanged))
				}
			} else {
				a.log.Debug("config reload received, but no effective changes detected")
			}
			lastApplied = newCfg

			a.applyReload(c, newCfg, sections)

			if len(sections) > 0 {
				fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
				a.log.Info("config reloaded", fields...)
			} else {
				a.log.Info("config reloaded (no changes)")
			}
		}
	}
}

func (a *App) applyReload(c context.Context, newCfg *config.Config, sections []string) {
	for _, s := range sections {
		if s == "storage" {
			a.log.Warn("storage config changed; restart required for changes to take effect")
			break
		}
	}

	// Update log target first so Apply() doesn't warn when Telegram logging
	// is enabled.
	if chatID, ok := groupLogChatID(newCfg.Telegram.GroupLog); ok {
		a.logs.SetTelegramTarget(chatID, newCfg.Logging.Telegram.ThreadID)
	} else {
		a.logs.SetTelegramTarget(0, 0)
	}
	a.logs.Apply(mapLoggingConfig(newCfg))

	a.mu.Lock()
	a.owners = newCfg.Telegram.OwnerUserIDs
	a.mu.Unlock()

	// Scheduler (live enable/disable).
	prevSchedEnabled := a.sched.Enabled()
	if schedCfg, err := mapSchedulerConfig(newCfg); err != nil {
		a.log.Warn("invalid scheduler config; keeping previous", logx.Any("err", err))
	} else {
		a.sched.Apply(schedCfg)
		if prevSchedEnabled && !schedCfg.Enabled {
			a.log.Info("scheduler disabled via config")
			stopCtx, cancel := context.WithTimeout(c, 3*time.Second)
			a.sched.Stop(stopCtx)
			cancel()
		} else if !prevSchedEnabled && schedCfg.Enabled {
			a.log.Info("scheduler enabled via config")
			a.sched.Start(c)
		}
	}

	// Notifier (live enable/disable).
	prevNotifEnabled := a.notif.Enabled()
	if ncfg, err := mapNotifierConfig(newCfg); err != nil {
		a.log.Warn("invalid notifier config; keeping previous", logx.Any("err", err))
	} else {
		a.notif.Apply(ncfg)
		if prevNotifEnabled && !ncfg.Enabled {
			a.log.Info("notifier disabled via config")
			stopCtx, cancel := context.WithTimeout(c, 3*time.Second)
			a.notif.Stop(stopCtx)
			cancel()
		} else if !prevNotifEnabled && ncfg.Enabled {
			a.log.Info("notifier enabled via config")
			a.notif.Start(c)
		}
	}

	// Jobs: rebuild the manager so llm/fetch/holidays changes take effect,
	// then reapply schedules. On build failure keep the previous collaborators
	// but still apply the new schedules.
	a.mu.Lock()
	jobm := a.jobm
	a.mu.Unlock()
	if rebuilt, err := a.buildJobManager(newCfg); err != nil {
		a.log.Warn("invalid job collaborator config; keeping previous", logx.Any("err", err))
	} else {
		jobm = rebuilt
	}
	jobm.Apply(newCfg.Jobs)
	a.mu.Lock()
	a.jobm = jobm
	a.mu.Unlock()

	a.bus.Publish(eventbus.Event{Type: eventbus.EventConfigReloaded, Time: time.Now(), Data: sections})
}

// RunOnce runs a single job synchronously and exits, for the -once flag.
// The scheduler and the update dispatcher stay down; only the notifier is
// started so the briefing can be delivered.
func (a *App) RunOnce(ctx context.Context, name string) error {
	cfg := a.cfgm.Get()
	jc, ok := cfg.Jobs[name]
	if !ok {
		return fmt.Errorf("job %q not present in config", name)
	}
	if a.notif.Enabled() {
		a.notif.Start(ctx)
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			a.notif.Stop(stopCtx)
			cancel()
		}()
	}
	a.mu.Lock()
	jobm := a.jobm
	a.mu.Unlock()
	return jobm.RunOnce(ctx, name, jc.Config)
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")

	// Cancel the run context first so background loops start unwinding.
	a.sup.Cancel()

	// Run a shutdown step with an upper bound so one component can't stall
	// the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		a.log.Debug("stop step begin", logx.String("name", name), logx.Duration("max", max))

		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			// respect the caller's deadline; never extend it
			if dl, ok := ctx.Deadline(); ok {
				rem := time.Until(dl)
				if rem <= 0 {
					max = 0
				} else if rem < max {
					max = rem
				}
			}
			if max > 0 {
				stepCtx, cancel = context.WithTimeout(ctx, max)
				defer cancel()
			}
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.String("err", err.Error()))
			}
			took := time.Since(start)
			if took >= 500*time.Millisecond {
				a.log.Info("stop step end", logx.String("name", name), logx.Duration("took", took))
			} else {
				a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", took))
			}
		case <-stepCtx.Done():
			// Contract: fn MUST honor stepCtx and return promptly. If it doesn't, log a leak signal.
			elapsed := time.Since(start)
			a.log.Warn(
				"stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.String("err", stepCtx.Err().Error()),
				logx.Duration("elapsed", elapsed),
			)
			go func() {
				err := <-done
				took := time.Since(start)
				if err != nil {
					a.log.Warn("stop step finished after deadline", logx.String("name", name), logx.String("err", err.Error()), logx.Duration("took", took))
				} else {
					a.log.Info("stop step finished after deadline", logx.String("name", name), logx.Duration("took", took))
				}
			}()
		}
	}

	step("scheduler", 2*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("notifier", 1*time.Second, func(c context.Context) error { a.notif.Stop(c); return nil })
	step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("storage", 1*time.Second, func(c context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	// Finally, wait for supervised goroutines (config watch/reload, dispatcher).
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	if a.logs != nil {
		a.logs.Close()
	}
	return nil
}
