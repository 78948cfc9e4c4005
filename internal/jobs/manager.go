package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"briefbot/internal/config"
	"briefbot/internal/scheduler"
	"briefbot/internal/storage"
	logx "briefbot/pkg/logx"
)

// Manager binds registered jobs to the scheduler according to config.
type Manager struct {
	deps  Deps
	sched *scheduler.Service
	jobs  map[string]Job
	order []string
}

func NewManager(deps Deps, sched *scheduler.Service) *Manager {
	if deps.Log.IsZero() {
		deps.Log = logx.Nop()
	}
	return &Manager{
		deps:  deps,
		sched: sched,
		jobs:  map[string]Job{},
	}
}

// Register adds a job. Registration order is preserved for listings.
func (m *Manager) Register(j Job) {
	name := j.Name()
	if _, ok := m.jobs[name]; !ok {
		m.order = append(m.order, name)
	}
	m.jobs[name] = j
}

// Names returns the registered job names in registration order.
func (m *Manager) Names() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Apply (re)schedules jobs according to the jobs section of the config.
// Disabled or unconfigured jobs are unscheduled. Unknown names in the config
// are logged and skipped, never fatal: a typo must not take the bot down.
func (m *Manager) Apply(cfgs map[string]config.JobConfigRaw) {
	for name := range cfgs {
		if _, ok := m.jobs[name]; !ok {
			m.deps.Log.Warn("config references unknown job", logx.String("job", name))
		}
	}
	for _, name := range m.order {
		j := m.jobs[name]
		jc, ok := cfgs[name]
		if !ok || !jc.Enabled || jc.Schedule == "" {
			if m.sched.Remove(name) {
				m.deps.Log.Info("job unscheduled", logx.String("job", name))
			}
			continue
		}
		if err := j.Configure(jc.Config); err != nil {
			m.deps.Log.Error("job config invalid; leaving unscheduled", logx.String("job", name), logx.Any("err", err))
			m.sched.Remove(name)
			continue
		}
		run := m.wrap(name, j)
		if _, err := m.sched.AddScheduleOpt(name, jc.Schedule, 0, scheduler.TaskOptions{Overlap: scheduler.OverlapSkipIfRunning}, run); err != nil {
			m.deps.Log.Error("job schedule invalid", logx.String("job", name), logx.String("schedule", jc.Schedule), logx.Any("err", err))
		}
	}
}

// RunNow triggers a single immediate run of a registered job.
func (m *Manager) RunNow(name string) error {
	j, ok := m.jobs[name]
	if !ok {
		names := m.Names()
		sort.Strings(names)
		return fmt.Errorf("unknown job %q (have: %v)", name, names)
	}
	return m.sched.RunNow(name, 0, m.wrap(name, j))
}

// RunOnce configures and runs a job synchronously, bypassing the scheduler
// queue. Used for one-shot command line runs.
func (m *Manager) RunOnce(ctx context.Context, name string, raw json.RawMessage) error {
	j, ok := m.jobs[name]
	if !ok {
		names := m.Names()
		sort.Strings(names)
		return fmt.Errorf("unknown job %q (have: %v)", name, names)
	}
	if err := j.Configure(raw); err != nil {
		return fmt.Errorf("configure %s: %w", name, err)
	}
	return m.wrap(name, j)(ctx)
}

// wrap adds the shared run discipline around a job: audit record and a
// failure notice in the target chat when the run errors.
func (m *Manager) wrap(name string, j Job) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		start := time.Now()
		err := j.Run(ctx)
		m.audit(ctx, name, start, err)
		if err != nil {
			// Report the failure where the briefing would have landed,
			// then surface the error to the scheduler.
			notice := fmt.Sprintf("Error on handling %s: %v", name, err)
			if nerr := m.deps.notifyPlain(ctx, notice); nerr != nil {
				m.deps.Log.Warn("failure notice delivery failed", logx.String("job", name), logx.Any("err", nerr))
			}
		}
		return err
	}
}

func (m *Manager) audit(ctx context.Context, name string, start time.Time, runErr error) {
	if m.deps.Store == nil {
		return
	}
	e := storage.AuditEntry{
		At:     start,
		Job:    name,
		Action: "run",
		TookMS: time.Since(start).Milliseconds(),
	}
	if runErr != nil {
		e.Fail = 1
		e.Error = runErr.Error()
	} else {
		e.OK = 1
	}
	if err := m.deps.Store.AppendAudit(ctx, e); err != nil {
		m.deps.Log.Debug("audit append failed", logx.String("job", name), logx.Any("err", err))
	}
}
