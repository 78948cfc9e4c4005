package app

import (
	"context"
	"sync"
	"testing"

	"briefbot/internal/config"
	"briefbot/internal/eventbus"
	"briefbot/internal/notifier"
	"briefbot/internal/scheduler"
	logx "briefbot/pkg/logx"
)

type captureBus struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (b *captureBus) Publish(e eventbus.Event) {
	b.mu.Lock()
	b.events = append(b.events, e)
	b.mu.Unlock()
}

func (b *captureBus) Subscribe(buffer int) (<-chan eventbus.Event, func()) {
	return make(chan eventbus.Event, buffer), func() {}
}

func (b *captureBus) byType(typ string) []eventbus.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []eventbus.Event
	for _, e := range b.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

// newTestApp wires an App without the telegram adapter: just enough for
// reload and command-text tests.
func newTestApp(t *testing.T) (*App, *captureBus) {
	t.Helper()
	bus := &captureBus{}
	log := logx.Nop()
	logSvc, _ := logx.New(logx.Config{Level: "error"}, nil)
	t.Cleanup(func() { _ = logSvc.Close() })

	a := &App{
		log:   log,
		logs:  logSvc,
		bus:   bus,
		sched: scheduler.New(scheduler.Config{}, log, bus),
		notif: notifier.New(notifier.Config{}, nil, log, bus, nil),
	}
	jobm, err := a.buildJobManager(&config.Config{})
	if err != nil {
		t.Fatalf("buildJobManager: %v", err)
	}
	a.jobm = jobm
	return a, bus
}

func TestApplyReloadPublishesConfigReloaded(t *testing.T) {
	a, bus := newTestApp(t)

	cfg := &config.Config{Notifier: &config.NotifierConfig{Enabled: false}}
	a.applyReload(context.Background(), cfg, []string{"logging"})

	events := bus.byType(eventbus.EventConfigReloaded)
	if len(events) != 1 {
		t.Fatalf("got %d %s events, want 1", len(events), eventbus.EventConfigReloaded)
	}
	e := events[0]
	if e.Time.IsZero() {
		t.Error("event has a zero timestamp")
	}
	sections, ok := e.Data.([]string)
	if !ok || len(sections) != 1 || sections[0] != "logging" {
		t.Errorf("event data = %#v, want [logging]", e.Data)
	}
}

func TestApplyReloadSwapsOwners(t *testing.T) {
	a, _ := newTestApp(t)

	cfg := &config.Config{Notifier: &config.NotifierConfig{Enabled: false}}
	cfg.Telegram.OwnerUserIDs = []int64{7, 8}
	a.applyReload(context.Background(), cfg, nil)

	if !a.isOwner(7) || !a.isOwner(8) {
		t.Error("reloaded owner ids not recognized")
	}
	if a.isOwner(9) {
		t.Error("unknown user id treated as owner")
	}
}
