package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"briefbot/internal/scheduler"
	logx "briefbot/pkg/logx"
)

type stubJob struct {
	name   string
	runErr error
	ran    int
}

func (s *stubJob) Name() string                     { return s.name }
func (s *stubJob) Configure(_ json.RawMessage) error { return nil }
func (s *stubJob) Run(_ context.Context) error {
	s.ran++
	return s.runErr
}

func TestManagerRunNowUnknownJob(t *testing.T) {
	t.Parallel()
	sched := scheduler.New(scheduler.Config{}, logx.Nop(), nil)
	m := NewManager(testDeps(&fakeNotifier{}, &fakeLLM{}), sched)
	m.Register(&stubJob{name: "weather"})

	err := m.RunNow("nope")
	if err == nil || !strings.Contains(err.Error(), "unknown job") {
		t.Fatalf("err = %v, want unknown job error", err)
	}
}

func TestManagerWrapSendsFailureNotice(t *testing.T) {
	t.Parallel()
	notif := &fakeNotifier{}
	sched := scheduler.New(scheduler.Config{}, logx.Nop(), nil)
	m := NewManager(testDeps(notif, &fakeLLM{}), sched)

	j := &stubJob{name: "topnews", runErr: errors.New("feed exploded")}
	m.Register(j)

	err := m.wrap("topnews", j)(context.Background())
	if err == nil {
		t.Fatal("wrapped run should propagate the job error")
	}
	if j.ran != 1 {
		t.Fatalf("job ran %d times, want 1", j.ran)
	}
	msgs := notif.messages()
	if len(msgs) != 1 {
		t.Fatalf("got %d notifications, want 1 failure notice", len(msgs))
	}
	if !strings.Contains(msgs[0].Text, "Error on handling topnews: feed exploded") {
		t.Fatalf("unexpected notice: %q", msgs[0].Text)
	}
	if msgs[0].Options != nil {
		t.Error("failure notice should be plain text")
	}
}

func TestManagerWrapSuccessSendsNothing(t *testing.T) {
	t.Parallel()
	notif := &fakeNotifier{}
	sched := scheduler.New(scheduler.Config{}, logx.Nop(), nil)
	m := NewManager(testDeps(notif, &fakeLLM{}), sched)

	j := &stubJob{name: "weather"}
	m.Register(j)

	if err := m.wrap("weather", j)(context.Background()); err != nil {
		t.Fatalf("wrapped run error: %v", err)
	}
	if len(notif.messages()) != 0 {
		t.Fatal("successful run should not produce a notice")
	}
}

func TestManagerNamesOrder(t *testing.T) {
	t.Parallel()
	sched := scheduler.New(scheduler.Config{}, logx.Nop(), nil)
	m := NewManager(testDeps(&fakeNotifier{}, &fakeLLM{}), sched)
	m.Register(&stubJob{name: "weather"})
	m.Register(&stubJob{name: "techblog"})
	m.Register(&stubJob{name: "topnews"})

	got := m.Names()
	want := []string{"weather", "techblog", "topnews"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Names() = %v, want %v", got, want)
		}
	}
}
