package notifier

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	kit "briefbot/internal/transport"
	logx "briefbot/pkg/logx"
)

type recordAdapter struct {
	mu    sync.Mutex
	sent  []string
	sends chan string
	fail  int // fail the first N sends
}

func newRecordAdapter() *recordAdapter {
	return &recordAdapter{sends: make(chan string, 32)}
}

func (r *recordAdapter) Start(ctx context.Context, out chan<- kit.Update) error { return nil }
func (r *recordAdapter) Stop(ctx context.Context) error                         { return nil }

func (r *recordAdapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	r.mu.Lock()
	if r.fail > 0 {
		r.fail--
		r.mu.Unlock()
		return kit.MessageRef{}, errors.New("send failed")
	}
	r.sent = append(r.sent, text)
	r.mu.Unlock()
	r.sends <- text
	return kit.MessageRef{ChatID: to.ChatID, MessageID: 1}, nil
}

func waitSend(t *testing.T, ad *recordAdapter) string {
	t.Helper()
	select {
	case s := <-ad.sends:
		return s
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for a send")
		return ""
	}
}

func note(text string) kit.Notification {
	return kit.Notification{
		Channel: "telegram",
		Target:  kit.ChatTarget{ChatID: 42},
		Text:    text,
	}
}

func TestNotifyDelivers(t *testing.T) {
	ad := newRecordAdapter()
	s := New(Config{Enabled: true, Workers: 1, QueueSize: 8, RatePerSec: 100}, ad, logx.Nop(), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop(context.Background())

	if err := s.Notify(ctx, note("hello")); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if got := waitSend(t, ad); got != "hello" {
		t.Fatalf("sent %q", got)
	}
}

func TestNotifyDisabled(t *testing.T) {
	ad := newRecordAdapter()
	s := New(Config{Enabled: false}, ad, logx.Nop(), nil, nil)
	if err := s.Notify(context.Background(), note("x")); !errors.Is(err, ErrDisabled) {
		t.Fatalf("err = %v, want ErrDisabled", err)
	}
}

func TestNotifyBeforeStart(t *testing.T) {
	ad := newRecordAdapter()
	s := New(Config{Enabled: true}, ad, logx.Nop(), nil, nil)
	if err := s.Notify(context.Background(), note("x")); !errors.Is(err, ErrStopped) {
		t.Fatalf("err = %v, want ErrStopped", err)
	}
}

func TestNotifyRetriesFailedSend(t *testing.T) {
	ad := newRecordAdapter()
	ad.fail = 2
	s := New(Config{
		Enabled: true, Workers: 1, QueueSize: 8, RatePerSec: 100,
		RetryMax: 3, RetryBase: 10 * time.Millisecond, RetryMaxDelay: 50 * time.Millisecond,
	}, ad, logx.Nop(), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop(context.Background())

	if err := s.Notify(ctx, note("retry me")); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if got := waitSend(t, ad); got != "retry me" {
		t.Fatalf("sent %q", got)
	}
}

func TestNotifyDedupWindow(t *testing.T) {
	ad := newRecordAdapter()
	s := New(Config{
		Enabled: true, Workers: 1, QueueSize: 8, RatePerSec: 100,
		DedupWindow: time.Minute,
	}, ad, logx.Nop(), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	if err := s.Notify(ctx, note("dup")); err != nil {
		t.Fatalf("first Notify: %v", err)
	}
	// Suppressed duplicates report success: the message was already delivered.
	if err := s.Notify(ctx, note("dup")); err != nil {
		t.Fatalf("second Notify: %v", err)
	}
	if err := s.Notify(ctx, note("other")); err != nil {
		t.Fatalf("third Notify: %v", err)
	}
	waitSend(t, ad)
	waitSend(t, ad)
	s.Stop(context.Background())

	ad.mu.Lock()
	defer ad.mu.Unlock()
	if len(ad.sent) != 2 {
		t.Fatalf("sent %d messages, want 2: %v", len(ad.sent), ad.sent)
	}
}

func TestPriorityPrefix(t *testing.T) {
	ad := newRecordAdapter()
	s := New(Config{Enabled: true, Workers: 1, QueueSize: 8, RatePerSec: 100}, ad, logx.Nop(), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop(context.Background())

	n := note("urgent")
	n.Priority = 9
	if err := s.Notify(ctx, n); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	got := waitSend(t, ad)
	if !strings.HasSuffix(got, "urgent") || got == "urgent" {
		t.Fatalf("expected priority prefix on %q", got)
	}
}
