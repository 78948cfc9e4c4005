package jobs

import (
	"context"
	"sync"

	"briefbot/internal/fetch"
	"briefbot/internal/llm"
	kit "briefbot/internal/transport"
	logx "briefbot/pkg/logx"
)

type fakeNotifier struct {
	mu   sync.Mutex
	sent []kit.Notification
}

func (f *fakeNotifier) Notify(_ context.Context, n kit.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, n)
	return nil
}

func (f *fakeNotifier) messages() []kit.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]kit.Notification, len(f.sent))
	copy(out, f.sent)
	return out
}

type fakeLLM struct {
	summary llm.Summary
	brief   llm.Brief
	err     error

	mu    sync.Mutex
	calls []string
}

func (f *fakeLLM) Summarize(_ context.Context, text string) (llm.Summary, error) {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	f.mu.Unlock()
	if f.err != nil {
		return llm.Summary{}, f.err
	}
	if f.summary.English == "" {
		return llm.Summary{English: "summary", Korean: "요약"}, nil
	}
	return f.summary, nil
}

func (f *fakeLLM) WeatherBrief(_ context.Context, _ any) (llm.Brief, error) {
	if f.err != nil {
		return llm.Brief{}, f.err
	}
	return f.brief, nil
}

func testDeps(n *fakeNotifier, l *fakeLLM) Deps {
	return Deps{
		Log:      logx.Nop(),
		Notifier: n,
		Target:   kit.ChatTarget{ChatID: 42},
		LLM:      l,
		Fetch:    fetch.New(fetch.Config{MinContentLength: 10}),
	}
}
