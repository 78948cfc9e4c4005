// Package jobs implements the scheduled briefing jobs and their manager.
//
// Each job decodes its own config blob, runs under the scheduler's worker
// pool, and delivers results through the notifier. A failed run produces a
// plain-text failure notice in the target chat instead of silent loss.
package jobs

import (
	"context"
	"encoding/json"

	"briefbot/internal/fetch"
	"briefbot/internal/holiday"
	"briefbot/internal/llm"
	"briefbot/internal/storage"
	kit "briefbot/internal/transport"
	logx "briefbot/pkg/logx"
)

// Notifier is the delivery surface jobs depend on.
type Notifier interface {
	Notify(ctx context.Context, n kit.Notification) error
}

// Job is a schedulable unit of work.
type Job interface {
	Name() string
	// Configure applies the job's raw config blob. Called before scheduling
	// and again on hot reload.
	Configure(raw json.RawMessage) error
	Run(ctx context.Context) error
}

// Deps are the shared collaborators handed to every job.
type Deps struct {
	Log      logx.Logger
	Notifier Notifier
	Target   kit.ChatTarget
	LLM      llm.Summarizer
	Fetch    *fetch.Client
	Store    storage.Store
	Holidays *holiday.Calendar
}

// notifyHTML sends an HTML-formatted message to the target chat.
func (d Deps) notifyHTML(ctx context.Context, text string) error {
	if d.Notifier == nil {
		return nil
	}
	return d.Notifier.Notify(ctx, kit.Notification{
		Channel: "telegram",
		Target:  d.Target,
		Text:    text,
		Options: &kit.SendOptions{ParseMode: "HTML", DisablePreview: true},
	})
}

// notifyPlain sends an unformatted message, used for failure notices.
func (d Deps) notifyPlain(ctx context.Context, text string) error {
	if d.Notifier == nil {
		return nil
	}
	return d.Notifier.Notify(ctx, kit.Notification{
		Channel: "telegram",
		Target:  d.Target,
		Text:    text,
	})
}
