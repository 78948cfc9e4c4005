package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	kit "briefbot/internal/transport"
	logx "briefbot/pkg/logx"
	"briefbot/pkg/tgtext"
)

// dispatchLoop handles operator commands from the update stream. Commands are
// owner-only; anything else is dropped.
func (a *App) dispatchLoop(c context.Context) {
	for {
		select {
		case <-c.Done():
			return
		case up, ok := <-a.updates:
			if !ok {
				return
			}
			if up.Kind != kit.UpdateMessage || up.Message == nil {
				continue
			}
			msg := up.Message
			if !strings.HasPrefix(msg.Text, "/") {
				continue
			}
			if !a.isOwner(msg.FromID) {
				a.log.Debug("command from non-owner ignored",
					logx.Int64("from", msg.FromID), logx.String("username", msg.FromUsername))
				continue
			}
			a.handleCommand(c, msg)
		}
	}
}

func (a *App) isOwner(userID int64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, id := range a.owners {
		if id == userID {
			return true
		}
	}
	return false
}

func (a *App) handleCommand(c context.Context, msg *kit.Message) {
	fields := strings.Fields(msg.Text)
	if len(fields) == 0 {
		return
	}
	// Accept both "/status" and "/status@botname".
	cmd := fields[0]
	if at := strings.IndexByte(cmd, '@'); at > 0 {
		cmd = cmd[:at]
	}
	args := fields[1:]

	ctx, cancel := context.WithTimeout(c, 10*time.Second)
	defer cancel()

	switch cmd {
	case "/status":
		a.reply(ctx, msg, a.statusText())
	case "/jobs":
		a.reply(ctx, msg, a.jobsText())
	case "/run":
		if len(args) != 1 {
			a.reply(ctx, msg, tgtext.Esc("usage: /run <job>").String())
			return
		}
		a.mu.Lock()
		jobm := a.jobm
		a.mu.Unlock()
		if err := jobm.RunNow(args[0]); err != nil {
			a.reply(ctx, msg, tgtext.Esc(err.Error()).String())
			return
		}
		a.reply(ctx, msg, tgtext.JoinH("", tgtext.Esc("queued "), tgtext.Code(args[0])).String())
	case "/help":
		a.reply(ctx, msg, helpText())
	default:
		a.log.Debug("unknown command", logx.String("cmd", cmd))
	}
}

// reply answers in the chat (and thread) the command came from.
func (a *App) reply(ctx context.Context, msg *kit.Message, html string) {
	err := a.notif.Notify(ctx, kit.Notification{
		Channel: "telegram",
		Target:  kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID},
		Text:    html,
		Options: &kit.SendOptions{ParseMode: "HTML", DisablePreview: true},
	})
	if err != nil {
		a.log.Warn("command reply failed", logx.Any("err", err))
	}
}

func helpText() string {
	lines := []tgtext.H{
		tgtext.B("Commands"),
		tgtext.JoinH(" — ", tgtext.Code("/status"), tgtext.Esc("uptime and service state")),
		tgtext.JoinH(" — ", tgtext.Code("/jobs"), tgtext.Esc("schedules and recent runs")),
		tgtext.JoinH(" — ", tgtext.Code("/run <job>"), tgtext.Esc("trigger a job now")),
		tgtext.JoinH(" — ", tgtext.Code("/help"), tgtext.Esc("this message")),
	}
	return tgtext.JoinH("\n", lines...).String()
}

func (a *App) statusText() string {
	snap := a.sched.Snapshot()

	onOff := func(b bool) string {
		if b {
			return "on"
		}
		return "off"
	}
	storageState := "off"
	if a.store != nil {
		storageState = "on"
	}

	lines := []tgtext.H{
		tgtext.B("briefbot status"),
		tgtext.Esc(fmt.Sprintf("uptime: %s", time.Since(a.startedAt).Round(time.Second))),
		tgtext.Esc(fmt.Sprintf("scheduler: %s (%d workers, queue %d/%d, tz %s)",
			onOff(snap.Enabled), snap.Workers, snap.QueueLen, snap.QueueCap, snap.Timezone)),
		tgtext.Esc(fmt.Sprintf("notifier: %s", onOff(a.notif.Enabled()))),
		tgtext.Esc(fmt.Sprintf("storage: %s", storageState)),
		tgtext.Esc(fmt.Sprintf("schedules: %d", len(snap.Schedules))),
	}
	return tgtext.JoinH("\n", lines...).String()
}

func (a *App) jobsText() string {
	snap := a.sched.Snapshot()
	a.mu.Lock()
	jobm := a.jobm
	a.mu.Unlock()

	scheduled := make(map[string]int, len(snap.Schedules))
	for i, si := range snap.Schedules {
		scheduled[si.Name] = i
	}

	var lines []tgtext.H
	lines = append(lines, tgtext.B("Jobs"))
	for _, name := range jobm.Names() {
		if i, ok := scheduled[name]; ok {
			si := snap.Schedules[i]
			next := "-"
			if !si.Next.IsZero() {
				next = si.Next.Format("2006-01-02 15:04:05")
			}
			lines = append(lines, tgtext.JoinH("", tgtext.Code(name),
				tgtext.Esc(fmt.Sprintf("  %s  next %s", si.Spec, next))))
		} else {
			lines = append(lines, tgtext.JoinH("", tgtext.Code(name), tgtext.Esc("  (unscheduled)")))
		}
	}

	out := tgtext.JoinH("\n", lines...)

	if n := len(snap.History); n > 0 {
		runs := []tgtext.H{tgtext.B("Recent runs")}
		start := n - 5
		if start < 0 {
			start = 0
		}
		for _, h := range snap.History[start:] {
			state := "ok"
			if h.Error != "" {
				state = h.Error
			}
			runs = append(runs, tgtext.Esc(fmt.Sprintf("%s  %s  %s  %s",
				h.Started.Format("01-02 15:04:05"), h.Name, h.Duration.Round(time.Millisecond), state)))
		}
		out += "\n\n" + tgtext.JoinH("\n", runs...)
	}
	return out.String()
}
