package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"briefbot/internal/config"
	"briefbot/internal/feed"
	"briefbot/internal/fetch"
	"briefbot/internal/storage"
	logx "briefbot/pkg/logx"
	"briefbot/pkg/tgtext"
)

const cannotFindContent = "Cannot find its content..."

// noDateCap limits entries taken from feeds whose items carry no usable date.
const noDateCap = 3

type techblogFeed struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	// Mode: "description" (default) uses the embedded description,
	// "full_content" uses content:encoded, "fetch" resolves the entry link
	// through the content fetcher.
	Mode string `json:"mode,omitempty"`
}

type techblogConfig struct {
	Feeds   []techblogFeed `json:"feeds"`
	Window  string         `json:"window,omitempty"`   // Go duration, default 24h
	SeenTTL string         `json:"seen_ttl,omitempty"` // Go duration, default 72h
}

// TechBlog sends a per-feed digest of recent engineering blog posts,
// summarized and translated by the LLM.
type TechBlog struct {
	deps    Deps
	feeds   []techblogFeed
	window  time.Duration
	seenTTL time.Duration
}

func NewTechBlog(deps Deps) *TechBlog {
	return &TechBlog{deps: deps}
}

func (t *TechBlog) Name() string { return "techblog" }

func (t *TechBlog) Configure(raw json.RawMessage) error {
	cfg, err := config.DecodeJobConfig[techblogConfig](raw)
	if err != nil {
		return err
	}
	if len(cfg.Feeds) == 0 {
		return errors.New("techblog: at least one feed required")
	}
	for _, f := range cfg.Feeds {
		if f.Name == "" || f.URL == "" {
			return fmt.Errorf("techblog: feed needs name and url (got %+v)", f)
		}
		switch f.Mode {
		case "", "description", "full_content", "fetch":
		default:
			return fmt.Errorf("techblog: feed %s: unknown mode %q", f.Name, f.Mode)
		}
	}
	t.window = 24 * time.Hour
	if cfg.Window != "" {
		d, err := time.ParseDuration(cfg.Window)
		if err != nil || d <= 0 {
			return fmt.Errorf("techblog: invalid window %q", cfg.Window)
		}
		t.window = d
	}
	t.seenTTL = 72 * time.Hour
	if cfg.SeenTTL != "" {
		d, err := time.ParseDuration(cfg.SeenTTL)
		if err != nil || d <= 0 {
			return fmt.Errorf("techblog: invalid seen_ttl %q", cfg.SeenTTL)
		}
		t.seenTTL = d
	}
	t.feeds = cfg.Feeds
	return nil
}

// Run processes feeds independently: a broken feed produces its own failure
// notice and never blocks the remaining feeds.
func (t *TechBlog) Run(ctx context.Context) error {
	var failed []string
	for _, f := range t.feeds {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := t.runFeed(ctx, f); err != nil {
			failed = append(failed, f.Name)
			t.deps.Log.Warn("feed digest failed", logx.String("feed", f.Name), logx.Any("err", err))
			notice := fmt.Sprintf("Error on handling blog %s: %v", f.Name, err)
			if nerr := t.deps.notifyPlain(ctx, notice); nerr != nil {
				t.deps.Log.Warn("feed failure notice delivery failed", logx.String("feed", f.Name), logx.Any("err", nerr))
			}
		}
	}
	if len(failed) == len(t.feeds) && len(t.feeds) > 0 {
		return fmt.Errorf("all %d feeds failed", len(t.feeds))
	}
	return nil
}

func (t *TechBlog) runFeed(ctx context.Context, fc techblogFeed) error {
	body, err := t.deps.Fetch.Get(ctx, fc.URL)
	if err != nil {
		return err
	}
	fd, err := feed.Parse(body)
	if err != nil {
		return err
	}

	cutoff := time.Now().Add(-t.window)
	var sections []string
	undated := 0
	for _, item := range fd.Items {
		if item.Published.IsZero() {
			// Feeds without dates drift forever; cap how deep we read.
			undated++
			if undated > noDateCap {
				break
			}
		} else if item.Published.Before(cutoff) {
			break
		}

		if seen, _ := storage.WasSeen(ctx, t.deps.Store, "techblog:"+fc.Name, item.GUID); seen {
			continue
		}

		section, err := t.entrySection(ctx, fc, item)
		if err != nil {
			return err
		}
		sections = append(sections, section)
		_ = storage.MarkSeen(ctx, t.deps.Store, "techblog:"+fc.Name, item.GUID, t.seenTTL)
	}

	title := string(tgtext.B("Recent updates on "+fc.Name)) + "\n"
	digest := strings.Join(sections, "")
	if digest == "" {
		digest = "no update today"
	}
	return t.deps.notifyHTML(ctx, title+digest)
}

// entrySection builds one "* title\nenglish\nkorean\n\n" block.
func (t *TechBlog) entrySection(ctx context.Context, fc techblogFeed, item feed.Item) (string, error) {
	content := t.entryContent(ctx, fc, item)
	head := entryHead(item.Title, item.Link)
	if content == "" {
		return head + cannotFindContent + "\n\n", nil
	}
	sum, err := t.deps.LLM.Summarize(ctx, content)
	if err != nil {
		return "", fmt.Errorf("summarize %q: %w", item.Title, err)
	}
	return head + string(tgtext.Esc(sum.English)) + "\n" + string(tgtext.Esc(sum.Korean)) + "\n\n", nil
}

func (t *TechBlog) entryContent(ctx context.Context, fc techblogFeed, item feed.Item) string {
	switch fc.Mode {
	case "full_content":
		if item.Content != "" {
			return item.Content
		}
		return item.Description
	case "fetch":
		text, err := t.deps.Fetch.ReadableContent(ctx, item.Link)
		if err != nil {
			if !errors.Is(err, fetch.ErrContentNotFound) {
				t.deps.Log.Debug("content fetch failed", logx.String("link", item.Link), logx.Any("err", err))
			}
			return ""
		}
		return text
	default:
		return item.Description
	}
}
