package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"briefbot/internal/config"
	"briefbot/internal/feed"
	"briefbot/internal/fetch"
	logx "briefbot/pkg/logx"
	"briefbot/pkg/tgtext"
)

const (
	techmemeFeedURL   = "https://www.techmeme.com/feed.xml"
	geekNewsFeedURL   = "https://feeds.feedburner.com/geeknews-feed"
	hnTopStoriesURL   = "https://hacker-news.firebaseio.com/v0/topstories.json"
	hnItemURLPattern  = "https://hacker-news.firebaseio.com/v0/item/%d.json"
	defaultHNTopCount = 10
)

type topNewsConfig struct {
	HNLimit int `json:"hn_limit,omitempty"` // top HN stories to include, default 10

	TechmemeURL string `json:"techmeme_url,omitempty"` // overrides for tests
	GeekNewsURL string `json:"geeknews_url,omitempty"`
	HNBaseURL   string `json:"hn_base_url,omitempty"`
}

// TopNews aggregates Techmeme, Hacker News and GeekNews into three digest
// messages. Each source fails independently.
type TopNews struct {
	deps Deps
	cfg  topNewsConfig
}

func NewTopNews(deps Deps) *TopNews {
	return &TopNews{deps: deps}
}

func (t *TopNews) Name() string { return "topnews" }

func (t *TopNews) Configure(raw json.RawMessage) error {
	cfg, err := config.DecodeJobConfig[topNewsConfig](raw)
	if err != nil {
		return err
	}
	if cfg.HNLimit <= 0 {
		cfg.HNLimit = defaultHNTopCount
	}
	if cfg.TechmemeURL == "" {
		cfg.TechmemeURL = techmemeFeedURL
	}
	if cfg.GeekNewsURL == "" {
		cfg.GeekNewsURL = geekNewsFeedURL
	}
	t.cfg = cfg
	return nil
}

func (t *TopNews) Run(ctx context.Context) error {
	sources := []struct {
		name string
		run  func(context.Context) error
	}{
		{"techmeme", t.techmeme},
		{"Hacker News", t.hackerNews},
		{"GeekNews", t.geekNews},
	}
	failed := 0
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := src.run(ctx); err != nil {
			failed++
			t.deps.Log.Warn("news source failed", logx.String("source", src.name), logx.Any("err", err))
			notice := fmt.Sprintf("Failed to get news from %s: %v", src.name, err)
			if nerr := t.deps.notifyPlain(ctx, notice); nerr != nil {
				t.deps.Log.Warn("news failure notice delivery failed", logx.String("source", src.name), logx.Any("err", nerr))
			}
		}
	}
	if failed == len(sources) {
		return errors.New("all news sources failed")
	}
	return nil
}

func (t *TopNews) techmeme(ctx context.Context) error {
	fd, err := t.fetchFeed(ctx, t.cfg.TechmemeURL)
	if err != nil {
		return err
	}
	var b strings.Builder
	for _, item := range fd.Items {
		description := fetch.StripTags(item.Description)
		if description == "" {
			b.WriteString(entryHead(item.Title, item.Link) + cannotFindContent + "\n\n")
			continue
		}
		sum, err := t.deps.LLM.Summarize(ctx, description)
		if err != nil {
			return fmt.Errorf("summarize %q: %w", item.Title, err)
		}
		b.WriteString(entryHead(item.Title, item.Link))
		b.WriteString(string(tgtext.Esc(sum.English)) + "\n" + string(tgtext.Esc(sum.Korean)) + "\n\n")
	}
	title := string(tgtext.B("Top News on Techmeme:")) + "\n"
	return t.deps.notifyHTML(ctx, title+b.String())
}

func (t *TopNews) hackerNews(ctx context.Context) error {
	idsURL := hnTopStoriesURL
	if t.cfg.HNBaseURL != "" {
		idsURL = t.cfg.HNBaseURL + "/v0/topstories.json"
	}
	body, err := t.deps.Fetch.Get(ctx, idsURL)
	if err != nil {
		return err
	}
	var ids []int64
	if err := json.Unmarshal(body, &ids); err != nil {
		return fmt.Errorf("decode top story ids: %w", err)
	}

	var b strings.Builder
	count := 0
	for _, id := range ids {
		if count >= t.cfg.HNLimit {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		item, err := t.hnItem(ctx, id)
		if err != nil {
			return err
		}
		// Ask/Show HN posts have no URL; skip them without using up the limit.
		if item.URL == "" {
			continue
		}
		count++

		content, err := t.deps.Fetch.ReadableContent(ctx, item.URL)
		if err != nil {
			b.WriteString(entryHead(item.Title, item.URL) + cannotFindContent + "\n\n")
			continue
		}
		sum, err := t.deps.LLM.Summarize(ctx, content)
		if err != nil {
			return fmt.Errorf("summarize %q: %w", item.Title, err)
		}
		b.WriteString(entryHead(item.Title, item.URL))
		b.WriteString(string(tgtext.Esc(sum.English)) + "\n" + string(tgtext.Esc(sum.Korean)) + "\n\n")
	}
	title := string(tgtext.B("Top News on Hacker News:")) + "\n"
	return t.deps.notifyHTML(ctx, title+b.String())
}

type hnStory struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

func (t *TopNews) hnItem(ctx context.Context, id int64) (hnStory, error) {
	u := fmt.Sprintf(hnItemURLPattern, id)
	if t.cfg.HNBaseURL != "" {
		u = fmt.Sprintf("%s/v0/item/%d.json", t.cfg.HNBaseURL, id)
	}
	body, err := t.deps.Fetch.Get(ctx, u)
	if err != nil {
		return hnStory{}, err
	}
	var s hnStory
	if err := json.Unmarshal(body, &s); err != nil {
		return hnStory{}, fmt.Errorf("decode item %d: %w", id, err)
	}
	return s, nil
}

// geekNews passes content through untranslated: the source is already Korean.
func (t *TopNews) geekNews(ctx context.Context) error {
	fd, err := t.fetchFeed(ctx, t.cfg.GeekNewsURL)
	if err != nil {
		return err
	}
	var b strings.Builder
	for _, item := range fd.Items {
		content := item.Content
		if content == "" {
			content = item.Description
		}
		b.WriteString(entryHead(item.Title, item.Link))
		b.WriteString(string(tgtext.Esc(fetch.StripTags(content))) + "\n\n")
	}
	title := string(tgtext.B("Top News on GeekNews:")) + "\n"
	return t.deps.notifyHTML(ctx, title+b.String())
}

func (t *TopNews) fetchFeed(ctx context.Context, url string) (*feed.Feed, error) {
	body, err := t.deps.Fetch.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	return feed.Parse(body)
}

func entryHead(title, link string) string {
	return "* " + string(tgtext.Link(title, link)) + "\n"
}
