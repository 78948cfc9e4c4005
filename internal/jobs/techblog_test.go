package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func rssWithItems(items ...string) string {
	return `<?xml version="1.0"?><rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/"><channel><title>Blog</title>` +
		strings.Join(items, "") + `</channel></rss>`
}

func rssItem(title, link, desc string, published time.Time) string {
	date := ""
	if !published.IsZero() {
		date = "<pubDate>" + published.Format(time.RFC1123Z) + "</pubDate>"
	}
	return fmt.Sprintf(`<item><title>%s</title><link>%s</link><description>%s</description>%s</item>`, title, link, desc, date)
}

func TestTechBlogDigest(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()
	body := rssWithItems(
		rssItem("Fresh post", "https://b.example/fresh", "A fresh engineering post body.", now.Add(-2*time.Hour)),
		rssItem("Stale post", "https://b.example/stale", "Too old to include.", now.Add(-48*time.Hour)),
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, body)
	}))
	defer srv.Close()

	notif := &fakeNotifier{}
	model := &fakeLLM{}
	tb := NewTechBlog(testDeps(notif, model))
	cfg := fmt.Sprintf(`{"feeds":[{"name":"Example Blog","url":%q}]}`, srv.URL)
	if err := tb.Configure(json.RawMessage(cfg)); err != nil {
		t.Fatalf("Configure error: %v", err)
	}
	if err := tb.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	msgs := notif.messages()
	if len(msgs) != 1 {
		t.Fatalf("got %d notifications, want 1", len(msgs))
	}
	text := msgs[0].Text
	if !strings.Contains(text, "Recent updates on Example Blog") {
		t.Errorf("missing title:\n%s", text)
	}
	if !strings.Contains(text, "Fresh post") {
		t.Errorf("missing fresh entry:\n%s", text)
	}
	if strings.Contains(text, "Stale post") {
		t.Errorf("stale entry should be outside the 24h window:\n%s", text)
	}
	if !strings.Contains(text, "summary") || !strings.Contains(text, "요약") {
		t.Errorf("missing summary lines:\n%s", text)
	}
}

func TestTechBlogNoUpdate(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssWithItems())
	}))
	defer srv.Close()

	notif := &fakeNotifier{}
	tb := NewTechBlog(testDeps(notif, &fakeLLM{}))
	cfg := fmt.Sprintf(`{"feeds":[{"name":"Quiet Blog","url":%q}]}`, srv.URL)
	if err := tb.Configure(json.RawMessage(cfg)); err != nil {
		t.Fatalf("Configure error: %v", err)
	}
	if err := tb.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	msgs := notif.messages()
	if len(msgs) != 1 {
		t.Fatalf("got %d notifications, want 1", len(msgs))
	}
	if !strings.Contains(msgs[0].Text, "no update today") {
		t.Errorf("want 'no update today' fallback, got:\n%s", msgs[0].Text)
	}
}

func TestTechBlogEmptyContentLine(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssWithItems(rssItem("No body", "https://b.example/empty", "", now.Add(-time.Hour))))
	}))
	defer srv.Close()

	notif := &fakeNotifier{}
	model := &fakeLLM{}
	tb := NewTechBlog(testDeps(notif, model))
	cfg := fmt.Sprintf(`{"feeds":[{"name":"Example Blog","url":%q}]}`, srv.URL)
	if err := tb.Configure(json.RawMessage(cfg)); err != nil {
		t.Fatalf("Configure error: %v", err)
	}
	if err := tb.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	msgs := notif.messages()
	if len(msgs) != 1 {
		t.Fatalf("got %d notifications, want 1", len(msgs))
	}
	if !strings.Contains(msgs[0].Text, cannotFindContent) {
		t.Errorf("want %q line, got:\n%s", cannotFindContent, msgs[0].Text)
	}
	if len(model.calls) != 0 {
		t.Errorf("LLM should not be called for empty content, got %d calls", len(model.calls))
	}
}

func TestTechBlogFeedFailureIsIsolated(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssWithItems(rssItem("Working", "https://b.example/ok", "Post body text.", now.Add(-time.Hour))))
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer bad.Close()

	notif := &fakeNotifier{}
	tb := NewTechBlog(testDeps(notif, &fakeLLM{}))
	cfg := fmt.Sprintf(`{"feeds":[{"name":"Broken","url":%q},{"name":"Working","url":%q}]}`, bad.URL, good.URL)
	if err := tb.Configure(json.RawMessage(cfg)); err != nil {
		t.Fatalf("Configure error: %v", err)
	}
	if err := tb.Run(context.Background()); err != nil {
		t.Fatalf("Run should succeed when at least one feed works, got: %v", err)
	}

	msgs := notif.messages()
	if len(msgs) != 2 {
		t.Fatalf("got %d notifications, want failure notice + digest", len(msgs))
	}
	if !strings.Contains(msgs[0].Text, "Error on handling blog Broken") {
		t.Errorf("first message should be the failure notice, got:\n%s", msgs[0].Text)
	}
	if !strings.Contains(msgs[1].Text, "Working") {
		t.Errorf("second message should be the working digest, got:\n%s", msgs[1].Text)
	}
}

func TestTechBlogUndatedCap(t *testing.T) {
	t.Parallel()
	var items []string
	for i := 0; i < 6; i++ {
		items = append(items, rssItem(fmt.Sprintf("Post %d", i), fmt.Sprintf("https://b.example/%d", i), "Body text here.", time.Time{}))
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssWithItems(items...))
	}))
	defer srv.Close()

	notif := &fakeNotifier{}
	tb := NewTechBlog(testDeps(notif, &fakeLLM{}))
	cfg := fmt.Sprintf(`{"feeds":[{"name":"Dateless","url":%q}]}`, srv.URL)
	if err := tb.Configure(json.RawMessage(cfg)); err != nil {
		t.Fatalf("Configure error: %v", err)
	}
	if err := tb.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	msgs := notif.messages()
	if len(msgs) != 1 {
		t.Fatalf("got %d notifications, want 1", len(msgs))
	}
	n := strings.Count(msgs[0].Text, "Post ")
	if n != noDateCap {
		t.Fatalf("undated entries = %d, want cap of %d:\n%s", n, noDateCap, msgs[0].Text)
	}
}
