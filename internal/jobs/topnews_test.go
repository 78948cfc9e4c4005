package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestTopNewsGeekNewsUntranslated(t *testing.T) {
	t.Parallel()
	geek := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssWithItems(
			`<item><title>새 프레임워크 출시</title><link>https://news.hada.io/1</link><description>&lt;p&gt;한국어 &lt;b&gt;설명&lt;/b&gt;입니다.&lt;/p&gt;</description></item>`,
		))
	}))
	defer geek.Close()
	techmeme := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssWithItems())
	}))
	defer techmeme.Close()
	hn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "[]")
	}))
	defer hn.Close()

	notif := &fakeNotifier{}
	model := &fakeLLM{}
	tn := NewTopNews(testDeps(notif, model))
	cfg := fmt.Sprintf(`{"techmeme_url":%q,"geeknews_url":%q,"hn_base_url":%q}`, techmeme.URL, geek.URL, hn.URL)
	if err := tn.Configure(json.RawMessage(cfg)); err != nil {
		t.Fatalf("Configure error: %v", err)
	}
	if err := tn.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	msgs := notif.messages()
	if len(msgs) != 3 {
		t.Fatalf("got %d notifications, want one per source", len(msgs))
	}
	geekMsg := msgs[2].Text
	if !strings.Contains(geekMsg, "Top News on GeekNews:") {
		t.Errorf("missing GeekNews title:\n%s", geekMsg)
	}
	if !strings.Contains(geekMsg, "한국어 설명입니다.") {
		t.Errorf("want tag-stripped Korean content passed through:\n%s", geekMsg)
	}
	if len(model.calls) != 0 {
		t.Errorf("GeekNews content must not be sent to the LLM, got %d calls", len(model.calls))
	}
}

func TestTopNewsHackerNews(t *testing.T) {
	t.Parallel()
	article := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><article><h1>Title</h1><p>A long enough article body for the extractor to accept it as real content.</p></article></body></html>`)
	}))
	defer article.Close()

	hn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v0/topstories.json":
			fmt.Fprint(w, "[1, 2, 3]")
		case "/v0/item/1.json":
			fmt.Fprintf(w, `{"title":"Linked story","url":%q}`, article.URL)
		case "/v0/item/2.json":
			fmt.Fprint(w, `{"title":"Ask HN: no url"}`)
		case "/v0/item/3.json":
			fmt.Fprintf(w, `{"title":"Another story","url":%q}`, article.URL)
		default:
			http.NotFound(w, r)
		}
	}))
	defer hn.Close()
	quiet := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssWithItems())
	}))
	defer quiet.Close()

	notif := &fakeNotifier{}
	tn := NewTopNews(testDeps(notif, &fakeLLM{}))
	cfg := fmt.Sprintf(`{"hn_limit":2,"techmeme_url":%q,"geeknews_url":%q,"hn_base_url":%q}`, quiet.URL, quiet.URL, hn.URL)
	if err := tn.Configure(json.RawMessage(cfg)); err != nil {
		t.Fatalf("Configure error: %v", err)
	}
	if err := tn.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	msgs := notif.messages()
	if len(msgs) != 3 {
		t.Fatalf("got %d notifications, want 3", len(msgs))
	}
	hnMsg := msgs[1].Text
	if !strings.Contains(hnMsg, "Linked story") || !strings.Contains(hnMsg, "Another story") {
		t.Errorf("missing linked stories:\n%s", hnMsg)
	}
	if strings.Contains(hnMsg, "Ask HN") {
		t.Errorf("stories without a URL must be skipped:\n%s", hnMsg)
	}
}

func TestTopNewsSourceFailureIsIsolated(t *testing.T) {
	t.Parallel()
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer down.Close()
	quiet := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssWithItems())
	}))
	defer quiet.Close()
	hn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "[]")
	}))
	defer hn.Close()

	notif := &fakeNotifier{}
	tn := NewTopNews(testDeps(notif, &fakeLLM{}))
	cfg := fmt.Sprintf(`{"techmeme_url":%q,"geeknews_url":%q,"hn_base_url":%q}`, down.URL, quiet.URL, hn.URL)
	if err := tn.Configure(json.RawMessage(cfg)); err != nil {
		t.Fatalf("Configure error: %v", err)
	}
	if err := tn.Run(context.Background()); err != nil {
		t.Fatalf("Run should succeed when other sources work, got: %v", err)
	}

	msgs := notif.messages()
	if len(msgs) != 3 {
		t.Fatalf("got %d notifications, want failure notice + 2 digests", len(msgs))
	}
	if !strings.Contains(msgs[0].Text, "Failed to get news from techmeme") {
		t.Errorf("first message should be the techmeme failure notice:\n%s", msgs[0].Text)
	}
}
