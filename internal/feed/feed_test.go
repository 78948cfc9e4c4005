package feed

import (
	"testing"
	"time"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/">
  <channel>
    <title>Engineering Blog</title>
    <link>https://blog.example.com</link>
    <item>
      <title>Scaling the ingest pipeline</title>
      <link>https://blog.example.com/posts/ingest</link>
      <guid isPermaLink="false">tag:blog.example.com,2026:ingest</guid>
      <description>How we rebuilt ingest.</description>
      <content:encoded><![CDATA[<p>Full <b>post</b> body.</p>]]></content:encoded>
      <pubDate>Mon, 24 Aug 2026 09:30:00 +0900</pubDate>
    </item>
    <item>
      <title>No date post</title>
      <link>https://blog.example.com/posts/nodate</link>
    </item>
  </channel>
</rss>`

const sampleAtom = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Release Notes</title>
  <link rel="self" href="https://example.com/atom.xml"/>
  <link rel="alternate" href="https://example.com/releases"/>
  <entry>
    <title>v2.1.0</title>
    <id>urn:release:2.1.0</id>
    <link rel="alternate" href="https://example.com/releases/2.1.0"/>
    <summary>Bug fixes.</summary>
    <published>2026-08-20T12:00:00Z</published>
  </entry>
</feed>`

func TestParseRSS(t *testing.T) {
	t.Parallel()
	f, err := Parse([]byte(sampleRSS))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if f.Title != "Engineering Blog" {
		t.Fatalf("Title = %q", f.Title)
	}
	if len(f.Items) != 2 {
		t.Fatalf("len(Items) = %d, want 2", len(f.Items))
	}

	it := f.Items[0]
	if it.Title != "Scaling the ingest pipeline" {
		t.Errorf("Title = %q", it.Title)
	}
	if it.GUID != "tag:blog.example.com,2026:ingest" {
		t.Errorf("GUID = %q", it.GUID)
	}
	if it.Content != "<p>Full <b>post</b> body.</p>" {
		t.Errorf("Content = %q", it.Content)
	}
	want := time.Date(2026, 8, 24, 9, 30, 0, 0, time.FixedZone("", 9*3600))
	if !it.Published.Equal(want) {
		t.Errorf("Published = %v, want %v", it.Published, want)
	}

	// item without guid falls back to link; item without date stays zero
	second := f.Items[1]
	if second.GUID != "https://blog.example.com/posts/nodate" {
		t.Errorf("GUID fallback = %q", second.GUID)
	}
	if !second.Published.IsZero() {
		t.Errorf("Published = %v, want zero", second.Published)
	}
}

func TestParseAtom(t *testing.T) {
	t.Parallel()
	f, err := Parse([]byte(sampleAtom))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if f.Link != "https://example.com/releases" {
		t.Fatalf("Link = %q, want alternate link", f.Link)
	}
	if len(f.Items) != 1 {
		t.Fatalf("len(Items) = %d, want 1", len(f.Items))
	}
	it := f.Items[0]
	if it.Link != "https://example.com/releases/2.1.0" {
		t.Errorf("Link = %q", it.Link)
	}
	if it.GUID != "urn:release:2.1.0" {
		t.Errorf("GUID = %q", it.GUID)
	}
	if it.Published.IsZero() {
		t.Error("Published is zero, want parsed RFC3339 date")
	}
}

func TestParseUnknownRoot(t *testing.T) {
	t.Parallel()
	if _, err := Parse([]byte(`<html><body>not a feed</body></html>`)); err == nil {
		t.Fatal("expected error for non-feed document")
	}
}

func TestParseTimeLayouts(t *testing.T) {
	t.Parallel()
	cases := []string{
		"Mon, 24 Aug 2026 09:30:00 +0900",
		"Mon, 24 Aug 2026 09:30:00 GMT",
		"2026-08-24T09:30:00+09:00",
		"2026-08-24",
	}
	for _, c := range cases {
		if parseTime(c).IsZero() {
			t.Errorf("parseTime(%q) returned zero", c)
		}
	}
	if !parseTime("garbage", "").IsZero() {
		t.Error("parseTime on garbage should return zero")
	}
}
