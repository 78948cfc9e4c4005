package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const articlePage = `<!DOCTYPE html>
<html>
<head><title>Post</title><style>body { color: red }</style></head>
<body>
  <nav><a href="/">Home</a></nav>
  <article>
    <h1>Understanding connection pooling</h1>
    <p>Connection pooling keeps a set of open database connections ready for
    reuse instead of opening a fresh one per query. This avoids handshake
    latency and caps the number of concurrent connections the server sees.</p>
    <script>trackPageView();</script>
  </article>
  <footer>Copyright</footer>
</body>
</html>`

func TestExtractArticle(t *testing.T) {
	t.Parallel()
	c := New(Config{MinContentLength: 50})
	got, err := c.Extract(articlePage)
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}
	if !strings.Contains(got, "Understanding connection pooling") {
		t.Errorf("missing heading in:\n%s", got)
	}
	if !strings.Contains(got, "handshake") {
		t.Errorf("missing body text in:\n%s", got)
	}
	if strings.Contains(got, "trackPageView") || strings.Contains(got, "Copyright") || strings.Contains(got, "color: red") {
		t.Errorf("noise not stripped:\n%s", got)
	}
}

func TestExtractTooShort(t *testing.T) {
	t.Parallel()
	c := New(Config{MinContentLength: 100})
	_, err := c.Extract(`<html><body><p>tiny</p></body></html>`)
	if !errors.Is(err, ErrContentNotFound) {
		t.Fatalf("err = %v, want ErrContentNotFound", err)
	}
}

func TestGetStatusError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	c := New(Config{})
	if _, err := c.Get(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for 403 response")
	}
}

func TestGetSendsUserAgent(t *testing.T) {
	t.Parallel()
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := New(Config{UserAgent: "briefbot-test/1.0"})
	body, err := c.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if string(body) != "ok" {
		t.Fatalf("body = %q", body)
	}
	if gotUA != "briefbot-test/1.0" {
		t.Fatalf("User-Agent = %q", gotUA)
	}
}

func TestStripTags(t *testing.T) {
	t.Parallel()
	got := StripTags(`<p>Hello <b>world</b></p>
	<p>second   line</p>`)
	if got != "Hello world second line" {
		t.Fatalf("StripTags = %q", got)
	}
}
