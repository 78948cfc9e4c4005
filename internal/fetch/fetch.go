// Package fetch retrieves web pages and extracts their readable content.
//
// Extraction works in two steps: goquery removes noise elements and picks the
// main content container, then html-to-markdown flattens the fragment into
// readable text. Pages whose extracted text is too short are reported as
// ErrContentNotFound so callers can fall back to feed summaries.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
)

// ErrContentNotFound is returned when a page yields no usable main content.
var ErrContentNotFound = errors.New("fetch: content not found")

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36"

// maxBodySize caps response reads; pages larger than this are truncated.
const maxBodySize = 8 << 20

// noiseSelectors are elements removed before content extraction.
var noiseSelectors = []string{
	"script", "style", "noscript",
	"nav", "footer", "header", "aside",
	"iframe", "svg", "canvas",
	"form", "button", "input", "select", "textarea",
	".sidebar", ".menu", ".navigation", ".ads", ".advertisement", ".comments",
}

type Config struct {
	Timeout          time.Duration // HTTP timeout (default 15s)
	UserAgent        string        // defaults to a browser UA
	MinContentLength int           // minimum runes of extracted text (default 100)
}

type Client struct {
	hc        *http.Client
	userAgent string
	minLen    int
}

func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	minLen := cfg.MinContentLength
	if minLen <= 0 {
		minLen = 100
	}
	return &Client{
		hc:        &http.Client{Timeout: timeout},
		userAgent: ua,
		minLen:    minLen,
	}
}

// Get performs an HTTP GET and returns the response body. Non-2xx statuses
// are errors.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: read body: %w", url, err)
	}
	return body, nil
}

// ReadableContent fetches url and returns its main content as readable text.
// Returns ErrContentNotFound when the page has no extractable body or the
// extracted text is shorter than the configured minimum.
func (c *Client) ReadableContent(ctx context.Context, url string) (string, error) {
	body, err := c.Get(ctx, url)
	if err != nil {
		return "", err
	}
	text, err := c.Extract(string(body))
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	return text, nil
}

// Extract isolates the main content of an HTML page and flattens it to text.
func (c *Client) Extract(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	for _, sel := range noiseSelectors {
		doc.Find(sel).Remove()
	}

	// Priority order: <main> is most specific, <body> the last resort.
	var content *goquery.Selection
	for _, tag := range []string{"main", "article", "body"} {
		if sel := doc.Find(tag); sel.Length() > 0 {
			content = sel.First()
			break
		}
	}
	if content == nil {
		return "", ErrContentNotFound
	}

	fragment, err := goquery.OuterHtml(content)
	if err != nil {
		return "", fmt.Errorf("serialize content: %w", err)
	}
	md, err := htmltomarkdown.ConvertString(fragment)
	if err != nil {
		return "", fmt.Errorf("convert to markdown: %w", err)
	}
	md = strings.TrimSpace(md)
	if utf8.RuneCountInString(md) < c.minLen {
		return "", ErrContentNotFound
	}
	return md, nil
}

// StripTags returns the plain text of an HTML snippet with tags removed and
// whitespace collapsed.
func StripTags(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return strings.TrimSpace(html)
	}
	text := doc.Text()
	return strings.Join(strings.Fields(text), " ")
}
