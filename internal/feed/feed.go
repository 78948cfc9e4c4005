// Package feed parses RSS 2.0 and Atom documents into a common item shape.
package feed

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
)

// Item is a single feed entry normalized across RSS and Atom.
type Item struct {
	Title       string
	Link        string
	Description string
	Content     string // content:encoded (RSS) or <content> (Atom), if present
	GUID        string
	Published   time.Time // zero when the feed carries no usable date
}

// Feed is a parsed feed document.
type Feed struct {
	Title string
	Link  string
	Items []Item
}

type rssDoc struct {
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title string    `xml:"title"`
	Link  string    `xml:"link"`
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	Encoded     string `xml:"encoded"` // content:encoded
	GUID        string `xml:"guid"`
	PubDate     string `xml:"pubDate"`
	DCDate      string `xml:"date"` // dc:date
}

type atomDoc struct {
	Title   string      `xml:"title"`
	Links   []atomLink  `xml:"link"`
	Entries []atomEntry `xml:"entry"`
}

type atomLink struct {
	Rel  string `xml:"rel,attr"`
	Href string `xml:"href,attr"`
}

type atomEntry struct {
	Title     string     `xml:"title"`
	Links     []atomLink `xml:"link"`
	ID        string     `xml:"id"`
	Summary   string     `xml:"summary"`
	Content   string     `xml:"content"`
	Published string     `xml:"published"`
	Updated   string     `xml:"updated"`
}

// Parse decodes an RSS 2.0 or Atom document. The format is detected from the
// root element.
func Parse(data []byte) (*Feed, error) {
	root, err := rootElement(data)
	if err != nil {
		return nil, err
	}
	switch root {
	case "rss", "RDF":
		return parseRSS(data)
	case "feed":
		return parseAtom(data)
	default:
		return nil, fmt.Errorf("feed: unrecognized root element <%s>", root)
	}
}

func rootElement(data []byte) (string, error) {
	dec := newDecoder(data)
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", fmt.Errorf("feed: %w", err)
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se.Name.Local, nil
		}
	}
}

func newDecoder(data []byte) *xml.Decoder {
	dec := xml.NewDecoder(bytes.NewReader(data))
	// Some blog feeds still declare EUC-KR or ISO-8859-1.
	dec.CharsetReader = charset.NewReaderLabel
	return dec
}

func parseRSS(data []byte) (*Feed, error) {
	var doc rssDoc
	if err := newDecoder(data).Decode(&doc); err != nil {
		return nil, fmt.Errorf("feed: parse rss: %w", err)
	}
	f := &Feed{
		Title: strings.TrimSpace(doc.Channel.Title),
		Link:  strings.TrimSpace(doc.Channel.Link),
	}
	for _, it := range doc.Channel.Items {
		item := Item{
			Title:       strings.TrimSpace(it.Title),
			Link:        strings.TrimSpace(it.Link),
			Description: strings.TrimSpace(it.Description),
			Content:     strings.TrimSpace(it.Encoded),
			GUID:        strings.TrimSpace(it.GUID),
		}
		if item.GUID == "" {
			item.GUID = item.Link
		}
		item.Published = parseTime(it.PubDate, it.DCDate)
		f.Items = append(f.Items, item)
	}
	return f, nil
}

func parseAtom(data []byte) (*Feed, error) {
	var doc atomDoc
	if err := newDecoder(data).Decode(&doc); err != nil {
		return nil, fmt.Errorf("feed: parse atom: %w", err)
	}
	f := &Feed{
		Title: strings.TrimSpace(doc.Title),
		Link:  pickAtomLink(doc.Links),
	}
	for _, e := range doc.Entries {
		item := Item{
			Title:       strings.TrimSpace(e.Title),
			Link:        pickAtomLink(e.Links),
			Description: strings.TrimSpace(e.Summary),
			Content:     strings.TrimSpace(e.Content),
			GUID:        strings.TrimSpace(e.ID),
		}
		if item.GUID == "" {
			item.GUID = item.Link
		}
		item.Published = parseTime(e.Published, e.Updated)
		f.Items = append(f.Items, item)
	}
	return f, nil
}

// pickAtomLink prefers rel="alternate" (or no rel), falling back to the first link.
func pickAtomLink(links []atomLink) string {
	for _, l := range links {
		if l.Rel == "" || l.Rel == "alternate" {
			return strings.TrimSpace(l.Href)
		}
	}
	if len(links) > 0 {
		return strings.TrimSpace(links[0].Href)
	}
	return ""
}

var timeLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTime tries each candidate string against the known feed date layouts.
// Returns the zero time when nothing parses.
func parseTime(candidates ...string) time.Time {
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, c); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}
