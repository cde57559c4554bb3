package collect

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/TobiSchelling/radar/internal/config"
)

const defaultTitle = "No Title"

// FeedEntry represents a parsed feed entry.
type FeedEntry struct {
	URL         string
	Title       string
	PublishedAt time.Time
	Summary     string
}

// FeedReader fetches and parses one RSS/Atom feed.
type FeedReader struct {
	url    string
	source string
	parser *gofeed.Parser
	now    func() time.Time
}

// NewFeedReader creates a reader for the configured feed.
func NewFeedReader(cfg config.Feed) *FeedReader {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	parser := gofeed.NewParser()
	parser.UserAgent = cfg.UserAgent
	parser.Client = &http.Client{Timeout: timeout}

	source := cfg.Source
	if source == "" {
		source = extractSourceName(cfg.URL)
	}
	return &FeedReader{url: cfg.URL, source: source, parser: parser, now: time.Now}
}

// Source returns the origin label stamped on discovered documents.
func (r *FeedReader) Source() string {
	return r.source
}

// URL returns the feed URL.
func (r *FeedReader) URL() string {
	return r.url
}

// Fetch downloads the feed and returns its entries in feed order.
func (r *FeedReader) Fetch(ctx context.Context) ([]FeedEntry, error) {
	feed, err := r.parser.ParseURLWithContext(r.url, ctx)
	if err != nil {
		return nil, fmt.Errorf("parsing feed %s: %w", r.url, err)
	}

	entries := make([]FeedEntry, 0, len(feed.Items))
	for _, item := range feed.Items {
		if entry := r.parseItem(item); entry != nil {
			entries = append(entries, *entry)
		}
	}
	return entries, nil
}

func (r *FeedReader) parseItem(item *gofeed.Item) *FeedEntry {
	itemURL := strings.TrimSpace(item.Link)
	if itemURL == "" {
		itemURL = strings.TrimSpace(item.GUID)
	}
	if itemURL == "" {
		return nil
	}

	title := strings.TrimSpace(item.Title)
	if title == "" {
		title = defaultTitle
	}

	published := r.now()
	if item.PublishedParsed != nil {
		published = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		published = *item.UpdatedParsed
	}

	return &FeedEntry{
		URL:         itemURL,
		Title:       title,
		PublishedAt: published,
		Summary:     stripHTML(item.Description),
	}
}

// stripHTML reduces a feed description to its text.
func stripHTML(text string) string {
	if !strings.ContainsAny(text, "<&") {
		return strings.Join(strings.Fields(text), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return strings.Join(strings.Fields(text), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func extractSourceName(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil || u.Hostname() == "" {
		return feedURL
	}
	host := strings.ToLower(u.Hostname())

	for _, prefix := range []string{"www.", "blog.", "blogs.", "rss.", "feeds."} {
		host = strings.TrimPrefix(host, prefix)
	}

	parts := strings.Split(host, ".")
	name := host
	if len(parts) >= 2 {
		name = parts[len(parts)-2]
	}
	if name == "" {
		return feedURL
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
