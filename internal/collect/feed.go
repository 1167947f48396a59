package collect

import (
	"context"
	"log"
	"net/url"
	"strings"

	"github.com/mmcdole/gofeed"
)

const defaultMaxPerFeed = 20

// FeedEntry is one item as read from a feed, before classification.
type FeedEntry struct {
	Link        string
	Title       string
	Description string
	// Published is the feed's own date text, kept verbatim.
	Published string
	Source    string
	FeedURL   string
}

// FeedConfig represents a single feed configuration.
type FeedConfig struct {
	URL  string
	Name string
}

// FeedParser parses RSS/Atom feeds.
type FeedParser struct {
	feeds      []FeedConfig
	maxPerFeed int
	parser     *gofeed.Parser
}

// NewFeedParser creates a new FeedParser. maxPerFeed <= 0 means 20.
func NewFeedParser(feeds []FeedConfig, maxPerFeed int) *FeedParser {
	if maxPerFeed <= 0 {
		maxPerFeed = defaultMaxPerFeed
	}
	return &FeedParser{feeds: feeds, maxPerFeed: maxPerFeed, parser: gofeed.NewParser()}
}

// ParseAll parses every configured feed. A feed that fails is logged and
// skipped.
func (fp *FeedParser) ParseAll(ctx context.Context) []FeedEntry {
	var all []FeedEntry
	for _, fc := range fp.feeds {
		if ctx.Err() != nil {
			break
		}
		name := fc.Name
		if name == "" {
			name = extractSourceName(fc.URL)
		}

		entries, err := fp.parseFeed(ctx, fc.URL, name)
		if err != nil {
			log.Printf("Failed to parse feed %s: %v", fc.URL, err)
			continue
		}
		all = append(all, entries...)
		log.Printf("Parsed %d entries from %s", len(entries), name)
	}
	return all
}

func (fp *FeedParser) parseFeed(ctx context.Context, feedURL, sourceName string) ([]FeedEntry, error) {
	feed, err := fp.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, err
	}

	var entries []FeedEntry
	for _, item := range feed.Items {
		if len(entries) >= fp.maxPerFeed {
			break
		}
		if entry := parseItem(item, sourceName); entry != nil {
			entry.FeedURL = feedURL
			entries = append(entries, *entry)
		}
	}
	return entries, nil
}

func parseItem(item *gofeed.Item, source string) *FeedEntry {
	link := item.Link
	if link == "" {
		link = item.GUID
	}

	title := strings.TrimSpace(item.Title)
	if title == "" {
		return nil
	}

	published := strings.TrimSpace(item.Published)
	if published == "" {
		published = strings.TrimSpace(item.Updated)
	}

	description := stripHTML(item.Description)
	if description == "" {
		description = stripHTML(item.Content)
	}

	return &FeedEntry{
		Link:        link,
		Title:       title,
		Description: description,
		Published:   published,
		Source:      source,
	}
}

func stripHTML(text string) string {
	if text == "" {
		return ""
	}
	var result strings.Builder
	inTag := false
	for _, r := range text {
		if r == '<' {
			inTag = true
			result.WriteRune(' ')
			continue
		}
		if r == '>' {
			inTag = false
			continue
		}
		if !inTag {
			result.WriteRune(r)
		}
	}

	s := result.String()
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&quot;", `"`)
	s = strings.ReplaceAll(s, "&#39;", "'")

	return strings.Join(strings.Fields(s), " ")
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
	if len(parts) >= 2 {
		name := parts[len(parts)-2]
		return strings.ToUpper(name[:1]) + name[1:]
	}
	return strings.ToUpper(host[:1]) + host[1:]
}
