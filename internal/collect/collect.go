// Package collect gathers candidate articles from the configured feeds.
package collect

import (
	"context"
	"log"

	"github.com/TobiSchelling/topicwatch/internal/config"
)

// Collector reads every configured feed.
type Collector struct {
	feedParser *FeedParser
}

// NewCollector builds a collector from the monitor section of cfg.
func NewCollector(cfg *config.Config) *Collector {
	feeds := make([]FeedConfig, len(cfg.Monitor.Feeds))
	for i, f := range cfg.Monitor.Feeds {
		feeds[i] = FeedConfig{URL: f.URL, Name: f.Name}
	}
	return &Collector{feedParser: NewFeedParser(feeds, cfg.Monitor.MaxPerFeed)}
}

// Collect returns every entry found across all feeds, in feed order.
func (c *Collector) Collect(ctx context.Context) ([]FeedEntry, error) {
	log.Println("Collecting from RSS feeds...")
	entries := c.feedParser.ParseAll(ctx)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sources := make(map[string]int)
	for _, e := range entries {
		sources[e.Source]++
	}
	log.Printf("Collection complete: %d entries from %d sources", len(entries), len(sources))
	return entries, nil
}
