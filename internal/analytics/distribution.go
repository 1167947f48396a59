package analytics

import (
	"sort"

	"github.com/TobiSchelling/topicwatch/internal/model"
)

// UnknownSource is the bucket for articles without a source feed.
const UnknownSource = "Unknown"

// TopicShare is one row of a topic distribution.
type TopicShare struct {
	Topic      string  `json:"topic"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// SourceShare is one row of a source distribution.
type SourceShare struct {
	Source     string  `json:"source"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// TopicDistribution counts topic occurrences across articles. Percentages
// are relative to the number of articles, not the number of topic
// occurrences, so an article with several topics contributes to each of
// them and the percentages can sum past 100 (coverage, not share).
//
// Rows are sorted by count descending; ties keep first-seen order.
func TopicDistribution(articles []model.Article) []TopicShare {
	if len(articles) == 0 {
		return []TopicShare{}
	}

	var c counter
	for _, a := range articles {
		for _, t := range a.Topics {
			c.add(t)
		}
	}

	total := float64(len(articles))
	out := make([]TopicShare, len(c.keys))
	for i, k := range c.keys {
		n := c.counts[k]
		out[i] = TopicShare{Topic: k, Count: n, Percentage: float64(n) / total * 100}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// SourceDistribution counts articles per source feed. Articles without a
// source land in UnknownSource. Percentages sum to 100.
func SourceDistribution(articles []model.Article) []SourceShare {
	if len(articles) == 0 {
		return []SourceShare{}
	}

	var c counter
	for _, a := range articles {
		src := a.SourceFeed
		if src == "" {
			src = UnknownSource
		}
		c.add(src)
	}

	total := float64(len(articles))
	out := make([]SourceShare, len(c.keys))
	for i, k := range c.keys {
		n := c.counts[k]
		out[i] = SourceShare{Source: k, Count: n, Percentage: float64(n) / total * 100}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// counter tallies keys and remembers first-seen order.
type counter struct {
	keys   []string
	counts map[string]int
}

func (c *counter) add(key string) {
	if c.counts == nil {
		c.counts = make(map[string]int)
	}
	if _, seen := c.counts[key]; !seen {
		c.keys = append(c.keys, key)
	}
	c.counts[key]++
}
