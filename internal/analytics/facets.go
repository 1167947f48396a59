package analytics

import (
	"sort"

	"github.com/TobiSchelling/topicwatch/internal/model"
)

// TopicConfidence is the mean classifier confidence for one topic.
type TopicConfidence struct {
	Topic             string  `json:"topic"`
	AverageConfidence float64 `json:"average_confidence"`
	Count             int     `json:"count"`
}

// AverageConfidence averages confidence scores per topic across articles,
// sorted by mean descending (ties keep first-seen order).
func AverageConfidence(articles []model.Article) []TopicConfidence {
	var c counter
	sums := make(map[string]float64)
	for _, a := range articles {
		// Map iteration order is random; visit topics in a fixed order so
		// first-seen tie-breaking is deterministic.
		keys := make([]string, 0, len(a.ConfidenceScores))
		for k := range a.ConfidenceScores {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			c.add(k)
			sums[k] += a.ConfidenceScores[k]
		}
	}

	out := make([]TopicConfidence, len(c.keys))
	for i, k := range c.keys {
		n := c.counts[k]
		out[i] = TopicConfidence{Topic: k, AverageConfidence: sums[k] / float64(n), Count: n}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AverageConfidence > out[j].AverageConfidence
	})
	return out
}

// DateGroup holds the articles whose effective date falls on one day.
type DateGroup struct {
	Date     string          `json:"date"`
	Articles []model.Article `json:"articles"`
}

// GroupByDate buckets articles by the calendar day of their effective date,
// newest day first, with undated articles in a trailing model.UnknownDay
// group. Articles keep input order within a group.
func GroupByDate(articles []model.Article) []DateGroup {
	index := make(map[string]int)
	var groups []DateGroup
	for _, a := range articles {
		key := model.DayKey(EffectiveDate(a))
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, DateGroup{Date: key})
		}
		groups[i].Articles = append(groups[i].Articles, a)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		gi, gj := groups[i].Date, groups[j].Date
		if gi == model.UnknownDay || gj == model.UnknownDay {
			return gj == model.UnknownDay && gi != model.UnknownDay
		}
		return gi > gj
	})
	return groups
}

// UniqueTopics returns every topic label in articles, sorted.
func UniqueTopics(articles []model.Article) []string {
	set := make(map[string]struct{})
	for _, a := range articles {
		for _, t := range a.Topics {
			set[t] = struct{}{}
		}
	}
	return sortedKeys(set)
}

// UniqueSources returns every non-empty source feed in articles, sorted.
func UniqueSources(articles []model.Article) []string {
	set := make(map[string]struct{})
	for _, a := range articles {
		if a.SourceFeed != "" {
			set[a.SourceFeed] = struct{}{}
		}
	}
	return sortedKeys(set)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
