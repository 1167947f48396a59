package analytics

import (
	"sort"
	"time"

	"github.com/TobiSchelling/topicwatch/internal/model"
)

// DefaultTrendingWindowDays is the recent-window size used when callers pass
// a non-positive window.
const DefaultTrendingWindowDays = 7

// NewTopicGrowthRate is reported for topics absent from the older window.
// It marks an emerging topic; it is not a real growth figure.
const NewTopicGrowthRate = 100.0

// TrendingTopic compares a topic's coverage in the recent window against the
// rest of the history.
type TrendingTopic struct {
	Topic      string  `json:"topic"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
	Growth     float64 `json:"growth"`
	GrowthRate float64 `json:"growth_rate"`
}

// PartitionRecent splits articles into those processed within
// [now-windowDays, now] and everything else. Articles without a processed
// date always land in older. Both halves keep input order.
func PartitionRecent(articles []model.Article, windowDays int, now time.Time) (recent, older []model.Article) {
	if windowDays <= 0 {
		windowDays = DefaultTrendingWindowDays
	}
	cutoff := now.AddDate(0, 0, -windowDays)

	for _, a := range articles {
		if inWindow(a.DateProcessed, cutoff, now) {
			recent = append(recent, a)
		} else {
			older = append(older, a)
		}
	}
	return recent, older
}

// RecentArticles returns the recent half of PartitionRecent.
func RecentArticles(articles []model.Article, windowDays int, now time.Time) []model.Article {
	recent, _ := PartitionRecent(articles, windowDays, now)
	return recent
}

// TrendingTopics ranks topics seen in the recent window by the
// percentage-point change of their coverage against older articles.
// now is explicit so results are reproducible; two calls with different now
// values over the same data may legitimately disagree.
//
// Topics seen only in older articles are omitted. Output is sorted by Growth
// descending, not by GrowthRate.
func TrendingTopics(articles []model.Article, windowDays int, now time.Time) []TrendingTopic {
	recent, older := PartitionRecent(articles, windowDays, now)

	olderPct := make(map[string]float64)
	for _, s := range TopicDistribution(older) {
		olderPct[s.Topic] = s.Percentage
	}

	recentDist := TopicDistribution(recent)
	out := make([]TrendingTopic, len(recentDist))
	for i, s := range recentDist {
		prev := olderPct[s.Topic]
		growth := s.Percentage - prev
		rate := NewTopicGrowthRate
		if prev > 0 {
			rate = growth / prev * 100
		}
		out[i] = TrendingTopic{
			Topic:      s.Topic,
			Count:      s.Count,
			Percentage: s.Percentage,
			Growth:     growth,
			GrowthRate: rate,
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Growth > out[j].Growth })
	return out
}

func inWindow(t, start, end time.Time) bool {
	if t.IsZero() {
		return false
	}
	return !t.Before(start) && !t.After(end)
}
