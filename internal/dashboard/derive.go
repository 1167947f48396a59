// Package dashboard owns the loaded monitoring runs and the current filter
// selection, and recomputes every derived view whenever either changes.
package dashboard

import (
	"time"

	"github.com/TobiSchelling/topicwatch/internal/analytics"
	"github.com/TobiSchelling/topicwatch/internal/model"
)

// Snapshot is one consistent set of derived views. Slices are shared with
// the graph and must be treated as read-only.
type Snapshot struct {
	Version    uint64             `json:"version"`
	Now        time.Time          `json:"now"`
	WindowDays int                `json:"window_days"`
	Criteria   analytics.Criteria `json:"filters"`

	Runs     []model.MonitoringRun `json:"-"`
	Articles []model.Article       `json:"-"`
	Filtered []model.Article       `json:"-"`

	TotalRuns     int `json:"total_runs"`
	TotalArticles int `json:"total_articles"`
	FilteredCount int `json:"filtered_count"`

	TopicDistribution  []analytics.TopicShare      `json:"topic_distribution"`
	SourceDistribution []analytics.SourceShare     `json:"source_distribution"`
	DailyMetrics       []analytics.DailyMetric     `json:"daily_metrics"`
	TrendingTopics     []analytics.TrendingTopic   `json:"trending_topics"`
	AverageConfidence  []analytics.TopicConfidence `json:"average_confidence"`

	// Filter pickers list every value present before filtering.
	Topics  []string `json:"topics"`
	Sources []string `json:"sources"`
}

// Derive recomputes every node from scratch in dependency order:
//
//	runs -> articles -> filtered -> topic/source distributions, confidence
//	runs -> daily metrics
//	articles -> trending
//
// It is pure: the same inputs always produce the same snapshot.
func Derive(runs []model.MonitoringRun, c analytics.Criteria, now time.Time, windowDays int) Snapshot {
	if windowDays <= 0 {
		windowDays = analytics.DefaultTrendingWindowDays
	}

	articles := analytics.AggregateArticles(runs)
	filtered := analytics.Filter(articles, c)

	return Snapshot{
		Now:        now,
		WindowDays: windowDays,
		Criteria:   c,

		Runs:     runs,
		Articles: articles,
		Filtered: filtered,

		TotalRuns:     len(runs),
		TotalArticles: len(articles),
		FilteredCount: len(filtered),

		TopicDistribution:  analytics.TopicDistribution(filtered),
		SourceDistribution: analytics.SourceDistribution(filtered),
		DailyMetrics:       analytics.DailyMetrics(runs),
		TrendingTopics:     analytics.TrendingTopics(articles, windowDays, now),
		AverageConfidence:  analytics.AverageConfidence(filtered),

		Topics:  analytics.UniqueTopics(articles),
		Sources: analytics.UniqueSources(articles),
	}
}
