package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/topicwatch/internal/model"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// exampleRuns mirrors the two-run example: a Jan-2 run with one article
// from X and a Jan-1 run with one article from Y.
func exampleRuns() []model.MonitoringRun {
	return []model.MonitoringRun{
		{
			RunID:           "run-2",
			RunTimestamp:    day(2025, 1, 2),
			TotalFetched:    10,
			TotalClassified: 5,
			Articles: []model.Article{
				{Title: "jan2", Topics: []string{"A"}, SourceFeed: "X", DateProcessed: day(2025, 1, 2)},
			},
		},
		{
			RunID:           "run-1",
			RunTimestamp:    day(2025, 1, 1),
			TotalFetched:    10,
			TotalClassified: 5,
			Articles: []model.Article{
				{Title: "jan1", Topics: []string{"A", "B"}, SourceFeed: "Y", DateProcessed: day(2025, 1, 1)},
			},
		},
	}
}

func titles(articles []model.Article) []string {
	out := make([]string, len(articles))
	for i, a := range articles {
		out[i] = a.Title
	}
	return out
}

func TestAggregateArticlesExample(t *testing.T) {
	articles := AggregateArticles(exampleRuns())

	require.Len(t, articles, 2)
	assert.Equal(t, []string{"jan2", "jan1"}, titles(articles))
	assert.Equal(t, "run-2", articles[0].RunID)
	assert.Equal(t, day(2025, 1, 2), articles[0].RunTimestamp)
	assert.Equal(t, "run-1", articles[1].RunID)
}

func TestAggregateArticlesStableOnTies(t *testing.T) {
	same := day(2025, 3, 1)
	runs := []model.MonitoringRun{
		{RunID: "r1", Articles: []model.Article{
			{Title: "r1-a", DateProcessed: same},
			{Title: "r1-b", DateProcessed: same},
		}},
		{RunID: "r2", Articles: []model.Article{
			{Title: "r2-a", DateProcessed: same},
			{Title: "r2-newer", DateProcessed: same.Add(time.Hour)},
			{Title: "r2-b", DateProcessed: same},
		}},
	}

	articles := AggregateArticles(runs)

	assert.Len(t, articles, 5)
	assert.Equal(t, []string{"r2-newer", "r1-a", "r1-b", "r2-a", "r2-b"}, titles(articles))
}

func TestAggregateArticlesDateFallbacks(t *testing.T) {
	runs := []model.MonitoringRun{{Articles: []model.Article{
		{Title: "undated"},
		{Title: "processed-only", DatePublished: "garbage", DateProcessed: day(2025, 1, 5)},
		{Title: "published", DatePublished: "2025-01-10T08:00:00Z", DateProcessed: day(2024, 1, 1)},
	}}}

	articles := AggregateArticles(runs)

	assert.Equal(t, []string{"published", "processed-only", "undated"}, titles(articles))
}

func TestAggregateArticlesYearlessPublishedFallsBack(t *testing.T) {
	runs := []model.MonitoringRun{{Articles: []model.Article{
		{Title: "undated"},
		{Title: "yearless", DatePublished: "07/11", DateProcessed: day(2025, 7, 11)},
	}}}

	articles := AggregateArticles(runs)

	assert.Equal(t, []string{"yearless", "undated"}, titles(articles))
	assert.Equal(t, day(2025, 7, 11), EffectiveDate(articles[0]))

	groups := GroupByDate(articles)
	require.Len(t, groups, 2)
	assert.Equal(t, "2025-07-11", groups[0].Date)
	assert.Equal(t, model.UnknownDay, groups[1].Date)
}

func TestAggregateArticlesEmpty(t *testing.T) {
	assert.Empty(t, AggregateArticles(nil))
}

func TestEffectiveDate(t *testing.T) {
	assert.Equal(t, day(2025, 1, 10), EffectiveDate(model.Article{DatePublished: "2025-01-10", DateProcessed: day(2024, 1, 1)}))
	assert.Equal(t, day(2024, 1, 1), EffectiveDate(model.Article{DatePublished: "nope", DateProcessed: day(2024, 1, 1)}))
	assert.True(t, EffectiveDate(model.Article{}).IsZero())
}

func TestTopicDistributionExample(t *testing.T) {
	dist := TopicDistribution(AggregateArticles(exampleRuns()))

	assert.Equal(t, []TopicShare{
		{Topic: "A", Count: 2, Percentage: 100},
		{Topic: "B", Count: 1, Percentage: 50},
	}, dist)
}

func TestTopicDistributionCoverageSum(t *testing.T) {
	articles := []model.Article{
		{Topics: []string{"A", "B", "C"}},
		{Topics: []string{"A"}},
		{Topics: []string{"B", "C"}},
		{Topics: []string{"C"}},
	}

	var sum float64
	var topics int
	for _, s := range TopicDistribution(articles) {
		sum += s.Percentage
	}
	for _, a := range articles {
		topics += len(a.Topics)
	}

	avg := float64(topics) / float64(len(articles))
	assert.InDelta(t, 100*avg, sum, 1e-9)
}

func TestTopicDistributionTieKeepsFirstSeen(t *testing.T) {
	articles := []model.Article{
		{Topics: []string{"Z"}},
		{Topics: []string{"M"}},
		{Topics: []string{"A", "M"}},
		{Topics: []string{"A", "Z"}},
	}

	dist := TopicDistribution(articles)

	require.Len(t, dist, 3)
	assert.Equal(t, "Z", dist[0].Topic)
	assert.Equal(t, "M", dist[1].Topic)
	assert.Equal(t, "A", dist[2].Topic)
}

func TestDistributionsEmpty(t *testing.T) {
	assert.Equal(t, []TopicShare{}, TopicDistribution(nil))
	assert.Equal(t, []SourceShare{}, SourceDistribution([]model.Article{}))
}

func TestTopicDistributionArticlesWithoutTopics(t *testing.T) {
	dist := TopicDistribution([]model.Article{{Title: "x"}, {Topics: []string{"A"}}})

	assert.Equal(t, []TopicShare{{Topic: "A", Count: 1, Percentage: 50}}, dist)
}

func TestSourceDistribution(t *testing.T) {
	articles := []model.Article{
		{SourceFeed: "X"}, {SourceFeed: ""}, {SourceFeed: "Y"}, {SourceFeed: "X"},
	}

	dist := SourceDistribution(articles)

	assert.Equal(t, []SourceShare{
		{Source: "X", Count: 2, Percentage: 50},
		{Source: UnknownSource, Count: 1, Percentage: 25},
		{Source: "Y", Count: 1, Percentage: 25},
	}, dist)

	var sum float64
	for _, s := range dist {
		sum += s.Percentage
	}
	assert.InDelta(t, 100, sum, 1e-9)
}

func TestFilterIdentity(t *testing.T) {
	articles := AggregateArticles(exampleRuns())

	assert.Equal(t, articles, Filter(articles, Criteria{}))

	var c Criteria
	c.Topics = []string{}
	assert.Equal(t, articles, Filter(articles, c))
}

func TestFilterBySourceExample(t *testing.T) {
	filtered := Filter(AggregateArticles(exampleRuns()), Criteria{Sources: []string{"X"}})

	assert.Equal(t, []string{"jan2"}, titles(filtered))
	assert.Equal(t, []SourceShare{{Source: "X", Count: 1, Percentage: 100}}, SourceDistribution(filtered))
}

func TestFilterTopicsAnyMatch(t *testing.T) {
	articles := []model.Article{
		{Title: "a", Topics: []string{"A"}},
		{Title: "b", Topics: []string{"B"}},
		{Title: "ab", Topics: []string{"A", "B"}},
		{Title: "none"},
	}

	filtered := Filter(articles, Criteria{Topics: []string{"B", "Q"}})

	assert.Equal(t, []string{"b", "ab"}, titles(filtered))
}

func TestFilterDateRange(t *testing.T) {
	articles := []model.Article{
		{Title: "early", DateProcessed: day(2025, 1, 1)},
		{Title: "start", DateProcessed: day(2025, 1, 5)},
		{Title: "mid", DateProcessed: day(2025, 1, 7)},
		{Title: "end", DateProcessed: day(2025, 1, 10)},
		{Title: "late", DateProcessed: day(2025, 1, 11)},
		{Title: "undated"},
	}
	start, end := day(2025, 1, 5), day(2025, 1, 10)

	assert.Equal(t, []string{"start", "mid", "end"}, titles(Filter(articles, Criteria{StartDate: &start, EndDate: &end})))
	assert.Equal(t, []string{"start", "mid", "end", "late"}, titles(Filter(articles, Criteria{StartDate: &start})))
	assert.Equal(t, []string{"early", "start", "mid", "end"}, titles(Filter(articles, Criteria{EndDate: &end})))
}

func TestFilterMinConfidence(t *testing.T) {
	articles := []model.Article{
		{Title: "high", ConfidenceScores: map[string]float64{"A": 0.3, "B": 0.9}},
		{Title: "exact", ConfidenceScores: map[string]float64{"A": 0.8}},
		{Title: "low", ConfidenceScores: map[string]float64{"A": 0.5}},
		{Title: "unscored"},
	}
	threshold := 0.8

	assert.Equal(t, []string{"high", "exact"}, titles(Filter(articles, Criteria{MinConfidence: &threshold})))

	zero := 0.0
	assert.Equal(t, []string{"high", "exact", "low"}, titles(Filter(articles, Criteria{MinConfidence: &zero})))
}

func TestFilterSearchQuery(t *testing.T) {
	articles := []model.Article{
		{Title: "FDA Approves Drug"},
		{Summary: "the fda said"},
		{OriginalDescription: "An fDa statement"},
		{Title: "Unrelated"},
		{},
	}

	filtered := Filter(articles, Criteria{SearchQuery: "FDA"})

	assert.Len(t, filtered, 3)
}

func TestFilterConjunction(t *testing.T) {
	articles := []model.Article{
		{Title: "match", Topics: []string{"A"}, SourceFeed: "X", DateProcessed: day(2025, 1, 5)},
		{Title: "wrong source", Topics: []string{"A"}, SourceFeed: "Y", DateProcessed: day(2025, 1, 5)},
		{Title: "wrong topic", Topics: []string{"B"}, SourceFeed: "X", DateProcessed: day(2025, 1, 5)},
	}
	start := day(2025, 1, 1)

	filtered := Filter(articles, Criteria{Topics: []string{"A"}, Sources: []string{"X"}, StartDate: &start})

	assert.Equal(t, []string{"match"}, titles(filtered))
}

func TestCriteriaCloneIsDeep(t *testing.T) {
	minConf := 0.5
	start := day(2025, 1, 1)
	c := Criteria{Topics: []string{"A"}, MinConfidence: &minConf, StartDate: &start}

	clone := c.Clone()
	clone.Topics[0] = "changed"
	*clone.MinConfidence = 0.9
	*clone.StartDate = day(2030, 1, 1)

	assert.Equal(t, "A", c.Topics[0])
	assert.Equal(t, 0.5, *c.MinConfidence)
	assert.Equal(t, day(2025, 1, 1), *c.StartDate)
	assert.False(t, c.IsZero())
	assert.True(t, Criteria{}.IsZero())

	c.Reset()
	assert.True(t, c.IsZero())
}

func TestDailyMetricsExample(t *testing.T) {
	metrics := DailyMetrics(exampleRuns())

	require.Len(t, metrics, 2)
	assert.Equal(t, "2025-01-01", metrics[0].Date)
	assert.Equal(t, "2025-01-02", metrics[1].Date)
	for _, m := range metrics {
		assert.Equal(t, 50.0, m.ClassificationRate)
		assert.Equal(t, 1, m.RunCount)
	}
}

func TestDailyMetricsGroupsAndGuardsZero(t *testing.T) {
	runs := []model.MonitoringRun{
		{RunTimestamp: time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC), TotalFetched: 20, TotalClassified: 4, TotalDiscarded: 16},
		{RunTimestamp: time.Date(2025, 2, 1, 18, 0, 0, 0, time.UTC), TotalFetched: 20, TotalClassified: 6, TotalDiscarded: 14},
		{RunTimestamp: day(2025, 1, 31)},
		{TotalFetched: 3, TotalClassified: 3},
	}

	metrics := DailyMetrics(runs)

	require.Len(t, metrics, 3)
	assert.Equal(t, DailyMetric{Date: "2025-01-31", RunCount: 1}, metrics[0])
	assert.Equal(t, DailyMetric{
		Date: "2025-02-01", TotalFetched: 40, TotalClassified: 10, TotalDiscarded: 30,
		RunCount: 2, ClassificationRate: 25,
	}, metrics[1])
	assert.Equal(t, model.UnknownDay, metrics[2].Date)
	assert.Equal(t, 100.0, metrics[2].ClassificationRate)

	for _, m := range metrics {
		assert.GreaterOrEqual(t, m.ClassificationRate, 0.0)
	}
}

func TestTrendingTopics(t *testing.T) {
	now := time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)
	recent := now.AddDate(0, 0, -2)
	old := now.AddDate(0, 0, -30)

	articles := []model.Article{
		// recent: 4 articles
		{Topics: []string{"Rising", "Steady"}, DateProcessed: recent},
		{Topics: []string{"Rising"}, DateProcessed: recent},
		{Topics: []string{"New"}, DateProcessed: recent},
		{Topics: []string{"Steady"}, DateProcessed: now},
		// older: 4 articles, including one without a processed date
		{Topics: []string{"Rising"}, DateProcessed: old},
		{Topics: []string{"Steady"}, DateProcessed: old},
		{Topics: []string{"Steady", "Gone"}, DateProcessed: old},
		{Topics: []string{"Gone"}},
	}

	trending := TrendingTopics(articles, 7, now)

	require.Len(t, trending, 3)

	byTopic := make(map[string]TrendingTopic)
	for _, tt := range trending {
		byTopic[tt.Topic] = tt
	}
	assert.NotContains(t, byTopic, "Gone")

	rising := byTopic["Rising"]
	assert.Equal(t, 2, rising.Count)
	assert.InDelta(t, 50, rising.Percentage, 1e-9)
	assert.InDelta(t, 25, rising.Growth, 1e-9)
	assert.InDelta(t, 100, rising.GrowthRate, 1e-9)

	steady := byTopic["Steady"]
	assert.InDelta(t, 0, steady.Growth, 1e-9)
	assert.InDelta(t, 0, steady.GrowthRate, 1e-9)

	emerging := byTopic["New"]
	assert.InDelta(t, 25, emerging.Growth, 1e-9)
	assert.Equal(t, NewTopicGrowthRate, emerging.GrowthRate)

	for i := 1; i < len(trending); i++ {
		assert.GreaterOrEqual(t, trending[i-1].Growth, trending[i].Growth)
	}
	assert.Equal(t, "Steady", trending[2].Topic)
}

func TestTrendingNowIsExplicit(t *testing.T) {
	articles := []model.Article{{Topics: []string{"A"}, DateProcessed: day(2025, 1, 1)}}

	assert.Len(t, TrendingTopics(articles, 7, day(2025, 1, 3)), 1)
	assert.Empty(t, TrendingTopics(articles, 7, day(2025, 3, 1)))
	// Articles processed after now are outside the window.
	assert.Empty(t, TrendingTopics(articles, 7, day(2024, 12, 31)))
}

func TestPartitionRecentDefaultsWindow(t *testing.T) {
	now := day(2025, 1, 10)
	articles := []model.Article{
		{Title: "boundary", DateProcessed: now.AddDate(0, 0, -7)},
		{Title: "outside", DateProcessed: now.AddDate(0, 0, -8)},
		{Title: "undated"},
	}

	recent, older := PartitionRecent(articles, 0, now)

	assert.Equal(t, []string{"boundary"}, titles(recent))
	assert.Equal(t, []string{"outside", "undated"}, titles(older))
	assert.Equal(t, recent, RecentArticles(articles, 0, now))
}

func TestAverageConfidence(t *testing.T) {
	articles := []model.Article{
		{ConfidenceScores: map[string]float64{"A": 0.9, "B": 0.7}},
		{ConfidenceScores: map[string]float64{"A": 0.7}},
		{},
	}

	avg := AverageConfidence(articles)

	require.Len(t, avg, 2)
	assert.Equal(t, "A", avg[0].Topic)
	assert.InDelta(t, 0.8, avg[0].AverageConfidence, 1e-9)
	assert.Equal(t, 2, avg[0].Count)
	assert.Equal(t, "B", avg[1].Topic)
	assert.InDelta(t, 0.7, avg[1].AverageConfidence, 1e-9)
}

func TestGroupByDate(t *testing.T) {
	articles := []model.Article{
		{Title: "old", DateProcessed: day(2025, 1, 1)},
		{Title: "undated"},
		{Title: "new-a", DatePublished: "2025-01-03T10:00:00Z"},
		{Title: "new-b", DateProcessed: time.Date(2025, 1, 3, 23, 0, 0, 0, time.UTC)},
	}

	groups := GroupByDate(articles)

	require.Len(t, groups, 3)
	assert.Equal(t, "2025-01-03", groups[0].Date)
	assert.Equal(t, []string{"new-a", "new-b"}, titles(groups[0].Articles))
	assert.Equal(t, "2025-01-01", groups[1].Date)
	assert.Equal(t, model.UnknownDay, groups[2].Date)
}

func TestUniqueFacets(t *testing.T) {
	articles := []model.Article{
		{Topics: []string{"b", "a"}, SourceFeed: "Y"},
		{Topics: []string{"a"}, SourceFeed: ""},
		{Topics: []string{"c"}, SourceFeed: "X"},
	}

	assert.Equal(t, []string{"a", "b", "c"}, UniqueTopics(articles))
	assert.Equal(t, []string{"X", "Y"}, UniqueSources(articles))
}
