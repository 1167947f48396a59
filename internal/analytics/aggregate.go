// Package analytics derives aggregate views from monitoring runs: the
// canonical article sequence, filtering, topic and source distributions,
// per-day ingestion metrics and trending topics.
//
// Every function is total over well-formed in-memory data. Malformed dates
// degrade to fallbacks rather than errors.
package analytics

import (
	"sort"
	"time"

	"github.com/TobiSchelling/topicwatch/internal/model"
)

// EffectiveDate resolves the date used to order an article: the published
// date when parseable, else the processed date, else the zero time (which
// sorts last).
func EffectiveDate(a model.Article) time.Time {
	if t, ok := model.ParseTimestamp(a.DatePublished); ok {
		return t
	}
	return a.DateProcessed
}

// AggregateArticles flattens runs into one article sequence tagged with run
// provenance, sorted descending by effective date. The sort is stable:
// articles with equal dates keep run order, then source order.
func AggregateArticles(runs []model.MonitoringRun) []model.Article {
	var n int
	for _, r := range runs {
		n += len(r.Articles)
	}

	articles := make([]model.Article, 0, n)
	dates := make([]time.Time, 0, n)
	for _, r := range runs {
		for _, a := range r.Articles {
			a.RunID = r.RunID
			a.RunTimestamp = r.RunTimestamp
			articles = append(articles, a)
			dates = append(dates, EffectiveDate(a))
		}
	}

	// Sort an index so each effective date is resolved only once.
	idx := make([]int, len(articles))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		return dates[idx[i]].After(dates[idx[j]])
	})

	sorted := make([]model.Article, len(articles))
	for i, k := range idx {
		sorted[i] = articles[k]
	}
	return sorted
}
