package analytics

import (
	"slices"
	"strings"
	"time"

	"github.com/TobiSchelling/topicwatch/internal/model"
)

// Criteria is the current filter selection. The zero value places no
// restriction on any dimension.
//
// Dimensions combine with AND; within Topics and Sources membership is OR.
type Criteria struct {
	Topics        []string   `json:"topics"`
	Sources       []string   `json:"sources"`
	StartDate     *time.Time `json:"start_date,omitempty"`
	EndDate       *time.Time `json:"end_date,omitempty"`
	MinConfidence *float64   `json:"min_confidence,omitempty"`
	SearchQuery   string     `json:"search_query"`
}

// IsZero reports whether the criteria restrict nothing.
func (c Criteria) IsZero() bool {
	return len(c.Topics) == 0 && len(c.Sources) == 0 &&
		c.StartDate == nil && c.EndDate == nil &&
		c.MinConfidence == nil && c.SearchQuery == ""
}

// Reset clears every dimension.
func (c *Criteria) Reset() {
	*c = Criteria{}
}

// Clone returns a deep copy so callers cannot mutate shared slices or
// pointers.
func (c Criteria) Clone() Criteria {
	out := Criteria{
		Topics:      slices.Clone(c.Topics),
		Sources:     slices.Clone(c.Sources),
		SearchQuery: c.SearchQuery,
	}
	if c.StartDate != nil {
		t := *c.StartDate
		out.StartDate = &t
	}
	if c.EndDate != nil {
		t := *c.EndDate
		out.EndDate = &t
	}
	if c.MinConfidence != nil {
		v := *c.MinConfidence
		out.MinConfidence = &v
	}
	return out
}

// Filter returns the articles matching c, preserving input order. With no
// restriction set it returns the input unchanged.
func Filter(articles []model.Article, c Criteria) []model.Article {
	if c.IsZero() {
		return articles
	}

	var topics, sources map[string]struct{}
	if len(c.Topics) > 0 {
		topics = toSet(c.Topics)
	}
	if len(c.Sources) > 0 {
		sources = toSet(c.Sources)
	}
	query := strings.ToLower(c.SearchQuery)

	out := make([]model.Article, 0, len(articles))
	for _, a := range articles {
		if topics != nil && !hasAnyTopic(a, topics) {
			continue
		}
		if sources != nil {
			if _, ok := sources[a.SourceFeed]; !ok {
				continue
			}
		}
		if c.StartDate != nil && (a.DateProcessed.IsZero() || a.DateProcessed.Before(*c.StartDate)) {
			continue
		}
		if c.EndDate != nil && (a.DateProcessed.IsZero() || a.DateProcessed.After(*c.EndDate)) {
			continue
		}
		if c.MinConfidence != nil {
			best, ok := a.MaxConfidence()
			if !ok || best < *c.MinConfidence {
				continue
			}
		}
		if query != "" && !matchesQuery(a, query) {
			continue
		}
		out = append(out, a)
	}
	return out
}

func hasAnyTopic(a model.Article, topics map[string]struct{}) bool {
	for _, t := range a.Topics {
		if _, ok := topics[t]; ok {
			return true
		}
	}
	return false
}

// matchesQuery expects query to be lower-cased already.
func matchesQuery(a model.Article, query string) bool {
	for _, field := range []string{a.Title, a.Summary, a.OriginalDescription} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
