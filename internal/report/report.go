// Package report renders a dashboard snapshot as markdown.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/TobiSchelling/topicwatch/internal/analytics"
	"github.com/TobiSchelling/topicwatch/internal/dashboard"
	"github.com/TobiSchelling/topicwatch/internal/database"
	"github.com/TobiSchelling/topicwatch/internal/model"
)

const defaultMaxArticles = 20

// Options controls what Render includes.
type Options struct {
	Title       string
	MaxArticles int // latest filtered articles listed; 0 means 20, <0 hides the section
}

// Render produces the full markdown report for s.
func Render(s dashboard.Snapshot, opts Options) string {
	title := opts.Title
	if title == "" {
		title = "Topic Monitoring Report"
	}

	sections := []string{
		"# " + title,
		Overview(s),
		"## Daily Metrics\n\n" + DailyTable(s.DailyMetrics),
		"## Topics\n\n" + TopicTable(s.TopicDistribution),
		"## Sources\n\n" + SourceTable(s.SourceDistribution),
		fmt.Sprintf("## Trending (last %d days)\n\n", s.WindowDays) + TrendingTable(s.TrendingTopics),
		"## Average Confidence\n\n" + ConfidenceTable(s.AverageConfidence),
	}

	limit := opts.MaxArticles
	if limit == 0 {
		limit = defaultMaxArticles
	}
	if limit > 0 {
		sections = append(sections, "## Latest Articles\n\n"+ArticleList(s.Filtered, limit))
	}
	return strings.Join(sections, "\n\n") + "\n"
}

// Overview summarises totals, the covered day range and the active filters.
func Overview(s dashboard.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "- **Runs:** %d\n", s.TotalRuns)
	fmt.Fprintf(&b, "- **Articles:** %d (%d after filters)\n", s.TotalArticles, s.FilteredCount)

	first, last := dayBounds(s.DailyMetrics)
	fmt.Fprintf(&b, "- **Period:** %s\n", database.FormatDayRange(first, last))

	if desc := DescribeCriteria(s.Criteria); desc != "" {
		fmt.Fprintf(&b, "- **Filters:** %s\n", desc)
	}
	fmt.Fprintf(&b, "- **Generated:** %s", s.Now.Format("Jan 02, 2006 15:04 MST"))
	return b.String()
}

// DescribeCriteria renders the active filter dimensions, or "" when none
// are set.
func DescribeCriteria(c analytics.Criteria) string {
	var parts []string
	if len(c.Topics) > 0 {
		parts = append(parts, "topics "+strings.Join(c.Topics, ", "))
	}
	if len(c.Sources) > 0 {
		parts = append(parts, "sources "+strings.Join(c.Sources, ", "))
	}
	if c.StartDate != nil {
		parts = append(parts, "from "+c.StartDate.Format(model.DayLayout))
	}
	if c.EndDate != nil {
		parts = append(parts, "until "+c.EndDate.Format(model.DayLayout))
	}
	if c.MinConfidence != nil {
		parts = append(parts, fmt.Sprintf("confidence >= %.2f", *c.MinConfidence))
	}
	if c.SearchQuery != "" {
		parts = append(parts, fmt.Sprintf("matching %q", c.SearchQuery))
	}
	return strings.Join(parts, "; ")
}

// DailyTable renders per-day counters.
func DailyTable(days []analytics.DailyMetric) string {
	if len(days) == 0 {
		return "_No runs loaded._"
	}
	rows := make([][]string, len(days))
	for i, d := range days {
		rows[i] = []string{
			database.FormatDayDisplay(d.Date),
			fmt.Sprint(d.RunCount),
			fmt.Sprint(d.TotalFetched),
			fmt.Sprint(d.TotalClassified),
			fmt.Sprint(d.TotalDiscarded),
			pct(d.ClassificationRate),
		}
	}
	return table([]string{"Date", "Runs", "Fetched", "Classified", "Discarded", "Rate"}, rows)
}

// TopicTable renders a topic distribution.
func TopicTable(shares []analytics.TopicShare) string {
	if len(shares) == 0 {
		return "_No matching articles._"
	}
	rows := make([][]string, len(shares))
	for i, s := range shares {
		rows[i] = []string{s.Topic, fmt.Sprint(s.Count), pct(s.Percentage)}
	}
	return table([]string{"Topic", "Articles", "Coverage"}, rows)
}

// SourceTable renders a source distribution.
func SourceTable(shares []analytics.SourceShare) string {
	if len(shares) == 0 {
		return "_No matching articles._"
	}
	rows := make([][]string, len(shares))
	for i, s := range shares {
		rows[i] = []string{s.Source, fmt.Sprint(s.Count), pct(s.Percentage)}
	}
	return table([]string{"Source", "Articles", "Share"}, rows)
}

// TrendingTable renders trending topics. New topics show "new" instead of a
// growth rate.
func TrendingTable(topics []analytics.TrendingTopic) string {
	if len(topics) == 0 {
		return "_No articles in the trending window._"
	}
	rows := make([][]string, len(topics))
	for i, t := range topics {
		rate := fmt.Sprintf("%+.1f%%", t.GrowthRate)
		if t.Growth == t.Percentage && t.GrowthRate == analytics.NewTopicGrowthRate {
			rate = "new"
		}
		rows[i] = []string{t.Topic, fmt.Sprint(t.Count), pct(t.Percentage), fmt.Sprintf("%+.1f pp", t.Growth), rate}
	}
	return table([]string{"Topic", "Recent", "Coverage", "Growth", "Rate"}, rows)
}

// ConfidenceTable renders per-topic mean confidence.
func ConfidenceTable(rows []analytics.TopicConfidence) string {
	if len(rows) == 0 {
		return "_No confidence scores._"
	}
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = []string{r.Topic, fmt.Sprintf("%.2f", r.AverageConfidence), fmt.Sprint(r.Count)}
	}
	return table([]string{"Topic", "Mean", "Scores"}, out)
}

// ArticleList renders up to limit articles as a bullet list.
func ArticleList(articles []model.Article, limit int) string {
	if len(articles) == 0 {
		return "_No matching articles._"
	}
	if limit > 0 && len(articles) > limit {
		articles = articles[:limit]
	}
	var b strings.Builder
	for i, a := range articles {
		if i > 0 {
			b.WriteString("\n")
		}
		title := escape(a.Title)
		if a.Link != "" {
			title = fmt.Sprintf("[%s](%s)", title, a.Link)
		}
		fmt.Fprintf(&b, "- **%s** (%s", title, sourceOf(a))
		if d := analytics.EffectiveDate(a); !d.IsZero() {
			fmt.Fprintf(&b, ", %s", d.Format("Jan 02"))
		}
		b.WriteString(")")
		if len(a.Topics) > 0 {
			fmt.Fprintf(&b, " _%s_", strings.Join(a.Topics, ", "))
		}
		if s := strings.TrimSpace(a.Summary); s != "" {
			fmt.Fprintf(&b, "\n  %s", oneLine(s))
		}
	}
	return b.String()
}

func dayBounds(days []analytics.DailyMetric) (first, last string) {
	for _, d := range days {
		if d.Date == model.UnknownDay {
			continue
		}
		if first == "" {
			first = d.Date
		}
		last = d.Date
	}
	return first, last
}

func sourceOf(a model.Article) string {
	if a.SourceFeed == "" {
		return analytics.UnknownSource
	}
	return a.SourceFeed
}

func pct(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}

func table(header []string, rows [][]string) string {
	var b strings.Builder
	writeRow(&b, header)
	sep := make([]string, len(header))
	for i := range sep {
		sep[i] = "---"
	}
	writeRow(&b, sep)
	for _, r := range rows {
		writeRow(&b, r)
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeRow(b *strings.Builder, cells []string) {
	b.WriteString("|")
	for _, c := range cells {
		b.WriteString(" ")
		b.WriteString(escape(c))
		b.WriteString(" |")
	}
	b.WriteString("\n")
}

var escaper = strings.NewReplacer("|", `\|`, "\n", " ")

func escape(s string) string { return escaper.Replace(s) }

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ParseDay parses a YYYY-MM-DD flag value in loc. end selects the last
// instant of that day so the bound stays inclusive.
func ParseDay(s string, loc *time.Location, end bool) (time.Time, error) {
	t, err := time.ParseInLocation(model.DayLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", s, err)
	}
	if end {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}
