package analytics

import (
	"sort"

	"github.com/TobiSchelling/topicwatch/internal/model"
)

// DailyMetric summarises all runs that started on one calendar day.
type DailyMetric struct {
	Date               string  `json:"date"`
	TotalFetched       int     `json:"total_fetched"`
	TotalClassified    int     `json:"total_classified"`
	TotalDiscarded     int     `json:"total_discarded"`
	RunCount           int     `json:"run_count"`
	ClassificationRate float64 `json:"classification_rate"`
}

// DailyMetrics groups runs by the calendar day of their run timestamp and
// sums their counters. Runs without a timestamp fall into the
// model.UnknownDay bucket. Output is sorted ascending by date key.
//
// ClassificationRate is classified/fetched*100, or 0 when nothing was
// fetched.
func DailyMetrics(runs []model.MonitoringRun) []DailyMetric {
	byDay := make(map[string]*DailyMetric)
	for _, r := range runs {
		key := model.DayKey(r.RunTimestamp)
		d, ok := byDay[key]
		if !ok {
			d = &DailyMetric{Date: key}
			byDay[key] = d
		}
		d.TotalFetched += r.TotalFetched
		d.TotalClassified += r.TotalClassified
		d.TotalDiscarded += r.TotalDiscarded
		d.RunCount++
	}

	out := make([]DailyMetric, 0, len(byDay))
	for _, d := range byDay {
		if d.TotalFetched > 0 {
			d.ClassificationRate = float64(d.TotalClassified) / float64(d.TotalFetched) * 100
		}
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}
