package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/TobiSchelling/topicwatch/internal/analytics"
	"github.com/TobiSchelling/topicwatch/internal/dashboard"
	"github.com/TobiSchelling/topicwatch/internal/model"
	"github.com/TobiSchelling/topicwatch/internal/report"
)

// viewFlags are the filter and window flags shared by report, daily and
// trending.
type viewFlags struct {
	topics        []string
	sources       []string
	since, until  string
	minConfidence float64
	query         string
	window        int
	now           string
}

func (f *viewFlags) register(fs *pflag.FlagSet) {
	fs.StringSliceVar(&f.topics, "topic", nil, "Only articles with any of these topics (repeatable)")
	fs.StringSliceVar(&f.sources, "source", nil, "Only articles from these source feeds (repeatable)")
	fs.StringVar(&f.since, "since", "", "Only articles processed on or after this day (YYYY-MM-DD)")
	fs.StringVar(&f.until, "until", "", "Only articles processed on or before this day (YYYY-MM-DD)")
	fs.Float64Var(&f.minConfidence, "min-confidence", 0, "Minimum best confidence score (0-1)")
	fs.StringVarP(&f.query, "query", "q", "", "Case-insensitive text search")
	fs.IntVar(&f.window, "window", 0, "Trending window in days (default from config)")
	fs.StringVar(&f.now, "now", "", "Reference time for the trending window (default: current time)")
}

func (f *viewFlags) criteria(fs *pflag.FlagSet) (analytics.Criteria, error) {
	c := analytics.Criteria{
		Topics:      f.topics,
		Sources:     f.sources,
		SearchQuery: strings.TrimSpace(f.query),
	}
	if f.since != "" {
		t, err := report.ParseDay(f.since, time.UTC, false)
		if err != nil {
			return c, err
		}
		c.StartDate = &t
	}
	if f.until != "" {
		t, err := report.ParseDay(f.until, time.UTC, true)
		if err != nil {
			return c, err
		}
		c.EndDate = &t
	}
	if fs.Changed("min-confidence") {
		if f.minConfidence < 0 || f.minConfidence > 1 {
			return c, fmt.Errorf("--min-confidence must be between 0 and 1, got %g", f.minConfidence)
		}
		v := f.minConfidence
		c.MinConfidence = &v
	}
	return c, nil
}

func (f *viewFlags) clock() (func() time.Time, error) {
	if f.now == "" {
		return time.Now, nil
	}
	t, ok := model.ParseTimestamp(f.now)
	if !ok {
		return nil, fmt.Errorf("invalid --now value %q", f.now)
	}
	return func() time.Time { return t }, nil
}

// loadSnapshot loads every run from the configured source and derives the
// views for the given flags.
func loadSnapshot(cmd *cobra.Command, f *viewFlags) (dashboard.Snapshot, error) {
	c, err := f.criteria(cmd.Flags())
	if err != nil {
		return dashboard.Snapshot{}, err
	}
	clock, err := f.clock()
	if err != nil {
		return dashboard.Snapshot{}, err
	}
	window := f.window
	if window <= 0 {
		window = cfg.Analytics.TrendingWindowDays
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, closeProvider, err := openProvider(ctx)
	if err != nil {
		return dashboard.Snapshot{}, err
	}
	defer closeProvider()

	graph := dashboard.New(dashboard.WithClock(clock), dashboard.WithTrendingWindow(window))
	if _, err := graph.Load(ctx, provider); err != nil {
		return dashboard.Snapshot{}, err
	}
	return graph.SetCriteria(c), nil
}

// --- report command ---

var (
	reportFlags viewFlags
	reportTitle string
	reportLimit int
	reportOut   string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print a markdown report of the loaded runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := loadSnapshot(cmd, &reportFlags)
		if err != nil {
			return err
		}
		out := report.Render(snap, report.Options{Title: reportTitle, MaxArticles: reportLimit})
		if reportOut == "" {
			fmt.Print(out)
			return nil
		}
		if err := os.WriteFile(reportOut, []byte(out), 0o644); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		fmt.Printf("Report written to %s\n", reportOut)
		return nil
	},
}

func init() {
	reportFlags.register(reportCmd.Flags())
	reportCmd.Flags().StringVar(&reportTitle, "title", "", "Report heading")
	reportCmd.Flags().IntVar(&reportLimit, "limit", 0, "Latest articles to list (default 20, -1 hides them)")
	reportCmd.Flags().StringVarP(&reportOut, "output", "o", "", "Write the report to a file instead of stdout")
}

// --- daily command ---

var dailyFlags viewFlags

var dailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "Print per-day run metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := loadSnapshot(cmd, &dailyFlags)
		if err != nil {
			return err
		}
		fmt.Println(report.DailyTable(snap.DailyMetrics))
		return nil
	},
}

func init() {
	dailyFlags.register(dailyCmd.Flags())
}

// --- trending command ---

var trendingFlags viewFlags

var trendingCmd = &cobra.Command{
	Use:   "trending",
	Short: "Print topics gaining coverage in the recent window",
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := loadSnapshot(cmd, &trendingFlags)
		if err != nil {
			return err
		}
		fmt.Printf("Trending over the last %d days (as of %s)\n\n", snap.WindowDays, snap.Now.Format("Jan 02, 2006 15:04"))
		fmt.Println(report.TrendingTable(snap.TrendingTopics))
		return nil
	},
}

func init() {
	trendingFlags.register(trendingCmd.Flags())
}
