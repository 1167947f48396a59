package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/topicwatch/internal/config"
	"github.com/TobiSchelling/topicwatch/internal/dashboard"
	"github.com/TobiSchelling/topicwatch/internal/database"
	"github.com/TobiSchelling/topicwatch/internal/loader"
	"github.com/TobiSchelling/topicwatch/internal/pipeline"
	"github.com/TobiSchelling/topicwatch/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "topicwatch",
	Short:   "Topic monitoring runs and analytics",
	Long:    "topicwatch collects and classifies news into monitoring runs and derives topic, source, daily and trending views from them.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setLogFlags(verbose)

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		setLogFlags(verbose || strings.EqualFold(cfg.Logging.Level, "DEBUG"))
		return nil
	},
}

func setLogFlags(debug bool) {
	if debug {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	} else {
		log.SetFlags(log.LstdFlags)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(dailyCmd)
	rootCmd.AddCommand(trendingCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("topicwatch", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/topicwatch/ and create the runs directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		target, created, runsDir, err := initWorkspace(config.ConfigDir())
		if err != nil {
			return err
		}
		if created {
			fmt.Printf("Created config: %s\n", target)
			fmt.Println("Edit it to configure feeds, topics, and LLM provider.")
		} else {
			fmt.Printf("Config already exists: %s\n", target)
		}
		fmt.Printf("Runs directory: %s\n", runsDir)
		return nil
	},
}

// initWorkspace writes the default config into configDir unless one exists,
// then creates the runs directory that config points at so the first load
// finds an empty directory rather than a missing one.
func initWorkspace(configDir string) (target string, created bool, runsDir string, err error) {
	target = filepath.Join(configDir, "config.yaml")
	if _, statErr := os.Stat(target); statErr != nil {
		if err := os.MkdirAll(configDir, 0o755); err != nil {
			return target, false, "", fmt.Errorf("creating config directory: %w", err)
		}
		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return target, false, "", fmt.Errorf("writing config: %w", err)
		}
		created = true
	}

	loaded, err := config.Load(target)
	if err != nil {
		return target, created, "", fmt.Errorf("loading config: %w", err)
	}
	runsDir = loaded.GetRunsDir()
	if err := os.MkdirAll(runsDir, 0o755); err != nil {
		return target, created, runsDir, fmt.Errorf("creating runs directory: %w", err)
	}
	return target, created, runsDir, nil
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show run directory and archive status",
	RunE: func(cmd *cobra.Command, args []string) error {
		runsDir := cfg.GetRunsDir()
		fmt.Printf("Data source: %s\n\n", cfg.Data.Source)

		fmt.Println("Run directory:")
		fmt.Printf("  Path: %s\n", runsDir)
		names, err := loader.ListRunFiles(runsDir)
		if err != nil {
			fmt.Println("  Not created yet. Run 'topicwatch collect'.")
		} else {
			fmt.Printf("  Run files: %d\n", len(names))
			if m, err := loader.ReadManifest(runsDir); err == nil && m.UpdatedAt != "" {
				fmt.Printf("  Manifest updated: %s\n", m.UpdatedAt)
			}
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}
		fmt.Println("\nArchive:")
		fmt.Printf("  Path: %s\n", db.Path())
		if v, err := db.SchemaVersion(); err == nil {
			fmt.Printf("  Schema version: %d\n", v)
		}
		fmt.Printf("  Runs: %d\n", stats.Runs)
		fmt.Printf("  Articles: %d\n", stats.Articles)
		fmt.Printf("  Days with runs: %d (%s)\n", stats.Days, database.FormatDayRange(stats.FirstDay, stats.LastDay))
		if stats.LastRun != "" {
			fmt.Printf("  Last run: %s\n", stats.LastRun)
		}

		fmt.Println("\nTopics:")
		for _, t := range cfg.Monitor.Topics {
			fmt.Printf("  %s (%d keywords)\n", t.Name, len(t.Keywords))
		}
		return nil
	},
}

// --- collect command ---

var (
	dryRun    bool
	noArchive bool
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Run the monitor once: collect -> classify -> fetch -> summarize -> save",
	RunE: func(cmd *cobra.Command, args []string) error {
		if dryRun {
			printSteps(pipeline.DryRun(cfg))
			return nil
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var db *database.DB
		if !noArchive {
			var err error
			if db, err = openDB(); err != nil {
				return err
			}
			defer db.Close()
		}

		var uploader pipeline.Uploader
		if cfg.Data.S3.Bucket != "" {
			p, err := newS3Provider(ctx)
			if err != nil {
				return err
			}
			uploader = p
		}

		result, err := pipeline.NewFromConfig(cfg, db, uploader).Run(ctx)
		printSteps(result.Steps)
		if err != nil {
			return err
		}

		run := result.Run
		fmt.Println("\nRun complete:")
		fmt.Printf("  Fetched: %d\n", run.TotalFetched)
		fmt.Printf("  Classified: %d\n", run.TotalClassified)
		fmt.Printf("  Discarded: %d\n", run.TotalDiscarded)
		fmt.Printf("  File: %s\n", filepath.Join(cfg.GetRunsDir(), result.FileName))
		fmt.Println("\nRun 'topicwatch report' or 'topicwatch serve' to view the results.")
		return nil
	},
}

func init() {
	collectCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be done without executing")
	collectCmd.Flags().BoolVar(&noArchive, "no-archive", false, "Do not copy the run into the SQLite archive")
}

func printSteps(steps []pipeline.StepResult) {
	for i, step := range steps {
		fmt.Printf("\nStep %d/%d: %s\n", i+1, len(steps), step.Name)
		if step.Err != nil {
			fmt.Printf("  Error: %v\n", step.Err)
		} else {
			fmt.Printf("  %s\n", step.Summary)
		}
	}
}

// --- import command ---

var importFrom string

var importCmd = &cobra.Command{
	Use:   "import [dir]",
	Short: "Copy run files into the SQLite archive",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var provider dashboard.Provider
		switch importFrom {
		case config.SourceS3:
			p, err := newS3Provider(ctx)
			if err != nil {
				return err
			}
			provider = p
		case config.SourceDir:
			dir := cfg.GetRunsDir()
			if len(args) == 1 {
				dir = args[0]
			}
			provider = &loader.DirProvider{Dir: dir, Workers: cfg.Data.Workers}
		default:
			return fmt.Errorf("cannot import from %q (use %s or %s)", importFrom, config.SourceDir, config.SourceS3)
		}

		runs, err := provider.LoadAll(ctx)
		if err != nil && !errors.Is(err, loader.ErrNoRuns) {
			return fmt.Errorf("reading runs: %w", err)
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		imported, skipped := 0, 0
		for _, run := range runs {
			id, err := db.InsertRun(run)
			if err != nil {
				return err
			}
			if id == 0 {
				skipped++
				continue
			}
			imported++
		}
		fmt.Printf("Imported %d runs (%d already archived).\n", imported, skipped)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importFrom, "from", config.SourceDir, "Where to read runs from (dir or s3)")
}

// --- serve command ---

var (
	servePort   int
	reloadEvery time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local dashboard server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		provider, closeProvider, err := openProvider(ctx)
		if err != nil {
			return err
		}
		defer closeProvider()

		graph := dashboard.New(dashboard.WithTrendingWindow(cfg.Analytics.TrendingWindowDays))
		if verbose {
			graph.Subscribe(func(s dashboard.Snapshot) {
				log.Printf("Views recomputed (version %d): %d/%d articles match", s.Version, s.FilteredCount, s.TotalArticles)
			})
		}
		if _, err := graph.Load(ctx, provider); err != nil {
			log.Printf("Initial load failed, serving empty dashboard: %v", err)
		}

		if reloadEvery > 0 {
			go reloadLoop(ctx, graph, provider, reloadEvery)
		}

		port := servePort
		if !cmd.Flags().Changed("port") {
			port = cfg.Server.Port
		}
		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(ctx, graph, provider, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
	serveCmd.Flags().DurationVar(&reloadEvery, "reload-every", 0, "Reload runs periodically (e.g. 15m); 0 disables")
}

// reloadLoop reloads runs on every tick. The trending window also moves
// with the clock on each reload.
func reloadLoop(ctx context.Context, graph *dashboard.Graph, provider dashboard.Provider, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := graph.Load(ctx, provider); err != nil {
				graph.Refresh()
			}
		}
	}
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return database.Open(cfg.ArchivePath())
}

func newS3Provider(ctx context.Context) (*loader.S3Provider, error) {
	s3cfg := cfg.Data.S3
	return loader.NewS3Provider(ctx, s3cfg.Bucket, s3cfg.Prefix, s3cfg.Region, cfg.Data.Workers)
}

// openProvider returns the run source selected by data.source. The returned
// close function is always safe to call.
func openProvider(ctx context.Context) (dashboard.Provider, func(), error) {
	noop := func() {}
	switch cfg.Data.Source {
	case config.SourceArchive:
		db, err := openDB()
		if err != nil {
			return nil, noop, err
		}
		return &loader.ArchiveProvider{DB: db}, func() { db.Close() }, nil
	case config.SourceS3:
		p, err := newS3Provider(ctx)
		if err != nil {
			return nil, noop, err
		}
		return p, noop, nil
	default:
		return &loader.DirProvider{Dir: cfg.GetRunsDir(), Workers: cfg.Data.Workers}, noop, nil
	}
}
