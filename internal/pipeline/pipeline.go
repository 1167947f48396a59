// Package pipeline produces monitoring runs: collect, classify, fetch,
// summarize, then save.
package pipeline

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/TobiSchelling/topicwatch/internal/classify"
	"github.com/TobiSchelling/topicwatch/internal/collect"
	"github.com/TobiSchelling/topicwatch/internal/config"
	"github.com/TobiSchelling/topicwatch/internal/database"
	"github.com/TobiSchelling/topicwatch/internal/fetch"
	"github.com/TobiSchelling/topicwatch/internal/llm"
	"github.com/TobiSchelling/topicwatch/internal/loader"
	"github.com/TobiSchelling/topicwatch/internal/model"
	"github.com/TobiSchelling/topicwatch/internal/summarize"
)

// Source yields candidate feed entries.
type Source interface {
	Collect(ctx context.Context) ([]collect.FeedEntry, error)
}

// Fetcher returns the readable text of a page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Summarizer writes an article summary. It never fails.
type Summarizer interface {
	Summarize(ctx context.Context, in summarize.Input) string
}

// Uploader publishes an encoded run file.
type Uploader interface {
	Upload(ctx context.Context, name string, data []byte) error
}

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a full pipeline run.
type Result struct {
	Run      model.MonitoringRun
	FileName string
	Steps    []StepResult
}

// Deps are the collaborators of a pipeline. Fetcher, Archive and Uploader
// are optional.
type Deps struct {
	Source     Source
	Classifier classify.Classifier
	Fetcher    Fetcher
	Summarizer Summarizer
	Archive    *database.DB
	Uploader   Uploader
	Now        func() time.Time
}

// Pipeline runs the monitor once per Run call.
type Pipeline struct {
	deps    Deps
	runsDir string
	prefix  string
}

// New creates a pipeline writing run files into runsDir.
func New(runsDir, prefix string, deps Deps) *Pipeline {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Pipeline{deps: deps, runsDir: runsDir, prefix: prefix}
}

// NewFromConfig wires the real collectors, classifier and LLM provider.
func NewFromConfig(cfg *config.Config, db *database.DB, uploader Uploader) *Pipeline {
	summ := cfg.Summarization
	provider := llm.CreateProvider(summ.Provider, summ.Model, summ.OllamaURL, summ.OpenAIModel, summ.APIKeyEnv)

	deps := Deps{
		Source:     collect.NewCollector(cfg),
		Classifier: classify.New(cfg, provider),
		Summarizer: summarize.NewSummarizer(provider, summ.MaxTokens),
		Archive:    db,
		Uploader:   uploader,
	}
	if cfg.Monitor.FetchContent {
		deps.Fetcher = fetch.NewContentFetcher(time.Duration(cfg.Monitor.FetchTimeoutSeconds) * time.Second)
	}
	return New(cfg.GetRunsDir(), cfg.Monitor.FilePrefix, deps)
}

type classified struct {
	entry  collect.FeedEntry
	result classify.Result
}

// Run executes one monitoring run. Per-article failures are absorbed; only
// a failed collection, cancellation, or a failed run-file write is an error.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	r := &Result{}

	log.Println("Step 1/4: Collecting articles...")
	entries, err := p.deps.Source.Collect(ctx)
	if err != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Collect", Err: err})
		return r, fmt.Errorf("collecting: %w", err)
	}
	r.Steps = append(r.Steps, StepResult{Name: "Collect", Summary: fmt.Sprintf("Found %d articles", len(entries))})

	log.Printf("Step 2/4: Classifying %d articles...", len(entries))
	kept, discarded, err := p.classifyAll(ctx, entries)
	if err != nil {
		return r, err
	}
	r.Steps = append(r.Steps, StepResult{
		Name:    "Classify",
		Summary: fmt.Sprintf("%d relevant, %d discarded", len(kept), discarded),
	})

	log.Printf("Step 3/4: Processing %d classified articles...", len(kept))
	articles, fullContent, err := p.processAll(ctx, kept)
	if err != nil {
		return r, err
	}
	r.Steps = append(r.Steps, StepResult{
		Name:    "Process",
		Summary: fmt.Sprintf("Summarized %d articles, %d with full content", len(articles), fullContent),
	})

	log.Println("Step 4/4: Saving run...")
	ts := p.deps.Now()
	run := model.MonitoringRun{
		RunID:           loader.RunFileName(p.prefix, ts),
		RunTimestamp:    ts,
		TotalFetched:    len(entries),
		TotalClassified: len(articles),
		TotalDiscarded:  discarded,
		Articles:        articles,
	}
	step, err := p.save(ctx, run)
	r.Steps = append(r.Steps, step)
	r.Run = run
	r.FileName = run.RunID
	if err != nil {
		return r, err
	}
	return r, nil
}

func (p *Pipeline) classifyAll(ctx context.Context, entries []collect.FeedEntry) ([]classified, int, error) {
	var kept []classified
	discarded := 0
	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		res, err := p.deps.Classifier.Classify(ctx, classify.Input{Title: e.Title, Description: e.Description})
		if err != nil {
			if ctx.Err() != nil {
				return nil, 0, ctx.Err()
			}
			log.Printf("Error classifying article %q: %v", e.Title, err)
			discarded++
			continue
		}
		if res.Empty() {
			discarded++
			continue
		}
		log.Printf("Classified %d/%d [%s]: %s", i+1, len(entries), strings.Join(res.Topics, ", "), e.Title)
		kept = append(kept, classified{entry: e, result: res})
	}
	return kept, discarded, nil
}

func (p *Pipeline) processAll(ctx context.Context, kept []classified) ([]model.Article, int, error) {
	articles := make([]model.Article, 0, len(kept))
	withContent := 0
	for _, c := range kept {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		e := c.entry

		var content string
		if p.deps.Fetcher != nil && e.Link != "" {
			text, err := p.deps.Fetcher.Fetch(ctx, e.Link)
			if err != nil {
				log.Printf("No full content for %s, using feed description: %v", e.Link, err)
			} else {
				content = text
				withContent++
			}
		}

		summary := e.Description
		if p.deps.Summarizer != nil {
			summary = p.deps.Summarizer.Summarize(ctx, summarize.Input{
				Title:       e.Title,
				Description: e.Description,
				Content:     content,
				Topics:      c.result.Topics,
			})
		}

		articles = append(articles, model.Article{
			ID:                  ArticleID(e.Title, e.Link),
			Title:               e.Title,
			Summary:             summary,
			OriginalDescription: e.Description,
			Link:                e.Link,
			Topics:              c.result.Topics,
			SourceFeed:          e.Source,
			ConfidenceScores:    c.result.Confidence,
			DatePublished:       e.Published,
			DateProcessed:       p.deps.Now(),
			HasFullContent:      content != "",
		})
	}
	return articles, withContent, nil
}

func (p *Pipeline) save(ctx context.Context, run model.MonitoringRun) (StepResult, error) {
	name, err := loader.WriteRun(p.runsDir, p.prefix, run)
	if err != nil {
		return StepResult{Name: "Save", Err: err}, err
	}
	if _, err := loader.WriteManifest(p.runsDir); err != nil {
		log.Printf("Failed to update manifest in %s: %v", p.runsDir, err)
	}

	var notes []string
	if p.deps.Archive != nil {
		if _, err := p.deps.Archive.InsertRun(run); err != nil {
			log.Printf("Failed to archive run %s: %v", name, err)
		} else {
			notes = append(notes, "archived")
		}
	}
	if p.deps.Uploader != nil {
		data, err := loader.EncodeRun(run)
		if err == nil {
			err = p.deps.Uploader.Upload(ctx, name, data)
		}
		if err != nil {
			log.Printf("Failed to upload run %s: %v", name, err)
		} else {
			notes = append(notes, "uploaded")
		}
	}

	summary := fmt.Sprintf("Saved %d articles to %s", len(run.Articles), name)
	if len(notes) > 0 {
		summary += " (" + strings.Join(notes, ", ") + ")"
	}
	log.Print(summary)
	return StepResult{Name: "Save", Summary: summary}, nil
}

// DryRun describes what Run would do without contacting any feed.
func DryRun(cfg *config.Config) []StepResult {
	return []StepResult{
		{Name: "Collect", Summary: fmt.Sprintf("[dry-run] Would read %d feeds (max %d entries each)",
			len(cfg.Monitor.Feeds), cfg.Monitor.MaxPerFeed)},
		{Name: "Classify", Summary: fmt.Sprintf("[dry-run] Would classify against %d topics at threshold %.2f",
			len(cfg.Monitor.Topics), cfg.Monitor.ClassificationThreshold)},
		{Name: "Process", Summary: fmt.Sprintf("[dry-run] Full-text fetch enabled: %t", cfg.Monitor.FetchContent)},
		{Name: "Save", Summary: fmt.Sprintf("[dry-run] Would write %s_<timestamp>.json to %s",
			cfg.Monitor.FilePrefix, cfg.GetRunsDir())},
	}
}

// ArticleID is a stable identifier derived from title and link.
func ArticleID(title, link string) string {
	sum := md5.Sum([]byte(title + "_" + link))
	return hex.EncodeToString(sum[:])
}
