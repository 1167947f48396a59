// Package loader reads monitoring runs from the places they are kept: a
// directory of run files, the SQLite archive, or an S3 bucket.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/TobiSchelling/topicwatch/internal/metrics"
	"github.com/TobiSchelling/topicwatch/internal/model"
)

// ErrNoRuns is returned when run files were listed but none could be read.
var ErrNoRuns = errors.New("no readable monitoring runs")

const defaultWorkers = 8

// Provider supplies the full set of monitoring runs, newest first.
type Provider interface {
	LoadAll(ctx context.Context) ([]model.MonitoringRun, error)
}

type readFunc func(ctx context.Context, name string) (model.MonitoringRun, error)

// loadEach reads every named run with at most workers in flight. A run that
// fails to read is logged and skipped. Only cancellation aborts the load.
func loadEach(ctx context.Context, source string, names []string, workers int, read readFunc) ([]model.MonitoringRun, error) {
	if workers <= 0 {
		workers = defaultWorkers
	}

	results := make([]*model.MonitoringRun, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			run, err := read(gctx, name)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.Printf("Skipping run file %s: %v", name, err)
				metrics.RecordSkippedFile(source)
				return nil
			}
			results[i] = &run
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	runs := make([]model.MonitoringRun, 0, len(names))
	for _, r := range results {
		if r != nil {
			runs = append(runs, *r)
		}
	}
	if len(names) > 0 && len(runs) == 0 {
		return nil, fmt.Errorf("%w: all %d files from %s failed", ErrNoRuns, len(names), source)
	}

	sortRuns(runs)
	return runs, nil
}

// sortRuns orders runs newest first. Runs without a timestamp go last.
func sortRuns(runs []model.MonitoringRun) {
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].RunTimestamp.After(runs[j].RunTimestamp)
	})
}
