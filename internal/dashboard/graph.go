package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/TobiSchelling/topicwatch/internal/analytics"
	"github.com/TobiSchelling/topicwatch/internal/metrics"
	"github.com/TobiSchelling/topicwatch/internal/model"
)

// LoadFailedMessage is the user-facing text recorded when a whole load fails.
const LoadFailedMessage = "Failed to load monitoring data. Please try again."

// ErrLoadAbandoned is returned when the caller cancelled a load before it
// completed. The run store is left untouched.
var ErrLoadAbandoned = errors.New("load abandoned")

// Provider supplies the full set of monitoring runs.
type Provider interface {
	LoadAll(ctx context.Context) ([]model.MonitoringRun, error)
}

// Status describes the load state of a graph.
type Status struct {
	Loading   bool   `json:"loading"`
	LoadError string `json:"load_error,omitempty"`
	Version   uint64 `json:"version"`
	Runs      int    `json:"runs"`
}

// Option configures a Graph.
type Option func(*Graph)

// WithClock sets the source of "now" for the trending window.
func WithClock(now func() time.Time) Option {
	return func(g *Graph) { g.now = now }
}

// WithTrendingWindow sets the trending window size in days.
func WithTrendingWindow(days int) Option {
	return func(g *Graph) {
		if days > 0 {
			g.windowDays = days
		}
	}
}

// Graph owns one run store and one filter selection. Every mutation
// recomputes all derived views before it returns, so readers never observe
// a partially updated state.
//
// Subscribers are notified in version order. They must not call mutating
// methods from inside the callback.
type Graph struct {
	mu       sync.Mutex
	notifyMu sync.Mutex

	runs     []model.MonitoringRun
	criteria analytics.Criteria
	snap     Snapshot

	loading int
	loadErr error

	subs    map[int]func(Snapshot)
	nextSub int

	now        func() time.Time
	windowDays int
}

// New creates an empty graph and computes its initial snapshot.
func New(opts ...Option) *Graph {
	g := &Graph{
		subs:       make(map[int]func(Snapshot)),
		now:        time.Now,
		windowDays: analytics.DefaultTrendingWindowDays,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.snap = Derive(nil, analytics.Criteria{}, g.now(), g.windowDays)
	return g
}

// Snapshot returns the current derived views.
func (g *Graph) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snap
}

// Criteria returns a copy of the current filter selection.
func (g *Graph) Criteria() analytics.Criteria {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.criteria.Clone()
}

// Status reports whether a load is in flight and the last load error.
func (g *Graph) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := Status{Loading: g.loading > 0, Version: g.snap.Version, Runs: len(g.runs)}
	if g.loadErr != nil {
		s.LoadError = LoadFailedMessage
	}
	return s
}

// Loading reports whether any load is in flight.
func (g *Graph) Loading() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.loading > 0
}

// Subscribe registers fn to receive every new snapshot. The returned
// function removes the subscription.
func (g *Graph) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	g.mu.Lock()
	id := g.nextSub
	g.nextSub++
	g.subs[id] = fn
	g.mu.Unlock()

	return func() {
		g.mu.Lock()
		delete(g.subs, id)
		g.mu.Unlock()
	}
}

// SetRuns replaces the run store. Runs are never merged.
func (g *Graph) SetRuns(runs []model.MonitoringRun) Snapshot {
	return g.update("runs", func() {
		g.runs = slices.Clone(runs)
	})
}

// SetTopics restricts articles to those carrying any of topics. An empty
// list removes the restriction.
func (g *Graph) SetTopics(topics []string) Snapshot {
	return g.update("filters", func() {
		g.criteria.Topics = slices.Clone(topics)
	})
}

// SetSources restricts articles to the given source feeds.
func (g *Graph) SetSources(sources []string) Snapshot {
	return g.update("filters", func() {
		g.criteria.Sources = slices.Clone(sources)
	})
}

// SetDateRange bounds the processed date (inclusive). nil leaves that side
// open.
func (g *Graph) SetDateRange(start, end *time.Time) Snapshot {
	return g.update("filters", func() {
		g.criteria.StartDate = cloneTime(start)
		g.criteria.EndDate = cloneTime(end)
	})
}

// SetMinConfidence requires an article's best confidence score to reach v.
// nil removes the restriction.
func (g *Graph) SetMinConfidence(v *float64) Snapshot {
	return g.update("filters", func() {
		if v == nil {
			g.criteria.MinConfidence = nil
			return
		}
		val := *v
		g.criteria.MinConfidence = &val
	})
}

// SetSearchQuery sets the free-text query. "" removes the restriction.
func (g *Graph) SetSearchQuery(q string) Snapshot {
	return g.update("filters", func() {
		g.criteria.SearchQuery = q
	})
}

// SetCriteria replaces the whole filter selection at once.
func (g *Graph) SetCriteria(c analytics.Criteria) Snapshot {
	return g.update("filters", func() {
		g.criteria = c.Clone()
	})
}

// ResetFilters restores every filter to "no restriction".
func (g *Graph) ResetFilters() Snapshot {
	return g.update("filters", func() {
		g.criteria.Reset()
	})
}

// Refresh recomputes with the current clock reading. The trending window
// moves with time even when the data does not.
func (g *Graph) Refresh() Snapshot {
	return g.update("refresh", func() {})
}

// Load fetches all runs from p and replaces the run store with them.
//
// The provider runs without holding the graph lock. If the whole load fails
// the previous runs are kept and the failure is recorded for Status. If ctx
// is cancelled before the load completes the result is discarded. When loads
// overlap, the one that completes last wins.
func (g *Graph) Load(ctx context.Context, p Provider) (Snapshot, error) {
	g.mu.Lock()
	g.loading++
	g.mu.Unlock()

	runs, err := p.LoadAll(ctx)

	if ctxErr := ctx.Err(); ctxErr != nil {
		g.finishLoad(nil)
		metrics.RecordLoad("abandoned")
		return g.Snapshot(), fmt.Errorf("%w: %w", ErrLoadAbandoned, ctxErr)
	}
	if err != nil {
		log.Printf("Failed to load monitoring data: %v", err)
		g.finishLoad(err)
		metrics.RecordLoad("error")
		return g.Snapshot(), fmt.Errorf("loading runs: %w", err)
	}

	snap := g.update("load", func() {
		g.loading--
		g.loadErr = nil
		g.runs = runs
	})
	metrics.RecordLoad("ok")
	log.Printf("Loaded %d runs (%d articles)", snap.TotalRuns, snap.TotalArticles)
	return snap, nil
}

func (g *Graph) finishLoad(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.loading--
	if err != nil {
		g.loadErr = err
	}
}

// update applies mutate and recomputes every derived view under the lock,
// then notifies subscribers in version order.
func (g *Graph) update(trigger string, mutate func()) Snapshot {
	g.mu.Lock()
	mutate()

	start := time.Now()
	snap := Derive(g.runs, g.criteria.Clone(), g.now(), g.windowDays)
	snap.Version = g.snap.Version + 1
	g.snap = snap
	metrics.RecordRecompute(trigger, time.Since(start).Seconds())
	metrics.SetLoaded(snap.TotalRuns, snap.TotalArticles)

	subs := make([]func(Snapshot), 0, len(g.subs))
	for _, fn := range g.subs {
		subs = append(subs, fn)
	}

	g.notifyMu.Lock()
	g.mu.Unlock()
	defer g.notifyMu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
	return snap
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
