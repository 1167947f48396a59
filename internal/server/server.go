// Package server serves the dashboard: an HTML report page and a JSON API
// over the derivation graph.
package server

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/TobiSchelling/topicwatch/internal/analytics"
	"github.com/TobiSchelling/topicwatch/internal/dashboard"
	"github.com/TobiSchelling/topicwatch/internal/model"
	"github.com/TobiSchelling/topicwatch/internal/report"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New(goldmark.WithExtensions(extension.Table))

const defaultArticleLimit = 100

// Server is the HTTP server for the monitoring dashboard.
type Server struct {
	graph    *dashboard.Graph
	provider dashboard.Provider
	page     *template.Template
	mux      *http.ServeMux

	mu          sync.Mutex
	cachedHTML  template.HTML
	cachedAtVer uint64
}

// New creates a new Server. provider backs POST /api/reload and may be nil.
func New(graph *dashboard.Graph, provider dashboard.Provider) (*Server, error) {
	funcMap := template.FuncMap{
		"selected": func(list []string, v string) bool { return slices.Contains(list, v) },
		"day": func(t *time.Time) string {
			if t == nil {
				return ""
			}
			return t.Format(model.DayLayout)
		},
		"confidence": func(v *float64) string {
			if v == nil {
				return ""
			}
			return strconv.FormatFloat(*v, 'f', -1, 64)
		},
	}

	page, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html", "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}

	s := &Server{graph: graph, provider: provider, page: page, mux: http.NewServeMux()}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))
	s.mux.Handle("GET /metrics", promhttp.Handler())

	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("POST /filters", s.handleFilterForm)
	s.mux.HandleFunc("POST /filters/reset", s.handleFilterReset)

	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("GET /api/snapshot", s.handleSnapshot)
	s.mux.HandleFunc("GET /api/articles", s.handleArticles)
	s.mux.HandleFunc("GET /api/topics", view(s, func(sn dashboard.Snapshot) any { return sn.TopicDistribution }))
	s.mux.HandleFunc("GET /api/sources", view(s, func(sn dashboard.Snapshot) any { return sn.SourceDistribution }))
	s.mux.HandleFunc("GET /api/daily", view(s, func(sn dashboard.Snapshot) any { return sn.DailyMetrics }))
	s.mux.HandleFunc("GET /api/trending", view(s, func(sn dashboard.Snapshot) any { return sn.TrendingTopics }))
	s.mux.HandleFunc("GET /api/confidence", view(s, func(sn dashboard.Snapshot) any { return sn.AverageConfidence }))
	s.mux.HandleFunc("GET /api/facets", view(s, func(sn dashboard.Snapshot) any {
		return map[string][]string{"topics": sn.Topics, "sources": sn.Sources}
	}))
	s.mux.HandleFunc("GET /api/filters", s.handleGetFilters)
	s.mux.HandleFunc("PUT /api/filters", s.handlePutFilters)
	s.mux.HandleFunc("DELETE /api/filters", s.handleDeleteFilters)
	s.mux.HandleFunc("POST /api/reload", s.handleReload)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.graph.Snapshot()
	s.render(w, map[string]any{
		"Snapshot": snap,
		"Status":   s.graph.Status(),
		"Report":   s.reportHTML(snap),
	})
}

// reportHTML renders the markdown report once per snapshot version.
func (s *Server) reportHTML(snap dashboard.Snapshot) template.HTML {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cachedHTML != "" && s.cachedAtVer == snap.Version {
		return s.cachedHTML
	}
	s.cachedHTML = renderMarkdown(report.Render(snap, report.Options{}))
	s.cachedAtVer = snap.Version
	return s.cachedHTML
}

func (s *Server) handleFilterForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	c, err := criteriaFromForm(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.graph.SetCriteria(c)
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleFilterReset(w http.ResponseWriter, r *http.Request) {
	s.graph.ResetFilters()
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.graph.Status())
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.graph.Snapshot())
}

func (s *Server) handleArticles(w http.ResponseWriter, r *http.Request) {
	limit := defaultArticleLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", v))
			return
		}
		limit = n
	}

	snap := s.graph.Snapshot()
	articles := snap.Filtered
	if limit > 0 && len(articles) > limit {
		articles = articles[:limit]
	}
	if articles == nil {
		articles = []model.Article{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"version":  snap.Version,
		"total":    snap.FilteredCount,
		"articles": articles,
	})
}

func view(s *Server, pick func(dashboard.Snapshot) any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, pick(s.graph.Snapshot()))
	}
}

func (s *Server) handleGetFilters(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.graph.Criteria())
}

func (s *Server) handlePutFilters(w http.ResponseWriter, r *http.Request) {
	var c analytics.Criteria
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Errorf("decoding filters: %w", err))
		return
	}
	if err := validateCriteria(c); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	respondJSON(w, http.StatusOK, s.graph.SetCriteria(c))
}

func (s *Server) handleDeleteFilters(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.graph.ResetFilters())
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if s.provider == nil {
		respondError(w, http.StatusServiceUnavailable, errors.New("no data source configured"))
		return
	}
	snap, err := s.graph.Load(r.Context(), s.provider)
	if err != nil {
		if errors.Is(err, dashboard.ErrLoadAbandoned) {
			return
		}
		respondError(w, http.StatusBadGateway, errors.New(dashboard.LoadFailedMessage))
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) render(w http.ResponseWriter, data any) {
	var buf bytes.Buffer
	if err := s.page.ExecuteTemplate(&buf, "base.html", data); err != nil {
		log.Printf("Error rendering dashboard: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes()) //nolint: errcheck
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, map[string]string{"error": err.Error()})
}

func criteriaFromForm(r *http.Request) (analytics.Criteria, error) {
	c := analytics.Criteria{
		Topics:      nonEmpty(r.Form["topic"]),
		Sources:     nonEmpty(r.Form["source"]),
		SearchQuery: strings.TrimSpace(r.FormValue("query")),
	}
	if v := r.FormValue("since"); v != "" {
		t, err := report.ParseDay(v, time.UTC, false)
		if err != nil {
			return c, err
		}
		c.StartDate = &t
	}
	if v := r.FormValue("until"); v != "" {
		t, err := report.ParseDay(v, time.UTC, true)
		if err != nil {
			return c, err
		}
		c.EndDate = &t
	}
	if v := strings.TrimSpace(r.FormValue("min_confidence")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return c, fmt.Errorf("invalid min_confidence %q", v)
		}
		c.MinConfidence = &f
	}
	return c, validateCriteria(c)
}

func validateCriteria(c analytics.Criteria) error {
	if c.MinConfidence != nil && (*c.MinConfidence < 0 || *c.MinConfidence > 1) {
		return fmt.Errorf("min_confidence must be between 0 and 1, got %g", *c.MinConfidence)
	}
	if c.StartDate != nil && c.EndDate != nil && c.EndDate.Before(*c.StartDate) {
		return errors.New("end date is before start date")
	}
	return nil
}

func nonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

const shutdownTimeout = 5 * time.Second

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully. It returns nil after a clean shutdown.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{Addr: addr, Handler: s.mux, ReadHeaderTimeout: 10 * time.Second}

	errc := make(chan error, 1)
	go func() { errc <- httpSrv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Serve starts the HTTP server on the given port and stops it when ctx is
// cancelled.
func Serve(ctx context.Context, graph *dashboard.Graph, provider dashboard.Provider, port int) error {
	srv, err := New(graph, provider)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	log.Printf("Server listening on http://%s", addr)
	return srv.ListenAndServe(ctx, addr)
}
