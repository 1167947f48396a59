package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/TobiSchelling/topicwatch/internal/model"
)

// InsertRun archives a run with its articles. It returns the row ID, or 0
// if a run with the same run_id is already archived.
func (db *DB) InsertRun(run model.MonitoringRun) (int64, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin insert run: %w", err)
	}
	defer tx.Rollback() //nolint: errcheck

	result, err := tx.Exec(
		`INSERT OR IGNORE INTO runs (run_id, run_timestamp, total_fetched, total_classified, total_discarded)
		VALUES (?, ?, ?, ?, ?)`,
		run.RunID, model.FormatTimestamp(run.RunTimestamp),
		run.TotalFetched, run.TotalClassified, run.TotalDiscarded,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting run %s: %w", run.RunID, err)
	}
	if n, err := result.RowsAffected(); err != nil || n == 0 {
		return 0, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.Prepare(
		`INSERT INTO run_articles (run_id, position, article_id, title, summary, original_description,
		link, topics, source_feed, confidence_scores, date_published, date_processed, has_full_content)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, fmt.Errorf("preparing article insert: %w", err)
	}
	defer stmt.Close()

	for i, a := range run.Articles {
		topics, err := json.Marshal(nonNilStrings(a.Topics))
		if err != nil {
			return 0, err
		}
		scores, err := json.Marshal(nonNilScores(a.ConfidenceScores))
		if err != nil {
			return 0, err
		}
		fullContent := 0
		if a.HasFullContent {
			fullContent = 1
		}
		if _, err := stmt.Exec(run.RunID, i, a.ID, a.Title, a.Summary, a.OriginalDescription,
			a.Link, string(topics), a.SourceFeed, string(scores), a.DatePublished,
			model.FormatTimestamp(a.DateProcessed), fullContent); err != nil {
			return 0, fmt.Errorf("inserting article %d of run %s: %w", i, run.RunID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit run %s: %w", run.RunID, err)
	}
	return id, nil
}

// ListRuns returns every archived run, newest first, with articles in the
// order they were recorded.
func (db *DB) ListRuns(ctx context.Context) ([]model.MonitoringRun, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT run_id, run_timestamp, total_fetched, total_classified, total_discarded
		FROM runs ORDER BY run_timestamp DESC, id DESC`,
	)
	if err != nil {
		return nil, err
	}
	runs, err := scanRuns(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	index := make(map[string]int, len(runs))
	for i, r := range runs {
		index[r.RunID] = i
	}

	articleRows, err := db.conn.QueryContext(ctx, selectRunArticles+` ORDER BY run_id, position`)
	if err != nil {
		return nil, err
	}
	defer articleRows.Close()

	for articleRows.Next() {
		runID, a, err := scanRunArticle(articleRows)
		if err != nil {
			return nil, err
		}
		if i, ok := index[runID]; ok {
			runs[i].Articles = append(runs[i].Articles, a)
		}
	}
	if err := articleRows.Err(); err != nil {
		return nil, err
	}

	// Stored offsets may differ, so text order is only a first pass.
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].RunTimestamp.After(runs[j].RunTimestamp)
	})
	return runs, nil
}

// GetRun returns one archived run, or nil if it does not exist.
func (db *DB) GetRun(runID string) (*model.MonitoringRun, error) {
	rows, err := db.conn.Query(
		`SELECT run_id, run_timestamp, total_fetched, total_classified, total_discarded
		FROM runs WHERE run_id = ?`, runID,
	)
	if err != nil {
		return nil, err
	}
	runs, err := scanRuns(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	run := runs[0]

	articleRows, err := db.conn.Query(selectRunArticles+` WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, err
	}
	defer articleRows.Close()
	for articleRows.Next() {
		_, a, err := scanRunArticle(articleRows)
		if err != nil {
			return nil, err
		}
		run.Articles = append(run.Articles, a)
	}
	if err := articleRows.Err(); err != nil {
		return nil, err
	}
	return &run, nil
}

// GetStats returns aggregate archive statistics.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}

	counts := []struct {
		sql  string
		dest *int
	}{
		{"SELECT COUNT(*) FROM runs", &s.Runs},
		{"SELECT COUNT(*) FROM run_articles", &s.Articles},
		{"SELECT COUNT(DISTINCT substr(run_timestamp, 1, 10)) FROM runs WHERE run_timestamp != ''", &s.Days},
	}
	for _, q := range counts {
		if err := db.conn.QueryRow(q.sql).Scan(q.dest); err != nil {
			return nil, err
		}
	}

	var first, last, lastRun sql.NullString
	err := db.conn.QueryRow(
		`SELECT MIN(substr(run_timestamp, 1, 10)), MAX(substr(run_timestamp, 1, 10)), MAX(run_timestamp)
		FROM runs WHERE run_timestamp != ''`,
	).Scan(&first, &last, &lastRun)
	if err != nil {
		return nil, err
	}
	s.FirstDay, s.LastDay, s.LastRun = first.String, last.String, lastRun.String
	return s, nil
}

const selectRunArticles = `SELECT run_id, article_id, title, summary, original_description, link,
	topics, source_feed, confidence_scores, date_published, date_processed, has_full_content
	FROM run_articles`

func scanRuns(rows *sql.Rows) ([]model.MonitoringRun, error) {
	var runs []model.MonitoringRun
	for rows.Next() {
		var r model.MonitoringRun
		var ts string
		if err := rows.Scan(&r.RunID, &ts, &r.TotalFetched, &r.TotalClassified, &r.TotalDiscarded); err != nil {
			return nil, err
		}
		r.RunTimestamp = model.ParseOptional(ts)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func scanRunArticle(rows *sql.Rows) (string, model.Article, error) {
	var (
		runID                                    string
		a                                        model.Article
		articleID, summary, description, link    sql.NullString
		topics, source, scores, published, procd sql.NullString
		fullContent                              int
	)
	if err := rows.Scan(&runID, &articleID, &a.Title, &summary, &description, &link,
		&topics, &source, &scores, &published, &procd, &fullContent); err != nil {
		return "", a, err
	}

	a.ID = articleID.String
	a.Summary = summary.String
	a.OriginalDescription = description.String
	a.Link = link.String
	a.SourceFeed = source.String
	a.DatePublished = published.String
	a.DateProcessed = model.ParseOptional(procd.String)
	a.HasFullContent = fullContent != 0

	if topics.Valid && topics.String != "" {
		if err := json.Unmarshal([]byte(topics.String), &a.Topics); err != nil {
			return "", a, fmt.Errorf("decoding topics for %q: %w", a.Title, err)
		}
	}
	if scores.Valid && scores.String != "" {
		if err := json.Unmarshal([]byte(scores.String), &a.ConfidenceScores); err != nil {
			return "", a, fmt.Errorf("decoding confidence scores for %q: %w", a.Title, err)
		}
	}
	return runID, a, nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilScores(m map[string]float64) map[string]float64 {
	if m == nil {
		return map[string]float64{}
	}
	return m
}
