package database

import "database/sql"

// Migration is one schema step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations must stay ordered by Version. Append only.
var migrations = []Migration{
	{
		Version:     1,
		Description: "run archive",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT UNIQUE NOT NULL,
    run_timestamp TEXT NOT NULL DEFAULT '',
    total_fetched INTEGER DEFAULT 0,
    total_classified INTEGER DEFAULT 0,
    total_discarded INTEGER DEFAULT 0,
    imported_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS run_articles (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    article_id TEXT,
    title TEXT NOT NULL DEFAULT '',
    summary TEXT,
    original_description TEXT,
    link TEXT,
    topics TEXT,
    source_feed TEXT,
    confidence_scores TEXT,
    date_published TEXT,
    date_processed TEXT,
    has_full_content INTEGER DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_runs_timestamp ON runs(run_timestamp);
CREATE INDEX IF NOT EXISTS idx_run_articles_run ON run_articles(run_id, position);
`)
			return err
		},
	},
	{
		Version:     2,
		Description: "index articles by source feed",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_run_articles_source ON run_articles(source_feed)`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
