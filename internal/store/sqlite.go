package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/marketpulse/newsdesk-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS sources (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS articles (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	title        TEXT NOT NULL,
	body         TEXT,
	url          TEXT NOT NULL,
	published_at DATETIME NOT NULL,
	source_id    INTEGER NOT NULL REFERENCES sources(id),
	hash         TEXT NOT NULL UNIQUE,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS tickers (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	symbol      TEXT NOT NULL UNIQUE,
	name        TEXT,
	aliases     TEXT,
	description TEXT
);

CREATE TABLE IF NOT EXISTS article_ticker (
	article_id   INTEGER NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
	ticker_id    INTEGER NOT NULL REFERENCES tickers(id),
	mention_text TEXT,
	mention_type TEXT NOT NULL,
	fused_score  REAL NOT NULL,
	confirmed    INTEGER NOT NULL DEFAULT 1,
	PRIMARY KEY (article_id, ticker_id)
);

CREATE TABLE IF NOT EXISTS processing_runs (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	batch_id     TEXT NOT NULL,
	started_at   DATETIME NOT NULL,
	finished_at  DATETIME NOT NULL,
	new_articles INTEGER NOT NULL,
	duplicates   INTEGER NOT NULL,
	failed       INTEGER NOT NULL DEFAULT 0,
	mentions     INTEGER NOT NULL DEFAULT 0,
	status       TEXT NOT NULL,
	log          TEXT
);

CREATE INDEX IF NOT EXISTS idx_articles_published_at ON articles(published_at);
CREATE INDEX IF NOT EXISTS idx_article_ticker_ticker_id ON article_ticker(ticker_id);
CREATE INDEX IF NOT EXISTS idx_processing_runs_started_at ON processing_runs(started_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) EnsureSource(ctx context.Context, name string) (int64, error) {
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO sources (name) VALUES (?)`, name,
	); err != nil {
		return 0, eris.Wrapf(err, "sqlite: ensure source %s", name)
	}
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM sources WHERE name = ?`, name).Scan(&id)
	return id, eris.Wrapf(err, "sqlite: lookup source %s", name)
}

func (s *SQLiteStore) InsertArticleIfNew(ctx context.Context, a model.Article) (int64, bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO articles (title, body, url, published_at, source_id, hash)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.Title, a.Body, a.URL, a.PublishedAt.UTC(), a.SourceID, a.Hash,
	)
	if err != nil {
		return 0, false, eris.Wrap(err, "sqlite: insert article")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, false, eris.Wrap(err, "sqlite: insert article rows affected")
	}
	if n == 1 {
		id, err := res.LastInsertId()
		if err != nil {
			return 0, false, eris.Wrap(err, "sqlite: insert article last id")
		}
		return id, true, nil
	}

	// Hash collision with an existing row: a duplicate, not an error.
	var id int64
	err = s.db.QueryRowContext(ctx, `SELECT id FROM articles WHERE hash = ?`, a.Hash).Scan(&id)
	if err != nil {
		return 0, false, eris.Wrap(err, "sqlite: lookup article by hash")
	}
	return id, false, nil
}

func (s *SQLiteStore) InsertMention(ctx context.Context, m model.Mention) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO article_ticker (article_id, ticker_id, mention_text, mention_type, fused_score, confirmed)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		m.ArticleID, m.TickerID, m.MentionText, string(m.MentionType), m.FusedScore, m.Confirmed,
	)
	return eris.Wrapf(err, "sqlite: insert mention article=%d ticker=%d", m.ArticleID, m.TickerID)
}

func (s *SQLiteStore) MentionsForDate(ctx context.Context, date time.Time) ([]model.MentionFact, error) {
	start, end := dayBoundsUTC(date)
	rows, err := s.db.QueryContext(ctx,
		`SELECT at.article_id, at.ticker_id, a.source_id, a.published_at
		 FROM article_ticker at
		 JOIN articles a ON a.id = at.article_id
		 WHERE at.confirmed = 1 AND a.published_at >= ? AND a.published_at < ?
		 ORDER BY at.article_id, at.ticker_id`,
		start, end,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: mentions for date")
	}
	defer rows.Close()

	var facts []model.MentionFact
	for rows.Next() {
		var f model.MentionFact
		if err := rows.Scan(&f.ArticleID, &f.TickerID, &f.SourceID, &f.PublishedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan mention fact")
		}
		facts = append(facts, f)
	}
	return facts, eris.Wrap(rows.Err(), "sqlite: mentions for date iterate")
}

func (s *SQLiteStore) ListTickers(ctx context.Context) ([]model.Ticker, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, symbol, name, aliases, description FROM tickers ORDER BY id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list tickers")
	}
	defer rows.Close()

	var tickers []model.Ticker
	for rows.Next() {
		var t model.Ticker
		var name, aliasesJSON, description sql.NullString
		if err := rows.Scan(&t.ID, &t.Symbol, &name, &aliasesJSON, &description); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan ticker")
		}
		t.Name = name.String
		t.Description = description.String
		if aliasesJSON.Valid && aliasesJSON.String != "" {
			if err := json.Unmarshal([]byte(aliasesJSON.String), &t.Aliases); err != nil {
				return nil, eris.Wrapf(err, "sqlite: unmarshal aliases for %s", t.Symbol)
			}
		}
		tickers = append(tickers, t)
	}
	return tickers, eris.Wrap(rows.Err(), "sqlite: list tickers iterate")
}

func (s *SQLiteStore) UpsertTickers(ctx context.Context, tickers []model.Ticker) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: upsert tickers begin")
	}
	defer tx.Rollback() //nolint:errcheck

	count := 0
	for _, t := range tickers {
		aliasesJSON, err := json.Marshal(t.Aliases)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: marshal aliases for %s", t.Symbol)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO tickers (symbol, name, aliases, description) VALUES (?, ?, ?, ?)
			 ON CONFLICT(symbol) DO UPDATE SET name = excluded.name, aliases = excluded.aliases, description = excluded.description`,
			t.Symbol, t.Name, string(aliasesJSON), t.Description,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert ticker %s", t.Symbol)
		}
		count++
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: upsert tickers commit")
	}
	return count, nil
}

func (s *SQLiteStore) RecordRun(ctx context.Context, run model.ProcessingRun) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO processing_runs (batch_id, started_at, finished_at, new_articles, duplicates, failed, mentions, status, log)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.BatchID, run.StartedAt.UTC(), run.FinishedAt.UTC(),
		run.NewArticles, run.Duplicates, run.Failed, run.Mentions,
		string(run.Status), run.Log,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: record run")
	}
	id, err := res.LastInsertId()
	return id, eris.Wrap(err, "sqlite: record run last id")
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.ProcessingRun, error) {
	query := `SELECT id, batch_id, started_at, finished_at, new_articles, duplicates, failed, mentions, status, COALESCE(log, '')
		 FROM processing_runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if !filter.Since.IsZero() {
		query += ` AND started_at >= ?`
		args = append(args, filter.Since.UTC())
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.ProcessingRun
	for rows.Next() {
		var r model.ProcessingRun
		var status string
		if err := rows.Scan(&r.ID, &r.BatchID, &r.StartedAt, &r.FinishedAt,
			&r.NewArticles, &r.Duplicates, &r.Failed, &r.Mentions, &status, &r.Log); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		r.Status = model.RunStatus(status)
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}
