package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/marketpulse/newsdesk-cli/internal/db"
	"github.com/marketpulse/newsdesk-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot-path store operations.
var preparedStatements = map[string]string{
	"insert_article": `INSERT INTO articles (title, body, url, published_at, source_id, hash)
		 VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (hash) DO NOTHING RETURNING id`,
	"article_by_hash": `SELECT id FROM articles WHERE hash = $1`,
	"insert_mention": `INSERT INTO article_ticker (article_id, ticker_id, mention_text, mention_type, fused_score, confirmed)
		 VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (article_id, ticker_id) DO NOTHING`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS sources (
	id   BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS articles (
	id           BIGSERIAL PRIMARY KEY,
	title        TEXT NOT NULL,
	body         TEXT,
	url          TEXT NOT NULL,
	published_at TIMESTAMPTZ NOT NULL,
	source_id    BIGINT NOT NULL REFERENCES sources(id),
	hash         TEXT NOT NULL UNIQUE,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS tickers (
	id          BIGSERIAL PRIMARY KEY,
	symbol      TEXT NOT NULL UNIQUE,
	name        TEXT,
	aliases     JSONB,
	description TEXT
);

CREATE TABLE IF NOT EXISTS article_ticker (
	article_id   BIGINT NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
	ticker_id    BIGINT NOT NULL REFERENCES tickers(id),
	mention_text TEXT,
	mention_type TEXT NOT NULL,
	fused_score  DOUBLE PRECISION NOT NULL,
	confirmed    BOOLEAN NOT NULL DEFAULT true,
	PRIMARY KEY (article_id, ticker_id)
);

CREATE TABLE IF NOT EXISTS processing_runs (
	id           BIGSERIAL PRIMARY KEY,
	batch_id     TEXT NOT NULL,
	started_at   TIMESTAMPTZ NOT NULL,
	finished_at  TIMESTAMPTZ NOT NULL,
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

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) EnsureSource(ctx context.Context, name string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO sources (name) VALUES ($1) ON CONFLICT (name) DO NOTHING RETURNING id`,
		name,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, eris.Wrapf(err, "postgres: ensure source %s", name)
	}

	err = s.pool.QueryRow(ctx, `SELECT id FROM sources WHERE name = $1`, name).Scan(&id)
	return id, eris.Wrapf(err, "postgres: lookup source %s", name)
}

func (s *PostgresStore) InsertArticleIfNew(ctx context.Context, a model.Article) (int64, bool, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO articles (title, body, url, published_at, source_id, hash)
		 VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (hash) DO NOTHING RETURNING id`,
		a.Title, a.Body, a.URL, a.PublishedAt.UTC(), a.SourceID, a.Hash,
	).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, false, eris.Wrap(err, "postgres: insert article")
	}

	// Conflict path: the hash already exists, return the stored row's id.
	err = s.pool.QueryRow(ctx, `SELECT id FROM articles WHERE hash = $1`, a.Hash).Scan(&id)
	if err != nil {
		return 0, false, eris.Wrap(err, "postgres: lookup article by hash")
	}
	return id, false, nil
}

func (s *PostgresStore) InsertMention(ctx context.Context, m model.Mention) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO article_ticker (article_id, ticker_id, mention_text, mention_type, fused_score, confirmed)
		 VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (article_id, ticker_id) DO NOTHING`,
		m.ArticleID, m.TickerID, m.MentionText, string(m.MentionType), m.FusedScore, m.Confirmed,
	)
	return eris.Wrapf(err, "postgres: insert mention article=%d ticker=%d", m.ArticleID, m.TickerID)
}

func (s *PostgresStore) MentionsForDate(ctx context.Context, date time.Time) ([]model.MentionFact, error) {
	start, end := dayBoundsUTC(date)
	rows, err := s.pool.Query(ctx,
		`SELECT at.article_id, at.ticker_id, a.source_id, a.published_at
		 FROM article_ticker at
		 JOIN articles a ON a.id = at.article_id
		 WHERE at.confirmed AND a.published_at >= $1 AND a.published_at < $2
		 ORDER BY at.article_id, at.ticker_id`,
		start, end,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: mentions for date")
	}
	defer rows.Close()

	var facts []model.MentionFact
	for rows.Next() {
		var f model.MentionFact
		if err := rows.Scan(&f.ArticleID, &f.TickerID, &f.SourceID, &f.PublishedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan mention fact")
		}
		facts = append(facts, f)
	}
	return facts, eris.Wrap(rows.Err(), "postgres: mentions for date iterate")
}

func (s *PostgresStore) ListTickers(ctx context.Context) ([]model.Ticker, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, symbol, COALESCE(name, ''), COALESCE(aliases, 'null'::jsonb), COALESCE(description, '')
		 FROM tickers ORDER BY id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list tickers")
	}
	defer rows.Close()

	var tickers []model.Ticker
	for rows.Next() {
		var t model.Ticker
		var aliasesJSON []byte
		if err := rows.Scan(&t.ID, &t.Symbol, &t.Name, &aliasesJSON, &t.Description); err != nil {
			return nil, eris.Wrap(err, "postgres: scan ticker")
		}
		if len(aliasesJSON) > 0 {
			if err := json.Unmarshal(aliasesJSON, &t.Aliases); err != nil {
				return nil, eris.Wrapf(err, "postgres: unmarshal aliases for %s", t.Symbol)
			}
		}
		tickers = append(tickers, t)
	}
	return tickers, eris.Wrap(rows.Err(), "postgres: list tickers iterate")
}

func (s *PostgresStore) UpsertTickers(ctx context.Context, tickers []model.Ticker) (int, error) {
	rows := make([][]any, 0, len(tickers))
	for _, t := range tickers {
		aliasesJSON, err := json.Marshal(t.Aliases)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: marshal aliases for %s", t.Symbol)
		}
		rows = append(rows, []any{t.Symbol, t.Name, aliasesJSON, t.Description})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "tickers",
		Columns:      []string{"symbol", "name", "aliases", "description"},
		ConflictKeys: []string{"symbol"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: upsert tickers")
	}
	return int(n), nil
}

func (s *PostgresStore) RecordRun(ctx context.Context, run model.ProcessingRun) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO processing_runs (batch_id, started_at, finished_at, new_articles, duplicates, failed, mentions, status, log)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		run.BatchID, run.StartedAt.UTC(), run.FinishedAt.UTC(),
		run.NewArticles, run.Duplicates, run.Failed, run.Mentions,
		string(run.Status), run.Log,
	).Scan(&id)
	return id, eris.Wrap(err, "postgres: record run")
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.ProcessingRun, error) {
	query := `SELECT id, batch_id, started_at, finished_at, new_articles, duplicates, failed, mentions, status, COALESCE(log, '')
	          FROM processing_runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if !filter.Since.IsZero() {
		query += fmt.Sprintf(` AND started_at >= $%d`, argIdx)
		args = append(args, filter.Since.UTC())
		argIdx++
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.ProcessingRun
	for rows.Next() {
		var r model.ProcessingRun
		var status string
		if err := rows.Scan(&r.ID, &r.BatchID, &r.StartedAt, &r.FinishedAt,
			&r.NewArticles, &r.Duplicates, &r.Failed, &r.Mentions, &status, &r.Log); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		r.Status = model.RunStatus(status)
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}
