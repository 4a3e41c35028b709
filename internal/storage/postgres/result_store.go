// Package postgres archives finished crawls in Postgres.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/jobgraph-crawler/internal/crawler"
)

var validTablePrefix = regexp.MustCompile(`^([a-zA-Z_][a-zA-Z0-9_]*)?$`)

// ResultStoreConfig controls the Postgres connection pool used to archive crawls.
type ResultStoreConfig struct {
	DSN string
	// TablePrefix is prepended to the crawls, job_records and crawl_edges tables.
	TablePrefix     string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type txPool interface {
	Begin(context.Context) (pgx.Tx, error)
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// ResultStore writes a crawl, its records and its edges in one transaction.
type ResultStore struct {
	pool   txPool
	tables tableNames
}

type tableNames struct {
	crawls  string
	records string
	edges   string
}

func newTableNames(prefix string) (tableNames, error) {
	if !validTablePrefix.MatchString(prefix) {
		return tableNames{}, fmt.Errorf("invalid table prefix %q", prefix)
	}
	return tableNames{
		crawls:  prefix + "crawls",
		records: prefix + "job_records",
		edges:   prefix + "crawl_edges",
	}, nil
}

// NewResultStore connects a pool using cfg.
func NewResultStore(ctx context.Context, cfg ResultStoreConfig) (*ResultStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	tables, err := newTableNames(cfg.TablePrefix)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &ResultStore{pool: pool, tables: tables}, nil
}

// NewResultStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewResultStoreWithPool(pool txPool, tablePrefix string) (*ResultStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	tables, err := newTableNames(tablePrefix)
	if err != nil {
		return nil, err
	}
	return &ResultStore{pool: pool, tables: tables}, nil
}

// Close releases the underlying pool resources.
func (s *ResultStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the tables if they do not exist.
func (s *ResultStore) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
	id           TEXT PRIMARY KEY,
	query        TEXT NOT NULL,
	keywords     TEXT[] NOT NULL,
	max_depth    INT NOT NULL,
	status       TEXT NOT NULL,
	seed         TEXT NOT NULL,
	levels       INT NOT NULL,
	record_count INT NOT NULL,
	edge_count   INT NOT NULL,
	submitted_at TIMESTAMPTZ NOT NULL,
	started_at   TIMESTAMPTZ,
	finished_at  TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS %[2]s (
	crawl_id         TEXT NOT NULL REFERENCES %[1]s(id) ON DELETE CASCADE,
	position         INT NOT NULL,
	title            TEXT NOT NULL,
	url              TEXT NOT NULL,
	description      TEXT NOT NULL,
	posting_age_days INT,
	depth            INT NOT NULL,
	source           TEXT NOT NULL,
	PRIMARY KEY (crawl_id, position)
);
CREATE TABLE IF NOT EXISTS %[3]s (
	crawl_id TEXT NOT NULL REFERENCES %[1]s(id) ON DELETE CASCADE,
	position INT NOT NULL,
	source   TEXT NOT NULL,
	target   TEXT NOT NULL,
	PRIMARY KEY (crawl_id, position)
);`, s.tables.crawls, s.tables.records, s.tables.edges)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// StoreResult implements crawler.ResultStore. Storing the same crawl again
// replaces its records and edges.
func (s *ResultStore) StoreResult(ctx context.Context, run crawler.Run, result crawler.Result) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("result store is not configured")
	}
	if run.ID == "" {
		return fmt.Errorf("crawl id is required")
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := s.writeResult(ctx, tx, run, result); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Column order used by CopyFrom.
var (
	recordColumns = []string{"crawl_id", "position", "title", "url", "description", "posting_age_days", "depth", "source"}
	edgeColumns   = []string{"crawl_id", "position", "source", "target"}
)

func (s *ResultStore) writeResult(ctx context.Context, tx pgx.Tx, run crawler.Run, result crawler.Result) error {
	upsert := fmt.Sprintf(`
INSERT INTO %s (
	id, query, keywords, max_depth, status, seed, levels,
	record_count, edge_count, submitted_at, started_at, finished_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (id) DO UPDATE SET
	status = EXCLUDED.status,
	seed = EXCLUDED.seed,
	levels = EXCLUDED.levels,
	record_count = EXCLUDED.record_count,
	edge_count = EXCLUDED.edge_count,
	started_at = EXCLUDED.started_at,
	finished_at = EXCLUDED.finished_at`, s.tables.crawls)

	keywords := run.Request.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	args := []any{
		run.ID,
		run.Request.Query,
		keywords,
		run.Request.MaxDepth,
		string(run.Status),
		result.Seed,
		result.Levels,
		len(result.Records),
		len(result.Edges),
		run.Submitted,
		run.Started,
		run.Finished,
	}
	if _, err := tx.Exec(ctx, upsert, args...); err != nil {
		return fmt.Errorf("upsert crawl: %w", err)
	}
	for _, table := range []string{s.tables.records, s.tables.edges} {
		if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE crawl_id = $1", table), run.ID); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	if len(result.Records) > 0 {
		rows := make([][]any, len(result.Records))
		for i, rec := range result.Records {
			rows[i] = []any{run.ID, i, rec.Title, rec.URL, rec.Description, rec.PostingAgeDays, rec.Depth, rec.Source}
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{s.tables.records}, recordColumns, pgx.CopyFromRows(rows)); err != nil {
			return fmt.Errorf("copy records: %w", err)
		}
	}
	if len(result.Edges) > 0 {
		rows := make([][]any, len(result.Edges))
		for i, e := range result.Edges {
			rows[i] = []any{run.ID, i, e.Source, e.Target}
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{s.tables.edges}, edgeColumns, pgx.CopyFromRows(rows)); err != nil {
			return fmt.Errorf("copy edges: %w", err)
		}
	}
	return nil
}
