package orchestrator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// CachedRun is one persisted successful run with its generated artifacts,
// keyed by catalog fingerprint.
type CachedRun struct {
	RunID       string    `db:"run_id"`
	Fingerprint string    `db:"fingerprint"`
	FinishedAt  time.Time `db:"finished_at"`
	Types       []byte    `db:"types_artifact"`
	Client      []byte    `db:"client_artifact"`
}

// ArtifactCache persists run state across watch-mode restarts. It is an
// injectable dependency so tests substitute fakes and one-shot runs use the
// no-op implementation.
type ArtifactCache interface {
	StoreRun(ctx context.Context, rec CachedRun) error
	LastRun(ctx context.Context) (CachedRun, bool, error)
	Artifacts(ctx context.Context, fingerprint string) (CachedRun, bool, error)
	Close() error
}

// NoopCache satisfies ArtifactCache without persisting anything.
type NoopCache struct{}

func (NoopCache) StoreRun(context.Context, CachedRun) error { return nil }
func (NoopCache) LastRun(context.Context) (CachedRun, bool, error) {
	return CachedRun{}, false, nil
}
func (NoopCache) Artifacts(context.Context, string) (CachedRun, bool, error) {
	return CachedRun{}, false, nil
}
func (NoopCache) Close() error { return nil }

// SQLiteCache stores runs and artifacts in a SQLite database under the data
// directory.
type SQLiteCache struct {
	db *sqlx.DB
}

// NewSQLiteCache opens (or creates) the cache database. Pass empty string
// for in-memory.
func NewSQLiteCache(dataDir string) (*SQLiteCache, error) {
	var dsn string
	if dataDir == "" {
		dsn = ":memory:?_journal_mode=WAL"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dsn = filepath.Join(dataDir, "ferro.db") + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	c := &SQLiteCache{db: db}
	if err := c.migrate(); err != nil {
		return nil, fmt.Errorf("migrate cache database: %w", err)
	}
	return c, nil
}

func (c *SQLiteCache) migrate() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS runs (
		run_id          TEXT PRIMARY KEY,
		fingerprint     TEXT NOT NULL,
		finished_at     TIMESTAMP NOT NULL,
		types_artifact  BLOB NOT NULL,
		client_artifact BLOB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_fingerprint ON runs(fingerprint);
	CREATE INDEX IF NOT EXISTS idx_runs_finished_at ON runs(finished_at);`

	_, err := c.db.Exec(schema)
	return err
}

// StoreRun persists one successful run, keeping only the most recent few
// records to bound growth.
func (c *SQLiteCache) StoreRun(ctx context.Context, rec CachedRun) error {
	const insert = `
		INSERT INTO runs (run_id, fingerprint, finished_at, types_artifact, client_artifact)
		VALUES (?, ?, ?, ?, ?)`
	if _, err := c.db.ExecContext(ctx, insert,
		rec.RunID, rec.Fingerprint, rec.FinishedAt, rec.Types, rec.Client); err != nil {
		return fmt.Errorf("store run: %w", err)
	}

	const prune = `
		DELETE FROM runs WHERE run_id NOT IN (
			SELECT run_id FROM runs ORDER BY finished_at DESC LIMIT 20
		)`
	if _, err := c.db.ExecContext(ctx, prune); err != nil {
		return fmt.Errorf("prune runs: %w", err)
	}
	return nil
}

// LastRun returns the most recently finished run.
func (c *SQLiteCache) LastRun(ctx context.Context) (CachedRun, bool, error) {
	const query = `
		SELECT run_id, fingerprint, finished_at, types_artifact, client_artifact
		FROM runs ORDER BY finished_at DESC LIMIT 1`

	var rec CachedRun
	err := c.db.GetContext(ctx, &rec, query)
	if errors.Is(err, sql.ErrNoRows) {
		return CachedRun{}, false, nil
	}
	if err != nil {
		return CachedRun{}, false, fmt.Errorf("load last run: %w", err)
	}
	return rec, true, nil
}

// Artifacts returns the stored artifacts for a catalog fingerprint.
func (c *SQLiteCache) Artifacts(ctx context.Context, fingerprint string) (CachedRun, bool, error) {
	const query = `
		SELECT run_id, fingerprint, finished_at, types_artifact, client_artifact
		FROM runs WHERE fingerprint = ? ORDER BY finished_at DESC LIMIT 1`

	var rec CachedRun
	err := c.db.GetContext(ctx, &rec, query, fingerprint)
	if errors.Is(err, sql.ErrNoRows) {
		return CachedRun{}, false, nil
	}
	if err != nil {
		return CachedRun{}, false, fmt.Errorf("load artifacts: %w", err)
	}
	return rec, true, nil
}

// Close closes the underlying database connection.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
