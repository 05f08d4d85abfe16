package output

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	_ "modernc.org/sqlite"
)

const createArtifactsTable = `CREATE TABLE IF NOT EXISTS ocr_artifacts (
	name TEXT NOT NULL,
	kind TEXT NOT NULL,
	body TEXT NOT NULL,
	written_at TIMESTAMP NOT NULL,
	PRIMARY KEY (name, kind)
)`

const (
	upsertSQLite = `INSERT INTO ocr_artifacts (name, kind, body, written_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (name, kind) DO UPDATE SET body = excluded.body, written_at = excluded.written_at`

	upsertPostgres = `INSERT INTO ocr_artifacts (name, kind, body, written_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (name, kind) DO UPDATE SET body = excluded.body, written_at = excluded.written_at`
)

// store is the minimal database surface the SQL writer needs.
type store interface {
	exec(ctx context.Context, query string, args ...any) error
	ping(ctx context.Context) error
	close() error
}

type sqliteStore struct {
	db *sql.DB
}

func (s *sqliteStore) exec(ctx context.Context, query string, args ...any) error {
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

func (s *sqliteStore) ping(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *sqliteStore) close() error                   { return s.db.Close() }

type postgresStore struct {
	pool *pgxpool.Pool
}

func (s *postgresStore) exec(ctx context.Context, query string, args ...any) error {
	_, err := s.pool.Exec(ctx, query, args...)
	return err
}

func (s *postgresStore) ping(ctx context.Context) error { return s.pool.Ping(ctx) }
func (s *postgresStore) close() error                   { s.pool.Close(); return nil }

// SQLWriter upserts artifacts into the ocr_artifacts table, one row per
// (name, kind).
type SQLWriter struct {
	store  store
	upsert string
	driver string
	now    func() time.Time
}

// OpenSQLite opens (creating if needed) a SQLite database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLWriter, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := path
	if strings.Contains(dsn, "?") {
		dsn += "&"
	} else {
		dsn += "?"
	}
	dsn += "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	return newSQLWriter(ctx, &sqliteStore{db: db}, upsertSQLite, "sqlite")
}

// OpenPostgres connects to a PostgreSQL database.
func OpenPostgres(ctx context.Context, url string) (*SQLWriter, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	return newSQLWriter(ctx, &postgresStore{pool: pool}, upsertPostgres, "postgres")
}

func newSQLWriter(ctx context.Context, s store, upsert, driver string) (*SQLWriter, error) {
	if err := s.ping(ctx); err != nil {
		_ = s.close()
		return nil, fmt.Errorf("ping %s database: %w", driver, err)
	}
	if err := s.exec(ctx, createArtifactsTable); err != nil {
		_ = s.close()
		return nil, fmt.Errorf("create ocr_artifacts table: %w", err)
	}
	return &SQLWriter{store: s, upsert: upsert, driver: driver, now: time.Now}, nil
}

// Name returns the sink name.
func (w *SQLWriter) Name() string {
	return w.driver
}

// Write upserts doc.
func (w *SQLWriter) Write(ctx context.Context, sourcePath string, kind Kind, doc any) error {
	data, err := Encode(doc)
	if err != nil {
		return err
	}
	return w.store.exec(ctx, w.upsert, BaseName(sourcePath), string(kind), string(data), w.now().UTC())
}

// Ping checks the connection.
func (w *SQLWriter) Ping(ctx context.Context) error {
	return w.store.ping(ctx)
}

// Close closes the database.
func (w *SQLWriter) Close() error {
	return w.store.close()
}
