package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/roach88/semstore/internal/errors"
	"github.com/roach88/semstore/internal/logger"
	"github.com/roach88/semstore/internal/querysql"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added (smw_namespace, smw_id) index for namespace range scans
const currentSchemaVersion = 1

// IDRetention decides what happens to a subject's ID-map entry when the
// subject is deleted.
type IDRetention string

const (
	// RetainIfReferenced keeps the ID while any row still references it
	// as a property or page value.
	RetainIfReferenced IDRetention = "retain-if-referenced"
	// AlwaysFree removes the ID unconditionally. Rows of other subjects
	// that reference it are deleted with it.
	AlwaysFree IDRetention = "always-free"
)

// ParseIDRetention validates a policy name.
func ParseIDRetention(name string) (IDRetention, error) {
	switch IDRetention(name) {
	case RetainIfReferenced, AlwaysFree:
		return IDRetention(name), nil
	default:
		return "", errors.Newf("unknown id retention policy %q", name)
	}
}

// Store provides durable storage for semantic data.
// Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db        *sql.DB
	logger    *zap.SugaredLogger
	retention IDRetention
	now       func() time.Time
	compiler  *querysql.SQLCompiler
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(s *Store) {
		s.logger = logger.OrNop(l)
	}
}

// WithIDRetention sets the ID policy applied by DeleteSubject.
// Defaults to RetainIfReferenced.
func WithIDRetention(p IDRetention) Option {
	return func(s *Store) {
		s.retention = p
	}
}

// WithClock sets the wall clock used for concept cache dates.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// This function is idempotent - safe to call multiple times.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Storage(err, "failed to open database")
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Storage(err, "failed to connect to database")
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, errors.Storage(err, "failed to apply pragmas")
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, errors.Storage(err, "failed to apply schema")
	}

	s := New(db, opts...)
	s.logger.Debugw("store opened", "path", path, "schema_version", currentSchemaVersion)
	return s, nil
}

// New wraps an already-initialised database. Open is the usual entry
// point; New exists for callers that manage the connection themselves.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{
		db:        db,
		logger:    zap.NewNop().Sugar(),
		retention: RetainIfReferenced,
		now:       time.Now,
		compiler:  querysql.NewSQLCompiler(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close closes the database connection.
// Should be called when the store is no longer needed.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Retention returns the configured ID policy.
func (s *Store) Retention() IDRetention {
	return s.retention
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 adds the index used by ListSubjectsInIDRange and
// MaxIDInNamespace.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_object_ids_ns
		ON smw_object_ids(smw_namespace, smw_id)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// inTx runs fn in a transaction, committing when fn returns nil.
func (s *Store) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Storagef(err, "%s: begin", op)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.Storagef(err, "%s: commit", op)
	}
	return nil
}
