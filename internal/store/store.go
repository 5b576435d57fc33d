// Package store implements Labelwatch's single-writer, multi-reader
// persistence layer over SQLite: schema migrations, typed CRUD
// operations, and the batched aggregate queries the derivation engine
// depends on.
//
// Adapted from the teacher's pkg/store/receipt_store_sqlite.go (query
// shape, migrate() gating, typed-scan-with-sql.NullString pattern) and
// pkg/store/audit_store.go (append-only row semantics), generalized from
// a single receipts table to the full event/labeler/evidence/probe/
// alert/receipt/outcome schema.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/unpingable/atproto-labelwatch/internal/errs"
)

// CurrentSchemaVersion is the schema version this binary understands.
// A store whose stored version exceeds this refuses to open.
const CurrentSchemaVersion = 7

// ErrSchemaTooNew is returned by Open when the store's schema_version
// exceeds CurrentSchemaVersion.
var ErrSchemaTooNew = errors.New("store schema version is newer than this binary understands")

// ErrNotFound is returned by single-row lookups that match nothing.
var ErrNotFound = errors.New("not found")

// Store wraps a *sql.DB with Labelwatch's typed operations. A single
// Store value should own the read-write connection (MaxOpenConns(1)),
// matching the spec's single-writer requirement.
type Store struct {
	db *sql.DB
}

// dsn builds a modernc.org/sqlite DSN with the pragmas required for a
// single-writer, crash-tolerant, bounded store: write-ahead logging,
// normal synchronous, a bounded busy timeout, and disk-spilled temp
// storage. Grounded on the pack's sqlite pragma-DSN idiom.
func dsn(path string, readOnly bool) string {
	q := "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)&_pragma=temp_store(FILE)"
	if readOnly {
		q += "&mode=ro"
	}
	return path + q
}

// Open opens (creating if necessary) the read-write store at path,
// applies any pending forward migrations, and returns a Store whose
// connection pool is capped at one connection — the process's single
// writer.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(path, false))
	if err != nil {
		return nil, errs.New(errs.Store, "open", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		return nil, errs.New(errs.Store, "ping", err)
	}

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// OpenReadOnly opens path in read-only mode for report/CLI tooling that
// should never contend with the writer. It does not run migrations; it
// fails if the schema version exceeds CurrentSchemaVersion.
func OpenReadOnly(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(path, true))
	if err != nil {
		return nil, errs.New(errs.Store, "open_ro", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, errs.New(errs.Store, "ping_ro", err)
	}
	s := &Store{db: db}
	version, err := s.schemaVersion(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if version > CurrentSchemaVersion {
		_ = db.Close()
		return nil, errs.New(errs.Migration, "open_ro", ErrSchemaTooNew)
	}
	return s, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying *sql.DB for callers that need direct access
// (e.g. sqlmock-backed unit tests against a constructed *Store).
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) exec(ctx context.Context, op, query string, args ...any) error {
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return errs.New(errs.Store, op, err)
	}
	return nil
}

func wrapf(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}
