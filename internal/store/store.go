package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/telreader/telugu-science-reader/internal/apperr"
)

// Record is one keyed entry in a collection. Payload is the raw JSON
// document; collections do not interpret it.
type Record struct {
	Key       string          `json:"key"`
	Payload   json.RawMessage `json:"payload"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Store is the versioned local record store. Each collection is a keyed-JSON
// table created by the schema plan, lazily for versions above 1. A single
// write connection serializes transactions; the upgrade path additionally
// serializes behind upgradeMu so concurrent creates of the same missing
// collection cannot race into conflicting versions.
type Store struct {
	db *sql.DB

	upgradeMu sync.Mutex

	mu          sync.RWMutex
	collections map[string]bool
	version     int
}

// Open returns a ready store handle, creating the database file and the
// version-1 collections if absent.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, apperr.New(apperr.ErrConfig, "db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, apperr.Wrap(err, apperr.ErrStorage, "create db directory")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ErrStorage, "open sqlite")
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{
		db:          db,
		collections: make(map[string]bool),
	}
	if err := s.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Version reports the highest applied schema version.
func (s *Store) Version() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Has reports whether the collection exists already, without creating it.
func (s *Store) Has(collection string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collections[collection]
}

func (s *Store) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return apperr.Wrap(err, apperr.ErrStorage, "set WAL mode")
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return apperr.Wrap(err, apperr.ErrStorage, "set busy timeout")
	}
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return apperr.Wrap(err, apperr.ErrStorage, "create schema_migrations")
	}

	if err := s.loadApplied(ctx); err != nil {
		return err
	}

	// The base collections exist from the first open, matching what callers
	// expect on a fresh profile. Later versions wait until needed.
	s.upgradeMu.Lock()
	defer s.upgradeMu.Unlock()
	return s.applyThrough(ctx, 1)
}

func (s *Store) loadApplied(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT version FROM schema_migrations ORDER BY version ASC`)
	if err != nil {
		return apperr.Wrap(err, apperr.ErrStorage, "load applied versions")
	}
	defer rows.Close()

	version := 0
	for rows.Next() {
		if err := rows.Scan(&version); err != nil {
			return apperr.Wrap(err, apperr.ErrStorage, "scan applied version")
		}
	}
	if err := rows.Err(); err != nil {
		return apperr.Wrap(err, apperr.ErrStorage, "iterate applied versions")
	}

	collections := make(map[string]bool)
	for _, step := range schemaPlan {
		if step.Version > version {
			break
		}
		for _, name := range step.Collections {
			collections[name] = true
		}
	}

	s.mu.Lock()
	s.version = version
	s.collections = collections
	s.mu.Unlock()
	return nil
}

// applyThrough applies schema steps up to and including target, one version
// at a time. Callers must hold upgradeMu. Already-applied versions no-op, so
// the loser of a concurrent upgrade race observes the collection and moves
// on to its retried operation.
func (s *Store) applyThrough(ctx context.Context, target int) error {
	s.mu.RLock()
	current := s.version
	s.mu.RUnlock()

	for _, step := range schemaPlan {
		if step.Version <= current || step.Version > target {
			continue
		}
		if step.Version != current+1 {
			return apperr.New(apperr.ErrStorage,
				fmt.Sprintf("schema plan gap: at version %d, next step is %d", current, step.Version))
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return apperr.Wrap(err, apperr.ErrStorage, "begin upgrade transaction")
		}
		if err := s.applyStep(ctx, tx, step); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return apperr.Wrap(err, apperr.ErrStorage, fmt.Sprintf("commit schema version %d", step.Version))
		}

		s.mu.Lock()
		s.version = step.Version
		for _, name := range step.Collections {
			s.collections[name] = true
		}
		s.mu.Unlock()
		current = step.Version
	}
	return nil
}

func (s *Store) applyStep(ctx context.Context, tx *sql.Tx, step SchemaStep) error {
	var exists int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, step.Version).Scan(&exists); err != nil {
		return apperr.Wrap(err, apperr.ErrStorage, fmt.Sprintf("check schema version %d", step.Version))
	}
	if exists > 0 {
		return nil
	}
	for _, name := range step.Collections {
		ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
			key TEXT PRIMARY KEY,
			payload TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		);`, name)
		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			return apperr.Wrap(err, apperr.ErrStorage, fmt.Sprintf("create collection %s", name))
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version) VALUES (?)`, step.Version); err != nil {
		return apperr.Wrap(err, apperr.ErrStorage, fmt.Sprintf("record schema version %d", step.Version))
	}
	return nil
}

// ensure makes the collection available, upgrading the schema when a later
// version introduces it. This is the single create-then-retry accommodation:
// the caller's operation runs after ensure returns, and storage failures past
// that point surface unretried.
func (s *Store) ensure(ctx context.Context, collection string) error {
	s.mu.RLock()
	ok := s.collections[collection]
	s.mu.RUnlock()
	if ok {
		return nil
	}

	target := planVersionFor(collection)
	if target == 0 {
		return apperr.New(apperr.ErrValidation, fmt.Sprintf("unknown collection %q", collection)).
			WithContext("collection", collection)
	}

	s.upgradeMu.Lock()
	defer s.upgradeMu.Unlock()

	// Re-check under the lock: a concurrent caller may have finished the
	// same upgrade while we waited.
	s.mu.RLock()
	ok = s.collections[collection]
	s.mu.RUnlock()
	if ok {
		return nil
	}
	return s.applyThrough(ctx, target)
}

// ReadAll returns every record of the collection in key order. Numeric keys
// (feedback sequence numbers, queue timestamps) order numerically; other
// keys order lexicographically.
func (s *Store) ReadAll(ctx context.Context, collection string) ([]Record, error) {
	if err := s.ensure(ctx, collection); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(
		`SELECT key, payload, updated_at FROM %q ORDER BY CAST(key AS INTEGER) ASC, key ASC`, collection)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, storageErr(err, collection, "read all")
	}
	defer rows.Close()

	ret := make([]Record, 0)
	for rows.Next() {
		var rec Record
		var payload string
		if err := rows.Scan(&rec.Key, &payload, &rec.UpdatedAt); err != nil {
			return nil, storageErr(err, collection, "scan record")
		}
		rec.Payload = json.RawMessage(payload)
		ret = append(ret, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err, collection, "iterate records")
	}
	return ret, nil
}

// ReadOne returns the record stored under key, reporting a miss via the
// boolean rather than an error.
func (s *Store) ReadOne(ctx context.Context, collection, key string) (Record, bool, error) {
	if err := s.ensure(ctx, collection); err != nil {
		return Record{}, false, err
	}
	query := fmt.Sprintf(`SELECT key, payload, updated_at FROM %q WHERE key = ?`, collection)
	row := s.db.QueryRowContext(ctx, query, key)

	var rec Record
	var payload string
	if err := row.Scan(&rec.Key, &payload, &rec.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return Record{}, false, nil
		}
		return Record{}, false, storageErr(err, collection, "read one")
	}
	rec.Payload = json.RawMessage(payload)
	return rec, true, nil
}

// Write upserts the record by key.
func (s *Store) Write(ctx context.Context, collection string, rec Record) error {
	if rec.Key == "" {
		return apperr.New(apperr.ErrValidation, "record key is required")
	}
	if err := s.ensure(ctx, collection); err != nil {
		return err
	}
	updatedAt := rec.UpdatedAt.UTC()
	if rec.UpdatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	query := fmt.Sprintf(`INSERT INTO %q (key, payload, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			payload=excluded.payload,
			updated_at=excluded.updated_at`, collection)
	if _, err := s.db.ExecContext(ctx, query, rec.Key, string(rec.Payload), updatedAt); err != nil {
		return storageErr(err, collection, "write")
	}
	return nil
}

// WriteBatch upserts all records inside one transaction. Used for seeding.
func (s *Store) WriteBatch(ctx context.Context, collection string, recs []Record) error {
	if len(recs) == 0 {
		return nil
	}
	if err := s.ensure(ctx, collection); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr(err, collection, "begin batch")
	}
	query := fmt.Sprintf(`INSERT INTO %q (key, payload, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			payload=excluded.payload,
			updated_at=excluded.updated_at`, collection)
	now := time.Now().UTC()
	for _, rec := range recs {
		if rec.Key == "" {
			_ = tx.Rollback()
			return apperr.New(apperr.ErrValidation, "record key is required")
		}
		updatedAt := rec.UpdatedAt.UTC()
		if rec.UpdatedAt.IsZero() {
			updatedAt = now
		}
		if _, err := tx.ExecContext(ctx, query, rec.Key, string(rec.Payload), updatedAt); err != nil {
			_ = tx.Rollback()
			return storageErr(err, collection, "write batch")
		}
	}
	if err := tx.Commit(); err != nil {
		return storageErr(err, collection, "commit batch")
	}
	return nil
}

// Append inserts the payload under the next sequential numeric key and
// returns the assigned key.
func (s *Store) Append(ctx context.Context, collection string, payload json.RawMessage) (int64, error) {
	if err := s.ensure(ctx, collection); err != nil {
		return 0, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storageErr(err, collection, "begin append")
	}

	var next int64
	seqQuery := fmt.Sprintf(`SELECT COALESCE(MAX(CAST(key AS INTEGER)), 0) + 1 FROM %q`, collection)
	if err := tx.QueryRowContext(ctx, seqQuery).Scan(&next); err != nil {
		_ = tx.Rollback()
		return 0, storageErr(err, collection, "next sequence")
	}

	insert := fmt.Sprintf(`INSERT INTO %q (key, payload, updated_at) VALUES (?, ?, ?)`, collection)
	if _, err := tx.ExecContext(ctx, insert, strconv.FormatInt(next, 10), string(payload), time.Now().UTC()); err != nil {
		_ = tx.Rollback()
		return 0, storageErr(err, collection, "append")
	}
	if err := tx.Commit(); err != nil {
		return 0, storageErr(err, collection, "commit append")
	}
	return next, nil
}

// Delete removes the record stored under key. Deleting a missing key is not
// an error.
func (s *Store) Delete(ctx context.Context, collection, key string) error {
	if err := s.ensure(ctx, collection); err != nil {
		return err
	}
	query := fmt.Sprintf(`DELETE FROM %q WHERE key = ?`, collection)
	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return storageErr(err, collection, "delete")
	}
	return nil
}

func storageErr(err error, collection, op string) error {
	return apperr.Wrap(err, apperr.ErrStorage, op).WithContext("collection", collection)
}
