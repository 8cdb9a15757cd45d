package assetcache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/telreader/telugu-science-reader/internal/apperr"
	"github.com/telreader/telugu-science-reader/pkg/log"
)

// Entry is one cached response: status, headers, and body as fetched.
type Entry struct {
	Status    int
	Header    http.Header
	Body      []byte
	FetchedAt time.Time
}

// Cache stores full HTTP responses under named caches, keyed by URL path.
// A name change invalidates everything at once: the new name starts empty
// and DeleteOthers drops the old generation.
type Cache struct {
	db *sql.DB
}

// Open opens or creates the asset cache database.
func Open(path string) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, apperr.Wrap(err, apperr.ErrStorage, "create asset cache directory").WithContext("path", path)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ErrStorage, "open asset cache").WithContext("path", path)
	}
	db.SetMaxOpenConns(1)

	const schema = `CREATE TABLE IF NOT EXISTS assets (
		cache_name TEXT NOT NULL,
		url TEXT NOT NULL,
		status INTEGER NOT NULL,
		headers TEXT NOT NULL,
		body BLOB NOT NULL,
		fetched_at DATETIME NOT NULL,
		PRIMARY KEY (cache_name, url)
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, apperr.Wrap(err, apperr.ErrStorage, "create asset cache schema")
	}
	return &Cache{db: db}, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

// Put stores a response, replacing any prior entry for the URL.
func (c *Cache) Put(ctx context.Context, cacheName, url string, entry Entry) error {
	headers, err := json.Marshal(entry.Header)
	if err != nil {
		return apperr.Wrap(err, apperr.ErrParse, "encode cached headers").WithContext("url", url)
	}
	fetchedAt := entry.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now()
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO assets (cache_name, url, status, headers, body, fetched_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(cache_name, url) DO UPDATE SET
			status = excluded.status,
			headers = excluded.headers,
			body = excluded.body,
			fetched_at = excluded.fetched_at`,
		cacheName, url, entry.Status, string(headers), entry.Body, fetchedAt.UTC())
	if err != nil {
		return apperr.Wrap(err, apperr.ErrStorage, "store cached asset").WithContext("url", url)
	}
	return nil
}

// Match looks up a cached response. A miss is (zero, false, nil).
func (c *Cache) Match(ctx context.Context, cacheName, url string) (Entry, bool, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT status, headers, body, fetched_at FROM assets WHERE cache_name = ? AND url = ?`,
		cacheName, url)

	var entry Entry
	var headers string
	if err := row.Scan(&entry.Status, &headers, &entry.Body, &entry.FetchedAt); err != nil {
		if err == sql.ErrNoRows {
			return Entry{}, false, nil
		}
		return Entry{}, false, apperr.Wrap(err, apperr.ErrStorage, "read cached asset").WithContext("url", url)
	}
	if err := json.Unmarshal([]byte(headers), &entry.Header); err != nil {
		return Entry{}, false, apperr.Wrap(err, apperr.ErrParse, "decode cached headers").WithContext("url", url)
	}
	return entry, true, nil
}

// Delete removes one entry. Deleting an absent entry is not an error.
func (c *Cache) Delete(ctx context.Context, cacheName, url string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM assets WHERE cache_name = ? AND url = ?`, cacheName, url); err != nil {
		return apperr.Wrap(err, apperr.ErrStorage, "delete cached asset").WithContext("url", url)
	}
	return nil
}

// DeleteOthers removes every cache generation except keep and returns how
// many entries were dropped.
func (c *Cache) DeleteOthers(ctx context.Context, keep string) (int, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM assets WHERE cache_name != ?`, keep)
	if err != nil {
		return 0, apperr.Wrap(err, apperr.ErrStorage, "drop old cache generations").WithContext("keep", keep)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperr.Wrap(err, apperr.ErrStorage, "count dropped entries")
	}
	if n > 0 {
		log.Info("Dropped %d cached asset(s) from old generations", n)
	}
	return int(n), nil
}

// Names lists the cache generations currently present.
func (c *Cache) Names(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT DISTINCT cache_name FROM assets ORDER BY cache_name`)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ErrStorage, "list cache generations")
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, apperr.Wrap(err, apperr.ErrStorage, "scan cache name")
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
