package broker

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Cache is a SQLite-backed HTTP response cache. Entries expire by TTL;
// non-2xx responses are cached too (negative caching) so a failing endpoint
// is not hammered across runs.
type Cache struct {
	db *sql.DB
}

// OpenCache opens (or creates) the cache database at the given path with WAL
// mode enabled. It creates the parent directory if it does not exist.
func OpenCache(path string) (*Cache, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging cache database: %w", err)
	}

	// Single writer connection for SQLite
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS http_cache (
			key        TEXT PRIMARY KEY,
			url        TEXT NOT NULL,
			status     INTEGER NOT NULL,
			body       BLOB NOT NULL,
			created_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL
		)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating cache table: %w", err)
	}

	return &Cache{db: db}, nil
}

// CachedResponse is one stored HTTP exchange.
type CachedResponse struct {
	URL    string
	Status int
	Body   []byte
}

// Get returns the cached response for key, or ok=false if absent or expired.
// Expired rows are deleted on read.
func (c *Cache) Get(key string) (*CachedResponse, bool, error) {
	var resp CachedResponse
	var expiresAt int64
	err := c.db.QueryRow(
		`SELECT url, status, body, expires_at FROM http_cache WHERE key = ?`, key,
	).Scan(&resp.URL, &resp.Status, &resp.Body, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading cache: %w", err)
	}

	if time.Now().Unix() >= expiresAt {
		if _, err := c.db.Exec(`DELETE FROM http_cache WHERE key = ?`, key); err != nil {
			return nil, false, fmt.Errorf("deleting expired cache row: %w", err)
		}
		return nil, false, nil
	}

	return &resp, true, nil
}

// Put stores a response with the given TTL. A TTL of zero or less is clamped
// to one second so an entry never lives forever by accident.
func (c *Cache) Put(key, url string, status int, body []byte, ttl time.Duration) error {
	if ttl < time.Second {
		ttl = time.Second
	}
	now := time.Now().Unix()
	_, err := c.db.Exec(
		`INSERT OR REPLACE INTO http_cache(key, url, status, body, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		key, url, status, body, now, now+int64(ttl/time.Second),
	)
	if err != nil {
		return fmt.Errorf("writing cache: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}
