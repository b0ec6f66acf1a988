package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DefaultCacheTTL is how long a cached catalog stays fresh.
const DefaultCacheTTL = 24 * time.Hour

const cacheKey = "metadata"

// Cache keeps the processed catalog in SQLite so restarts skip the workbooks.
type Cache struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// OpenCache opens or creates the cache database at dbPath. Parent
// directories are created if they do not exist.
func OpenCache(dbPath string, ttl time.Duration) (*Cache, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	schema := `
	CREATE TABLE IF NOT EXISTS metadata_cache (
		key TEXT PRIMARY KEY,
		stored_at INTEGER NOT NULL,
		payload TEXT NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{db: db, ttl: ttl, now: time.Now}, nil
}

// Get returns the cached catalog, or nil when absent or older than the TTL.
func (c *Cache) Get(ctx context.Context) (*Catalog, error) {
	var storedAt int64
	var payload string
	err := c.db.QueryRowContext(ctx,
		`SELECT stored_at, payload FROM metadata_cache WHERE key = ?`, cacheKey,
	).Scan(&storedAt, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata cache: %w", err)
	}
	if c.now().Sub(time.UnixMilli(storedAt)) > c.ttl {
		return nil, nil
	}
	var cat Catalog
	if err := json.Unmarshal([]byte(payload), &cat); err != nil {
		return nil, fmt.Errorf("failed to decode metadata cache: %w", err)
	}
	cat.reindex()
	return &cat, nil
}

// Put stores cat with the current time.
func (c *Cache) Put(ctx context.Context, cat *Catalog) error {
	payload, err := json.Marshal(cat)
	if err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO metadata_cache (key, stored_at, payload) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET stored_at = excluded.stored_at, payload = excluded.payload`,
		cacheKey, c.now().UnixMilli(), string(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to write metadata cache: %w", err)
	}
	return nil
}

// Clear removes the cached catalog.
func (c *Cache) Clear(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM metadata_cache WHERE key = ?`, cacheKey)
	return err
}

// Close closes the database.
func (c *Cache) Close() error {
	return c.db.Close()
}
