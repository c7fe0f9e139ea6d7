package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jxzhangjhu/guidance/pkg/models"
)

// Cache is a durable exact-match response cache backed by SQLite.
// Entries never expire; several processes may share one file.
type Cache struct {
	db        *sql.DB
	namespace string
	hits      atomic.Int64
	misses    atomic.Int64
}

const createCacheTable = `
CREATE TABLE IF NOT EXISTS completion_cache (
	namespace TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	response BLOB NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (namespace, fingerprint)
);
`

// New opens (or creates) the cache database at dbPath and scopes all
// operations to namespace.
func New(dbPath, namespace string) (*Cache, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	if _, err := db.Exec(createCacheTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}

	return &Cache{db: db, namespace: namespace}, nil
}

// Get retrieves a cached response.
func (c *Cache) Get(ctx context.Context, fingerprint string) ([]byte, bool, error) {
	var response []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT response FROM completion_cache WHERE namespace = ? AND fingerprint = ?`,
		c.namespace, fingerprint,
	).Scan(&response)

	if errors.Is(err, sql.ErrNoRows) {
		c.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		c.misses.Add(1)
		return nil, false, fmt.Errorf("cache get: %w", err)
	}

	c.hits.Add(1)
	return response, true, nil
}

// Put stores a response. A concurrent writer of the same fingerprint wins
// if it commits last.
func (c *Cache) Put(ctx context.Context, fingerprint string, response []byte) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO completion_cache (namespace, fingerprint, response, created_at)
		 VALUES (?, ?, ?, ?)`,
		c.namespace, fingerprint, response, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// Stats returns cache performance metrics. Hits and misses count this
// process only; entries count the whole namespace.
func (c *Cache) Stats(ctx context.Context) (models.CacheStats, error) {
	var count int64
	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM completion_cache WHERE namespace = ?`, c.namespace,
	).Scan(&count)
	if err != nil {
		return models.CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}
	return models.CacheStats{
		Entries: count,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}, nil
}

// Clear removes every entry in the namespace.
func (c *Cache) Clear(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM completion_cache WHERE namespace = ?`, c.namespace)
	if err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	return nil
}

// Close releases the database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}
