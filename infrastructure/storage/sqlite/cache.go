package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/felixgeelhaar/ragent/domain/cache"
)

// Cache is a SQLite-backed implementation of cache.Cache, for deployments
// that want tool results to survive restarts without running Redis.
type Cache struct {
	db        *sql.DB
	keyPrefix string
	now       func() time.Time
	hits      atomic.Int64
	misses    atomic.Int64
}

// NewCache opens the database and creates the cache table when AutoMigrate is set.
func NewCache(cfg Config, opts ...Option) (*Cache, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	c := &Cache{db: db, keyPrefix: cfg.KeyPrefix, now: time.Now}
	if cfg.AutoMigrate {
		if err := c.migrate(); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return c, nil
}

func (c *Cache) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS tool_cache (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			expires_at INTEGER,
			updated_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_tool_cache_expires_at ON tool_cache(expires_at);
	`
	if _, err := c.db.Exec(schema); err != nil {
		return errors.Join(ErrMigrationFailed, err)
	}
	return nil
}

func (c *Cache) prefixKey(key string) string {
	return c.keyPrefix + key
}

// Get retrieves a value, deleting it if it has expired.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	var value []byte
	var expiresAt sql.NullInt64
	err := c.db.QueryRowContext(ctx,
		"SELECT value, expires_at FROM tool_cache WHERE key = ?", c.prefixKey(key),
	).Scan(&value, &expiresAt)

	if errors.Is(err, sql.ErrNoRows) {
		c.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	if expiresAt.Valid && expiresAt.Int64 <= c.now().UnixNano() {
		_, _ = c.db.ExecContext(ctx, "DELETE FROM tool_cache WHERE key = ?", c.prefixKey(key))
		c.misses.Add(1)
		return nil, false, nil
	}

	c.hits.Add(1)
	return value, true, nil
}

// Set stores or replaces a value.
func (c *Cache) Set(ctx context.Context, key string, value []byte, opts cache.SetOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return cache.ErrInvalidKey
	}

	now := c.now()
	var expiresAt sql.NullInt64
	if opts.TTL > 0 {
		expiresAt = sql.NullInt64{Int64: now.Add(opts.TTL).UnixNano(), Valid: true}
	}

	_, err := c.db.ExecContext(ctx,
		`INSERT INTO tool_cache (key, value, expires_at, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		   value = excluded.value,
		   expires_at = excluded.expires_at,
		   updated_at = excluded.updated_at`,
		c.prefixKey(key), value, expiresAt, now.UnixNano(),
	)
	return err
}

// Delete removes a value from the cache.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.db.ExecContext(ctx, "DELETE FROM tool_cache WHERE key = ?", c.prefixKey(key))
	return err
}

// Exists checks if a live key exists in the cache.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	var one int
	err := c.db.QueryRowContext(ctx,
		"SELECT 1 FROM tool_cache WHERE key = ? AND (expires_at IS NULL OR expires_at > ?)",
		c.prefixKey(key), c.now().UnixNano(),
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// Clear removes every entry under this cache's prefix.
func (c *Cache) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.keyPrefix == "" {
		_, err := c.db.ExecContext(ctx, "DELETE FROM tool_cache")
		return err
	}
	_, err := c.db.ExecContext(ctx,
		`DELETE FROM tool_cache WHERE key LIKE ? ESCAPE '\'`, escapeLike(c.keyPrefix)+"%")
	return err
}

// Stats returns cache statistics.
func (c *Cache) Stats() cache.Stats {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var size int64
	_ = c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tool_cache").Scan(&size)

	return cache.Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Size:   size,
	}
}

// Cleanup removes expired entries.
func (c *Cache) Cleanup(ctx context.Context) (int64, error) {
	result, err := c.db.ExecContext(ctx,
		"DELETE FROM tool_cache WHERE expires_at IS NOT NULL AND expires_at <= ?", c.now().UnixNano())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Close closes the database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

var (
	_ cache.Cache         = (*Cache)(nil)
	_ cache.StatsProvider = (*Cache)(nil)
)
