package results

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/magicfactory/internal/database"
)

// Cache is a key/value store of encoded estimates.
// Database: cache.db (estimates table)
type Cache struct {
	db  *database.DB
	now func() time.Time
}

// NewCache creates an estimate cache on cache.db
func NewCache(db *database.DB) *Cache {
	return &Cache{db: db, now: time.Now}
}

// Get returns the value stored under key.
func (c *Cache) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := c.db.Conn().QueryRow(`SELECT value FROM estimates WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache entry: %w", err)
	}
	return value, true, nil
}

// Put stores value under key, replacing any previous value.
func (c *Cache) Put(key string, value []byte) error {
	_, err := c.db.Conn().Exec(`
		INSERT INTO estimates (key, value, created_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, created_at = excluded.created_at
	`, key, value, c.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

// Len returns the number of cached entries.
func (c *Cache) Len() (int, error) {
	var n int
	if err := c.db.Conn().QueryRow(`SELECT COUNT(*) FROM estimates`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count cache entries: %w", err)
	}
	return n, nil
}

// Purge deletes entries written before cutoff and returns how many went.
func (c *Cache) Purge(cutoff time.Time) (int64, error) {
	res, err := c.db.Conn().Exec(`DELETE FROM estimates WHERE created_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to purge cache: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
