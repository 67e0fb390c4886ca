package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Cache keys follow the convention "type:identifier", e.g. "chapter:12345".
// CacheKey builds one.
func CacheKey(kind string, id interface{}) string {
	return fmt.Sprintf("%s:%v", kind, id)
}

// Get returns the cached value for key, or ok=false if the key is absent or
// expired. Expired rows are left in place; PurgeExpired removes them.
func (s *Store) Get(key string) (string, bool, error) {
	var value string
	var expiresAt int64
	err := s.db.QueryRow("SELECT value, expires_at FROM text_cache WHERE key = ?", key).Scan(&value, &expiresAt)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if s.now().Unix() >= expiresAt {
		return "", false, nil
	}
	return value, true, nil
}

// IsPresent reports whether key holds a valid (unexpired) entry without
// returning the payload. The warmer uses this to skip redundant fetches.
func (s *Store) IsPresent(key string) (bool, error) {
	var expiresAt int64
	err := s.db.QueryRow("SELECT expires_at FROM text_cache WHERE key = ?", key).Scan(&expiresAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return s.now().Unix() < expiresAt, nil
}

// Put upserts a value under key, expiring ttl from now.
func (s *Store) Put(key, value string, ttl time.Duration) error {
	expiresAt := s.now().Add(ttl).Unix()
	_, err := s.db.Exec(`
		INSERT INTO text_cache (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at
	`, key, value, expiresAt)
	return err
}

// Delete removes a single cache entry. Used for targeted invalidation after
// remote state changes (live chapter reads, bookmark mutations).
func (s *Store) Delete(key string) error {
	_, err := s.db.Exec("DELETE FROM text_cache WHERE key = ?", key)
	return err
}

// GetImage returns a cached binary payload and its content type.
func (s *Store) GetImage(key string) ([]byte, string, bool, error) {
	var data []byte
	var contentType string
	var expiresAt int64
	err := s.db.QueryRow("SELECT data, content_type, expires_at FROM image_cache WHERE key = ?", key).
		Scan(&data, &contentType, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, "", false, nil
	}
	if err != nil {
		return nil, "", false, err
	}
	if s.now().Unix() >= expiresAt {
		return nil, "", false, nil
	}
	return data, contentType, true, nil
}

// PutImage upserts a binary payload under key, expiring ttl from now.
func (s *Store) PutImage(key string, data []byte, contentType string, ttl time.Duration) error {
	expiresAt := s.now().Add(ttl).Unix()
	_, err := s.db.Exec(`
		INSERT INTO image_cache (key, data, content_type, expires_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET data = excluded.data, content_type = excluded.content_type, expires_at = excluded.expires_at
	`, key, data, contentType, expiresAt)
	return err
}

// PurgeExpired deletes all expired rows from both cache tables and returns
// the number of rows removed. It is run on demand, not automatically.
func (s *Store) PurgeExpired() (int64, error) {
	nowUnix := s.now().Unix()
	var total int64
	for _, table := range []string{"text_cache", "image_cache"} {
		res, err := s.db.Exec("DELETE FROM "+table+" WHERE expires_at <= ?", nowUnix)
		if err != nil {
			return total, err
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

// PurgeByTypePrefix deletes all rows whose key starts with "<kind>:", from
// both tables, regardless of expiry.
func (s *Store) PurgeByTypePrefix(kind string) (int64, error) {
	prefix := kind + ":%"
	var total int64
	for _, table := range []string{"text_cache", "image_cache"} {
		res, err := s.db.Exec("DELETE FROM "+table+" WHERE key LIKE ?", prefix)
		if err != nil {
			return total, err
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

// TypeStats summarizes one key-type prefix.
type TypeStats struct {
	Type    string `json:"type"`
	Entries int    `json:"entries"`
	Bytes   int64  `json:"bytes"`
}

// CacheStats is an observability snapshot of the cache tables.
type CacheStats struct {
	ByType       []TypeStats `json:"by_type"`
	TotalEntries int         `json:"total_entries"`
	TotalBytes   int64       `json:"total_bytes"`
	Expired      int         `json:"expired"`
	ImageEntries int         `json:"image_entries"`
	ImageBytes   int64       `json:"image_bytes"`
}

// Stats computes entry counts and byte sizes grouped by key-type prefix.
// Purely operational; nothing correctness-critical reads it.
func (s *Store) Stats() (*CacheStats, error) {
	stats := &CacheStats{}
	nowUnix := s.now().Unix()

	rows, err := s.db.Query(`
		SELECT CASE WHEN instr(key, ':') > 0 THEN substr(key, 1, instr(key, ':') - 1) ELSE key END AS type,
		       COUNT(*), COALESCE(SUM(length(value)), 0)
		FROM text_cache GROUP BY type ORDER BY type
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var ts TypeStats
		if err := rows.Scan(&ts.Type, &ts.Entries, &ts.Bytes); err != nil {
			return nil, err
		}
		stats.ByType = append(stats.ByType, ts)
		stats.TotalEntries += ts.Entries
		stats.TotalBytes += ts.Bytes
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = s.db.QueryRow(`
		SELECT (SELECT COUNT(*) FROM text_cache WHERE expires_at <= ?) +
		       (SELECT COUNT(*) FROM image_cache WHERE expires_at <= ?)
	`, nowUnix, nowUnix).Scan(&stats.Expired)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRow("SELECT COUNT(*), COALESCE(SUM(length(data)), 0) FROM image_cache").
		Scan(&stats.ImageEntries, &stats.ImageBytes)
	if err != nil {
		return nil, err
	}

	return stats, nil
}

// KeyType returns the "type" portion of a cache key, or the whole key when it
// carries no prefix.
func KeyType(key string) string {
	if i := strings.Index(key, ":"); i > 0 {
		return key[:i]
	}
	return key
}
