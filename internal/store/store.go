// Package store is the data access layer. It persists the page cache and the
// user's remote-site cookies in SQLite. All writes are idempotent upserts of
// values re-derived from the same remote source, so no locking is layered on
// top of the database.
package store

import (
	"database/sql"
	"time"
)

type Store struct {
	db *sql.DB

	// now is swapped out in tests to exercise expiry.
	now func() time.Time
}

func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}
