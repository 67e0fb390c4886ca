package store

import (
	"github.com/inkroad/inkroad/internal/models"
)

// RequiredCookie is the session cookie the remote site issues on login.
// Authenticated operations are only attempted when it is stored.
const RequiredCookie = ".AspNetCore.Identity.Application"

// SaveCookies replaces the stored cookie set for a user. Replacing rather
// than merging keeps stale session cookies from lingering after a re-login.
func (s *Store) SaveCookies(userID int64, cookies []models.Cookie) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM cookies WHERE user_id = ?", userID); err != nil {
		return err
	}
	for _, c := range cookies {
		if c.Name == "" {
			continue
		}
		_, err := tx.Exec(`
			INSERT INTO cookies (user_id, name, value) VALUES (?, ?, ?)
			ON CONFLICT(user_id, name) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
		`, userID, c.Name, c.Value)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetCookies returns all stored cookies for a user, ordered by name.
func (s *Store) GetCookies(userID int64) ([]models.Cookie, error) {
	rows, err := s.db.Query("SELECT name, value FROM cookies WHERE user_id = ? ORDER BY name", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cookies []models.Cookie
	for rows.Next() {
		var c models.Cookie
		if err := rows.Scan(&c.Name, &c.Value); err != nil {
			return nil, err
		}
		cookies = append(cookies, c)
	}
	return cookies, rows.Err()
}

// HasRequiredCookie reports whether the user stored the site's session
// cookie. Presence of this cookie is the gate for all authenticated
// operations.
func (s *Store) HasRequiredCookie(userID int64) (bool, error) {
	var n int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM cookies WHERE user_id = ? AND name = ? AND value != ''",
		userID, RequiredCookie,
	).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteCookies removes all stored cookies for a user.
func (s *Store) DeleteCookies(userID int64) error {
	_, err := s.db.Exec("DELETE FROM cookies WHERE user_id = ?", userID)
	return err
}
