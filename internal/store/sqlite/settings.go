package sqlite

import (
	"context"
	"fmt"
)

// GlobalSettings returns every global_settings row as key → value.
func (s *Store) GlobalSettings(ctx context.Context) (map[string]string, error) {
	return s.settingsMap(ctx, `SELECT key, value FROM global_settings`)
}

// UserSettings returns a user's overrides as key → value.
func (s *Store) UserSettings(ctx context.Context, userID int64) (map[string]string, error) {
	return s.settingsMap(ctx, `SELECT key, value FROM user_settings WHERE user_id = ?`, userID)
}

func (s *Store) settingsMap(ctx context.Context, query string, args ...any) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite query settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("sqlite scan settings: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

// SetUserSetting upserts one user override.
func (s *Store) SetUserSetting(ctx context.Context, userID int64, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_settings (user_id, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, userID, key, value, s.now().Unix())
	if err != nil {
		return fmt.Errorf("sqlite upsert user setting: %w", err)
	}
	return nil
}

// DeleteUserSetting removes one user override so the global value applies.
func (s *Store) DeleteUserSetting(ctx context.Context, userID int64, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM user_settings WHERE user_id = ? AND key = ?`, userID, key); err != nil {
		return fmt.Errorf("sqlite delete user setting: %w", err)
	}
	return nil
}

// SetGlobalSetting upserts one global default.
func (s *Store) SetGlobalSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO global_settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, s.now().Unix())
	if err != nil {
		return fmt.Errorf("sqlite upsert global setting: %w", err)
	}
	return nil
}
