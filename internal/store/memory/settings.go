package memory

import (
	"context"
	"maps"

	"github.com/BibekSapkota1/Share-Project/internal/settings"
)

// SeedGlobalDefaults writes the built-in defaults as global rows, the way
// the SQLite schema seeds global_settings.
func (s *Store) SeedGlobalDefaults(rows map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range rows {
		s.global[settings.GlobalPrefix+k] = v
	}
}

// GlobalSettings returns a copy of the global rows.
func (s *Store) GlobalSettings(ctx context.Context) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.global), nil
}

// UserSettings returns a copy of a user's overrides.
func (s *Store) UserSettings(ctx context.Context, userID int64) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := maps.Clone(s.user[userID])
	if out == nil {
		out = map[string]string{}
	}
	return out, nil
}

// SetUserSetting upserts one user override.
func (s *Store) SetUserSetting(ctx context.Context, userID int64, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user[userID] == nil {
		s.user[userID] = make(map[string]string)
	}
	s.user[userID][key] = value
	return nil
}

// DeleteUserSetting removes one user override.
func (s *Store) DeleteUserSetting(ctx context.Context, userID int64, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.user[userID], key)
	return nil
}
