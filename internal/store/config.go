package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// GetConfig retrieves the raw JSON value stored under key.
// Returns found=false if the key does not exist.
func (s *Store) GetConfig(ctx context.Context, key string) (json.RawMessage, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get config %q: %w", key, err)
	}
	return json.RawMessage(value), true, nil
}

// GetString returns the string stored under key, or "" if absent or not a string.
func (s *Store) GetString(ctx context.Context, key string) (string, error) {
	raw, ok, err := s.GetConfig(ctx, key)
	if err != nil || !ok {
		return "", err
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", nil
	}
	return v, nil
}

// GetBool returns the bool stored under key, or false if absent or not a bool.
func (s *Store) GetBool(ctx context.Context, key string) (bool, error) {
	raw, ok, err := s.GetConfig(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	var v bool
	if err := json.Unmarshal(raw, &v); err != nil {
		return false, nil
	}
	return v, nil
}

// PutConfig stores value (any JSON-encodable scalar or object) under key.
// Last write wins.
func (s *Store) PutConfig(ctx context.Context, key string, value any) error {
	return s.PutConfigs(ctx, map[string]any{key: value})
}

// PutConfigs stores every entry of values in one transaction.
func (s *Store) PutConfigs(ctx context.Context, values map[string]any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("put config: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.putConfigsTx(ctx, tx, values); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("put config: commit: %w", err)
	}
	return nil
}

// DeleteConfig removes key. Deleting an absent key is not an error.
func (s *Store) DeleteConfig(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM config WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete config %q: %w", key, err)
	}
	return nil
}

// ClearConfig removes every configuration entry.
func (s *Store) ClearConfig(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM config`); err != nil {
		return fmt.Errorf("clear config: %w", err)
	}
	return nil
}

// AllConfig returns every configuration entry keyed by name.
func (s *Store) AllConfig(ctx context.Context) (map[string]json.RawMessage, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM config ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("query config: %w", err)
	}
	defer rows.Close()

	out := make(map[string]json.RawMessage)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan config: %w", err)
		}
		out[key] = json.RawMessage(value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate config: %w", err)
	}
	return out, nil
}

func (s *Store) putConfigsTx(ctx context.Context, tx *sql.Tx, values map[string]any) error {
	// Sorted for a deterministic write order.
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	now := millis(s.now())
	for _, k := range keys {
		data, err := json.Marshal(values[k])
		if err != nil {
			return fmt.Errorf("put config %q: marshal: %w", k, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO config (key, value, updated_at)
			VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
		`, k, string(data), now)
		if err != nil {
			return fmt.Errorf("put config %q: %w", k, err)
		}
	}
	return nil
}

// stringTx reads a string config value inside tx. Absent or non-string
// values read as "".
func stringTx(ctx context.Context, tx *sql.Tx, key string) (string, error) {
	var value string
	err := tx.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get config %q: %w", key, err)
	}
	var v string
	if err := json.Unmarshal([]byte(value), &v); err != nil {
		return "", nil
	}
	return v, nil
}
