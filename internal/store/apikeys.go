package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

// APIKey is an admin API credential. Only the hash is stored.
type APIKey struct {
	ID        string
	Name      string
	KeyHash   string
	CreatedAt string
	RevokedAt string
}

// HashAPIKey returns a stable SHA-256 hex digest for the provided key.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(key)))
	return hex.EncodeToString(sum[:])
}

// InsertAPIKey stores a hashed API key. KeyHash must already contain
// the hashed value.
func (o Ops) InsertAPIKey(ctx context.Context, key APIKey) error {
	if key.ID == "" {
		return errors.New("id required")
	}
	if key.KeyHash == "" {
		return errors.New("key_hash required")
	}
	if key.CreatedAt == "" {
		key.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	_, err := o.DB.ExecContext(ctx, `INSERT INTO api_keys(id, name, key_hash, created_at) VALUES (?,?,?,?)`,
		key.ID, key.Name, key.KeyHash, key.CreatedAt)
	return err
}

// GetAPIKeyByHash returns an active API key by its hashed value.
func (o Ops) GetAPIKeyByHash(ctx context.Context, hash string) (APIKey, error) {
	row := o.DB.QueryRowContext(ctx,
		`SELECT id, name, key_hash, created_at, COALESCE(revoked_at,'') FROM api_keys WHERE key_hash=? LIMIT 1`, hash)
	var key APIKey
	err := row.Scan(&key.ID, &key.Name, &key.KeyHash, &key.CreatedAt, &key.RevokedAt)
	if err == sql.ErrNoRows {
		return APIKey{}, ErrNotFound
	}
	if err != nil {
		return APIKey{}, err
	}
	if key.RevokedAt != "" {
		return APIKey{}, ErrNotFound
	}
	return key, nil
}

// ListAPIKeys returns all API keys, newest first.
func (o Ops) ListAPIKeys(ctx context.Context) ([]APIKey, error) {
	rows, err := o.DB.QueryContext(ctx,
		`SELECT id, name, key_hash, created_at, COALESCE(revoked_at,'') FROM api_keys ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []APIKey
	for rows.Next() {
		var key APIKey
		if err := rows.Scan(&key.ID, &key.Name, &key.KeyHash, &key.CreatedAt, &key.RevokedAt); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// RevokeAPIKey marks a key revoked. Revoking an unknown id returns
// ErrNotFound.
func (o Ops) RevokeAPIKey(ctx context.Context, id string) error {
	res, err := o.DB.ExecContext(ctx, `UPDATE api_keys SET revoked_at=? WHERE id=? AND revoked_at IS NULL`,
		time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) InsertAPIKey(ctx context.Context, key APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ops.InsertAPIKey(ctx, key)
}

func (s *Store) GetAPIKeyByHash(ctx context.Context, hash string) (APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ops.GetAPIKeyByHash(ctx, hash)
}

func (s *Store) ListAPIKeys(ctx context.Context) ([]APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ops.ListAPIKeys(ctx)
}

func (s *Store) RevokeAPIKey(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ops.RevokeAPIKey(ctx, id)
}
