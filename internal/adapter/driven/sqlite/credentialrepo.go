package sqlite

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ericfisherdev/fitsync/internal/domain/model"
	"github.com/ericfisherdev/fitsync/internal/domain/port/driven"
)

// Credential row keys.
const (
	keyAccessToken  = "access_token"
	keyRefreshToken = "refresh_token"
	keyExpiresAt    = "expires_at"
)

// encryptedPrefix marks values sealed with AES-256-GCM so that plaintext rows
// written before a key was configured can still be read.
const encryptedPrefix = "enc:"

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialRepo)(nil)

// CredentialRepo is the SQLite implementation of the CredentialStore port interface.
// When constructed with a key, values are encrypted with AES-256-GCM before write
// and decrypted after read.
type CredentialRepo struct {
	db  *DB
	key []byte // 32-byte AES-256 key; nil stores values as plaintext.
}

// NewCredentialRepo creates a new CredentialRepo. key must be nil or 32 bytes.
func NewCredentialRepo(db *DB, key []byte) (*CredentialRepo, error) {
	if key != nil && len(key) != 32 {
		return nil, driven.ErrInvalidSecretKey
	}
	return &CredentialRepo{db: db, key: key}, nil
}

// LoadTokens reads the persisted token set. Missing rows leave the
// corresponding field empty.
func (r *CredentialRepo) LoadTokens(ctx context.Context) (model.TokenSet, error) {
	const query = `SELECT key, value FROM credentials WHERE key IN (?, ?, ?)`
	rows, err := r.db.Reader.QueryContext(ctx, query, keyAccessToken, keyRefreshToken, keyExpiresAt)
	if err != nil {
		return model.TokenSet{}, fmt.Errorf("load tokens: %w", err)
	}
	defer rows.Close()

	var tokens model.TokenSet
	for rows.Next() {
		var key, stored string
		if err := rows.Scan(&key, &stored); err != nil {
			return model.TokenSet{}, fmt.Errorf("scan credential: %w", err)
		}

		value, err := r.open(stored)
		if err != nil {
			return model.TokenSet{}, fmt.Errorf("decrypt credential %q: %w", key, err)
		}

		switch key {
		case keyAccessToken:
			tokens.AccessToken = value
		case keyRefreshToken:
			tokens.RefreshToken = value
		case keyExpiresAt:
			if value == "" {
				continue
			}
			expiresAt, err := time.Parse(time.RFC3339, value)
			if err != nil {
				return model.TokenSet{}, fmt.Errorf("parse expires_at: %w", err)
			}
			tokens.ExpiresAt = expiresAt
		}
	}
	if err := rows.Err(); err != nil {
		return model.TokenSet{}, fmt.Errorf("iterate credentials: %w", err)
	}

	return tokens, nil
}

// SaveTokens replaces the access token, refresh token and expiry in one
// transaction so a crash never leaves a mixed pair on disk.
func (r *CredentialRepo) SaveTokens(ctx context.Context, tokens model.TokenSet) (err error) {
	values := [][2]string{
		{keyAccessToken, tokens.AccessToken},
		{keyRefreshToken, tokens.RefreshToken},
		{keyExpiresAt, formatExpiry(tokens.ExpiresAt)},
	}

	sealed := make([][2]string, 0, len(values))
	for _, kv := range values {
		v, err := r.seal(kv[1])
		if err != nil {
			return fmt.Errorf("encrypt credential %q: %w", kv[0], err)
		}
		sealed = append(sealed, [2]string{kv[0], v})
	}

	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save tokens: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `
		INSERT INTO credentials (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	now := time.Now().UTC().Format(time.RFC3339)
	for _, kv := range sealed {
		if _, err = tx.ExecContext(ctx, query, kv[0], kv[1], now); err != nil {
			return fmt.Errorf("save credential %q: %w", kv[0], err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit save tokens: %w", err)
	}
	return nil
}

func formatExpiry(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// seal encrypts plaintext using AES-256-GCM and returns the prefixed base64
// encoding of nonce || ciphertext || tag. Without a key it returns plaintext.
func (r *CredentialRepo) seal(plaintext string) (string, error) {
	if r.key == nil {
		return plaintext, nil
	}

	gcm, err := r.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return encryptedPrefix + base64.StdEncoding.EncodeToString(ciphertext), nil
}

// open reverses seal. Plaintext rows are returned unchanged.
func (r *CredentialRepo) open(stored string) (string, error) {
	if len(stored) < len(encryptedPrefix) || stored[:len(encryptedPrefix)] != encryptedPrefix {
		return stored, nil
	}
	if r.key == nil {
		return "", driven.ErrInvalidSecretKey
	}

	data, err := base64.StdEncoding.DecodeString(stored[len(encryptedPrefix):])
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}

	gcm, err := r.gcm()
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("gcm.Open: %w", err)
	}

	return string(plaintext), nil
}

func (r *CredentialRepo) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(r.key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return gcm, nil
}
