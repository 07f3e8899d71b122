package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/desertthunder/tuneshop/internal/models"
)

// Keys of the persisted session fields.
const (
	KeyUser         = "user"
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyTokenType    = "token_type"
)

var credentialKeys = []string{KeyUser, KeyAccessToken, KeyRefreshToken, KeyTokenType}

// CredentialRepository stores the session as four rows of the credentials table.
//
// Saves and clears touch all four rows in one transaction.
type CredentialRepository struct {
	db *sql.DB
}

// NewCredentialRepository creates a new [CredentialRepository] with the given database connection
func NewCredentialRepository(db *sql.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// LoadCredentials returns the stored session, or nil when no field is stored.
// A partial tuple is returned as found; callers decide what to do with it.
func (r *CredentialRepository) LoadCredentials(ctx context.Context) (*models.Session, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM credentials WHERE key IN (?, ?, ?, ?)`,
		KeyUser, KeyAccessToken, KeyRefreshToken, KeyTokenType)
	if err != nil {
		return nil, fmt.Errorf("failed to query credentials: %w", err)
	}
	defer rows.Close()

	var (
		s     models.Session
		found bool
	)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}
		found = true

		switch key {
		case KeyUser:
			if value != "" {
				s.User = json.RawMessage(value)
			}
		case KeyAccessToken:
			s.AccessToken = value
		case KeyRefreshToken:
			s.RefreshToken = value
		case KeyTokenType:
			s.TokenType = value
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate credentials: %w", err)
	}

	if !found {
		return nil, nil
	}
	return &s, nil
}

// SaveCredentials writes all four fields.
func (r *CredentialRepository) SaveCredentials(ctx context.Context, s models.Session) error {
	values := map[string]string{
		KeyUser:         string(s.User),
		KeyAccessToken:  s.AccessToken,
		KeyRefreshToken: s.RefreshToken,
		KeyTokenType:    s.TokenType,
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO credentials (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, key := range credentialKeys {
			if _, err := tx.ExecContext(ctx, query, key, values[key], now); err != nil {
				return fmt.Errorf("failed to save %s: %w", key, err)
			}
		}
		return nil
	})
}

// ClearCredentials deletes all four fields.
func (r *CredentialRepository) ClearCredentials(ctx context.Context) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM credentials WHERE key IN (?, ?, ?, ?)`,
			KeyUser, KeyAccessToken, KeyRefreshToken, KeyTokenType)
		if err != nil {
			return fmt.Errorf("failed to clear credentials: %w", err)
		}
		return nil
	})
}
