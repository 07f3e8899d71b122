package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/tuneshop/internal/models"
)

// CheckoutContextRepository stores one checkout context per browsing session.
//
// A row idle for longer than ttl counts as belonging to an ended session and is
// neither returned nor kept.
type CheckoutContextRepository struct {
	db        *sql.DB
	sessionID string
	ttl       time.Duration
	now       func() time.Time
}

// NewCheckoutContextRepository scopes the repository to sessionID. A zero ttl never expires rows.
func NewCheckoutContextRepository(db *sql.DB, sessionID string, ttl time.Duration) *CheckoutContextRepository {
	return &CheckoutContextRepository{db: db, sessionID: sessionID, ttl: ttl, now: time.Now}
}

func (r *CheckoutContextRepository) expired(updatedAt int64) bool {
	if r.ttl <= 0 {
		return false
	}
	return r.now().Sub(time.UnixMilli(updatedAt)) > r.ttl
}

// LoadCheckout returns the session's context, or nil.
func (r *CheckoutContextRepository) LoadCheckout(ctx context.Context) (*models.CheckoutContext, error) {
	var (
		payload   string
		updatedAt int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT payload, updated_at FROM checkout_contexts WHERE browsing_session_id = ?`, r.sessionID,
	).Scan(&payload, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query checkout context: %w", err)
	}

	if r.expired(updatedAt) {
		if err := r.ClearCheckout(ctx); err != nil {
			return nil, err
		}
		return nil, nil
	}

	var c models.CheckoutContext
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return nil, fmt.Errorf("failed to decode checkout context: %w", err)
	}
	return &c, nil
}

// SaveCheckout replaces the session's context and refreshes its idle timer.
func (r *CheckoutContextRepository) SaveCheckout(ctx context.Context, c models.CheckoutContext) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode checkout context: %w", err)
	}

	query := `
		INSERT INTO checkout_contexts (browsing_session_id, payload, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(browsing_session_id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at
	`
	if _, err := r.db.ExecContext(ctx, query, r.sessionID, string(payload), r.now().UnixMilli()); err != nil {
		return fmt.Errorf("failed to save checkout context: %w", err)
	}
	return nil
}

// ClearCheckout deletes the session's context.
func (r *CheckoutContextRepository) ClearCheckout(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM checkout_contexts WHERE browsing_session_id = ?`, r.sessionID); err != nil {
		return fmt.Errorf("failed to clear checkout context: %w", err)
	}
	return nil
}

// PurgeIdle deletes contexts of every browsing session idle longer than the ttl.
func (r *CheckoutContextRepository) PurgeIdle(ctx context.Context) (int64, error) {
	if r.ttl <= 0 {
		return 0, nil
	}
	cutoff := r.now().Add(-r.ttl).UnixMilli()

	res, err := r.db.ExecContext(ctx, `DELETE FROM checkout_contexts WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge checkout contexts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged contexts: %w", err)
	}
	return n, nil
}
