package tasks

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/desertthunder/tuneshop/internal/models"
	"github.com/desertthunder/tuneshop/internal/shared"
)

// SessionStore persists the checkout context for the lifetime of one browsing session.
//
// LoadCheckout returns nil and no error when nothing is stored.
type SessionStore interface {
	LoadCheckout(ctx context.Context) (*models.CheckoutContext, error)
	SaveCheckout(ctx context.Context, c models.CheckoutContext) error
	ClearCheckout(ctx context.Context) error
}

// ContextStore holds the in-progress checkout context.
//
// Reads are served from memory. Writes update memory and then the [SessionStore]; a
// failed write yields an error matching [shared.ErrNotPersisted] with memory updated.
type ContextStore struct {
	store SessionStore
	now   func() time.Time

	mu      sync.RWMutex
	current *models.CheckoutContext
}

// NewContextStore creates an empty store backed by store (which may be nil).
func NewContextStore(store SessionStore) *ContextStore {
	return &ContextStore{store: store, now: time.Now}
}

// Load reads the persisted context into memory.
func (s *ContextStore) Load(ctx context.Context) error {
	if s.store == nil {
		return nil
	}

	c, err := s.store.LoadCheckout(ctx)
	if err != nil {
		return fmt.Errorf("failed to load checkout context: %w", err)
	}
	if c != nil {
		if err := c.Validate(); err != nil {
			if err := s.store.ClearCheckout(ctx); err != nil {
				return fmt.Errorf("failed to discard invalid checkout context: %w", err)
			}
			c = nil
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = c
	return nil
}

// Context returns a copy of the current context.
func (s *ContextStore) Context() (models.CheckoutContext, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return models.CheckoutContext{}, false
	}
	return s.current.Clone(), true
}

// SetContext replaces the context.
func (s *ContextStore) SetContext(ctx context.Context, c models.CheckoutContext) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("%w: %w", shared.ErrInvalidInput, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit(ctx, c.Clone())
}

// UpdateContext applies fn to a copy of the current context and stores the result.
//
// A snapshot, once captured, cannot be changed or dropped within the same attempt.
func (s *ContextStore) UpdateContext(ctx context.Context, fn func(c *models.CheckoutContext)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return shared.ErrNoCheckout
	}

	next := s.current.Clone()
	fn(&next)

	if s.current.SnapshotCaptured && next.AttemptID == s.current.AttemptID {
		if !next.SnapshotCaptured || !slices.Equal(next.CartSnapshot, s.current.CartSnapshot) {
			return shared.ErrSnapshotImmutable
		}
	}
	if err := next.Validate(); err != nil {
		return fmt.Errorf("%w: %w", shared.ErrInvalidInput, err)
	}
	return s.commit(ctx, next)
}

// Clear removes the context.
func (s *ContextStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = nil
	if s.store == nil {
		return nil
	}
	if err := s.store.ClearCheckout(ctx); err != nil {
		return fmt.Errorf("%w: %w", shared.ErrNotPersisted, err)
	}
	return nil
}

// commit must be called with mu held.
func (s *ContextStore) commit(ctx context.Context, c models.CheckoutContext) error {
	c.UpdatedAt = s.now().UTC()
	s.current = &c

	if s.store == nil {
		return nil
	}
	if err := s.store.SaveCheckout(ctx, c); err != nil {
		return fmt.Errorf("%w: %w", shared.ErrNotPersisted, err)
	}
	return nil
}
