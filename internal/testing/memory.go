package testing

import (
	"context"
	"sync"

	"github.com/desertthunder/tuneshop/internal/models"
)

// MemoryCredentials is an in-memory durable credential store.
type MemoryCredentials struct {
	mu      sync.Mutex
	session *models.Session
	// SaveErr and ClearErr, when set, are returned by the matching call.
	SaveErr  error
	ClearErr error
	saves    int
	clears   int
}

// NewMemoryCredentials returns a store pre-loaded with s, if non-nil.
func NewMemoryCredentials(s *models.Session) *MemoryCredentials {
	m := &MemoryCredentials{}
	if s != nil {
		cp := *s
		m.session = &cp
	}
	return m
}

func (m *MemoryCredentials) LoadCredentials(ctx context.Context) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil, nil
	}
	cp := *m.session
	return &cp, nil
}

func (m *MemoryCredentials) SaveCredentials(ctx context.Context, s models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.session = &s
	return nil
}

func (m *MemoryCredentials) ClearCredentials(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clears++
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.ClearErr != nil {
		return m.ClearErr
	}
	m.session = nil
	return nil
}

// Stored returns the persisted session, or nil.
func (m *MemoryCredentials) Stored() *models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil
	}
	cp := *m.session
	return &cp
}

// Saves counts SaveCredentials calls.
func (m *MemoryCredentials) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Clears counts ClearCredentials calls.
func (m *MemoryCredentials) Clears() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clears
}

// MemoryCheckoutStore is an in-memory session-scoped checkout context store.
type MemoryCheckoutStore struct {
	mu      sync.Mutex
	ctx     *models.CheckoutContext
	SaveErr error
}

func (m *MemoryCheckoutStore) LoadCheckout(ctx context.Context) (*models.CheckoutContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctx == nil {
		return nil, nil
	}
	cp := m.ctx.Clone()
	return &cp, nil
}

func (m *MemoryCheckoutStore) SaveCheckout(ctx context.Context, c models.CheckoutContext) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	cp := c.Clone()
	m.ctx = &cp
	return nil
}

func (m *MemoryCheckoutStore) ClearCheckout(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ctx = nil
	return nil
}

// Stored returns the persisted context, or nil.
func (m *MemoryCheckoutStore) Stored() *models.CheckoutContext {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctx == nil {
		return nil
	}
	cp := m.ctx.Clone()
	return &cp
}
