package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tuneshop/internal/models"
	"github.com/desertthunder/tuneshop/internal/shared"
)

// DurableStore persists credentials across restarts.
//
// LoadCredentials returns nil and no error when nothing is stored.
type DurableStore interface {
	LoadCredentials(ctx context.Context) (*models.Session, error)
	SaveCredentials(ctx context.Context, s models.Session) error
	ClearCredentials(ctx context.Context) error
}

// TokenStore holds the current session.
//
// The in-memory copy is authoritative while the process runs. Every mutation is written
// through to the [DurableStore]; a failed write is returned but memory is updated anyway.
type TokenStore struct {
	mu      sync.RWMutex
	session models.Session
	durable DurableStore
	logger  *log.Logger
}

// NewTokenStore creates an empty store backed by durable (which may be nil).
func NewTokenStore(durable DurableStore, logger *log.Logger) *TokenStore {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &TokenStore{durable: durable, logger: logger}
}

// Restore loads the persisted session. A partial tuple is discarded and cleared.
func (s *TokenStore) Restore(ctx context.Context) error {
	if s.durable == nil {
		return nil
	}

	stored, err := s.durable.LoadCredentials(ctx)
	if err != nil {
		return fmt.Errorf("failed to load credentials: %w", err)
	}
	if stored == nil || stored.IsZero() {
		return nil
	}

	if err := stored.Validate(); err != nil {
		s.logger.Warn("discarding partial session", "error", err)
		if err := s.durable.ClearCredentials(ctx); err != nil {
			return fmt.Errorf("failed to clear partial session: %w", err)
		}
		return nil
	}

	s.mu.Lock()
	s.session = *stored
	s.mu.Unlock()

	s.logger.Debug("session restored")
	return nil
}

// SetSession replaces the session after login.
func (s *TokenStore) SetSession(ctx context.Context, session models.Session) error {
	if session.IsZero() {
		return fmt.Errorf("%w: session has no tokens", shared.ErrInvalidInput)
	}
	if err := session.Validate(); err != nil {
		return fmt.Errorf("%w: %w", shared.ErrPartialSession, err)
	}
	if session.TokenType == "" {
		session.TokenType = models.DefaultTokenType
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = session
	return s.persist(ctx)
}

// UpdateTokens swaps in a renewed token pair, keeping the user. An empty prefix keeps the current one.
func (s *TokenStore) UpdateTokens(ctx context.Context, access, refresh, prefix string) error {
	if access == "" || refresh == "" {
		return fmt.Errorf("%w: both tokens are required", shared.ErrPartialSession)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.session.AccessToken = access
	s.session.RefreshToken = refresh
	if prefix != "" {
		s.session.TokenType = prefix
	} else if s.session.TokenType == "" {
		s.session.TokenType = models.DefaultTokenType
	}
	return s.persist(ctx)
}

// Clear drops the session from memory and from the durable store.
func (s *TokenStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = models.Session{}
	if s.durable == nil {
		return nil
	}
	if err := s.durable.ClearCredentials(ctx); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	return nil
}

// persist must be called with mu held.
func (s *TokenStore) persist(ctx context.Context) error {
	if s.durable == nil {
		return nil
	}
	if err := s.durable.SaveCredentials(ctx, s.session); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	return nil
}

// AccessToken returns the current access token, or "".
func (s *TokenStore) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.AccessToken
}

// RefreshToken returns the current refresh token, or "".
func (s *TokenStore) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.RefreshToken
}

// AuthorizationHeader returns "<prefix> <token>", or "" when unauthenticated.
func (s *TokenStore) AuthorizationHeader() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session.AccessToken == "" {
		return ""
	}
	return s.session.Prefix() + " " + s.session.AccessToken
}

// IsAuthenticated reports whether an access token is held.
func (s *TokenStore) IsAuthenticated() bool {
	return s.AccessToken() != ""
}

// User returns the user document from the last login.
func (s *TokenStore) User() json.RawMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append(json.RawMessage(nil), s.session.User...)
}

// Session returns a copy of the whole session.
func (s *TokenStore) Session() models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := s.session
	cp.User = append(json.RawMessage(nil), s.session.User...)
	return cp
}
