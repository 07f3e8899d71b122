package cart

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tuneshop/internal/models"
	"github.com/desertthunder/tuneshop/internal/shared"
)

// API is the backend cart resource.
type API interface {
	Get(ctx context.Context) (*models.Cart, error)
	AddItem(ctx context.Context, line models.CartLineRequest) (*models.Cart, error)
	RemoveItem(ctx context.Context, lineID int) (*models.Cart, error)
	Clear(ctx context.Context) (*models.Cart, error)
}

// Store caches the server's cart.
//
// The cache only changes when a call succeeds, and always takes the server's answer
// as a whole. Concurrent calls resolve to whichever response arrives last.
type Store struct {
	api    API
	logger *log.Logger

	mu        sync.RWMutex
	cart      *models.Cart
	listeners []func(int)
}

// NewStore creates a store with an empty cache.
func NewStore(api API, logger *log.Logger) *Store {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &Store{api: api, logger: logger}
}

// OnLineCount registers fn to be called with the new line count whenever it changes.
func (s *Store) OnLineCount(fn func(int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Fetch loads the cart from the server.
func (s *Store) Fetch(ctx context.Context) (*models.Cart, error) {
	cart, err := s.api.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch cart: %w", err)
	}
	return s.replace(cart), nil
}

// AddLine adds one product.
func (s *Store) AddLine(ctx context.Context, pt models.ProductType, productID int) (*models.Cart, error) {
	if !pt.Valid() || productID <= 0 {
		return nil, fmt.Errorf("%w: product %s %d", shared.ErrInvalidInput, pt, productID)
	}

	cart, err := s.api.AddItem(ctx, models.CartLineRequest{ProductType: pt, ProductID: productID})
	if err != nil {
		return nil, fmt.Errorf("failed to add %s %d: %w", pt, productID, err)
	}
	return s.replace(cart), nil
}

// RemoveLine removes the line with the given server id.
func (s *Store) RemoveLine(ctx context.Context, lineID int) (*models.Cart, error) {
	cart, err := s.api.RemoveItem(ctx, lineID)
	if err != nil {
		return nil, fmt.Errorf("failed to remove line %d: %w", lineID, err)
	}
	return s.replace(cart), nil
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context) error {
	cart, err := s.api.Clear(ctx)
	if err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	s.replace(cart)
	return nil
}

// Cached returns a copy of the last known cart, or nil before the first fetch.
func (s *Store) Cached() *models.Cart {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.Clone()
}

// CachedLineCount returns the line count of the cached cart.
func (s *Store) CachedLineCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cart == nil {
		return 0
	}
	return len(s.cart.Lines)
}

// HasLine reports whether the cached cart holds the product.
func (s *Store) HasLine(pt models.ProductType, productID int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.Has(pt, productID)
}

// Reset drops the cache without calling the server.
func (s *Store) Reset() {
	s.swap(nil)
}

// replace stores a copy of cart and returns another copy to the caller.
func (s *Store) replace(cart *models.Cart) *models.Cart {
	if cart == nil {
		cart = &models.Cart{Lines: []models.CartLine{}}
	}
	if err := cart.Validate(); err != nil {
		s.logger.Warn("server cart is inconsistent", "error", err)
	}
	s.swap(cart.Clone())
	return cart.Clone()
}

func (s *Store) swap(cart *models.Cart) {
	s.mu.Lock()
	before := 0
	if s.cart != nil {
		before = len(s.cart.Lines)
	}
	s.cart = cart
	after := 0
	if cart != nil {
		after = len(cart.Lines)
	}
	listeners := append([]func(int){}, s.listeners...)
	s.mu.Unlock()

	if before == after {
		return
	}
	for _, fn := range listeners {
		fn(after)
	}
}
