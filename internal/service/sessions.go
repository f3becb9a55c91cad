package service

import (
	"context"
	"sync"

	"figmist-store/internal/localstore"

	lru "github.com/hashicorp/golang-lru"
)

const defaultCartCacheSize = 10000

// Sessions hands out the cart and admin guard of each storefront session.
// Carts are rehydrated from storage the first time a session is seen and
// kept in a bounded LRU; an evicted cart is reloaded from storage on its
// next request.
type Sessions struct {
	mu      sync.Mutex
	storage localstore.Storage
	creds   AdminCredentials
	carts   *lru.Cache
}

// NewSessions creates a registry over the shared storage holding at most
// maxCarts live carts. A non-positive maxCarts selects the default.
func NewSessions(storage localstore.Storage, creds AdminCredentials, maxCarts int) *Sessions {
	if maxCarts <= 0 {
		maxCarts = defaultCartCacheSize
	}
	// lru.New only fails for a non-positive size
	carts, _ := lru.New(maxCarts)
	return &Sessions{
		storage: storage,
		creds:   creds,
		carts:   carts,
	}
}

// Cart returns the cart of a session
func (s *Sessions) Cart(ctx context.Context, sessionID string) *Cart {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.carts.Get(sessionID); ok {
		return c.(*Cart)
	}
	c := NewCart(ctx, localstore.SessionNamespace(s.storage, sessionID))
	s.carts.Add(sessionID, c)
	return c
}

// LiveCarts returns the number of carts currently held in memory
func (s *Sessions) LiveCarts() int {
	return s.carts.Len()
}

// Admin returns the admin guard of a session
func (s *Sessions) Admin(sessionID string) *AdminGuard {
	return NewAdminGuard(localstore.SessionNamespace(s.storage, sessionID), s.creds)
}
