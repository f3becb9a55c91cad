// Package localstore provides the durable key/value space the storefront
// keeps its cart, session marker and product fallback copies in.
package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Keys shared by the storefront components
const (
	KeyCart         = "figmist_cart"
	KeyProducts     = "figmist_products"
	KeyPagePrefix   = "figmist_products_page_"
	KeyAdminSession = "figmist_admin_session"
)

// ErrQuotaExceeded is returned when a write does not fit in the store
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// Storage is a string key/value store with localStorage semantics
type Storage interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// PageKey returns the cache key for a listing page
func PageKey(page int) string {
	return fmt.Sprintf("%s%d", KeyPagePrefix, page)
}

// GetJSON decodes the value stored under key into dest.
// found is false when the key is absent.
func GetJSON(ctx context.Context, s Storage, key string, dest interface{}) (bool, error) {
	raw, found, err := s.Get(ctx, key)
	if err != nil || !found {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes value and stores it under key
func SetJSON(ctx context.Context, s Storage, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, string(data))
}

// Namespaced scopes every key of the wrapped storage under a prefix
type Namespaced struct {
	base   Storage
	prefix string
}

// Namespace returns a view of s whose keys live under prefix
func Namespace(s Storage, prefix string) *Namespaced {
	return &Namespaced{base: s, prefix: prefix}
}

// SessionNamespace returns the per-session view used for cart and admin marker
func SessionNamespace(s Storage, sessionID string) *Namespaced {
	return Namespace(s, "session:"+sessionID+":")
}

func (n *Namespaced) Get(ctx context.Context, key string) (string, bool, error) {
	return n.base.Get(ctx, n.prefix+key)
}

func (n *Namespaced) Set(ctx context.Context, key, value string) error {
	return n.base.Set(ctx, n.prefix+key, value)
}

func (n *Namespaced) Remove(ctx context.Context, key string) error {
	return n.base.Remove(ctx, n.prefix+key)
}

func (n *Namespaced) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys, err := n.base.Keys(ctx, n.prefix+prefix)
	if err != nil {
		return nil, err
	}
	for i, k := range keys {
		keys[i] = strings.TrimPrefix(k, n.prefix)
	}
	return keys, nil
}
