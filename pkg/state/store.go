// Package state provides session-scoped key-value storage for wizard
// snapshots. It supports an in-memory backend (default) and SQLite.
package state

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Common store errors.
var (
	ErrKeyNotFound = errors.New("key not found")
	ErrStoreClosed = errors.New("store is closed")
	ErrInvalidKey  = errors.New("invalid key")
)

// Store is the interface for storage backends.
type Store interface {
	// Get retrieves a value by key.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with optional TTL. A zero TTL never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists checks if a key exists.
	Exists(ctx context.Context, key string) (bool, error)

	// Keys returns all keys matching a glob pattern (* matches any sequence).
	Keys(ctx context.Context, pattern string) ([]string, error)

	// Close closes the store.
	Close() error
}

// Scope restricts a Store to keys under a prefix and applies a default TTL
// to every write. Session caches use one Scope per session.
type Scope struct {
	store  Store
	prefix string
	ttl    time.Duration
}

// ScopeOption configures a Scope.
type ScopeOption func(*Scope)

// WithTTL sets the TTL applied to writes.
func WithTTL(ttl time.Duration) ScopeOption {
	return func(s *Scope) {
		s.ttl = ttl
	}
}

// NewScope creates a scope over store. Keys are stored as prefix+key.
func NewScope(store Store, prefix string, opts ...ScopeOption) *Scope {
	s := &Scope{store: store, prefix: prefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Prefix returns the key prefix.
func (s *Scope) Prefix() string {
	return s.prefix
}

// Get retrieves a value.
func (s *Scope) Get(ctx context.Context, key string) ([]byte, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, s.prefix+key)
}

// GetString retrieves a value as a string.
func (s *Scope) GetString(ctx context.Context, key string) (string, error) {
	b, err := s.Get(ctx, key)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Set stores a value with the scope TTL.
func (s *Scope) Set(ctx context.Context, key string, value []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	return s.store.Set(ctx, s.prefix+key, value, s.ttl)
}

// SetString stores a string value.
func (s *Scope) SetString(ctx context.Context, key, value string) error {
	return s.Set(ctx, key, []byte(value))
}

// Delete removes keys from the scope.
func (s *Scope) Delete(ctx context.Context, keys ...string) error {
	var errs []error
	for _, key := range keys {
		if err := checkKey(key); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := s.store.Delete(ctx, s.prefix+key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Keys lists the scope's keys with the prefix removed.
func (s *Scope) Keys(ctx context.Context) ([]string, error) {
	keys, err := s.store.Keys(ctx, escapeGlob(s.prefix)+"*")
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, strings.TrimPrefix(k, s.prefix))
	}
	return out, nil
}

func checkKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	return nil
}

// escapeGlob escapes glob metacharacters so a prefix matches literally.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
