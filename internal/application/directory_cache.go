package application

import (
	"context"
	"sync"
	"time"
)

// directoryCache stores recently resolved users so repeated bookings for the same
// panel do not hit the directory on every request. Only positive lookups are kept.
type directoryCache struct {
	mu         sync.RWMutex
	now        func() time.Time
	ttl        time.Duration
	maxEntries int
	entries    map[string]directoryCacheEntry
}

type directoryCacheEntry struct {
	user      User
	expiresAt time.Time
}

func newDirectoryCache(ttl time.Duration, maxEntries int, now func() time.Time) *directoryCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if maxEntries <= 0 {
		maxEntries = 512
	}
	if now == nil {
		now = time.Now
	}
	return &directoryCache{
		now:        now,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]directoryCacheEntry),
	}
}

func (c *directoryCache) Get(id string) (User, bool) {
	if c == nil {
		return User{}, false
	}
	c.mu.RLock()
	entry, ok := c.entries[id]
	c.mu.RUnlock()
	if !ok {
		return User{}, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, id)
		c.mu.Unlock()
		return User{}, false
	}
	return entry.user, true
}

func (c *directoryCache) Store(users []User) {
	if c == nil || len(users) == 0 {
		return
	}
	expiry := c.now().Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleanupLocked()
	for _, u := range users {
		if len(c.entries) >= c.maxEntries {
			c.evictOneLocked()
		}
		c.entries[u.ID] = directoryCacheEntry{user: u, expiresAt: expiry}
	}
}

func (c *directoryCache) Invalidate() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries = make(map[string]directoryCacheEntry)
	c.mu.Unlock()
}

func (c *directoryCache) cleanupLocked() {
	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

func (c *directoryCache) evictOneLocked() {
	for key := range c.entries {
		delete(c.entries, key)
		return
	}
}

// CachedIdentityResolver wraps an IdentityResolver with a short-lived per-user cache.
// Role lookups are never cached.
type CachedIdentityResolver struct {
	inner IdentityResolver
	cache *directoryCache
}

// NewCachedIdentityResolver returns a resolver that consults inner only for ids it has not
// seen within ttl.
func NewCachedIdentityResolver(inner IdentityResolver, ttl time.Duration, maxEntries int, now func() time.Time) *CachedIdentityResolver {
	return &CachedIdentityResolver{inner: inner, cache: newDirectoryCache(ttl, maxEntries, now)}
}

// ResolveUsers returns the known users among ids. Unknown ids are simply absent.
func (r *CachedIdentityResolver) ResolveUsers(ctx context.Context, ids []string) ([]User, error) {
	users := make([]User, 0, len(ids))
	var misses []string
	for _, id := range ids {
		if u, ok := r.cache.Get(id); ok {
			users = append(users, u)
			continue
		}
		misses = append(misses, id)
	}
	if len(misses) == 0 || r.inner == nil {
		return users, nil
	}

	fetched, err := r.inner.ResolveUsers(ctx, misses)
	if err != nil {
		return nil, err
	}
	r.cache.Store(fetched)
	return append(users, fetched...), nil
}

// UsersByRole delegates to the wrapped resolver.
func (r *CachedIdentityResolver) UsersByRole(ctx context.Context, role string) ([]User, error) {
	if r.inner == nil {
		return nil, nil
	}
	return r.inner.UsersByRole(ctx, role)
}

// Invalidate drops every cached user, for example after a directory import.
func (r *CachedIdentityResolver) Invalidate() {
	r.cache.Invalidate()
}
