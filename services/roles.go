package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/CrowderSoup/microjobs/dashboard"
)

// RoleFetcher looks up the stored role name of a user with the user's own
// session token.
type RoleFetcher func(ctx context.Context, token, email string) (string, error)

// RoleCache resolves roles in the background. Until the first lookup for an
// email finishes, ResolveRole reports RoleLoading. Expired entries keep
// serving the old role while a refresh runs.
type RoleCache struct {
	mu      sync.Mutex
	entries map[string]*roleEntry
	fetch   RoleFetcher
	ttl     time.Duration
	timeout time.Duration
}

type roleEntry struct {
	role     dashboard.Role
	fetched  time.Time
	inflight bool
}

func NewRoleCache(fetch RoleFetcher, ttl, timeout time.Duration) *RoleCache {
	return &RoleCache{
		entries: make(map[string]*roleEntry),
		fetch:   fetch,
		ttl:     ttl,
		timeout: timeout,
	}
}

// ResolveRole implements dashboard.RoleResolver.
func (c *RoleCache) ResolveRole(ctx context.Context, email string) dashboard.Role {
	token := TokenFromContext(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[email]
	if !ok {
		e = &roleEntry{role: dashboard.RoleLoading}
		c.entries[email] = e
	}
	stale := e.fetched.IsZero() || time.Since(e.fetched) > c.ttl
	if stale && !e.inflight {
		e.inflight = true
		go c.refresh(token, email)
	}
	return e.role
}

func (c *RoleCache) refresh(token, email string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	name, err := c.fetch(ctx, token, email)

	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[email]
	if !ok {
		return
	}
	e.inflight = false
	if err != nil {
		log.Printf("Error resolving role for %s: %v", email, err)
		return
	}
	e.role = dashboard.ParseRole(name)
	e.fetched = time.Now()
}

// Invalidate forgets the cached role of email.
func (c *RoleCache) Invalidate(email string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, email)
}
