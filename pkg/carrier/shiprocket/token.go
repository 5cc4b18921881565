package shiprocket

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	defaultTokenTTL      = 240 * time.Hour
	defaultRefreshMargin = 10 * time.Minute
	tokenKey             = "token"
)

// LoginFunc fetches a fresh bearer token.
type LoginFunc func(ctx context.Context) (string, error)

// TokenCacheConfig holds token cache configuration.
type TokenCacheConfig struct {
	TTL           time.Duration    // Lifetime of a freshly issued token
	RefreshMargin time.Duration    // Refresh this long before the token expires
	Now           func() time.Time // Clock, time.Now when nil
}

// TokenCache holds the process-wide bearer token. Concurrent callers that
// find it missing or stale share a single in-flight login.
type TokenCache struct {
	login  LoginFunc
	ttl    time.Duration
	margin time.Duration
	now    func() time.Time

	mu      sync.RWMutex
	token   string
	expires time.Time

	group singleflight.Group
}

// NewTokenCache creates a token cache that logs in with login.
func NewTokenCache(login LoginFunc, cfg TokenCacheConfig) *TokenCache {
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = defaultTokenTTL
	}

	margin := cfg.RefreshMargin
	if margin == 0 {
		margin = defaultRefreshMargin
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &TokenCache{
		login:  login,
		ttl:    ttl,
		margin: margin,
		now:    now,
	}
}

// Token returns a valid bearer token, logging in when the cached one is
// absent or inside its refresh margin.
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	if tok, ok := c.cached(); ok {
		return tok, nil
	}

	// Login is detached from the cancellation of any single waiter.
	ch := c.group.DoChan(tokenKey, func() (interface{}, error) {
		if tok, ok := c.cached(); ok {
			return tok, nil
		}

		issuedAt := c.now()
		tok, err := c.login(context.WithoutCancel(ctx))
		if err != nil {
			return "", err
		}

		c.mu.Lock()
		c.token = tok
		c.expires = issuedAt.Add(c.ttl)
		c.mu.Unlock()

		return tok, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// ExpiresAt returns the expiry of the cached token, zero if there is none.
func (c *TokenCache) ExpiresAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.expires
}

func (c *TokenCache) cached() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.token == "" {
		return "", false
	}
	if !c.now().Before(c.expires.Add(-c.margin)) {
		return "", false
	}
	return c.token, true
}
