package shiprocket_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/fulfillment/pkg/carrier"
	"github.com/tournevent/fulfillment/pkg/carrier/shiprocket"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestTokenCache_RefreshesInsideMargin(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	var logins atomic.Int32
	cache := shiprocket.NewTokenCache(func(ctx context.Context) (string, error) {
		n := logins.Add(1)
		return "token-" + string(rune('0'+n)), nil
	}, shiprocket.TokenCacheConfig{
		TTL:           60 * time.Minute,
		RefreshMargin: 10 * time.Minute,
		Now:           clock.Now,
	})

	ctx := context.Background()
	tok, err := cache.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "token-1", tok)

	clock.Advance(49 * time.Minute)
	tok, err = cache.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "token-1", tok)
	assert.Equal(t, int32(1), logins.Load())

	clock.Advance(1 * time.Minute)
	tok, err = cache.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "token-2", tok)
	assert.Equal(t, int32(2), logins.Load())
}

func TestTokenCache_ConcurrentCallersShareOneLogin(t *testing.T) {
	var logins atomic.Int32
	release := make(chan struct{})
	cache := shiprocket.NewTokenCache(func(ctx context.Context) (string, error) {
		logins.Add(1)
		<-release
		return "shared", nil
	}, shiprocket.TokenCacheConfig{})

	const callers = 20
	var wg sync.WaitGroup
	results := make([]string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := cache.Token(context.Background())
			assert.NoError(t, err)
			results[i] = tok
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), logins.Load())
	for _, r := range results {
		assert.Equal(t, "shared", r)
	}
}

func TestTokenCache_LoginFailure(t *testing.T) {
	cache := shiprocket.NewTokenCache(func(ctx context.Context) (string, error) {
		return "", carrier.NewAuthError("shiprocket", "Invalid email and password combination", nil)
	}, shiprocket.TokenCacheConfig{})

	_, err := cache.Token(context.Background())
	require.Error(t, err)
	assert.True(t, carrier.IsAuthError(err))
	assert.Contains(t, err.Error(), "Invalid email and password combination")
	assert.True(t, cache.ExpiresAt().IsZero())
}

func TestTokenCache_WaiterCancellation(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	cache := shiprocket.NewTokenCache(func(ctx context.Context) (string, error) {
		<-release
		return "late", nil
	}, shiprocket.TokenCacheConfig{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := cache.Token(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
