package geocode

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Cache persists geocode results keyed by CacheKey. Implementations return
// found=false on a miss or when the entry is older than maxAge (0 = no limit).
type Cache interface {
	GetCachedGeocode(ctx context.Context, key string, maxAge time.Duration) (result *Result, found bool, err error)
	SetCachedGeocode(ctx context.Context, key string, result Result) error
}

// CacheKey returns the SHA-256 hex digest of the normalized address.
func CacheKey(addr AddressInput) string {
	norm := func(s string) string {
		return strings.ToLower(strings.Join(strings.Fields(s), " "))
	}
	h := sha256.Sum256([]byte(norm(addr.Street) + "|" + norm(addr.City) + "|" + norm(addr.State) + "|" + norm(addr.ZipCode)))
	return hex.EncodeToString(h[:])
}

// CachedClient wraps a Client with a read-through cache. Non-matches are
// cached too so unmatchable addresses are not re-queried; errors never are.
// Cache failures are logged and treated as misses.
type CachedClient struct {
	inner Client
	cache Cache
	ttl   time.Duration
}

// NewCachedClient wraps inner with cache. A ttl of 0 keeps entries forever.
func NewCachedClient(inner Client, cache Cache, ttl time.Duration) *CachedClient {
	return &CachedClient{inner: inner, cache: cache, ttl: ttl}
}

// Geocode returns a cached result when present, otherwise geocodes and
// stores the result.
func (c *CachedClient) Geocode(ctx context.Context, addr AddressInput) (*Result, error) {
	key := CacheKey(addr)
	if r, ok := c.lookup(ctx, key); ok {
		return r, nil
	}

	r, err := c.inner.Geocode(ctx, addr)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, *r)
	return r, nil
}

// BatchGeocode serves cached addresses from the cache and sends only the
// misses to the wrapped client.
func (c *CachedClient) BatchGeocode(ctx context.Context, addrs []AddressInput) ([]Result, error) {
	if len(addrs) == 0 {
		return nil, nil
	}

	results := make([]Result, len(addrs))
	keys := make([]string, len(addrs))
	var missIdx []int
	var misses []AddressInput
	for i, addr := range addrs {
		keys[i] = CacheKey(addr)
		if r, ok := c.lookup(ctx, keys[i]); ok {
			results[i] = *r
			continue
		}
		missIdx = append(missIdx, i)
		misses = append(misses, addr)
	}
	if len(misses) == 0 {
		return results, nil
	}

	fresh, err := c.inner.BatchGeocode(ctx, misses)
	if err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		if j >= len(fresh) {
			break
		}
		results[i] = fresh[j]
		c.store(ctx, keys[i], fresh[j])
	}
	return results, nil
}

func (c *CachedClient) lookup(ctx context.Context, key string) (*Result, bool) {
	r, found, err := c.cache.GetCachedGeocode(ctx, key, c.ttl)
	if err != nil {
		zap.L().Warn("geocode: cache lookup failed", zap.String("key", key[:12]), zap.Error(err))
		return nil, false
	}
	if !found || r == nil {
		return nil, false
	}
	zap.L().Debug("geocode: cache hit", zap.String("key", key[:12]), zap.Bool("matched", r.Matched))
	return r, true
}

func (c *CachedClient) store(ctx context.Context, key string, r Result) {
	if err := c.cache.SetCachedGeocode(ctx, key, r); err != nil {
		zap.L().Warn("geocode: cache store failed", zap.String("key", key[:12]), zap.Error(err))
	}
}
var _ Client = (*CachedClient)(nil)
