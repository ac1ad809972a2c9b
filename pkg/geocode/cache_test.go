package geocode_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/middle-housing/pkg/geocode"
	"github.com/sells-group/middle-housing/pkg/geocode/mocks"
)

type memCache struct {
	mu      sync.Mutex
	entries map[string]geocode.Result
	getErr  error
	setErr  error
	maxAges []time.Duration
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]geocode.Result)}
}

func (c *memCache) GetCachedGeocode(_ context.Context, key string, maxAge time.Duration) (*geocode.Result, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxAges = append(c.maxAges, maxAge)
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	r, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	return &r, true, nil
}

func (c *memCache) SetCachedGeocode(_ context.Context, key string, r geocode.Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.entries[key] = r
	return nil
}

var (
	addrA = geocode.AddressInput{Street: "1 Main St", City: "Seattle", State: "WA"}
	addrB = geocode.AddressInput{Street: "2 Pine St", City: "Seattle", State: "WA"}
	hitA  = geocode.Result{Latitude: 47.6, Longitude: -122.3, Source: "census", Quality: "rooftop", Matched: true}
	hitB  = geocode.Result{Latitude: 47.7, Longitude: -122.4, Source: "census", Quality: "range", Matched: true}
)

func TestCacheKey(t *testing.T) {
	k1 := geocode.CacheKey(addrA)
	k2 := geocode.CacheKey(geocode.AddressInput{Street: "1  MAIN st ", City: "seattle", State: "wa"})
	assert.Equal(t, k1, k2)
	assert.Len(t, k1, 64)
	assert.NotEqual(t, k1, geocode.CacheKey(addrB))
	// IDs do not participate in the key.
	withID := addrA
	withID.ID = "42"
	assert.Equal(t, k1, geocode.CacheKey(withID))
}

func TestCachedClient_Geocode_ReadThrough(t *testing.T) {
	inner := mocks.NewMockClient(t)
	inner.On("Geocode", mock.Anything, addrA).Return(&hitA, nil).Once()

	cache := newMemCache()
	c := geocode.NewCachedClient(inner, cache, 24*time.Hour)

	first, err := c.Geocode(context.Background(), addrA)
	require.NoError(t, err)
	assert.Equal(t, hitA, *first)

	second, err := c.Geocode(context.Background(), addrA)
	require.NoError(t, err)
	assert.Equal(t, hitA, *second)
	assert.Equal(t, []time.Duration{24 * time.Hour, 24 * time.Hour}, cache.maxAges)
}

func TestCachedClient_Geocode_CachesMisses(t *testing.T) {
	inner := mocks.NewMockClient(t)
	inner.On("Geocode", mock.Anything, addrA).Return(&geocode.Result{Matched: false}, nil).Once()

	c := geocode.NewCachedClient(inner, newMemCache(), 0)
	for range 3 {
		res, err := c.Geocode(context.Background(), addrA)
		require.NoError(t, err)
		assert.False(t, res.Matched)
	}
}

func TestCachedClient_Geocode_ErrorsNotCached(t *testing.T) {
	inner := mocks.NewMockClient(t)
	inner.On("Geocode", mock.Anything, addrA).Return(nil, errors.New("boom")).Once()
	inner.On("Geocode", mock.Anything, addrA).Return(&hitA, nil).Once()

	cache := newMemCache()
	c := geocode.NewCachedClient(inner, cache, 0)

	_, err := c.Geocode(context.Background(), addrA)
	require.Error(t, err)
	assert.Empty(t, cache.entries)

	res, err := c.Geocode(context.Background(), addrA)
	require.NoError(t, err)
	assert.True(t, res.Matched)
}

func TestCachedClient_CacheFailuresIgnored(t *testing.T) {
	inner := mocks.NewMockClient(t)
	inner.On("Geocode", mock.Anything, addrA).Return(&hitA, nil).Twice()

	cache := newMemCache()
	cache.getErr = errors.New("db down")
	cache.setErr = errors.New("db down")
	c := geocode.NewCachedClient(inner, cache, 0)

	for range 2 {
		res, err := c.Geocode(context.Background(), addrA)
		require.NoError(t, err)
		assert.True(t, res.Matched)
	}
}

func TestCachedClient_BatchGeocode_OnlyMisses(t *testing.T) {
	cache := newMemCache()
	cache.entries[geocode.CacheKey(addrA)] = hitA

	inner := mocks.NewMockClient(t)
	inner.On("BatchGeocode", mock.Anything, []geocode.AddressInput{addrB}).
		Return([]geocode.Result{hitB}, nil).Once()

	c := geocode.NewCachedClient(inner, cache, 0)
	results, err := c.BatchGeocode(context.Background(), []geocode.AddressInput{addrA, addrB})
	require.NoError(t, err)
	assert.Equal(t, []geocode.Result{hitA, hitB}, results)
	assert.Equal(t, hitB, cache.entries[geocode.CacheKey(addrB)])
}

func TestCachedClient_BatchGeocode_AllCached(t *testing.T) {
	cache := newMemCache()
	cache.entries[geocode.CacheKey(addrA)] = hitA
	cache.entries[geocode.CacheKey(addrB)] = hitB

	inner := mocks.NewMockClient(t)
	c := geocode.NewCachedClient(inner, cache, 0)

	results, err := c.BatchGeocode(context.Background(), []geocode.AddressInput{addrB, addrA})
	require.NoError(t, err)
	assert.Equal(t, []geocode.Result{hitB, hitA}, results)
	inner.AssertNotCalled(t, "BatchGeocode", mock.Anything, mock.Anything)
}

func TestCachedClient_BatchGeocode_InnerError(t *testing.T) {
	inner := mocks.NewMockClient(t)
	inner.On("BatchGeocode", mock.Anything, mock.Anything).Return(nil, errors.New("census down")).Once()

	c := geocode.NewCachedClient(inner, newMemCache(), 0)
	_, err := c.BatchGeocode(context.Background(), []geocode.AddressInput{addrA})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "census down")
}

func TestCachedClient_BatchGeocode_Empty(t *testing.T) {
	c := geocode.NewCachedClient(mocks.NewMockClient(t), newMemCache(), 0)
	results, err := c.BatchGeocode(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, results)
}
