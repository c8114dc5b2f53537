package memcache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOperationalSystemCache() (*SystemCache, *fakeBroker) {
	fb := newFakeBroker()
	sc := NewSystemCache(fb)
	sc.OnConnectionRecovered(fb.Identifier())
	return sc, fb
}

func TestSystemCacheOperationsFailFastWhileDisconnected(t *testing.T) {
	fb := newFakeBroker()
	sc := NewSystemCache(fb)
	ctx := context.Background()

	assert.Error(t, sc.Set(ctx, "k", "v"))
	assert.Error(t, sc.Get(ctx, "k", new(string)))
	assert.Error(t, sc.Delete(ctx, "k"))
	assert.Error(t, sc.SetHash(ctx, "h", "f", "v"))
	assert.Error(t, sc.AddToSet(ctx, "s", "m"))
	_, err := sc.IsMember(ctx, "s", "m")
	assert.Error(t, err)
}

func TestSystemCacheSetAndGetRoundTrips(t *testing.T) {
	sc, _ := newOperationalSystemCache()
	ctx := context.Background()

	require.NoError(t, sc.Set(ctx, "order:1", map[string]any{"total": float64(42)}))

	var got map[string]any
	require.NoError(t, sc.Get(ctx, "order:1", &got))
	assert.Equal(t, map[string]any{"total": float64(42)}, got)
}

func TestSystemCacheGetReturnsNotFoundForAMissingKey(t *testing.T) {
	sc, _ := newOperationalSystemCache()
	err := sc.Get(context.Background(), "missing", new(string))
	assert.Error(t, err)
}

func TestSystemCacheDeleteRemovesTheKey(t *testing.T) {
	sc, _ := newOperationalSystemCache()
	ctx := context.Background()

	require.NoError(t, sc.Set(ctx, "k", "v"))
	require.NoError(t, sc.Delete(ctx, "k"))
	assert.Error(t, sc.Get(ctx, "k", new(string)))
}

func TestSystemCacheHashSetAndGetRoundTrips(t *testing.T) {
	sc, _ := newOperationalSystemCache()
	ctx := context.Background()

	require.NoError(t, sc.SetHash(ctx, "customer:1", "email", "a@example.com"))

	var email string
	require.NoError(t, sc.GetHash(ctx, "customer:1", "email", &email))
	assert.Equal(t, "a@example.com", email)
}

func TestSystemCacheGetHashReturnsNotFoundForAMissingField(t *testing.T) {
	sc, _ := newOperationalSystemCache()
	err := sc.GetHash(context.Background(), "customer:1", "missing", new(string))
	assert.Error(t, err)
}

func TestSystemCacheAddToSetAndIsMember(t *testing.T) {
	sc, _ := newOperationalSystemCache()
	ctx := context.Background()

	require.NoError(t, sc.AddToSet(ctx, "tags", "urgent", "vip"))

	isMember, err := sc.IsMember(ctx, "tags", "urgent")
	require.NoError(t, err)
	assert.True(t, isMember)

	isMember, err = sc.IsMember(ctx, "tags", "unknown")
	require.NoError(t, err)
	assert.False(t, isMember)
}

func TestSystemCacheSetJSONFallsBackToPlainSetWithoutJSONSupport(t *testing.T) {
	sc, fb := newOperationalSystemCache()
	fb.jsonSupported = false
	ctx := context.Background()

	require.NoError(t, sc.SetJSON(ctx, "doc:1", map[string]any{"n": float64(1)}))

	var got map[string]any
	require.NoError(t, sc.GetJSON(ctx, "doc:1", &got))
	assert.Equal(t, map[string]any{"n": float64(1)}, got)
}

func TestSystemCacheSetJSONUsesTheJSONCommandWhenSupported(t *testing.T) {
	sc, fb := newOperationalSystemCache()
	fb.mu.Lock()
	fb.jsonSupported = true
	fb.mu.Unlock()
	ctx := context.Background()

	require.NoError(t, sc.SetJSON(ctx, "doc:2", map[string]any{"ok": true}))

	var got map[string]any
	require.NoError(t, sc.GetJSON(ctx, "doc:2", &got))
	assert.Equal(t, map[string]any{"ok": true}, got)
}

func TestSystemCacheBecomesUnavailableOnceDisconnected(t *testing.T) {
	sc, fb := newOperationalSystemCache()
	ctx := context.Background()

	sc.OnConnectionDisrupted(fb.Identifier())
	assert.Error(t, sc.Set(ctx, "k", "v"))

	sc.OnConnectionRecovered(fb.Identifier())
	require.NoError(t, sc.Set(ctx, "k", "v"))

	sc.OnConnectionLost(fb.Identifier())
	assert.Error(t, sc.Set(ctx, "k", "v"))
}
