package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medconnect-service/internal/cache"
)

func TestMemoryCacheJSON(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := cache.NewMemoryCache()

	var got map[string]int
	hit, err := c.GetJSON(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.SetJSON(ctx, "k", map[string]int{"a": 1}, time.Minute))
	hit, err = c.GetJSON(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, map[string]int{"a": 1}, got)
}

func TestMemoryCacheExpiry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := cache.NewMemoryCache()

	require.NoError(t, c.SetJSON(ctx, "short", 1, 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	var v int
	hit, err := c.GetJSON(ctx, "short", &v)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestMemoryCacheFirstTime(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := cache.NewMemoryCache()

	first, err := c.FirstTime(ctx, "limit:u1:2025-03", time.Hour)
	require.NoError(t, err)
	assert.True(t, first)

	first, err = c.FirstTime(ctx, "limit:u1:2025-03", time.Hour)
	require.NoError(t, err)
	assert.False(t, first)
}
