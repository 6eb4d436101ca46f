package results_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/magicfactory/internal/database"
	"github.com/aristath/magicfactory/internal/modules/distillation"
	"github.com/aristath/magicfactory/internal/modules/results"
	testutil "github.com/aristath/magicfactory/internal/testing"
)

func TestCache_GetPut(t *testing.T) {
	cache := results.NewCache(testutil.NewTestDB(t, database.CacheName))

	_, ok, err := cache.Get("k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Put("k", []byte{1, 2, 3}))
	v, ok, err := cache.Get("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, v)

	require.NoError(t, cache.Put("k", []byte{4}))
	v, _, err = cache.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte{4}, v)

	n, err := cache.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCache_Purge(t *testing.T) {
	cache := results.NewCache(testutil.NewTestDB(t, database.CacheName))
	require.NoError(t, cache.Put("a", []byte("x")))

	purged, err := cache.Purge(time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, purged)

	purged, err = cache.Purge(time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, purged)
}

func TestCache_BacksDistillationService(t *testing.T) {
	cache := results.NewCache(testutil.NewTestDB(t, database.CacheName))
	svc := distillation.NewService(64, cache, zerolog.New(nil).Level(zerolog.Disabled))
	p := distillation.Params{PPhys: 1e-3, DX: 5, DZ: 1, DM: 3}

	first, err := svc.Estimate(context.Background(), distillation.Compact15to1, p)
	require.NoError(t, err)
	n, err := cache.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	second, err := svc.Estimate(context.Background(), distillation.Compact15to1, p)
	require.NoError(t, err)
	assert.Equal(t, first.Factory, second.Factory)
	assert.Equal(t, first.Outcome, second.Outcome)
}
