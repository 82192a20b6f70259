package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"app/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCacheService(repo *fakePropertyRepo, now time.Time) *propertyCacheService {
	svc := NewPropertyCacheService(repo, testLogger()).(*propertyCacheService)
	svc.now = func() time.Time { return now }
	return svc
}

func TestPropertyCacheService(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)
	payload := &model.MarketData{Source: "mashvisor", AnnualRevenue: 42000}

	t.Run("PutThenGet", func(t *testing.T) {
		repo := newFakePropertyRepo()
		svc := newTestCacheService(repo, now)

		require.NoError(t, svc.Put(ctx, "62 gate ln nettie wv", payload, time.Hour))
		entry, ok := svc.Get(ctx, "62 gate ln nettie wv")
		require.True(t, ok)
		assert.Equal(t, 42000.0, entry.Payload.AnnualRevenue)
		assert.Equal(t, now.Add(time.Hour), entry.ExpiresAt)
	})

	t.Run("MissOnAbsentKey", func(t *testing.T) {
		svc := newTestCacheService(newFakePropertyRepo(), now)
		_, ok := svc.Get(ctx, "nothing here")
		assert.False(t, ok)
	})

	t.Run("ExpiredRowBehavesAsAbsent", func(t *testing.T) {
		repo := newFakePropertyRepo()
		svc := newTestCacheService(repo, now)
		require.NoError(t, svc.Put(ctx, "key", payload, time.Hour))

		// Advance past expiry without any sweep running: the row is
		// physically present but must read as a miss.
		svc.now = func() time.Time { return now.Add(2 * time.Hour) }
		stored, err := repo.Get(ctx, "key")
		require.NoError(t, err)
		require.NotNil(t, stored)

		_, ok := svc.Get(ctx, "key")
		assert.False(t, ok)
	})

	t.Run("ExactExpiryIsExpired", func(t *testing.T) {
		repo := newFakePropertyRepo()
		svc := newTestCacheService(repo, now)
		require.NoError(t, svc.Put(ctx, "key", payload, time.Hour))

		svc.now = func() time.Time { return now.Add(time.Hour) }
		_, ok := svc.Get(ctx, "key")
		assert.False(t, ok)
	})

	t.Run("PutOverwrites", func(t *testing.T) {
		repo := newFakePropertyRepo()
		svc := newTestCacheService(repo, now)
		require.NoError(t, svc.Put(ctx, "key", &model.MarketData{AnnualRevenue: 1}, time.Hour))
		require.NoError(t, svc.Put(ctx, "key", &model.MarketData{AnnualRevenue: 2}, time.Hour))

		entry, ok := svc.Get(ctx, "key")
		require.True(t, ok)
		assert.Equal(t, 2.0, entry.Payload.AnnualRevenue)
	})

	t.Run("RepoErrorIsMiss", func(t *testing.T) {
		repo := newFakePropertyRepo()
		repo.getErr = errors.New("connection refused")
		svc := newTestCacheService(repo, now)

		_, ok := svc.Get(ctx, "key")
		assert.False(t, ok)
	})
}
