package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"app/internal/model"
	"app/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPreviewService(repo *fakePreviewRepo, creditRepo *fakeCreditRepo, cap int, now time.Time) *previewService {
	svc := NewPreviewService(repo, creditRepo, cap, testLogger()).(*previewService)
	svc.now = func() time.Time { return now }
	return svc
}

func TestPreviewServiceRecord(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)

	t.Run("GrantsFirstPreview", func(t *testing.T) {
		repo := &fakePreviewRepo{}
		creditRepo := newFakeCreditRepo()
		svc := newTestPreviewService(repo, creditRepo, 75, now)

		require.NoError(t, svc.Record(ctx, "1.2.3.4", "62 Gate Ln, Nettie, WV", "fp-1"))

		usage, err := svc.HasUsed(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, usage.Used)
		assert.Equal(t, 1, usage.Count)
	})

	t.Run("SecondPreviewSameNetworkFails", func(t *testing.T) {
		repo := &fakePreviewRepo{}
		svc := newTestPreviewService(repo, newFakeCreditRepo(), 75, now)

		require.NoError(t, svc.Record(ctx, "1.2.3.4", "addr one", "fp-1"))
		err := svc.Record(ctx, "1.2.3.4", "addr two", "fp-2")
		assert.ErrorIs(t, err, repository.ErrAlreadyUsed)
	})

	t.Run("DailyCapBoundary", func(t *testing.T) {
		repo := &fakePreviewRepo{}
		svc := newTestPreviewService(repo, newFakeCreditRepo(), 75, now)
		for i := 0; i < 74; i++ {
			require.NoError(t, svc.Record(ctx, fmt.Sprintf("10.0.0.%d", i), "some addr", ""))
		}

		// Request 75 of the day is admitted, request 76 is not.
		require.NoError(t, svc.Record(ctx, "10.0.1.1", "some addr", ""))
		err := svc.Record(ctx, "10.0.1.2", "some addr", "")
		assert.ErrorIs(t, err, repository.ErrDailyCapReached)
	})

	t.Run("AlreadyUsedWinsOverDailyCap", func(t *testing.T) {
		repo := &fakePreviewRepo{}
		svc := newTestPreviewService(repo, newFakeCreditRepo(), 2, now)
		require.NoError(t, svc.Record(ctx, "1.2.3.4", "addr", ""))
		require.NoError(t, svc.Record(ctx, "5.6.7.8", "addr", ""))

		err := svc.Record(ctx, "1.2.3.4", "addr", "")
		assert.ErrorIs(t, err, repository.ErrAlreadyUsed)
	})

	t.Run("AuditFailureDoesNotRevokeGrant", func(t *testing.T) {
		repo := &fakePreviewRepo{}
		creditRepo := newFakeCreditRepo()
		creditRepo.auditErr = errors.New("audit table unavailable")
		svc := newTestPreviewService(repo, creditRepo, 75, now)

		require.NoError(t, svc.Record(ctx, "1.2.3.4", "addr", ""))
		usage, err := svc.HasUsed(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, usage.Used)
	})

	t.Run("RecordsAuditRow", func(t *testing.T) {
		repo := &fakePreviewRepo{}
		creditRepo := newFakeCreditRepo()
		svc := newTestPreviewService(repo, creditRepo, 75, now)

		require.NoError(t, svc.Record(ctx, "1.2.3.4", "62 Gate Ln", "fp-1"))
		require.Len(t, creditRepo.txs, 1)
		assert.Equal(t, model.CreditActionFreePreview, creditRepo.txs[0].Action)
		assert.Equal(t, "1.2.3.4", creditRepo.txs[0].SourceIdentifier)
	})
}

func TestPreviewServiceDailyCount(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)
	repo := &fakePreviewRepo{records: []model.FreePreviewRecord{
		{NetworkID: "a", UsedAt: now.Add(-time.Hour)},
		{NetworkID: "b", UsedAt: now.Add(-2 * time.Hour)},
		{NetworkID: "c", UsedAt: now.Add(-30 * time.Hour)}, // yesterday
	}}
	svc := newTestPreviewService(repo, newFakeCreditRepo(), 75, now)

	count, err := svc.DailyCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count, "only today's UTC records count")
}

func TestUTCDayBounds(t *testing.T) {
	// 23:30 UTC-5 is already the next day in UTC; bounds must follow UTC.
	loc := time.FixedZone("EST", -5*3600)
	now := time.Date(2025, 6, 10, 23, 30, 0, 0, loc)

	start, end := utcDayBounds(now)
	assert.Equal(t, time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 6, 12, 0, 0, 0, 0, time.UTC), end)
}
