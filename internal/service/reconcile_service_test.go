package service

import (
	"context"
	"testing"

	"veristat/internal/cache"
	"veristat/internal/models"
	"veristat/internal/repository"
	"veristat/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestReconciler(t *testing.T) (*ReconcileService, *EngagementService, *gorm.DB) {
	t.Helper()
	db := testutil.NewTestDB(t)
	statsRepo := repository.NewStatsRepository(db)
	scanRepo := repository.NewScanRepository(db)
	svc := NewEngagementService(
		repository.NewPostRepository(db),
		repository.NewCommentRepository(db),
		scanRepo,
		statsRepo,
		testConfig(),
	)
	return NewReconcileService(db, statsRepo, scanRepo), svc, db
}

func TestRecalculateRepairsCorruptedCounters(t *testing.T) {
	reconciler, svc, db := newTestReconciler(t)
	ctx := context.Background()

	post, err := svc.CreatePost(ctx, CreatePostInput{AuthorID: "alice", Content: "post"})
	require.NoError(t, err)
	_, err = svc.ToggleLike(ctx, ToggleLikeInput{PostID: post.ID, UserID: "bob"})
	require.NoError(t, err)
	_, err = svc.SubmitScan(ctx, SubmitScanInput{UserID: "alice", Result: models.ScanResultAuthentic, MediaKind: models.MediaKindImage})
	require.NoError(t, err)

	// Corrupt the projection behind the service's back
	require.NoError(t, db.Model(&models.UserStats{}).
		Where("user_id = ?", "alice").
		Updates(map[string]interface{}{"post_count": 40, "scan_count": 0, "total_likes_received": 99}).Error)

	repaired, err := reconciler.Recalculate(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), repaired.PostCount)
	assert.Equal(t, int64(1), repaired.ScanCount)
	assert.Equal(t, int64(1), repaired.TotalLikesReceived)

	stored, err := repository.NewStatsRepository(db).Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, repaired.PostCount, stored.PostCount)
	assert.Equal(t, repaired.TotalLikesReceived, stored.TotalLikesReceived)
}

func TestRecalculateIsIdempotent(t *testing.T) {
	reconciler, svc, _ := newTestReconciler(t)
	ctx := context.Background()

	_, err := svc.CreatePost(ctx, CreatePostInput{AuthorID: "alice", Content: "post"})
	require.NoError(t, err)

	first, err := reconciler.Recalculate(ctx, "alice")
	require.NoError(t, err)
	second, err := reconciler.Recalculate(ctx, "alice")
	require.NoError(t, err)

	assert.Equal(t, first.PostCount, second.PostCount)
	assert.Equal(t, first.ScanCount, second.ScanCount)
	assert.Equal(t, first.TotalLikesReceived, second.TotalLikesReceived)
}

func TestRecalculateUnknownUserYieldsZeroRow(t *testing.T) {
	reconciler, _, _ := newTestReconciler(t)

	stats, err := reconciler.Recalculate(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Zero(t, stats.PostCount)
	assert.Zero(t, stats.ScanCount)
	assert.Zero(t, stats.TotalLikesReceived)
}

func TestRecalculateAllCoversEveryKnownUser(t *testing.T) {
	reconciler, svc, db := newTestReconciler(t)
	ctx := context.Background()

	_, err := svc.CreatePost(ctx, CreatePostInput{AuthorID: "alice", Content: "a"})
	require.NoError(t, err)
	_, err = svc.SubmitScan(ctx, SubmitScanInput{UserID: "bob", Result: models.ScanResultSuspect, MediaKind: models.MediaKindAudio, RiskScore: 50})
	require.NoError(t, err)

	// Corrupt both projections
	require.NoError(t, db.Model(&models.UserStats{}).
		Where("1 = 1").
		Update("post_count", 1000).Error)

	processed, err := reconciler.RecalculateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, processed)

	statsRepo := repository.NewStatsRepository(db)
	alice, err := statsRepo.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), alice.PostCount)
	bob, err := statsRepo.Get(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(0), bob.PostCount)
	assert.Equal(t, int64(1), bob.ScanCount)
}

func TestDrainPendingScansReplaysParkedEvents(t *testing.T) {
	testutil.NewTestRedis(t)
	reconciler, _, db := newTestReconciler(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, cache.EnqueuePendingScan(ctx, pendingScan{
			UserID:    "scanner",
			Result:    models.ScanResultAuthentic,
			MediaKind: models.MediaKindImage,
			RiskScore: 5,
		}))
	}

	replayed, err := reconciler.DrainPendingScans(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, replayed)

	var count int64
	require.NoError(t, db.Model(&models.Scan{}).Where("user_id = ?", "scanner").Count(&count).Error)
	assert.Equal(t, int64(3), count)

	stats, err := repository.NewStatsRepository(db).Get(ctx, "scanner")
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.ScanCount)

	// Queue is empty afterwards; a second drain is a no-op
	replayed, err = reconciler.DrainPendingScans(ctx)
	require.NoError(t, err)
	assert.Zero(t, replayed)
}

func TestDrainPendingScansRejectsCorruptPayload(t *testing.T) {
	testutil.NewTestRedis(t)
	reconciler, _, _ := newTestReconciler(t)
	ctx := context.Background()

	require.NoError(t, cache.EnqueuePendingScan(ctx, pendingScan{
		UserID:    "scanner",
		Result:    "garbled",
		MediaKind: models.MediaKindImage,
	}))

	_, err := reconciler.DrainPendingScans(ctx)
	assertAppErrorCode(t, err, models.CodeConsistency)
}

func TestDrainPendingScansWithoutRedisIsNoOp(t *testing.T) {
	reconciler, _, _ := newTestReconciler(t)

	cache.SetClient(nil)
	t.Cleanup(func() { cache.SetClient(nil) })

	replayed, err := reconciler.DrainPendingScans(context.Background())
	require.NoError(t, err)
	assert.Zero(t, replayed)
}
