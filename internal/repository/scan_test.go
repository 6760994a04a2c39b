package repository

import (
	"context"
	"testing"

	"veristat/internal/models"
	"veristat/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanCreateBumpsCounter(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewScanRepository(db)
	statsRepo := NewStatsRepository(db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, &models.Scan{
			UserID:    "scanner",
			Result:    models.ScanResultAuthentic,
			MediaKind: models.MediaKindImage,
			RiskScore: 10,
		}))
	}

	stats, err := statsRepo.Get(ctx, "scanner")
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.ScanCount)

	count, err := repo.CountByUser(ctx, "scanner")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestScanListByUserNewestFirst(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewScanRepository(db)
	ctx := context.Background()

	first := &models.Scan{UserID: "u", Result: models.ScanResultAuthentic, MediaKind: models.MediaKindImage}
	require.NoError(t, repo.Create(ctx, first))
	second := &models.Scan{UserID: "u", Result: models.ScanResultFabricated, MediaKind: models.MediaKindVideo, RiskScore: 90}
	require.NoError(t, repo.Create(ctx, second))

	scans, err := repo.ListByUser(ctx, "u", 10, 0)
	require.NoError(t, err)
	require.Len(t, scans, 2)
	// Scoped to the requesting user only
	other, err := repo.ListByUser(ctx, "someone-else", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, other)
}
