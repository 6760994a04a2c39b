package repository

import (
	"context"

	"veristat/internal/models"

	"gorm.io/gorm"
)

// ScanRepository is the append-only event store for authenticity scans.
type ScanRepository interface {
	Create(ctx context.Context, scan *models.Scan) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Scan, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
}

// scanRepository implements ScanRepository
type scanRepository struct {
	db    *gorm.DB
	stats StatsRepository
}

// NewScanRepository creates a new scan repository
func NewScanRepository(db *gorm.DB) ScanRepository {
	return &scanRepository{db: db, stats: NewStatsRepository(db)}
}

// Create appends the scan and bumps the user's scan counter in the same
// transaction. Scans are never updated or deleted afterwards.
func (r *scanRepository) Create(ctx context.Context, scan *models.Scan) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(scan).Error; err != nil {
			return err
		}
		return r.stats.WithTx(tx).OnScanCreated(ctx, scan.UserID)
	})
}

func (r *scanRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Scan, error) {
	var scans []*models.Scan
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&scans).Error
	return scans, err
}

func (r *scanRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Scan{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}
