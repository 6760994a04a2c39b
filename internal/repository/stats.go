package repository

import (
	"context"
	"errors"
	"time"

	"veristat/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StatsRepository houses the UserStats counter projection. All mutation
// operations are single-statement commutative increments resolved in SQL,
// never read-modify-write at the caller, so concurrent events on the same
// user's row cannot lose updates. Decrements floor at zero.
type StatsRepository interface {
	OnPostCreated(ctx context.Context, authorID string) error
	OnPostDeleted(ctx context.Context, authorID string, likesLost int64) error
	OnScanCreated(ctx context.Context, userID string) error
	OnLikeDelta(ctx context.Context, authorID string, delta int64) error
	Get(ctx context.Context, userID string) (*models.UserStats, error)
	GetForUpdate(ctx context.Context, userID string) (*models.UserStats, error)
	Overwrite(ctx context.Context, stats *models.UserStats) error
	ListKnownUserIDs(ctx context.Context) ([]string, error)
	WithTx(tx *gorm.DB) StatsRepository
}

type statsRepository struct {
	db *gorm.DB
}

// NewStatsRepository creates a new stats repository
func NewStatsRepository(db *gorm.DB) StatsRepository {
	return &statsRepository{db: db}
}

// WithTx returns a repository bound to the given transaction handle so
// projection updates commit in the same atomic unit as event-store writes.
func (r *statsRepository) WithTx(tx *gorm.DB) StatsRepository {
	return &statsRepository{db: tx}
}

var conflictOnUserID = clause.OnConflict{
	Columns: []clause.Column{{Name: "user_id"}},
}

func (r *statsRepository) OnPostCreated(ctx context.Context, authorID string) error {
	now := time.Now()
	conflict := conflictOnUserID
	conflict.DoUpdates = clause.Assignments(map[string]interface{}{
		"post_count": gorm.Expr("post_count + 1"),
		"updated_at": now,
	})
	return r.db.WithContext(ctx).Clauses(conflict).Create(&models.UserStats{
		UserID:    authorID,
		PostCount: 1,
		UpdatedAt: now,
	}).Error
}

func (r *statsRepository) OnPostDeleted(ctx context.Context, authorID string, likesLost int64) error {
	now := time.Now()
	conflict := conflictOnUserID
	conflict.DoUpdates = clause.Assignments(map[string]interface{}{
		"post_count":           gorm.Expr("CASE WHEN post_count < 1 THEN 0 ELSE post_count - 1 END"),
		"total_likes_received": gorm.Expr("CASE WHEN total_likes_received < ? THEN 0 ELSE total_likes_received - ? END", likesLost, likesLost),
		"updated_at":           now,
	})
	// The inserted branch only fires when the row was never created, in
	// which case the floored result of a decrement is all zeros anyway.
	return r.db.WithContext(ctx).Clauses(conflict).Create(&models.UserStats{
		UserID:    authorID,
		UpdatedAt: now,
	}).Error
}

func (r *statsRepository) OnScanCreated(ctx context.Context, userID string) error {
	now := time.Now()
	conflict := conflictOnUserID
	conflict.DoUpdates = clause.Assignments(map[string]interface{}{
		"scan_count": gorm.Expr("scan_count + 1"),
		"updated_at": now,
	})
	return r.db.WithContext(ctx).Clauses(conflict).Create(&models.UserStats{
		UserID:    userID,
		ScanCount: 1,
		UpdatedAt: now,
	}).Error
}

func (r *statsRepository) OnLikeDelta(ctx context.Context, authorID string, delta int64) error {
	now := time.Now()
	seed := delta
	if seed < 0 {
		seed = 0
	}
	conflict := conflictOnUserID
	conflict.DoUpdates = clause.Assignments(map[string]interface{}{
		"total_likes_received": gorm.Expr("CASE WHEN total_likes_received + ? < 0 THEN 0 ELSE total_likes_received + ? END", delta, delta),
		"updated_at":           now,
	})
	return r.db.WithContext(ctx).Clauses(conflict).Create(&models.UserStats{
		UserID:             authorID,
		TotalLikesReceived: seed,
		UpdatedAt:          now,
	}).Error
}

// Get returns the projection row, or zero-valued defaults when the user has
// no row yet. It never reports absence as an error.
func (r *statsRepository) Get(ctx context.Context, userID string) (*models.UserStats, error) {
	var stats models.UserStats
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&stats).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.UserStats{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// GetForUpdate ensures the row exists and locks it for the remainder of the
// surrounding transaction. The reconciler takes this lock so a live
// increment on the same user cannot interleave with a recompute.
func (r *statsRepository) GetForUpdate(ctx context.Context, userID string) (*models.UserStats, error) {
	conflict := conflictOnUserID
	conflict.DoNothing = true
	if err := r.db.WithContext(ctx).Clauses(conflict).Create(&models.UserStats{
		UserID:    userID,
		UpdatedAt: time.Now(),
	}).Error; err != nil {
		return nil, err
	}

	q := r.db.WithContext(ctx)
	// SQLite has no row locks; its single-writer model serializes for us.
	if r.db.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var stats models.UserStats
	if err := q.Where("user_id = ?", userID).First(&stats).Error; err != nil {
		return nil, err
	}
	return &stats, nil
}

// Overwrite replaces every counter on the row. Reserved for the reconciler;
// the live path only ever applies increments.
func (r *statsRepository) Overwrite(ctx context.Context, stats *models.UserStats) error {
	stats.UpdatedAt = time.Now()
	conflict := conflictOnUserID
	conflict.DoUpdates = clause.AssignmentColumns([]string{
		"scan_count", "post_count", "total_likes_received", "updated_at",
	})
	return r.db.WithContext(ctx).Clauses(conflict).Create(stats).Error
}

// ListKnownUserIDs returns every distinct user present in the event store or
// the projection, for full reconciliation passes.
func (r *statsRepository) ListKnownUserIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Raw(`
		SELECT author_id AS user_id FROM posts
		UNION
		SELECT user_id FROM scans
		UNION
		SELECT user_id FROM user_stats
	`).Scan(&ids).Error
	return ids, err
}
